// Copyright (C) 2025 The cement-ai Authors (github.com/xrvnd/cement-ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/> for the full license text.

package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"

	"github.com/xrvnd/cement-ai/services/twin/catalog"
	"github.com/xrvnd/cement-ai/services/twin/sensors"
)

// HandleListSensors advances every sensor one poll and returns the
// snapshot with a status rollup.
func HandleListSensors(store *sensors.Store, obs SnapshotObserver) gin.HandlerFunc {
	return func(c *gin.Context) {
		_, span := tracer.Start(c.Request.Context(), "HandleListSensors")
		defer span.End()

		snap := store.RefreshAll()
		observeSnapshot(obs, snap)
		normal, warning, critical := snap.Counts()
		overall := snap.OverallStatus()
		span.SetAttributes(attribute.String("plant.status", string(overall)))

		c.JSON(http.StatusOK, gin.H{
			"status":         "success",
			"timestamp":      time.Now(),
			"overall_status": overall,
			"summary": gin.H{
				"total_sensors": len(snap),
				"normal":        normal,
				"warning":       warning,
				"critical":      critical,
			},
			"data": snap,
		})
	}
}

// HandleGetSensor returns the current reading of one sensor.
func HandleGetSensor(store *sensors.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		_, span := tracer.Start(c.Request.Context(), "HandleGetSensor")
		defer span.End()

		id := c.Param("id")
		span.SetAttributes(attribute.String("sensor.id", id))
		r, err := store.Get(id)
		if err != nil {
			abortWithError(c, span, http.StatusNotFound, fmt.Sprintf("Sensor '%s' not found", id), err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "success", "sensor_id": id, "data": r})
	}
}

// HandleCalibrateSensor sets a sensor to the target_value query parameter.
//
// # Outputs
//
//   - 200: {status, message, data} with data.value == target.
//   - 400: target missing, unparsable, or outside [min, max].
//   - 404: unknown sensor.
func HandleCalibrateSensor(store *sensors.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		_, span := tracer.Start(c.Request.Context(), "HandleCalibrateSensor")
		defer span.End()

		id := c.Param("id")
		span.SetAttributes(attribute.String("sensor.id", id))

		raw, ok := c.GetQuery("target_value")
		if !ok || raw == "" {
			abortWithError(c, span, http.StatusBadRequest, "target_value query parameter is required", nil)
			return
		}
		target, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			abortWithError(c, span, http.StatusBadRequest, fmt.Sprintf("target_value %q is not a number", raw), err)
			return
		}

		r, err := store.Calibrate(id, target)
		switch {
		case errors.Is(err, catalog.ErrSensorNotFound):
			abortWithError(c, span, http.StatusNotFound, fmt.Sprintf("Sensor '%s' not found", id), err)
			return
		case errors.Is(err, sensors.ErrOutOfRange):
			def, _ := store.Catalog().Get(id)
			abortWithError(c, span, http.StatusBadRequest,
				fmt.Sprintf("Target value must be between %g and %g", def.Min, def.Max), err)
			return
		case err != nil:
			abortWithError(c, span, http.StatusInternalServerError, "Calibration failed: "+err.Error(), err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":  "success",
			"message": fmt.Sprintf("Sensor %s calibrated to %g %s", id, target, r.Unit),
			"data":    r,
		})
	}
}

// HandleSimulation draws the next kiln simulation point and returns the
// recent window.
func HandleSimulation(sim *sensors.Simulator) gin.HandlerFunc {
	return func(c *gin.Context) {
		_, span := tracer.Start(c.Request.Context(), "HandleSimulation")
		defer span.End()

		latest := sim.NextKiln()
		c.JSON(http.StatusOK, gin.H{
			"status":    "success",
			"timestamp": time.Now(),
			"data":      sim.Kiln.Recent(sensors.SeriesWindow),
			"latest":    latest,
			"trends": gin.H{
				"efficiency_trend": "stable",
				"emission_trend":   "decreasing",
				"energy_trend":     "optimizing",
			},
		})
	}
}

// HandleMill draws the next mill point and returns the recent window.
func HandleMill(sim *sensors.Simulator) gin.HandlerFunc {
	return func(c *gin.Context) {
		_, span := tracer.Start(c.Request.Context(), "HandleMill")
		defer span.End()

		latest := sim.NextMill()
		c.JSON(http.StatusOK, gin.H{
			"status":    "success",
			"timestamp": time.Now(),
			"data":      sim.Mill.Recent(sensors.SeriesWindow),
			"latest":    latest,
		})
	}
}
