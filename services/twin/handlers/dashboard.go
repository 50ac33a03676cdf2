// Copyright (C) 2025 The cement-ai Authors (github.com/xrvnd/cement-ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/> for the full license text.

package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"

	"github.com/xrvnd/cement-ai/services/twin/alerts"
	"github.com/xrvnd/cement-ai/services/twin/dashboard"
	"github.com/xrvnd/cement-ai/services/twin/datatypes"
	"github.com/xrvnd/cement-ai/services/twin/sensors"
)

// HandleAlerts evaluates the current snapshot without advancing it.
func HandleAlerts(store *sensors.Store, evaluator *alerts.Evaluator, obs SnapshotObserver) gin.HandlerFunc {
	return func(c *gin.Context) {
		_, span := tracer.Start(c.Request.Context(), "HandleAlerts")
		defer span.End()

		active := evaluator.Evaluate(store.Snapshot())
		summary := alerts.Summarize(active)
		if obs != nil {
			obs.RecordAlerts(summary)
		}
		span.SetAttributes(
			attribute.Int("alerts.total", summary.Total),
			attribute.Int("alerts.critical", summary.Critical),
		)

		c.JSON(http.StatusOK, gin.H{
			"status":    "success",
			"timestamp": time.Now(),
			"alerts":    active,
			"count":     len(active),
			"summary":   summary,
		})
	}
}

// HandleDashboardSummary returns the headline KPI payload.
func HandleDashboardSummary(store *sensors.Store, evaluator *alerts.Evaluator, agg *dashboard.Aggregator) gin.HandlerFunc {
	return func(c *gin.Context) {
		_, span := tracer.Start(c.Request.Context(), "HandleDashboardSummary")
		defer span.End()

		snap := store.Snapshot()
		payload := agg.BuildSummary(snap, evaluator.Evaluate(snap))
		span.SetAttributes(attribute.String("plant.status", payload.Summary.SystemStatus))
		c.JSON(http.StatusOK, payload)
	}
}

// HandlePlantDashboard returns the per-plant dashboard. An empty body
// selects the default plant.
func HandlePlantDashboard(store *sensors.Store, agg *dashboard.Aggregator) gin.HandlerFunc {
	return func(c *gin.Context) {
		_, span := tracer.Start(c.Request.Context(), "HandlePlantDashboard")
		defer span.End()

		var req datatypes.DashboardRequest
		if err := bindOptionalJSON(c, &req); err != nil {
			abortWithError(c, span, http.StatusBadRequest, "invalid request body", err)
			return
		}
		if err := req.Validate(); err != nil {
			abortWithError(c, span, http.StatusBadRequest, err.Error(), err)
			return
		}
		span.SetAttributes(attribute.String("plant", req.Plant))
		c.JSON(http.StatusOK, agg.BuildPlantDashboard(req.Plant, store.Snapshot()))
	}
}
