// Copyright (C) 2025 The cement-ai Authors (github.com/xrvnd/cement-ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/> for the full license text.

// Package alerts turns a sensor snapshot into operator alerts.
package alerts

import (
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/xrvnd/cement-ai/services/twin/catalog"
	"github.com/xrvnd/cement-ai/services/twin/sensors"
)

// Severity is the operator-facing urgency of an alert.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityMedium   Severity = "medium"
)

// Alert is a single threshold violation.
type Alert struct {
	ID                string    `json:"id"`
	Type              string    `json:"type"`
	Sensor            string    `json:"sensor"`
	SensorName        string    `json:"sensor_name"`
	Message           string    `json:"message"`
	Timestamp         time.Time `json:"timestamp"`
	Severity          Severity  `json:"severity"`
	RecommendedAction string    `json:"recommended_action"`
	EstimatedImpact   string    `json:"estimated_impact"`
}

// Summary counts alerts by severity.
type Summary struct {
	Total    int `json:"total"`
	Critical int `json:"critical"`
	Warning  int `json:"warning"`
}

// IDSource produces alert ids.
type IDSource interface {
	Next(sensorID string) string
}

// SequenceIDs combines a process-wide counter with a random suffix so ids
// stay unique under rapid polling.
type SequenceIDs struct {
	seq atomic.Uint64
}

// Next returns an id of the form alert-<sensor>-<seq>-<uuid8>.
func (s *SequenceIDs) Next(sensorID string) string {
	n := s.seq.Add(1)
	return "alert-" + sensorID + "-" + strconv.FormatUint(n, 10) + "-" + uuid.NewString()[:8]
}

// Evaluator classifies snapshot readings into alerts.
//
// # Description
//
// Evaluate is pure apart from id generation and the clock. A reading above
// its critical threshold yields one critical alert; a reading more than 15
// percent from optimal yields one warning. Alerts follow catalog order and
// sensors absent from the catalog are ignored.
//
// # Thread Safety
//
// Safe for concurrent use.
type Evaluator struct {
	catalog *catalog.Catalog
	ids     IDSource
	now     func() time.Time
}

// NewEvaluator builds an Evaluator. A nil ids uses a fresh SequenceIDs.
func NewEvaluator(cat *catalog.Catalog, ids IDSource) *Evaluator {
	if ids == nil {
		ids = &SequenceIDs{}
	}
	return &Evaluator{catalog: cat, ids: ids, now: time.Now}
}

// Evaluate returns the alerts raised by snap.
func (e *Evaluator) Evaluate(snap sensors.Snapshot) []Alert {
	out := make([]Alert, 0)
	at := e.now()
	for _, def := range e.catalog.All() {
		r, ok := snap[def.ID]
		if !ok {
			continue
		}
		switch sensors.Classify(def, r.Value) {
		case sensors.StatusCritical:
			out = append(out, Alert{
				ID:                e.ids.Next(def.ID),
				Type:              string(sensors.StatusCritical),
				Sensor:            def.ID,
				SensorName:        def.Name,
				Message:           fmt.Sprintf("CRITICAL: %s at %g %s exceeds safe limits", def.Name, r.Value, def.Unit),
				Timestamp:         at,
				Severity:          SeverityCritical,
				RecommendedAction: "Immediate intervention required",
				EstimatedImpact:   "High risk to safety and production",
			})
		case sensors.StatusWarning:
			out = append(out, Alert{
				ID:                e.ids.Next(def.ID),
				Type:              string(sensors.StatusWarning),
				Sensor:            def.ID,
				SensorName:        def.Name,
				Message:           fmt.Sprintf("WARNING: %s at %g %s outside optimal range", def.Name, r.Value, def.Unit),
				Timestamp:         at,
				Severity:          SeverityMedium,
				RecommendedAction: "Monitor and adjust if trend continues",
				EstimatedImpact:   "Potential efficiency loss",
			})
		}
	}
	return out
}

// Summarize counts alerts by severity.
func Summarize(alerts []Alert) Summary {
	s := Summary{Total: len(alerts)}
	for _, a := range alerts {
		switch a.Severity {
		case SeverityCritical:
			s.Critical++
		case SeverityMedium:
			s.Warning++
		}
	}
	return s
}
