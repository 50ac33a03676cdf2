// Copyright (C) 2025 The cement-ai Authors (github.com/xrvnd/cement-ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/> for the full license text.

package observability

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xrvnd/cement-ai/services/llm"
	"github.com/xrvnd/cement-ai/services/twin/alerts"
	"github.com/xrvnd/cement-ai/services/twin/sensors"
)

var _ llm.Observer = (*TwinMetrics)(nil)

func newTestMetrics(t *testing.T) (*TwinMetrics, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	return NewTwinMetrics(reg), reg
}

func TestNewTwinMetrics_IsolatedRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		newTestMetrics(t)
		newTestMetrics(t)
	})
}

func TestObserveLLMRequest(t *testing.T) {
	m, reg := newTestMetrics(t)
	m.ObserveLLMRequest("gemini", "generate", llm.OutcomeSuccess, 120*time.Millisecond)
	m.ObserveLLMRequest("gemini", "generate", llm.OutcomeSuccess, 80*time.Millisecond)
	m.ObserveLLMRequest("gemini", "generate", llm.OutcomeTimeout, time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.LLMRequestsTotal.WithLabelValues("gemini", "generate", llm.OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LLMRequestsTotal.WithLabelValues("gemini", "generate", llm.OutcomeTimeout)))

	n, err := testutil.GatherAndCount(reg, "cementtwin_llm_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRecordHTTPRequest(t *testing.T) {
	m, _ := newTestMetrics(t)
	m.RecordHTTPRequest("/api/sensors/:id", "GET", 404)
	m.RecordHTTPRequest("", "GET", 404)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("/api/sensors/:id", "GET", "404")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("unmatched", "GET", "404")))
}

func TestRecordSnapshotAndAlerts(t *testing.T) {
	m, _ := newTestMetrics(t)
	m.RecordSnapshot(sensors.Snapshot{"burning": {Value: 1450, Unit: "°C"}})
	assert.Equal(t, 1450.0, testutil.ToFloat64(m.SensorValue.WithLabelValues("burning", "°C")))

	m.RecordAlerts(alerts.Summary{Total: 3, Critical: 1, Warning: 2})
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AlertsActive.WithLabelValues("critical")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.AlertsActive.WithLabelValues("medium")))
}

func TestRecordConversations(t *testing.T) {
	m, _ := newTestMetrics(t)
	m.RecordConversations(4, 0)
	m.RecordConversations(2, 2)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ConversationsActive))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ConversationsEvictedTotal))
}

func TestRecordHistoryWrite(t *testing.T) {
	m, _ := newTestMetrics(t)
	m.RecordHistoryWrite(nil)
	m.RecordHistoryWrite(errors.New("influx down"))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HistoryWritesTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HistoryWritesTotal.WithLabelValues("error")))
}
