// Copyright (C) 2025 The cement-ai Authors (github.com/xrvnd/cement-ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/> for the full license text.

// Package observability defines the twin's Prometheus metrics.
//
// # Description
//
// TwinMetrics is built against an explicit prometheus.Registerer so tests
// can use an isolated registry. Production wires prometheus.DefaultRegisterer
// and serves it on /metrics.
package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/xrvnd/cement-ai/services/twin/alerts"
	"github.com/xrvnd/cement-ai/services/twin/sensors"
)

const metricsNamespace = "cementtwin"

// TwinMetrics holds every collector the service exports.
//
// # Thread Safety
//
// Safe for concurrent use; Prometheus collectors are.
type TwinMetrics struct {
	HTTPRequestsTotal         *prometheus.CounterVec
	LLMRequestsTotal          *prometheus.CounterVec
	LLMDurationSeconds        *prometheus.HistogramVec
	AlertsActive              *prometheus.GaugeVec
	SensorValue               *prometheus.GaugeVec
	ConversationsActive       prometheus.Gauge
	ConversationsEvictedTotal prometheus.Counter
	HistoryWritesTotal        *prometheus.CounterVec
	StreamConnectionsActive   prometheus.Gauge
}

// NewTwinMetrics registers the collectors with reg.
func NewTwinMetrics(reg prometheus.Registerer) *TwinMetrics {
	factory := promauto.With(reg)
	return &TwinMetrics{
		HTTPRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status code",
		}, []string{"route", "method", "status"}),
		LLMRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "llm_requests_total",
			Help:      "LLM calls by backend, operation and outcome",
		}, []string{"backend", "operation", "outcome"}),
		LLMDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "llm_duration_seconds",
			Help:      "LLM call latency in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"backend", "operation"}),
		AlertsActive: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "alerts_active",
			Help:      "Alerts produced by the latest evaluation, by severity",
		}, []string{"severity"}),
		SensorValue: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "sensor_value",
			Help:      "Latest sensor reading",
		}, []string{"sensor", "unit"}),
		ConversationsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "conversations_active",
			Help:      "Conversations currently held by the store",
		}),
		ConversationsEvictedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "conversations_evicted_total",
			Help:      "Conversations removed for inactivity",
		}),
		HistoryWritesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "history_writes_total",
			Help:      "Snapshot writes to the history sink by outcome",
		}, []string{"outcome"}),
		StreamConnectionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "stream_connections_active",
			Help:      "Open sensor stream websocket connections",
		}),
	}
}

// ObserveLLMRequest records one LLM call. It satisfies llm.Observer.
func (m *TwinMetrics) ObserveLLMRequest(backend, operation, outcome string, duration time.Duration) {
	m.LLMRequestsTotal.WithLabelValues(backend, operation, outcome).Inc()
	m.LLMDurationSeconds.WithLabelValues(backend, operation).Observe(duration.Seconds())
}

// RecordHTTPRequest counts a finished request.
func (m *TwinMetrics) RecordHTTPRequest(route, method string, status int) {
	if route == "" {
		route = "unmatched"
	}
	m.HTTPRequestsTotal.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
}

// RecordSnapshot publishes the current sensor values.
func (m *TwinMetrics) RecordSnapshot(snap sensors.Snapshot) {
	for id, r := range snap {
		m.SensorValue.WithLabelValues(id, r.Unit).Set(r.Value)
	}
}

// RecordAlerts publishes the latest alert counts.
func (m *TwinMetrics) RecordAlerts(summary alerts.Summary) {
	m.AlertsActive.WithLabelValues(string(alerts.SeverityCritical)).Set(float64(summary.Critical))
	m.AlertsActive.WithLabelValues(string(alerts.SeverityMedium)).Set(float64(summary.Warning))
}

// RecordConversations sets the live conversation gauge and adds evicted.
func (m *TwinMetrics) RecordConversations(active, evicted int) {
	m.ConversationsActive.Set(float64(active))
	if evicted > 0 {
		m.ConversationsEvictedTotal.Add(float64(evicted))
	}
}

// RecordHistoryWrite counts a history sink write.
func (m *TwinMetrics) RecordHistoryWrite(err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.HistoryWritesTotal.WithLabelValues(outcome).Inc()
}
