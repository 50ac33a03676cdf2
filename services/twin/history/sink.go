// Copyright (C) 2025 The cement-ai Authors (github.com/xrvnd/cement-ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/> for the full license text.

// Package history persists sensor snapshots and drives the optional
// background refresh loop.
//
// # Description
//
// Sink is the write side of the sensor history. NopSink discards
// everything and is the default. InfluxSink writes one point per sensor
// to InfluxDB v2. Recorder refreshes the sensor store on a fixed interval
// and hands every snapshot to the sink.
package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/xrvnd/cement-ai/services/twin/sensors"
)

// Measurement is the InfluxDB measurement every reading is written to.
const Measurement = "sensor_reading"

// Sink receives refreshed snapshots.
type Sink interface {
	Write(ctx context.Context, snap sensors.Snapshot) error
	Close()
}

// NopSink discards snapshots.
type NopSink struct{}

func (NopSink) Write(context.Context, sensors.Snapshot) error { return nil }
func (NopSink) Close()                                        {}

// =============================================================================
// InfluxDB
// =============================================================================

// InfluxConfig locates the InfluxDB v2 bucket.
type InfluxConfig struct {
	URL    string `yaml:"url"`
	Token  string `yaml:"token"`
	Org    string `yaml:"org"`
	Bucket string `yaml:"bucket"`
}

// Validate reports the first missing field.
func (c InfluxConfig) Validate() error {
	switch {
	case c.URL == "":
		return errors.New("influxdb url is required")
	case c.Org == "":
		return errors.New("influxdb org is required")
	case c.Bucket == "":
		return errors.New("influxdb bucket is required")
	}
	return nil
}

// InfluxSink writes readings through the blocking write API, so Write
// returns only once the server has accepted the batch.
type InfluxSink struct {
	client influxdb2.Client
	writer api.WriteAPIBlocking
	bucket string
}

// NewInfluxSink connects to InfluxDB. The server is not contacted until
// the first write; call Ping to check reachability.
func NewInfluxSink(cfg InfluxConfig) (*InfluxSink, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	slog.Info("InfluxDB history sink configured",
		"url", cfg.URL, "org", cfg.Org, "bucket", cfg.Bucket)
	return &InfluxSink{
		client: client,
		writer: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		bucket: cfg.Bucket,
	}, nil
}

// Ping checks the server health endpoint.
func (s *InfluxSink) Ping(ctx context.Context) error {
	health, err := s.client.Health(ctx)
	if err != nil {
		return fmt.Errorf("influxdb health check: %w", err)
	}
	if health.Status != "pass" {
		return fmt.Errorf("influxdb unhealthy: %s", health.Status)
	}
	return nil
}

// Write sends one point per reading.
func (s *InfluxSink) Write(ctx context.Context, snap sensors.Snapshot) error {
	if len(snap) == 0 {
		return nil
	}
	points := Points(snap)
	if err := s.writer.WritePoint(ctx, points...); err != nil {
		return fmt.Errorf("write %d points to %s: %w", len(points), s.bucket, err)
	}
	return nil
}

func (s *InfluxSink) Close() { s.client.Close() }

// Points converts a snapshot to line-protocol points in sensor id order.
func Points(snap sensors.Snapshot) []*write.Point {
	ids := make([]string, 0, len(snap))
	for id := range snap {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	points := make([]*write.Point, 0, len(ids))
	for _, id := range ids {
		r := snap[id]
		at := r.Timestamp
		if at.IsZero() {
			at = time.Now()
		}
		points = append(points, influxdb2.NewPoint(
			Measurement,
			map[string]string{
				"sensor": id,
				"unit":   r.Unit,
				"status": string(r.Status),
			},
			map[string]interface{}{
				"value":    r.Value,
				"optimal":  r.Optimal,
				"critical": r.Critical,
			},
			at,
		))
	}
	return points
}

var (
	_ Sink = NopSink{}
	_ Sink = (*InfluxSink)(nil)
)
