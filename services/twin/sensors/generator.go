// Copyright (C) 2025 The cement-ai Authors (github.com/xrvnd/cement-ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/> for the full license text.

// Package sensors produces and stores synthetic plant readings.
//
// # Description
//
// The Generator performs one bounded random-walk step per sensor and
// classifies the result. The Store owns the current reading of every
// sensor and is the only place readings are mutated; handlers receive it
// by injection. Series holds the two bounded derived histories
// (kiln simulation and mill points).
//
// # Thread Safety
//
// Generator, Store, Series and Simulator are safe for concurrent use.
package sensors

import (
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/xrvnd/cement-ai/services/twin/catalog"
)

// =============================================================================
// Reading Types
// =============================================================================

// Status is the three-way threshold classification of a reading.
type Status string

const (
	StatusNormal   Status = "normal"
	StatusWarning  Status = "warning"
	StatusCritical Status = "critical"
)

// Trend is the coarse direction of a reading relative to its optimal value.
type Trend string

const (
	TrendUp     Trend = "up"
	TrendDown   Trend = "down"
	TrendStable Trend = "stable"
)

// Reading is the current value of one sensor.
type Reading struct {
	Value     float64   `json:"value"`
	Unit      string    `json:"unit"`
	Trend     Trend     `json:"trend"`
	Status    Status    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Optimal   float64   `json:"optimal"`
	Critical  float64   `json:"critical"`
}

const (
	// noiseFraction of (max-min) bounds the per-poll jitter.
	noiseFraction = 0.05
	// driftMagnitude is the extra uniform drift added on every poll.
	driftMagnitude = 0.1
	// warningBand is the relative deviation from optimal that raises a warning.
	warningBand = 0.15
	// trendBand is the relative deviation from optimal reported as up/down.
	trendBand = 0.10
	// clampLow and clampHigh widen the nominal band so alerting can trigger.
	clampLow  = 0.8
	clampHigh = 1.2
)

// =============================================================================
// Classification
// =============================================================================

// Variation returns the jitter magnitude for a sensor.
func Variation(def catalog.Definition) float64 {
	return (def.Max - def.Min) * noiseFraction
}

// ClampBand returns the inclusive range every generated value lies in.
func ClampBand(def catalog.Definition) (lo, hi float64) {
	return def.Min * clampLow, def.Max * clampHigh
}

// Classify returns the status of value for def.
//
// # Description
//
// The partition is exhaustive and non-overlapping:
//   - critical: value > Critical
//   - warning: |value - Optimal| > 0.15·Optimal (and value <= Critical)
//   - normal: otherwise
func Classify(def catalog.Definition, value float64) Status {
	switch {
	case value > def.Critical:
		return StatusCritical
	case math.Abs(value-def.Optimal) > warningBand*def.Optimal:
		return StatusWarning
	default:
		return StatusNormal
	}
}

// TrendOf reports the direction of value relative to the optimal set point.
// Deviations smaller than half the jitter magnitude are always stable.
func TrendOf(def catalog.Definition, value float64) Trend {
	if math.Abs(value-def.Optimal) < Variation(def)*0.5 {
		return TrendStable
	}
	switch {
	case value > def.Optimal*(1+trendBand):
		return TrendUp
	case value < def.Optimal*(1-trendBand):
		return TrendDown
	default:
		return TrendStable
	}
}

// NewReading builds a classified reading for an exact value.
func NewReading(def catalog.Definition, value float64, at time.Time) Reading {
	return Reading{
		Value:     value,
		Unit:      def.Unit,
		Trend:     TrendOf(def, value),
		Status:    Classify(def, value),
		Timestamp: at,
		Optimal:   def.Optimal,
		Critical:  def.Critical,
	}
}

// =============================================================================
// Generator
// =============================================================================

// Generator performs one random-walk step per call.
//
// # Description
//
// Output is deliberately non-deterministic unless a seeded source is
// supplied. Tests should treat values as bounded random variables.
type Generator struct {
	mu  sync.Mutex
	rng *rand.Rand
	now func() time.Time
}

// NewGenerator returns a Generator drawing from src. A nil src uses a
// time-seeded PCG source.
func NewGenerator(src rand.Source) *Generator {
	if src == nil {
		seed := uint64(time.Now().UnixNano())
		src = rand.NewPCG(seed, seed>>17|1)
	}
	return &Generator{rng: rand.New(src), now: time.Now}
}

// Refresh produces the next reading for def.
//
// # Inputs
//
//   - def: Sensor definition.
//   - previous: Last value, or nil to seed from Optimal.
//
// # Outputs
//
//   - Reading: Value within ClampBand(def), rounded to 2 decimals.
func (g *Generator) Refresh(def catalog.Definition, previous *float64) Reading {
	base := def.Optimal
	if previous != nil {
		base = *previous
	}
	variation := Variation(def)

	g.mu.Lock()
	noise := g.uniform(variation)
	drift := g.uniform(driftMagnitude)
	g.mu.Unlock()

	lo, hi := ClampBand(def)
	value := clamp(round2(clamp(base+noise+drift, lo, hi)), lo, hi)

	return NewReading(def, value, g.now())
}

// uniform draws from U(-m, m). Caller holds g.mu.
func (g *Generator) uniform(m float64) float64 {
	return (g.rng.Float64()*2 - 1) * m
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
