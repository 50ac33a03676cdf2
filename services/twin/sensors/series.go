// Copyright (C) 2025 The cement-ai Authors (github.com/xrvnd/cement-ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/> for the full license text.

package sensors

import (
	"math"
	"math/rand/v2"
	"sync"
	"time"
)

const (
	// SeriesCapacity is how many derived points are retained.
	SeriesCapacity = 100
	// SeriesWindow is how many points are exposed on read.
	SeriesWindow = 20
)

// Series is a bounded, ordered history that drops its oldest entry once
// capacity is reached.
type Series[T any] struct {
	mu       sync.Mutex
	capacity int
	items    []T
}

// NewSeries returns a Series holding at most capacity items.
func NewSeries[T any](capacity int) *Series[T] {
	if capacity <= 0 {
		capacity = SeriesCapacity
	}
	return &Series[T]{capacity: capacity, items: make([]T, 0, capacity)}
}

// Append adds v, trimming the oldest entries beyond capacity.
func (s *Series[T]) Append(v T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, v)
	if over := len(s.items) - s.capacity; over > 0 {
		s.items = append(s.items[:0], s.items[over:]...)
	}
}

// Recent returns a copy of the newest n items, oldest first.
func (s *Series[T]) Recent(n int) []T {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n > len(s.items) || n <= 0 {
		n = len(s.items)
	}
	out := make([]T, n)
	copy(out, s.items[len(s.items)-n:])
	return out
}

// Latest returns the newest item and whether one exists.
func (s *Series[T]) Latest() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var zero T
	if len(s.items) == 0 {
		return zero, false
	}
	return s.items[len(s.items)-1], true
}

// Len returns the number of retained items.
func (s *Series[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// SimulationPoint is one kiln simulation sample.
type SimulationPoint struct {
	Timestamp          time.Time `json:"timestamp"`
	KilnSpeed          float64   `json:"kiln_speed"`
	FeedRate           float64   `json:"feed_rate"`
	FuelRate           float64   `json:"fuel_rate"`
	OxygenLevel        float64   `json:"oxygen_level"`
	PressureDrop       float64   `json:"pressure_drop"`
	ClinkerTemperature float64   `json:"clinker_temperature"`
	ProductionRate     float64   `json:"production_rate"`
	EnergyConsumption  float64   `json:"energy_consumption"`
	Efficiency         float64   `json:"efficiency"`
	TSRPercentage      float64   `json:"tsr_percentage"`
	CO2Emissions       float64   `json:"co2_emissions"`
	NOxEmissions       float64   `json:"nox_emissions"`
	DustEmissions      float64   `json:"dust_emissions"`
}

// MillPoint is one mill operation sample.
type MillPoint struct {
	Timestamp           time.Time `json:"timestamp"`
	Mill1Load           float64   `json:"mill_1_load"`
	Mill2Load           float64   `json:"mill_2_load"`
	SeparatorEfficiency float64   `json:"separator_efficiency"`
	Fineness            float64   `json:"fineness"`
	MoistureContent     float64   `json:"moisture_content"`
	PowerConsumption    float64   `json:"power_consumption"`
	ProductionRate      float64   `json:"production_rate"`
	BagFilterPressure   float64   `json:"bag_filter_pressure"`
}

// Simulator draws kiln and mill points and keeps their bounded histories.
type Simulator struct {
	mu   sync.Mutex
	rng  *rand.Rand
	now  func() time.Time
	Kiln *Series[SimulationPoint]
	Mill *Series[MillPoint]
}

// NewSimulator returns a Simulator with empty histories. A nil src uses a
// time-seeded source.
func NewSimulator(src rand.Source) *Simulator {
	if src == nil {
		seed := uint64(time.Now().UnixNano())
		src = rand.NewPCG(seed, seed>>11|1)
	}
	return &Simulator{
		rng:  rand.New(src),
		now:  time.Now,
		Kiln: NewSeries[SimulationPoint](SeriesCapacity),
		Mill: NewSeries[MillPoint](SeriesCapacity),
	}
}

// NextKiln draws and records a simulation point.
func (s *Simulator) NextKiln() SimulationPoint {
	s.mu.Lock()
	p := SimulationPoint{
		Timestamp:          s.now(),
		KilnSpeed:          s.between(2.8, 3.2, 2),
		FeedRate:           s.between(180, 220, 1),
		FuelRate:           s.between(15, 25, 2),
		OxygenLevel:        s.between(2.5, 4.0, 2),
		PressureDrop:       s.between(15, 25, 1),
		ClinkerTemperature: s.between(1200, 1300, 1),
		ProductionRate:     s.between(4800, 5200, 0),
		EnergyConsumption:  s.between(3200, 3800, 0),
		Efficiency:         s.between(85, 95, 1),
		TSRPercentage:      s.between(15, 25, 1),
		CO2Emissions:       s.between(850, 950, 0),
		NOxEmissions:       s.between(200, 300, 0),
		DustEmissions:      s.between(30, 50, 1),
	}
	s.mu.Unlock()
	s.Kiln.Append(p)
	return p
}

// NextMill draws and records a mill point.
func (s *Simulator) NextMill() MillPoint {
	s.mu.Lock()
	p := MillPoint{
		Timestamp:           s.now(),
		Mill1Load:           s.between(85, 95, 1),
		Mill2Load:           s.between(80, 90, 1),
		SeparatorEfficiency: s.between(75, 85, 1),
		Fineness:            s.between(3200, 3800, 0),
		MoistureContent:     s.between(0.5, 1.2, 2),
		PowerConsumption:    s.between(2800, 3200, 0),
		ProductionRate:      s.between(95, 105, 1),
		BagFilterPressure:   s.between(1200, 1400, 0),
	}
	s.mu.Unlock()
	s.Mill.Append(p)
	return p
}

// between draws U(lo, hi) rounded to places decimals. Caller holds s.mu.
func (s *Simulator) between(lo, hi float64, places int) float64 {
	v := lo + s.rng.Float64()*(hi-lo)
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}
