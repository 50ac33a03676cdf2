// Copyright (C) 2025 The cement-ai Authors (github.com/xrvnd/cement-ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/> for the full license text.

package sensors

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/xrvnd/cement-ai/services/twin/catalog"
)

// ErrOutOfRange is returned when a calibration target is outside [Min, Max].
var ErrOutOfRange = errors.New("target value out of range")

// Snapshot is the full sensor-id to reading map at one instant.
type Snapshot map[string]Reading

// Value returns the value of id, or 0 when the sensor is absent.
func (s Snapshot) Value(id string) float64 {
	return s[id].Value
}

// Counts returns how many readings are in each status.
func (s Snapshot) Counts() (normal, warning, critical int) {
	for _, r := range s {
		switch r.Status {
		case StatusCritical:
			critical++
		case StatusWarning:
			warning++
		default:
			normal++
		}
	}
	return normal, warning, critical
}

// OverallStatus rolls reading statuses up into a plant status: critical if
// any sensor is critical, warning if more than two sensors warn.
func (s Snapshot) OverallStatus() Status {
	_, warning, critical := s.Counts()
	switch {
	case critical > 0:
		return StatusCritical
	case warning > 2:
		return StatusWarning
	default:
		return StatusNormal
	}
}

// Store owns the current reading of every sensor in a catalog.
//
// # Description
//
// Store replaces a process-wide map: it is constructed per service (or per
// test) and passed to handlers. All access goes through a RWMutex so
// concurrent refresh and calibrate calls cannot interleave on a sensor.
//
// # Thread Safety
//
// Safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	catalog  *catalog.Catalog
	gen      *Generator
	readings map[string]Reading
	now      func() time.Time
}

// NewStore seeds every sensor at exactly its optimal value.
func NewStore(cat *catalog.Catalog, gen *Generator) *Store {
	if gen == nil {
		gen = NewGenerator(nil)
	}
	s := &Store{
		catalog:  cat,
		gen:      gen,
		readings: make(map[string]Reading, cat.Len()),
		now:      time.Now,
	}
	at := s.now()
	for _, def := range cat.All() {
		s.readings[def.ID] = NewReading(def, def.Optimal, at)
	}
	return s
}

// Catalog returns the catalog backing the store.
func (s *Store) Catalog() *catalog.Catalog { return s.catalog }

// Snapshot returns a copy of the current readings without advancing them.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.copyLocked()
}

// RefreshAll advances every sensor by one poll and returns the new snapshot.
func (s *Store) RefreshAll() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, def := range s.catalog.All() {
		prev := s.readings[def.ID].Value
		s.readings[def.ID] = s.gen.Refresh(def, &prev)
	}
	return s.copyLocked()
}

// Get returns the current reading for id.
func (s *Store) Get(id string) (Reading, error) {
	if _, err := s.catalog.Get(id); err != nil {
		return Reading{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readings[id], nil
}

// Calibrate re-seeds a sensor to exactly target.
//
// # Description
//
// The stored reading takes the target value verbatim; noise only applies
// from the next RefreshAll.
//
// # Outputs
//
//   - Reading: The calibrated reading.
//   - error: catalog.ErrSensorNotFound or ErrOutOfRange, wrapped.
func (s *Store) Calibrate(id string, target float64) (Reading, error) {
	def, err := s.catalog.Get(id)
	if err != nil {
		return Reading{}, err
	}
	if math.IsNaN(target) || target < def.Min || target > def.Max {
		return Reading{}, fmt.Errorf("%w: target value must be between %g and %g",
			ErrOutOfRange, def.Min, def.Max)
	}
	return s.Set(id, target)
}

// Set force-sets a sensor value without range checks. Used for seeding
// scenarios and by Calibrate after validation.
func (s *Store) Set(id string, value float64) (Reading, error) {
	def, err := s.catalog.Get(id)
	if err != nil {
		return Reading{}, err
	}
	r := NewReading(def, value, s.now())
	s.mu.Lock()
	s.readings[id] = r
	s.mu.Unlock()
	return r, nil
}

func (s *Store) copyLocked() Snapshot {
	out := make(Snapshot, len(s.readings))
	for k, v := range s.readings {
		out[k] = v
	}
	return out
}
