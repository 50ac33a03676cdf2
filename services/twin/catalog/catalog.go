// Copyright (C) 2025 The cement-ai Authors (github.com/xrvnd/cement-ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/> for the full license text.

// Package catalog holds the static sensor definitions for the plant twin.
//
// A Catalog is built once at startup, validated, and then shared read-only
// by the generator, the alert evaluator, the prompt builder and the HTTP
// handlers. Every definition must satisfy Min < Optimal < Max < Critical;
// a table that does not is rejected with ErrInvalidDefinition so the
// service refuses to start instead of producing nonsensical statuses.
package catalog

import (
	"errors"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/xrvnd/cement-ai/pkg/validation"
)

// =============================================================================
// Errors
// =============================================================================

var (
	// ErrSensorNotFound is returned when a lookup names a sensor id that is
	// not part of the catalog.
	ErrSensorNotFound = errors.New("sensor not found")

	// ErrInvalidDefinition is returned when a definition violates the bound
	// ordering or has a missing/duplicate id.
	ErrInvalidDefinition = errors.New("invalid sensor definition")
)

// =============================================================================
// Types
// =============================================================================

// Definition describes one plant sensor and its operating envelope.
//
// # Fields
//
//   - ID: Stable key used in URLs and snapshots (e.g. "mill-eff").
//   - Name: Display name.
//   - Unit: Engineering unit rendered next to values.
//   - Min, Max: Nominal operating band.
//   - Optimal: Set point. Warning thresholds are ±15% of this value.
//   - Critical: Upper safety bound. Values above it are critical.
type Definition struct {
	ID       string  `yaml:"id" json:"id"`
	Name     string  `yaml:"name" json:"name"`
	Unit     string  `yaml:"unit" json:"unit"`
	Min      float64 `yaml:"min" json:"min"`
	Max      float64 `yaml:"max" json:"max"`
	Optimal  float64 `yaml:"optimal" json:"optimal"`
	Critical float64 `yaml:"critical" json:"critical"`
}

// Validate checks the id format and bound ordering of a single definition.
func (d Definition) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidDefinition)
	}
	if err := validation.ValidateSensorID(d.ID); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDefinition, err)
	}
	for name, v := range map[string]float64{
		"min": d.Min, "max": d.Max, "optimal": d.Optimal, "critical": d.Critical,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s: %s is not finite", ErrInvalidDefinition, d.ID, name)
		}
	}
	if !(d.Min < d.Optimal && d.Optimal < d.Max && d.Max < d.Critical) {
		return fmt.Errorf("%w: %s: want min < optimal < max < critical, got %g/%g/%g/%g",
			ErrInvalidDefinition, d.ID, d.Min, d.Optimal, d.Max, d.Critical)
	}
	return nil
}

// Catalog is an ordered, validated, read-only set of sensor definitions.
//
// # Thread Safety
//
// Immutable after construction. Safe for concurrent use.
type Catalog struct {
	defs  []Definition
	index map[string]int
}

// fileFormat is the YAML layout accepted by Load.
type fileFormat struct {
	Sensors []Definition `yaml:"sensors"`
}

// =============================================================================
// Constructors
// =============================================================================

// New validates defs and returns a Catalog preserving their order.
//
// # Inputs
//
//   - defs: Sensor definitions. Must be non-empty with unique ids.
//
// # Outputs
//
//   - *Catalog: Validated catalog.
//   - error: Wraps ErrInvalidDefinition on the first violation found.
func New(defs []Definition) (*Catalog, error) {
	if len(defs) == 0 {
		return nil, fmt.Errorf("%w: catalog is empty", ErrInvalidDefinition)
	}
	c := &Catalog{
		defs:  make([]Definition, 0, len(defs)),
		index: make(map[string]int, len(defs)),
	}
	for _, d := range defs {
		if err := d.Validate(); err != nil {
			return nil, err
		}
		if _, dup := c.index[d.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate id %q", ErrInvalidDefinition, d.ID)
		}
		c.index[d.ID] = len(c.defs)
		c.defs = append(c.defs, d)
	}
	return c, nil
}

// Load reads a YAML catalog file and validates it.
//
// # Examples
//
//	sensors:
//	  - id: burning
//	    name: Burning Zone Temperature
//	    unit: "°C"
//	    min: 1400
//	    max: 1500
//	    optimal: 1450
//	    critical: 1600
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}
	var f fileFormat
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog file: %w", err)
	}
	c, err := New(f.Sensors)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return c, nil
}

// Default returns the built-in plant catalog.
//
// Panics if the built-in table is invalid, which is a programming error
// caught by the package tests.
func Default() *Catalog {
	c, err := New(builtinDefinitions())
	if err != nil {
		panic(fmt.Sprintf("built-in sensor catalog is invalid: %v", err))
	}
	return c
}

// =============================================================================
// Accessors
// =============================================================================

// Get returns the definition for id or an error wrapping ErrSensorNotFound.
func (c *Catalog) Get(id string) (Definition, error) {
	i, ok := c.index[id]
	if !ok {
		return Definition{}, fmt.Errorf("%w: %s", ErrSensorNotFound, id)
	}
	return c.defs[i], nil
}

// Has reports whether id is in the catalog.
func (c *Catalog) Has(id string) bool {
	_, ok := c.index[id]
	return ok
}

// IDs returns sensor ids in declaration order.
func (c *Catalog) IDs() []string {
	ids := make([]string, len(c.defs))
	for i, d := range c.defs {
		ids[i] = d.ID
	}
	return ids
}

// All returns a copy of every definition in declaration order.
func (c *Catalog) All() []Definition {
	out := make([]Definition, len(c.defs))
	copy(out, c.defs)
	return out
}

// Len returns the number of sensors.
func (c *Catalog) Len() int { return len(c.defs) }
