// Copyright (C) 2025 The cement-ai Authors (github.com/xrvnd/cement-ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/> for the full license text.

package alerts

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xrvnd/cement-ai/services/twin/catalog"
	"github.com/xrvnd/cement-ai/services/twin/sensors"
)

func newStore() *sensors.Store {
	return sensors.NewStore(catalog.Default(), nil)
}

// TestEvaluate_AllOptimalHasNoAlerts verifies the baseline snapshot is quiet.
func TestEvaluate_AllOptimalHasNoAlerts(t *testing.T) {
	e := NewEvaluator(catalog.Default(), nil)
	alerts := e.Evaluate(newStore().Snapshot())
	assert.Empty(t, alerts)
	assert.NotNil(t, alerts)
	assert.Equal(t, Summary{}, Summarize(alerts))
}

func TestEvaluate_SingleCritical(t *testing.T) {
	store := newStore()
	_, err := store.Set(catalog.BurningZone, 1601)
	require.NoError(t, err)

	alerts := NewEvaluator(catalog.Default(), nil).Evaluate(store.Snapshot())
	require.Len(t, alerts, 1)
	a := alerts[0]
	assert.Equal(t, catalog.BurningZone, a.Sensor)
	assert.Equal(t, SeverityCritical, a.Severity)
	assert.Equal(t, "critical", a.Type)
	assert.Equal(t, "Burning Zone Temperature", a.SensorName)
	assert.True(t, strings.HasPrefix(a.ID, "alert-burning-"))
	assert.Contains(t, a.Message, "CRITICAL")
}

func TestEvaluate_WarningBelowBand(t *testing.T) {
	store := newStore()
	_, err := store.Set(catalog.MillEfficiency, 60)
	require.NoError(t, err)

	alerts := NewEvaluator(catalog.Default(), nil).Evaluate(store.Snapshot())
	require.Len(t, alerts, 1)
	assert.Equal(t, SeverityMedium, alerts[0].Severity)
	assert.Equal(t, Summary{Total: 1, Warning: 1}, Summarize(alerts))
}

// TestEvaluate_CriticalWithinBand uses a catalog whose critical threshold
// sits inside the warning band.
func TestEvaluate_CriticalWithinBand(t *testing.T) {
	cat, err := catalog.New([]catalog.Definition{
		{ID: "tight", Name: "Tight", Unit: "x", Min: 90, Max: 100, Optimal: 95, Critical: 101},
	})
	require.NoError(t, err)
	store := sensors.NewStore(cat, nil)
	_, err = store.Set("tight", 102)
	require.NoError(t, err)

	alerts := NewEvaluator(cat, nil).Evaluate(store.Snapshot())
	require.Len(t, alerts, 1)
	assert.Equal(t, SeverityCritical, alerts[0].Severity)
}

func TestEvaluate_SkipsUnknownSensors(t *testing.T) {
	snap := newStore().Snapshot()
	snap["ghost"] = sensors.Reading{Value: 1e9}
	assert.Empty(t, NewEvaluator(catalog.Default(), nil).Evaluate(snap))
}

// TestSequenceIDs_Unique runs many rapid concurrent evaluations and checks
// no alert id repeats.
func TestSequenceIDs_Unique(t *testing.T) {
	store := newStore()
	_, err := store.Set(catalog.BurningZone, 1700)
	require.NoError(t, err)
	_, err = store.Set(catalog.Vibration, 4.5)
	require.NoError(t, err)
	snap := store.Snapshot()

	e := NewEvaluator(catalog.Default(), nil)
	var (
		mu   sync.Mutex
		seen = make(map[string]struct{})
		wg   sync.WaitGroup
	)
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 250; i++ {
				for _, a := range e.Evaluate(snap) {
					mu.Lock()
					seen[a.ID] = struct{}{}
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()
	assert.Len(t, seen, 2000)
}
