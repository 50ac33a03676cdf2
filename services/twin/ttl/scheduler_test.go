// Copyright (C) 2025 The cement-ai Authors (github.com/xrvnd/cement-ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/> for the full license text.

package ttl

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xrvnd/cement-ai/services/twin/conversation"
)

type countingRecorder struct {
	mu      sync.Mutex
	active  int
	evicted int
	calls   int
}

func (r *countingRecorder) RecordConversations(active, evicted int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active = active
	r.evicted += evicted
	r.calls++
}

func (r *countingRecorder) snapshot() (int, int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active, r.evicted, r.calls
}

func TestRunNow_EvictsIdle(t *testing.T) {
	ctx := context.Background()
	store := conversation.NewMemoryStore(0)
	require.NoError(t, store.Append(ctx, "stale", conversation.Message{Content: "x"}))
	require.NoError(t, store.Append(ctx, "live", conversation.Message{Content: "y"}))

	rec := &countingRecorder{}
	s := NewScheduler(store, rec, SchedulerConfig{IdleTTL: time.Minute}).(*sweeper)

	res, err := s.RunNow(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Evicted)
	assert.Equal(t, 2, res.Remaining)

	s.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	res, err = s.RunNow(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Evicted)
	assert.Equal(t, 0, res.Remaining)

	active, evicted, calls := rec.snapshot()
	assert.Equal(t, 0, active)
	assert.Equal(t, 2, evicted)
	assert.Equal(t, 2, calls)
}

func TestNewScheduler_Defaults(t *testing.T) {
	s := NewScheduler(conversation.NewMemoryStore(0), nil, SchedulerConfig{}).(*sweeper)
	assert.Equal(t, DefaultSchedulerConfig(), s.config)
}

func TestStartStop(t *testing.T) {
	rec := &countingRecorder{}
	s := NewScheduler(conversation.NewMemoryStore(0), rec, SchedulerConfig{Interval: 5 * time.Millisecond})

	require.NoError(t, s.Start(context.Background()))
	assert.Error(t, s.Start(context.Background()))

	assert.Eventually(t, func() bool {
		_, _, calls := rec.snapshot()
		return calls >= 2
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, s.Stop())
	require.NoError(t, s.Stop())

	_, _, before := rec.snapshot()
	time.Sleep(20 * time.Millisecond)
	_, _, after := rec.snapshot()
	assert.Equal(t, before, after)

	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Stop())
}

func TestContextCancelStopsLoop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := NewScheduler(conversation.NewMemoryStore(0), nil, SchedulerConfig{Interval: time.Hour})
	require.NoError(t, s.Start(ctx))
	cancel()

	assert.Eventually(t, func() bool {
		return s.Start(context.Background()) == nil
	}, time.Second, 5*time.Millisecond)
	require.NoError(t, s.Stop())
}
