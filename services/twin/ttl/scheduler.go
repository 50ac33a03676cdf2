// Copyright (C) 2025 The cement-ai Authors (github.com/xrvnd/cement-ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/> for the full license text.

// Package ttl evicts idle PlantGPT conversations on a schedule.
package ttl

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/xrvnd/cement-ai/services/twin/conversation"
)

// =============================================================================
// Interfaces
// =============================================================================

// Scheduler runs conversation eviction in the background.
type Scheduler interface {
	// Start launches the loop. It returns an error if already running.
	Start(ctx context.Context) error
	// Stop signals the loop to exit and waits for it. Safe to call twice.
	Stop() error
	// RunNow performs one sweep synchronously.
	RunNow(ctx context.Context) (SweepResult, error)
}

// Recorder receives sweep outcomes, typically observability.TwinMetrics.
type Recorder interface {
	RecordConversations(active, evicted int)
}

// SweepResult summarizes one eviction cycle.
type SweepResult struct {
	Cutoff    time.Time
	Evicted   int
	Remaining int
	Duration  time.Duration
}

// =============================================================================
// Conversation Sweeper
// =============================================================================

// SchedulerConfig configures the sweeper.
//
// # Fields
//
//   - Interval: How often to sweep. Default: 5 minutes.
//   - IdleTTL: Conversations inactive longer than this are evicted.
//     Default: 1 hour.
type SchedulerConfig struct {
	Interval time.Duration
	IdleTTL  time.Duration
}

// DefaultSchedulerConfig returns the default sweep cadence.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Interval: 5 * time.Minute,
		IdleTTL:  time.Hour,
	}
}

// sweeper uses the ticker + done channel pattern.
//
// # Thread Safety
//
// All public methods are thread-safe; a mutex guards state transitions.
type sweeper struct {
	store    conversation.Store
	recorder Recorder
	config   SchedulerConfig
	now      func() time.Time

	mu      sync.Mutex
	running bool
	done    chan struct{}
	exited  chan struct{}
}

// NewScheduler returns a sweeper over store. recorder may be nil.
func NewScheduler(store conversation.Store, recorder Recorder, config SchedulerConfig) Scheduler {
	defaults := DefaultSchedulerConfig()
	if config.Interval <= 0 {
		config.Interval = defaults.Interval
	}
	if config.IdleTTL <= 0 {
		config.IdleTTL = defaults.IdleTTL
	}
	return &sweeper{
		store:    store,
		recorder: recorder,
		config:   config,
		now:      time.Now,
	}
}

func (s *sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler is already running")
	}
	s.running = true
	s.done = make(chan struct{})
	s.exited = make(chan struct{})
	done, exited := s.done, s.exited
	s.mu.Unlock()

	slog.Info("Conversation sweeper starting",
		"interval", s.config.Interval.String(),
		"idle_ttl", s.config.IdleTTL.String(),
	)
	go s.runLoop(ctx, done, exited)
	return nil
}

func (s *sweeper) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	slog.Info("Conversation sweeper stopping")
	close(s.done)
	s.running = false
	exited := s.exited
	s.mu.Unlock()

	<-exited
	return nil
}

func (s *sweeper) RunNow(ctx context.Context) (SweepResult, error) {
	started := s.now()
	cutoff := started.Add(-s.config.IdleTTL)
	evicted, err := s.store.EvictIdle(ctx, cutoff)
	result := SweepResult{
		Cutoff:    cutoff,
		Evicted:   evicted,
		Remaining: s.store.Count(),
		Duration:  s.now().Sub(started),
	}
	if s.recorder != nil {
		s.recorder.RecordConversations(result.Remaining, evicted)
	}
	if err != nil {
		return result, fmt.Errorf("evict idle conversations: %w", err)
	}
	return result, nil
}

func (s *sweeper) runLoop(ctx context.Context, done <-chan struct{}, exited chan<- struct{}) {
	defer close(exited)
	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Conversation sweeper stopped (context cancelled)")
			s.mu.Lock()
			s.running = false
			s.mu.Unlock()
			return
		case <-done:
			slog.Info("Conversation sweeper stopped (stop requested)")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// sweep runs one cycle and logs instead of returning errors.
func (s *sweeper) sweep(ctx context.Context) {
	result, err := s.RunNow(ctx)
	if err != nil {
		slog.Error("Conversation sweep failed", "error", err)
		return
	}
	if result.Evicted > 0 {
		slog.Info("Conversation sweep completed",
			"evicted", result.Evicted,
			"remaining", result.Remaining,
			"duration_ms", result.Duration.Milliseconds(),
		)
	} else {
		slog.Debug("Conversation sweep completed (nothing idle)")
	}
}
