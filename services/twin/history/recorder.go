// Copyright (C) 2025 The cement-ai Authors (github.com/xrvnd/cement-ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/> for the full license text.

package history

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/xrvnd/cement-ai/services/twin/sensors"
)

// DefaultInterval is the background refresh cadence.
const DefaultInterval = 30 * time.Second

// Observer is notified after every refresh, typically
// observability.TwinMetrics.
type Observer interface {
	RecordSnapshot(snap sensors.Snapshot)
	RecordHistoryWrite(err error)
}

// Recorder refreshes the sensor store on a ticker and writes each snapshot
// to a Sink.
//
// # Thread Safety
//
// Start, Stop and RunNow are safe for concurrent use.
type Recorder struct {
	store    *sensors.Store
	sink     Sink
	observer Observer
	interval time.Duration

	mu      sync.Mutex
	running bool
	done    chan struct{}
	exited  chan struct{}
}

// NewRecorder builds a Recorder. A nil sink is NopSink; a nil observer is
// ignored; a non-positive interval is DefaultInterval.
func NewRecorder(store *sensors.Store, sink Sink, observer Observer, interval time.Duration) *Recorder {
	if sink == nil {
		sink = NopSink{}
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Recorder{store: store, sink: sink, observer: observer, interval: interval}
}

// Start launches the refresh loop.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return fmt.Errorf("history recorder is already running")
	}
	r.running = true
	r.done = make(chan struct{})
	r.exited = make(chan struct{})
	done, exited := r.done, r.exited
	r.mu.Unlock()

	slog.Info("Background sensor refresh starting", "interval", r.interval.String())
	go r.runLoop(ctx, done, exited)
	return nil
}

// Stop ends the loop and waits for it. Calling it on a stopped Recorder
// is a no-op.
func (r *Recorder) Stop() error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	close(r.done)
	r.running = false
	exited := r.exited
	r.mu.Unlock()

	<-exited
	slog.Info("Background sensor refresh stopped")
	return nil
}

// RunNow refreshes every sensor once and writes the snapshot.
func (r *Recorder) RunNow(ctx context.Context) (sensors.Snapshot, error) {
	snap := r.store.RefreshAll()
	err := r.sink.Write(ctx, snap)
	if r.observer != nil {
		r.observer.RecordSnapshot(snap)
		r.observer.RecordHistoryWrite(err)
	}
	if err != nil {
		return snap, fmt.Errorf("record snapshot: %w", err)
	}
	return snap, nil
}

func (r *Recorder) runLoop(ctx context.Context, done <-chan struct{}, exited chan<- struct{}) {
	defer close(exited)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.mu.Lock()
			r.running = false
			r.mu.Unlock()
			return
		case <-done:
			return
		case <-ticker.C:
			if _, err := r.RunNow(ctx); err != nil {
				slog.Warn("Background sensor refresh failed", "error", err)
			}
		}
	}
}
