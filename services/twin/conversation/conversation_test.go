// Copyright (C) 2025 The cement-ai Authors (github.com/xrvnd/cement-ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/> for the full license text.

package conversation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xrvnd/cement-ai/pkg/validation"
)

type storeFactory func(t *testing.T, maxMessages int) Store

func factories() map[string]storeFactory {
	return map[string]storeFactory{
		"memory": func(t *testing.T, maxMessages int) Store {
			return NewMemoryStore(maxMessages)
		},
		"badger": func(t *testing.T, maxMessages int) Store {
			s, err := OpenBadgerStore(BadgerConfig{InMemory: true, MaxMessages: maxMessages})
			require.NoError(t, err)
			t.Cleanup(func() { _ = s.Close() })
			return s
		},
	}
}

func TestStore_AppendPreservesOrder(t *testing.T) {
	for name, mk := range factories() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := mk(t, 0)
			for i := 0; i < 12; i++ {
				require.NoError(t, s.Append(ctx, "c1", Message{Role: RoleUser, Content: fmt.Sprintf("m%d", i)}))
			}
			hist, err := s.History(ctx, "c1")
			require.NoError(t, err)
			require.Len(t, hist, 12)
			for i, m := range hist {
				assert.Equal(t, fmt.Sprintf("m%d", i), m.Content)
				assert.False(t, m.Timestamp.IsZero())
			}
			assert.Equal(t, 1, s.Count())
		})
	}
}

func TestStore_UnknownHistoryIsEmpty(t *testing.T) {
	for name, mk := range factories() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := mk(t, 0)
			hist, err := s.History(ctx, "missing")
			require.NoError(t, err)
			assert.NotNil(t, hist)
			assert.Empty(t, hist)

			_, err = s.Info(ctx, "missing")
			assert.True(t, errors.Is(err, ErrNotFound))
		})
	}
}

func TestStore_EmptyIDRejected(t *testing.T) {
	for name, mk := range factories() {
		t.Run(name, func(t *testing.T) {
			err := mk(t, 0).Append(context.Background(), "", Message{Content: "x"})
			assert.True(t, errors.Is(err, ErrEmptyID))
		})
	}
}

func TestStore_Clear(t *testing.T) {
	for name, mk := range factories() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := mk(t, 0)
			require.NoError(t, s.Append(ctx, "a", Message{Role: RoleUser, Content: "hi"}))
			require.NoError(t, s.Append(ctx, "b", Message{Role: RoleUser, Content: "yo"}))

			require.NoError(t, s.Clear(ctx, "a"))
			hist, err := s.History(ctx, "a")
			require.NoError(t, err)
			assert.Empty(t, hist)
			assert.Equal(t, 1, s.Count())

			require.NoError(t, s.Clear(ctx, "never-existed"))
		})
	}
}

// TestStore_CapKeepsNewest appends past the cap and checks the oldest
// messages are dropped.
func TestStore_CapKeepsNewest(t *testing.T) {
	for name, mk := range factories() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := mk(t, 5)
			for i := 0; i < 9; i++ {
				require.NoError(t, s.Append(ctx, "c", Message{Role: RoleAssistant, Content: fmt.Sprintf("%d", i)}))
			}
			hist, err := s.History(ctx, "c")
			require.NoError(t, err)
			require.Len(t, hist, 5)
			assert.Equal(t, "4", hist[0].Content)
			assert.Equal(t, "8", hist[4].Content)

			info, err := s.Info(ctx, "c")
			require.NoError(t, err)
			assert.Equal(t, 5, info.Messages)
		})
	}
}

func TestStore_EvictIdle(t *testing.T) {
	for name, mk := range factories() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := mk(t, 0)
			require.NoError(t, s.Append(ctx, "old", Message{Content: "x"}))
			cutoff := time.Now().Add(time.Millisecond)
			time.Sleep(5 * time.Millisecond)
			require.NoError(t, s.Append(ctx, "fresh", Message{Content: "y"}))

			n, err := s.EvictIdle(ctx, cutoff)
			require.NoError(t, err)
			assert.Equal(t, 1, n)
			assert.Equal(t, 1, s.Count())

			hist, err := s.History(ctx, "old")
			require.NoError(t, err)
			assert.Empty(t, hist)
			hist, err = s.History(ctx, "fresh")
			require.NoError(t, err)
			assert.Len(t, hist, 1)
		})
	}
}

func TestStore_HistoryIsCopy(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(0)
	require.NoError(t, s.Append(ctx, "c", Message{Content: "orig"}))
	hist, err := s.History(ctx, "c")
	require.NoError(t, err)
	hist[0].Content = "mutated"

	again, err := s.History(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, "orig", again[0].Content)
}

func TestMemoryStore_ConcurrentAppends(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(0)
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				_ = s.Append(ctx, "shared", Message{Content: fmt.Sprintf("%d-%d", i, j)})
			}
		}(i)
	}
	wg.Wait()
	hist, err := s.History(ctx, "shared")
	require.NoError(t, err)
	assert.Len(t, hist, 100)
}

func TestBadgerStore_MetadataRoundTrip(t *testing.T) {
	s, err := OpenBadgerStore(BadgerConfig{InMemory: true})
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.Append(ctx, "c", Message{
		Role:     RoleAssistant,
		Content:  "answer",
		Metadata: map[string]any{"sources": []any{"Kiln Operations"}},
	}))
	hist, err := s.History(ctx, "c")
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, []any{"Kiln Operations"}, hist[0].Metadata["sources"])
}

func TestStore_RejectsUnsafeIDs(t *testing.T) {
	for name, mk := range factories() {
		t.Run(name, func(t *testing.T) {
			s := mk(t, 0)
			for _, id := range []string{"a/b", "shift 3", "shift\t3"} {
				err := s.Append(context.Background(), id, Message{Content: "x"})
				assert.ErrorIs(t, err, validation.ErrInvalidIdentifier, "id %q", id)
			}
			assert.Zero(t, s.Count())
		})
	}
}

func TestBadgerStore_RejectsSlashInID(t *testing.T) {
	s, err := OpenBadgerStore(BadgerConfig{InMemory: true})
	require.NoError(t, err)
	defer s.Close()
	assert.Error(t, s.Append(context.Background(), "a/b", Message{Content: "x"}))
}

func TestOpenBadgerStore_RequiresPath(t *testing.T) {
	_, err := OpenBadgerStore(BadgerConfig{})
	assert.Error(t, err)
}
