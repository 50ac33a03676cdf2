// Copyright (C) 2025 The cement-ai Authors (github.com/xrvnd/cement-ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/> for the full license text.

package conversation

import (
	"context"
	"sync"
	"time"

	"github.com/xrvnd/cement-ai/pkg/validation"
)

type memoryEntry struct {
	messages   []Message
	lastActive time.Time
}

// MemoryStore keeps conversations in a mutex-guarded map.
type MemoryStore struct {
	mu          sync.RWMutex
	convs       map[string]*memoryEntry
	maxMessages int
	now         func() time.Time
}

// NewMemoryStore returns an empty store. maxMessages <= 0 uses
// DefaultMaxMessages.
func NewMemoryStore(maxMessages int) *MemoryStore {
	if maxMessages <= 0 {
		maxMessages = DefaultMaxMessages
	}
	return &MemoryStore{
		convs:       make(map[string]*memoryEntry),
		maxMessages: maxMessages,
		now:         time.Now,
	}
}

func (s *MemoryStore) Append(_ context.Context, id string, msg Message) error {
	if id == "" {
		return ErrEmptyID
	}
	if err := validation.ValidateConversationID(id); err != nil {
		return err
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = s.now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.convs[id]
	if !ok {
		e = &memoryEntry{}
		s.convs[id] = e
	}
	e.messages = append(e.messages, msg)
	if over := len(e.messages) - s.maxMessages; over > 0 {
		e.messages = append(e.messages[:0], e.messages[over:]...)
	}
	e.lastActive = s.now()
	return nil
}

func (s *MemoryStore) History(_ context.Context, id string) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.convs[id]
	if !ok {
		return []Message{}, nil
	}
	out := make([]Message, len(e.messages))
	copy(out, e.messages)
	return out, nil
}

func (s *MemoryStore) Info(_ context.Context, id string) (Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.convs[id]
	if !ok {
		return Info{}, ErrNotFound
	}
	return Info{ID: id, Messages: len(e.messages), LastActive: e.lastActive}, nil
}

func (s *MemoryStore) Clear(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.convs, id)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.convs)
}

func (s *MemoryStore) EvictIdle(_ context.Context, olderThan time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	evicted := 0
	for id, e := range s.convs {
		if e.lastActive.Before(olderThan) {
			delete(s.convs, id)
			evicted++
		}
	}
	return evicted, nil
}

func (s *MemoryStore) Close() error { return nil }

var _ Store = (*MemoryStore)(nil)
