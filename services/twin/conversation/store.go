// Copyright (C) 2025 The cement-ai Authors (github.com/xrvnd/cement-ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/> for the full license text.

// Package conversation stores PlantGPT chat histories.
//
// # Description
//
// A Store keeps an ordered message list per conversation id. Histories are
// capped at MaxMessages (oldest dropped first) and conversations idle past a
// cutoff can be evicted with EvictIdle, which the ttl scheduler drives.
package conversation

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Info for unknown conversation ids. History of
// an unknown id is an empty slice, not an error.
var ErrNotFound = errors.New("conversation not found")

// ErrEmptyID is returned when a conversation id is blank.
var ErrEmptyID = errors.New("conversation id is empty")

// DefaultMaxMessages caps each conversation.
const DefaultMaxMessages = 200

// Role is the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is one chat turn.
type Message struct {
	Role      Role           `json:"role"`
	Content   string         `json:"content"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Info summarizes a stored conversation.
type Info struct {
	ID         string    `json:"id"`
	Messages   int       `json:"messages"`
	LastActive time.Time `json:"last_active"`
}

// Store is the conversation persistence contract.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type Store interface {
	// Append adds msg to the end of id's history, creating it if needed.
	Append(ctx context.Context, id string, msg Message) error
	// History returns a copy of id's messages in insertion order.
	History(ctx context.Context, id string) ([]Message, error)
	// Info returns summary data or ErrNotFound.
	Info(ctx context.Context, id string) (Info, error)
	// Clear removes id's history. Clearing an unknown id is not an error.
	Clear(ctx context.Context, id string) error
	// Count returns the number of live conversations.
	Count() int
	// EvictIdle removes conversations last active before olderThan.
	EvictIdle(ctx context.Context, olderThan time.Time) (int, error)
	// Close releases resources.
	Close() error
}
