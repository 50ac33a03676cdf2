// Copyright (C) 2025 The cement-ai Authors (github.com/xrvnd/cement-ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/> for the full license text.

package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/xrvnd/cement-ai/pkg/validation"
)

// BadgerConfig configures a BadgerStore.
type BadgerConfig struct {
	// Path is the database directory. Ignored when InMemory is true.
	Path string
	// InMemory keeps everything in RAM, for tests.
	InMemory bool
	// MaxMessages caps each conversation. <= 0 uses DefaultMaxMessages.
	MaxMessages int
	// Logger receives badger's internal logs. Nil silences them.
	Logger *slog.Logger
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// badgerMeta tracks per-conversation sequencing and activity.
type badgerMeta struct {
	NextSeq    uint64    `json:"next_seq"`
	Count      int       `json:"count"`
	LastActive time.Time `json:"last_active"`
}

const (
	msgPrefix  = "conv/"
	metaPrefix = "meta/"
)

func msgKeyPrefix(id string) []byte { return []byte(msgPrefix + id + "/") }

func msgKey(id string, seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%s/%020d", msgPrefix, id, seq))
}

func metaKey(id string) []byte { return []byte(metaPrefix + id) }

// BadgerStore persists conversations in an embedded BadgerDB.
//
// # Description
//
// Messages live under conv/<id>/<seq> as JSON; meta/<id> holds the next
// sequence number, message count and last activity time. Appends and the
// cap trim happen in a single transaction.
//
// # Thread Safety
//
// Safe for concurrent use; conflicting appends surface badger.ErrConflict
// and are retried once.
type BadgerStore struct {
	db          *badger.DB
	maxMessages int
	now         func() time.Time
}

// OpenBadgerStore opens or creates the database described by cfg.
func OpenBadgerStore(cfg BadgerConfig) (*BadgerStore, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, errors.New("badger path is required for persistent mode")
		}
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create badger directory: %w", err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}
	opts = opts.WithNumVersionsToKeep(1)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	maxMessages := cfg.MaxMessages
	if maxMessages <= 0 {
		maxMessages = DefaultMaxMessages
	}
	return &BadgerStore{db: db, maxMessages: maxMessages, now: time.Now}, nil
}

func (s *BadgerStore) Append(ctx context.Context, id string, msg Message) error {
	if id == "" {
		return ErrEmptyID
	}
	if err := validation.ValidateConversationID(id); err != nil {
		return err
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = s.now()
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	err = s.appendTxn(ctx, id, payload)
	if errors.Is(err, badger.ErrConflict) {
		err = s.appendTxn(ctx, id, payload)
	}
	return err
}

func (s *BadgerStore) appendTxn(ctx context.Context, id string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		meta, err := readMeta(txn, id)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		if err := txn.Set(msgKey(id, meta.NextSeq), payload); err != nil {
			return err
		}
		meta.NextSeq++
		meta.Count++
		meta.LastActive = s.now()

		if over := meta.Count - s.maxMessages; over > 0 {
			keys, err := collectKeys(txn, msgKeyPrefix(id), over)
			if err != nil {
				return err
			}
			for _, k := range keys {
				if err := txn.Delete(k); err != nil {
					return err
				}
			}
			meta.Count -= len(keys)
		}
		return writeMeta(txn, id, meta)
	})
}

func (s *BadgerStore) History(ctx context.Context, id string) ([]Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]Message, 0)
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := msgKeyPrefix(id)
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix, PrefetchValues: true, PrefetchSize: 50})
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var m Message
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &m)
			}); err != nil {
				return fmt.Errorf("decode message: %w", err)
			}
			out = append(out, m)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *BadgerStore) Info(ctx context.Context, id string) (Info, error) {
	if err := ctx.Err(); err != nil {
		return Info{}, err
	}
	var meta badgerMeta
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		meta, err = readMeta(txn, id)
		return err
	})
	if err != nil {
		return Info{}, err
	}
	return Info{ID: id, Messages: meta.Count, LastActive: meta.LastActive}, nil
}

func (s *BadgerStore) Clear(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return deleteConversation(txn, id)
	})
}

func (s *BadgerStore) Count() int {
	n := 0
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := []byte(metaPrefix)
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix})
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			n++
		}
		return nil
	})
	if err != nil {
		slog.Warn("Failed to count conversations", "error", err)
	}
	return n
}

func (s *BadgerStore) EvictIdle(ctx context.Context, olderThan time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	var stale []string
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := []byte(metaPrefix)
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix, PrefetchValues: true})
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			var meta badgerMeta
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &meta)
			}); err != nil {
				return err
			}
			if meta.LastActive.Before(olderThan) {
				stale = append(stale, strings.TrimPrefix(string(item.Key()), metaPrefix))
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("scan conversations: %w", err)
	}

	evicted := 0
	for _, id := range stale {
		if err := ctx.Err(); err != nil {
			return evicted, err
		}
		if err := s.db.Update(func(txn *badger.Txn) error {
			return deleteConversation(txn, id)
		}); err != nil {
			return evicted, fmt.Errorf("evict %s: %w", id, err)
		}
		evicted++
	}
	return evicted, nil
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}

func readMeta(txn *badger.Txn, id string) (badgerMeta, error) {
	var meta badgerMeta
	item, err := txn.Get(metaKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return meta, ErrNotFound
	}
	if err != nil {
		return meta, err
	}
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &meta)
	})
	return meta, err
}

func writeMeta(txn *badger.Txn, id string, meta badgerMeta) error {
	raw, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	return txn.Set(metaKey(id), raw)
}

// collectKeys returns up to limit keys under prefix; limit <= 0 means all.
func collectKeys(txn *badger.Txn, prefix []byte, limit int) ([][]byte, error) {
	it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix})
	defer it.Close()
	var keys [][]byte
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
		if limit > 0 && len(keys) >= limit {
			break
		}
	}
	return keys, nil
}

func deleteConversation(txn *badger.Txn, id string) error {
	keys, err := collectKeys(txn, msgKeyPrefix(id), 0)
	if err != nil {
		return err
	}
	for _, k := range keys {
		if err := txn.Delete(k); err != nil {
			return err
		}
	}
	if err := txn.Delete(metaKey(id)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
		return err
	}
	return nil
}

var _ Store = (*BadgerStore)(nil)
