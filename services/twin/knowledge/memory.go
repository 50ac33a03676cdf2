// Copyright (C) 2025 The cement-ai Authors (github.com/xrvnd/cement-ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/> for the full license text.

package knowledge

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/google/uuid"
)

const (
	titleWeight   = 3.0
	tagWeight     = 2.0
	contentWeight = 1.0
)

var stopwords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "how": {}, "what": {}, "are": {},
	"can": {}, "with": {}, "from": {}, "this": {}, "that": {}, "our": {},
	"does": {}, "should": {}, "into": {}, "about": {}, "why": {}, "which": {},
}

type indexedDoc struct {
	doc     Document
	title   map[string]struct{}
	tags    map[string]struct{}
	content map[string]struct{}
}

// MemoryRetriever ranks documents by weighted keyword overlap.
//
// # Description
//
// Each query term scores 3 for a title hit, 2 for a tag hit and 1 for a
// content hit. Similarity is the score divided by the best possible score
// for the query, so it lies in [0, 1]. Documents with no hits are omitted.
//
// # Thread Safety
//
// Safe for concurrent use.
type MemoryRetriever struct {
	mu   sync.RWMutex
	docs []indexedDoc
	now  func() time.Time
}

// NewMemoryRetriever returns a retriever seeded with docs.
func NewMemoryRetriever(docs []Document) *MemoryRetriever {
	r := &MemoryRetriever{now: time.Now}
	for _, d := range docs {
		r.docs = append(r.docs, index(d))
	}
	return r
}

func (r *MemoryRetriever) Search(ctx context.Context, query string, n int) ([]Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	terms := Terms(query)
	if len(terms) == 0 {
		return nil, ErrEmptyQuery
	}
	if n <= 0 {
		n = DefaultResults
	}
	best := float64(len(terms)) * (titleWeight + tagWeight + contentWeight)

	r.mu.RLock()
	results := make([]Result, 0, len(r.docs))
	for _, d := range r.docs {
		score := 0.0
		for _, t := range terms {
			if _, ok := d.title[t]; ok {
				score += titleWeight
			}
			if _, ok := d.tags[t]; ok {
				score += tagWeight
			}
			if _, ok := d.content[t]; ok {
				score += contentWeight
			}
		}
		if score > 0 {
			results = append(results, Result{Document: d.doc, Similarity: score / best})
		}
	}
	r.mu.RUnlock()

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})
	if len(results) > n {
		results = results[:n]
	}
	return results, nil
}

func (r *MemoryRetriever) Add(ctx context.Context, doc Document) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if strings.TrimSpace(doc.Title) == "" || strings.TrimSpace(doc.Content) == "" {
		return "", fmt.Errorf("add document: %w", ErrInvalidDocument)
	}
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = r.now()
	}
	r.mu.Lock()
	r.docs = append(r.docs, index(doc))
	r.mu.Unlock()
	return doc.ID, nil
}

func (r *MemoryRetriever) Len(context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.docs), nil
}

// Terms lowercases s and splits it into searchable words, dropping short
// words and stopwords. Underscored tags split the same way.
func Terms(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]struct{}, len(fields))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) < 3 {
			continue
		}
		if _, stop := stopwords[f]; stop {
			continue
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

func index(d Document) indexedDoc {
	return indexedDoc{
		doc:     d,
		title:   termSet(d.Title),
		tags:    termSet(strings.Join(d.Tags, " ")),
		content: termSet(d.Content),
	}
}

func termSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, t := range Terms(s) {
		set[t] = struct{}{}
	}
	return set
}

var _ Retriever = (*MemoryRetriever)(nil)
