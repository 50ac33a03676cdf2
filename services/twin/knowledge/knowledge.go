// Copyright (C) 2025 The cement-ai Authors (github.com/xrvnd/cement-ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/> for the full license text.

// Package knowledge provides PlantGPT's retrieval layer.
//
// # Description
//
// A Retriever searches a small corpus of plant-operations documents and
// accepts new ones. MemoryRetriever scores by keyword overlap and needs no
// infrastructure. WeaviateRetriever stores documents with caller-supplied
// embeddings and searches by vector similarity.
package knowledge

import (
	"context"
	"errors"
	"time"
)

// ErrEmptyQuery is returned when Search is called with a blank query.
var ErrEmptyQuery = errors.New("query cannot be empty")

// ErrInvalidDocument is returned when a document lacks a title or content.
var ErrInvalidDocument = errors.New("document requires title and content")

// DefaultResults is the search size used when n <= 0.
const DefaultResults = 5

// Document is one knowledge-base entry.
type Document struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Category  string    `json:"category"`
	Tags      []string  `json:"tags"`
	CreatedAt time.Time `json:"created_at"`
}

// Result is a scored search hit. Similarity is in [0, 1].
type Result struct {
	Document   Document `json:"document"`
	Similarity float64  `json:"similarity"`
}

// Retriever searches and extends the knowledge base.
type Retriever interface {
	// Search returns up to n documents ordered by descending similarity.
	Search(ctx context.Context, query string, n int) ([]Result, error)
	// Add stores doc and returns its id.
	Add(ctx context.Context, doc Document) (string, error)
	// Len reports how many documents are stored.
	Len(ctx context.Context) (int, error)
}

// Titles returns the titles of the first n results.
func Titles(results []Result, n int) []string {
	if n > len(results) || n < 0 {
		n = len(results)
	}
	out := make([]string, 0, n)
	for _, r := range results[:n] {
		out = append(out, r.Document.Title)
	}
	return out
}
