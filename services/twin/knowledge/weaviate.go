// Copyright (C) 2025 The cement-ai Authors (github.com/xrvnd/cement-ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/> for the full license text.

package knowledge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"
)

// ClassName is the Weaviate class holding knowledge documents.
const ClassName = "KnowledgeDocument"

// Schema returns the KnowledgeDocument class definition. Vectors are
// supplied by the caller, so the class has no vectorizer.
func Schema() *models.Class {
	filterable := true
	return &models.Class{
		Class:       ClassName,
		Description: "A cement plant operations knowledge document.",
		Vectorizer:  "none",
		Properties: []*models.Property{
			{Name: "doc_id", DataType: []string{"text"}, Tokenization: "field", IndexFilterable: &filterable},
			{Name: "title", DataType: []string{"text"}, Tokenization: "word"},
			{Name: "content", DataType: []string{"text"}, Tokenization: "word"},
			{Name: "category", DataType: []string{"text"}, Tokenization: "field", IndexFilterable: &filterable},
			{Name: "tags", DataType: []string{"text[]"}, Tokenization: "field"},
			{Name: "created_at", DataType: []string{"date"}},
		},
	}
}

// WeaviateRetriever stores documents in Weaviate and searches by
// nearVector using an Embedder.
//
// # Thread Safety
//
// Safe for concurrent use; the underlying client is.
type WeaviateRetriever struct {
	client   *weaviate.Client
	embedder Embedder
	now      func() time.Time
}

// NewWeaviateClient parses rawURL (e.g. "http://weaviate:8080") into a client.
func NewWeaviateClient(rawURL string) (*weaviate.Client, error) {
	scheme, host := "http", rawURL
	if i := strings.Index(rawURL, "://"); i >= 0 {
		scheme, host = rawURL[:i], rawURL[i+3:]
	}
	host = strings.TrimSuffix(host, "/")
	if host == "" {
		return nil, fmt.Errorf("invalid weaviate url %q", rawURL)
	}
	client, err := weaviate.NewClient(weaviate.Config{Host: host, Scheme: scheme})
	if err != nil {
		return nil, fmt.Errorf("create weaviate client: %w", err)
	}
	return client, nil
}

// NewWeaviateRetriever returns a retriever over client.
func NewWeaviateRetriever(client *weaviate.Client, embedder Embedder) (*WeaviateRetriever, error) {
	if client == nil {
		return nil, errors.New("weaviate client is required")
	}
	if embedder == nil {
		return nil, errors.New("embedder is required")
	}
	return &WeaviateRetriever{client: client, embedder: embedder, now: time.Now}, nil
}

// EnsureSchema creates the class if missing and seeds seed documents when
// the class is empty.
func (r *WeaviateRetriever) EnsureSchema(ctx context.Context, seed []Document) error {
	if _, err := r.client.Schema().ClassGetter().WithClassName(ClassName).Do(ctx); err != nil {
		slog.Info("Knowledge class not found, creating", "class", ClassName)
		if err := r.client.Schema().ClassCreator().WithClass(Schema()).Do(ctx); err != nil {
			return fmt.Errorf("create %s class: %w", ClassName, err)
		}
	}

	n, err := r.Len(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	for _, doc := range seed {
		if _, err := r.Add(ctx, doc); err != nil {
			return fmt.Errorf("seed %s: %w", doc.ID, err)
		}
	}
	slog.Info("Seeded knowledge base", "documents", len(seed))
	return nil
}

func (r *WeaviateRetriever) Add(ctx context.Context, doc Document) (string, error) {
	if strings.TrimSpace(doc.Title) == "" || strings.TrimSpace(doc.Content) == "" {
		return "", fmt.Errorf("add document: %w", ErrInvalidDocument)
	}
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = r.now()
	}
	vector, err := r.embedder.Embed(ctx, doc.Title+"\n"+doc.Content, TaskRetrievalDocument)
	if err != nil {
		return "", fmt.Errorf("embed document: %w", err)
	}

	tags := doc.Tags
	if tags == nil {
		tags = []string{}
	}
	_, err = r.client.Data().Creator().
		WithClassName(ClassName).
		WithProperties(map[string]interface{}{
			"doc_id":     doc.ID,
			"title":      doc.Title,
			"content":    doc.Content,
			"category":   doc.Category,
			"tags":       tags,
			"created_at": doc.CreatedAt.UTC().Format(time.RFC3339),
		}).
		WithVector(vector).
		Do(ctx)
	if err != nil {
		return "", fmt.Errorf("store document: %w", err)
	}
	return doc.ID, nil
}

func (r *WeaviateRetriever) Search(ctx context.Context, query string, n int) ([]Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	if n <= 0 {
		n = DefaultResults
	}
	vector, err := r.embedder.Embed(ctx, query, TaskRetrievalQuery)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	nearVector := r.client.GraphQL().NearVectorArgBuilder().WithVector(vector)
	fields := []graphql.Field{
		{Name: "doc_id"},
		{Name: "title"},
		{Name: "content"},
		{Name: "category"},
		{Name: "tags"},
		{Name: "created_at"},
		{Name: "_additional", Fields: []graphql.Field{{Name: "certainty"}}},
	}
	result, err := r.client.GraphQL().Get().
		WithClassName(ClassName).
		WithFields(fields...).
		WithNearVector(nearVector).
		WithLimit(n).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("weaviate search failed: %w", err)
	}
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("weaviate search error: %s", result.Errors[0].Message)
	}
	return parseResults(result), nil
}

func (r *WeaviateRetriever) Len(ctx context.Context) (int, error) {
	result, err := r.client.GraphQL().Aggregate().
		WithClassName(ClassName).
		WithFields(graphql.Field{Name: "meta", Fields: []graphql.Field{{Name: "count"}}}).
		Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	if len(result.Errors) > 0 {
		return 0, fmt.Errorf("count documents: %s", result.Errors[0].Message)
	}
	agg, ok := result.Data["Aggregate"].(map[string]interface{})
	if !ok {
		return 0, nil
	}
	groups, ok := agg[ClassName].([]interface{})
	if !ok || len(groups) == 0 {
		return 0, nil
	}
	group, _ := groups[0].(map[string]interface{})
	meta, _ := group["meta"].(map[string]interface{})
	count, _ := meta["count"].(float64)
	return int(count), nil
}

func parseResults(resp *models.GraphQLResponse) []Result {
	out := []Result{}
	data, ok := resp.Data["Get"].(map[string]interface{})
	if !ok {
		return out
	}
	objects, ok := data[ClassName].([]interface{})
	if !ok {
		return out
	}
	for _, obj := range objects {
		m, ok := obj.(map[string]interface{})
		if !ok {
			continue
		}
		doc := Document{
			ID:       str(m, "doc_id"),
			Title:    str(m, "title"),
			Content:  str(m, "content"),
			Category: str(m, "category"),
			Tags:     []string{},
		}
		if raw, ok := m["tags"].([]interface{}); ok {
			for _, t := range raw {
				if s, ok := t.(string); ok {
					doc.Tags = append(doc.Tags, s)
				}
			}
		}
		if ts := str(m, "created_at"); ts != "" {
			if t, err := time.Parse(time.RFC3339, ts); err == nil {
				doc.CreatedAt = t
			}
		}
		similarity := 0.0
		if additional, ok := m["_additional"].(map[string]interface{}); ok {
			if c, ok := additional["certainty"].(float64); ok {
				similarity = c
			}
		}
		out = append(out, Result{Document: doc, Similarity: similarity})
	}
	return out
}

func str(m map[string]interface{}, key string) string {
	s, _ := m[key].(string)
	return s
}

var _ Retriever = (*WeaviateRetriever)(nil)
