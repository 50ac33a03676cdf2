// Copyright (C) 2025 The cement-ai Authors (github.com/xrvnd/cement-ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/> for the full license text.

// Package services holds the twin's multi-step business logic. Handlers
// bind and validate requests, then delegate here.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/xrvnd/cement-ai/services/llm"
	"github.com/xrvnd/cement-ai/services/twin/conversation"
	"github.com/xrvnd/cement-ai/services/twin/dashboard"
	"github.com/xrvnd/cement-ai/services/twin/datatypes"
	"github.com/xrvnd/cement-ai/services/twin/knowledge"
	"github.com/xrvnd/cement-ai/services/twin/prompts"
)

var plantGPTTracer = otel.Tracer("cementtwin.services.plantgpt")

// ApologyText replaces the reply when the LLM call fails.
const ApologyText = "I apologize, but I'm experiencing technical difficulties. Please try again."

const (
	chatConfidence = 0.9
	ragResults     = 5
	sourceCount    = 3
	historyWindow  = 5
	suggestionMax  = 3
)

var (
	defaultSuggestions = []string{
		"How can I optimize energy consumption?",
		"What are the best practices for quality control?",
		"How to improve alternate fuel utilization?",
		"What maintenance activities should I prioritize?",
		"How to reduce specific power consumption?",
	}
	kilnSuggestions = []string{
		"How to optimize kiln temperature profile?",
		"What are the signs of refractory wear?",
		"How to improve fuel efficiency in the kiln?",
		"What causes kiln ring formation?",
		"How to control NOx emissions?",
	}
	millSuggestions = []string{
		"How to reduce grinding power consumption?",
		"What affects Blaine fineness control?",
		"How to optimize separator efficiency?",
		"What causes mill vibration issues?",
		"How to improve cement strength?",
	}
	qualitySuggestions = []string{
		"How to control free lime content?",
		"What affects cement setting time?",
		"How to improve compressive strength?",
		"What causes quality variations?",
		"How to implement soft sensors?",
	}
	plantSuggestions = map[string][]string{
		"karnataka": {
			"How can I optimize raw mill efficiency?",
			"What affects grinding media performance?",
			"How to improve power consumption?",
			"Show me Karnataka plant performance",
		},
		"rajasthan": {
			"How can I reduce specific power consumption?",
			"What affects mill throughput?",
			"How to improve energy efficiency?",
			"Show me Rajasthan plant performance",
		},
	}
)

// Suggestions returns up to three follow-up questions keyed on the query.
func Suggestions(query string) []string {
	q := strings.ToLower(query)
	list := defaultSuggestions
	switch {
	case strings.Contains(q, "kiln"):
		list = kilnSuggestions
	case strings.Contains(q, "mill"), strings.Contains(q, "grinding"):
		list = millSuggestions
	case strings.Contains(q, "quality"):
		list = qualitySuggestions
	}
	return firstN(list, suggestionMax)
}

// PlantSuggestions returns the plant-specific follow-ups, falling back to
// the default plant.
func PlantSuggestions(plant string) []string {
	list, ok := plantSuggestions[strings.ToLower(plant)]
	if !ok {
		list = plantSuggestions[dashboard.DefaultPlant]
	}
	return firstN(list, suggestionMax)
}

func firstN(list []string, n int) []string {
	if n > len(list) {
		n = len(list)
	}
	out := make([]string, n)
	copy(out, list[:n])
	return out
}

// =============================================================================
// PlantGPT
// =============================================================================

// PlantGPT answers operator questions with retrieval-augmented prompts.
//
// # Description
//
// Chat records the user turn, optionally retrieves knowledge, renders the
// chat (or plant) prompt, calls the LLM and records the assistant turn with
// its sources. LLM failure is not an error: the reply becomes ApologyText.
//
// # Thread Safety
//
// Safe for concurrent use when its dependencies are.
type PlantGPT struct {
	store     conversation.Store
	retriever knowledge.Retriever
	builder   *prompts.Builder
	client    llm.LLMClient
	params    llm.GenerationParams
}

// NewPlantGPT wires a PlantGPT. retriever may be nil, which disables RAG.
func NewPlantGPT(store conversation.Store, retriever knowledge.Retriever, builder *prompts.Builder, client llm.LLMClient) (*PlantGPT, error) {
	if store == nil || builder == nil || client == nil {
		return nil, errors.New("plantgpt requires a conversation store, prompt builder and llm client")
	}
	return &PlantGPT{store: store, retriever: retriever, builder: builder, client: client}, nil
}

// Store exposes the conversation store for history endpoints.
func (p *PlantGPT) Store() conversation.Store { return p.store }

// Retriever exposes the knowledge retriever, or nil.
func (p *PlantGPT) Retriever() knowledge.Retriever { return p.retriever }

// Chat handles one PlantGPT turn.
//
// # Inputs
//
//   - ctx: Context for cancellation and tracing.
//   - req: Validated chat request.
//
// # Outputs
//
//   - datatypes.ChatResponse: The reply.
//   - error: Non-nil only for store or prompt failures.
func (p *PlantGPT) Chat(ctx context.Context, req datatypes.ChatRequest) (datatypes.ChatResponse, error) {
	ctx, span := plantGPTTracer.Start(ctx, "PlantGPT.Chat")
	defer span.End()

	convID := req.ConversationID
	if convID == "" {
		convID = uuid.NewString()
	}
	useRAG := req.RAGEnabled() && p.retriever != nil
	span.SetAttributes(
		attribute.String("conversation.id", convID),
		attribute.Bool("rag.enabled", useRAG),
	)

	if err := p.store.Append(ctx, convID, conversation.Message{
		Role:    conversation.RoleUser,
		Content: req.Message,
	}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "append user message failed")
		return datatypes.ChatResponse{}, fmt.Errorf("append user message: %w", err)
	}

	var (
		results []knowledge.Result
		sources = []string{}
	)
	if useRAG {
		var err error
		results, err = p.retriever.Search(ctx, req.Message, ragResults)
		if err != nil {
			slog.Warn("Knowledge search failed, answering without context",
				"conversation_id", convID, "error", err)
			span.RecordError(err)
		}
		sources = knowledge.Titles(results, sourceCount)
	}

	prompt, suggestions, err := p.render(ctx, convID, req, results, useRAG)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "render prompt failed")
		return datatypes.ChatResponse{}, err
	}
	if !useRAG && req.Plant != "" {
		sources = []string{titleWord(req.Plant) + " Plant Knowledge Base", "Cement Operations Manual"}
	}

	reply, err := p.client.Generate(ctx, prompt, p.params)
	if err != nil {
		slog.Error("PlantGPT generation failed", "conversation_id", convID, "error", err)
		span.RecordError(err)
		reply = ApologyText
	}

	sourcesMeta := make([]any, len(sources))
	for i, s := range sources {
		sourcesMeta[i] = s
	}
	if err := p.store.Append(ctx, convID, conversation.Message{
		Role:     conversation.RoleAssistant,
		Content:  reply,
		Metadata: map[string]any{"sources": sourcesMeta},
	}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "append assistant message failed")
		return datatypes.ChatResponse{}, fmt.Errorf("append assistant message: %w", err)
	}

	return datatypes.ChatResponse{
		Response:       reply,
		ConversationID: convID,
		Sources:        sources,
		Confidence:     chatConfidence,
		Suggestions:    suggestions,
	}, nil
}

// render chooses between the RAG chat prompt and the plant prompt.
func (p *PlantGPT) render(ctx context.Context, convID string, req datatypes.ChatRequest, results []knowledge.Result, useRAG bool) (string, []string, error) {
	if !useRAG && req.Plant != "" {
		prompt, err := p.builder.Build(prompts.KindPlantGPT, prompts.Data{
			Plant:          strings.ToLower(req.Plant),
			ConversationID: convID,
			Query:          req.Message,
		})
		if err != nil {
			return "", nil, fmt.Errorf("render plantgpt prompt: %w", err)
		}
		return prompt, PlantSuggestions(req.Plant), nil
	}

	history, err := p.store.History(ctx, convID)
	if err != nil {
		return "", nil, fmt.Errorf("load history: %w", err)
	}
	if len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}
	turns := make([]prompts.Turn, 0, len(history))
	for _, m := range history {
		turns = append(turns, prompts.Turn{Role: string(m.Role), Content: m.Content})
	}

	excerpts := make([]prompts.Excerpt, 0, sourceCount)
	for i, r := range results {
		if i == sourceCount {
			break
		}
		excerpts = append(excerpts, prompts.Excerpt{Title: r.Document.Title, Content: r.Document.Content})
	}

	prompt, err := p.builder.Build(prompts.KindChat, prompts.Data{
		Query:     req.Message,
		Context:   req.Context,
		Knowledge: excerpts,
		History:   turns,
	})
	if err != nil {
		return "", nil, fmt.Errorf("render chat prompt: %w", err)
	}
	return prompt, Suggestions(req.Message), nil
}

func titleWord(s string) string {
	s = strings.ToLower(s)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
