// Copyright (C) 2025 The cement-ai Authors (github.com/xrvnd/cement-ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/> for the full license text.

package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xrvnd/cement-ai/services/llm"
	"github.com/xrvnd/cement-ai/services/twin/conversation"
	"github.com/xrvnd/cement-ai/services/twin/datatypes"
	"github.com/xrvnd/cement-ai/services/twin/knowledge"
	"github.com/xrvnd/cement-ai/services/twin/prompts"
)

type mockLLM struct {
	reply   string
	err     error
	prompts []string
}

func (m *mockLLM) Generate(_ context.Context, prompt string, _ llm.GenerationParams) (string, error) {
	m.prompts = append(m.prompts, prompt)
	return m.reply, m.err
}

func newPlantGPT(t *testing.T, client llm.LLMClient, retriever knowledge.Retriever) (*PlantGPT, conversation.Store) {
	t.Helper()
	builder, err := prompts.NewBuilder(prompts.Config{PlantName: "JK Cement Plant", PlantLocation: "India"})
	require.NoError(t, err)
	store := conversation.NewMemoryStore(0)
	p, err := NewPlantGPT(store, retriever, builder, client)
	require.NoError(t, err)
	return p, store
}

func TestSuggestions(t *testing.T) {
	assert.Equal(t, "How to optimize kiln temperature profile?", Suggestions("Kiln is hot")[0])
	assert.Equal(t, "How to reduce grinding power consumption?", Suggestions("grinding media")[0])
	assert.Equal(t, "How to control free lime content?", Suggestions("QUALITY drift")[0])
	assert.Equal(t, "How can I optimize energy consumption?", Suggestions("hello")[0])
	assert.Len(t, Suggestions("hello"), 3)
}

func TestPlantSuggestions(t *testing.T) {
	assert.Equal(t, "How can I reduce specific power consumption?", PlantSuggestions("Rajasthan")[0])
	assert.Equal(t, PlantSuggestions("karnataka"), PlantSuggestions("mars"))
	assert.Len(t, PlantSuggestions("karnataka"), 3)
}

// TestChat_RAG checks retrieval feeds the prompt and sources, and both
// turns are recorded.
func TestChat_RAG(t *testing.T) {
	client := &mockLLM{reply: "Lower the fuel rate."}
	p, store := newPlantGPT(t, client, knowledge.NewMemoryRetriever(knowledge.Builtin()))

	resp, err := p.Chat(context.Background(), datatypes.ChatRequest{Message: "How do I run the kiln clinker zone?"})
	require.NoError(t, err)

	assert.NotEmpty(t, resp.ConversationID)
	assert.Equal(t, "Lower the fuel rate.", resp.Response)
	assert.Equal(t, 0.9, resp.Confidence)
	require.NotEmpty(t, resp.Sources)
	assert.LessOrEqual(t, len(resp.Sources), 3)
	assert.Equal(t, "Rotary Kiln Operations Fundamentals", resp.Sources[0])
	assert.Equal(t, "How to optimize kiln temperature profile?", resp.Suggestions[0])

	require.Len(t, client.prompts, 1)
	assert.Contains(t, client.prompts[0], "Source: Rotary Kiln Operations Fundamentals")
	assert.Contains(t, client.prompts[0], "CURRENT QUERY: How do I run the kiln clinker zone?")

	hist, err := store.History(context.Background(), resp.ConversationID)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, conversation.RoleUser, hist[0].Role)
	assert.Equal(t, conversation.RoleAssistant, hist[1].Role)
	assert.NotNil(t, hist[1].Metadata["sources"])
}

func TestChat_ReusesConversation(t *testing.T) {
	client := &mockLLM{reply: "ok"}
	p, store := newPlantGPT(t, client, nil)
	ctx := context.Background()

	first, err := p.Chat(ctx, datatypes.ChatRequest{Message: "first question", ConversationID: "conv-1"})
	require.NoError(t, err)
	assert.Equal(t, "conv-1", first.ConversationID)
	assert.Empty(t, first.Sources)

	_, err = p.Chat(ctx, datatypes.ChatRequest{Message: "second question", ConversationID: "conv-1"})
	require.NoError(t, err)
	assert.Contains(t, client.prompts[1], "user: first question")

	hist, err := store.History(ctx, "conv-1")
	require.NoError(t, err)
	assert.Len(t, hist, 4)
}

func TestChat_LLMFailureApologizes(t *testing.T) {
	p, store := newPlantGPT(t, &mockLLM{err: errors.New("upstream down")}, nil)
	resp, err := p.Chat(context.Background(), datatypes.ChatRequest{Message: "hi"})
	require.NoError(t, err)
	assert.Equal(t, ApologyText, resp.Response)

	hist, err := store.History(context.Background(), resp.ConversationID)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, ApologyText, hist[1].Content)
}

func TestChat_PlantPromptWhenRAGOff(t *testing.T) {
	client := &mockLLM{reply: "plant answer"}
	p, _ := newPlantGPT(t, client, knowledge.NewMemoryRetriever(knowledge.Builtin()))
	off := false

	resp, err := p.Chat(context.Background(), datatypes.ChatRequest{
		Message: "status?", Plant: "Rajasthan", UseRAG: &off,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Rajasthan Plant Knowledge Base", "Cement Operations Manual"}, resp.Sources)
	assert.Equal(t, PlantSuggestions("rajasthan"), resp.Suggestions)
	assert.Contains(t, client.prompts[0], "Plant Location: Rajasthan")
}

func TestNewPlantGPT_RequiresDependencies(t *testing.T) {
	_, err := NewPlantGPT(nil, nil, nil, nil)
	assert.Error(t, err)
}
