// Copyright (C) 2025 The cement-ai Authors (github.com/xrvnd/cement-ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/> for the full license text.

package datatypes

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateRequest_Validate(t *testing.T) {
	assert.Error(t, (&GenerateRequest{}).Validate())
	assert.NoError(t, (&GenerateRequest{Prompt: "kiln?"}).Validate())
	assert.Error(t, (&GenerateRequest{Prompt: strings.Repeat("x", MaxPromptBytes+1)}).Validate())
}

func TestChatRequest_Validate(t *testing.T) {
	assert.Error(t, (&ChatRequest{}).Validate())
	assert.NoError(t, (&ChatRequest{Message: "hi"}).Validate())
	assert.Error(t, (&ChatRequest{Message: "hi", ConversationID: "a/b"}).Validate())
}

func TestChatRequest_ConversationID(t *testing.T) {
	tests := []struct {
		id    string
		valid bool
	}{
		{"", true},
		{"shift-3", true},
		{"7f9c2d1e-uuid", true},
		{"shift 3", false},
		{"shift\t3", false},
		{"shift\n3", false},
		{"a/b", false},
		{strings.Repeat("c", 129), false},
	}
	for _, tt := range tests {
		err := (&ChatRequest{Message: "hi", ConversationID: tt.id}).Validate()
		if tt.valid {
			assert.NoError(t, err, "id %q", tt.id)
		} else {
			assert.Error(t, err, "id %q", tt.id)
		}
	}
}

func TestChatRequest_RAGDefaultsOn(t *testing.T) {
	r := ChatRequest{Message: "hi"}
	assert.True(t, r.RAGEnabled())
	off := false
	r.UseRAG = &off
	assert.False(t, r.RAGEnabled())
}

func TestKnowledgeRequests_Validate(t *testing.T) {
	assert.Error(t, (&KnowledgeSearchRequest{Query: "kiln", NResults: 51}).Validate())
	assert.NoError(t, (&KnowledgeSearchRequest{Query: "kiln"}).Validate())
	assert.Error(t, (&KnowledgeAddRequest{Title: "t"}).Validate())
	assert.NoError(t, (&KnowledgeAddRequest{Title: "t", Content: "c", Tags: []string{"a"}}).Validate())
}

func TestAnalysisRequest_Defaults(t *testing.T) {
	r := AnalysisRequest{}
	r.EnsureDefaults()
	assert.Equal(t, "comprehensive", r.AnalysisType)
	assert.True(t, *r.IncludeSensors)
	assert.NoError(t, r.Validate())
}

func TestAgentTaskRequest_SensorsIncluded(t *testing.T) {
	assert.True(t, (&AgentTaskRequest{}).SensorsIncluded())
	no := false
	assert.False(t, (&AgentTaskRequest{IncludeSensors: &no}).SensorsIncluded())
}
