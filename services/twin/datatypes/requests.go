// Copyright (C) 2025 The cement-ai Authors (github.com/xrvnd/cement-ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/> for the full license text.

// Package datatypes holds the JSON request and response bodies of the twin
// HTTP API.
package datatypes

import (
	"github.com/go-playground/validator/v10"

	"github.com/xrvnd/cement-ai/pkg/validation"
)

// MaxPromptBytes bounds free-form prompt and chat message bodies.
const MaxPromptBytes = 32 * 1024

// =============================================================================
// Shared Validator Instance
// =============================================================================

var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("maxbytes", func(fl validator.FieldLevel) bool {
		return len(fl.Field().String()) <= MaxPromptBytes
	})
	_ = validate.RegisterValidation("conversation_id", func(fl validator.FieldLevel) bool {
		return validation.ValidateConversationID(fl.Field().String()) == nil
	})
}

// =============================================================================
// Analysis
// =============================================================================

// AnalysisRequest is the body of POST /api/ai/analyze.
type AnalysisRequest struct {
	AnalysisType   string `json:"analysis_type"`
	IncludeSensors *bool  `json:"include_sensors"`
	CustomPrompt   string `json:"custom_prompt" validate:"maxbytes"`
}

// Validate checks field constraints.
func (r *AnalysisRequest) Validate() error { return validate.Struct(r) }

// EnsureDefaults fills analysis_type and include_sensors.
func (r *AnalysisRequest) EnsureDefaults() {
	if r.AnalysisType == "" {
		r.AnalysisType = "comprehensive"
	}
	if r.IncludeSensors == nil {
		t := true
		r.IncludeSensors = &t
	}
}

// GenerateRequest is the body of POST /api/v1/gemini/generate.
type GenerateRequest struct {
	Prompt       string         `json:"prompt" validate:"required,maxbytes"`
	Context      map[string]any `json:"context"`
	AnalysisType string         `json:"analysis_type"`
}

// Validate checks field constraints.
func (r *GenerateRequest) Validate() error { return validate.Struct(r) }

// =============================================================================
// PlantGPT
// =============================================================================

// ChatRequest is the body of POST /api/v1/plantgpt/chat.
//
// UseRAG defaults to true when omitted. Plant selects plant-specific
// prompting and suggestions when retrieval is off.
type ChatRequest struct {
	Message        string         `json:"message" validate:"required,maxbytes"`
	ConversationID string         `json:"conversation_id" validate:"omitempty,conversation_id"`
	UseRAG         *bool          `json:"use_rag"`
	Context        map[string]any `json:"context"`
	Plant          string         `json:"plant" validate:"omitempty,max=64"`
}

// Validate checks field constraints.
func (r *ChatRequest) Validate() error { return validate.Struct(r) }

// RAGEnabled reports whether retrieval should run.
func (r *ChatRequest) RAGEnabled() bool {
	return r.UseRAG == nil || *r.UseRAG
}

// ChatResponse is the PlantGPT reply.
type ChatResponse struct {
	Response       string   `json:"response"`
	ConversationID string   `json:"conversation_id"`
	Sources        []string `json:"sources"`
	Confidence     float64  `json:"confidence"`
	Suggestions    []string `json:"suggestions"`
}

// KnowledgeSearchRequest is the body of POST /api/v1/plantgpt/knowledge/search.
type KnowledgeSearchRequest struct {
	Query    string `json:"query" validate:"required,maxbytes"`
	NResults int    `json:"n_results" validate:"gte=0,lte=50"`
}

// Validate checks field constraints.
func (r *KnowledgeSearchRequest) Validate() error { return validate.Struct(r) }

// KnowledgeAddRequest is the body of POST /api/v1/plantgpt/knowledge/add.
type KnowledgeAddRequest struct {
	Title    string   `json:"title" validate:"required,max=256"`
	Content  string   `json:"content" validate:"required,maxbytes"`
	Category string   `json:"category" validate:"max=64"`
	Tags     []string `json:"tags" validate:"max=32,dive,max=64"`
}

// Validate checks field constraints.
func (r *KnowledgeAddRequest) Validate() error { return validate.Struct(r) }

// =============================================================================
// Dashboard and Agents
// =============================================================================

// DashboardRequest is the body of POST /api/v1/dashboard/.
type DashboardRequest struct {
	Plant string `json:"plant" validate:"omitempty,max=64"`
}

// Validate checks field constraints.
func (r *DashboardRequest) Validate() error { return validate.Struct(r) }

// AgentTaskRequest is the body of POST /api/agents/:type/execute.
type AgentTaskRequest struct {
	TaskDescription string `json:"task_description" validate:"maxbytes"`
	IncludeSensors  *bool  `json:"include_sensors"`
}

// Validate checks field constraints.
func (r *AgentTaskRequest) Validate() error { return validate.Struct(r) }

// SensorsIncluded reports whether live readings go into the agent prompt.
func (r *AgentTaskRequest) SensorsIncluded() bool {
	return r.IncludeSensors == nil || *r.IncludeSensors
}
