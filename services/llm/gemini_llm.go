// Copyright (C) 2025 The cement-ai Authors (github.com/xrvnd/cement-ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/> for the full license text.

package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"google.golang.org/genai"
)

const (
	defaultGeminiModel       = "gemini-2.0-flash"
	defaultGeminiVisionModel = "gemini-2.0-flash"
)

// GeminiClient calls the Gemini API through google.golang.org/genai.
type GeminiClient struct {
	client      *genai.Client
	model       string
	visionModel string
}

// NewGeminiClient builds a Gemini client. Empty models fall back to
// gemini-2.0-flash.
func NewGeminiClient(ctx context.Context, apiKey, model, visionModel string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, errors.New("GEMINI_API_KEY is missing")
	}
	if model == "" {
		model = defaultGeminiModel
	}
	if visionModel == "" {
		visionModel = defaultGeminiVisionModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	slog.Info("Initializing Gemini client", "model", model, "vision_model", visionModel)
	return &GeminiClient{client: client, model: model, visionModel: visionModel}, nil
}

// Generate implements the LLMClient interface
func (g *GeminiClient) Generate(ctx context.Context, prompt string, params GenerationParams) (string, error) {
	slog.Debug("Generating text via Gemini", "model", g.model)
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), geminiConfig(params))
	if err != nil {
		slog.Error("Gemini API call failed", "error", err)
		return "", fmt.Errorf("gemini API call failed: %w", err)
	}
	return geminiText(resp)
}

// GenerateWithImage implements the VisionClient interface
func (g *GeminiClient) GenerateWithImage(ctx context.Context, prompt string, image []byte, mimeType string, params GenerationParams) (string, error) {
	slog.Debug("Generating vision analysis via Gemini", "model", g.visionModel, "bytes", len(image))
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(prompt),
			genai.NewPartFromBytes(image, mimeType),
		}, genai.RoleUser),
	}
	resp, err := g.client.Models.GenerateContent(ctx, g.visionModel, contents, geminiConfig(params))
	if err != nil {
		slog.Error("Gemini vision call failed", "error", err)
		return "", fmt.Errorf("gemini vision call failed: %w", err)
	}
	return geminiText(resp)
}

func geminiConfig(params GenerationParams) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		Temperature:   params.Temperature,
		TopP:          params.TopP,
		StopSequences: params.Stop,
	}
	if params.TopK != nil {
		cfg.TopK = genai.Ptr(float32(*params.TopK))
	}
	if params.MaxTokens != nil {
		cfg.MaxOutputTokens = int32(*params.MaxTokens)
	}
	return cfg
}

func geminiText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", errors.New("gemini returned no candidates")
	}
	return resp.Text(), nil
}

var (
	_ LLMClient    = (*GeminiClient)(nil)
	_ VisionClient = (*GeminiClient)(nil)
)
