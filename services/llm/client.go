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
	"strings"
	"time"
)

type GenerationParams struct {
	Temperature *float32 `json:"temperature"`
	TopK        *int     `json:"top_k"`
	TopP        *float32 `json:"top_p"`
	MaxTokens   *int     `json:"max_tokens"`
	Stop        []string `json:"stop"`
}

// LLMClient defines the standard interface for any LLM backend
type LLMClient interface {
	Generate(ctx context.Context, prompt string, params GenerationParams) (string, error)
}

// VisionClient is implemented by backends that accept an image alongside
// the prompt.
type VisionClient interface {
	GenerateWithImage(ctx context.Context, prompt string, image []byte, mimeType string, params GenerationParams) (string, error)
}

var (
	// ErrDisabled is returned by operations that cannot degrade to the
	// sentinel text when no API key is configured.
	ErrDisabled = errors.New("llm disabled")
	// ErrVisionUnsupported is returned when the backend has no image input.
	ErrVisionUnsupported = errors.New("vision not supported by llm backend")
	// ErrUnknownBackend is returned by ParseBackend.
	ErrUnknownBackend = errors.New("unknown llm backend")
)

// Backend names an LLM provider.
type Backend string

const (
	BackendGemini    Backend = "gemini"
	BackendOpenAI    Backend = "openai"
	BackendAnthropic Backend = "anthropic"
	BackendDisabled  Backend = "disabled"
)

// ParseBackend normalizes a backend name. "claude" is accepted for
// anthropic and an empty string selects gemini.
func ParseBackend(s string) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "gemini", "google":
		return BackendGemini, nil
	case "openai":
		return BackendOpenAI, nil
	case "anthropic", "claude":
		return BackendAnthropic, nil
	case "disabled", "none":
		return BackendDisabled, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownBackend, s)
	}
}

// Config selects and configures a backend.
type Config struct {
	Backend Backend

	// APIKey is the key for the selected backend. When empty the client
	// degrades to the disabled sentinel.
	APIKey      string
	Model       string
	VisionModel string

	// Timeout bounds every call. Zero means DefaultTimeout.
	Timeout time.Duration
	// RatePerSecond and Burst configure the limiter. Zero rate disables it.
	RatePerSecond float64
	Burst         int
}

// DefaultTimeout bounds a single provider call.
const DefaultTimeout = 60 * time.Second

// New builds the client for cfg, wrapped with timeout, rate limiting and
// instrumentation.
//
// # Description
//
// A missing API key never fails startup: the service runs with the
// Disabled client and analysis responses carry the sentinel text.
//
// # Inputs
//
//   - ctx: Used for client construction only.
//   - cfg: Backend selection.
//   - obs: Metrics sink; may be nil.
//
// # Outputs
//
//   - LLMClient: Always implements VisionClient.
//   - error: Provider construction failure.
func New(ctx context.Context, cfg Config, obs Observer) (LLMClient, error) {
	var (
		base LLMClient
		err  error
	)
	backend := cfg.Backend
	if cfg.APIKey == "" && backend != BackendDisabled {
		slog.Warn("LLM API key not configured, AI analysis disabled", "backend", backend)
		backend = BackendDisabled
	}

	switch backend {
	case BackendGemini, "":
		base, err = NewGeminiClient(ctx, cfg.APIKey, cfg.Model, cfg.VisionModel)
	case BackendOpenAI:
		base, err = NewOpenAIClient(cfg.APIKey, cfg.Model)
	case BackendAnthropic:
		base, err = NewAnthropicClient(cfg.APIKey, cfg.Model)
	case BackendDisabled:
		base = Disabled{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}
	if err != nil {
		return nil, fmt.Errorf("init %s client: %w", backend, err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	guarded := NewGuarded(base, timeout, cfg.RatePerSecond, cfg.Burst)
	return NewInstrumented(guarded, string(backend), obs), nil
}

// GenerateWithImage routes to client's vision support when present.
func GenerateWithImage(ctx context.Context, client LLMClient, prompt string, image []byte, mimeType string, params GenerationParams) (string, error) {
	vc, ok := client.(VisionClient)
	if !ok {
		return "", ErrVisionUnsupported
	}
	return vc.GenerateWithImage(ctx, prompt, image, mimeType, params)
}
