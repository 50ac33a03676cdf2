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
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Observer receives one observation per provider call.
type Observer interface {
	ObserveLLMRequest(backend, operation, outcome string, duration time.Duration)
}

// Outcome labels.
const (
	OutcomeSuccess  = "success"
	OutcomeError    = "error"
	OutcomeTimeout  = "timeout"
	OutcomeDisabled = "disabled"
)

// Instrumented wraps a client with a span per call, an Observer callback
// and an approximate token counter on the global otel meter.
type Instrumented struct {
	inner   LLMClient
	backend string
	obs     Observer
	tracer  trace.Tracer
	tokens  metric.Int64Counter
}

// NewInstrumented wraps inner. obs may be nil.
func NewInstrumented(inner LLMClient, backend string, obs Observer) *Instrumented {
	counter, err := otel.Meter("cementtwin.llm").Int64Counter(
		"cementtwin_llm_tokens",
		metric.WithDescription("Approximate prompt and completion tokens exchanged with the LLM backend"),
	)
	if err != nil {
		slog.Warn("Failed to create LLM token counter", "error", err)
	}
	return &Instrumented{
		inner:   inner,
		backend: backend,
		obs:     obs,
		tracer:  otel.Tracer("cementtwin.llm"),
		tokens:  counter,
	}
}

// Generate implements the LLMClient interface
func (i *Instrumented) Generate(ctx context.Context, prompt string, params GenerationParams) (string, error) {
	return i.observe(ctx, "generate", prompt, func(ctx context.Context) (string, error) {
		return i.inner.Generate(ctx, prompt, params)
	})
}

// GenerateWithImage implements the VisionClient interface
func (i *Instrumented) GenerateWithImage(ctx context.Context, prompt string, image []byte, mimeType string, params GenerationParams) (string, error) {
	return i.observe(ctx, "vision", prompt, func(ctx context.Context) (string, error) {
		return GenerateWithImage(ctx, i.inner, prompt, image, mimeType, params)
	})
}

func (i *Instrumented) observe(ctx context.Context, op, prompt string, call func(context.Context) (string, error)) (string, error) {
	ctx, span := i.tracer.Start(ctx, "llm."+op, trace.WithAttributes(
		attribute.String("llm.backend", i.backend),
		attribute.Int("llm.prompt_chars", len(prompt)),
	))
	defer span.End()

	start := time.Now()
	out, err := call(ctx)
	elapsed := time.Since(start)

	outcome := OutcomeSuccess
	switch {
	case errors.Is(err, ErrDisabled):
		outcome = OutcomeDisabled
	case errors.Is(err, context.DeadlineExceeded):
		outcome = OutcomeTimeout
	case err != nil:
		outcome = OutcomeError
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	if i.obs != nil {
		i.obs.ObserveLLMRequest(i.backend, op, outcome, elapsed)
	}
	if i.tokens != nil && err == nil {
		backend := attribute.String("backend", i.backend)
		i.tokens.Add(ctx, int64(EstimateTokens(prompt)),
			metric.WithAttributes(backend, attribute.String("direction", "prompt")))
		i.tokens.Add(ctx, int64(EstimateTokens(out)),
			metric.WithAttributes(backend, attribute.String("direction", "completion")))
	}
	return out, err
}

// EstimateTokens approximates a token count from whitespace-separated words.
func EstimateTokens(s string) int {
	return len(strings.Fields(s))
}

var (
	_ LLMClient    = (*Instrumented)(nil)
	_ VisionClient = (*Instrumented)(nil)
)
