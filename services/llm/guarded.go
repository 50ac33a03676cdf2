// Copyright (C) 2025 The cement-ai Authors (github.com/xrvnd/cement-ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/> for the full license text.

package llm

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// Guarded bounds every call with a timeout and an optional token-bucket
// rate limit. There are no retries.
type Guarded struct {
	inner   LLMClient
	timeout time.Duration
	limiter *rate.Limiter
}

// NewGuarded wraps inner. ratePerSecond <= 0 disables limiting; burst
// defaults to 1.
func NewGuarded(inner LLMClient, timeout time.Duration, ratePerSecond float64, burst int) *Guarded {
	g := &Guarded{inner: inner, timeout: timeout}
	if ratePerSecond > 0 {
		if burst < 1 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(ratePerSecond), burst)
	}
	return g
}

// Generate implements the LLMClient interface
func (g *Guarded) Generate(ctx context.Context, prompt string, params GenerationParams) (string, error) {
	ctx, cancel, err := g.acquire(ctx)
	if err != nil {
		return "", err
	}
	defer cancel()
	return g.inner.Generate(ctx, prompt, params)
}

// GenerateWithImage implements the VisionClient interface
func (g *Guarded) GenerateWithImage(ctx context.Context, prompt string, image []byte, mimeType string, params GenerationParams) (string, error) {
	ctx, cancel, err := g.acquire(ctx)
	if err != nil {
		return "", err
	}
	defer cancel()
	return GenerateWithImage(ctx, g.inner, prompt, image, mimeType, params)
}

func (g *Guarded) acquire(ctx context.Context) (context.Context, context.CancelFunc, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		if err := g.wait(ctx); err != nil {
			cancel()
			return nil, nil, err
		}
		return ctx, cancel, nil
	}
	if err := g.wait(ctx); err != nil {
		return nil, nil, err
	}
	return ctx, func() {}, nil
}

func (g *Guarded) wait(ctx context.Context) error {
	if g.limiter == nil {
		return nil
	}
	if err := g.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("llm rate limit: %w", err)
	}
	return nil
}

var (
	_ LLMClient    = (*Guarded)(nil)
	_ VisionClient = (*Guarded)(nil)
)
