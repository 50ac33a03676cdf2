// Copyright (C) 2025 The cement-ai Authors (github.com/xrvnd/cement-ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/> for the full license text.

package llm

import "context"

// DisabledText is returned in place of an analysis when no key is set.
const DisabledText = "AI analysis unavailable - Gemini API key not configured"

// Disabled stands in for a backend when no API key is configured.
type Disabled struct{}

// Generate returns DisabledText and no error.
func (Disabled) Generate(context.Context, string, GenerationParams) (string, error) {
	return DisabledText, nil
}

// GenerateWithImage always fails with ErrDisabled.
func (Disabled) GenerateWithImage(context.Context, string, []byte, string, GenerationParams) (string, error) {
	return "", ErrDisabled
}

var (
	_ LLMClient    = Disabled{}
	_ VisionClient = Disabled{}
)
