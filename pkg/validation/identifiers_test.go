// Copyright (C) 2025 The cement-ai Authors (github.com/xrvnd/cement-ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/> for the full license text.

package validation

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateSensorID(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		wantErr bool
	}{
		{"short", "load", false},
		{"digits", "temp1", false},
		{"hyphen", "mill-eff", false},
		{"underscore and dot", "kiln_2.shell", false},
		{"max length", strings.Repeat("a", MaxSensorIDLen), false},

		{"empty", "", true},
		{"too long", strings.Repeat("a", MaxSensorIDLen+1), true},
		{"upper case", "Load", true},
		{"leading hyphen", "-load", true},
		{"space", "mill eff", true},
		{"comma breaks line protocol", "load,plant=x", true},
		{"equals", "load=1", true},
		{"flux injection", `load") |> drop()`, true},
		{"newline", "load\n", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSensorID(tt.id)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateSensorID(%q) error = %v, wantErr %v", tt.id, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidIdentifier) {
				t.Errorf("error %v does not wrap ErrInvalidIdentifier", err)
			}
		})
	}
}

func TestValidateConversationID(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		wantErr bool
	}{
		{"uuid", "3f1c2d8e-4b5a-4c6d-9e8f-0a1b2c3d4e5f", false},
		{"mixed case", "Shift-A", false},
		{"colon", "plant:karnataka", false},
		{"max length", strings.Repeat("c", MaxConversationIDLen), false},

		{"empty", "", true},
		{"too long", strings.Repeat("c", MaxConversationIDLen+1), true},
		{"slash", "a/b", true},
		{"space", "shift a", true},
		{"tab", "shift\ta", true},
		{"nul", "a\x00b", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateConversationID(tt.id)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateConversationID(%q) error = %v, wantErr %v", tt.id, err, tt.wantErr)
			}
		})
	}
}
