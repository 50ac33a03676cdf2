// Copyright (C) 2025 The cement-ai Authors (github.com/xrvnd/cement-ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/> for the full license text.

// Package validation checks identifiers that end up in storage keys, metric
// labels and InfluxDB tags.
//
// Sensor ids are written as Influx tag values and Prometheus label values, and
// may later appear in Flux filters. Conversation ids form Badger key prefixes
// where "/" separates the id from the message sequence.
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// ErrInvalidIdentifier is wrapped by every error from this package.
var ErrInvalidIdentifier = errors.New("invalid identifier")

const (
	// MaxSensorIDLen bounds sensor ids.
	MaxSensorIDLen = 64
	// MaxConversationIDLen bounds conversation ids.
	MaxConversationIDLen = 128
)

// sensorIDPattern allows lower-case letters, digits, dots, underscores and
// hyphens, starting with a letter or digit.
var sensorIDPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]*$`)

// ValidateSensorID rejects ids that are empty, too long, or outside
// [a-z0-9._-].
//
// Example:
//
//	if err := validation.ValidateSensorID(def.ID); err != nil {
//	    return fmt.Errorf("catalog entry %d: %w", i, err)
//	}
func ValidateSensorID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: sensor id cannot be empty", ErrInvalidIdentifier)
	}
	if len(id) > MaxSensorIDLen {
		return fmt.Errorf("%w: sensor id %q longer than %d bytes", ErrInvalidIdentifier, id, MaxSensorIDLen)
	}
	if !sensorIDPattern.MatchString(id) {
		return fmt.Errorf("%w: sensor id %q (must be lower-case alphanumeric, dots, underscores or hyphens)", ErrInvalidIdentifier, id)
	}
	return nil
}

// ValidateConversationID rejects ids that are empty, too long, contain "/",
// or contain whitespace or control characters.
func ValidateConversationID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: conversation id cannot be empty", ErrInvalidIdentifier)
	}
	if len(id) > MaxConversationIDLen {
		return fmt.Errorf("%w: conversation id longer than %d bytes", ErrInvalidIdentifier, MaxConversationIDLen)
	}
	if strings.Contains(id, "/") {
		return fmt.Errorf("%w: conversation id %q must not contain '/'", ErrInvalidIdentifier, id)
	}
	if i := strings.IndexFunc(id, func(r rune) bool {
		return unicode.IsControl(r) || unicode.IsSpace(r)
	}); i >= 0 {
		return fmt.Errorf("%w: conversation id has whitespace or control character at byte %d", ErrInvalidIdentifier, i)
	}
	return nil
}
