// Copyright (C) 2025 The cement-ai Authors (github.com/xrvnd/cement-ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/> for the full license text.

// Package prompts renders plant data into LLM prompts.
//
// # Description
//
// Every prompt kind is a text/template parsed once at construction. Build is
// pure: given the same Data it returns the same string. Plant identity comes
// from Config so prompts never hardcode a site.
//
// # Thread Safety
//
// Builder is immutable after NewBuilder and safe for concurrent use.
package prompts

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/template"
	"time"
	"unicode"

	"github.com/xrvnd/cement-ai/services/twin/sensors"
)

// ErrUnknownKind is returned when Build is asked for a kind with no template.
var ErrUnknownKind = errors.New("unknown prompt kind")

// Kind selects a prompt template.
type Kind string

const (
	KindKiln          Kind = "kiln"
	KindMill          Kind = "mill"
	KindEquipment     Kind = "equipment"
	KindComprehensive Kind = "comprehensive"
	KindVision        Kind = "vision"
	KindChat          Kind = "chat"
	KindPlantGPT      Kind = "plantgpt"
	KindAgent         Kind = "agent"
	KindGenerate      Kind = "generate"
)

// Kinds lists every supported kind.
func Kinds() []Kind {
	return []Kind{
		KindKiln, KindMill, KindEquipment, KindComprehensive, KindVision,
		KindChat, KindPlantGPT, KindAgent, KindGenerate,
	}
}

// Excerpt is one retrieved knowledge passage.
type Excerpt struct {
	Title   string
	Content string
}

// Turn is one prior conversation message.
type Turn struct {
	Role    string
	Content string
}

// Data is the input to every template. Fields a kind does not use are
// ignored.
type Data struct {
	PlantName     string
	PlantLocation string
	Timestamp     time.Time

	Readings     sensors.Snapshot
	AnalysisType string

	Query   string
	Context map[string]any

	Knowledge []Excerpt
	History   []Turn

	Plant          string
	ConversationID string

	AgentKind      string
	Specialization string
	Task           string
	Findings       []string
}

// V returns the current value of a sensor, or 0 when absent.
func (d Data) V(id string) float64 {
	return d.Readings.Value(id)
}

// VOr returns the current value of a sensor, or def when absent.
func (d Data) VOr(id string, def float64) float64 {
	if r, ok := d.Readings[id]; ok {
		return r.Value
	}
	return def
}

// Config carries the plant identity stamped into prompts.
type Config struct {
	PlantName     string
	PlantLocation string
}

// Builder renders prompts.
type Builder struct {
	cfg       Config
	templates map[Kind]*template.Template
	now       func() time.Time
}

// NewBuilder parses every template.
//
// # Outputs
//
//   - *Builder: Ready builder.
//   - error: Non-nil only if a template fails to parse.
func NewBuilder(cfg Config) (*Builder, error) {
	funcs := template.FuncMap{
		"upper":    strings.ToUpper,
		"title":    titleCase,
		"json":     toJSON,
		"truncate": truncate,
		"stamp":    func(t time.Time) string { return t.Format("2006-01-02 15:04:05") },
		"iso":      func(t time.Time) string { return t.Format(time.RFC3339) },
	}

	b := &Builder{cfg: cfg, templates: make(map[Kind]*template.Template), now: time.Now}
	for kind, text := range sources {
		t, err := template.New(string(kind)).Funcs(funcs).Parse(text)
		if err != nil {
			return nil, fmt.Errorf("parse %s prompt: %w", kind, err)
		}
		b.templates[kind] = t
	}
	return b, nil
}

// Build renders kind with data.
func (b *Builder) Build(kind Kind, data Data) (string, error) {
	t, ok := b.templates[kind]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	if data.PlantName == "" {
		data.PlantName = b.cfg.PlantName
	}
	if data.PlantLocation == "" {
		data.PlantLocation = b.cfg.PlantLocation
	}
	if data.Timestamp.IsZero() {
		data.Timestamp = b.now()
	}
	if data.AnalysisType == "" {
		data.AnalysisType = string(kind)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s prompt: %w", kind, err)
	}
	return buf.String(), nil
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	r := []rune(strings.ToLower(s))
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

func toJSON(v any) string {
	if v == nil {
		return "None"
	}
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(out)
}

func truncate(n int, s string) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
