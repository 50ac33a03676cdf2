// Copyright (C) 2025 The cement-ai Authors (github.com/xrvnd/cement-ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/> for the full license text.

// Package guard classifies free text before it is stored in the PlantGPT
// knowledge base, where it would later be sent to an external LLM as
// retrieval context.
//
// Rules live in patterns.yaml, embedded at build time. A document with any
// high-confidence finding is rejected.
package guard

import (
	_ "embed"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed patterns.yaml
var embeddedRules []byte

// ClassPublic is reported when nothing matches.
const ClassPublic = "public"

// Confidence ranks how likely a match is a real finding.
type Confidence string

const (
	Low    Confidence = "low"
	Medium Confidence = "medium"
	High   Confidence = "high"
)

func (c *Confidence) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	switch Confidence(s) {
	case High, Medium, Low:
		*c = Confidence(s)
		return nil
	default:
		return fmt.Errorf("invalid confidence %q", s)
	}
}

type ruleFile struct {
	Classifications []Classification `yaml:"classifications"`
}

// Classification groups patterns under one name.
type Classification struct {
	Name        string    `yaml:"name"`
	Description string    `yaml:"description"`
	Priority    int       `yaml:"priority"`
	Patterns    []Pattern `yaml:"patterns"`
}

// Pattern is one compiled rule.
type Pattern struct {
	ID          string     `yaml:"id"`
	Description string     `yaml:"description"`
	Regex       string     `yaml:"regex"`
	Confidence  Confidence `yaml:"confidence"`

	re *regexp.Regexp
}

// Finding is one match. Excerpt never contains more than the first four
// characters of the match.
type Finding struct {
	Line           int        `json:"line"`
	Classification string     `json:"classification"`
	PatternID      string     `json:"pattern_id"`
	Description    string     `json:"description"`
	Confidence     Confidence `json:"confidence"`
	Excerpt        string     `json:"excerpt"`
}

// Engine holds compiled classifications, highest priority first.
//
// # Thread Safety
//
// Immutable after construction. Safe for concurrent use.
type Engine struct {
	classes []Classification
}

// New loads the embedded rules.
func New() (*Engine, error) {
	return NewFromYAML(embeddedRules)
}

// NewFromYAML parses and compiles a rule file.
func NewFromYAML(data []byte) (*Engine, error) {
	var f ruleFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse guard rules: %w", err)
	}
	for i := range f.Classifications {
		for j := range f.Classifications[i].Patterns {
			p := &f.Classifications[i].Patterns[j]
			re, err := regexp.Compile(p.Regex)
			if err != nil {
				return nil, fmt.Errorf("compile pattern %s: %w", p.ID, err)
			}
			p.re = re
		}
	}
	sort.SliceStable(f.Classifications, func(i, j int) bool {
		return f.Classifications[i].Priority > f.Classifications[j].Priority
	})
	return &Engine{classes: f.Classifications}, nil
}

// Classify returns the name of the highest-priority classification with any
// match, or ClassPublic.
func (e *Engine) Classify(text string) string {
	for _, c := range e.classes {
		for _, p := range c.Patterns {
			if p.re.MatchString(text) {
				return c.Name
			}
		}
	}
	return ClassPublic
}

// Scan reports every match, line by line, in priority order within a line.
func (e *Engine) Scan(text string) []Finding {
	var findings []Finding
	for n, line := range strings.Split(text, "\n") {
		for _, c := range e.classes {
			for _, p := range c.Patterns {
				for _, m := range p.re.FindAllString(line, -1) {
					findings = append(findings, Finding{
						Line:           n + 1,
						Classification: c.Name,
						PatternID:      p.ID,
						Description:    p.Description,
						Confidence:     p.Confidence,
						Excerpt:        redact(strings.TrimSpace(m)),
					})
				}
			}
		}
	}
	return findings
}

// Blocking reports whether any finding is high confidence.
func Blocking(findings []Finding) bool {
	for _, f := range findings {
		if f.Confidence == High {
			return true
		}
	}
	return false
}

func redact(s string) string {
	r := []rune(s)
	if len(r) <= 4 {
		return strings.Repeat("*", len(r))
	}
	return string(r[:4]) + "****"
}
