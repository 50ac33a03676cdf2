// Copyright (C) 2025 The cement-ai Authors (github.com/xrvnd/cement-ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/> for the full license text.

// Package agents implements the specialized plant optimization agents.
//
// # Description
//
// Each Agent has a kind, a specialization, a tool set and a deterministic
// rule that turns a sensor snapshot into recommendations. The Registry is
// the dispatch table from kind to agent; the Runner executes agents
// against the LLM and keeps a bounded task log.
package agents

import (
	"errors"
	"fmt"

	"github.com/xrvnd/cement-ai/services/twin/catalog"
	"github.com/xrvnd/cement-ai/services/twin/sensors"
)

// ErrUnknownAgent is returned for a kind with no registered agent.
var ErrUnknownAgent = errors.New("agent type not found")

// Kind names an agent.
type Kind string

const (
	KindKilnOptimizer      Kind = "kiln_optimizer"
	KindMillOptimizer      Kind = "mill_optimizer"
	KindQualityController  Kind = "quality_controller"
	KindFuelOptimizer      Kind = "fuel_optimizer"
	KindMaintenancePlanner Kind = "maintenance_planner"
)

// Priority ranks a recommendation.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
)

// Tool is a named capability an agent reports findings from.
type Tool struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	run         func(sensors.Snapshot) string
}

// Run returns the tool's finding for snap.
func (t Tool) Run(snap sensors.Snapshot) string {
	if t.run == nil {
		return ""
	}
	return t.run(snap)
}

// Recommendation is a rule-derived action item.
type Recommendation struct {
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	Priority        Priority `json:"priority"`
	Category        string   `json:"category"`
	EstimatedImpact string   `json:"estimated_impact"`
}

// Agent is one specialized optimizer.
type Agent interface {
	Kind() Kind
	Specialization() string
	Tools() []Tool
	Recommend(snap sensors.Snapshot) []Recommendation
}

// specialist is the Agent implementation shared by every kind; behavior
// differs only through its tools and rule.
type specialist struct {
	kind           Kind
	specialization string
	tools          []Tool
	rule           func(sensors.Snapshot) []Recommendation
}

func (s *specialist) Kind() Kind             { return s.kind }
func (s *specialist) Specialization() string { return s.specialization }

func (s *specialist) Tools() []Tool {
	out := make([]Tool, len(s.tools))
	copy(out, s.tools)
	return out
}

func (s *specialist) Recommend(snap sensors.Snapshot) []Recommendation {
	if s.rule == nil {
		return []Recommendation{}
	}
	return s.rule(snap)
}

// =============================================================================
// Tools
// =============================================================================

func fixed(text string) func(sensors.Snapshot) string {
	return func(sensors.Snapshot) string { return text }
}

func baseTools() []Tool {
	return []Tool{
		{
			Name:        "calculate_efficiency",
			Description: "Calculate operational efficiency metrics",
			run: func(snap sensors.Snapshot) string {
				eff := (snap.Value(catalog.MillEfficiency) + snap.Value(catalog.MotorLoad)) / 2
				return fmt.Sprintf("Operational efficiency calculated: %.1f%% (Target: >85%%)", eff)
			},
		},
		{
			Name:        "analyze_trends",
			Description: "Analyze operational trends and patterns",
			run: func(snap sensors.Snapshot) string {
				up, down := 0, 0
				for _, r := range snap {
					switch r.Trend {
					case sensors.TrendUp:
						up++
					case sensors.TrendDown:
						down++
					}
				}
				if up == 0 && down == 0 {
					return "Trend analysis: Stable operation with minor fluctuations"
				}
				return fmt.Sprintf("Trend analysis: %d sensors trending up, %d trending down", up, down)
			},
		},
		{
			Name:        "generate_recommendations",
			Description: "Generate actionable recommendations",
			run:         fixed("Generated optimization recommendations for improved performance"),
		},
		{
			Name:        "predict_maintenance",
			Description: "Predict maintenance requirements",
			run: func(snap sensors.Snapshot) string {
				if snap.Value(catalog.Vibration) > 3.0 {
					return fmt.Sprintf("Predictive maintenance: kiln vibration %.2f mm/s, inspect bearings and alignment", snap.Value(catalog.Vibration))
				}
				return "Predictive maintenance: Kiln refractory inspection due in 15 days"
			},
		},
	}
}

func kilnTools() []Tool {
	return []Tool{
		{
			Name:        "optimize_temperature_profile",
			Description: "Optimize kiln temperature profile for efficiency",
			run: func(snap sensors.Snapshot) string {
				return fmt.Sprintf("Temperature optimization: burning zone at %.0f°C, preheater at %.0f°C",
					snap.Value(catalog.BurningZone), snap.Value(catalog.Preheater))
			},
		},
		{
			Name:        "calculate_fuel_efficiency",
			Description: "Calculate and optimize fuel efficiency",
			run:         fixed("Fuel efficiency: 3.2 GJ/ton clinker (Target: 3.0 GJ/ton)"),
		},
		{
			Name:        "assess_refractory_condition",
			Description: "Assess refractory lining condition",
			run:         fixed("Refractory condition: Good, estimated remaining life 8 months"),
		},
	}
}

func millTools() []Tool {
	return []Tool{
		{
			Name:        "optimize_grinding_parameters",
			Description: "Optimize grinding parameters for efficiency",
			run: func(snap sensors.Snapshot) string {
				return fmt.Sprintf("Grinding optimization: feed rate %.1f t/h, mill efficiency %.1f%%",
					snap.Value(catalog.MillFeed), snap.Value(catalog.MillEfficiency))
			},
		},
		{
			Name:        "calculate_specific_power",
			Description: "Calculate specific power consumption",
			run:         fixed("Specific power: 32 kWh/ton (Target: 30 kWh/ton)"),
		},
		{
			Name:        "analyze_particle_distribution",
			Description: "Analyze particle size distribution",
			run: func(snap sensors.Snapshot) string {
				return fmt.Sprintf("Particle distribution: mean size %.1f µm (Target: 8-16 µm)", snap.Value(catalog.MillParticle))
			},
		},
	}
}

func qualityTools() []Tool {
	return []Tool{
		{
			Name:        "analyze_quality_parameters",
			Description: "Analyze cement quality parameters",
			run:         fixed("Quality analysis: Blaine 350 m²/kg, Strength 42.5 MPa, Free lime 1.2%"),
		},
		{
			Name:        "predict_strength_development",
			Description: "Predict cement strength development",
			run:         fixed("Strength prediction: 28-day strength estimated at 45 MPa"),
		},
		{
			Name:        "optimize_blaine_fineness",
			Description: "Optimize Blaine fineness control",
			run:         fixed("Blaine optimization: Adjust mill speed to achieve 340-360 m²/kg"),
		},
	}
}

// =============================================================================
// Rules
// =============================================================================

func kilnRule(snap sensors.Snapshot) []Recommendation {
	out := []Recommendation{}
	if t := snap.Value(catalog.BurningZone); t > 1550 {
		out = append(out, Recommendation{
			Title:           "Reduce Burning Zone Temperature",
			Description:     fmt.Sprintf("Current temperature %g°C exceeds optimal range. Reduce fuel rate by 5-10%%", t),
			Priority:        PriorityHigh,
			Category:        "thermal_management",
			EstimatedImpact: "Reduce fuel consumption by 3-5%",
		})
	}
	return out
}

func millRule(snap sensors.Snapshot) []Recommendation {
	out := []Recommendation{}
	r, ok := snap[catalog.MillEfficiency]
	if ok && r.Value < 75 {
		out = append(out, Recommendation{
			Title:           "Optimize Mill Efficiency",
			Description:     fmt.Sprintf("Current efficiency %g%% is below target. Check grinding media distribution", r.Value),
			Priority:        PriorityMedium,
			Category:        "grinding_optimization",
			EstimatedImpact: "Increase efficiency by 5-8%",
		})
	}
	return out
}

func qualityRule(snap sensors.Snapshot) []Recommendation {
	out := []Recommendation{}
	if size := snap.Value(catalog.MillParticle); size > 15 {
		out = append(out, Recommendation{
			Title:           "Adjust Particle Size Distribution",
			Description:     fmt.Sprintf("Current particle size %gµm exceeds target. Adjust separator speed", size),
			Priority:        PriorityMedium,
			Category:        "quality_control",
			EstimatedImpact: "Improve cement quality consistency",
		})
	}
	return out
}

// =============================================================================
// Registry
// =============================================================================

// Registry maps kinds to agents.
//
// # Thread Safety
//
// Read-only after construction.
type Registry struct {
	agents map[Kind]Agent
	order  []Kind
}

// NewRegistry builds a registry from agents, rejecting duplicates.
func NewRegistry(agents ...Agent) (*Registry, error) {
	r := &Registry{agents: make(map[Kind]Agent, len(agents))}
	for _, a := range agents {
		if _, dup := r.agents[a.Kind()]; dup {
			return nil, fmt.Errorf("duplicate agent kind %q", a.Kind())
		}
		r.agents[a.Kind()] = a
		r.order = append(r.order, a.Kind())
	}
	return r, nil
}

// DefaultRegistry returns the five built-in agents.
func DefaultRegistry() *Registry {
	with := func(extra []Tool) []Tool { return append(baseTools(), extra...) }
	r, err := NewRegistry(
		&specialist{kind: KindKilnOptimizer, specialization: "thermal_management", tools: with(kilnTools()), rule: kilnRule},
		&specialist{kind: KindMillOptimizer, specialization: "grinding_operations", tools: with(millTools()), rule: millRule},
		&specialist{kind: KindQualityController, specialization: "quality_assurance", tools: with(qualityTools()), rule: qualityRule},
		&specialist{kind: KindFuelOptimizer, specialization: "alternate_fuels", tools: baseTools()},
		&specialist{kind: KindMaintenancePlanner, specialization: "predictive_maintenance", tools: baseTools()},
	)
	if err != nil {
		panic(err)
	}
	return r
}

// Get returns the agent for kind or ErrUnknownAgent.
func (r *Registry) Get(kind Kind) (Agent, error) {
	a, ok := r.agents[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAgent, kind)
	}
	return a, nil
}

// Kinds returns registered kinds in registration order.
func (r *Registry) Kinds() []Kind {
	out := make([]Kind, len(r.order))
	copy(out, r.order)
	return out
}

// Info is the listing entry for one agent.
type Info struct {
	Specialization string `json:"specialization"`
	ToolsCount     int    `json:"tools_count"`
	Status         string `json:"status"`
}

// Describe returns a listing of every agent keyed by kind.
func (r *Registry) Describe() map[Kind]Info {
	out := make(map[Kind]Info, len(r.agents))
	for k, a := range r.agents {
		out[k] = Info{Specialization: a.Specialization(), ToolsCount: len(a.Tools()), Status: "active"}
	}
	return out
}

// Len returns the number of registered agents.
func (r *Registry) Len() int { return len(r.agents) }
