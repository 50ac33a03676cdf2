// Copyright (C) 2025 The cement-ai Authors (github.com/xrvnd/cement-ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/> for the full license text.

package dashboard

import (
	"fmt"
	"strings"
	"time"

	"github.com/xrvnd/cement-ai/services/twin/catalog"
	"github.com/xrvnd/cement-ai/services/twin/sensors"
)

// DefaultPlant is used when a request names no plant or an unknown one.
const DefaultPlant = "karnataka"

// PlantProfile is the static identity of a plant.
type PlantProfile struct {
	Name            string `yaml:"name" json:"plant_name"`
	Location        string `yaml:"location" json:"location"`
	ClinkerCapacity string `yaml:"clinker_capacity" json:"-"`
	CementCapacity  string `yaml:"cement_capacity" json:"-"`
}

// DefaultPlants returns the two stock plant profiles.
func DefaultPlants() map[string]PlantProfile {
	return map[string]PlantProfile{
		"karnataka": {
			Name:            "JK Cement Plant",
			Location:        "Karnataka, India",
			ClinkerCapacity: "4000 ton/day",
			CementCapacity:  "4800 ton/day",
		},
		"rajasthan": {
			Name:            "JK Cement Plant",
			Location:        "Rajasthan, India",
			ClinkerCapacity: "3500 ton/day",
			CementCapacity:  "4200 ton/day",
		},
	}
}

// OperationalMetric is one focus-area metric bound to a live sensor.
type OperationalMetric struct {
	Name         string    `json:"name"`
	CurrentValue float64   `json:"current_value"`
	TargetValue  float64   `json:"target_value"`
	Unit         string    `json:"unit"`
	Status       string    `json:"status"`
	Trend        string    `json:"trend"`
	LastUpdated  time.Time `json:"last_updated"`
}

// Recommendation is a static improvement suggestion.
type Recommendation struct {
	Title           string `json:"title"`
	Description     string `json:"description"`
	Priority        string `json:"priority"`
	Category        string `json:"category"`
	ActionRequired  bool   `json:"action_required"`
	EstimatedImpact string `json:"estimated_impact"`
}

// FocusArea groups metrics and recommendations for one improvement theme.
type FocusArea struct {
	Name            string              `json:"name"`
	Description     string              `json:"description"`
	Metrics         []OperationalMetric `json:"metrics"`
	Recommendations []Recommendation    `json:"recommendations"`
	PriorityScore   float64             `json:"priority_score"`
}

// EfficiencyAlert is the single live efficiency notice on the plant view.
type EfficiencyAlert struct {
	ID             string    `json:"id"`
	Type           string    `json:"type"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	Severity       string    `json:"severity"`
	Timestamp      time.Time `json:"timestamp"`
	Location       string    `json:"location"`
	ActionRequired bool      `json:"action_required"`
}

// CategoryScore is one performance category.
type CategoryScore struct {
	Score float64 `json:"score"`
	Trend string  `json:"trend"`
}

// PerformanceSummary rolls up category scores.
type PerformanceSummary struct {
	OverallScore float64                  `json:"overall_score"`
	Categories   map[string]CategoryScore `json:"categories"`
}

// PlantOverview is the plant identity plus live production numbers.
type PlantOverview struct {
	PlantName         string             `json:"plant_name"`
	Location          string             `json:"location"`
	Capacity          map[string]string  `json:"capacity"`
	CurrentProduction map[string]float64 `json:"current_production"`
	KeyMetrics        map[string]float64 `json:"key_metrics"`
}

// PlantDashboard is the /api/v1/dashboard/ response body.
type PlantDashboard struct {
	PlantOverview      PlantOverview      `json:"plant_overview"`
	FocusAreas         []FocusArea        `json:"focus_areas"`
	RealTimeAlerts     []EfficiencyAlert  `json:"real_time_alerts"`
	PerformanceSummary PerformanceSummary `json:"performance_summary"`
	LastUpdated        time.Time          `json:"last_updated"`
}

// BuildPlantDashboard assembles the plant view for plant, falling back to
// DefaultPlant for unknown names.
func (a *Aggregator) BuildPlantDashboard(plant string, snap sensors.Snapshot) PlantDashboard {
	profile, ok := a.plants[strings.ToLower(plant)]
	if !ok {
		profile = a.plants[DefaultPlant]
	}
	now := a.now()
	eff := OverallEfficiency(snap)
	millEff := snap[catalog.MillEfficiency]
	feed := snap.Value(catalog.MillFeed)

	a.mu.Lock()
	quality := round(a.draw(Range{92, 96}), 1)
	compliance := round(a.draw(Range{96, 99}), 1)
	safety := round(a.draw(Range{94, 98}), 1)
	qualityPerf := round(a.draw(Range{90, 95}), 1)
	a.mu.Unlock()

	millStatus := "fair"
	if millEff.Value > 75 {
		millStatus = "good"
	}

	alert := EfficiencyAlert{
		ID:             fmt.Sprintf("alert_%d", now.Unix()),
		Type:           "warning",
		Title:          fmt.Sprintf("Mill Efficiency: %.1f%%", eff),
		Description:    "Current efficiency is below target range",
		Severity:       "medium",
		Timestamp:      now,
		Location:       "Mill #1",
		ActionRequired: eff < 75,
	}
	if eff > 80 {
		alert.Type = "info"
		alert.Description = "Current efficiency is within target range"
		alert.Severity = "low"
	}

	return PlantDashboard{
		PlantOverview: PlantOverview{
			PlantName: profile.Name,
			Location:  profile.Location,
			Capacity: map[string]string{
				"clinker": profile.ClinkerCapacity,
				"cement":  profile.CementCapacity,
			},
			CurrentProduction: map[string]float64{
				"clinker":     float64(int(feed * 20)),
				"cement":      float64(int(feed * 24)),
				"utilization": round(eff, 1),
			},
			KeyMetrics: map[string]float64{
				"energy_efficiency":        round(eff, 1),
				"quality_index":            quality,
				"environmental_compliance": compliance,
				"safety_score":             safety,
			},
		},
		FocusAreas: []FocusArea{{
			Name:        "Optimize Raw Mill Efficiency",
			Description: "Improve grinding efficiency and reduce power consumption",
			Metrics: []OperationalMetric{{
				Name:         "Raw Mill Power",
				CurrentValue: millEff.Value,
				TargetValue:  85.0,
				Unit:         "%",
				Status:       millStatus,
				Trend:        string(millEff.Trend),
				LastUpdated:  now,
			}},
			Recommendations: []Recommendation{{
				Title:           "Optimize Grinding Media Distribution",
				Description:     "Implement optimal ball size distribution for better grinding efficiency",
				Priority:        "high",
				Category:        "energy_efficiency",
				ActionRequired:  true,
				EstimatedImpact: "5-8% power reduction",
			}},
			PriorityScore: 8.5,
		}},
		RealTimeAlerts: []EfficiencyAlert{alert},
		PerformanceSummary: PerformanceSummary{
			OverallScore: round(eff, 1),
			Categories: map[string]CategoryScore{
				"energy_efficiency":   {Score: round(eff, 1), Trend: "stable"},
				"quality_performance": {Score: qualityPerf, Trend: "stable"},
			},
		},
		LastUpdated: now,
	}
}
