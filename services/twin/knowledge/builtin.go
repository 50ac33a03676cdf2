// Copyright (C) 2025 The cement-ai Authors (github.com/xrvnd/cement-ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/> for the full license text.

package knowledge

import "strings"

// Builtin returns the seed documents every knowledge base starts with.
func Builtin() []Document {
	docs := []Document{
		{
			ID:    "kiln_operations_basics",
			Title: "Rotary Kiln Operations Fundamentals",
			Content: `Rotary kiln is the heart of cement production. Key operational parameters:

Temperature Zones:
- Preheater: 1200-1300°C (optimal for raw material preparation)
- Calciner: 1800-1900°C (calcination of limestone)
- Kiln Inlet: 1100-1150°C (material entry point)
- Burning Zone: 1400-1500°C (clinker formation)
- Cooler: 150-200°C (clinker cooling)

Critical Control Parameters:
- Fuel flow rate and composition
- Air flow and oxygen levels
- Material feed rate
- Kiln rotation speed (0.5-4.5 rpm)
- Draft pressure (-5 to -15 mmWG)

Quality Indicators:
- Free lime content (<2%)
- Clinker mineralogy (C3S, C2S, C3A, C4AF)
- Burnability index
- Coating stability`,
			Category: "kiln_operations",
			Tags:     []string{"kiln", "temperature", "clinker", "operations"},
		},
		{
			ID:    "cement_grinding_optimization",
			Title: "Cement Grinding Process Optimization",
			Content: `Cement grinding optimization focuses on energy efficiency and quality:

Key Performance Indicators:
- Specific power consumption: Target <30 kWh/ton
- Blaine fineness: 300-400 m²/kg
- Particle size distribution: d50 = 10-15 μm
- Grinding efficiency: >80%

Optimization Strategies:
- Grinding media optimization (ball size distribution)
- Separator efficiency improvement
- Feed rate optimization (12-15 t/h optimal)
- Mill ventilation control
- Grinding aid usage

Quality Control:
- Residue on 45μm sieve: <10%
- Residue on 90μm sieve: <2%
- Compressive strength development
- Setting time control

Soft Sensors Implementation:
- Real-time Blaine prediction
- Residue monitoring
- Strength prediction models`,
			Category: "grinding_operations",
			Tags:     []string{"grinding", "mill", "blaine", "efficiency", "quality"},
		},
		{
			ID:    "alternate_fuels_tsr",
			Title: "Alternate Fuels and Thermal Substitution Rate",
			Content: `Alternate fuel utilization for sustainable cement production:

Fuel Types and Characteristics:
- RDF (Refuse Derived Fuel): 15-20 MJ/kg, low ash content
- Biomass: 12-18 MJ/kg, carbon neutral
- Plastic waste: 35-45 MJ/kg, high calorific value
- Tire chips: 30-35 MJ/kg, good burnability

TSR Optimization:
- Current industry average: 15-25%
- Target TSR: 30-40%
- Maximum safe TSR: 60% (with proper controls)

Safety Considerations:
- Chlorine content monitoring (<0.1%)
- Heavy metals control
- Combustion air requirements
- Emission control (NOx, SOx, CO)

Implementation Strategy:
- Gradual TSR increase (5% increments)
- Fuel quality consistency
- Preheater tower modifications
- Alternative fuel feeding systems`,
			Category: "alternate_fuels",
			Tags:     []string{"alternate_fuels", "TSR", "RDF", "biomass", "sustainability"},
		},
		{
			ID:    "quality_control_systems",
			Title: "Cement Quality Control and Adaptive Systems",
			Content: `Advanced quality control for consistent cement production:

Key Quality Parameters:
- Blaine fineness: Real-time monitoring and control
- Free lime: Target <1.5% for quality clinker
- Compressive strength: 28-day target 42.5-52.5 MPa
- Setting time: Initial 45-375 min, Final <600 min

Adaptive Control Systems:
- Blaine adaptive control: PID controllers with feedforward
- Free lime control: Raw mix adjustment algorithms
- Strength prediction: Machine learning models

Variability Reduction Strategies:
- Statistical process control (SPC)
- Raw material homogenization
- Consistent fuel quality
- Temperature profile optimization

Soft Sensor Implementation:
- Online Blaine measurement using mill parameters
- Residue prediction from particle size distribution
- Strength development models
- Quality prediction algorithms`,
			Category: "quality_control",
			Tags:     []string{"quality", "blaine", "strength", "control_systems", "adaptive"},
		},
		{
			ID:    "energy_efficiency_optimization",
			Title: "Energy Efficiency and Power Consumption Optimization",
			Content: `Comprehensive energy optimization strategies:

Specific Power Consumption Targets:
- Raw grinding: 15-20 kWh/ton
- Cement grinding: 28-35 kWh/ton
- Kiln system: 50-65 kWh/ton clinker
- Total plant: 90-110 kWh/ton cement

Optimization Areas:
- Mill optimization: Grinding media, separator efficiency
- Kiln thermal efficiency: Heat recovery, insulation
- Fan power optimization: Variable frequency drives
- Compressed air systems: Leak detection, pressure optimization

Heat Recovery Systems:
- Preheater exit gas utilization
- Clinker cooler waste heat recovery
- Mill ventilation air heating
- Power generation from waste heat

Monitoring and Control:
- Real-time energy monitoring
- Power factor optimization
- Load management systems
- Energy benchmarking`,
			Category: "energy_efficiency",
			Tags:     []string{"energy", "power_consumption", "efficiency", "optimization"},
		},
		{
			ID:    "predictive_maintenance",
			Title: "Predictive Maintenance and Equipment Reliability",
			Content: `Predictive maintenance strategies for cement plant equipment:

Critical Equipment Monitoring:
- Kiln: Refractory condition, shell temperature, vibration
- Mills: Liner wear, bearing temperature, power consumption
- Fans: Vibration analysis, bearing condition
- Conveyors: Belt condition, motor performance

Condition Monitoring Techniques:
- Vibration analysis: Bearing defects, misalignment
- Thermal imaging: Hot spots, electrical connections
- Oil analysis: Contamination, wear particles
- Motor current signature analysis

Maintenance Planning:
- Remaining useful life prediction
- Optimal maintenance scheduling
- Spare parts optimization
- Maintenance cost optimization

Digital Twin Integration:
- Real-time equipment modeling
- Performance degradation tracking
- Failure mode prediction
- Maintenance decision support`,
			Category: "maintenance",
			Tags:     []string{"maintenance", "predictive", "reliability", "monitoring"},
		},
	}
	for i := range docs {
		docs[i].Content = strings.TrimSpace(docs[i].Content)
	}
	return docs
}
