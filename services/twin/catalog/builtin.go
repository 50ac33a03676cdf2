// Copyright (C) 2025 The cement-ai Authors (github.com/xrvnd/cement-ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/> for the full license text.

package catalog

// Well-known sensor ids referenced by the aggregator, prompts and agents.
const (
	Preheater      = "temp1"
	Calciner       = "temp2"
	KilnInlet      = "temp3"
	BurningZone    = "burning"
	Cooler         = "cooler"
	MotorLoad      = "load"
	Vibration      = "vibration"
	NOx            = "emission"
	Particulate    = "particle-emission"
	MillFeed       = "mill-feed"
	MillPressure   = "mill-pressure"
	MillParticle   = "mill-particle"
	MillEfficiency = "mill-eff"
	StackFlow      = "stack-flow"
	FuelRate       = "fuel-rate"
	Oxygen         = "oxygen"
	CarbonMonoxide = "co-level"
)

// builtinDefinitions is the plant table. mill-eff critical is 95 so that it
// sits above max like every other sensor.
func builtinDefinitions() []Definition {
	return []Definition{
		{ID: Preheater, Name: "Preheater Temperature", Unit: "°C", Min: 1200, Max: 1300, Optimal: 1245, Critical: 1350},
		{ID: Calciner, Name: "Calciner Temperature", Unit: "°C", Min: 1300, Max: 1400, Optimal: 1350, Critical: 1450},
		{ID: KilnInlet, Name: "Kiln Inlet Temperature", Unit: "°C", Min: 1000, Max: 1200, Optimal: 1120, Critical: 1250},
		{ID: BurningZone, Name: "Burning Zone Temperature", Unit: "°C", Min: 1400, Max: 1500, Optimal: 1450, Critical: 1600},
		{ID: Cooler, Name: "Cooler Temperature", Unit: "°C", Min: 150, Max: 250, Optimal: 180, Critical: 300},
		{ID: MotorLoad, Name: "Motor Load", Unit: "%", Min: 70, Max: 100, Optimal: 87, Critical: 105},
		{ID: Vibration, Name: "Kiln Vibration", Unit: "mm/s", Min: 1.5, Max: 4.0, Optimal: 2.3, Critical: 5.0},
		{ID: NOx, Name: "NOx Emissions", Unit: "mg/Nm³", Min: 200, Max: 300, Optimal: 245, Critical: 500},
		{ID: Particulate, Name: "Particulate Emissions", Unit: "mg/Nm³", Min: 30, Max: 60, Optimal: 45, Critical: 100},
		{ID: MillFeed, Name: "Mill Feed Rate", Unit: "t/h", Min: 10, Max: 15, Optimal: 12.4, Critical: 18},
		{ID: MillPressure, Name: "Mill Pressure", Unit: "bar", Min: 1.5, Max: 2.5, Optimal: 2.1, Critical: 3.0},
		{ID: MillParticle, Name: "Particle Size", Unit: "µm", Min: 8, Max: 16, Optimal: 12, Critical: 20},
		{ID: MillEfficiency, Name: "Mill Efficiency", Unit: "%", Min: 70, Max: 90, Optimal: 78, Critical: 95},
		{ID: StackFlow, Name: "Stack Gas Flow", Unit: "Nm³/h", Min: 1000, Max: 1500, Optimal: 1250, Critical: 1800},
		{ID: FuelRate, Name: "Fuel Feed Rate", Unit: "kg/h", Min: 500, Max: 800, Optimal: 650, Critical: 900},
		{ID: Oxygen, Name: "Oxygen Level", Unit: "%", Min: 2.0, Max: 4.5, Optimal: 3.2, Critical: 6.0},
		{ID: CarbonMonoxide, Name: "CO Level", Unit: "ppm", Min: 50, Max: 200, Optimal: 100, Critical: 500},
	}
}
