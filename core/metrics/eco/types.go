package eco

import (
	"math"
	"time"

	"github.com/kilianp07/heatsim/core/model"
)

// Record aggregates the energy carriers a unit used on one day of a
// scenario.
type Record struct {
	Scenario string
	UnitID   string
	Date     time.Time
	// FuelKWh is the fuel burned by CHP and boiler units.
	FuelKWh float64
	// ImportKWh is electricity drawn from the grid, ExportKWh electricity fed in.
	ImportKWh float64
	ExportKWh float64
	HeatKWh   float64
}

// NetCO2 returns the emitted CO2 in kg. Exported electricity is credited at
// the grid factor. Factors are kg CO2 per kWh.
func (r Record) NetCO2(fuelFactor, gridFactor float64) float64 {
	return r.FuelKWh*fuelFactor + (r.ImportKWh-r.ExportKWh)*gridFactor
}

// HeatIntensity returns kg CO2 per kWh of heat.
func (r Record) HeatIntensity(fuelFactor, gridFactor float64) float64 {
	if r.HeatKWh == 0 {
		return 0
	}
	return r.NetCO2(fuelFactor, gridFactor) / r.HeatKWh
}

// FromOutput converts the output of a running unit at t into a Record of
// the scenario. Negative electricity is grid import.
func FromOutput(scenario string, t time.Time, o model.GeneratorOutput) Record {
	return Record{
		Scenario:  scenario,
		UnitID:    o.UnitID,
		Date:      t,
		FuelKWh:   o.FuelKWh,
		ImportKWh: math.Max(0, -o.ElectricityKWh),
		ExportKWh: math.Max(0, o.ElectricityKWh),
		HeatKWh:   o.HeatKWh,
	}
}
