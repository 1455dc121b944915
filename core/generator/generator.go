// Package generator implements the heat generation units driven by the
// dispatch policy: combined heat and power plants, heat pumps and backup
// boilers. Units are stateless; the previous output needed for ramp limits is
// passed in through Conditions.
package generator

import (
	"errors"
	"math"

	"github.com/kilianp07/heatsim/core/model"
)

// ErrInvalidConfig is returned when a unit cannot be constructed from its
// configuration.
var ErrInvalidConfig = errors.New("invalid generator configuration")

// Conditions are the external values a unit sees during one step.
type Conditions struct {
	AmbientC float64
	// SinkTempC is the temperature of the water the unit heats into. Zero
	// means the unit's own flow temperature.
	SinkTempC       float64
	PricePerKWh     float64
	FuelPricePerKWh float64
	HasFuelPrice    bool
	DtHours         float64
	// PreviousKW is the output of the previous step, 0 when the unit was off.
	PreviousKW float64
}

// Unit is a controllable heat source.
type Unit interface {
	ID() string
	Type() model.GeneratorType
	Spec() model.GeneratorSpec
	// MarginalCost returns the net cost per kWh of heat at rated output.
	MarginalCost(c Conditions) float64
	// Capacity returns the output range reachable this step once the unit is on.
	Capacity(c Conditions) (minKW, maxKW float64)
	Run(cmd model.GeneratorCommand, c Conditions) model.GeneratorOutput
}

// capacity applies ramp limits around the previous output. Start-up and
// shut-down are not ramp limited. The window never leaves the unit's power
// range; a previous output outside it snaps to the nearest bound.
func capacity(s model.GeneratorSpec, prevKW float64) (float64, float64) {
	lo, hi := s.MinPowerKW, s.MaxPowerKW
	if s.RampKWPerStep > 0 && prevKW > 0 {
		lo = within(prevKW-s.RampKWPerStep, s.MinPowerKW, s.MaxPowerKW)
		hi = within(prevKW+s.RampKWPerStep, s.MinPowerKW, s.MaxPowerKW)
	}
	return lo, hi
}

func within(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// setpoint resolves the power a command actually yields. Off commands give
// zero output; on commands are clamped into the reachable range.
func setpoint(s model.GeneratorSpec, cmd model.GeneratorCommand, c Conditions) (kw float64, clamped bool) {
	if !cmd.On {
		return 0, cmd.SetpointKW != 0
	}
	lo, hi := capacity(s, c.PreviousKW)
	kw = cmd.SetpointKW
	if math.IsNaN(kw) || math.IsInf(kw, 0) {
		return lo, true
	}
	if kw < lo {
		return lo, true
	}
	if kw > hi {
		return hi, true
	}
	return kw, false
}

func fuelPrice(configured float64, c Conditions) float64 {
	if c.HasFuelPrice {
		return c.FuelPricePerKWh
	}
	return configured
}

func dt(c Conditions) float64 {
	if c.DtHours <= 0 || math.IsNaN(c.DtHours) {
		return 0
	}
	return c.DtHours
}

func baseOutput(s model.GeneratorSpec, on bool, kw float64, clamped bool) model.GeneratorOutput {
	return model.GeneratorOutput{
		UnitID:     s.ID,
		Type:       s.Type,
		On:         on && kw > 0,
		SetpointKW: kw,
		Clamped:    clamped,
	}
}

// ConditionsFor builds the conditions of one step. sinkC is the storage
// outlet temperature.
func ConditionsFor(in model.TimestepInput, sinkC, dtHours, prevKW float64) Conditions {
	return Conditions{
		AmbientC:        in.AmbientC,
		SinkTempC:       sinkC,
		PricePerKWh:     in.PricePerKWh,
		FuelPricePerKWh: in.FuelPricePerKWh,
		HasFuelPrice:    in.HasFuelPrice,
		DtHours:         dtHours,
		PreviousKW:      prevKW,
	}
}
