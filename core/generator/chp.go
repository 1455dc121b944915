package generator

import (
	"fmt"

	"github.com/kilianp07/heatsim/core/model"
)

// CHPConfig configures a combined heat and power unit.
type CHPConfig struct {
	model.GeneratorSpec `json:",squash"`
	// ThermalEfficiency is heat output per unit of fuel.
	ThermalEfficiency float64 `json:"thermal_efficiency"`
	// PowerToHeatRatio is electricity produced per kWh of heat.
	PowerToHeatRatio float64 `json:"power_to_heat_ratio"`
	// PowerToHeatCurve maps the part-load fraction (0..1) to the
	// power-to-heat ratio and replaces PowerToHeatRatio when set.
	PowerToHeatCurve []CurvePoint `json:"power_to_heat_curve"`
	FuelPricePerKWh  float64      `json:"fuel_price_per_kwh"`
	SellElectricity  bool         `json:"sell_electricity"`
}

// CHP produces heat and electricity from fuel.
type CHP struct {
	cfg   CHPConfig
	sigma *Curve
}

// NewCHP validates cfg.
func NewCHP(cfg CHPConfig) (*CHP, error) {
	cfg.Type = model.GeneratorCHP
	if err := cfg.GeneratorSpec.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if cfg.ThermalEfficiency <= 0 || cfg.ThermalEfficiency > 1 {
		return nil, fmt.Errorf("%w: chp %s: thermal efficiency %.3f not in (0,1]", ErrInvalidConfig, cfg.ID, cfg.ThermalEfficiency)
	}
	if cfg.FuelPricePerKWh < 0 {
		return nil, fmt.Errorf("%w: chp %s: negative fuel price", ErrInvalidConfig, cfg.ID)
	}
	u := &CHP{cfg: cfg}
	maxSigma := cfg.PowerToHeatRatio
	if len(cfg.PowerToHeatCurve) > 0 {
		c, err := NewCurve(cfg.PowerToHeatCurve)
		if err != nil {
			return nil, fmt.Errorf("chp %s power to heat curve: %w", cfg.ID, err)
		}
		if c.Min() < 0 {
			return nil, fmt.Errorf("%w: chp %s: negative power to heat ratio", ErrInvalidConfig, cfg.ID)
		}
		u.sigma = c
		maxSigma = c.Max()
	} else if cfg.PowerToHeatRatio < 0 {
		return nil, fmt.Errorf("%w: chp %s: negative power to heat ratio", ErrInvalidConfig, cfg.ID)
	}
	// electrical plus thermal efficiency cannot exceed the fuel input
	if cfg.ThermalEfficiency*(1+maxSigma) > 1+1e-9 {
		return nil, fmt.Errorf("%w: chp %s: total efficiency %.3f exceeds 1", ErrInvalidConfig, cfg.ID, cfg.ThermalEfficiency*(1+maxSigma))
	}
	return u, nil
}

func (u *CHP) ID() string                { return u.cfg.ID }
func (u *CHP) Type() model.GeneratorType { return model.GeneratorCHP }
func (u *CHP) Spec() model.GeneratorSpec { return u.cfg.GeneratorSpec }

// PowerToHeat returns the power-to-heat ratio at the given output.
func (u *CHP) PowerToHeat(kw float64) float64 {
	if u.sigma == nil {
		return u.cfg.PowerToHeatRatio
	}
	return u.sigma.At(kw / u.cfg.MaxPowerKW)
}

// FuelCostPerHeatKWh is the fuel cost of one kWh of heat, ignoring revenue.
func (u *CHP) FuelCostPerHeatKWh(c Conditions) float64 {
	return fuelPrice(u.cfg.FuelPricePerKWh, c) / u.cfg.ThermalEfficiency
}

// MarginalCost nets the electricity revenue against the fuel cost.
func (u *CHP) MarginalCost(c Conditions) float64 {
	cost := u.FuelCostPerHeatKWh(c)
	if u.cfg.SellElectricity {
		cost -= u.PowerToHeat(u.cfg.MaxPowerKW) * c.PricePerKWh
	}
	return cost
}

func (u *CHP) Capacity(c Conditions) (float64, float64) {
	return capacity(u.cfg.GeneratorSpec, c.PreviousKW)
}

func (u *CHP) Run(cmd model.GeneratorCommand, c Conditions) model.GeneratorOutput {
	kw, clamped := setpoint(u.cfg.GeneratorSpec, cmd, c)
	out := baseOutput(u.cfg.GeneratorSpec, cmd.On, kw, clamped)
	heat := kw * dt(c)
	out.HeatKWh = heat
	out.FuelKWh = heat / u.cfg.ThermalEfficiency
	out.ElectricityKWh = u.PowerToHeat(kw) * heat
	out.Cost = out.FuelKWh * fuelPrice(u.cfg.FuelPricePerKWh, c)
	if u.cfg.SellElectricity {
		out.Revenue = out.ElectricityKWh * c.PricePerKWh
	}
	return out
}
