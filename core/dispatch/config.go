package dispatch

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig is returned for inconsistent policy settings.
var ErrInvalidConfig = errors.New("invalid dispatch configuration")

// Config defines dispatch-related settings.
type Config struct {
	// MinSoC triggers a recharge towards TargetSoC when the tank falls below it.
	MinSoC    float64 `json:"min_soc"`
	TargetSoC float64 `json:"target_soc"`
	// HeatPumpCostRatio excludes a heat pump whose electricity cost per kWh of
	// heat exceeds this multiple of the cheapest CHP fuel cost per kWh of heat.
	HeatPumpCostRatio float64 `json:"heat_pump_cost_ratio"`
	// HeatPumpMaxPrice excludes heat pumps above this electricity price when no
	// CHP is configured. Zero disables the gate.
	HeatPumpMaxPrice float64 `json:"heat_pump_max_price"`
	// OpportunisticCharge fills the tank with every eligible unit whose
	// marginal cost is at or below ChargeMaxCost.
	OpportunisticCharge bool    `json:"opportunistic_charge"`
	ChargeMaxCost       float64 `json:"charge_max_cost"`
}

// SetDefaults applies defaults.
func (c *Config) SetDefaults() {
	if c.HeatPumpCostRatio == 0 {
		c.HeatPumpCostRatio = 1
	}
	if c.TargetSoC < c.MinSoC {
		c.TargetSoC = c.MinSoC
	}
}

// Validate checks the thresholds.
func (c Config) Validate() error {
	if c.MinSoC < 0 || c.MinSoC > 1 {
		return fmt.Errorf("%w: min_soc %.3f not in [0,1]", ErrInvalidConfig, c.MinSoC)
	}
	if c.TargetSoC < c.MinSoC || c.TargetSoC > 1 {
		return fmt.Errorf("%w: target_soc %.3f not in [min_soc,1]", ErrInvalidConfig, c.TargetSoC)
	}
	if c.HeatPumpCostRatio < 0 {
		return fmt.Errorf("%w: negative heat pump cost ratio", ErrInvalidConfig)
	}
	if c.HeatPumpMaxPrice < 0 {
		return fmt.Errorf("%w: negative heat pump max price", ErrInvalidConfig)
	}
	return nil
}
