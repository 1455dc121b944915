package simulation

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig marks a configuration that must not be simulated.
	ErrInvalidConfig = errors.New("invalid simulation configuration")
	// ErrUnknownUnit is returned when a state references a unit that is not
	// configured.
	ErrUnknownUnit = errors.New("unknown generator unit")
)

// Config holds the run level settings.
type Config struct {
	StepMinutes int `json:"step_minutes"`
	// HorizonSteps is the expected number of steps. Zero accepts the length
	// of the input series.
	HorizonSteps int `json:"horizon_steps"`
	// ReturnTempC is the network return temperature.
	ReturnTempC float64 `json:"return_temp_c"`
}

// SetDefaults applies defaults.
func (c *Config) SetDefaults() {
	if c.StepMinutes == 0 {
		c.StepMinutes = 60
	}
	if c.ReturnTempC == 0 {
		c.ReturnTempC = 45
	}
}

// Validate checks the run settings.
func (c Config) Validate() error {
	if c.StepMinutes <= 0 {
		return fmt.Errorf("%w: step_minutes must be positive", ErrInvalidConfig)
	}
	if c.HorizonSteps < 0 {
		return fmt.Errorf("%w: negative horizon", ErrInvalidConfig)
	}
	if c.ReturnTempC <= 0 || c.ReturnTempC >= 100 {
		return fmt.Errorf("%w: return temperature %.1f out of (0,100)", ErrInvalidConfig, c.ReturnTempC)
	}
	return nil
}

// DtHours returns the step length in hours.
func (c Config) DtHours() float64 { return float64(c.StepMinutes) / 60 }
