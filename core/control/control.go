// Package control implements the supply temperature controller of the
// heating network.
package control

import (
	"errors"
	"fmt"
	"math"

	"github.com/kilianp07/heatsim/core/model"
)

// ErrInvalidConfig is returned for inconsistent heating curve parameters.
var ErrInvalidConfig = errors.New("invalid controller configuration")

// Config describes the heating curve.
type Config struct {
	// DesignSupplyC is the supply temperature at and below MinOutdoorC.
	DesignSupplyC float64 `json:"design_supply_c"`
	MinOutdoorC   float64 `json:"min_outdoor_c"`
	// SlopeKPerK is the supply temperature decrease per kelvin of outdoor
	// temperature above MinOutdoorC.
	SlopeKPerK float64 `json:"slope_k_per_k"`
	MinSupplyC float64 `json:"min_supply_c"`
	// ToleranceK accepts an outlet slightly below the requirement.
	ToleranceK float64 `json:"tolerance_k"`
}

// SetDefaults applies the defaults of a typical district heating curve.
func (c *Config) SetDefaults() {
	if c.DesignSupplyC == 0 {
		c.DesignSupplyC = 80
	}
	if c.MinOutdoorC == 0 {
		c.MinOutdoorC = -12
	}
	if c.SlopeKPerK == 0 {
		c.SlopeKPerK = 0.8
	}
	if c.MinSupplyC == 0 {
		c.MinSupplyC = 60
	}
}

// Validate checks the curve parameters.
func (c Config) Validate() error {
	if c.SlopeKPerK < 0 {
		return fmt.Errorf("%w: negative slope", ErrInvalidConfig)
	}
	if c.MinSupplyC > c.DesignSupplyC {
		return fmt.Errorf("%w: min supply %.1f above design supply %.1f", ErrInvalidConfig, c.MinSupplyC, c.DesignSupplyC)
	}
	if c.ToleranceK < 0 {
		return fmt.Errorf("%w: negative tolerance", ErrInvalidConfig)
	}
	return nil
}

// Controller evaluates the heating curve. It holds no state.
type Controller struct {
	cfg Config
}

// New validates cfg.
func New(cfg Config) (*Controller, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Controller{cfg: cfg}, nil
}

// Config returns the effective configuration.
func (c *Controller) Config() Config { return c.cfg }

// RequiredSupply returns the heating curve value for the outdoor temperature.
func (c *Controller) RequiredSupply(ambientC float64) float64 {
	if math.IsNaN(ambientC) || ambientC <= c.cfg.MinOutdoorC {
		return c.cfg.DesignSupplyC
	}
	t := c.cfg.DesignSupplyC - c.cfg.SlopeKPerK*(ambientC-c.cfg.MinOutdoorC)
	return math.Max(t, c.cfg.MinSupplyC)
}

// Required returns the setpoint when one is given, otherwise the heating curve.
func (c *Controller) Required(setpointC, ambientC float64) float64 {
	if setpointC > 0 {
		return setpointC
	}
	return c.RequiredSupply(ambientC)
}

// RequiredAction compares the storage outlet with the requirement.
func (c *Controller) RequiredAction(outletC, setpointC, ambientC float64) model.SupplyAction {
	req := c.Required(setpointC, ambientC)
	a := model.SupplyAction{OK: true, RequiredC: req}
	if outletC+c.cfg.ToleranceK < req {
		a.OK = false
		a.BoostDeltaC = req - outletC
	}
	return a
}

// BoostShare splits the heat of a load into the part the storage supplies by
// warming the return flow to the outlet temperature and the part a generator
// has to add in series to reach the requirement.
func BoostShare(loadKWh, outletC, requiredC, returnC float64) (storageKWh, boostKWh float64) {
	if loadKWh <= 0 {
		return 0, 0
	}
	span := requiredC - returnC
	if span <= 0 || outletC >= requiredC {
		return loadKWh, 0
	}
	if outletC <= returnC {
		return 0, loadKWh
	}
	storageKWh = loadKWh * (outletC - returnC) / span
	return storageKWh, loadKWh - storageKWh
}
