package generator

import (
	"fmt"

	"github.com/kilianp07/heatsim/core/model"
)

// BackupConfig configures a fuel fired peak boiler.
type BackupConfig struct {
	model.GeneratorSpec `json:",squash"`
	Efficiency          float64 `json:"efficiency"`
	FuelPricePerKWh     float64 `json:"fuel_price_per_kwh"`
}

// Backup is the last resort heat source.
type Backup struct {
	cfg BackupConfig
}

// NewBackup validates cfg. Efficiency defaults to 0.9.
func NewBackup(cfg BackupConfig) (*Backup, error) {
	cfg.Type = model.GeneratorBackup
	if cfg.Efficiency == 0 {
		cfg.Efficiency = 0.9
	}
	if err := cfg.GeneratorSpec.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if cfg.Efficiency < 0 || cfg.Efficiency > 1 {
		return nil, fmt.Errorf("%w: backup %s: efficiency %.3f not in (0,1]", ErrInvalidConfig, cfg.ID, cfg.Efficiency)
	}
	if cfg.FuelPricePerKWh < 0 {
		return nil, fmt.Errorf("%w: backup %s: negative fuel price", ErrInvalidConfig, cfg.ID)
	}
	return &Backup{cfg: cfg}, nil
}

func (u *Backup) ID() string                { return u.cfg.ID }
func (u *Backup) Type() model.GeneratorType { return model.GeneratorBackup }
func (u *Backup) Spec() model.GeneratorSpec { return u.cfg.GeneratorSpec }

func (u *Backup) MarginalCost(c Conditions) float64 {
	return fuelPrice(u.cfg.FuelPricePerKWh, c) / u.cfg.Efficiency
}

func (u *Backup) Capacity(c Conditions) (float64, float64) {
	return capacity(u.cfg.GeneratorSpec, c.PreviousKW)
}

func (u *Backup) Run(cmd model.GeneratorCommand, c Conditions) model.GeneratorOutput {
	kw, clamped := setpoint(u.cfg.GeneratorSpec, cmd, c)
	out := baseOutput(u.cfg.GeneratorSpec, cmd.On, kw, clamped)
	out.HeatKWh = kw * dt(c)
	out.FuelKWh = out.HeatKWh / u.cfg.Efficiency
	out.Cost = out.FuelKWh * fuelPrice(u.cfg.FuelPricePerKWh, c)
	return out
}
