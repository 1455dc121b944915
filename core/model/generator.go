package model

import (
	"fmt"
	"strings"
)

// GeneratorType identifies the kind of heat generation unit.
type GeneratorType int

const (
	GeneratorUnknown GeneratorType = iota
	GeneratorCHP
	GeneratorHeatPump
	GeneratorBackup
)

// String returns a human-readable representation of the generator type.
func (t GeneratorType) String() string {
	switch t {
	case GeneratorCHP:
		return "chp"
	case GeneratorHeatPump:
		return "heatpump"
	case GeneratorBackup:
		return "backup"
	default:
		return "unknown"
	}
}

// ParseGeneratorType converts a configuration name into a GeneratorType.
func ParseGeneratorType(s string) (GeneratorType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "chp":
		return GeneratorCHP, nil
	case "heatpump", "heat_pump", "hp":
		return GeneratorHeatPump, nil
	case "backup", "boiler":
		return GeneratorBackup, nil
	default:
		return GeneratorUnknown, fmt.Errorf("unknown generator type %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (t GeneratorType) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *GeneratorType) UnmarshalText(b []byte) error {
	v, err := ParseGeneratorType(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// GeneratorSpec is the static configuration shared by every unit type.
// It is immutable once a simulation starts.
type GeneratorSpec struct {
	ID            string        `json:"id"`
	Type          GeneratorType `json:"-"`
	MinPowerKW    float64       `json:"min_power_kw"`
	MaxPowerKW    float64       `json:"max_power_kw"`
	RampKWPerStep float64       `json:"ramp_kw_per_step"` // 0 disables ramp limits
	FlowTempC     float64       `json:"flow_temp_c"`      // supply temperature the unit delivers
}

// Validate checks capacity bounds.
func (s GeneratorSpec) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("generator id is required")
	}
	if s.MinPowerKW < 0 || s.MaxPowerKW < 0 {
		return fmt.Errorf("generator %s: negative capacity", s.ID)
	}
	if s.MaxPowerKW == 0 {
		return fmt.Errorf("generator %s: max power must be positive", s.ID)
	}
	if s.MinPowerKW > s.MaxPowerKW {
		return fmt.Errorf("generator %s: min power %.2f exceeds max power %.2f", s.ID, s.MinPowerKW, s.MaxPowerKW)
	}
	if s.RampKWPerStep < 0 {
		return fmt.Errorf("generator %s: negative ramp", s.ID)
	}
	if s.FlowTempC <= 0 {
		return fmt.Errorf("generator %s: flow temperature must be positive", s.ID)
	}
	return nil
}

// GeneratorCommand is the per-step decision for one unit.
type GeneratorCommand struct {
	UnitID     string  `json:"unit_id"`
	On         bool    `json:"on"`
	SetpointKW float64 `json:"setpoint_kw"`
}

// GeneratorOutput is what a unit produced while executing a command.
type GeneratorOutput struct {
	UnitID     string        `json:"unit_id"`
	Type       GeneratorType `json:"type"`
	On         bool          `json:"on"`
	SetpointKW float64       `json:"setpoint_kw"`
	HeatKWh    float64       `json:"heat_kwh"`
	// ElectricityKWh is positive when produced (CHP) and negative when consumed (heat pump).
	ElectricityKWh float64 `json:"electricity_kwh"`
	FuelKWh        float64 `json:"fuel_kwh"`
	Cost           float64 `json:"cost"`
	Revenue        float64 `json:"revenue"`
	COP            float64 `json:"cop,omitempty"`
	Clamped        bool    `json:"clamped"`
}

// NetCost returns the operating cost minus electricity revenue.
func (o GeneratorOutput) NetCost() float64 { return o.Cost - o.Revenue }
