package generator

import (
	"fmt"
	"math"

	"github.com/kilianp07/heatsim/core/model"
)

const (
	kelvinOffset = 273.15
	// minLiftK keeps the Carnot estimate finite when source and sink meet.
	minLiftK = 5.0
)

// HeatPumpConfig configures an electric heat pump.
type HeatPumpConfig struct {
	model.GeneratorSpec `json:",squash"`
	// COPCurve maps ambient temperature to COP measured at ReferenceSinkC.
	COPCurve []CurvePoint `json:"cop_curve"`
	// ReferenceSinkC is the sink temperature the curve was measured at.
	ReferenceSinkC float64 `json:"reference_sink_c"`
	// SinkCorrectionPerK is the relative COP reduction per kelvin of sink
	// temperature above the reference.
	SinkCorrectionPerK float64 `json:"sink_correction_per_k"`
	// CarnotFraction is used when no curve is configured.
	CarnotFraction float64 `json:"carnot_fraction"`
	MaxCOP         float64 `json:"max_cop"`
}

// SetDefaults applies defaults for the COP model.
func (c *HeatPumpConfig) SetDefaults() {
	if c.MaxCOP == 0 {
		c.MaxCOP = 7
	}
	if len(c.COPCurve) == 0 && c.CarnotFraction == 0 {
		c.CarnotFraction = 0.45
	}
	if len(c.COPCurve) > 0 && c.ReferenceSinkC == 0 {
		c.ReferenceSinkC = 35
	}
}

// HeatPump turns electricity into heat with an ambient dependent COP.
type HeatPump struct {
	cfg HeatPumpConfig
	cop *Curve
}

// NewHeatPump validates cfg.
func NewHeatPump(cfg HeatPumpConfig) (*HeatPump, error) {
	cfg.Type = model.GeneratorHeatPump
	cfg.SetDefaults()
	if err := cfg.GeneratorSpec.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if cfg.MaxCOP < 1 {
		return nil, fmt.Errorf("%w: heat pump %s: max cop %.2f below 1", ErrInvalidConfig, cfg.ID, cfg.MaxCOP)
	}
	if cfg.SinkCorrectionPerK < 0 {
		return nil, fmt.Errorf("%w: heat pump %s: negative sink correction", ErrInvalidConfig, cfg.ID)
	}
	u := &HeatPump{cfg: cfg}
	if len(cfg.COPCurve) > 0 {
		c, err := NewCurve(cfg.COPCurve)
		if err != nil {
			return nil, fmt.Errorf("heat pump %s cop curve: %w", cfg.ID, err)
		}
		if c.Min() <= 0 {
			return nil, fmt.Errorf("%w: heat pump %s: cop must be positive", ErrInvalidConfig, cfg.ID)
		}
		u.cop = c
	} else if cfg.CarnotFraction <= 0 || cfg.CarnotFraction > 1 {
		return nil, fmt.Errorf("%w: heat pump %s: carnot fraction %.3f not in (0,1]", ErrInvalidConfig, cfg.ID, cfg.CarnotFraction)
	}
	return u, nil
}

func (u *HeatPump) ID() string                { return u.cfg.ID }
func (u *HeatPump) Type() model.GeneratorType { return model.GeneratorHeatPump }
func (u *HeatPump) Spec() model.GeneratorSpec { return u.cfg.GeneratorSpec }

// COP returns the coefficient of performance for the given conditions,
// clamped to [1, MaxCOP].
func (u *HeatPump) COP(c Conditions) float64 {
	sink := u.cfg.FlowTempC
	if c.SinkTempC > 0 && c.SinkTempC < sink {
		sink = c.SinkTempC
	}
	var cop float64
	if u.cop != nil {
		cop = u.cop.At(c.AmbientC) * (1 - u.cfg.SinkCorrectionPerK*(sink-u.cfg.ReferenceSinkC))
	} else {
		lift := math.Max(sink-c.AmbientC, minLiftK)
		cop = u.cfg.CarnotFraction * (sink + kelvinOffset) / lift
	}
	if math.IsNaN(cop) {
		return 1
	}
	return math.Min(math.Max(cop, 1), u.cfg.MaxCOP)
}

// MarginalCost is the electricity cost per kWh of heat.
func (u *HeatPump) MarginalCost(c Conditions) float64 {
	return c.PricePerKWh / u.COP(c)
}

func (u *HeatPump) Capacity(c Conditions) (float64, float64) {
	return capacity(u.cfg.GeneratorSpec, c.PreviousKW)
}

func (u *HeatPump) Run(cmd model.GeneratorCommand, c Conditions) model.GeneratorOutput {
	kw, clamped := setpoint(u.cfg.GeneratorSpec, cmd, c)
	out := baseOutput(u.cfg.GeneratorSpec, cmd.On, kw, clamped)
	heat := kw * dt(c)
	cop := u.COP(c)
	used := heat / cop
	out.HeatKWh = heat
	out.ElectricityKWh = -used
	out.Cost = used * c.PricePerKWh
	if out.On {
		out.COP = cop
	}
	return out
}
