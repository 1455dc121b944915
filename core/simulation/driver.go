// Package simulation drives the storage, the generators, the controller and
// the dispatch policy through a horizon of steps.
package simulation

import (
	"fmt"
	"math"
	"sort"

	"github.com/kilianp07/heatsim/core/control"
	"github.com/kilianp07/heatsim/core/dispatch"
	"github.com/kilianp07/heatsim/core/generator"
	"github.com/kilianp07/heatsim/core/logger"
	"github.com/kilianp07/heatsim/core/model"
	"github.com/kilianp07/heatsim/core/storage"
)

const (
	minAmbientC = -50.0
	maxAmbientC = 50.0
	maxSupplyC  = 150.0
)

// Setup groups the components of one simulated plant.
type Setup struct {
	Simulation Config
	Storage    storage.Config
	Controller control.Config
	Dispatch   dispatch.Config
	Units      []generator.Unit
}

// State is threaded through the steps of a run by value.
type State struct {
	Storage        model.StorageState `json:"storage"`
	CumulativeCost float64            `json:"cumulative_cost"`
	StepIndex      int                `json:"step_index"`
	// LastOutputs holds the previous output in kW of every running unit.
	LastOutputs map[string]float64 `json:"last_outputs"`
}

// Clone returns a deep copy of s.
func (s State) Clone() State {
	c := s
	c.Storage = s.Storage.Clone()
	c.LastOutputs = make(map[string]float64, len(s.LastOutputs))
	for k, v := range s.LastOutputs {
		c.LastOutputs[k] = v
	}
	return c
}

// Driver owns the immutable plant description. It is safe for concurrent
// runs since no step mutates it.
type Driver struct {
	cfg    Config
	store  *storage.Model
	ctrl   *control.Controller
	policy *dispatch.Policy
	units  []generator.Unit
	byID   map[string]generator.Unit
	log    logger.Logger
}

// New validates every component. Any configuration error is fatal.
func New(s Setup, log logger.Logger) (*Driver, error) {
	if log == nil {
		log = logger.NopLogger{}
	}
	cfg := s.Simulation
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	store, err := storage.New(s.Storage)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	ctrl, err := control.New(s.Controller)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if cfg.ReturnTempC >= ctrl.Config().MinSupplyC {
		return nil, fmt.Errorf("%w: return temperature %.1f not below min supply %.1f", ErrInvalidConfig, cfg.ReturnTempC, ctrl.Config().MinSupplyC)
	}
	policy, err := dispatch.New(s.Dispatch, store, s.Units)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	d := &Driver{
		cfg:    cfg,
		store:  store,
		ctrl:   ctrl,
		policy: policy,
		units:  append([]generator.Unit(nil), s.Units...),
		byID:   make(map[string]generator.Unit, len(s.Units)),
		log:    log,
	}
	for _, u := range d.units {
		d.byID[u.ID()] = u
	}
	return d, nil
}

// Config returns the effective run settings.
func (d *Driver) Config() Config { return d.cfg }

// Storage exposes the tank model.
func (d *Driver) Storage() *storage.Model { return d.store }

// Units returns the configured units in configuration order.
func (d *Driver) Units() []generator.Unit { return append([]generator.Unit(nil), d.units...) }

// InitialState builds the state before the first step.
func (d *Driver) InitialState() (State, error) {
	st, err := d.store.Initial()
	if err != nil {
		return State{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return State{Storage: st, LastOutputs: map[string]float64{}}, nil
}

// ValidateState checks a state supplied by the caller.
func (d *Driver) ValidateState(s State) error {
	if len(s.Storage.Layers) != d.store.Config().Layers {
		return fmt.Errorf("%w: state has %d layers, tank has %d", ErrInvalidConfig, len(s.Storage.Layers), d.store.Config().Layers)
	}
	if !s.Storage.Stratified(1e-6) {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, storage.ErrNotStratified)
	}
	ids := make([]string, 0, len(s.LastOutputs))
	for id := range s.LastOutputs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		u, ok := d.byID[id]
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownUnit, id)
		}
		kw := s.LastOutputs[id]
		if math.IsNaN(kw) || math.IsInf(kw, 0) || kw < 0 || kw > u.Spec().MaxPowerKW {
			return fmt.Errorf("%w: last output %.1f kW of %q outside [0, %.1f]", ErrInvalidConfig, kw, id, u.Spec().MaxPowerKW)
		}
	}
	return nil
}

// Step advances the plant by one step. It is a pure function of its
// arguments: s is not modified and the same inputs give the same outputs.
func (d *Driver) Step(s State, in model.TimestepInput) (State, model.TimestepResult) {
	dt := d.cfg.DtHours()
	ret := d.cfg.ReturnTempC
	in, inputClamped := d.sanitize(in)
	st := s.Storage
	load := in.LoadKW * dt

	pre := d.ctrl.RequiredAction(st.OutletTempC, in.SupplySetpointC, in.AmbientC)
	dec := d.policy.Decide(dispatch.Request{
		Storage:     st,
		Input:       in,
		LoadKWh:     load,
		Action:      pre,
		ReturnC:     ret,
		DtHours:     dt,
		LastOutputs: s.LastOutputs,
	})

	outputs := make([]model.GeneratorOutput, 0, len(dec.Commands))
	last := make(map[string]float64, len(dec.Commands))
	var genHeat, flowHeat, cost float64
	genClamped := false
	for _, cmd := range dec.Commands {
		u := d.byID[cmd.UnitID]
		out := u.Run(cmd, generator.ConditionsFor(in, st.OutletTempC, dt, s.LastOutputs[cmd.UnitID]))
		outputs = append(outputs, out)
		if out.On {
			last[cmd.UnitID] = out.SetpointKW
		}
		genHeat += out.HeatKWh
		flowHeat += out.HeatKWh * u.Spec().FlowTempC
		cost += out.NetCost()
		genClamped = genClamped || out.Clamped
	}

	// generators boost the storage flow in series first, then displace
	// storage discharge, and whatever is left charges the tank
	share, boost := control.BoostShare(load, st.OutletTempC, pre.RequiredC, ret)
	boostCovered := math.Min(genHeat, boost)
	rest := genHeat - boostCovered
	directShare := math.Min(rest, share)
	flowC := d.store.Config().MaxTempC
	if genHeat > 0 {
		flowC = flowHeat / genHeat
	}
	next, rep := d.store.Advance(st, storage.AdvanceInput{
		HeatInKWh:   rest - directShare,
		FlowTempInC: flowC,
		HeatOutKWh:  share - directShare,
		ReturnTempC: ret,
		AmbientC:    d.store.Config().AmbientC,
		DtHours:     dt,
	})

	delivered := boostCovered + directShare + rep.HeatOutKWh
	r := model.TimestepResult{
		Index:           in.Index,
		Time:            in.Time,
		Input:           in,
		Storage:         next,
		Outputs:         outputs,
		ReturnTempC:     ret,
		RequiredSupplyC: pre.RequiredC,
		LoadKWh:         load,
		DeliveredKWh:    delivered,
		StorageOutKWh:   rep.HeatOutKWh,
		StorageInKWh:    rep.HeatInKWh,
		LossKWh:         rep.LossKWh,
		StepCost:        cost,
		CumulativeCost:  s.CumulativeCost + cost,
		Action:          d.ctrl.RequiredAction(next.OutletTempC, in.SupplySetpointC, in.AmbientC),
		Explanation:     dec.Explanation,
		Flags: model.Flags{
			UnmetDemand:      load > 0 && delivered < load-1e-6*math.Max(1, load),
			Overflow:         rep.Overflow,
			Underflow:        rep.Underflow,
			InputClamped:     inputClamped || rep.InputClamped,
			GeneratorClamped: genClamped,
		},
	}
	r.SupplyTempC = supplyTemp(load, delivered, st.OutletTempC, pre.RequiredC, ret)

	return State{
		Storage:        next,
		CumulativeCost: r.CumulativeCost,
		StepIndex:      s.StepIndex + 1,
		LastOutputs:    last,
	}, r
}

// supplyTemp is the flow temperature the network receives at the mass flow
// the load implies.
func supplyTemp(load, delivered, outletC, requiredC, returnC float64) float64 {
	if load <= 0 {
		return math.Min(outletC, requiredC)
	}
	if requiredC <= returnC {
		return requiredC
	}
	return returnC + math.Min(1, delivered/load)*(requiredC-returnC)
}

// sanitize replaces implausible input values and reports whether it had to.
func (d *Driver) sanitize(in model.TimestepInput) (model.TimestepInput, bool) {
	clamped := false
	bad := func(v float64) bool { return math.IsNaN(v) || math.IsInf(v, 0) }
	if bad(in.LoadKW) || in.LoadKW < 0 {
		in.LoadKW = 0
		clamped = true
	}
	if bad(in.PricePerKWh) {
		in.PricePerKWh = 0
		clamped = true
	}
	switch {
	case bad(in.AmbientC):
		in.AmbientC = d.store.Config().AmbientC
		clamped = true
	case in.AmbientC < minAmbientC || in.AmbientC > maxAmbientC:
		in.AmbientC = math.Max(minAmbientC, math.Min(maxAmbientC, in.AmbientC))
		clamped = true
	}
	if bad(in.SupplySetpointC) || in.SupplySetpointC < 0 || in.SupplySetpointC > maxSupplyC ||
		(in.SupplySetpointC > 0 && in.SupplySetpointC <= d.cfg.ReturnTempC) {
		in.SupplySetpointC = 0
		clamped = true
	}
	if in.HasFuelPrice && bad(in.FuelPricePerKWh) {
		in.FuelPricePerKWh = 0
		in.HasFuelPrice = false
		clamped = true
	}
	return in, clamped
}
