package dispatch

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/kilianp07/heatsim/core/control"
	"github.com/kilianp07/heatsim/core/generator"
	"github.com/kilianp07/heatsim/core/model"
	"github.com/kilianp07/heatsim/core/storage"
)

const eps = 1e-9

// Request is the state the policy decides on for one step.
type Request struct {
	Storage model.StorageState
	Input   model.TimestepInput
	LoadKWh float64
	// Action carries the supply temperature requirement of the step.
	Action  model.SupplyAction
	ReturnC float64
	DtHours float64
	// LastOutputs holds the previous output in kW per unit ID.
	LastOutputs map[string]float64
}

// Decision is the outcome of one dispatch step.
type Decision struct {
	Commands []model.GeneratorCommand `json:"commands"`
	Ranking  []RankEntry              `json:"ranking"`
	// NeedKWh is the generator heat the step asks for.
	NeedKWh float64 `json:"need_kwh"`
	// StorageShareKWh is the part of the load the tank is expected to cover.
	StorageShareKWh float64 `json:"storage_share_kwh"`
	BoostKWh        float64 `json:"boost_kwh"`
	RechargeKWh     float64 `json:"recharge_kwh"`
	ChargeKWh       float64 `json:"charge_kwh"`
	PlannedKWh      float64 `json:"planned_kwh"`
	ShortfallKWh    float64 `json:"shortfall_kwh"`
	StorageOnly     bool    `json:"storage_only"`
	Explanation     string  `json:"explanation"`
}

// Policy ranks units through a priority table and activates them in order
// until the heat need is covered. It holds no state between steps.
type Policy struct {
	cfg   Config
	store *storage.Model
	table []Entry
	byID  map[string]Entry
}

// New builds the priority table for units.
func New(cfg Config, store *storage.Model, units []generator.Unit) (*Policy, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if store == nil {
		return nil, fmt.Errorf("%w: storage model required", ErrInvalidConfig)
	}
	p := &Policy{cfg: cfg, store: store, table: BuildTable(units), byID: make(map[string]Entry, len(units))}
	for _, e := range p.table {
		id := e.Unit.ID()
		if _, dup := p.byID[id]; dup {
			return nil, fmt.Errorf("%w: duplicate unit %q", ErrInvalidConfig, id)
		}
		p.byID[id] = e
	}
	return p, nil
}

// Table returns the priority table.
func (p *Policy) Table() []Entry { return append([]Entry(nil), p.table...) }

// Config returns the effective configuration.
func (p *Policy) Config() Config { return p.cfg }

// Decide computes the commands for one step.
func (p *Policy) Decide(req Request) Decision {
	st := req.Storage
	load := math.Max(0, req.LoadKWh)
	dt := req.DtHours

	share, boost := control.BoostShare(load, st.OutletTempC, req.Action.RequiredC, req.ReturnC)
	supply := math.Min(share, p.store.AvailableKWh(st, req.ReturnC))
	d := Decision{StorageShareKWh: supply, BoostKWh: boost}

	maxC := p.store.Config().MaxTempC
	headroom := p.store.HeadroomKWh(st, maxC)
	if st.SoC < p.cfg.MinSoC {
		d.RechargeKWh = math.Min(math.Max(0, p.cfg.TargetSoC*st.CapacityKWh-st.StoredEnergyKWh), headroom)
	}
	direct := boost + share - supply
	d.NeedKWh = direct + d.RechargeKWh

	e := p.environment(req, load)
	d.Ranking = p.rank(e)
	setpoints := make(map[string]float64, len(p.table))

	remaining := d.NeedKWh
	// intoTank is the planned heat that reaches the tank rather than the network
	var intoTank float64
	// room is what the tank still accepts at the unit's flow temperature
	room := func(u generator.Unit) float64 {
		return math.Max(0, math.Min(headroom, p.store.HeadroomKWh(st, u.Spec().FlowTempC))-intoTank)
	}
	if dt > 0 {
		for i := range d.Ranking {
			if remaining <= eps {
				break
			}
			r := &d.Ranking[i]
			if !r.Eligible {
				continue
			}
			u := p.byID[r.UnitID].Unit
			lo, hi := u.Capacity(e.cond[r.UnitID])
			if hi <= 0 {
				continue
			}
			kw := clamp(remaining/dt, lo, hi)
			if limit := (direct + room(u)) / dt; kw > limit+eps {
				if lo > limit+eps {
					r.Eligible = false
					r.Reason = "minimum_overflows_storage"
					continue
				}
				kw = limit
			}
			if kw <= eps {
				r.Eligible = false
				r.Reason = "storage_full"
				continue
			}
			produced := kw * dt
			toNetwork := math.Min(produced, direct)
			direct -= toNetwork
			intoTank += produced - toNetwork
			remaining -= math.Min(produced, remaining)
			r.SetpointKW = kw
			setpoints[r.UnitID] = kw
		}
		if p.cfg.OpportunisticCharge {
			d.ChargeKWh = p.charge(d.Ranking, e, setpoints, &intoTank, room, dt)
		}
	}

	d.ShortfallKWh = math.Max(0, remaining)
	for _, kw := range setpoints {
		d.PlannedKWh += kw * dt
	}
	d.StorageOnly = len(setpoints) == 0 && d.NeedKWh <= eps
	d.Commands = make([]model.GeneratorCommand, 0, len(p.table))
	for _, en := range p.table {
		id := en.Unit.ID()
		kw := setpoints[id]
		d.Commands = append(d.Commands, model.GeneratorCommand{UnitID: id, On: kw > 0, SetpointKW: kw})
	}
	d.Explanation = explain(d)
	return d
}

// charge raises cheap units towards their maximum to fill the tank.
func (p *Policy) charge(ranking []RankEntry, e *env, setpoints map[string]float64, intoTank *float64, room func(generator.Unit) float64, dt float64) float64 {
	var added float64
	for i := range ranking {
		r := &ranking[i]
		if !r.Eligible || r.MarginalCost > p.cfg.ChargeMaxCost {
			continue
		}
		u := p.byID[r.UnitID].Unit
		lo, hi := u.Capacity(e.cond[r.UnitID])
		current := setpoints[r.UnitID]
		extra := math.Min((hi-current)*dt, room(u))
		if extra <= eps {
			continue
		}
		kw := current + extra/dt
		if current == 0 && kw < lo {
			continue
		}
		*intoTank += extra
		added += extra
		setpoints[r.UnitID] = kw
		r.SetpointKW = kw
	}
	return added
}

func (p *Policy) environment(req Request, load float64) *env {
	in := req.Input
	e := &env{
		cfg:          p.cfg,
		input:        in,
		loadKWh:      load,
		requiredC:    req.Action.RequiredC,
		cond:         make(map[string]generator.Conditions, len(p.table)),
		heatPumpCost: make(map[string]float64),
	}
	cheapest := math.Inf(1)
	for _, en := range p.table {
		u := en.Unit
		c := generator.ConditionsFor(in, req.Storage.OutletTempC, req.DtHours, req.LastOutputs[u.ID()])
		e.cond[u.ID()] = c
		switch u.Type() {
		case model.GeneratorCHP:
			if fc, ok := u.(fuelCoster); ok {
				e.hasCHP = true
				cheapest = math.Min(cheapest, fc.FuelCostPerHeatKWh(c))
			}
		case model.GeneratorHeatPump:
			e.heatPumpCost[u.ID()] = en.Cost(c)
		}
	}
	if e.hasCHP {
		e.chpFuelCost = cheapest
	}
	return e
}

func (p *Policy) rank(e *env) []RankEntry {
	out := make([]RankEntry, 0, len(p.table))
	for _, en := range p.table {
		id := en.Unit.ID()
		r := RankEntry{
			UnitID:       id,
			Type:         en.Unit.Type(),
			Tier:         en.Tier,
			MarginalCost: en.Cost(e.cond[id]),
			Eligible:     true,
		}
		for _, pr := range en.Eligible {
			if !pr.Allow(en.Unit, e) {
				r.Eligible = false
				r.Reason = pr.Name
				break
			}
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

func explain(d Decision) string {
	if d.StorageOnly {
		return "storage only"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "need %.2f kWh (boost %.2f, recharge %.2f)", d.NeedKWh, d.BoostKWh, d.RechargeKWh)
	for _, r := range d.Ranking {
		switch {
		case !r.Eligible:
			fmt.Fprintf(&b, "; %s excluded (%s)", r.UnitID, r.Reason)
		case r.SetpointKW > 0:
			fmt.Fprintf(&b, "; %s %.2f kW at %.4f/kWh", r.UnitID, r.SetpointKW, r.MarginalCost)
		}
	}
	if d.ChargeKWh > 0 {
		fmt.Fprintf(&b, "; charging %.2f kWh", d.ChargeKWh)
	}
	if d.ShortfallKWh > eps {
		fmt.Fprintf(&b, "; short %.2f kWh", d.ShortfallKWh)
	}
	return b.String()
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
