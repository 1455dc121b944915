package storage

import (
	"math"

	"github.com/kilianp07/heatsim/core/model"
)

// AdvanceInput carries the heat flows of one step.
type AdvanceInput struct {
	HeatInKWh   float64
	FlowTempInC float64
	HeatOutKWh  float64
	ReturnTempC float64
	AmbientC    float64
	DtHours     float64
}

// AdvanceReport documents what the tank actually accepted and delivered.
type AdvanceReport struct {
	EnergyBeforeKWh float64
	EnergyAfterKWh  float64
	RequestedInKWh  float64
	RequestedOutKWh float64
	HeatInKWh       float64
	HeatOutKWh      float64
	LossKWh         float64
	Overflow        bool
	Underflow       bool
	InputClamped    bool
}

// Residual is the energy balance error of the step.
func (r AdvanceReport) Residual() float64 {
	return r.EnergyAfterKWh - (r.EnergyBeforeKWh + r.HeatInKWh - r.HeatOutKWh - r.LossKWh)
}

// Advance applies one step of charge, discharge, standing loss and
// relaxation and returns a new state. Requests beyond what the tank can hold
// or deliver are clamped and flagged rather than rejected.
func (m *Model) Advance(st model.StorageState, in AdvanceInput) (model.StorageState, AdvanceReport) {
	in, clamped := m.sanitize(in)
	rep := AdvanceReport{
		EnergyBeforeKWh: st.StoredEnergyKWh,
		RequestedInKWh:  in.HeatInKWh,
		RequestedOutKWh: in.HeatOutKWh,
		InputClamped:    clamped,
	}

	temps := make([]float64, len(st.Layers))
	mcs := make([]float64, len(st.Layers))
	for i, l := range st.Layers {
		temps[i] = l.TemperatureC
		mcs[i] = l.VolumeM3 * KWhPerM3K
	}
	// recompute so the balance is checked against the layers, not a stale aggregate
	rep.EnergyBeforeKWh = m.energy(temps, mcs)

	rep.HeatInKWh = m.charge(temps, mcs, in.HeatInKWh, in.FlowTempInC)
	rep.Overflow = in.HeatInKWh-rep.HeatInKWh > eps

	rep.HeatOutKWh = m.discharge(temps, mcs, in.HeatOutKWh, math.Max(in.ReturnTempC, m.cfg.MinTempC))
	rep.Underflow = in.HeatOutKWh-rep.HeatOutKWh > eps

	rep.LossKWh = m.loss(temps, mcs, in.AmbientC, in.DtHours)

	diffuse(temps, mcs, math.Min(m.cfg.DiffusionPerHour*in.DtHours, maxDiffusionStep))
	restoreOrder(temps, mcs)

	layers := make([]model.Layer, len(temps))
	for i := range temps {
		layers[i] = model.Layer{TemperatureC: temps[i], VolumeM3: st.Layers[i].VolumeM3}
	}
	next := m.Derive(layers)
	rep.EnergyAfterKWh = next.StoredEnergyKWh
	return next, rep
}

func (m *Model) sanitize(in AdvanceInput) (AdvanceInput, bool) {
	clamped := false
	fixHeat := func(v float64) float64 {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			clamped = true
			return 0
		}
		return v
	}
	fixTemp := func(v, fallback float64) float64 {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			clamped = true
			return fallback
		}
		if v < minPlausibleC || v > maxPlausibleC {
			clamped = true
			return clamp(v, minPlausibleC, maxPlausibleC)
		}
		return v
	}
	in.HeatInKWh = fixHeat(in.HeatInKWh)
	in.HeatOutKWh = fixHeat(in.HeatOutKWh)
	in.FlowTempInC = fixTemp(in.FlowTempInC, m.cfg.MaxTempC)
	in.ReturnTempC = fixTemp(in.ReturnTempC, m.cfg.MinTempC)
	in.AmbientC = fixTemp(in.AmbientC, m.cfg.AmbientC)
	if math.IsNaN(in.DtHours) || in.DtHours < 0 {
		clamped = true
		in.DtHours = 0
	}
	return in, clamped
}

func (m *Model) energy(temps, mcs []float64) float64 {
	var e float64
	for i := range temps {
		e += mcs[i] * (temps[i] - m.cfg.MinTempC)
	}
	return e
}

// charge heats layers from the top towards the flow temperature.
func (m *Model) charge(temps, mcs []float64, heat, flowC float64) float64 {
	target := math.Min(flowC, m.cfg.MaxTempC)
	remaining := heat
	for i := 0; i < len(temps) && remaining > 0; i++ {
		room := mcs[i] * (target - temps[i])
		if room <= 0 {
			continue
		}
		take := math.Min(room, remaining)
		temps[i] += take / mcs[i]
		remaining -= take
	}
	return heat - remaining
}

// discharge cools layers from the bottom down to floorC. Cold return water
// enters at the bottom so the thermocline moves upwards.
func (m *Model) discharge(temps, mcs []float64, heat, floorC float64) float64 {
	remaining := heat
	for i := len(temps) - 1; i >= 0 && remaining > 0; i-- {
		avail := mcs[i] * (temps[i] - floorC)
		if avail <= 0 {
			continue
		}
		take := math.Min(avail, remaining)
		temps[i] -= take / mcs[i]
		remaining -= take
	}
	return heat - remaining
}

// loss applies standing losses through the shell. Layers never cool below the
// surrounding air and never gain heat from it.
func (m *Model) loss(temps, mcs []float64, ambientC, dtHours float64) float64 {
	if dtHours <= 0 || m.cfg.UValueWPerM2K == 0 {
		return 0
	}
	var total float64
	for i := range temps {
		dT := temps[i] - ambientC
		if dT <= 0 {
			continue
		}
		l := m.cfg.UValueWPerM2K * m.lossAreas[i] * dT * dtHours / 1000
		l = math.Min(l, mcs[i]*dT)
		temps[i] -= l / mcs[i]
		total += l
	}
	return total
}

// diffuse exchanges heat between neighbours. Fluxes are computed from the old
// temperatures and applied pairwise so the total is unchanged.
func diffuse(temps, mcs []float64, lambda float64) {
	if lambda <= 0 || len(temps) < 2 {
		return
	}
	flux := make([]float64, len(temps)-1)
	for i := range flux {
		flux[i] = lambda * math.Min(mcs[i], mcs[i+1]) * (temps[i] - temps[i+1])
	}
	for i, f := range flux {
		temps[i] -= f / mcs[i]
		temps[i+1] += f / mcs[i+1]
	}
}

// restoreOrder merges inverted neighbours into their mixed temperature
// (pool adjacent violators, weighted by heat capacity) until temperatures are
// non-increasing from top to bottom.
func restoreOrder(temps, mcs []float64) {
	type block struct {
		mc, heat float64
		n        int
	}
	blocks := make([]block, 0, len(temps))
	for i := range temps {
		blocks = append(blocks, block{mc: mcs[i], heat: mcs[i] * temps[i], n: 1})
		for len(blocks) > 1 {
			lo := blocks[len(blocks)-1]
			hi := blocks[len(blocks)-2]
			if lo.heat/lo.mc <= hi.heat/hi.mc+eps {
				break
			}
			blocks = blocks[:len(blocks)-2]
			blocks = append(blocks, block{mc: hi.mc + lo.mc, heat: hi.heat + lo.heat, n: hi.n + lo.n})
		}
	}
	i := 0
	for _, b := range blocks {
		t := b.heat / b.mc
		for j := 0; j < b.n; j++ {
			if b.n > 1 {
				temps[i] = t
			}
			i++
		}
	}
}
