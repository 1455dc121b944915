// Package storage models a stratified hot-water tank as a stack of equal
// volume layers. The model is a pure value transformer: Advance never mutates
// the state it is given.
//
// Mixing rule: inflow heats layers top-down towards the flow temperature,
// outflow cools layers bottom-up to the return temperature, standing losses are
// applied per layer, then the stack is relaxed by explicit conduction between
// neighbours followed by a mass-weighted merge of inverted layers. Every stage
// moves energy between layers without creating or destroying it, so the
// balance E_after = E_before + in - out - losses holds up to rounding.
package storage

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/kilianp07/heatsim/core/model"
)

const (
	waterDensity      = 1000.0 // kg/m3
	waterHeatCapacity = 4.186  // kJ/(kg K)
	// KWhPerM3K is the heat needed to raise one cubic meter of water by one kelvin.
	KWhPerM3K = waterDensity * waterHeatCapacity / 3600

	minPlausibleC = -50.0
	maxPlausibleC = 150.0

	maxDiffusionStep = 0.25
	eps              = 1e-9
)

// Model holds the immutable tank parameters.
type Model struct {
	cfg         Config
	layerVolume float64
	layerMC     float64   // kWh/K per layer
	lossAreas   []float64 // m2 per layer
}

// New validates cfg and precomputes layer geometry.
func New(cfg Config) (*Model, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	n := cfg.Layers
	m := &Model{cfg: cfg, layerVolume: cfg.VolumeM3 / float64(n)}
	m.layerMC = m.layerVolume * KWhPerM3K

	d := math.Sqrt(4 * cfg.VolumeM3 / (math.Pi * cfg.HeightM))
	side := math.Pi * d * cfg.HeightM / float64(n)
	lid := math.Pi * d * d / 4
	m.lossAreas = make([]float64, n)
	for i := range m.lossAreas {
		m.lossAreas[i] = side
	}
	m.lossAreas[0] += lid
	m.lossAreas[n-1] += lid
	return m, nil
}

// Config returns the effective configuration including defaults.
func (m *Model) Config() Config { return m.cfg }

// CapacityKWh returns the energy stored between MinTemp and MaxTemp.
func (m *Model) CapacityKWh() float64 {
	return float64(m.cfg.Layers) * m.layerMC * (m.cfg.MaxTempC - m.cfg.MinTempC)
}

// Initial builds the starting state from the configured layer temperatures or,
// when none are given, from the configured state of charge.
func (m *Model) Initial() (model.StorageState, error) {
	if len(m.cfg.InitialTempsC) > 0 {
		return m.InitialFromTemps(m.cfg.InitialTempsC)
	}
	return m.InitialFromSoC(m.cfg.InitialSoC)
}

// InitialFromSoC builds a thermocline: layers at MaxTemp from the top, one
// partially charged layer and the rest at MinTemp.
func (m *Model) InitialFromSoC(soc float64) (model.StorageState, error) {
	if soc < 0 || soc > 1 || math.IsNaN(soc) {
		return model.StorageState{}, fmt.Errorf("%w: soc %.3f out of [0,1]", ErrInvalidConfig, soc)
	}
	layers := make([]model.Layer, m.cfg.Layers)
	full := m.layerMC * (m.cfg.MaxTempC - m.cfg.MinTempC)
	filled := soc * m.CapacityKWh() / full
	nFull := int(math.Floor(filled + eps))
	partial := math.Max(0, filled-float64(nFull)) * full
	for i := range layers {
		layers[i].VolumeM3 = m.layerVolume
		switch {
		case i < nFull:
			layers[i].TemperatureC = m.cfg.MaxTempC
		case i == nFull:
			layers[i].TemperatureC = m.cfg.MinTempC + partial/m.layerMC
		default:
			layers[i].TemperatureC = m.cfg.MinTempC
		}
	}
	return m.Derive(layers), nil
}

// InitialFromTemps builds a state from explicit layer temperatures (top first).
func (m *Model) InitialFromTemps(temps []float64) (model.StorageState, error) {
	if len(temps) != m.cfg.Layers {
		return model.StorageState{}, fmt.Errorf("%w: %d temperatures for %d layers", ErrInvalidConfig, len(temps), m.cfg.Layers)
	}
	layers := make([]model.Layer, len(temps))
	for i, t := range temps {
		if math.IsNaN(t) || t < minPlausibleC || t > maxPlausibleC {
			return model.StorageState{}, fmt.Errorf("%w: layer %d temperature %.1f implausible", ErrInvalidConfig, i, t)
		}
		if i > 0 && t > temps[i-1]+eps {
			return model.StorageState{}, fmt.Errorf("%w: layer %d (%.1f) hotter than layer %d (%.1f)", ErrNotStratified, i, t, i-1, temps[i-1])
		}
		layers[i] = model.Layer{TemperatureC: t, VolumeM3: m.layerVolume}
	}
	return m.Derive(layers), nil
}

// Derive computes the aggregate fields of a state from its layers. The state
// of charge is always re-derived from stored energy, never carried.
func (m *Model) Derive(layers []model.Layer) model.StorageState {
	st := model.StorageState{Layers: layers, CapacityKWh: m.CapacityKWh()}
	if len(layers) == 0 {
		return st
	}
	stored := make([]float64, len(layers))
	usable := make([]float64, len(layers))
	for i, l := range layers {
		mc := l.VolumeM3 * KWhPerM3K
		stored[i] = mc * (l.TemperatureC - m.cfg.MinTempC)
		usable[i] = mc * math.Max(0, l.TemperatureC-m.cfg.MinTempC)
	}
	st.StoredEnergyKWh = floats.Sum(stored)
	st.UsableEnergyKWh = floats.Sum(usable)
	if st.CapacityKWh > 0 {
		st.SoC = clamp(st.StoredEnergyKWh/st.CapacityKWh, 0, 1)
	}
	st.OutletTempC = layers[0].TemperatureC
	st.BottomTempC = layers[len(layers)-1].TemperatureC
	return st
}

// AvailableKWh returns the energy that can be withdrawn when the tank is
// cooled no lower than floorC (and never below MinTemp).
func (m *Model) AvailableKWh(st model.StorageState, floorC float64) float64 {
	floor := math.Max(floorC, m.cfg.MinTempC)
	var e float64
	for _, l := range st.Layers {
		e += l.VolumeM3 * KWhPerM3K * math.Max(0, l.TemperatureC-floor)
	}
	return e
}

// HeadroomKWh returns the energy that can be injected with water at flowC.
func (m *Model) HeadroomKWh(st model.StorageState, flowC float64) float64 {
	target := math.Min(flowC, m.cfg.MaxTempC)
	var e float64
	for _, l := range st.Layers {
		e += l.VolumeM3 * KWhPerM3K * math.Max(0, target-l.TemperatureC)
	}
	return e
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
