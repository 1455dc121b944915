package model

import "fmt"

// Layer is one horizontal slice of a stratified tank.
type Layer struct {
	TemperatureC float64 `json:"temperature_c"`
	VolumeM3     float64 `json:"volume_m3"`
}

// StorageState is a snapshot of the tank. Layers are ordered top to bottom.
// The aggregate fields are derived from the layers by the storage model.
type StorageState struct {
	Layers          []Layer `json:"layers"`
	StoredEnergyKWh float64 `json:"stored_energy_kwh"`
	UsableEnergyKWh float64 `json:"usable_energy_kwh"`
	CapacityKWh     float64 `json:"capacity_kwh"`
	SoC             float64 `json:"soc"`
	OutletTempC     float64 `json:"outlet_temp_c"`
	BottomTempC     float64 `json:"bottom_temp_c"`
}

// Clone returns a deep copy so snapshots never share layer slices.
func (s StorageState) Clone() StorageState {
	cp := s
	cp.Layers = make([]Layer, len(s.Layers))
	copy(cp.Layers, s.Layers)
	return cp
}

// TotalVolume returns the summed layer volume in cubic meters.
func (s StorageState) TotalVolume() float64 {
	var v float64
	for _, l := range s.Layers {
		v += l.VolumeM3
	}
	return v
}

// Temperatures returns the layer temperatures top to bottom.
func (s StorageState) Temperatures() []float64 {
	out := make([]float64, len(s.Layers))
	for i, l := range s.Layers {
		out[i] = l.TemperatureC
	}
	return out
}

// Stratified reports whether temperatures are non-increasing from top to
// bottom within tol.
func (s StorageState) Stratified(tol float64) bool {
	for i := 1; i < len(s.Layers); i++ {
		if s.Layers[i].TemperatureC > s.Layers[i-1].TemperatureC+tol {
			return false
		}
	}
	return true
}

// Validate checks that the snapshot is physically sound.
func (s StorageState) Validate() error {
	if len(s.Layers) == 0 {
		return fmt.Errorf("storage state has no layers")
	}
	for i, l := range s.Layers {
		if l.VolumeM3 <= 0 {
			return fmt.Errorf("layer %d: volume must be positive", i)
		}
	}
	if s.SoC < 0 || s.SoC > 1 {
		return fmt.Errorf("state of charge %.3f out of range", s.SoC)
	}
	return nil
}
