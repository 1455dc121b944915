package storage

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidConfig is returned when the tank geometry or temperature bounds
// are inconsistent.
var ErrInvalidConfig = errors.New("invalid storage configuration")

// ErrNotStratified is returned when initial layer temperatures increase from
// top to bottom.
var ErrNotStratified = errors.New("layer temperatures are not stratified")

// Config describes tank geometry, insulation and usable temperature range.
type Config struct {
	VolumeM3 float64 `json:"volume_m3"`
	Layers   int     `json:"layers"`
	// HeightM defaults to a cylinder twice as high as wide.
	HeightM       float64 `json:"height_m"`
	UValueWPerM2K float64 `json:"u_value_w_per_m2k"`
	MinTempC      float64 `json:"min_temp_c"`
	MaxTempC      float64 `json:"max_temp_c"`
	// AmbientC is the air temperature around the tank used for standing losses.
	AmbientC float64 `json:"ambient_c"`
	// DiffusionPerHour is the fraction of the temperature difference exchanged
	// between neighbouring layers per hour.
	DiffusionPerHour float64   `json:"diffusion_per_hour"`
	InitialSoC       float64   `json:"initial_soc"`
	InitialTempsC    []float64 `json:"initial_temps_c"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.Layers == 0 {
		c.Layers = 10
	}
	if c.HeightM == 0 && c.VolumeM3 > 0 {
		// V = pi*D^2/4*H with H = 2D
		d := math.Cbrt(2 * c.VolumeM3 / math.Pi)
		c.HeightM = 2 * d
	}
	if c.MinTempC == 0 && c.MaxTempC == 0 {
		c.MinTempC = 40
		c.MaxTempC = 95
	}
	if c.AmbientC == 0 {
		c.AmbientC = 15
	}
}

// Validate checks geometry and temperature bounds.
func (c Config) Validate() error {
	switch {
	case c.VolumeM3 <= 0:
		return fmt.Errorf("%w: volume must be positive", ErrInvalidConfig)
	case c.Layers < 1:
		return fmt.Errorf("%w: at least one layer is required", ErrInvalidConfig)
	case c.HeightM <= 0:
		return fmt.Errorf("%w: height must be positive", ErrInvalidConfig)
	case c.UValueWPerM2K < 0:
		return fmt.Errorf("%w: negative u-value", ErrInvalidConfig)
	case c.MinTempC >= c.MaxTempC:
		return fmt.Errorf("%w: min temperature %.1f must be below max temperature %.1f", ErrInvalidConfig, c.MinTempC, c.MaxTempC)
	case c.MaxTempC > maxPlausibleC || c.MinTempC < minPlausibleC:
		return fmt.Errorf("%w: temperature bounds outside [%.0f, %.0f]", ErrInvalidConfig, minPlausibleC, maxPlausibleC)
	case c.DiffusionPerHour < 0:
		return fmt.Errorf("%w: negative diffusion", ErrInvalidConfig)
	case c.InitialSoC < 0 || c.InitialSoC > 1:
		return fmt.Errorf("%w: initial soc %.3f out of [0,1]", ErrInvalidConfig, c.InitialSoC)
	case len(c.InitialTempsC) > 0 && len(c.InitialTempsC) != c.Layers:
		return fmt.Errorf("%w: %d initial temperatures for %d layers", ErrInvalidConfig, len(c.InitialTempsC), c.Layers)
	}
	return nil
}
