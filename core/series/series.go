// Package series holds the materialised per-step inputs of a run.
package series

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/heatsim/core/model"
)

// ErrInputLength is returned when a series does not match the horizon.
var ErrInputLength = errors.New("input series length mismatch")

// Series contains one value per step for every external input. The optional
// series may be empty.
type Series struct {
	StepMinutes     int       `json:"step_minutes" yaml:"step_minutes"`
	Start           time.Time `json:"start" yaml:"start"`
	LoadKW          []float64 `json:"load_kw" yaml:"load_kw"`
	PricePerKWh     []float64 `json:"price_per_kwh" yaml:"price_per_kwh"`
	AmbientC        []float64 `json:"ambient_c" yaml:"ambient_c"`
	SupplySetpointC []float64 `json:"supply_setpoint_c,omitempty" yaml:"supply_setpoint_c,omitempty"`
	FuelPricePerKWh []float64 `json:"fuel_price_per_kwh,omitempty" yaml:"fuel_price_per_kwh,omitempty"`
}

// Len returns the number of steps described by the load series.
func (s Series) Len() int { return len(s.LoadKW) }

// Validate checks every series against the horizon. A horizon of zero
// accepts the load length.
func (s Series) Validate(horizon int) error {
	if horizon <= 0 {
		horizon = s.Len()
	}
	if horizon == 0 {
		return fmt.Errorf("%w: empty load series", ErrInputLength)
	}
	check := func(name string, n int, optional bool) error {
		if optional && n == 0 {
			return nil
		}
		if n != horizon {
			return fmt.Errorf("%w: %s has %d values, horizon is %d", ErrInputLength, name, n, horizon)
		}
		return nil
	}
	return errors.Join(
		check("load_kw", len(s.LoadKW), false),
		check("price_per_kwh", len(s.PricePerKWh), false),
		check("ambient_c", len(s.AmbientC), false),
		check("supply_setpoint_c", len(s.SupplySetpointC), true),
		check("fuel_price_per_kwh", len(s.FuelPricePerKWh), true),
	)
}

// Step returns the step duration, defaulting to one hour.
func (s Series) Step() time.Duration {
	if s.StepMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(s.StepMinutes) * time.Minute
}

// At returns the input of step i. The caller must have validated the series.
func (s Series) At(i int) model.TimestepInput {
	in := model.TimestepInput{
		Index:       i,
		Time:        s.Start.Add(time.Duration(i) * s.Step()),
		LoadKW:      s.LoadKW[i],
		PricePerKWh: s.PricePerKWh[i],
		AmbientC:    s.AmbientC[i],
	}
	if len(s.SupplySetpointC) > 0 {
		in.SupplySetpointC = s.SupplySetpointC[i]
	}
	if len(s.FuelPricePerKWh) > 0 {
		in.FuelPricePerKWh = s.FuelPricePerKWh[i]
		in.HasFuelPrice = true
	}
	return in
}

// Load reads a series from a JSON or YAML file.
func Load(path string) (Series, error) {
	f, err := os.Open(path)
	if err != nil {
		return Series{}, err
	}
	defer f.Close()
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	return Decode(f, ext)
}

// Decode reads from r to decode a Series.
func Decode(r io.Reader, format string) (Series, error) {
	var s Series
	switch strings.ToLower(format) {
	case "yaml", "yml":
		if err := yaml.NewDecoder(r).Decode(&s); err != nil {
			return s, err
		}
	case "json":
		if err := json.NewDecoder(r).Decode(&s); err != nil {
			return s, err
		}
	default:
		return s, fmt.Errorf("unsupported format: %s", format)
	}
	return s, nil
}

// Constant builds a series of n identical steps. Used by tests and the
// compare command's smoke runs.
func Constant(n int, loadKW, price, ambientC float64) Series {
	s := Series{StepMinutes: 60}
	for i := 0; i < n; i++ {
		s.LoadKW = append(s.LoadKW, loadKW)
		s.PricePerKWh = append(s.PricePerKWh, price)
		s.AmbientC = append(s.AmbientC, ambientC)
	}
	return s
}
