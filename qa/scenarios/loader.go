package scenarios

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/heatsim/config"
	"github.com/kilianp07/heatsim/core/factory"
	"github.com/kilianp07/heatsim/core/series"
)

// SeriesDef describes the inputs of a scenario. Shorter value lists are
// repeated until Steps values exist.
type SeriesDef struct {
	Steps           int       `yaml:"steps"`
	LoadKW          []float64 `yaml:"load_kw"`
	PricePerKWh     []float64 `yaml:"price_per_kwh"`
	AmbientC        []float64 `yaml:"ambient_c"`
	SupplySetpointC []float64 `yaml:"supply_setpoint_c,omitempty"`
	FuelPricePerKWh []float64 `yaml:"fuel_price_per_kwh,omitempty"`
}

// ToSeries expands the definition.
func (d SeriesDef) ToSeries(stepMinutes int) (series.Series, error) {
	if d.Steps <= 0 {
		return series.Series{}, fmt.Errorf("steps must be positive")
	}
	s := series.Series{StepMinutes: stepMinutes}
	var err error
	if s.LoadKW, err = repeat("load_kw", d.LoadKW, d.Steps); err != nil {
		return s, err
	}
	if s.PricePerKWh, err = repeat("price_per_kwh", d.PricePerKWh, d.Steps); err != nil {
		return s, err
	}
	if s.AmbientC, err = repeat("ambient_c", d.AmbientC, d.Steps); err != nil {
		return s, err
	}
	if len(d.SupplySetpointC) > 0 {
		s.SupplySetpointC, _ = repeat("supply_setpoint_c", d.SupplySetpointC, d.Steps)
	}
	if len(d.FuelPricePerKWh) > 0 {
		s.FuelPricePerKWh, _ = repeat("fuel_price_per_kwh", d.FuelPricePerKWh, d.Steps)
	}
	return s, nil
}

func repeat(name string, pattern []float64, n int) ([]float64, error) {
	if len(pattern) == 0 {
		return nil, fmt.Errorf("%s is empty", name)
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = pattern[i%len(pattern)]
	}
	return out, nil
}

// Expected lists the checks applied to the run summary. Unset fields are
// not checked.
type Expected struct {
	MaxUnmetSteps    *int               `yaml:"max_unmet_steps"`
	MinUnmetSteps    *int               `yaml:"min_unmet_steps"`
	MaxOverflowSteps *int               `yaml:"max_overflow_steps"`
	IdleUnits        []string           `yaml:"idle_units"`
	MinEnergyKWh     map[string]float64 `yaml:"min_energy_kwh"`
	MaxEnergyKWh     map[string]float64 `yaml:"max_energy_kwh"`
	MinFinalSoC      *float64           `yaml:"min_final_soc"`
	MaxFinalSoC      *float64           `yaml:"max_final_soc"`
	MaxTotalCost     *float64           `yaml:"max_total_cost"`
}

type Scenario struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description,omitempty"`
	Plant       map[string]any `yaml:"plant"`
	Series      SeriesDef      `yaml:"series"`
	Expected    Expected       `yaml:"expected"`
}

func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, err
	}
	return &sc, nil
}

// Config decodes the plant section with the same keys as the config file.
func (sc *Scenario) Config() (*config.Config, error) {
	var cfg config.Config
	if err := factory.Decode(sc.Plant, &cfg); err != nil {
		return nil, fmt.Errorf("plant: %w", err)
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
