// Package config loads the plant and run configuration.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/heatsim/core/control"
	"github.com/kilianp07/heatsim/core/dispatch"
	"github.com/kilianp07/heatsim/core/factory"
	"github.com/kilianp07/heatsim/core/generator"
	"github.com/kilianp07/heatsim/core/metrics"
	"github.com/kilianp07/heatsim/core/results"
	"github.com/kilianp07/heatsim/core/simulation"
	"github.com/kilianp07/heatsim/core/storage"
	"github.com/kilianp07/heatsim/infra/mqtt"
)

// EnvPrefix marks environment variables overriding file values. Nested keys
// are separated by a double underscore, e.g. HEATSIM_STORAGE__VOLUME_M3.
const EnvPrefix = "HEATSIM_"

type Config struct {
	Simulation simulation.Config      `json:"simulation"`
	Storage    storage.Config         `json:"storage"`
	Controller control.Config         `json:"controller"`
	Dispatch   dispatch.Config        `json:"dispatch"`
	Generators []factory.ModuleConfig `json:"generators"`
	Metrics    metrics.Config         `json:"metrics"`
	Results    results.Config         `json:"results"`
	MQTT       mqtt.Config            `json:"mqtt"`
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider(EnvPrefix, "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), strings.ToLower(EnvPrefix))
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults applies the defaults of every section.
func (c *Config) SetDefaults() {
	c.Simulation.SetDefaults()
	c.Storage.SetDefaults()
	c.Controller.SetDefaults()
	c.Dispatch.SetDefaults()
	if c.MQTT.Broker != "" {
		c.MQTT.SetDefaults()
	}
}

// Validate checks every section. Generator settings are checked when the
// units are built.
func (c Config) Validate() error {
	if err := c.Simulation.Validate(); err != nil {
		return fmt.Errorf("simulation: %w", err)
	}
	if err := c.Storage.Validate(); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	if err := c.Controller.Validate(); err != nil {
		return fmt.Errorf("controller: %w", err)
	}
	if err := c.Dispatch.Validate(); err != nil {
		return fmt.Errorf("dispatch: %w", err)
	}
	if len(c.Generators) == 0 {
		return fmt.Errorf("generators: %w: at least one unit is required", generator.ErrInvalidConfig)
	}
	if err := c.Results.Validate(); err != nil {
		return fmt.Errorf("results: %w", err)
	}
	return nil
}

// Setup builds the generator units and groups the plant sections.
func (c Config) Setup() (simulation.Setup, error) {
	units, err := generator.Build(c.Generators)
	if err != nil {
		return simulation.Setup{}, fmt.Errorf("generators: %w", err)
	}
	return simulation.Setup{
		Simulation: c.Simulation,
		Storage:    c.Storage,
		Controller: c.Controller,
		Dispatch:   c.Dispatch,
		Units:      units,
	}, nil
}
