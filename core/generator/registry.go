package generator

import (
	"fmt"

	"github.com/kilianp07/heatsim/core/factory"
)

// Registry builds units from module configuration.
var Registry = factory.NewRegistry[Unit]()

func init() {
	_ = Registry.Register("chp", func(conf map[string]any) (Unit, error) {
		var c CHPConfig
		if err := factory.Decode(conf, &c); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		return NewCHP(c)
	})
	_ = Registry.Register("heatpump", func(conf map[string]any) (Unit, error) {
		var c HeatPumpConfig
		if err := factory.Decode(conf, &c); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		return NewHeatPump(c)
	})
	_ = Registry.Register("backup", func(conf map[string]any) (Unit, error) {
		var c BackupConfig
		if err := factory.Decode(conf, &c); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		return NewBackup(c)
	})
}

// Build instantiates every configured unit and rejects duplicate IDs.
func Build(cfgs []factory.ModuleConfig) ([]Unit, error) {
	units := make([]Unit, 0, len(cfgs))
	seen := make(map[string]struct{}, len(cfgs))
	for i, mc := range cfgs {
		u, err := Registry.Create(mc)
		if err != nil {
			return nil, fmt.Errorf("generator %d (%s): %w", i, mc.Type, err)
		}
		if _, dup := seen[u.ID()]; dup {
			return nil, fmt.Errorf("%w: duplicate generator id %q", ErrInvalidConfig, u.ID())
		}
		seen[u.ID()] = struct{}{}
		units = append(units, u)
	}
	return units, nil
}
