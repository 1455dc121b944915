// Package factory provides a small generic registry used to instantiate
// simulation modules from configuration. Modules are defined by a type string
// and a map of raw settings. Factories decode the settings into typed structs
// and return the concrete implementation.
//
// Example usage:
//
//	reg := factory.NewRegistry[generator.Unit]()
//	reg.Register("backup", func(conf map[string]any) (generator.Unit, error) {
//	    var c generator.BackupConfig
//	    if err := factory.Decode(conf, &c); err != nil {
//	        return nil, err
//	    }
//	    return generator.NewBackup(c)
//	})
//	u, err := reg.Create(factory.ModuleConfig{Type: "backup", Conf: map[string]any{"id": "boiler"}})
package factory
