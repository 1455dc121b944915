package plugins

// Built-in sinks register themselves with core/metrics on import. Generator
// types are registered by core/generator.
import (
	_ "github.com/kilianp07/heatsim/infra/metrics"
	_ "github.com/kilianp07/heatsim/infra/mqtt"
)
