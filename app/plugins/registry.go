// Package plugins links the built-in module types into the binary and lists
// what can be referenced from a configuration file.
package plugins

import (
	"github.com/kilianp07/heatsim/core/generator"
	coremetrics "github.com/kilianp07/heatsim/core/metrics"
)

// Module kinds accepted in the configuration.
const (
	KindGenerator = "generators"
	KindSink      = "metrics.sinks"
)

// Available returns the registered types per configuration key, sorted.
func Available() map[string][]string {
	return map[string][]string{
		KindGenerator: generator.Registry.Names(),
		KindSink:      coremetrics.SinkTypes(),
	}
}
