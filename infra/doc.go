// Package infra holds the adapters that move simulation outcomes out of the
// process: logging, metrics sinks, the MQTT publisher and the emission KPI
// store. They depend on the interfaces declared in core, never the reverse.
package infra
