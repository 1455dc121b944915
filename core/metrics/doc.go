// Package metrics defines the sinks that record simulation outcomes. Sinks
// like PromSink and InfluxSink (in infra/metrics) receive run summaries and,
// when they implement StepRecorder, the full step series. They can be
// combined with NewMultiSink; the factory helpers return a MultiSink
// automatically when multiple sinks are configured.
//
// Sinks are called after a run completes, never from inside the stepping
// loop.
package metrics
