package metrics

import (
	"time"

	"github.com/kilianp07/heatsim/core/model"
)

// RunRecord describes a finished (or cancelled) run.
type RunRecord struct {
	RunID    string
	Scenario string
	Phase    string
	Summary  model.Summary
	Time     time.Time
}

// MetricsSink records run outcomes for observability purposes.
type MetricsSink interface {
	RecordRun(rec RunRecord) error
}

// StepRecorder is implemented by sinks able to store per-step results.
type StepRecorder interface {
	RecordSteps(runID, scenario string, results []model.TimestepResult) error
}

// ProgressEvent reports a batch run changing phase.
type ProgressEvent struct {
	RunID    string
	Scenario string
	Phase    string
	Steps    int
	Err      string
	Time     time.Time
}

// ProgressRecorder records batch progress events.
type ProgressRecorder interface {
	RecordProgress(ev ProgressEvent) error
}

// NopSink implements MetricsSink with no-op methods.
type NopSink struct{}

func (NopSink) RecordRun(RunRecord) error                                { return nil }
func (NopSink) RecordSteps(string, string, []model.TimestepResult) error { return nil }
func (NopSink) RecordProgress(ProgressEvent) error                       { return nil }

// MultiSink fans records out to multiple sinks.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordRun forwards the record to all sinks, returning the first error encountered.
func (m *MultiSink) RecordRun(rec RunRecord) error {
	for _, s := range m.Sinks {
		if err := s.RecordRun(rec); err != nil {
			return err
		}
	}
	return nil
}

// RecordSteps forwards step results when supported by the sink.
func (m *MultiSink) RecordSteps(runID, scenario string, results []model.TimestepResult) error {
	for _, s := range m.Sinks {
		if r, ok := s.(StepRecorder); ok {
			if err := r.RecordSteps(runID, scenario, results); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordProgress forwards progress events when supported by the sink.
func (m *MultiSink) RecordProgress(ev ProgressEvent) error {
	for _, s := range m.Sinks {
		if r, ok := s.(ProgressRecorder); ok {
			if err := r.RecordProgress(ev); err != nil {
				return err
			}
		}
	}
	return nil
}
