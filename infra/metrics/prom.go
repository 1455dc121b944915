package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/heatsim/core/metrics"
	"github.com/kilianp07/heatsim/core/model"
)

// PromSink exposes run outcomes as Prometheus metrics.
type PromSink struct {
	runs     *prometheus.CounterVec
	cost     *prometheus.GaugeVec
	unmet    *prometheus.GaugeVec
	energy   *prometheus.GaugeVec
	soc      *prometheus.HistogramVec
	flags    *prometheus.CounterVec
	progress *prometheus.CounterVec
}

// NewPromSink registers the metrics on the default Prometheus registerer.
// The HTTP endpoint is started separately with StartPromServer.
func NewPromSink(cfg coremetrics.Config) (coremetrics.MetricsSink, error) {
	return NewPromSinkWithRegistry(cfg, prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer. Collectors
// already registered by an earlier sink are reused.
func NewPromSinkWithRegistry(_ coremetrics.Config, reg prometheus.Registerer) (coremetrics.MetricsSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "heatsim_runs_total",
			Help: "Total number of simulation runs by final phase",
		}, []string{"scenario", "phase"}),
		cost: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "heatsim_run_cost",
			Help: "Net operating cost of the last run",
		}, []string{"scenario"}),
		unmet: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "heatsim_run_unmet_steps",
			Help: "Steps with unmet demand in the last run",
		}, []string{"scenario"}),
		energy: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "heatsim_run_energy_kwh",
			Help: "Heat supplied per source in the last run",
		}, []string{"scenario", "source"}),
		soc: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "heatsim_storage_soc",
			Help:    "Distribution of the storage state of charge over steps",
			Buckets: prometheus.LinearBuckets(0.1, 0.1, 10),
		}, []string{"scenario"}),
		flags: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "heatsim_step_flags_total",
			Help: "Steps with a raised infeasibility flag",
		}, []string{"scenario", "flag"}),
		progress: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "heatsim_batch_events_total",
			Help: "Batch progress events by phase",
		}, []string{"scenario", "phase"}),
	}
	var err error
	if s.runs, err = register(reg, s.runs); err != nil {
		return nil, err
	}
	if s.cost, err = register(reg, s.cost); err != nil {
		return nil, err
	}
	if s.unmet, err = register(reg, s.unmet); err != nil {
		return nil, err
	}
	if s.energy, err = register(reg, s.energy); err != nil {
		return nil, err
	}
	if s.soc, err = register(reg, s.soc); err != nil {
		return nil, err
	}
	if s.flags, err = register(reg, s.flags); err != nil {
		return nil, err
	}
	if s.progress, err = register(reg, s.progress); err != nil {
		return nil, err
	}
	return s, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordRun updates the per-scenario gauges.
func (s *PromSink) RecordRun(rec coremetrics.RunRecord) error {
	s.runs.WithLabelValues(rec.Scenario, rec.Phase).Inc()
	s.cost.WithLabelValues(rec.Scenario).Set(rec.Summary.TotalCost)
	s.unmet.WithLabelValues(rec.Scenario).Set(float64(rec.Summary.UnmetSteps))
	for src, kwh := range rec.Summary.EnergyBySource {
		s.energy.WithLabelValues(rec.Scenario, src).Set(kwh)
	}
	return nil
}

// RecordSteps observes the state of charge and counts flagged steps.
func (s *PromSink) RecordSteps(_ string, scenario string, results []model.TimestepResult) error {
	for _, r := range results {
		s.soc.WithLabelValues(scenario).Observe(r.Storage.SoC)
		f := r.Flags
		for name, raised := range map[string]bool{
			"unmet_demand":      f.UnmetDemand,
			"overflow":          f.Overflow,
			"underflow":         f.Underflow,
			"input_clamped":     f.InputClamped,
			"generator_clamped": f.GeneratorClamped,
		} {
			if raised {
				s.flags.WithLabelValues(scenario, name).Inc()
			}
		}
	}
	return nil
}

// RecordProgress counts batch events.
func (s *PromSink) RecordProgress(ev coremetrics.ProgressEvent) error {
	s.progress.WithLabelValues(ev.Scenario, ev.Phase).Inc()
	return nil
}
