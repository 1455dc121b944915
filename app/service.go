package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/kilianp07/heatsim/config"
	coremetrics "github.com/kilianp07/heatsim/core/metrics"
	"github.com/kilianp07/heatsim/core/model"
	"github.com/kilianp07/heatsim/core/results"
	"github.com/kilianp07/heatsim/core/series"
	"github.com/kilianp07/heatsim/core/simulation"
	"github.com/kilianp07/heatsim/infra/logger"
	"github.com/kilianp07/heatsim/infra/metrics"
	"github.com/kilianp07/heatsim/infra/mqtt"
	"github.com/kilianp07/heatsim/internal/eventbus"

	_ "github.com/kilianp07/heatsim/app/plugins"
)

// ErrNoHeatPump is returned by Compare when the plant has no heat pump to
// remove.
var ErrNoHeatPump = errors.New("plant has no heat pump")

// Scenario names used by Compare.
const (
	ScenarioBaseline   = "baseline"
	ScenarioNoHeatPump = "without_heat_pump"
)

const (
	defaultScenario    = "run"
	compareParallelism = 2
)

// Service wires the simulation driver to the configured sinks, the results
// store and the optional MQTT publisher.
type Service struct {
	cfg    *config.Config
	setup  simulation.Setup
	driver *simulation.Driver
	sink   coremetrics.MetricsSink
	store  results.Store
	pub    *mqtt.Publisher
	log    logger.Logger
}

// New creates a Service from the configuration. Every component is built
// here so that configuration errors surface before any step runs.
func New(cfg *config.Config) (*Service, error) {
	logg := logger.New("service")
	setup, err := cfg.Setup()
	if err != nil {
		return nil, err
	}
	driver, err := simulation.New(setup, logger.New("simulation"))
	if err != nil {
		return nil, err
	}
	sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		return nil, fmt.Errorf("metrics sinks: %w", err)
	}
	svc := &Service{cfg: cfg, setup: setup, driver: driver, log: logg}
	if cfg.MQTT.Broker != "" {
		pub, err := mqtt.NewPublisher(cfg.MQTT)
		if err != nil {
			return nil, fmt.Errorf("mqtt publisher: %w", err)
		}
		svc.pub = pub
		sink = coremetrics.NewMultiSink(sink, pub)
	}
	svc.sink = sink
	if cfg.Results.Enabled() {
		store, err := results.NewStore(cfg.Results)
		if err != nil {
			_ = svc.Close()
			return nil, fmt.Errorf("results store: %w", err)
		}
		svc.store = store
	}
	return svc, nil
}

// Driver returns the simulation driver built from the configuration.
func (s *Service) Driver() *simulation.Driver { return s.driver }

// Run simulates the series once and records the outcome. A cancelled run is
// still recorded with the steps completed so far. A cancel command received
// on the MQTT control topic stops the run between steps.
func (s *Service) Run(ctx context.Context, in series.Series) (*simulation.Outcome, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if s.pub != nil {
		s.pub.OnCancel(cancel)
		defer s.pub.OnCancel(nil)
	}
	out, err := s.driver.Run(runCtx, in)
	if out == nil {
		return nil, err
	}
	out.Name = defaultScenario
	s.record(ctx, out)
	return out, err
}

// Compare runs the plant with and without its heat pumps as one batch.
// Outcomes are returned in the order baseline, without heat pump.
func (s *Service) Compare(ctx context.Context, in series.Series) ([]*simulation.Outcome, error) {
	reduced := s.setup
	reduced.Units = reduced.Units[:0:0]
	for _, u := range s.setup.Units {
		if u.Type() != model.GeneratorHeatPump {
			reduced.Units = append(reduced.Units, u)
		}
	}
	if len(reduced.Units) == len(s.setup.Units) {
		return nil, ErrNoHeatPump
	}
	if len(reduced.Units) == 0 {
		return nil, fmt.Errorf("%w: plant has only heat pumps", simulation.ErrInvalidConfig)
	}
	noHP, err := simulation.New(reduced, logger.New("simulation"))
	if err != nil {
		return nil, err
	}

	bus := eventbus.NewTyped[simulation.RunEvent]()
	collectorCtx, stop := context.WithCancel(context.WithoutCancel(ctx))
	done := metrics.StartEventCollector(collectorCtx, bus, s.sink)
	outcomes, err := simulation.RunBatch(ctx, []simulation.Scenario{
		{Name: ScenarioBaseline, Driver: s.driver, Series: in},
		{Name: ScenarioNoHeatPump, Driver: noHP, Series: in},
	}, compareParallelism, bus)
	bus.Close()
	<-done
	stop()
	if dropped := bus.Dropped(); dropped > 0 {
		s.log.Warnf("compare: %d progress events dropped", dropped)
	}
	for _, out := range outcomes {
		if out != nil {
			s.record(ctx, out)
		}
	}
	return outcomes, err
}

// record pushes the outcome to the sinks and the results store. Failures are
// logged and do not affect the outcome.
func (s *Service) record(ctx context.Context, out *simulation.Outcome) {
	rec := coremetrics.RunRecord{
		RunID:    out.ID,
		Scenario: out.Name,
		Phase:    out.Phase.String(),
		Summary:  out.Summary,
	}
	if len(out.Results) > 0 {
		rec.Time = out.Results[len(out.Results)-1].Time
	}
	if err := s.sink.RecordRun(rec); err != nil {
		s.log.Errorf("record run %s: %v", out.ID, err)
	}
	if sr, ok := s.sink.(coremetrics.StepRecorder); ok {
		if err := sr.RecordSteps(out.ID, out.Name, out.Results); err != nil {
			s.log.Errorf("record steps %s: %v", out.ID, err)
		}
	}
	if s.store == nil {
		return
	}
	// the run may have been cancelled; the record is still stored
	if err := s.store.Append(context.WithoutCancel(ctx), results.FromOutcome(out.Name, out, s.cfg.Results.WithSteps)); err != nil {
		s.log.Errorf("store run %s: %v", out.ID, err)
	}
}

// Store returns the results store, or nil when none is configured.
func (s *Service) Store() results.Store { return s.store }

// Close releases resources held by the service.
func (s *Service) Close() error {
	if s.pub != nil {
		s.pub.Disconnect()
	}
	closeSink(s.sink)
	if s.store != nil {
		return s.store.Close()
	}
	return nil
}

func closeSink(sink coremetrics.MetricsSink) {
	switch v := sink.(type) {
	case *coremetrics.MultiSink:
		for _, inner := range v.Sinks {
			closeSink(inner)
		}
	case interface{ Close() }:
		v.Close()
	}
}
