package scenarios

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	coremetrics "github.com/kilianp07/heatsim/core/metrics"
	"github.com/kilianp07/heatsim/core/model"
	"github.com/kilianp07/heatsim/core/simulation"
	"github.com/kilianp07/heatsim/infra/logger"
	"github.com/kilianp07/heatsim/infra/metrics"
)

const tol = 1e-6

func RunScenario(t *testing.T, sc *Scenario) {
	t.Helper()
	cfg, err := sc.Config()
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	setup, err := cfg.Setup()
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	drv, err := simulation.New(setup, logger.NopLogger{})
	if err != nil {
		t.Fatalf("driver: %v", err)
	}
	s, err := sc.Series.ToSeries(drv.Config().StepMinutes)
	if err != nil {
		t.Fatalf("series: %v", err)
	}
	out, err := drv.Run(context.Background(), s)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	checkSteps(t, out.Results)
	checkExpected(t, sc.Expected, out.Summary)

	reg := prometheus.NewRegistry()
	sink, err := metrics.NewPromSinkWithRegistry(coremetrics.Config{}, reg)
	if err != nil {
		t.Fatalf("prom sink: %v", err)
	}
	rec := coremetrics.RunRecord{RunID: out.ID, Scenario: sc.Name, Phase: out.Phase.String(), Summary: out.Summary, Time: time.Now()}
	if err := sink.RecordRun(rec); err != nil {
		t.Fatalf("record: %v", err)
	}
	if n, err := testutil.GatherAndCount(reg, "heatsim_runs_total"); err != nil || n != 1 {
		t.Errorf("runs_total series = %d (%v)", n, err)
	}
}

// checkSteps verifies the properties every step must satisfy.
func checkSteps(t *testing.T, results []model.TimestepResult) {
	t.Helper()
	cum := 0.0
	for _, r := range results {
		if r.DeliveredKWh > r.LoadKWh+tol*math.Max(1, r.LoadKWh) {
			t.Errorf("step %d: delivered %.3f above load %.3f", r.Index, r.DeliveredKWh, r.LoadKWh)
		}
		if !r.Flags.UnmetDemand && r.DeliveredKWh < r.LoadKWh-tol*math.Max(1, r.LoadKWh) {
			t.Errorf("step %d: shortfall without unmet flag", r.Index)
		}
		if r.Storage.SoC < 0 || r.Storage.SoC > 1 {
			t.Errorf("step %d: soc %.3f out of range", r.Index, r.Storage.SoC)
		}
		if !r.Storage.Stratified(tol) {
			t.Errorf("step %d: tank not stratified", r.Index)
		}
		cum += r.StepCost
		if math.Abs(cum-r.CumulativeCost) > tol*math.Max(1, math.Abs(cum)) {
			t.Errorf("step %d: cumulative cost %.6f, sum %.6f", r.Index, r.CumulativeCost, cum)
		}
	}
}

func checkExpected(t *testing.T, exp Expected, sum model.Summary) {
	t.Helper()
	if exp.MaxUnmetSteps != nil && sum.UnmetSteps > *exp.MaxUnmetSteps {
		t.Errorf("unmet steps %d > %d", sum.UnmetSteps, *exp.MaxUnmetSteps)
	}
	if exp.MinUnmetSteps != nil && sum.UnmetSteps < *exp.MinUnmetSteps {
		t.Errorf("unmet steps %d < %d", sum.UnmetSteps, *exp.MinUnmetSteps)
	}
	if exp.MaxOverflowSteps != nil && sum.OverflowSteps > *exp.MaxOverflowSteps {
		t.Errorf("overflow steps %d > %d", sum.OverflowSteps, *exp.MaxOverflowSteps)
	}
	for _, id := range exp.IdleUnits {
		if e := sum.EnergyBySource[id]; e > tol {
			t.Errorf("unit %s expected idle, supplied %.3f kWh", id, e)
		}
	}
	for src, min := range exp.MinEnergyKWh {
		if e := sum.EnergyBySource[src]; e < min {
			t.Errorf("%s supplied %.3f kWh, expected at least %.3f", src, e, min)
		}
	}
	for src, max := range exp.MaxEnergyKWh {
		if e := sum.EnergyBySource[src]; e > max {
			t.Errorf("%s supplied %.3f kWh, expected at most %.3f", src, e, max)
		}
	}
	if exp.MinFinalSoC != nil && sum.FinalSoC < *exp.MinFinalSoC {
		t.Errorf("final soc %.4f < %.4f", sum.FinalSoC, *exp.MinFinalSoC)
	}
	if exp.MaxFinalSoC != nil && sum.FinalSoC > *exp.MaxFinalSoC {
		t.Errorf("final soc %.4f > %.4f", sum.FinalSoC, *exp.MaxFinalSoC)
	}
	if exp.MaxTotalCost != nil && sum.TotalCost > *exp.MaxTotalCost {
		t.Errorf("total cost %.3f > %.3f", sum.TotalCost, *exp.MaxTotalCost)
	}
}
