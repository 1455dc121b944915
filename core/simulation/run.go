package simulation

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kilianp07/heatsim/core/model"
	"github.com/kilianp07/heatsim/core/series"
	"github.com/kilianp07/heatsim/internal/eventbus"
)

// Phase is the lifecycle position of a run.
type Phase int

const (
	PhaseInitialized Phase = iota
	PhaseStepping
	PhaseCompleted
	PhaseCancelled
)

func (p Phase) String() string {
	switch p {
	case PhaseInitialized:
		return "initialized"
	case PhaseStepping:
		return "stepping"
	case PhaseCompleted:
		return "completed"
	case PhaseCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (p Phase) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// Outcome is the record of one run. Results holds one entry per simulated
// step, in order; a cancelled run keeps the steps completed so far.
type Outcome struct {
	ID      string                 `json:"id"`
	Name    string                 `json:"name,omitempty"`
	Phase   Phase                  `json:"phase"`
	Results []model.TimestepResult `json:"results"`
	Summary model.Summary          `json:"summary"`
	Final   State                  `json:"final"`
}

// Run simulates the series from the configured initial state.
func (d *Driver) Run(ctx context.Context, s series.Series) (*Outcome, error) {
	st, err := d.InitialState()
	if err != nil {
		return nil, err
	}
	return d.RunFrom(ctx, st, s)
}

// RunFrom simulates the series starting at st. Input and configuration
// problems are reported before the first step. Cancellation is honoured
// between steps.
func (d *Driver) RunFrom(ctx context.Context, st State, s series.Series) (*Outcome, error) {
	if err := s.Validate(d.cfg.HorizonSteps); err != nil {
		return nil, err
	}
	if s.StepMinutes > 0 && s.StepMinutes != d.cfg.StepMinutes {
		return nil, fmt.Errorf("%w: series step %d min, configured step %d min", ErrInvalidConfig, s.StepMinutes, d.cfg.StepMinutes)
	}
	if err := d.ValidateState(st); err != nil {
		return nil, err
	}

	n := s.Len()
	out := &Outcome{ID: uuid.NewString(), Phase: PhaseInitialized, Results: make([]model.TimestepResult, 0, n)}
	d.log.Infof("run %s: %d steps of %d min", out.ID, n, d.cfg.StepMinutes)

	state := st.Clone()
	out.Phase = PhaseStepping
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			out.Phase = PhaseCancelled
			out.Final = state
			out.Summary = Summarize(out.Results)
			d.log.Warnf("run %s cancelled after %d of %d steps", out.ID, len(out.Results), n)
			return out, err
		}
		var r model.TimestepResult
		state, r = d.Step(state, s.At(i))
		out.Results = append(out.Results, r)
	}
	out.Phase = PhaseCompleted
	out.Final = state
	out.Summary = Summarize(out.Results)
	d.logFlags(out)
	d.log.Infof("run %s completed: cost %.2f, unmet %d, overflow %d, underflow %d",
		out.ID, out.Summary.TotalCost, out.Summary.UnmetSteps, out.Summary.OverflowSteps, out.Summary.UnderflowSteps)
	return out, nil
}

func (d *Driver) logFlags(out *Outcome) {
	for _, r := range out.Results {
		if !r.Flags.Any() {
			continue
		}
		d.log.Debugw("flagged step", map[string]any{
			"run":       out.ID,
			"step":      r.Index,
			"unmet":     r.Flags.UnmetDemand,
			"overflow":  r.Flags.Overflow,
			"underflow": r.Flags.Underflow,
			"input":     r.Flags.InputClamped,
			"generator": r.Flags.GeneratorClamped,
			"dispatch":  r.Explanation,
		})
	}
}

// Scenario is one independent run of a batch.
type Scenario struct {
	Name   string
	Driver *Driver
	Series series.Series
}

// RunEvent reports batch progress.
type RunEvent struct {
	Scenario string         `json:"scenario"`
	RunID    string         `json:"run_id,omitempty"`
	Phase    Phase          `json:"phase"`
	Steps    int            `json:"steps"`
	Summary  *model.Summary `json:"summary,omitempty"`
	Err      error          `json:"-"`
}

// RunBatch runs isolated scenarios concurrently. Outcomes are returned in
// scenario order. The first failing scenario cancels the others. A nil bus
// disables progress events.
func RunBatch(ctx context.Context, scenarios []Scenario, parallelism int, bus *eventbus.TypedBus[RunEvent]) ([]*Outcome, error) {
	outcomes := make([]*Outcome, len(scenarios))
	g, gctx := errgroup.WithContext(ctx)
	if parallelism > 0 {
		g.SetLimit(parallelism)
	}
	publish := func(e RunEvent) {
		if bus != nil {
			bus.Publish(e)
		}
	}
	for i, sc := range scenarios {
		i, sc := i, sc
		g.Go(func() error {
			if sc.Driver == nil {
				return fmt.Errorf("%w: scenario %q has no driver", ErrInvalidConfig, sc.Name)
			}
			publish(RunEvent{Scenario: sc.Name, Phase: PhaseStepping})
			out, err := sc.Driver.Run(gctx, sc.Series)
			if out != nil {
				out.Name = sc.Name
				outcomes[i] = out
				sum := out.Summary
				publish(RunEvent{Scenario: sc.Name, RunID: out.ID, Phase: out.Phase, Steps: len(out.Results), Summary: &sum, Err: err})
			} else {
				publish(RunEvent{Scenario: sc.Name, Phase: PhaseInitialized, Err: err})
			}
			if err != nil {
				return fmt.Errorf("scenario %s: %w", sc.Name, err)
			}
			return nil
		})
	}
	err := g.Wait()
	return outcomes, err
}
