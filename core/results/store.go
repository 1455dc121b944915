// Package results persists finished simulation runs.
package results

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kilianp07/heatsim/core/model"
	"github.com/kilianp07/heatsim/core/simulation"
)

// ErrUnknownBackend is returned by NewStore for an unsupported backend name.
var ErrUnknownBackend = errors.New("unknown results backend")

// Record captures one simulation run.
type Record struct {
	Timestamp time.Time              `json:"timestamp"`
	RunID     string                 `json:"run_id"`
	Scenario  string                 `json:"scenario"`
	Phase     string                 `json:"phase"`
	Summary   model.Summary          `json:"summary"`
	Steps     []model.TimestepResult `json:"steps,omitempty"`
}

// FromOutcome builds a Record from a run outcome. Step results are kept only
// when withSteps is set.
func FromOutcome(scenario string, out *simulation.Outcome, withSteps bool) Record {
	rec := Record{
		Timestamp: time.Now().UTC(),
		RunID:     out.ID,
		Scenario:  scenario,
		Phase:     out.Phase.String(),
		Summary:   out.Summary,
	}
	if withSteps {
		rec.Steps = out.Results
	}
	return rec
}

// Query defines filters for retrieving records. Zero fields match everything.
type Query struct {
	Start    time.Time
	End      time.Time
	Scenario string
	Phase    string
	// UnitID keeps runs in which the unit supplied heat.
	UnitID string
}

func (q Query) match(r Record) bool {
	if !q.Start.IsZero() && r.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.Timestamp.After(q.End) {
		return false
	}
	if q.Scenario != "" && r.Scenario != q.Scenario {
		return false
	}
	if q.Phase != "" && r.Phase != q.Phase {
		return false
	}
	if q.UnitID != "" && r.Summary.EnergyBySource[q.UnitID] <= 0 {
		return false
	}
	return true
}

// Store persists Records and supports querying.
type Store interface {
	Append(ctx context.Context, rec Record) error
	Query(ctx context.Context, q Query) ([]Record, error)
	Close() error
}

// Config selects and configures a Store.
type Config struct {
	Backend string `json:"backend"` // jsonl, jsonl_rotating or sqlite
	Path    string `json:"path"`
	// WithSteps stores per-step results alongside the summary.
	WithSteps bool `json:"with_steps"`
	// Rotation settings for jsonl_rotating, in megabytes and days.
	MaxSizeMB  int `json:"max_size_mb"`
	MaxBackups int `json:"max_backups"`
	MaxAgeDays int `json:"max_age_days"`
}

// Enabled reports whether a backend is configured.
func (c Config) Enabled() bool { return c.Backend != "" }

// NewStore opens the configured backend.
func NewStore(cfg Config) (Store, error) {
	switch cfg.Backend {
	case "jsonl":
		return NewJSONLStore(cfg.Path)
	case "jsonl_rotating":
		size := cfg.MaxSizeMB
		if size <= 0 {
			size = 10
		}
		return NewRotatingJSONLStore(cfg.Path, size, cfg.MaxBackups, cfg.MaxAgeDays)
	case "sqlite":
		return NewSQLiteStore(cfg.Path)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}

// Validate checks the backend name and path when a backend is configured.
func (c Config) Validate() error {
	if !c.Enabled() {
		return nil
	}
	switch c.Backend {
	case "jsonl", "jsonl_rotating", "sqlite":
	default:
		return fmt.Errorf("%w: %q", ErrUnknownBackend, c.Backend)
	}
	if c.Path == "" {
		return errors.New("results: path is required")
	}
	if c.MaxSizeMB < 0 || c.MaxBackups < 0 || c.MaxAgeDays < 0 {
		return errors.New("results: rotation settings must not be negative")
	}
	return nil
}
