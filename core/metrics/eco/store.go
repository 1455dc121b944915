package eco

import "time"

// Store persists emission records. Records of different scenarios are kept
// apart so that alternative runs of the same plant never add up.
type Store interface {
	Add(Record) error
	// Reset drops every record of a scenario.
	Reset(scenario string) error
	Query(scenario, unitID string, start, end time.Time) ([]Record, error)
	// Units lists the units with at least one record in the scenario, sorted.
	Units(scenario string) ([]string, error)
	// Scenarios lists the scenarios with at least one record, sorted.
	Scenarios() ([]string, error)
}

// Day aligns t to the start of its day in UTC.
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
