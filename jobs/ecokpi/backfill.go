// Package ecokpi rebuilds daily emission records from stored runs.
package ecokpi

import (
	"time"

	eco "github.com/kilianp07/heatsim/core/metrics/eco"
	"github.com/kilianp07/heatsim/core/results"
)

// Row is the emission total of one unit on one day of a scenario.
type Row struct {
	Scenario  string
	UnitID    string
	Day       time.Time
	FuelKWh   float64
	HeatKWh   float64
	NetCO2Kg  float64
	Intensity float64
}

var (
	minDay = time.Time{}
	maxDay = time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)
)

// Backfill populates the store from the latest run of every scenario in
// history. Earlier runs of a scenario and runs stored without steps are
// skipped. It returns the number of steps processed.
func Backfill(store eco.Store, history []results.Record) (int, error) {
	latest := map[string]int{}
	var order []string
	for i, h := range history {
		if len(h.Steps) == 0 {
			continue
		}
		j, seen := latest[h.Scenario]
		if !seen {
			order = append(order, h.Scenario)
		}
		if !seen || !h.Timestamp.Before(history[j].Timestamp) {
			latest[h.Scenario] = i
		}
	}

	n := 0
	for _, scenario := range order {
		if err := store.Reset(scenario); err != nil {
			return n, err
		}
		for _, step := range history[latest[scenario]].Steps {
			for _, o := range step.Outputs {
				if !o.On {
					continue
				}
				if err := store.Add(eco.FromOutput(scenario, step.Time, o)); err != nil {
					return n, err
				}
			}
			n++
		}
	}
	return n, nil
}

// Report lists every scenario, unit and day held by the store, in that
// order.
func Report(store eco.Store, fuelFactor, gridFactor float64) ([]Row, error) {
	scenarios, err := store.Scenarios()
	if err != nil {
		return nil, err
	}
	var rows []Row
	for _, sc := range scenarios {
		units, err := store.Units(sc)
		if err != nil {
			return nil, err
		}
		for _, id := range units {
			recs, err := store.Query(sc, id, minDay, maxDay)
			if err != nil {
				return nil, err
			}
			for _, r := range recs {
				rows = append(rows, Row{
					Scenario:  sc,
					UnitID:    id,
					Day:       r.Date,
					FuelKWh:   r.FuelKWh,
					HeatKWh:   r.HeatKWh,
					NetCO2Kg:  r.NetCO2(fuelFactor, gridFactor),
					Intensity: r.HeatIntensity(fuelFactor, gridFactor),
				})
			}
		}
	}
	return rows, nil
}
