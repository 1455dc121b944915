package ecokpi

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	eco "github.com/kilianp07/heatsim/core/metrics/eco"
	"github.com/kilianp07/heatsim/core/model"
	"github.com/kilianp07/heatsim/core/results"
)

var day = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func step(h int, outs ...model.GeneratorOutput) model.TimestepResult {
	return model.TimestepResult{Index: h, Time: day.Add(time.Duration(h) * time.Hour), Outputs: outs}
}

func chpBurn(h int, fuel float64) model.TimestepResult {
	return step(h, model.GeneratorOutput{UnitID: "chp1", On: true, HeatKWh: fuel / 2, FuelKWh: fuel, ElectricityKWh: 0.35 * fuel})
}

func TestBackfillAndReport(t *testing.T) {
	history := []results.Record{
		{RunID: "a", Scenario: "run", Timestamp: day, Steps: []model.TimestepResult{
			chpBurn(0, 100),
			step(1, model.GeneratorOutput{UnitID: "chp1"}, model.GeneratorOutput{UnitID: "hp", On: true, HeatKWh: 30, ElectricityKWh: -10}),
			chpBurn(25, 100),
		}},
		{RunID: "summary-only", Scenario: "run", Timestamp: day.Add(time.Hour)},
	}
	store := eco.NewMemoryStore()
	n, err := Backfill(store, history)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	rows, err := Report(store, 0.2, 0.4)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, "run", rows[0].Scenario)
	assert.Equal(t, "chp1", rows[0].UnitID)
	assert.Equal(t, day, rows[0].Day)
	// 100*0.2 - 35*0.4
	assert.InDelta(t, 6, rows[0].NetCO2Kg, 1e-9)
	assert.InDelta(t, 0.12, rows[0].Intensity, 1e-9)
	assert.Equal(t, day.Add(24*time.Hour), rows[1].Day)
	assert.Equal(t, "hp", rows[2].UnitID)
	assert.InDelta(t, 4, rows[2].NetCO2Kg, 1e-9)
}

func TestBackfill_ScenariosAndReruns(t *testing.T) {
	history := []results.Record{
		{RunID: "b1", Scenario: "baseline", Timestamp: day, Steps: []model.TimestepResult{chpBurn(0, 100)}},
		{RunID: "n1", Scenario: "without_heat_pump", Timestamp: day, Steps: []model.TimestepResult{chpBurn(0, 100)}},
		{RunID: "b2", Scenario: "baseline", Timestamp: day.Add(time.Hour), Steps: []model.TimestepResult{chpBurn(0, 40)}},
	}
	store := eco.NewMemoryStore()
	// records left over from an earlier backfill are replaced
	require.NoError(t, store.Add(eco.Record{Scenario: "baseline", UnitID: "chp1", Date: day, FuelKWh: 999}))

	n, err := Backfill(store, history)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	rows, err := Report(store, 0.2, 0.4)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "baseline", rows[0].Scenario)
	assert.InDelta(t, 40, rows[0].FuelKWh, 1e-9)
	assert.Equal(t, "without_heat_pump", rows[1].Scenario)
	assert.InDelta(t, 100, rows[1].FuelKWh, 1e-9)
}
