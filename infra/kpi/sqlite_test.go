package kpi

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	core "github.com/kilianp07/heatsim/core/metrics/eco"
)

func TestSQLiteStore_Aggregates(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "eco.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	day := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.Add(core.Record{Scenario: "run", UnitID: "chp1", Date: day.Add(time.Hour), FuelKWh: 20, ExportKWh: 7, HeatKWh: 10}))
	require.NoError(t, s.Add(core.Record{Scenario: "run", UnitID: "chp1", Date: day.Add(5 * time.Hour), FuelKWh: 10, ExportKWh: 3, HeatKWh: 5}))
	require.NoError(t, s.Add(core.Record{Scenario: "run", UnitID: "chp1", Date: day.Add(30 * time.Hour), FuelKWh: 4}))
	require.NoError(t, s.Add(core.Record{Scenario: "run", UnitID: "hp", Date: day, ImportKWh: 2, HeatKWh: 6}))

	recs, err := s.Query("run", "chp1", day, day)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, day, recs[0].Date)
	assert.InDelta(t, 30, recs[0].FuelKWh, 1e-9)
	assert.InDelta(t, 10, recs[0].ExportKWh, 1e-9)
	assert.InDelta(t, 15, recs[0].HeatKWh, 1e-9)

	recs, err = s.Query("run", "chp1", day, day.Add(48*time.Hour))
	require.NoError(t, err)
	assert.Len(t, recs, 2)

	units, err := s.Units("run")
	require.NoError(t, err)
	assert.Equal(t, []string{"chp1", "hp"}, units)
}

func TestSQLiteStore_ScenariosKeptApart(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "eco.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.Add(core.Record{Scenario: "baseline", UnitID: "chp", Date: day, FuelKWh: 100}))
	require.NoError(t, s.Add(core.Record{Scenario: "without_heat_pump", UnitID: "chp", Date: day, FuelKWh: 100}))

	recs, err := s.Query("baseline", "chp", day, day)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.InDelta(t, 100, recs[0].FuelKWh, 1e-9)
	assert.Equal(t, "baseline", recs[0].Scenario)

	names, err := s.Scenarios()
	require.NoError(t, err)
	assert.Equal(t, []string{"baseline", "without_heat_pump"}, names)

	require.NoError(t, s.Reset("baseline"))
	recs, err = s.Query("baseline", "chp", day, day)
	require.NoError(t, err)
	assert.Empty(t, recs)
	recs, err = s.Query("without_heat_pump", "chp", day, day)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}
