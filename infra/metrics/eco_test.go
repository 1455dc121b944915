package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	core "github.com/kilianp07/heatsim/core/metrics"
	eco "github.com/kilianp07/heatsim/core/metrics/eco"
	"github.com/kilianp07/heatsim/core/model"
)

func TestEcoSink_RecordSteps(t *testing.T) {
	store := eco.NewMemoryStore()
	sink, err := NewEcoSink(store, 0.2, 0.4, prometheus.NewRegistry())
	require.NoError(t, err)

	day := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	results := []model.TimestepResult{
		{Time: day, Outputs: []model.GeneratorOutput{
			{UnitID: "chp", On: true, HeatKWh: 50, FuelKWh: 100, ElectricityKWh: 30},
			{UnitID: "hp", On: true, HeatKWh: 30, ElectricityKWh: -10},
		}},
		{Time: day.Add(time.Hour), Outputs: []model.GeneratorOutput{
			{UnitID: "chp", On: true, HeatKWh: 50, FuelKWh: 100, ElectricityKWh: 30},
			{UnitID: "hp"},
		}},
	}
	require.NoError(t, sink.RecordSteps("r1", "winter", results))

	recs, err := store.Query("winter", "chp", day, day)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.InDelta(t, 200, recs[0].FuelKWh, 1e-9)
	assert.InDelta(t, 60, recs[0].ExportKWh, 1e-9)

	// 200*0.2 - 60*0.4 = 16
	assert.InDelta(t, 16, testutil.ToFloat64(sink.co2.WithLabelValues("winter", "chp", "2024-01-10")), 1e-9)
	assert.InDelta(t, 0.16, testutil.ToFloat64(sink.intensity.WithLabelValues("winter", "chp", "2024-01-10")), 1e-9)
	// 10*0.4 = 4
	assert.InDelta(t, 4, testutil.ToFloat64(sink.co2.WithLabelValues("winter", "hp", "2024-01-10")), 1e-9)
	assert.NoError(t, sink.RecordRun(core.RunRecord{}))
}

func TestEcoSink_ScenariosAndRepeatedRuns(t *testing.T) {
	store := eco.NewMemoryStore()
	sink, err := NewEcoSink(store, 0.2, 0.4, prometheus.NewRegistry())
	require.NoError(t, err)

	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	burn := func(kwh float64) []model.TimestepResult {
		return []model.TimestepResult{{Time: day, Outputs: []model.GeneratorOutput{
			{UnitID: "chp", On: true, HeatKWh: kwh / 2, FuelKWh: kwh},
		}}}
	}
	require.NoError(t, sink.RecordSteps("r1", "baseline", burn(100)))
	require.NoError(t, sink.RecordSteps("r2", "without_heat_pump", burn(100)))

	assert.InDelta(t, 100, testutil.ToFloat64(sink.fuel.WithLabelValues("baseline", "chp", "2024-01-01")), 1e-9)
	assert.InDelta(t, 100, testutil.ToFloat64(sink.fuel.WithLabelValues("without_heat_pump", "chp", "2024-01-01")), 1e-9)

	// a second run of a scenario replaces the first
	require.NoError(t, sink.RecordSteps("r3", "baseline", burn(40)))
	assert.InDelta(t, 40, testutil.ToFloat64(sink.fuel.WithLabelValues("baseline", "chp", "2024-01-01")), 1e-9)
	recs, err := store.Query("baseline", "chp", day, day)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.InDelta(t, 40, recs[0].FuelKWh, 1e-9)
	assert.InDelta(t, 100, testutil.ToFloat64(sink.fuel.WithLabelValues("without_heat_pump", "chp", "2024-01-01")), 1e-9)
}
