package simulation

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/heatsim/core/control"
	"github.com/kilianp07/heatsim/core/generator"
	"github.com/kilianp07/heatsim/core/logger"
	"github.com/kilianp07/heatsim/core/model"
	"github.com/kilianp07/heatsim/core/series"
	"github.com/kilianp07/heatsim/core/storage"
	"github.com/kilianp07/heatsim/internal/eventbus"
)

func testUnits(t *testing.T, withHeatPump bool) []generator.Unit {
	t.Helper()
	chp, err := generator.NewCHP(generator.CHPConfig{
		GeneratorSpec:     model.GeneratorSpec{ID: "chp", MinPowerKW: 20, MaxPowerKW: 80, RampKWPerStep: 40, FlowTempC: 90},
		ThermalEfficiency: 0.5,
		PowerToHeatRatio:  0.6,
		FuelPricePerKWh:   0.04,
		SellElectricity:   true,
	})
	require.NoError(t, err)
	boiler, err := generator.NewBackup(generator.BackupConfig{
		GeneratorSpec:   model.GeneratorSpec{ID: "boiler", MaxPowerKW: 200, FlowTempC: 95},
		FuelPricePerKWh: 0.09,
	})
	require.NoError(t, err)
	units := []generator.Unit{chp, boiler}
	if withHeatPump {
		hp, err := generator.NewHeatPump(generator.HeatPumpConfig{
			GeneratorSpec: model.GeneratorSpec{ID: "hp", MaxPowerKW: 40, FlowTempC: 80},
			COPCurve:      []generator.CurvePoint{{X: -10, Y: 2.2}, {X: 10, Y: 3.8}},
		})
		require.NoError(t, err)
		units = append(units, hp)
	}
	return units
}

func testSetup(t *testing.T, withHeatPump bool) Setup {
	return Setup{
		Simulation: Config{StepMinutes: 60, ReturnTempC: 45},
		Storage: storage.Config{
			VolumeM3: 10, Layers: 5, UValueWPerM2K: 0.4,
			MinTempC: 40, MaxTempC: 90, AmbientC: 15,
			DiffusionPerHour: 0.1, InitialSoC: 0.5,
		},
		Controller: control.Config{DesignSupplyC: 80, MinOutdoorC: -10, SlopeKPerK: 0.5, MinSupplyC: 70},
		Units:      testUnits(t, withHeatPump),
	}
}

func newDriver(t *testing.T, withHeatPump bool) *Driver {
	t.Helper()
	d, err := New(testSetup(t, withHeatPump), nil)
	require.NoError(t, err)
	return d
}

func variedSeries(n int) series.Series {
	s := series.Series{StepMinutes: 60}
	for i := 0; i < n; i++ {
		x := float64(i)
		s.LoadKW = append(s.LoadKW, 60+50*math.Sin(x/3))
		s.PricePerKWh = append(s.PricePerKWh, 0.15+0.1*math.Cos(x/5))
		s.AmbientC = append(s.AmbientC, -5+8*math.Sin(x/7))
	}
	return s
}

func TestRun_Deterministic(t *testing.T) {
	d := newDriver(t, true)
	s := variedSeries(48)
	a, err := d.Run(context.Background(), s)
	require.NoError(t, err)
	b, err := d.Run(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, a.Results, b.Results)
	assert.Equal(t, a.Summary, b.Summary)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, PhaseCompleted, a.Phase)
	require.Len(t, a.Results, 48)
}

func TestRun_ZeroLoadOnlyStandingLoss(t *testing.T) {
	d := newDriver(t, true)
	st, err := d.InitialState()
	require.NoError(t, err)
	require.InDelta(t, 0.5, st.Storage.SoC, 1e-12)

	out, err := d.Run(context.Background(), series.Constant(1, 0, 0, 5))
	require.NoError(t, err)
	r := out.Results[0]
	for _, o := range r.Outputs {
		assert.False(t, o.On, o.UnitID)
		assert.Zero(t, o.HeatKWh)
	}
	assert.Zero(t, r.StorageOutKWh)
	assert.Zero(t, r.StorageInKWh)
	assert.Greater(t, r.LossKWh, 0.0)
	assert.Less(t, r.Storage.SoC, st.Storage.SoC)
	assert.InDelta(t, st.Storage.SoC-r.LossKWh/r.Storage.CapacityKWh, r.Storage.SoC, 1e-9)
	assert.Equal(t, "storage only", r.Explanation)
	assert.False(t, r.Flags.Any())
}

func TestRun_UnmetDemandAtSaturation(t *testing.T) {
	d := newDriver(t, true)
	out, err := d.Run(context.Background(), series.Constant(1, 5000, 0.2, 0))
	require.NoError(t, err)
	r := out.Results[0]
	assert.True(t, r.Flags.UnmetDemand)
	assert.True(t, r.Flags.Underflow)
	assert.InDelta(t, r.GeneratorHeatKWh()+r.StorageOutKWh, r.DeliveredKWh, 1e-9)
	assert.Less(t, r.DeliveredKWh, r.LoadKWh)
	for _, o := range r.Outputs {
		if o.UnitID == "boiler" || o.UnitID == "chp" {
			assert.True(t, o.On, o.UnitID)
		}
	}
	assert.Equal(t, 200.0, outputOf(r, "boiler").HeatKWh)
	assert.Equal(t, 80.0, outputOf(r, "chp").HeatKWh)
	assert.Equal(t, 1, out.Summary.UnmetSteps)
}

func outputOf(r model.TimestepResult, id string) model.GeneratorOutput {
	for _, o := range r.Outputs {
		if o.UnitID == id {
			return o
		}
	}
	return model.GeneratorOutput{}
}

func TestRun_PropertiesHoldEveryStep(t *testing.T) {
	d := newDriver(t, true)
	st, err := d.InitialState()
	require.NoError(t, err)
	out, err := d.Run(context.Background(), variedSeries(200))
	require.NoError(t, err)

	specs := map[string]model.GeneratorSpec{}
	for _, u := range d.Units() {
		specs[u.ID()] = u.Spec()
	}
	before := st.Storage.StoredEnergyKWh
	cum := 0.0
	for _, r := range out.Results {
		assert.GreaterOrEqual(t, r.Storage.SoC, 0.0)
		assert.LessOrEqual(t, r.Storage.SoC, 1.0)
		assert.True(t, r.Storage.Stratified(1e-9), "step %d not stratified", r.Index)
		for _, o := range r.Outputs {
			assert.GreaterOrEqual(t, o.HeatKWh, 0.0)
			assert.LessOrEqual(t, o.SetpointKW, specs[o.UnitID].MaxPowerKW+1e-9)
		}
		after := r.Storage.StoredEnergyKWh
		assert.InDelta(t, before+r.StorageInKWh-r.StorageOutKWh-r.LossKWh, after, 1e-6, "step %d", r.Index)
		assert.LessOrEqual(t, r.DeliveredKWh, r.LoadKWh+1e-6)
		cum += r.StepCost
		assert.InDelta(t, cum, r.CumulativeCost, 1e-6)
		before = after
	}
	assert.InDelta(t, cum, out.Summary.TotalCost, 1e-6)
}

func TestRun_InputLengthMismatch(t *testing.T) {
	s := testSetup(t, false)
	s.Simulation.HorizonSteps = 24
	d, err := New(s, nil)
	require.NoError(t, err)
	_, err = d.Run(context.Background(), series.Constant(10, 50, 0.2, 0))
	assert.ErrorIs(t, err, series.ErrInputLength)

	_, err = d.Run(context.Background(), series.Series{StepMinutes: 15, LoadKW: make([]float64, 24), PricePerKWh: make([]float64, 24), AmbientC: make([]float64, 24)})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestNew_InvalidConfig(t *testing.T) {
	s := testSetup(t, false)
	s.Simulation.ReturnTempC = 75
	_, err := New(s, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	s = testSetup(t, false)
	s.Storage.MinTempC = 95
	_, err = New(s, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.ErrorIs(t, err, storage.ErrInvalidConfig)

	s = testSetup(t, false)
	s.Units = append(s.Units, s.Units[0])
	_, err = New(s, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestNew_AcceptsCoreLogger(t *testing.T) {
	d, err := New(testSetup(t, false), logger.NopLogger{})
	require.NoError(t, err)
	_, err = d.Run(context.Background(), variedSeries(3))
	assert.NoError(t, err)
}

func TestRun_CancelledBetweenSteps(t *testing.T) {
	d := newDriver(t, false)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out, err := d.Run(ctx, variedSeries(5))
	assert.True(t, errors.Is(err, context.Canceled))
	require.NotNil(t, out)
	assert.Equal(t, PhaseCancelled, out.Phase)
	assert.Empty(t, out.Results)
}

func TestStep_DoesNotMutateState(t *testing.T) {
	d := newDriver(t, true)
	st, err := d.InitialState()
	require.NoError(t, err)
	st.LastOutputs["chp"] = 40
	orig := st.Clone()

	next, r := d.Step(st, variedSeries(1).At(0))
	assert.Equal(t, orig, st)
	assert.Equal(t, 1, next.StepIndex)
	assert.Equal(t, r.CumulativeCost, next.CumulativeCost)

	again, r2 := d.Step(st, variedSeries(1).At(0))
	assert.Equal(t, next, again)
	assert.Equal(t, r, r2)
}

func TestStep_SanitizesInput(t *testing.T) {
	d := newDriver(t, false)
	st, err := d.InitialState()
	require.NoError(t, err)
	_, r := d.Step(st, model.TimestepInput{LoadKW: math.NaN(), AmbientC: 200, SupplySetpointC: 30})
	assert.True(t, r.Flags.InputClamped)
	assert.Zero(t, r.LoadKWh)
	assert.Equal(t, maxAmbientC, r.Input.AmbientC)
	assert.Zero(t, r.Input.SupplySetpointC)
}

func TestStep_BoostsColdStorage(t *testing.T) {
	s := testSetup(t, false)
	s.Storage.InitialSoC = 0
	d, err := New(s, nil)
	require.NoError(t, err)
	st, err := d.InitialState()
	require.NoError(t, err)
	_, r := d.Step(st, model.TimestepInput{LoadKW: 50, PricePerKWh: 0.2, AmbientC: -10})
	assert.False(t, r.Flags.UnmetDemand)
	assert.InDelta(t, 50, r.DeliveredKWh, 1e-6)
	assert.InDelta(t, 80, r.SupplyTempC, 1e-6)
	assert.InDelta(t, 50, outputOf(r, "chp").HeatKWh, 1e-9)
}

func TestValidateState_UnknownUnit(t *testing.T) {
	d := newDriver(t, false)
	st, err := d.InitialState()
	require.NoError(t, err)
	st.LastOutputs["ghost"] = 10
	assert.ErrorIs(t, d.ValidateState(st), ErrUnknownUnit)
	_, err = d.RunFrom(context.Background(), st, variedSeries(2))
	assert.ErrorIs(t, err, ErrUnknownUnit)
}

func TestValidateState_LastOutputs(t *testing.T) {
	d := newDriver(t, false)
	for _, kw := range []float64{-1, 1000, math.NaN(), math.Inf(1)} {
		st, err := d.InitialState()
		require.NoError(t, err)
		st.LastOutputs["chp"] = kw
		assert.ErrorIs(t, d.ValidateState(st), ErrInvalidConfig, "last output %v", kw)
		_, err = d.RunFrom(context.Background(), st, variedSeries(2))
		assert.ErrorIs(t, err, ErrInvalidConfig, "last output %v", kw)
	}

	st, err := d.InitialState()
	require.NoError(t, err)
	st.LastOutputs["chp"] = 80
	assert.NoError(t, d.ValidateState(st))
}

func TestStep_PreviousOutputAboveMaximum(t *testing.T) {
	d := newDriver(t, false)
	st, err := d.InitialState()
	require.NoError(t, err)
	st.LastOutputs["chp"] = 1000

	_, r := d.Step(st, model.TimestepInput{LoadKW: 5000, PricePerKWh: 0.2, AmbientC: -10})
	chp := outputOf(r, "chp")
	assert.LessOrEqual(t, chp.SetpointKW, 80.0)
	assert.LessOrEqual(t, chp.HeatKWh, 80.0)
	assert.LessOrEqual(t, outputOf(r, "boiler").SetpointKW, 200.0)
}

func TestRunBatch_WithAndWithoutHeatPump(t *testing.T) {
	bus := eventbus.NewTyped[RunEvent]()
	events := bus.Subscribe()
	s := variedSeries(24)
	outs, err := RunBatch(context.Background(), []Scenario{
		{Name: "with_hp", Driver: newDriver(t, true), Series: s},
		{Name: "without_hp", Driver: newDriver(t, false), Series: s},
	}, 2, bus)
	require.NoError(t, err)
	require.Len(t, outs, 2)
	assert.Equal(t, "with_hp", outs[0].Name)
	assert.Equal(t, "without_hp", outs[1].Name)
	assert.Zero(t, outs[1].Summary.ElectricityConsumedKWh)
	bus.Close()

	completed := 0
	for e := range events {
		if e.Phase == PhaseCompleted {
			completed++
			assert.Equal(t, 24, e.Steps)
		}
	}
	assert.Equal(t, 2, completed)
}

func TestRunBatch_PropagatesErrors(t *testing.T) {
	_, err := RunBatch(context.Background(), []Scenario{
		{Name: "short", Driver: newDriver(t, false), Series: series.Series{}},
	}, 0, nil)
	assert.ErrorIs(t, err, series.ErrInputLength)
}

func TestSummarize(t *testing.T) {
	results := []model.TimestepResult{
		{
			LoadKWh: 10, DeliveredKWh: 10, StorageOutKWh: 4, LossKWh: 0.5, StepCost: 1,
			Storage: model.StorageState{SoC: 0.4},
			Outputs: []model.GeneratorOutput{{UnitID: "chp", HeatKWh: 6, ElectricityKWh: 3}},
		},
		{
			LoadKWh: 10, DeliveredKWh: 8, LossKWh: 0.5, StepCost: 2,
			Storage: model.StorageState{SoC: 0.2},
			Flags:   model.Flags{UnmetDemand: true, Underflow: true},
			Outputs: []model.GeneratorOutput{{UnitID: "hp", HeatKWh: 8, ElectricityKWh: -2}},
		},
	}
	s := Summarize(results)
	assert.Equal(t, 2, s.Steps)
	assert.Equal(t, 3.0, s.TotalCost)
	assert.Equal(t, 1, s.UnmetSteps)
	assert.Equal(t, 1, s.UnderflowSteps)
	assert.Equal(t, 20.0, s.LoadKWh)
	assert.Equal(t, 18.0, s.DeliveredKWh)
	assert.Equal(t, 1.0, s.LossKWh)
	assert.Equal(t, map[string]float64{"storage": 4, "chp": 6, "hp": 8}, s.EnergyBySource)
	assert.Equal(t, 3.0, s.ElectricityProducedKWh)
	assert.Equal(t, 2.0, s.ElectricityConsumedKWh)
	assert.InDelta(t, 0.3, s.MeanSoC, 1e-12)
	assert.Equal(t, 0.2, s.FinalSoC)

	assert.Zero(t, Summarize(nil).Steps)
}
