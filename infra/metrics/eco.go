package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	core "github.com/kilianp07/heatsim/core/metrics"
	eco "github.com/kilianp07/heatsim/core/metrics/eco"
	"github.com/kilianp07/heatsim/core/model"
)

// EcoSink turns generator outputs into daily emission KPIs per scenario. A
// scenario's figures always describe its latest recorded run.
type EcoSink struct {
	store      eco.Store
	fuelFactor float64
	gridFactor float64
	fuel       *prometheus.GaugeVec
	co2        *prometheus.GaugeVec
	intensity  *prometheus.GaugeVec
}

// NewEcoSink creates a sink with Prometheus gauges registered on reg.
// Factors are kg CO2 per kWh of fuel and of grid electricity.
func NewEcoSink(store eco.Store, fuelFactor, gridFactor float64, reg prometheus.Registerer) (*EcoSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &EcoSink{
		store:      store,
		fuelFactor: fuelFactor,
		gridFactor: gridFactor,
		fuel: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "heatsim_unit_fuel_kwh",
			Help: "Daily fuel use per unit",
		}, []string{"scenario", "unit_id", "day"}),
		co2: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "heatsim_unit_net_co2_kg",
			Help: "Daily net CO2 emissions per unit",
		}, []string{"scenario", "unit_id", "day"}),
		intensity: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "heatsim_unit_heat_co2_intensity",
			Help: "Daily kg CO2 per kWh of heat per unit",
		}, []string{"scenario", "unit_id", "day"}),
	}
	var err error
	if s.fuel, err = register(reg, s.fuel); err != nil {
		return nil, err
	}
	if s.co2, err = register(reg, s.co2); err != nil {
		return nil, err
	}
	if s.intensity, err = register(reg, s.intensity); err != nil {
		return nil, err
	}
	return s, nil
}

// RecordRun is a no-op; emissions are derived from steps.
func (s *EcoSink) RecordRun(core.RunRecord) error { return nil }

// RecordSteps replaces the scenario's records with the outputs of this run
// and refreshes the gauges.
func (s *EcoSink) RecordSteps(_ string, scenario string, results []model.TimestepResult) error {
	if err := s.store.Reset(scenario); err != nil {
		return err
	}
	stale := prometheus.Labels{"scenario": scenario}
	s.fuel.DeletePartialMatch(stale)
	s.co2.DeletePartialMatch(stale)
	s.intensity.DeletePartialMatch(stale)

	type key struct {
		unit string
		day  string
	}
	touched := map[key]eco.Record{}
	for _, r := range results {
		for _, o := range r.Outputs {
			if !o.On {
				continue
			}
			rec := eco.FromOutput(scenario, r.Time, o)
			if err := s.store.Add(rec); err != nil {
				return err
			}
			touched[key{o.UnitID, eco.Day(r.Time).Format("2006-01-02")}] = rec
		}
	}
	for k, rec := range touched {
		records, err := s.store.Query(scenario, k.unit, rec.Date, rec.Date)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			continue
		}
		agg := records[0]
		s.fuel.WithLabelValues(scenario, k.unit, k.day).Set(agg.FuelKWh)
		s.co2.WithLabelValues(scenario, k.unit, k.day).Set(agg.NetCO2(s.fuelFactor, s.gridFactor))
		s.intensity.WithLabelValues(scenario, k.unit, k.day).Set(agg.HeatIntensity(s.fuelFactor, s.gridFactor))
	}
	return nil
}

// Close releases the record store when it holds resources.
func (s *EcoSink) Close() {
	if c, ok := s.store.(interface{ Close() error }); ok {
		_ = c.Close()
	}
}
