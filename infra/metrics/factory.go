package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/heatsim/core/factory"
	coremetrics "github.com/kilianp07/heatsim/core/metrics"
	eco "github.com/kilianp07/heatsim/core/metrics/eco"
	"github.com/kilianp07/heatsim/infra/kpi"
)

// Default emission factors in kg CO2 per kWh.
const (
	DefaultFuelFactor = 0.201
	DefaultGridFactor = 0.4
)

// init registers built-in metrics sinks.
func init() {
	_ = coremetrics.RegisterMetricsSink("nop", func(map[string]any) (coremetrics.MetricsSink, error) {
		return coremetrics.NopSink{}, nil
	})

	_ = coremetrics.RegisterMetricsSink("prometheus", func(conf map[string]any) (coremetrics.MetricsSink, error) {
		var c struct {
			Addr string `json:"listen_addr"`
		}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		// the address is used by the HTTP server only
		return NewPromSinkWithRegistry(coremetrics.Config{ListenAddr: c.Addr}, prometheus.DefaultRegisterer)
	})

	_ = coremetrics.RegisterMetricsSink("influx", func(conf map[string]any) (coremetrics.MetricsSink, error) {
		var c struct {
			URL    string `json:"url"`
			Token  string `json:"token"`
			Org    string `json:"org"`
			Bucket string `json:"bucket"`
		}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewInfluxSinkWithFallback(c.URL, c.Token, c.Org, c.Bucket), nil
	})

	_ = coremetrics.RegisterMetricsSink("eco", func(conf map[string]any) (coremetrics.MetricsSink, error) {
		c := struct {
			FuelFactor float64 `json:"fuel_factor"`
			GridFactor float64 `json:"grid_factor"`
			// DBPath keeps the daily records in SQLite instead of memory.
			DBPath string `json:"db_path"`
		}{FuelFactor: DefaultFuelFactor, GridFactor: DefaultGridFactor}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		var store eco.Store = eco.NewMemoryStore()
		if c.DBPath != "" {
			db, err := kpi.NewSQLiteStore(c.DBPath)
			if err != nil {
				return nil, err
			}
			store = db
		}
		return NewEcoSink(store, c.FuelFactor, c.GridFactor, prometheus.DefaultRegisterer)
	})
}
