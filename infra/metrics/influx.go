package metrics

import (
	"context"
	"math"
	"net/http"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/heatsim/core/metrics"
	"github.com/kilianp07/heatsim/core/model"
	"github.com/kilianp07/heatsim/infra/logger"
)

// InfluxSink writes run outcomes to an InfluxDB instance using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.MetricsSink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// Close releases the client.
func (s *InfluxSink) Close() { s.client.Close() }

// RecordRun writes the run summary.
func (s *InfluxSink) RecordRun(rec coremetrics.RunRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	sum := rec.Summary
	p := write.NewPointWithMeasurement("run_summary").
		AddTag("run_id", rec.RunID).
		AddTag("scenario", rec.Scenario).
		AddTag("phase", rec.Phase).
		AddField("steps", sum.Steps).
		AddField("total_cost", round3(sum.TotalCost)).
		AddField("unmet_steps", sum.UnmetSteps).
		AddField("overflow_steps", sum.OverflowSteps).
		AddField("underflow_steps", sum.UnderflowSteps).
		AddField("delivered_kwh", round3(sum.DeliveredKWh)).
		AddField("loss_kwh", round3(sum.LossKWh)).
		AddField("mean_soc", round3(sum.MeanSoC)).
		SetTime(rec.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordSteps writes one storage point per step and one point per running
// unit in a single batch.
func (s *InfluxSink) RecordSteps(runID, scenario string, results []model.TimestepResult) error {
	if len(results) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	points := make([]*write.Point, 0, len(results))
	for _, r := range results {
		ts := stepTime(r)
		points = append(points, write.NewPointWithMeasurement("timestep").
			AddTag("run_id", runID).
			AddTag("scenario", scenario).
			AddField("soc", round3(r.Storage.SoC)).
			AddField("outlet_temp_c", round3(r.Storage.OutletTempC)).
			AddField("supply_temp_c", round3(r.SupplyTempC)).
			AddField("delivered_kwh", round3(r.DeliveredKWh)).
			AddField("step_cost", round3(r.StepCost)).
			AddField("unmet", r.Flags.UnmetDemand).
			SetTime(ts))
		for _, o := range r.Outputs {
			if !o.On {
				continue
			}
			points = append(points, write.NewPointWithMeasurement("generator_output").
				AddTag("run_id", runID).
				AddTag("scenario", scenario).
				AddTag("unit_id", o.UnitID).
				AddTag("type", o.Type.String()).
				AddField("heat_kwh", round3(o.HeatKWh)).
				AddField("electricity_kwh", round3(o.ElectricityKWh)).
				AddField("net_cost", round3(o.NetCost())).
				SetTime(ts))
		}
	}
	return s.writeAPI.WritePoint(ctx, points...)
}

// RecordProgress writes a batch progress event.
func (s *InfluxSink) RecordProgress(ev coremetrics.ProgressEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("batch_progress").
		AddTag("scenario", ev.Scenario).
		AddTag("phase", ev.Phase).
		AddField("steps", ev.Steps).
		AddField("error", ev.Err).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// stepTime falls back to the step index in seconds when the series has no
// start time so points of one run stay distinct.
func stepTime(r model.TimestepResult) time.Time {
	if r.Time.IsZero() {
		return time.Unix(int64(r.Index), 0).UTC()
	}
	return r.Time
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
