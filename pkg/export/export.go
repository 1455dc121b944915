// Package export writes simulation results as CSV or JSON.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/kilianp07/heatsim/core/model"
)

// WriteJSON writes the step results to w in JSON format.
func WriteJSON(w io.Writer, results []model.TimestepResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}

var stepHeader = []string{
	"index", "time", "load_kwh", "delivered_kwh", "supply_temp_c", "required_supply_c",
	"soc", "outlet_temp_c", "storage_in_kwh", "storage_out_kwh", "loss_kwh",
	"step_cost", "cumulative_cost", "flags",
}

// WriteCSV writes one row per step with a heat column per unit. Unit columns
// are ordered by first appearance.
func WriteCSV(w io.Writer, results []model.TimestepResult) error {
	units := unitColumns(results)
	cw := csv.NewWriter(w)
	header := append([]string(nil), stepHeader...)
	for _, u := range units {
		header = append(header, u+"_heat_kwh")
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, r := range results {
		rec := []string{
			strconv.Itoa(r.Index),
			formatTime(r.Time),
			num(r.LoadKWh),
			num(r.DeliveredKWh),
			num(r.SupplyTempC),
			num(r.RequiredSupplyC),
			num(r.Storage.SoC),
			num(r.Storage.OutletTempC),
			num(r.StorageInKWh),
			num(r.StorageOutKWh),
			num(r.LossKWh),
			num(r.StepCost),
			num(r.CumulativeCost),
			flagString(r.Flags),
		}
		heat := make(map[string]float64, len(r.Outputs))
		for _, o := range r.Outputs {
			heat[o.UnitID] = o.HeatKWh
		}
		for _, u := range units {
			rec = append(rec, num(heat[u]))
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteSummaryCSV writes one row per named summary, sources sorted by name.
func WriteSummaryCSV(w io.Writer, names []string, sums []model.Summary) error {
	if len(names) != len(sums) {
		return fmt.Errorf("export: %d names for %d summaries", len(names), len(sums))
	}
	srcSet := map[string]struct{}{}
	for _, s := range sums {
		for k := range s.EnergyBySource {
			srcSet[k] = struct{}{}
		}
	}
	sources := make([]string, 0, len(srcSet))
	for k := range srcSet {
		sources = append(sources, k)
	}
	sort.Strings(sources)

	cw := csv.NewWriter(w)
	header := []string{"scenario", "steps", "total_cost", "unmet_steps", "overflow_steps", "underflow_steps",
		"load_kwh", "delivered_kwh", "loss_kwh", "mean_soc", "final_soc"}
	for _, s := range sources {
		header = append(header, s+"_kwh")
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for i, s := range sums {
		rec := []string{
			names[i],
			strconv.Itoa(s.Steps),
			num(s.TotalCost),
			strconv.Itoa(s.UnmetSteps),
			strconv.Itoa(s.OverflowSteps),
			strconv.Itoa(s.UnderflowSteps),
			num(s.LoadKWh),
			num(s.DeliveredKWh),
			num(s.LossKWh),
			num(s.MeanSoC),
			num(s.FinalSoC),
		}
		for _, src := range sources {
			rec = append(rec, num(s.EnergyBySource[src]))
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFile writes results to path, choosing CSV or JSON from the extension.
func WriteFile(path string, results []model.TimestepResult) (err error) {
	var write func(io.Writer, []model.TimestepResult) error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		write = WriteCSV
	case ".json":
		write = WriteJSON
	default:
		return fmt.Errorf("export: unsupported file extension %q", filepath.Ext(path))
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return write(f, results)
}

func unitColumns(results []model.TimestepResult) []string {
	var units []string
	seen := map[string]bool{}
	for _, r := range results {
		for _, o := range r.Outputs {
			if !seen[o.UnitID] {
				seen[o.UnitID] = true
				units = append(units, o.UnitID)
			}
		}
	}
	return units
}

func flagString(f model.Flags) string {
	var parts []string
	if f.UnmetDemand {
		parts = append(parts, "unmet")
	}
	if f.Overflow {
		parts = append(parts, "overflow")
	}
	if f.Underflow {
		parts = append(parts, "underflow")
	}
	if f.InputClamped {
		parts = append(parts, "input_clamped")
	}
	if f.GeneratorClamped {
		parts = append(parts, "generator_clamped")
	}
	return strings.Join(parts, "|")
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

func num(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
