// Package units exposes per-unit emission KPIs over HTTP.
package units

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	eco "github.com/kilianp07/heatsim/core/metrics/eco"
)

// NewKPIHandler exposes daily emission KPIs via GET /api/units/{id}/kpis.
// The scenario query parameter may be omitted while the store holds a single
// scenario. Factors are kg CO2 per kWh of fuel and of grid electricity.
func NewKPIHandler(store eco.Store, fuelFactor, gridFactor float64) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		path := strings.TrimPrefix(r.URL.Path, "/api/units/")
		parts := strings.Split(path, "/")
		if len(parts) < 2 || parts[0] == "" || parts[1] != "kpis" {
			http.NotFound(w, r)
			return
		}
		id := parts[0]
		start, _ := time.Parse(time.RFC3339, r.URL.Query().Get("start"))
		end, _ := time.Parse(time.RFC3339, r.URL.Query().Get("end"))
		if end.IsZero() {
			end = time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)
		}
		scenario, ok, err := pickScenario(store, r.URL.Query().Get("scenario"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if !ok {
			http.Error(w, "scenario required", http.StatusBadRequest)
			return
		}
		recs, err := store.Query(scenario, id, start, end)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		type out struct {
			Date      string  `json:"date"`
			FuelKWh   float64 `json:"fuel_kwh"`
			ImportKWh float64 `json:"import_kwh"`
			ExportKWh float64 `json:"export_kwh"`
			HeatKWh   float64 `json:"heat_kwh"`
			NetCO2    float64 `json:"net_co2_kg"`
			Intensity float64 `json:"co2_per_heat_kwh"`
		}
		outSlice := make([]out, len(recs))
		for i, r := range recs {
			outSlice[i] = out{
				Date:      r.Date.Format("2006-01-02"),
				FuelKWh:   r.FuelKWh,
				ImportKWh: r.ImportKWh,
				ExportKWh: r.ExportKWh,
				HeatKWh:   r.HeatKWh,
				NetCO2:    r.NetCO2(fuelFactor, gridFactor),
				Intensity: r.HeatIntensity(fuelFactor, gridFactor),
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(outSlice)
	})
}

func pickScenario(store eco.Store, requested string) (string, bool, error) {
	if requested != "" {
		return requested, true, nil
	}
	names, err := store.Scenarios()
	if err != nil {
		return "", false, err
	}
	switch len(names) {
	case 0:
		return "", true, nil
	case 1:
		return names[0], true, nil
	default:
		return "", false, nil
	}
}
