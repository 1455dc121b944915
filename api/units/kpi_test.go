package units

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	eco "github.com/kilianp07/heatsim/core/metrics/eco"
)

func TestKPIHandler(t *testing.T) {
	store := eco.NewMemoryStore()
	day := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.Add(eco.Record{Scenario: "run", UnitID: "chp1", Date: day.Add(3 * time.Hour), FuelKWh: 100, ExportKWh: 35, HeatKWh: 50}))
	require.NoError(t, store.Add(eco.Record{Scenario: "run", UnitID: "chp1", Date: day.Add(27 * time.Hour), FuelKWh: 10, HeatKWh: 5}))
	h := NewKPIHandler(store, 0.2, 0.4)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/units/chp1/kpis?start=2024-01-10T00:00:00Z&end=2024-01-10T23:00:00Z", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var got []map[string]any
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&got))
	require.Len(t, got, 1)
	assert.Equal(t, "2024-01-10", got[0]["date"])
	assert.InDelta(t, 6, got[0]["net_co2_kg"], 1e-9)
	assert.InDelta(t, 0.12, got[0]["co2_per_heat_kwh"], 1e-9)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/units/chp1/kpis", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&got))
	assert.Len(t, got, 2)
}

func TestKPIHandler_Scenarios(t *testing.T) {
	store := eco.NewMemoryStore()
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.Add(eco.Record{Scenario: "baseline", UnitID: "chp1", Date: day, FuelKWh: 100, HeatKWh: 50}))
	require.NoError(t, store.Add(eco.Record{Scenario: "without_heat_pump", UnitID: "chp1", Date: day, FuelKWh: 140, HeatKWh: 70}))
	h := NewKPIHandler(store, 0.2, 0.4)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/units/chp1/kpis", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/units/chp1/kpis?scenario=baseline", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var got []map[string]any
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&got))
	require.Len(t, got, 1)
	assert.InDelta(t, 100, got[0]["fuel_kwh"], 1e-9)
}

func TestKPIHandler_Errors(t *testing.T) {
	h := NewKPIHandler(eco.NewMemoryStore(), 0.2, 0.4)
	tests := []struct {
		name   string
		method string
		url    string
		code   int
	}{
		{"post", http.MethodPost, "/api/units/chp1/kpis", http.StatusMethodNotAllowed},
		{"missing suffix", http.MethodGet, "/api/units/chp1", http.StatusNotFound},
		{"missing id", http.MethodGet, "/api/units//kpis", http.StatusNotFound},
		{"unknown unit", http.MethodGet, "/api/units/ghost/kpis", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, httptest.NewRequest(tt.method, tt.url, nil))
			assert.Equal(t, tt.code, rr.Code)
		})
	}
}
