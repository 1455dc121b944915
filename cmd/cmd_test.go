package cmd

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	eco "github.com/kilianp07/heatsim/core/metrics/eco"
	"github.com/kilianp07/heatsim/core/results"
	"github.com/kilianp07/heatsim/jobs/ecokpi"
)

const testConfig = `storage:
  volume_m3: 10
  layers: 10
  u_value_w_per_m2k: 0.4
  initial_soc: 0.5
generators:
  - type: chp
    conf:
      id: chp1
      max_power_kw: 150
      flow_temp_c: 90
      thermal_efficiency: 0.5
      power_to_heat_ratio: 0.7
      fuel_price_per_kwh: 0.04
  - type: heatpump
    conf:
      id: hp
      max_power_kw: 100
      flow_temp_c: 70
      carnot_fraction: 0.45
  - type: backup
    conf:
      id: boiler
      max_power_kw: 200
      flow_temp_c: 90
`

const testInputs = `step_minutes: 60
start: 2024-01-01T00:00:00Z
load_kw: [80, 80, 80, 80, 80, 80]
price_per_kwh: [0.05, 0.05, 0.05, 0.05, 0.05, 0.05]
ambient_c: [5, 5, 5, 5, 5, 5]
`

func writeFile(t *testing.T, dir, name, data string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(data), 0o644))
	return p
}

// execute resets the shared flag variables and runs the root command.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	inputPath, outputPath, metricsAddr, validateInputs = "", "", "", ""
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	cfg := writeFile(t, dir, "config.yaml", testConfig)
	in := writeFile(t, dir, "inputs.yaml", testInputs)

	out, err := execute(t, "validate", "-c", cfg, "-i", in)
	require.NoError(t, err)
	assert.Contains(t, out, "configuration OK")
	assert.Contains(t, out, "hp (heatpump)")
}

func TestValidate_Errors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		cfg  string
	}{
		{"no generators", "storage:\n  volume_m3: 10\n"},
		{"unknown generator", strings.Replace(testConfig, "type: backup", "type: boiler", 1)},
		{"unknown sink", testConfig + "metrics:\n  sinks:\n    - type: pigeon\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := writeFile(t, dir, strings.ReplaceAll(tt.name, " ", "_")+".yaml", tt.cfg)
			_, err := execute(t, "validate", "-c", cfg)
			assert.Error(t, err)
		})
	}
}

func TestRun_WritesCSV(t *testing.T) {
	dir := t.TempDir()
	cfg := writeFile(t, dir, "config.yaml", testConfig)
	in := writeFile(t, dir, "inputs.yaml", testInputs)
	csvPath := filepath.Join(dir, "results.csv")

	out, err := execute(t, "run", "-c", cfg, "-i", in, "-o", csvPath)
	require.NoError(t, err)
	assert.Contains(t, out, "completed")
	assert.Contains(t, out, "unmet 0")

	f, err := os.Open(csvPath)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	assert.Len(t, rows, 7)
	assert.Equal(t, "index", rows[0][0])
}

func TestRun_InputLengthMismatch(t *testing.T) {
	dir := t.TempDir()
	cfg := writeFile(t, dir, "config.yaml", "simulation:\n  horizon_steps: 24\n"+testConfig)
	in := writeFile(t, dir, "inputs.yaml", testInputs)

	_, err := execute(t, "run", "-c", cfg, "-i", in)
	assert.ErrorContains(t, err, "input series length mismatch")
}

func TestCompare(t *testing.T) {
	dir := t.TempDir()
	cfg := writeFile(t, dir, "config.yaml", testConfig)
	in := writeFile(t, dir, "inputs.yaml", testInputs)
	sumPath := filepath.Join(dir, "compare.csv")

	_, err := execute(t, "compare", "-c", cfg, "-i", in, "-o", sumPath)
	require.NoError(t, err)
	data, err := os.ReadFile(sumPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "baseline")
	assert.Contains(t, string(data), "without_heat_pump")
}

func TestPlugins(t *testing.T) {
	out, err := execute(t, "plugins")
	require.NoError(t, err)
	assert.Contains(t, out, "generators: backup, chp, heatpump")
	assert.Contains(t, out, "prometheus")
}

func TestEmissions(t *testing.T) {
	dir := t.TempDir()
	withResults := testConfig + "results:\n  backend: sqlite\n  path: " + filepath.Join(dir, "runs.db") + "\n  with_steps: true\n"
	cfg := writeFile(t, dir, "config.yaml", withResults)
	in := writeFile(t, dir, "inputs.yaml", testInputs)

	_, err := execute(t, "run", "-c", cfg, "-i", in)
	require.NoError(t, err)

	ecoFuelFactor, ecoGridFactor, ecoScenario = 0.2, 0.4, ""
	ecoDBPath = filepath.Join(dir, "eco.db")
	out, err := execute(t, "emissions", "-c", cfg, "--db", ecoDBPath)
	require.NoError(t, err)
	assert.Contains(t, out, "kg_per_kwh")
	assert.Contains(t, out, "2024-01-01")
	assert.Contains(t, out, "run")

	// a second run of the same scenario replaces the first instead of adding up
	_, err = execute(t, "run", "-c", cfg, "-i", in)
	require.NoError(t, err)
	again, err := execute(t, "emissions", "-c", cfg, "--db", ecoDBPath)
	require.NoError(t, err)
	assert.Equal(t, out, again)
}

func TestEmissions_NoBackend(t *testing.T) {
	dir := t.TempDir()
	cfg := writeFile(t, dir, "config.yaml", testConfig)
	_, err := execute(t, "emissions", "-c", cfg)
	assert.ErrorContains(t, err, "no results backend")
}

func TestServeMux(t *testing.T) {
	dir := t.TempDir()
	withResults := testConfig + "results:\n  backend: jsonl\n  path: " + filepath.Join(dir, "runs.jsonl") + "\n  with_steps: true\n"
	cfg := writeFile(t, dir, "config.yaml", withResults)
	in := writeFile(t, dir, "inputs.yaml", testInputs)
	_, err := execute(t, "run", "-c", cfg, "-i", in)
	require.NoError(t, err)

	rs, err := results.NewJSONLStore(filepath.Join(dir, "runs.jsonl"))
	require.NoError(t, err)
	history, err := rs.Query(context.Background(), results.Query{})
	require.NoError(t, err)
	es := eco.NewMemoryStore()
	_, err = ecokpi.Backfill(es, history)
	require.NoError(t, err)

	ecoFuelFactor, ecoGridFactor = 0.2, 0.4
	srv := httptest.NewServer(newMux(rs, es, "tok", prometheus.NewRegistry(), []string{"https://dash.example"}))
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/runs?scenario=run", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer tok")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var recs []results.Record
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&recs))
	require.Len(t, recs, 1)

	kresp, err := http.Get(srv.URL + "/api/units/chp1/kpis")
	require.NoError(t, err)
	defer kresp.Body.Close()
	assert.Equal(t, http.StatusOK, kresp.StatusCode)

	req, err = http.NewRequest(http.MethodGet, srv.URL+"/api/units/chp1/kpis", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://dash.example")
	cresp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer cresp.Body.Close()
	assert.Equal(t, "https://dash.example", cresp.Header.Get("Access-Control-Allow-Origin"))

	mresp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer mresp.Body.Close()
	assert.Equal(t, http.StatusOK, mresp.StatusCode)
}
