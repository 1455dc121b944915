package series

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const yamlSeries = `
step_minutes: 15
start: 2024-01-01T00:00:00Z
load_kw: [100, 120]
price_per_kwh: [0.2, 0.3]
ambient_c: [-5, -4]
fuel_price_per_kwh: [0.05, 0.06]
`

func TestDecodeYAML(t *testing.T) {
	s, err := Decode(strings.NewReader(yamlSeries), "yaml")
	require.NoError(t, err)
	require.NoError(t, s.Validate(2))
	assert.Equal(t, 15*time.Minute, s.Step())

	in := s.At(1)
	assert.Equal(t, 1, in.Index)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 15, 0, 0, time.UTC), in.Time)
	assert.Equal(t, 120.0, in.LoadKW)
	assert.True(t, in.HasFuelPrice)
	assert.Equal(t, 0.06, in.FuelPricePerKWh)
	assert.Zero(t, in.SupplySetpointC)
}

func TestLoadJSON(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "in.json")
	require.NoError(t, os.WriteFile(p, []byte(`{"load_kw":[1],"price_per_kwh":[0.1],"ambient_c":[3]}`), 0o644))
	s, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, time.Hour, s.Step())
	assert.False(t, s.At(0).HasFuelPrice)
}

func TestDecode_UnsupportedFormat(t *testing.T) {
	_, err := Decode(strings.NewReader(""), "toml")
	assert.Error(t, err)
}

func TestValidate_LengthMismatch(t *testing.T) {
	s := Constant(3, 10, 0.1, 0)
	assert.NoError(t, s.Validate(3))
	assert.ErrorIs(t, s.Validate(4), ErrInputLength)

	s.AmbientC = s.AmbientC[:2]
	err := s.Validate(0)
	assert.ErrorIs(t, err, ErrInputLength)
	assert.Contains(t, err.Error(), "ambient_c")

	s = Constant(3, 10, 0.1, 0)
	s.SupplySetpointC = []float64{70}
	assert.ErrorIs(t, s.Validate(3), ErrInputLength)

	assert.ErrorIs(t, Series{}.Validate(0), ErrInputLength)
}
