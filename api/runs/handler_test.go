package runs

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/heatsim/core/model"
	"github.com/kilianp07/heatsim/core/results"
)

type memStore struct {
	recs []results.Record
	last results.Query
}

func (m *memStore) Append(_ context.Context, r results.Record) error {
	m.recs = append(m.recs, r)
	return nil
}

func (m *memStore) Query(_ context.Context, q results.Query) ([]results.Record, error) {
	m.last = q
	var res []results.Record
	for _, r := range m.recs {
		if q.Scenario != "" && r.Scenario != q.Scenario {
			continue
		}
		res = append(res, r)
	}
	return res, nil
}

func (m *memStore) Close() error { return nil }

func newStore(t *testing.T) *memStore {
	t.Helper()
	s := &memStore{}
	require.NoError(t, s.Append(context.Background(), results.Record{
		RunID:    "r1",
		Scenario: "baseline",
		Phase:    "completed",
		Steps:    []model.TimestepResult{{Index: 0}},
	}))
	require.NoError(t, s.Append(context.Background(), results.Record{RunID: "r2", Scenario: "without_heat_pump"}))
	return s
}

func TestHandler_AuthAndFilters(t *testing.T) {
	store := newStore(t)
	h := NewHandler(store, "secret")

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/runs", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/runs?scenario=baseline&unit_id=hp&start=2024-01-01T00:00:00Z", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var got []results.Record
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&got))
	require.Len(t, got, 1)
	assert.Equal(t, "r1", got[0].RunID)
	assert.Empty(t, got[0].Steps)
	assert.Equal(t, "hp", store.last.UnitID)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), store.last.Start)
}

func TestHandler_Steps(t *testing.T) {
	h := NewHandler(newStore(t), "")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/runs?scenario=baseline&steps=true", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var got []results.Record
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&got))
	require.Len(t, got, 1)
	assert.Len(t, got[0].Steps, 1)
}

func TestHandler_BadRequests(t *testing.T) {
	h := NewHandler(newStore(t), "")
	tests := []struct {
		name   string
		method string
		url    string
		code   int
	}{
		{"bad start", http.MethodGet, "/api/runs?start=yesterday", http.StatusBadRequest},
		{"bad end", http.MethodGet, "/api/runs?end=2024-13-01", http.StatusBadRequest},
		{"post", http.MethodPost, "/api/runs", http.StatusMethodNotAllowed},
		{"empty result", http.MethodGet, "/api/runs?scenario=nope", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, httptest.NewRequest(tt.method, tt.url, nil))
			assert.Equal(t, tt.code, rr.Code)
		})
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/runs?scenario=nope", nil))
	assert.JSONEq(t, "[]", rr.Body.String())
}
