package runs

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/kilianp07/heatsim/core/results"
)

// NewHandler returns an HTTP handler exposing stored runs via GET /api/runs.
// Requests must include an Authorization header with "Bearer <token>" when token is non-empty.
// Step results are only returned with ?steps=true.
func NewHandler(store results.Store, token string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if token != "" {
			auth := r.Header.Get("Authorization")
			if auth != "Bearer "+token {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		params := r.URL.Query()
		q := results.Query{
			Scenario: params.Get("scenario"),
			Phase:    params.Get("phase"),
			UnitID:   params.Get("unit_id"),
		}
		for key, dst := range map[string]*time.Time{"start": &q.Start, "end": &q.End} {
			s := params.Get(key)
			if s == "" {
				continue
			}
			t, err := time.Parse(time.RFC3339, s)
			if err != nil {
				http.Error(w, "invalid "+key, http.StatusBadRequest)
				return
			}
			*dst = t
		}
		records, err := store.Query(r.Context(), q)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if params.Get("steps") != "true" {
			for i := range records {
				records[i].Steps = nil
			}
		}
		if records == nil {
			records = []results.Record{}
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(records); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	})
}
