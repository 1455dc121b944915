package eco

import (
	"sort"
	"sync"
	"time"
)

type dayKey struct {
	unit string
	day  time.Time
}

// MemoryStore stores records in memory for tests and single runs.
type MemoryStore struct {
	mu   sync.Mutex
	data map[string]map[dayKey]*Record
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: map[string]map[dayKey]*Record{}}
}

// Add inserts or updates the record aggregated by scenario, unit and day.
func (s *MemoryStore) Add(r Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data[r.Scenario] == nil {
		s.data[r.Scenario] = map[dayKey]*Record{}
	}
	k := dayKey{r.UnitID, Day(r.Date)}
	rec := s.data[r.Scenario][k]
	if rec == nil {
		rec = &Record{Scenario: r.Scenario, UnitID: r.UnitID, Date: k.day}
		s.data[r.Scenario][k] = rec
	}
	rec.FuelKWh += r.FuelKWh
	rec.ImportKWh += r.ImportKWh
	rec.ExportKWh += r.ExportKWh
	rec.HeatKWh += r.HeatKWh
	return nil
}

// Reset drops every record of the scenario.
func (s *MemoryStore) Reset(scenario string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, scenario)
	return nil
}

// Query returns records between start and end inclusive, ordered by day.
func (s *MemoryStore) Query(scenario, unitID string, start, end time.Time) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	start = Day(start)
	end = Day(end)
	var res []Record
	for k, r := range s.data[scenario] {
		if k.unit != unitID || k.day.Before(start) || k.day.After(end) {
			continue
		}
		res = append(res, *r)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Date.Before(res[j].Date) })
	return res, nil
}

// Units lists the units with at least one record in the scenario.
func (s *MemoryStore) Units(scenario string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := map[string]bool{}
	ids := []string{}
	for k := range s.data[scenario] {
		if !seen[k.unit] {
			seen[k.unit] = true
			ids = append(ids, k.unit)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Scenarios lists the scenarios with at least one record.
func (s *MemoryStore) Scenarios() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.data))
	for name, recs := range s.data {
		if len(recs) > 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}
