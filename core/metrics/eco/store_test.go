package eco

import (
	"testing"
	"time"
)

func TestMemoryStore_Aggregation(t *testing.T) {
	s := NewMemoryStore()
	d := Day(time.Date(2024, 1, 10, 7, 0, 0, 0, time.UTC))
	if err := s.Add(Record{UnitID: "chp", Date: d, FuelKWh: 2}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.Add(Record{UnitID: "chp", Date: d.Add(2 * time.Hour), FuelKWh: 1, ExportKWh: 0.5}); err != nil {
		t.Fatalf("add2: %v", err)
	}
	if err := s.Add(Record{UnitID: "chp", Date: d.Add(26 * time.Hour), FuelKWh: 4}); err != nil {
		t.Fatalf("add3: %v", err)
	}
	recs, err := s.Query("", "chp", d, d)
	if err != nil || len(recs) != 1 {
		t.Fatalf("query: %v len=%d", err, len(recs))
	}
	if recs[0].FuelKWh != 3 || recs[0].ExportKWh != 0.5 {
		t.Fatalf("unexpected aggregate %+v", recs[0])
	}
	recs, _ = s.Query("", "chp", d, d.Add(48*time.Hour))
	if len(recs) != 2 || !recs[0].Date.Before(recs[1].Date) {
		t.Fatalf("expected two ordered days, got %+v", recs)
	}
}

func TestMemoryStore_ScenariosKeptApart(t *testing.T) {
	s := NewMemoryStore()
	d := Day(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	for _, sc := range []string{"baseline", "without_heat_pump"} {
		if err := s.Add(Record{Scenario: sc, UnitID: "chp", Date: d, FuelKWh: 100}); err != nil {
			t.Fatalf("add %s: %v", sc, err)
		}
	}
	if err := s.Add(Record{Scenario: "baseline", UnitID: "hp", Date: d, HeatKWh: 3}); err != nil {
		t.Fatalf("add hp: %v", err)
	}
	recs, err := s.Query("baseline", "chp", d, d)
	if err != nil || len(recs) != 1 || recs[0].FuelKWh != 100 || recs[0].Scenario != "baseline" {
		t.Fatalf("baseline: %v %+v", err, recs)
	}
	if units, _ := s.Units("without_heat_pump"); len(units) != 1 || units[0] != "chp" {
		t.Fatalf("units %v", units)
	}
	if names, _ := s.Scenarios(); len(names) != 2 || names[0] != "baseline" {
		t.Fatalf("scenarios %v", names)
	}

	if err := s.Reset("baseline"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if recs, _ := s.Query("baseline", "chp", d, d); len(recs) != 0 {
		t.Fatalf("expected baseline gone, got %+v", recs)
	}
	if recs, _ := s.Query("without_heat_pump", "chp", d, d); len(recs) != 1 {
		t.Fatalf("reset touched another scenario: %+v", recs)
	}
}

func TestRecordCalculations(t *testing.T) {
	r := Record{FuelKWh: 10, ImportKWh: 2, ExportKWh: 4, HeatKWh: 5}
	// 10*0.2 + (2-4)*0.4 = 1.2
	if got := r.NetCO2(0.2, 0.4); got < 1.2-1e-12 || got > 1.2+1e-12 {
		t.Fatalf("co2 %f", got)
	}
	if got := r.HeatIntensity(0.2, 0.4); got < 0.24-1e-12 || got > 0.24+1e-12 {
		t.Fatalf("intensity %f", got)
	}
	if (Record{}).HeatIntensity(1, 1) != 0 {
		t.Fatalf("zero heat must give zero intensity")
	}
}
