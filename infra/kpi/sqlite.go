// Package kpi persists daily emission records.
package kpi

import (
	"database/sql"
	"time"

	_ "modernc.org/sqlite"

	core "github.com/kilianp07/heatsim/core/metrics/eco"
)

// SQLiteStore persists KPI records in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates the database and ensures schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	schema := `CREATE TABLE IF NOT EXISTS eco_kpi (
        scenario TEXT,
        unit_id TEXT,
        day INTEGER,
        fuel REAL,
        import REAL,
        export REAL,
        heat REAL,
        PRIMARY KEY(scenario, unit_id, day)
    );`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// Add inserts or accumulates the record of a scenario, unit and day.
func (s *SQLiteStore) Add(r core.Record) error {
	d := core.Day(r.Date)
	_, err := s.db.Exec(`INSERT INTO eco_kpi (scenario, unit_id, day, fuel, import, export, heat)
        VALUES (?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(scenario, unit_id, day) DO UPDATE SET
            fuel = fuel + excluded.fuel,
            import = import + excluded.import,
            export = export + excluded.export,
            heat = heat + excluded.heat`,
		r.Scenario, r.UnitID, d.Unix(), r.FuelKWh, r.ImportKWh, r.ExportKWh, r.HeatKWh)
	return err
}

// Reset deletes every record of the scenario.
func (s *SQLiteStore) Reset(scenario string) error {
	_, err := s.db.Exec(`DELETE FROM eco_kpi WHERE scenario = ?`, scenario)
	return err
}

// Query returns records in the range [start,end].
func (s *SQLiteStore) Query(scenario, unitID string, start, end time.Time) ([]core.Record, error) {
	start = core.Day(start)
	end = core.Day(end)
	rows, err := s.db.Query(`SELECT scenario, unit_id, day, fuel, import, export, heat
        FROM eco_kpi WHERE scenario = ? AND unit_id = ? AND day >= ? AND day <= ? ORDER BY day`,
		scenario, unitID, start.Unix(), end.Unix())
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []core.Record
	for rows.Next() {
		var r core.Record
		var ts int64
		if err := rows.Scan(&r.Scenario, &r.UnitID, &ts, &r.FuelKWh, &r.ImportKWh, &r.ExportKWh, &r.HeatKWh); err != nil {
			return nil, err
		}
		r.Date = time.Unix(ts, 0).UTC()
		res = append(res, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

// Units lists the units with at least one record in the scenario.
func (s *SQLiteStore) Units(scenario string) ([]string, error) {
	return s.distinct(`SELECT DISTINCT unit_id FROM eco_kpi WHERE scenario = ? ORDER BY unit_id`, scenario)
}

// Scenarios lists the scenarios with at least one record.
func (s *SQLiteStore) Scenarios() ([]string, error) {
	return s.distinct(`SELECT DISTINCT scenario FROM eco_kpi ORDER BY scenario`)
}

func (s *SQLiteStore) distinct(query string, args ...any) ([]string, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }
