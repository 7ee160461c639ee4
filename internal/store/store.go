// Package store persists station results in a sqlite3 or postgres database.
package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"           // postgres driver
	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
)

// fraction kinds
const (
	KindClass     = "class"
	KindAggregate = "aggregate"
)

// StationRow is the per station result. Nil values are not available (failed).
type StationRow struct {
	Station     string   `db:"station"`
	Height      *float64 `db:"height"`
	SVF         *float64 `db:"svf"`
	LCZ         *string  `db:"lcz"`
	LCZOverride bool     `db:"lcz_override"`
	Failure     string   `db:"failure"`
}

// FractionRow is one class or aggregate fraction of a station buffer.
type FractionRow struct {
	Station  string  `db:"station"`
	Radius   float64 `db:"radius"`
	Dataset  string  `db:"dataset"`
	Kind     string  `db:"kind"`
	Label    string  `db:"label"`
	Fraction float64 `db:"fraction"`
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS station_results (
		station      TEXT PRIMARY KEY,
		height       DOUBLE PRECISION,
		svf          DOUBLE PRECISION,
		lcz          TEXT,
		lcz_override BOOLEAN NOT NULL,
		failure      TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS landuse_fractions (
		station  TEXT NOT NULL,
		radius   DOUBLE PRECISION NOT NULL,
		dataset  TEXT NOT NULL,
		kind     TEXT NOT NULL,
		label    TEXT NOT NULL,
		fraction DOUBLE PRECISION NOT NULL,
		PRIMARY KEY (station, radius, kind, label)
	)`,
}

// Store is the results database (safe for concurrent use).
type Store struct {
	db *sqlx.DB
}

/*
Open connects to the database (driver sqlite3 or postgres) and creates the schema if it
does not exist.
*/
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("error [%w] at sqlx.Open(), driver [%s]", err, driver)
	}
	if driver == "sqlite3" {
		// in-memory databases exist per connection
		db.SetMaxOpenConns(1)
	}
	if err = db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("error [%w] at db.PingContext(), driver [%s]", err, driver)
	}

	for _, statement := range schema {
		if _, err = db.ExecContext(ctx, statement); err != nil {
			db.Close()
			return nil, fmt.Errorf("error [%w] at db.ExecContext(), creating schema", err)
		}
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

/*
SaveStation replaces all stored results of one station in a single transaction.
*/
func (s *Store) SaveStation(ctx context.Context, station StationRow, fractions []FractionRow) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error [%w] at db.BeginTxx()", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	for _, table := range []string{"station_results", "landuse_fractions"} {
		query := tx.Rebind("DELETE FROM " + table + " WHERE station = ?")
		if _, err = tx.ExecContext(ctx, query, station.Station); err != nil {
			return fmt.Errorf("error [%w] at tx.ExecContext(), deleting from %s, station [%s]", err, table, station.Station)
		}
	}

	const insertStation = `INSERT INTO station_results (station, height, svf, lcz, lcz_override, failure)
		VALUES (:station, :height, :svf, :lcz, :lcz_override, :failure)`
	if _, err = tx.NamedExecContext(ctx, insertStation, station); err != nil {
		return fmt.Errorf("error [%w] at tx.NamedExecContext(), station [%s]", err, station.Station)
	}

	const insertFraction = `INSERT INTO landuse_fractions (station, radius, dataset, kind, label, fraction)
		VALUES (:station, :radius, :dataset, :kind, :label, :fraction)`
	for _, fraction := range fractions {
		if _, err = tx.NamedExecContext(ctx, insertFraction, fraction); err != nil {
			return fmt.Errorf("error [%w] at tx.NamedExecContext(), fraction [%s] of station [%s]", err, fraction.Label, fraction.Station)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("error [%w] at tx.Commit(), station [%s]", err, station.Station)
	}
	return nil
}

// Stations returns all stored station results ordered by station.
func (s *Store) Stations(ctx context.Context) ([]StationRow, error) {
	var rows []StationRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT station, height, svf, lcz, lcz_override, failure FROM station_results ORDER BY station`)
	if err != nil {
		return nil, fmt.Errorf("error [%w] at db.SelectContext(), station_results", err)
	}
	return rows, nil
}

// Fractions returns the stored fractions of a station ordered by radius, kind and label.
func (s *Store) Fractions(ctx context.Context, station string) ([]FractionRow, error) {
	var rows []FractionRow
	query := s.db.Rebind(`SELECT station, radius, dataset, kind, label, fraction FROM landuse_fractions
		WHERE station = ? ORDER BY radius, kind, label`)
	err := s.db.SelectContext(ctx, &rows, query, station)
	if err != nil {
		return nil, fmt.Errorf("error [%w] at db.SelectContext(), landuse_fractions, station [%s]", err, station)
	}
	return rows, nil
}
