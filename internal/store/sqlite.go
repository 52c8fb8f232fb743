package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/acs-tracts/internal/acs"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	year       INTEGER NOT NULL,
	profile    TEXT NOT NULL,
	states     TEXT NOT NULL,
	tracts     INTEGER NOT NULL,
	records    INTEGER NOT NULL,
	excluded   INTEGER NOT NULL,
	started_at INTEGER NOT NULL,
	elapsed_ms INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS tract_values (
	run_id             TEXT NOT NULL REFERENCES runs(id),
	year               INTEGER NOT NULL,
	profile            TEXT NOT NULL,
	geo_id             TEXT NOT NULL,
	state_code         TEXT NOT NULL,
	state_name         TEXT NOT NULL,
	county             TEXT NOT NULL,
	tract              TEXT NOT NULL,
	tract_name         TEXT NOT NULL,
	variable_code      TEXT NOT NULL,
	variable_name      TEXT NOT NULL,
	value              REAL NOT NULL,
	measurement        TEXT NOT NULL,
	demographic_target TEXT NOT NULL,
	demographic        TEXT NOT NULL,
	PRIMARY KEY (year, profile, geo_id, variable_code)
);

CREATE INDEX IF NOT EXISTS idx_runs_year_profile ON runs(year, profile);
CREATE INDEX IF NOT EXISTS idx_tract_values_run_id ON tract_values(run_id);
CREATE INDEX IF NOT EXISTS idx_tract_values_state ON tract_values(state_code);
`

// Migrate creates the tables if needed.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveRun stores the run and its records in one transaction. Records from an
// earlier run of the same year and profile are replaced.
func (s *SQLiteStore) SaveRun(ctx context.Context, run Run, records []acs.FinalRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, year, profile, states, tracts, records, excluded, started_at, elapsed_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Year, run.Profile, joinStates(run.States), run.Tracts, run.Records, run.Excluded,
		run.StartedAt.UnixMilli(), run.Elapsed.Milliseconds(),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: insert run %s", run.ID)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(valueColumns)), ", ")
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		`INSERT OR REPLACE INTO tract_values (%s) VALUES (%s)`,
		strings.Join(valueColumns, ", "), placeholders,
	))
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare insert")
	}
	defer stmt.Close() //nolint:errcheck

	for _, r := range records {
		if _, err := stmt.ExecContext(ctx, valueRow(run, r)...); err != nil {
			return eris.Wrapf(err, "sqlite: insert %s %s", r.GeoID, r.VariableCode)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit")
}

// GetRun returns the run with id, or ErrRunNotFound.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, year, profile, states, tracts, records, excluded, started_at, elapsed_ms FROM runs WHERE id = ?`,
		id,
	)
	r, err := scanSQLiteRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrRunNotFound, "%s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get run %s", id)
	}
	return r, nil
}

// ListRuns returns runs newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]Run, error) {
	query := `SELECT id, year, profile, states, tracts, records, excluded, started_at, elapsed_ms FROM runs WHERE 1=1`
	var args []any

	if filter.Year > 0 {
		query += ` AND year = ?`
		args = append(args, filter.Year)
	}
	if filter.Profile != "" {
		query += ` AND profile = ?`
		args = append(args, filter.Profile)
	}
	query += ` ORDER BY started_at DESC LIMIT ?`
	args = append(args, limitOrDefault(filter.Limit))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []Run
	for rows.Next() {
		r, err := scanSQLiteRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

// CountValues returns the number of stored values for a year and profile.
func (s *SQLiteStore) CountValues(ctx context.Context, year int, profile string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tract_values WHERE year = ? AND profile = ?`, year, profile,
	).Scan(&n)
	return n, eris.Wrap(err, "sqlite: count values")
}

type scannable interface {
	Scan(dest ...any) error
}

func scanSQLiteRun(row scannable) (*Run, error) {
	var (
		r                  Run
		states             string
		startedMs, elapsed int64
	)
	if err := row.Scan(&r.ID, &r.Year, &r.Profile, &states, &r.Tracts, &r.Records, &r.Excluded, &startedMs, &elapsed); err != nil {
		return nil, err
	}
	r.States = splitStates(states)
	r.StartedAt = time.UnixMilli(startedMs).UTC()
	r.Elapsed = time.Duration(elapsed) * time.Millisecond
	return &r, nil
}
