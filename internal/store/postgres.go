package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/acs-tracts/internal/acs"
	"github.com/sells-group/acs-tracts/internal/db"
)

// PostgresStore implements Store on a pgx pool. Tables live in the acs schema.
type PostgresStore struct {
	pool db.Pool
}

// NewPostgres connects to connString and returns a store that owns the pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *db.PoolConfig) (*PostgresStore, error) {
	pool, err := db.Connect(ctx, connString, poolCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresWithPool wraps an existing pool.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const valuesTable = "acs.tract_values"

const postgresMigration = `
CREATE SCHEMA IF NOT EXISTS acs;

CREATE TABLE IF NOT EXISTS acs.runs (
	id         UUID PRIMARY KEY,
	year       INTEGER NOT NULL,
	profile    TEXT NOT NULL,
	states     TEXT NOT NULL,
	tracts     INTEGER NOT NULL,
	records    INTEGER NOT NULL,
	excluded   INTEGER NOT NULL,
	started_at TIMESTAMPTZ NOT NULL,
	elapsed_ms BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS acs.tract_values (
	run_id             UUID NOT NULL,
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
	value              DOUBLE PRECISION NOT NULL,
	measurement        TEXT NOT NULL,
	demographic_target TEXT NOT NULL,
	demographic        TEXT NOT NULL,
	PRIMARY KEY (year, profile, geo_id, variable_code)
);

CREATE INDEX IF NOT EXISTS idx_runs_year_profile ON acs.runs(year, profile);
CREATE INDEX IF NOT EXISTS idx_tract_values_state ON acs.tract_values(state_code);
`

// Migrate creates the schema and tables if needed.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// SaveRun upserts the records with COPY through a staging table, then
// records the run row.
func (s *PostgresStore) SaveRun(ctx context.Context, run Run, records []acs.FinalRecord) error {
	rows := make([][]any, len(records))
	for i, r := range records {
		rows[i] = valueRow(run, r)
	}

	_, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        valuesTable,
		Columns:      valueColumns,
		ConflictKeys: valueConflictKeys,
	}, rows)
	if err != nil {
		return eris.Wrapf(err, "postgres: save run %s", run.ID)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO acs.runs (id, year, profile, states, tracts, records, excluded, started_at, elapsed_ms)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		run.ID, run.Year, run.Profile, joinStates(run.States), run.Tracts, run.Records, run.Excluded,
		run.StartedAt, run.Elapsed.Milliseconds(),
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: insert run %s", run.ID)
	}
	return nil
}

// GetRun returns the run with id, or ErrRunNotFound.
func (s *PostgresStore) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id::text, year, profile, states, tracts, records, excluded, started_at, elapsed_ms FROM acs.runs WHERE id = $1`,
		id,
	)
	r, err := scanPostgresRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrRunNotFound, "%s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", id)
	}
	return r, nil
}

// ListRuns returns runs newest first.
func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]Run, error) {
	query := `SELECT id::text, year, profile, states, tracts, records, excluded, started_at, elapsed_ms FROM acs.runs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Year > 0 {
		query += fmt.Sprintf(` AND year = $%d`, argIdx)
		args = append(args, filter.Year)
		argIdx++
	}
	if filter.Profile != "" {
		query += fmt.Sprintf(` AND profile = $%d`, argIdx)
		args = append(args, filter.Profile)
		argIdx++
	}
	query += fmt.Sprintf(` ORDER BY started_at DESC LIMIT $%d`, argIdx)
	args = append(args, limitOrDefault(filter.Limit))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanPostgresRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func scanPostgresRun(row scannable) (*Run, error) {
	var (
		r       Run
		states  string
		elapsed int64
	)
	if err := row.Scan(&r.ID, &r.Year, &r.Profile, &states, &r.Tracts, &r.Records, &r.Excluded, &r.StartedAt, &elapsed); err != nil {
		return nil, err
	}
	r.States = splitStates(states)
	r.StartedAt = r.StartedAt.UTC()
	r.Elapsed = time.Duration(elapsed) * time.Millisecond
	return &r, nil
}
