package store

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return NewPostgresWithPool(mock), mock
}

var runColumns = []string{"id", "year", "profile", "states", "tracts", "records", "excluded", "started_at", "elapsed_ms"}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE SCHEMA IF NOT EXISTS acs`).WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	run := testRun()

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "_tmp_upsert_acs_tract_values"`).WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_acs_tract_values"}, valueColumns).WillReturnResult(2)
	mock.ExpectExec(`INSERT INTO "acs"."tract_values" .* ON CONFLICT \("year", "profile", "geo_id", "variable_code"\) DO UPDATE`).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()
	mock.ExpectExec(`INSERT INTO acs.runs`).
		WithArgs(run.ID, 2020, "DP02", "01,02", 1, 2, 3, run.StartedAt, int64(1500)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.SaveRun(context.Background(), run, testRecords()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveRun_UpsertFails(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin().WillReturnError(fmt.Errorf("connection refused"))

	err := s.SaveRun(context.Background(), testRun(), testRecords())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "save run")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	run := testRun()

	mock.ExpectQuery(`SELECT id::text, year, profile, states, tracts, records, excluded, started_at, elapsed_ms FROM acs.runs WHERE id = \$1`).
		WithArgs(run.ID).
		WillReturnRows(pgxmock.NewRows(runColumns).
			AddRow(run.ID, 2020, "DP02", "01,02", 1, 2, 3, run.StartedAt, int64(1500)))

	got, err := s.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, run, *got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM acs.runs WHERE id = \$1`).
		WithArgs("nonexistent-run").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetRun(context.Background(), "nonexistent-run")
	assert.ErrorIs(t, err, ErrRunNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListRuns(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	run := testRun()

	mock.ExpectQuery(`FROM acs.runs WHERE true AND year = \$1 AND profile = \$2 ORDER BY started_at DESC LIMIT \$3`).
		WithArgs(2020, "DP02", 100).
		WillReturnRows(pgxmock.NewRows(runColumns).
			AddRow(run.ID, 2020, "DP02", "01,02", 1, 2, 3, run.StartedAt, int64(1500)))

	runs, err := s.ListRuns(context.Background(), RunFilter{Year: 2020, Profile: "DP02"})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, []string{"01", "02"}, runs[0].States)
	assert.NoError(t, mock.ExpectationsWereMet())
}
