// Package store persists finished tract runs and their records to SQLite or
// Postgres.
package store

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/acs-tracts/internal/acs"
)

// ErrRunNotFound is returned by GetRun for an unknown id.
var ErrRunNotFound = eris.New("store: run not found")

// Run is the stored summary of one pipeline run.
type Run struct {
	ID        string
	Year      int
	Profile   string
	States    []string
	Tracts    int
	Records   int
	Excluded  int
	StartedAt time.Time
	Elapsed   time.Duration
}

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Year    int
	Profile string
	Limit   int
}

// Store defines persistence for tract runs.
type Store interface {
	// SaveRun writes the run row and upserts its records keyed by
	// (year, profile, geo_id, variable_code).
	SaveRun(ctx context.Context, run Run, records []acs.FinalRecord) error
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]Run, error)

	Migrate(ctx context.Context) error
	Close() error
}

// RunFromResult summarizes a pipeline result for storage.
func RunFromResult(res *acs.Result) Run {
	states := make([]string, len(res.States))
	for i, s := range res.States {
		states[i] = s.Code
	}
	return Run{
		ID:        res.RunID.String(),
		Year:      res.Year,
		Profile:   res.Profile,
		States:    states,
		Tracts:    res.Tracts,
		Records:   len(res.Records),
		Excluded:  len(res.Issues) + res.Join.Dropped(),
		StartedAt: res.StartedAt.UTC(),
		Elapsed:   res.Elapsed,
	}
}

// valueColumns is the column list of the tract_values table.
var valueColumns = append([]string{"run_id", "year", "profile"}, acs.Columns...)

// valueConflictKeys identifies a stored value across runs.
var valueConflictKeys = []string{"year", "profile", "geo_id", "variable_code"}

func valueRow(run Run, r acs.FinalRecord) []any {
	return append([]any{run.ID, run.Year, run.Profile}, r.Values()...)
}

func joinStates(states []string) string { return strings.Join(states, ",") }

func splitStates(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func limitOrDefault(n int) int {
	if n <= 0 {
		return 100
	}
	return n
}
