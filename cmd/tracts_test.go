package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/acs-tracts/internal/acs"
	"github.com/sells-group/acs-tracts/internal/config"
	"github.com/sells-group/acs-tracts/internal/export"
)

func TestParseTractArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		year    int
		profile string
		wantErr bool
	}{
		{"year only", []string{"2020"}, 2020, "DP02", false},
		{"with profile", []string{"2022", "dp03"}, 2022, "DP03", false},
		{"not a number", []string{"twenty"}, 0, "", true},
		{"too early", []string{"2005"}, 0, "", true},
		{"blank profile", []string{"2020", " "}, 0, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			year, profile, err := parseTractArgs(tt.args)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.year, year)
			assert.Equal(t, tt.profile, profile)
		})
	}
}

func testResult() *acs.Result {
	return &acs.Result{
		RunID:     uuid.New(),
		Year:      2020,
		Profile:   "DP02",
		StartedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Elapsed:   1234 * time.Millisecond,
		Records: []acs.FinalRecord{
			{GeoID: "g1", StateCode: "01", StateName: "Alabama", VariableCode: "DP02_0001E", Value: 10},
			{GeoID: "g1", StateCode: "01", StateName: "Alabama", VariableCode: "DP02_0002E", Value: 20},
		},
		Tracts:    1,
		Variables: 2,
		Issues:    []acs.ClassificationIssue{{}},
		Melt:      acs.MeltStats{Missing: 3},
		States:    []acs.StateSummary{{Code: "01", Name: "Alabama", Tracts: 1, Records: 2}},
	}
}

func TestPrintSummary(t *testing.T) {
	var buf bytes.Buffer
	printSummary(&buf, testResult(), "out/census_tract_2020.csv")

	out := buf.String()
	assert.Contains(t, out, "Alabama")
	assert.Contains(t, out, "Excluded 1 rows with malformed variable labels")
	assert.Contains(t, out, "Coerced 3 missing or non-numeric values to 0")
	assert.Contains(t, out, "Wrote 2 records to out/census_tract_2020.csv")
	assert.Contains(t, out, "Elapsed: 1.234s")
	assert.NotContains(t, out, "without a geography")
}

func TestNewExporter(t *testing.T) {
	dir := t.TempDir()
	cfg = &config.Config{Store: config.StoreConfig{SQLitePath: filepath.Join(dir, "runs.db")}}
	t.Cleanup(func() { cfg = nil })

	exp, release, err := newExporter(context.Background(), export.FormatCSV, dir)
	require.NoError(t, err)
	release()
	assert.IsType(t, &export.FileExporter{}, exp)

	exp, release, err = newExporter(context.Background(), export.FormatSQLite, dir)
	require.NoError(t, err)
	defer release()
	assert.IsType(t, &export.StoreExporter{}, exp)

	_, _, err = newExporter(context.Background(), "json", dir)
	assert.Error(t, err)
}

func TestOpenStore_PostgresNeedsURL(t *testing.T) {
	cfg = &config.Config{}
	t.Cleanup(func() { cfg = nil })

	_, err := openStore(context.Background(), export.FormatPostgres)
	assert.ErrorContains(t, err, "database_url")
	assert.Equal(t, export.FormatSQLite, defaultStoreDriver())
}
