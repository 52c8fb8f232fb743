package store

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/sells-group/acs-tracts/internal/acs"
)

func testRecords() []acs.FinalRecord {
	return []acs.FinalRecord{
		{GeoID: "g1", StateCode: "01", StateName: "Alabama", County: "001", Tract: "000100", TractName: "Census Tract 1",
			VariableCode: "A", VariableName: "Estimate!!Total!!Population", Value: 10,
			Measurement: "estimate", DemographicTarget: "total", Demographic: "population"},
		{GeoID: "g1", StateCode: "01", StateName: "Alabama", County: "001", Tract: "000100", TractName: "Census Tract 1",
			VariableCode: "B", VariableName: "Percent!!Total!!Population", Value: 12.5,
			Measurement: "percent", DemographicTarget: "total", Demographic: "population"},
	}
}

func testRun() Run {
	return Run{
		ID:        uuid.NewString(),
		Year:      2020,
		Profile:   "DP02",
		States:    []string{"01", "02"},
		Tracts:    1,
		Records:   2,
		Excluded:  3,
		StartedAt: time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC),
		Elapsed:   1500 * time.Millisecond,
	}
}

func TestRunFromResult(t *testing.T) {
	id := uuid.New()
	res := &acs.Result{
		RunID:     id,
		Year:      2021,
		Profile:   "DP03",
		StartedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Elapsed:   time.Second,
		Records:   testRecords(),
		Tracts:    1,
		Issues:    []acs.ClassificationIssue{{}},
		Join:      acs.JoinStats{MissingState: 2},
		States:    []acs.StateSummary{{Code: "01"}, {Code: "04"}},
	}

	run := RunFromResult(res)
	assert.Equal(t, id.String(), run.ID)
	assert.Equal(t, 2021, run.Year)
	assert.Equal(t, []string{"01", "04"}, run.States)
	assert.Equal(t, 2, run.Records)
	assert.Equal(t, 3, run.Excluded)
}

func TestValueRow(t *testing.T) {
	row := valueRow(testRun(), testRecords()[0])
	assert.Len(t, row, len(valueColumns))
	assert.Equal(t, 2020, row[1])
	assert.Equal(t, "g1", row[3])
}

func TestSplitStates(t *testing.T) {
	assert.Nil(t, splitStates(""))
	assert.Equal(t, []string{"01", "02"}, splitStates(joinStates([]string{"01", "02"})))
}
