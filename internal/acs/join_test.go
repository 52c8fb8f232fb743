package acs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func classified(geo, code string, v float64) ClassifiedVariable {
	return ClassifiedVariable{
		VariableValue: VariableValue{GeoID: geo, VariableCode: code, VariableName: "Estimate!!Total!!Population", Value: v},
		Components:    Components{Measurement: "estimate", DemographicTarget: "total", Demographic: "population"},
	}
}

func TestJoin(t *testing.T) {
	geos := []GeographyRecord{
		{GeoID: "g1", TractName: "Census Tract 1", StateCode: "01", County: "001", Tract: "000100"},
		{GeoID: "g2", TractName: "Census Tract 2", StateCode: "72", County: "003", Tract: "000200"},
	}
	states := map[string]string{"01": "Alabama"}

	out, stats := Join([]ClassifiedVariable{
		classified("g1", "A", 1),
		classified("g2", "A", 2),
		classified("g9", "A", 3),
		classified("g1", "B", 4),
	}, geos, states)

	require.Len(t, out, 2)
	assert.Equal(t, FinalRecord{
		GeoID:             "g1",
		StateCode:         "01",
		StateName:         "Alabama",
		County:            "001",
		Tract:             "000100",
		TractName:         "Census Tract 1",
		VariableCode:      "A",
		VariableName:      "Estimate!!Total!!Population",
		Value:             1,
		Measurement:       "estimate",
		DemographicTarget: "total",
		Demographic:       "population",
	}, out[0])
	assert.Equal(t, "B", out[1].VariableCode)

	assert.Equal(t, 2, stats.Matched)
	assert.Equal(t, 1, stats.MissingGeography)
	assert.Equal(t, 1, stats.MissingState)
	assert.Equal(t, 2, stats.Dropped())
	assert.Equal(t, []string{"g9"}, stats.UnmatchedGeoIDs)
	assert.Equal(t, []string{"72"}, stats.UnmatchedStates)
}

func TestFinalRecord_Columns(t *testing.T) {
	r := FinalRecord{GeoID: "g1", StateCode: "01", Value: 1234567, Demographic: "d"}

	assert.Len(t, r.Values(), len(Columns))
	s := r.Strings()
	require.Len(t, s, len(Columns))
	assert.Equal(t, "g1", s[0])
	assert.Equal(t, "1234567", s[8])
	assert.Equal(t, "d", s[11])
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "0", FormatValue(0))
	assert.Equal(t, "12.5", FormatValue(12.5))
	assert.Equal(t, "-666666666", FormatValue(-666666666))
}
