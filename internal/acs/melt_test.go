package acs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMelt(t *testing.T) {
	w := mustWide(stateResponse("01", 3))

	values, stats, err := Melt(w)
	require.NoError(t, err)

	// One record per (tract, variable).
	require.Len(t, values, w.NumRows()*2)
	assert.Equal(t, MeltStats{Rows: 3, Variables: 2}, stats)

	assert.Equal(t, VariableValue{
		GeoID:        geoID("01", "010100"),
		VariableName: testLabels["DP02_0001E"],
		VariableCode: "DP02_0001E",
		Value:        100,
	}, values[0])
	assert.Equal(t, "DP02_0002E", values[1].VariableCode)
	assert.Equal(t, 10.0, values[1].Value)
	assert.Equal(t, geoID("01", "020100"), values[2].GeoID)
}

func TestMelt_CodeMatchesLabel(t *testing.T) {
	w := mustWide(stateResponse("01", 2), stateResponse("02", 2))

	values, _, err := Melt(w)
	require.NoError(t, err)
	for _, v := range values {
		assert.Equal(t, testLabels[v.VariableCode], v.VariableName)
	}
}

func TestMelt_CoercesAbsentValues(t *testing.T) {
	w := mustWide(stateResponse("01", 3))
	w.Rows[0][0] = nil
	blank := "  "
	w.Rows[1][0] = &blank
	bad := "N/A"
	w.Rows[2][1] = &bad

	values, stats, err := Melt(w)
	require.NoError(t, err)
	require.Len(t, values, 6)

	assert.Zero(t, values[0].Value)
	assert.Zero(t, values[2].Value)
	assert.Zero(t, values[5].Value)
	assert.Equal(t, 2, stats.Missing)
	assert.Equal(t, 1, stats.NonNumeric)
}

func TestMelt_SkipsLeakedHeader(t *testing.T) {
	w := mustWide(stateResponse("01", 1))
	w.Rows = append([][]*string{cells(testHeader...)}, w.Rows...)

	values, stats, err := Melt(w)
	require.NoError(t, err)
	assert.Len(t, values, 2)
	assert.Equal(t, 1, stats.Sentinel)
}

func TestParseValue(t *testing.T) {
	s := func(v string) *string { return &v }
	tests := []struct {
		name    string
		cell    *string
		want    float64
		ok      bool
		present bool
	}{
		{"null", nil, 0, false, false},
		{"empty", s(""), 0, false, false},
		{"integer", s("42"), 42, true, true},
		{"decimal", s(" 12.5 "), 12.5, true, true},
		{"negative sentinel", s("-666666666"), -666666666, true, true},
		{"text", s("(X)"), 0, false, true},
		{"nan", s("NaN"), 0, false, true},
		{"inf", s("Inf"), 0, false, true},
		{"negative infinity", s("-infinity"), 0, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, ok, present := parseValue(tt.cell)
			assert.Equal(t, tt.want, v)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.present, present)
		})
	}
}
