package acs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssembleWide(t *testing.T) {
	w, err := AssembleWide(context.Background(),
		[]RawStateResponse{stateResponse("01", 3), stateResponse("02", 2)},
		NewLabelResolver(newFakeLabels()), 2020)
	require.NoError(t, err)

	// Header rows are stripped; data rows are stacked in state order.
	assert.Equal(t, 5, w.NumRows())
	assert.Equal(t, geoID("01", "010100"), *w.Rows[0][2])
	assert.Equal(t, geoID("02", "010100"), *w.Rows[3][2])

	cols := w.Schema.Columns()
	require.Len(t, cols, 7)
	assert.Equal(t, testLabels["DP02_0001E"], cols[0].Label)
	assert.Equal(t, testLabels["DP02_0002E"], cols[1].Label)
	for _, c := range cols[2:] {
		assert.Equal(t, c.Code, c.Label)
	}
	assert.Equal(t, 2, w.Catalog.Len())
}

func TestAssembleWide_SchemaMismatch(t *testing.T) {
	narrow := RawStateResponse{State: "02", Rows: [][]*string{
		cells("DP02_0001E", "GEO_ID", "NAME", "state", "county", "tract"),
	}}
	renamed := stateResponse("02", 1)
	renamed.Rows[0] = cells("DP02_0001E", "DP02_0003E", "GEO_ID", "NAME", "state", "county", "tract")
	short := stateResponse("02", 1)
	short.Rows[1] = short.Rows[1][:6]

	tests := []struct {
		name string
		resp RawStateResponse
	}{
		{"column count", narrow},
		{"column codes", renamed},
		{"row width", short},
		{"empty", RawStateResponse{State: "02"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := AssembleWide(context.Background(),
				[]RawStateResponse{stateResponse("01", 1), tt.resp},
				NewLabelResolver(newFakeLabels()), 2020)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrSchemaMismatch)
			assert.Contains(t, err.Error(), "state 02")
		})
	}
}

func TestAssembleWide_NoResponses(t *testing.T) {
	_, err := AssembleWide(context.Background(), nil, NewLabelResolver(newFakeLabels()), 2020)
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestAssembleWide_LabelFailure(t *testing.T) {
	f := newFakeLabels()
	f.labels = map[string]string{"DP02_0001E": "Estimate!!a!!b"}

	w, err := AssembleWide(context.Background(),
		[]RawStateResponse{stateResponse("01", 1)}, NewLabelResolver(f), 2020)
	assert.ErrorIs(t, err, ErrLabelResolution)
	assert.Nil(t, w)
}

func TestAssembleWide_DuplicateLabels(t *testing.T) {
	f := newFakeLabels()
	f.labels = map[string]string{"DP02_0001E": "Estimate!!a!!b", "DP02_0002E": "Estimate!!a!!b"}

	w, err := AssembleWide(context.Background(),
		[]RawStateResponse{stateResponse("01", 1)}, NewLabelResolver(f), 2020)
	require.NoError(t, err)
	assert.Equal(t, []string{"Estimate!!a!!b"}, w.Catalog.DuplicateLabels())
}
