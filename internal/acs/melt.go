package acs

import (
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// VariableValue is one (tract, variable) cell of the long table.
type VariableValue struct {
	GeoID        string
	VariableName string
	VariableCode string
	Value        float64
}

// MeltStats counts what Melt saw.
type MeltStats struct {
	Rows       int // data rows melted
	Variables  int // variable columns per row
	Missing    int // null or empty cells coerced to 0
	NonNumeric int // non-numeric cells coerced to 0
	Sentinel   int // leaked header rows skipped
}

// Melt unpivots the variable columns of w into one VariableValue per
// (row, variable), keyed by GEO_ID. Output is row-major: every variable of
// the first tract, then the second, and so on. Absent values become 0.
func Melt(w *WideTable) ([]VariableValue, MeltStats, error) {
	geoIdx := w.Schema.Index(FieldGeoID)
	if geoIdx < 0 {
		return nil, MeltStats{}, eris.Wrap(ErrSchemaMismatch, "no GEO_ID column")
	}

	type varCol struct {
		idx   int
		code  string
		label string
	}
	var cols []varCol
	for i, c := range w.Schema.columns {
		if !c.Reserved {
			cols = append(cols, varCol{idx: i, code: c.Code, label: c.Label})
		}
	}

	stats := MeltStats{Variables: len(cols)}
	out := make([]VariableValue, 0, len(w.Rows)*len(cols))

	for i, row := range w.Rows {
		geoID := row[geoIdx]
		if geoID == nil || *geoID == "" {
			return nil, stats, eris.Wrapf(ErrMissingGeoID, "row %d", i)
		}
		if *geoID == geoIDSentinel {
			stats.Sentinel++
			continue
		}
		stats.Rows++

		for _, c := range cols {
			v, ok, present := parseValue(row[c.idx])
			switch {
			case !present:
				stats.Missing++
			case !ok:
				stats.NonNumeric++
			}
			out = append(out, VariableValue{
				GeoID:        *geoID,
				VariableName: c.label,
				VariableCode: c.code,
				Value:        v,
			})
		}
	}

	if stats.NonNumeric > 0 {
		zap.L().Warn("non-numeric values coerced to zero", zap.Int("cells", stats.NonNumeric))
	}
	zap.L().Info("melted wide table",
		zap.Int("rows", stats.Rows),
		zap.Int("variables", stats.Variables),
		zap.Int("records", len(out)),
		zap.Int("missing", stats.Missing),
	)

	return out, stats, nil
}

// parseValue returns the numeric value of a cell. present is false for null
// or blank cells; ok is false when a present cell is not a number.
func parseValue(cell *string) (v float64, ok, present bool) {
	if cell == nil {
		return 0, false, false
	}
	s := strings.TrimSpace(*cell)
	if s == "" {
		return 0, false, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false, true
	}
	return f, true, true
}
