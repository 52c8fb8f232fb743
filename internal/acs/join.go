package acs

import (
	"strconv"

	"go.uber.org/zap"
)

// Columns is the fixed column order of the final table.
var Columns = []string{
	"geo_id", "state_code", "state_name", "county", "tract", "tract_name",
	"variable_code", "variable_name", "value",
	"measurement", "demographic_target", "demographic",
}

// FinalRecord is one row of the output table.
type FinalRecord struct {
	GeoID             string  `csv:"geo_id" parquet:"geo_id"`
	StateCode         string  `csv:"state_code" parquet:"state_code"`
	StateName         string  `csv:"state_name" parquet:"state_name"`
	County            string  `csv:"county" parquet:"county"`
	Tract             string  `csv:"tract" parquet:"tract"`
	TractName         string  `csv:"tract_name" parquet:"tract_name"`
	VariableCode      string  `csv:"variable_code" parquet:"variable_code"`
	VariableName      string  `csv:"variable_name" parquet:"variable_name"`
	Value             float64 `csv:"value" parquet:"value"`
	Measurement       string  `csv:"measurement" parquet:"measurement"`
	DemographicTarget string  `csv:"demographic_target" parquet:"demographic_target"`
	Demographic       string  `csv:"demographic" parquet:"demographic"`
}

// Values returns the record's fields in Columns order.
func (r FinalRecord) Values() []any {
	return []any{
		r.GeoID, r.StateCode, r.StateName, r.County, r.Tract, r.TractName,
		r.VariableCode, r.VariableName, r.Value,
		r.Measurement, r.DemographicTarget, r.Demographic,
	}
}

// Strings returns the record's fields in Columns order with the value
// formatted without exponent.
func (r FinalRecord) Strings() []string {
	return []string{
		r.GeoID, r.StateCode, r.StateName, r.County, r.Tract, r.TractName,
		r.VariableCode, r.VariableName, FormatValue(r.Value),
		r.Measurement, r.DemographicTarget, r.Demographic,
	}
}

// FormatValue renders a value the way it appears in text outputs.
func FormatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// JoinStats counts rows dropped by Join. Unmatched rows mean an upstream
// schema or ordering inconsistency.
type JoinStats struct {
	Matched          int
	MissingGeography int
	MissingState     int
	UnmatchedGeoIDs  []string
	UnmatchedStates  []string
}

// Dropped returns the number of rows excluded from the output.
func (s JoinStats) Dropped() int { return s.MissingGeography + s.MissingState }

// Join attaches geography (by geo_id) and state names (by state_code) to
// each classified row. Rows without a match are dropped and counted.
func Join(classified []ClassifiedVariable, geos []GeographyRecord, states map[string]string) ([]FinalRecord, JoinStats) {
	byGeo := make(map[string]GeographyRecord, len(geos))
	for _, g := range geos {
		byGeo[g.GeoID] = g
	}

	var stats JoinStats
	badGeo := make(map[string]bool)
	badState := make(map[string]bool)
	out := make([]FinalRecord, 0, len(classified))

	for _, c := range classified {
		g, ok := byGeo[c.GeoID]
		if !ok {
			stats.MissingGeography++
			if !badGeo[c.GeoID] {
				badGeo[c.GeoID] = true
				stats.UnmatchedGeoIDs = append(stats.UnmatchedGeoIDs, c.GeoID)
			}
			continue
		}
		stateName, ok := states[g.StateCode]
		if !ok {
			stats.MissingState++
			if !badState[g.StateCode] {
				badState[g.StateCode] = true
				stats.UnmatchedStates = append(stats.UnmatchedStates, g.StateCode)
			}
			continue
		}

		out = append(out, FinalRecord{
			GeoID:             c.GeoID,
			StateCode:         g.StateCode,
			StateName:         stateName,
			County:            g.County,
			Tract:             g.Tract,
			TractName:         g.TractName,
			VariableCode:      c.VariableCode,
			VariableName:      c.VariableName,
			Value:             c.Value,
			Measurement:       c.Measurement,
			DemographicTarget: c.DemographicTarget,
			Demographic:       c.Demographic,
		})
	}
	stats.Matched = len(out)

	if stats.Dropped() > 0 {
		zap.L().Warn("dropped rows without a join match",
			zap.Error(ErrJoinMismatch),
			zap.Int("missing_geography", stats.MissingGeography),
			zap.Int("missing_state", stats.MissingState),
			zap.Strings("geo_ids", stats.UnmatchedGeoIDs),
			zap.Strings("state_codes", stats.UnmatchedStates),
		)
	}

	return out, stats
}
