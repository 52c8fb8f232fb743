package acs

import (
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// geoIDSentinel is the literal header value that marks a leaked header row.
const geoIDSentinel = FieldGeoID

// GeographyRecord describes one tract.
type GeographyRecord struct {
	GeoID     string
	TractName string
	StateCode string
	County    string
	Tract     string
}

// ExtractGeography returns one record per tract from the reserved columns of
// w, in row order. Rows whose GEO_ID equals the literal "GEO_ID" are leaked
// header rows and are skipped.
func ExtractGeography(w *WideTable) ([]GeographyRecord, error) {
	// Field names come from the schema, lowercased: geo_id, name, state, county, tract.
	lower := cases.Lower(language.Und)
	pos := make(map[string]int, len(ReservedFields))
	for i, c := range w.Schema.columns {
		if c.Reserved {
			pos[lower.String(c.Code)] = i
		}
	}

	geoIdx, nameIdx := pos["geo_id"], pos["name"]
	stateIdx, countyIdx, tractIdx := pos["state"], pos["county"], pos["tract"]

	out := make([]GeographyRecord, 0, len(w.Rows))
	seen := make(map[string]int, len(w.Rows))
	skipped := 0

	for i, row := range w.Rows {
		geoID := row[geoIdx]
		if geoID == nil || *geoID == "" {
			return nil, eris.Wrapf(ErrMissingGeoID, "row %d", i)
		}
		if *geoID == geoIDSentinel {
			skipped++
			continue
		}
		if prev, dup := seen[*geoID]; dup {
			return nil, eris.Wrapf(ErrDuplicateGeoID, "%s at rows %d and %d", *geoID, prev, i)
		}
		seen[*geoID] = i

		out = append(out, GeographyRecord{
			GeoID:     *geoID,
			TractName: deref(row[nameIdx]),
			StateCode: deref(row[stateIdx]),
			County:    deref(row[countyIdx]),
			Tract:     deref(row[tractIdx]),
		})
	}

	if skipped > 0 {
		zap.L().Warn("skipped header rows inside geography data", zap.Int("rows", skipped))
	}
	zap.L().Info("extracted geography", zap.Int("tracts", len(out)))

	return out, nil
}
