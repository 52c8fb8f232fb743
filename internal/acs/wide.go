package acs

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// RawStateResponse is the decoded profile payload for one state: the first
// row holds variable codes, the rest hold values. Null cells are nil.
type RawStateResponse struct {
	State string
	Rows  [][]*string
}

// WideTable holds every tract of every requested state, one column per
// variable plus the reserved geography fields. Rows contain data only; the
// column structure lives in Schema.
type WideTable struct {
	Schema  Schema
	Catalog *VariableCatalog
	Rows    [][]*string
}

// NumRows returns the number of data rows.
func (w *WideTable) NumRows() int { return len(w.Rows) }

// AssembleWide stacks the state responses in order, validates that they share
// one header, and labels the variable columns through labels. The reserved
// geography columns keep their API names.
func AssembleWide(ctx context.Context, responses []RawStateResponse, labels LabelSource, year int) (*WideTable, error) {
	if len(responses) == 0 {
		return nil, eris.Wrap(ErrInvalidRequest, "no state responses")
	}

	first := responses[0]
	if len(first.Rows) == 0 {
		return nil, eris.Wrapf(ErrSchemaMismatch, "state %s: empty response", first.State)
	}
	schema, err := NewSchema(cellStrings(first.Rows[0]))
	if err != nil {
		return nil, eris.Wrapf(err, "state %s", first.State)
	}

	total := 0
	for _, resp := range responses {
		total += max(len(resp.Rows)-1, 0)
	}
	rows := make([][]*string, 0, total)

	for _, resp := range responses {
		if len(resp.Rows) == 0 {
			return nil, eris.Wrapf(ErrSchemaMismatch, "state %s: empty response", resp.State)
		}
		header := resp.Rows[0]
		if len(header) != schema.Len() {
			return nil, eris.Wrapf(ErrSchemaMismatch, "state %s: %d columns, want %d",
				resp.State, len(header), schema.Len())
		}
		for i, cell := range header {
			if cell == nil || *cell != schema.columns[i].Code {
				return nil, eris.Wrapf(ErrSchemaMismatch, "state %s: column %d is %s, want %s",
					resp.State, i, deref(cell), schema.columns[i].Code)
			}
		}
		for j, row := range resp.Rows[1:] {
			if len(row) != schema.Len() {
				return nil, eris.Wrapf(ErrSchemaMismatch, "state %s: row %d has %d cells, want %d",
					resp.State, j+1, len(row), schema.Len())
			}
			rows = append(rows, row)
		}
	}

	codes := schema.VariableCodes()
	resolved, err := labels.Resolve(ctx, codes, year)
	if err != nil {
		return nil, err
	}
	catalog, err := NewVariableCatalog(codes, resolved)
	if err != nil {
		return nil, err
	}
	if dupes := catalog.DuplicateLabels(); len(dupes) > 0 {
		zap.L().Warn("variable labels shared by several codes", zap.Strings("labels", dupes))
	}
	labeled, err := schema.WithLabels(catalog)
	if err != nil {
		return nil, err
	}

	zap.L().Info("assembled wide table",
		zap.Int("states", len(responses)),
		zap.Int("rows", len(rows)),
		zap.Int("columns", labeled.Len()),
	)

	return &WideTable{Schema: labeled, Catalog: catalog, Rows: rows}, nil
}

func cellStrings(row []*string) []string {
	out := make([]string, len(row))
	for i, c := range row {
		out[i] = deref(c)
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
