package acs

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Reserved geography fields appended to every profile response.
const (
	FieldState  = "state"
	FieldCounty = "county"
	FieldTract  = "tract"
	FieldGeoID  = "GEO_ID"
	FieldName   = "NAME"
)

// ReservedFields lists the geography fields that occupy the last columns.
var ReservedFields = []string{FieldState, FieldCounty, FieldTract, FieldGeoID, FieldName}

// Column describes one column of a wide table.
type Column struct {
	Code     string // variable code or reserved field name as sent by the API
	Label    string // resolved label; equals Code for reserved columns
	Reserved bool
}

// Schema is the ordered column list of a wide table. It is carried next to
// the row data so no stage has to read structure out of data rows.
type Schema struct {
	columns []Column
	index   map[string]int
}

// NewSchema builds a schema from a header row of codes. The last
// len(ReservedFields) codes must be exactly the reserved geography fields,
// in any order, and no code may repeat.
func NewSchema(codes []string) (Schema, error) {
	n := len(codes)
	if n <= len(ReservedFields) {
		return Schema{}, eris.Wrapf(ErrSchemaMismatch,
			"header has %d columns, need more than %d", n, len(ReservedFields))
	}

	reserved := make(map[string]bool, len(ReservedFields))
	for _, f := range ReservedFields {
		reserved[f] = true
	}

	s := Schema{columns: make([]Column, n), index: make(map[string]int, n)}
	tail := n - len(ReservedFields)
	for i, code := range codes {
		if _, dup := s.index[code]; dup {
			return Schema{}, eris.Wrapf(ErrDuplicateCode, "code %q at column %d", code, i)
		}
		s.index[code] = i

		if i >= tail {
			if !reserved[code] {
				return Schema{}, eris.Wrapf(ErrSchemaMismatch,
					"column %d is %q, want one of %s", i, code, strings.Join(ReservedFields, ", "))
			}
			s.columns[i] = Column{Code: code, Label: code, Reserved: true}
			continue
		}
		if reserved[code] {
			return Schema{}, eris.Wrapf(ErrSchemaMismatch, "reserved field %q at variable column %d", code, i)
		}
		s.columns[i] = Column{Code: code}
	}
	return s, nil
}

// Len returns the number of columns.
func (s Schema) Len() int { return len(s.columns) }

// Columns returns a copy of the ordered columns.
func (s Schema) Columns() []Column {
	out := make([]Column, len(s.columns))
	copy(out, s.columns)
	return out
}

// Codes returns every column code in order.
func (s Schema) Codes() []string {
	out := make([]string, len(s.columns))
	for i, c := range s.columns {
		out[i] = c.Code
	}
	return out
}

// VariableCodes returns the non-reserved codes in column order.
func (s Schema) VariableCodes() []string {
	out := make([]string, 0, len(s.columns)-len(ReservedFields))
	for _, c := range s.columns {
		if !c.Reserved {
			out = append(out, c.Code)
		}
	}
	return out
}

// Index returns the position of a code, or -1.
func (s Schema) Index(code string) int {
	if i, ok := s.index[code]; ok {
		return i
	}
	return -1
}

// Equal reports whether two schemas have the same codes in the same order.
func (s Schema) Equal(o Schema) bool {
	if len(s.columns) != len(o.columns) {
		return false
	}
	for i := range s.columns {
		if s.columns[i].Code != o.columns[i].Code {
			return false
		}
	}
	return true
}

// WithLabels returns a copy of s whose variable columns carry the labels
// from cat. Every variable code must be present in cat.
func (s Schema) WithLabels(cat *VariableCatalog) (Schema, error) {
	out := Schema{columns: s.Columns(), index: s.index}
	for i, c := range out.columns {
		if c.Reserved {
			continue
		}
		label, ok := cat.Label(c.Code)
		if !ok {
			return Schema{}, eris.Wrapf(ErrLabelResolution, "no label for %s", c.Code)
		}
		out.columns[i].Label = label
	}
	return out, nil
}
