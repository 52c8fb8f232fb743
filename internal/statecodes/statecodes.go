// Package statecodes loads, filters, and saves the state code lookup table
// used to name the states of a tract run.
package statecodes

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/acs-tracts/internal/acs"
)

// DefaultPath is where the states command writes the lookup table.
const DefaultPath = "state_codes/census_state_codes.csv"

// State is one row of the lookup table.
type State struct {
	Name string `csv:"name" json:"name"`
	Code string `csv:"state_code" json:"state_code"`
}

// headerAliases maps accepted header spellings to the csv tags of State.
var headerAliases = map[string]string{
	"name":       "name",
	"state_name": "name",
	"statename":  "name",
	"state_code": "state_code",
	"state":      "state_code",
	"statefp":    "state_code",
	"fips":       "state_code",
}

// Table is an immutable state code -> name lookup.
type Table struct {
	states []State
	byCode map[string]string
}

// New builds a table from states. Codes are normalized to two digits;
// blank or repeated codes are rejected.
func New(states []State) (*Table, error) {
	t := &Table{
		states: make([]State, 0, len(states)),
		byCode: make(map[string]string, len(states)),
	}
	for i, s := range states {
		code := NormalizeFIPS(s.Code)
		if code == "" {
			return nil, eris.Errorf("statecodes: row %d has no state code", i+1)
		}
		if _, dup := t.byCode[code]; dup {
			return nil, eris.Errorf("statecodes: duplicate state code %s", code)
		}
		name := strings.TrimSpace(s.Name)
		t.byCode[code] = name
		t.states = append(t.states, State{Name: name, Code: code})
	}
	slices.SortFunc(t.states, func(a, b State) int { return strings.Compare(a.Code, b.Code) })
	return t, nil
}

// Load reads a lookup table from a CSV file.
func Load(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "statecodes: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	t, err := Read(f)
	if err != nil {
		return nil, eris.Wrapf(err, "statecodes: read %s", path)
	}
	zap.L().Debug("loaded state codes", zap.String("path", path), zap.Int("states", t.Len()))
	return t, nil
}

// Read parses a lookup table from CSV. The header may name the code column
// state_code, state, statefp, or fips and the name column name or
// state_name, in any case; other columns are ignored.
func Read(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	raw, err := cr.Read()
	if err == io.EOF {
		return nil, eris.New("statecodes: empty file")
	}
	if err != nil {
		return nil, eris.Wrap(err, "statecodes: read header")
	}

	header := make([]string, len(raw))
	var hasCode, hasName bool
	for i, h := range raw {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if alias, ok := headerAliases[key]; ok {
			key = alias
		}
		header[i] = key
		hasCode = hasCode || key == "state_code"
		hasName = hasName || key == "name"
	}
	if !hasCode || !hasName {
		return nil, eris.Errorf("statecodes: header %v needs a state code and a name column", raw)
	}

	dec, err := csvutil.NewDecoder(cr, header...)
	if err != nil {
		return nil, eris.Wrap(err, "statecodes: decoder")
	}

	var states []State
	for {
		var s State
		if err := dec.Decode(&s); err == io.EOF {
			break
		} else if err != nil {
			return nil, eris.Wrap(err, "statecodes: decode")
		}
		states = append(states, s)
	}
	return New(states)
}

// FromAPIRows builds a table from the census state names response, whose
// header row names the NAME and state columns.
func FromAPIRows(rows [][]*string) (*Table, error) {
	if len(rows) < 2 {
		return nil, eris.Errorf("statecodes: response has %d rows", len(rows))
	}

	nameIdx, codeIdx := -1, -1
	for i, c := range rows[0] {
		if c == nil {
			continue
		}
		switch *c {
		case "NAME":
			nameIdx = i
		case "state":
			codeIdx = i
		}
	}
	if nameIdx < 0 || codeIdx < 0 {
		return nil, eris.New("statecodes: response lacks NAME or state column")
	}

	states := make([]State, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if len(row) <= max(nameIdx, codeIdx) || row[codeIdx] == nil {
			return nil, eris.Errorf("statecodes: response row %d is incomplete", i+1)
		}
		var name string
		if row[nameIdx] != nil {
			name = *row[nameIdx]
		}
		states = append(states, State{Name: name, Code: *row[codeIdx]})
	}
	return New(states)
}

// Len returns the number of states.
func (t *Table) Len() int { return len(t.states) }

// States returns the rows sorted by code.
func (t *Table) States() []State { return slices.Clone(t.states) }

// Codes returns every code in ascending order.
func (t *Table) Codes() []string {
	out := make([]string, len(t.states))
	for i, s := range t.states {
		out[i] = s.Code
	}
	return out
}

// Names returns a copy of the code -> name map.
func (t *Table) Names() map[string]string {
	out := make(map[string]string, len(t.byCode))
	for k, v := range t.byCode {
		out[k] = v
	}
	return out
}

// Name returns the name of code.
func (t *Table) Name(code string) (string, bool) {
	n, ok := t.byCode[NormalizeFIPS(code)]
	return n, ok
}

// Filter normalizes codes and checks each is known. An empty selection
// means every state in the table.
func (t *Table) Filter(codes []string) ([]string, error) {
	if len(codes) == 0 {
		return t.Codes(), nil
	}
	out := make([]string, 0, len(codes))
	seen := make(map[string]bool, len(codes))
	for _, c := range codes {
		code := NormalizeFIPS(c)
		if _, ok := t.byCode[code]; !ok {
			return nil, eris.Wrapf(acs.ErrUnknownState, "%q", c)
		}
		if seen[code] {
			continue
		}
		seen[code] = true
		out = append(out, code)
	}
	return out, nil
}

// Write encodes the table as CSV with a name,state_code header.
func (t *Table) Write(w io.Writer) error {
	cw := csv.NewWriter(w)
	enc := csvutil.NewEncoder(cw)
	for _, s := range t.states {
		if err := enc.Encode(s); err != nil {
			return eris.Wrap(err, "statecodes: encode")
		}
	}
	if len(t.states) == 0 {
		if err := enc.EncodeHeader(State{}); err != nil {
			return eris.Wrap(err, "statecodes: encode header")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "statecodes: flush")
}

// Save writes the table to path, creating parent directories.
func (t *Table) Save(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return eris.Wrapf(err, "statecodes: create %s", dir)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "statecodes: create %s", path)
	}
	if err := t.Write(f); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return eris.Wrapf(err, "statecodes: close %s", path)
	}
	zap.L().Info("saved state codes", zap.String("path", path), zap.Int("states", t.Len()))
	return nil
}

// NormalizeFIPS trims a state FIPS code and zero-pads it to two digits.
func NormalizeFIPS(code string) string {
	code = strings.TrimSpace(code)
	if len(code) == 1 {
		return "0" + code
	}
	return code
}
