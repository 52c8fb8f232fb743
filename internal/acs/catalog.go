package acs

import "github.com/rotisserie/eris"

// VariableCatalog is the ordered code -> label mapping for a profile's
// variable columns. It is built once per run and validated before use.
type VariableCatalog struct {
	codes   []string
	labels  []string
	byCode  map[string]int
	byLabel map[string]string
	dupes   []string
}

// NewVariableCatalog pairs codes with labels by position. The slices must
// have equal length and codes must be unique.
func NewVariableCatalog(codes, labels []string) (*VariableCatalog, error) {
	if len(codes) != len(labels) {
		return nil, eris.Wrapf(ErrLabelResolution, "%d codes but %d labels", len(codes), len(labels))
	}

	c := &VariableCatalog{
		codes:   append([]string(nil), codes...),
		labels:  append([]string(nil), labels...),
		byCode:  make(map[string]int, len(codes)),
		byLabel: make(map[string]string, len(codes)),
	}
	for i, code := range codes {
		if _, dup := c.byCode[code]; dup {
			return nil, eris.Wrapf(ErrDuplicateCode, "code %q", code)
		}
		c.byCode[code] = i

		label := labels[i]
		if _, seen := c.byLabel[label]; seen {
			c.dupes = append(c.dupes, label)
			continue
		}
		c.byLabel[label] = code
	}
	return c, nil
}

// Len returns the number of variables.
func (c *VariableCatalog) Len() int { return len(c.codes) }

// Codes returns the codes in column order.
func (c *VariableCatalog) Codes() []string { return append([]string(nil), c.codes...) }

// Labels returns the labels in column order.
func (c *VariableCatalog) Labels() []string { return append([]string(nil), c.labels...) }

// Label returns the label for code.
func (c *VariableCatalog) Label(code string) (string, bool) {
	i, ok := c.byCode[code]
	if !ok {
		return "", false
	}
	return c.labels[i], true
}

// Code returns the first code carrying label.
func (c *VariableCatalog) Code(label string) (string, bool) {
	code, ok := c.byLabel[label]
	return code, ok
}

// DuplicateLabels lists labels shared by more than one code. Records keep
// the code of their own column, so duplicates only make Code ambiguous.
func (c *VariableCatalog) DuplicateLabels() []string {
	return append([]string(nil), c.dupes...)
}
