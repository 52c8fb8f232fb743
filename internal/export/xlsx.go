package export

import (
	"fmt"
	"io"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/acs-tracts/internal/acs"
)

// valueColumn is the index of the numeric value in acs.Columns.
const valueColumn = 8

// WriteXLSX writes a single-sheet workbook: a header row of acs.Columns and
// one row per record, with the value stored as a number.
func WriteXLSX(w io.Writer, res *acs.Result) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(fmt.Sprintf("%s_%d", res.Profile, res.Year))
	if err != nil {
		return eris.Wrap(err, "export: xlsx add sheet")
	}

	header := sheet.AddRow()
	for _, col := range acs.Columns {
		header.AddCell().SetString(col)
	}

	for _, r := range res.Records {
		row := sheet.AddRow()
		for i, v := range r.Strings() {
			if i == valueColumn {
				row.AddCell().SetFloat(r.Value)
				continue
			}
			row.AddCell().SetString(v)
		}
	}

	return eris.Wrap(f.Write(w), "export: xlsx write")
}
