package export

import (
	"context"
	"encoding/csv"
	"io"

	"github.com/rotisserie/eris"

	"github.com/sells-group/acs-tracts/internal/acs"
)

// flushEvery bounds how many rows are buffered before checking ctx.
const flushEvery = 1000

// WriteCSV writes records under a header of acs.Columns. Values are written
// in plain decimal notation.
func WriteCSV(ctx context.Context, w io.Writer, records []acs.FinalRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(acs.Columns); err != nil {
		return eris.Wrap(err, "export: csv header")
	}
	for i, r := range records {
		if err := cw.Write(r.Strings()); err != nil {
			return eris.Wrapf(err, "export: csv row %d", i)
		}
		if (i+1)%flushEvery == 0 {
			cw.Flush()
			if err := ctx.Err(); err != nil {
				return eris.Wrap(err, "export: csv")
			}
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "export: csv flush")
}
