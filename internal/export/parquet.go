package export

import (
	"io"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/rotisserie/eris"

	"github.com/sells-group/acs-tracts/internal/acs"
)

// rowGroupSize is the number of records per parquet row group.
const rowGroupSize = 50000

// WriteParquet writes records with the acs.FinalRecord schema. Run metadata
// is stored as key/value metadata on the file.
func WriteParquet(w io.Writer, res *acs.Result) error {
	pw := parquet.NewGenericWriter[acs.FinalRecord](w,
		parquet.KeyValueMetadata("run_id", res.RunID.String()),
		parquet.KeyValueMetadata("profile", res.Profile),
		parquet.KeyValueMetadata("started_at", res.StartedAt.UTC().Format(time.RFC3339)),
	)

	for start := 0; start < len(res.Records); start += rowGroupSize {
		end := min(start+rowGroupSize, len(res.Records))
		if _, err := pw.Write(res.Records[start:end]); err != nil {
			_ = pw.Close()
			return eris.Wrap(err, "export: parquet write")
		}
		if err := pw.Flush(); err != nil {
			_ = pw.Close()
			return eris.Wrap(err, "export: parquet flush")
		}
	}
	return eris.Wrap(pw.Close(), "export: parquet close")
}
