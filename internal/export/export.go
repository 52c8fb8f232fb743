// Package export writes the records of a finished run to files or a store.
package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/acs-tracts/internal/acs"
	"github.com/sells-group/acs-tracts/internal/store"
)

// Output formats.
const (
	FormatCSV      = "csv"
	FormatXLSX     = "xlsx"
	FormatParquet  = "parquet"
	FormatSQLite   = "sqlite"
	FormatPostgres = "postgres"
)

// FileFormats are the formats written to a file under the output directory.
var FileFormats = []string{FormatCSV, FormatXLSX, FormatParquet}

// Exporter writes a run's records somewhere and reports where.
type Exporter interface {
	Export(ctx context.Context, res *acs.Result) (string, error)
}

// FileName returns the output file name for a year and file format.
func FileName(year int, format string) string {
	return fmt.Sprintf("census_tract_%d.%s", year, format)
}

// FileExporter writes one file per run into Dir.
type FileExporter struct {
	Dir    string
	Format string
}

// NewFileExporter validates format and returns an exporter writing into dir.
func NewFileExporter(dir, format string) (*FileExporter, error) {
	if !slices.Contains(FileFormats, format) {
		return nil, eris.Errorf("export: unsupported file format %q", format)
	}
	return &FileExporter{Dir: dir, Format: format}, nil
}

// Export writes res to Dir/census_tract_<year>.<format>. The file is written
// to a temporary name first and renamed into place on success.
func (e *FileExporter) Export(ctx context.Context, res *acs.Result) (string, error) {
	if err := os.MkdirAll(e.Dir, 0o755); err != nil {
		return "", eris.Wrapf(err, "export: create %s", e.Dir)
	}
	path := filepath.Join(e.Dir, FileName(res.Year, e.Format))

	tmp, err := os.CreateTemp(e.Dir, ".census_tract_*")
	if err != nil {
		return "", eris.Wrap(err, "export: create temp file")
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	switch e.Format {
	case FormatCSV:
		err = WriteCSV(ctx, tmp, res.Records)
	case FormatXLSX:
		err = WriteXLSX(tmp, res)
	case FormatParquet:
		err = WriteParquet(tmp, res)
	}
	if err != nil {
		_ = tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", eris.Wrap(err, "export: close temp file")
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", eris.Wrapf(err, "export: rename to %s", path)
	}

	zap.L().Info("wrote output file",
		zap.String("path", path),
		zap.String("format", e.Format),
		zap.Int("records", len(res.Records)),
	)
	return path, nil
}

// StoreExporter saves runs through a store.Store.
type StoreExporter struct {
	Store store.Store
	Name  string
}

// Export saves the run summary and its records.
func (e *StoreExporter) Export(ctx context.Context, res *acs.Result) (string, error) {
	run := store.RunFromResult(res)
	if err := e.Store.SaveRun(ctx, run, res.Records); err != nil {
		return "", eris.Wrap(err, "export: save run")
	}
	zap.L().Info("saved run to store",
		zap.String("store", e.Name),
		zap.String("run_id", run.ID),
		zap.Int("records", run.Records),
	)
	return fmt.Sprintf("%s run %s", e.Name, run.ID), nil
}
