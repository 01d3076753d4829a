package csvio

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/copperline-io/ferry/types"
)

// ExportWriter streams query results to a delimited file. The header is
// written once from the first page's field order; rows follow in arrival
// order. Partial output is left in place on failure.
type ExportWriter struct {
	path   string
	f      *os.File
	w      *csv.Writer
	fields []string
	count  int
}

// NewExportWriter creates the output file, making parent directories as
// needed.
func NewExportWriter(path string, delimiter rune) (*ExportWriter, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create output directory %s: %w", dir, err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create output file %s: %w", path, err)
	}

	w := csv.NewWriter(f)
	if delimiter != 0 {
		w.Comma = delimiter
	}
	return &ExportWriter{path: path, f: f, w: w}, nil
}

// WriteHeader writes the column header. Must be called once, before any row.
func (e *ExportWriter) WriteHeader(fields []string) error {
	if e.fields != nil {
		return fmt.Errorf("header already written for %s", e.path)
	}
	e.fields = append([]string(nil), fields...)
	if err := e.w.Write(e.fields); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	return nil
}

// WriteRow writes one row using the header's field order.
func (e *ExportWriter) WriteRow(row types.Row) error {
	if e.fields == nil {
		return fmt.Errorf("header not written for %s", e.path)
	}
	line := make([]string, len(e.fields))
	for i, f := range e.fields {
		line[i] = row[f]
	}
	if err := e.w.Write(line); err != nil {
		return fmt.Errorf("write row: %w", err)
	}
	e.count++
	return nil
}

// Count returns the number of data rows written.
func (e *ExportWriter) Count() int { return e.count }

// Close flushes and closes the output file. Safe to call more than once.
func (e *ExportWriter) Close() error {
	if e.f == nil {
		return nil
	}
	e.w.Flush()
	flushErr := e.w.Error()
	closeErr := e.f.Close()
	e.f = nil
	if flushErr != nil {
		return flushErr
	}
	return closeErr
}
