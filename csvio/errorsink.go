package csvio

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/copperline-io/ferry/types"
)

// Error sink columns appended after the original source columns.
const (
	errorReasonColumn = "error_reason"
	failedAtColumn    = "failed_at"
	operationColumn   = "source_operation"
)

// FileSink durably records rows that ultimately failed. One file per run,
// created on first write inside the configured error directory, never
// reused across runs. Writes are flushed per record so a crash loses at
// most the in-flight row.
type FileSink struct {
	dir       string
	columns   []string
	delimiter rune
	path      string

	f     *os.File
	w     *csv.Writer
	count int
}

// NewFileSink creates a sink for one run. sourceName is the base name of
// the input file, used in the error file name alongside the run identity.
func NewFileSink(dir, sourceName string, columns []string, delimiter rune, meta *types.RunMeta) *FileSink {
	base := strings.TrimSuffix(filepath.Base(sourceName), filepath.Ext(sourceName))
	if base == "" || base == "." {
		base = "run"
	}
	shortID := meta.RunID
	if len(shortID) > 8 {
		shortID = shortID[:8]
	}
	name := fmt.Sprintf("failed_%s_%s_%s.csv", base, meta.StartedAt.UTC().Format("20060102_150405"), shortID)

	if delimiter == 0 {
		delimiter = ','
	}
	return &FileSink{
		dir:       dir,
		columns:   append([]string(nil), columns...),
		delimiter: delimiter,
		path:      filepath.Join(dir, name),
	}
}

// Record appends one failed row with its reason and operation. The write
// is fatal on failure: losing failure records silently is unacceptable,
// so callers abort the run on error.
func (s *FileSink) Record(row types.Row, reason string, op types.Operation) error {
	if s.w == nil {
		if err := s.open(); err != nil {
			return err
		}
	}

	line := make([]string, 0, len(s.columns)+3)
	for _, col := range s.columns {
		line = append(line, row[col])
	}
	line = append(line, reason, time.Now().UTC().Format(time.RFC3339), string(op))

	if err := s.w.Write(line); err != nil {
		return fmt.Errorf("error sink write: %w", err)
	}
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		return fmt.Errorf("error sink flush: %w", err)
	}
	s.count++
	return nil
}

// open creates the error directory and file and writes the header.
func (s *FileSink) open() error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create error directory %s: %w", s.dir, err)
	}

	// O_EXCL guards the per-run uniqueness of the file name.
	f, err := os.OpenFile(s.path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("create error file %s: %w", s.path, err)
	}

	w := csv.NewWriter(f)
	w.Comma = s.delimiter

	header := append(append([]string(nil), s.columns...), errorReasonColumn, failedAtColumn, operationColumn)
	if err := w.Write(header); err != nil {
		_ = f.Close()
		return fmt.Errorf("error sink header: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return fmt.Errorf("error sink header: %w", err)
	}

	s.f = f
	s.w = w
	return nil
}

// Path returns the error file path, empty until the first record is written.
func (s *FileSink) Path() string {
	if s.w == nil {
		return ""
	}
	return s.path
}

// Count returns the number of records written.
func (s *FileSink) Count() int { return s.count }

// Close flushes and closes the file, if one was created. Safe to call
// more than once.
func (s *FileSink) Close() error {
	if s.f == nil {
		return nil
	}
	s.w.Flush()
	flushErr := s.w.Error()
	closeErr := s.f.Close()
	s.f = nil
	if flushErr != nil {
		return flushErr
	}
	return closeErr
}
