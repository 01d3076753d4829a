package csvio

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/copperline-io/ferry/types"
)

// Success file columns appended after the original source columns.
const (
	resultColumn   = "result"
	recordIDColumn = "record_id"
)

// SuccessFile records rows that were accepted by the store, together
// with the identifier the store assigned or matched. One file per run,
// created on first write, same naming scheme as the error sink so the
// two artifacts of a run sit side by side.
type SuccessFile struct {
	dir       string
	columns   []string
	delimiter rune
	path      string

	f     *os.File
	w     *csv.Writer
	count int
}

// NewSuccessFile creates a success writer for one run.
func NewSuccessFile(dir, sourceName string, columns []string, delimiter rune, meta *types.RunMeta) *SuccessFile {
	base := strings.TrimSuffix(filepath.Base(sourceName), filepath.Ext(sourceName))
	if base == "" || base == "." {
		base = "run"
	}
	shortID := meta.RunID
	if len(shortID) > 8 {
		shortID = shortID[:8]
	}
	name := fmt.Sprintf("succeeded_%s_%s_%s.csv", base, meta.StartedAt.UTC().Format("20060102_150405"), shortID)

	if delimiter == 0 {
		delimiter = ','
	}
	return &SuccessFile{
		dir:       dir,
		columns:   append([]string(nil), columns...),
		delimiter: delimiter,
		path:      filepath.Join(dir, name),
	}
}

// Record appends one succeeded row with the store-assigned identifier.
// Unlike the error sink, a write failure here does not abort the run:
// the records are already committed in the store, so callers log and
// keep going.
func (s *SuccessFile) Record(row types.Row, id string) error {
	if s.w == nil {
		if err := s.open(); err != nil {
			return err
		}
	}

	line := make([]string, 0, len(s.columns)+2)
	for _, col := range s.columns {
		line = append(line, row[col])
	}
	line = append(line, "success", id)

	if err := s.w.Write(line); err != nil {
		return fmt.Errorf("success file write: %w", err)
	}
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		return fmt.Errorf("success file flush: %w", err)
	}
	s.count++
	return nil
}

func (s *SuccessFile) open() error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create results directory %s: %w", s.dir, err)
	}

	f, err := os.OpenFile(s.path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("create success file %s: %w", s.path, err)
	}

	w := csv.NewWriter(f)
	w.Comma = s.delimiter

	header := append(append([]string(nil), s.columns...), resultColumn, recordIDColumn)
	if err := w.Write(header); err != nil {
		_ = f.Close()
		return fmt.Errorf("success file header: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return fmt.Errorf("success file header: %w", err)
	}

	s.f = f
	s.w = w
	return nil
}

// Path returns the success file path, empty until the first record is written.
func (s *SuccessFile) Path() string {
	if s.w == nil {
		return ""
	}
	return s.path
}

// Count returns the number of records written.
func (s *SuccessFile) Count() int { return s.count }

// Close flushes and closes the file, if one was created. Safe to call
// more than once.
func (s *SuccessFile) Close() error {
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
