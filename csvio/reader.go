// Package csvio handles flat-file input and output: reading source tables
// with the configured encoding and delimiter, the append-only error sink,
// and query export files.
package csvio

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"

	"github.com/copperline-io/ferry/iox"
	"github.com/copperline-io/ferry/types"
)

// Table is an in-memory source file: the column order plus one Row per line.
type Table struct {
	// Columns is the header in file order.
	Columns []string
	// Rows are the data lines.
	Rows []types.Row
}

// Options controls how source files are read.
type Options struct {
	// Encoding is the source file encoding name (default utf-8).
	Encoding string
	// Delimiter is the field separator (default ',').
	Delimiter rune
}

// decoderFor maps an encoding name to a transform decoder.
// Nil means the input is used as-is (UTF-8).
func decoderFor(name string) (*encoding.Decoder, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8":
		return nil, nil
	case "latin-1", "latin1", "iso-8859-1":
		return charmap.ISO8859_1.NewDecoder(), nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252.NewDecoder(), nil
	case "utf-16", "utf-16le":
		return unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder(), nil
	case "utf-16be":
		return unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewDecoder(), nil
	default:
		return nil, fmt.Errorf("unsupported encoding: %q", name)
	}
}

// ReadFile reads a delimited file into a Table. The first line is the
// header; every data line becomes a Row keyed by header column.
func ReadFile(path string, opts Options) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer iox.DiscardClose(f)
	return Read(f, opts)
}

// Read reads a delimited stream into a Table.
func Read(r io.Reader, opts Options) (*Table, error) {
	dec, err := decoderFor(opts.Encoding)
	if err != nil {
		return nil, err
	}
	if dec != nil {
		r = dec.Reader(r)
	}

	cr := csv.NewReader(r)
	if opts.Delimiter != 0 {
		cr.Comma = opts.Delimiter
	}
	cr.TrimLeadingSpace = false

	header, err := cr.Read()
	if err == io.EOF {
		return &Table{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	table := &Table{Columns: append([]string(nil), header...)}
	for {
		line, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read line %d: %w", len(table.Rows)+2, err)
		}
		row := make(types.Row, len(header))
		for i, col := range header {
			if i < len(line) {
				row[col] = line[i]
			}
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}
