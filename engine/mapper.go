// Package engine implements the batch synchronization core: field-mapping
// negotiation, chunked bulk dispatch with per-record outcome classification
// and retry, and paginated query export.
//
// All interactive decisions (column mapping, enrichment confirmation) are
// abstracted behind the Decider interface so runs are deterministic under
// test and scriptable in automation.
package engine

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/copperline-io/ferry/types"
)

// MapDecision is a decision provider's answer for one source column.
type MapDecision struct {
	// Skip excludes the column from every dispatched payload.
	Skip bool
	// Target is the target field name. Empty means the source column name.
	Target string
}

// FieldChange is one entry of an enrichment diff presented for confirmation.
type FieldChange struct {
	Field    string
	Current  string
	Proposed string
}

// Decider answers the interactive questions of a run: how to map each
// source column, and whether to apply a proposed enrichment diff.
//
// Implementations must be deterministic given identical inputs; the
// interactive prompt satisfies this by delegating determinism to the user.
type Decider interface {
	// MapColumn decides the mapping for a single source column.
	MapColumn(column string) (MapDecision, error)

	// Confirm asks for a single yes/no decision covering the whole diff.
	Confirm(diff []FieldChange) (bool, error)
}

// FieldMapping is the resolved correspondence between source columns and
// target fields. Built once per run before any dispatch; immutable afterward.
type FieldMapping struct {
	columns []string
	targets map[string]string
}

// BuildMapping negotiates a FieldMapping for the given source columns by
// consulting the decider per column, in order. A target field claimed by
// more than one column fails with MappingError.
func BuildMapping(columns []string, d Decider) (*FieldMapping, error) {
	m := &FieldMapping{
		columns: append([]string(nil), columns...),
		targets: make(map[string]string, len(columns)),
	}
	claimed := make(map[string]string, len(columns))

	for _, col := range columns {
		dec, err := d.MapColumn(col)
		if err != nil {
			return nil, fmt.Errorf("map column %q: %w", col, err)
		}
		if dec.Skip {
			continue
		}
		target := dec.Target
		if target == "" {
			target = col
		}
		if _, taken := claimed[target]; taken {
			return nil, &MappingError{Column: col, Target: target}
		}
		claimed[target] = col
		m.targets[col] = target
	}
	return m, nil
}

// Target returns the target field for a source column and whether the
// column is mapped at all.
func (m *FieldMapping) Target(column string) (string, bool) {
	t, ok := m.targets[column]
	return t, ok
}

// MappedCount returns the number of non-skipped columns.
func (m *FieldMapping) MappedCount() int { return len(m.targets) }

// SkippedCount returns the number of skipped columns.
func (m *FieldMapping) SkippedCount() int { return len(m.columns) - len(m.targets) }

// Apply produces the operation-ready payload for one source row: mapped
// columns renamed to their target fields, skipped columns dropped. A nil
// mapping is the identity.
func (m *FieldMapping) Apply(row types.Row) types.Row {
	if m == nil {
		return row.Clone()
	}
	out := make(types.Row, len(m.targets))
	for _, col := range m.columns {
		target, ok := m.targets[col]
		if !ok {
			continue
		}
		if v, present := row[col]; present {
			out[target] = v
		}
	}
	return out
}

// AutoDecider maps every column to itself and confirms every diff.
// Used by non-interactive sync runs and --yes enrichment.
type AutoDecider struct{}

func (AutoDecider) MapColumn(string) (MapDecision, error) {
	return MapDecision{}, nil
}

func (AutoDecider) Confirm([]FieldChange) (bool, error) {
	return true, nil
}

// StaticDecider answers from a fixed column→target table, typically loaded
// from a mapping file. Columns absent from the table are skipped. Diffs are
// always confirmed.
type StaticDecider struct {
	Mapping map[string]string
}

func (d *StaticDecider) MapColumn(column string) (MapDecision, error) {
	target, ok := d.Mapping[column]
	if !ok {
		return MapDecision{Skip: true}, nil
	}
	return MapDecision{Target: target}, nil
}

func (d *StaticDecider) Confirm([]FieldChange) (bool, error) {
	return true, nil
}

// LoadStaticDecider reads a YAML mapping file of the form
//
//	Source Column: Target_Field__c
//	Other Column: ""            # empty target keeps the column name
//
// and returns a StaticDecider over it.
func LoadStaticDecider(path string) (*StaticDecider, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read mapping file: %w", err)
	}
	mapping := make(map[string]string)
	if err := yaml.Unmarshal(data, &mapping); err != nil {
		return nil, fmt.Errorf("parse mapping file %s: %w", path, err)
	}
	for col, target := range mapping {
		if target == "" {
			mapping[col] = col
		}
	}
	return &StaticDecider{Mapping: mapping}, nil
}

var (
	_ Decider = AutoDecider{}
	_ Decider = (*StaticDecider)(nil)
)
