// Package types defines core domain types shared across ferry.
//
//nolint:revive // types is a common Go package naming convention
package types

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Operation is a bulk operation against the remote object store.
type Operation string

const (
	// OpInsert creates new records.
	OpInsert Operation = "insert"
	// OpUpdate modifies existing records by Id.
	OpUpdate Operation = "update"
	// OpUpsert inserts-or-updates keyed by an external id field.
	OpUpsert Operation = "upsert"
	// OpDelete removes records by Id.
	OpDelete Operation = "delete"
)

// ParseOperation parses an operation name, case-insensitively.
func ParseOperation(s string) (Operation, error) {
	switch Operation(strings.ToLower(s)) {
	case OpInsert:
		return OpInsert, nil
	case OpUpdate:
		return OpUpdate, nil
	case OpUpsert:
		return OpUpsert, nil
	case OpDelete:
		return OpDelete, nil
	default:
		return "", fmt.Errorf("invalid operation: %q (must be insert, update, upsert, or delete)", s)
	}
}

// Row is a single source record: column name to raw string value.
// Column order lives with the table that owns the row, not the row itself.
type Row map[string]string

// Clone returns a shallow copy of the row.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// RunMeta identifies a single ferry run.
// Every log line and downstream notification carries these fields.
type RunMeta struct {
	// RunID uniquely identifies the run.
	RunID string
	// Object is the target object name (e.g. Account).
	Object string
	// Operation is the bulk operation for sync runs, empty otherwise.
	Operation Operation
	// StartedAt is the run start time, used for error file naming and
	// archive partitioning.
	StartedAt time.Time
}

// NewRunMeta creates run metadata with a fresh run id.
func NewRunMeta(object string, op Operation) *RunMeta {
	return &RunMeta{
		RunID:     uuid.NewString(),
		Object:    object,
		Operation: op,
		StartedAt: time.Now(),
	}
}

// Summary is the per-run record accounting produced by a sync run.
// Succeeded and Failed count terminal records only; they sum to Total
// unless the run was canceled before every chunk was submitted.
type Summary struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`

	// ErrorFile is the path of the error sink file, empty when no record failed.
	ErrorFile string `json:"error_file,omitempty"`
	// SuccessFile is the path of the success results file, empty when no
	// record succeeded or no success writer was configured for the run.
	SuccessFile string `json:"success_file,omitempty"`
}

// RecordState is a record's position in the dispatch state machine.
// Terminal states are StateSucceeded and StateFailed.
type RecordState string

const (
	// StatePending means the record has not been submitted yet.
	StatePending RecordState = "pending"
	// StateInFlight means the record is part of a submitted chunk.
	StateInFlight RecordState = "in_flight"
	// StateRetrying means the record failed transiently and awaits resubmission.
	StateRetrying RecordState = "retrying"
	// StateSucceeded means the remote store accepted the record.
	StateSucceeded RecordState = "succeeded"
	// StateFailed means the record exhausted its attempts or failed permanently.
	StateFailed RecordState = "failed"
)
