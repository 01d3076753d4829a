package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/copperline-io/ferry/types"
)

// StubStore is an in-memory BulkStore for tests. Bulk calls are recorded
// in order; outcomes are scripted per call. With nothing scripted, every
// record succeeds with a generated id.
type StubStore struct {
	mu sync.Mutex

	// Calls records every bulk call in submission order.
	Calls []BulkCall
	// QueryCalls records the SOQL (or locator) of every query call.
	QueryCalls []string

	// NextResults are popped one per bulk call. A nil entry falls back to
	// all-success.
	NextResults [][]RecordResult
	// NextErrs are popped one per bulk call; a non-nil entry fails the call
	// at chunk level (no per-record results).
	NextErrs []error

	// QueryPages are popped one per Query/QueryMore call.
	QueryPages []*QueryPage
	// QueryErr fails every query call when set.
	QueryErr error

	nextID int
}

// BulkCall is one recorded bulk submission.
type BulkCall struct {
	Operation       types.Operation
	Object          string
	ExternalIDField string
	Records         []types.Row
}

// NewStubStore creates an empty stub store.
func NewStubStore() *StubStore {
	return &StubStore{}
}

// ScriptResults appends a scripted per-record result set for the next
// unscripted bulk call.
func (s *StubStore) ScriptResults(results []RecordResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.NextResults = append(s.NextResults, results)
	s.NextErrs = append(s.NextErrs, nil)
}

// ScriptErr appends a scripted chunk-level error for the next bulk call.
func (s *StubStore) ScriptErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.NextResults = append(s.NextResults, nil)
	s.NextErrs = append(s.NextErrs, err)
}

// BulkCallCount returns the number of bulk calls made so far.
func (s *StubStore) BulkCallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Calls)
}

func (s *StubStore) record(op types.Operation, object, externalIDField string, records []types.Row) ([]RecordResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := make([]types.Row, len(records))
	for i, r := range records {
		copied[i] = r.Clone()
	}
	s.Calls = append(s.Calls, BulkCall{
		Operation:       op,
		Object:          object,
		ExternalIDField: externalIDField,
		Records:         copied,
	})

	var scripted []RecordResult
	var scriptedErr error
	if len(s.NextErrs) > 0 {
		scripted, scriptedErr = s.NextResults[0], s.NextErrs[0]
		s.NextResults = s.NextResults[1:]
		s.NextErrs = s.NextErrs[1:]
	}
	if scriptedErr != nil {
		return nil, scriptedErr
	}
	if scripted != nil {
		return scripted, nil
	}

	out := make([]RecordResult, len(records))
	for i := range records {
		s.nextID++
		out[i] = RecordResult{ID: fmt.Sprintf("001%09d", s.nextID), Success: true}
	}
	return out, nil
}

// Insert implements BulkStore.
func (s *StubStore) Insert(_ context.Context, object string, records []types.Row) ([]RecordResult, error) {
	return s.record(types.OpInsert, object, "", records)
}

// Update implements BulkStore.
func (s *StubStore) Update(_ context.Context, object string, records []types.Row) ([]RecordResult, error) {
	return s.record(types.OpUpdate, object, "", records)
}

// Upsert implements BulkStore.
func (s *StubStore) Upsert(_ context.Context, object, externalIDField string, records []types.Row) ([]RecordResult, error) {
	return s.record(types.OpUpsert, object, externalIDField, records)
}

// Delete implements BulkStore.
func (s *StubStore) Delete(_ context.Context, object string, records []types.Row) ([]RecordResult, error) {
	return s.record(types.OpDelete, object, "", records)
}

// Query implements BulkStore.
func (s *StubStore) Query(_ context.Context, soql string) (*QueryPage, error) {
	return s.query(soql)
}

// QueryMore implements BulkStore.
func (s *StubStore) QueryMore(_ context.Context, locator string) (*QueryPage, error) {
	return s.query(locator)
}

func (s *StubStore) query(key string) (*QueryPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.QueryCalls = append(s.QueryCalls, key)
	if s.QueryErr != nil {
		return nil, s.QueryErr
	}
	if len(s.QueryPages) == 0 {
		return &QueryPage{Done: true}, nil
	}
	page := s.QueryPages[0]
	s.QueryPages = s.QueryPages[1:]
	return page, nil
}

// Verify StubStore implements BulkStore.
var _ BulkStore = (*StubStore)(nil)
