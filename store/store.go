// Package store provides the remote object store boundary.
//
// The BulkStore interface models the store's SObject Collections bulk
// primitives (one outcome per submitted record) and paginated SOQL query
// execution. The engine is written against this interface; the REST client
// in this package is the production implementation and StubStore the
// in-memory test double.
package store

import (
	"context"

	"github.com/copperline-io/ferry/types"
)

// MaxBatchSize is the largest record count the store accepts per bulk call.
const MaxBatchSize = 200

// RecordResult is the per-record outcome of a bulk call. Results are
// returned in submission order, exactly one per input record.
type RecordResult struct {
	// ID is the remote record id, set on success (and for updates/deletes,
	// echoes the submitted id).
	ID string
	// Success reports whether the store accepted the record.
	Success bool
	// Err classifies the failure. Nil iff Success.
	Err *APIError
}

// QueryPage is one page of SOQL query results.
type QueryPage struct {
	// Fields is the column order of the page, derived from the first record
	// as returned by the store.
	Fields []string
	// Records are the page's rows with values rendered as strings.
	Records []types.Row
	// Done reports whether this is the final page.
	Done bool
	// NextLocator is the continuation token for the next page, empty when Done.
	NextLocator string
	// TotalSize is the store-reported total result count.
	TotalSize int
}

// BulkStore is the capability boundary to the remote object store.
//
// All bulk methods submit at most MaxBatchSize records and return one
// RecordResult per input record in submission order. A non-nil error means
// the call failed as a whole (transport, session, serialization) and no
// per-record results are available.
type BulkStore interface {
	// Insert creates records.
	Insert(ctx context.Context, object string, records []types.Row) ([]RecordResult, error)

	// Update modifies records. Every record must carry an "Id" field.
	Update(ctx context.Context, object string, records []types.Row) ([]RecordResult, error)

	// Upsert inserts-or-updates keyed by externalIDField, which must be
	// non-empty. Enforcement of that precondition happens before dispatch;
	// implementations may assume it.
	Upsert(ctx context.Context, object, externalIDField string, records []types.Row) ([]RecordResult, error)

	// Delete removes records. Every record must carry an "Id" field.
	Delete(ctx context.Context, object string, records []types.Row) ([]RecordResult, error)

	// Query executes a SOQL query and returns the first page.
	// Rejected queries fail with an error wrapping ErrQuery.
	Query(ctx context.Context, soql string) (*QueryPage, error)

	// QueryMore fetches the page identified by a continuation locator.
	QueryMore(ctx context.Context, locator string) (*QueryPage, error)
}
