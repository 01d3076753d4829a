package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/copperline-io/ferry/log"
	"github.com/copperline-io/ferry/metrics"
	"github.com/copperline-io/ferry/store"
	"github.com/copperline-io/ferry/types"
)

// Defaults for DispatchConfig zero values.
const (
	DefaultMaxAttempts = 3
	DefaultBackoff     = 500 * time.Millisecond
)

// ErrorSink durably records rows that reach terminal failure.
// A write failure is fatal to the run: silently losing failure records
// is unacceptable.
type ErrorSink interface {
	Record(row types.Row, reason string, op types.Operation) error
	Path() string
	Count() int
}

// SuccessSink records rows the store accepted together with the
// identifier it assigned or matched. Unlike the error sink a write
// failure is not fatal: the records are already committed remotely, so
// the dispatcher logs the failure and keeps going.
type SuccessSink interface {
	Record(row types.Row, id string) error
	Path() string
	Count() int
}

// DispatchConfig tunes chunking and retry behavior.
type DispatchConfig struct {
	// Successes, when non-nil, receives every accepted record. Nil skips
	// the success file entirely.
	Successes SuccessSink
	// BatchSize caps chunk size. Zero means store.MaxBatchSize; values
	// above store.MaxBatchSize are rejected with ConfigError.
	BatchSize int
	// MaxAttempts bounds submissions per record, transient retries
	// included. Zero means DefaultMaxAttempts.
	MaxAttempts int
	// Backoff is the base delay before a retry chunk; it doubles per
	// attempt. Zero means DefaultBackoff.
	Backoff time.Duration
	// Sleep overrides the backoff sleep. Used by tests; nil means time.Sleep.
	Sleep func(time.Duration)
}

// Dispatcher partitions records into bounded chunks, submits each via the
// requested bulk operation, classifies per-record outcomes, and drives
// retries. Chunks are processed strictly sequentially; a record's failure
// never aborts the run.
type Dispatcher struct {
	store     store.BulkStore
	sessions  store.SessionProvider
	sink      ErrorSink
	successes SuccessSink
	logger    *log.Logger
	metrics   *metrics.Collector

	batchSize   int
	maxAttempts int
	backoff     time.Duration
	sleep       func(time.Duration)
}

// NewDispatcher creates a Dispatcher. sessions may be nil when the store
// handles its own authentication (e.g. the in-memory stub); sink may be nil
// when terminal failures need no durable record (single-record enrichment
// updates). logger and collector are optional.
func NewDispatcher(st store.BulkStore, sessions store.SessionProvider, sink ErrorSink, logger *log.Logger, collector *metrics.Collector, cfg DispatchConfig) (*Dispatcher, error) {
	if cfg.BatchSize < 0 || cfg.BatchSize > store.MaxBatchSize {
		return nil, NewConfigError("batch size %d out of range (1-%d)", cfg.BatchSize, store.MaxBatchSize)
	}
	d := &Dispatcher{
		store:       st,
		sessions:    sessions,
		sink:        sink,
		successes:   cfg.Successes,
		logger:      logger,
		metrics:     collector,
		batchSize:   cfg.BatchSize,
		maxAttempts: cfg.MaxAttempts,
		backoff:     cfg.Backoff,
		sleep:       cfg.Sleep,
	}
	if d.batchSize == 0 {
		d.batchSize = store.MaxBatchSize
	}
	if d.maxAttempts == 0 {
		d.maxAttempts = DefaultMaxAttempts
	}
	if d.backoff == 0 {
		d.backoff = DefaultBackoff
	}
	if d.sleep == nil {
		d.sleep = time.Sleep
	}
	return d, nil
}

// record tracks one input row through the per-record state machine
// (pending → in_flight → succeeded | retrying | failed).
type record struct {
	original types.Row
	payload  types.Row
	state    types.RecordState
	attempts int
	lastErr  *store.APIError
}

// chunk is one bounded group of records submitted together.
type chunk struct {
	records []*record
	attempt int
}

// Dispatch applies the field mapping to every row, partitions the payloads
// into chunks of at most the configured batch size, and submits them in
// order. Transient per-record failures are retried in new chunks with
// exponential backoff, up to the attempt bound; records exhausting retries
// are appended to the error sink with their original row content.
//
// Cancellation takes effect at chunk boundaries: the in-flight chunk
// completes and its outcomes are recorded, no further chunks start, and
// Dispatch returns the partial summary together with the context error.
// The summary's Succeeded and Failed count only terminal records.
func (d *Dispatcher) Dispatch(ctx context.Context, object string, op types.Operation, rows []types.Row, mapping *FieldMapping, externalIDField string) (*types.Summary, error) {
	if op == types.OpUpsert && externalIDField == "" {
		return nil, NewConfigError("operation upsert requires an external id field")
	}

	records := make([]*record, len(rows))
	for i, row := range rows {
		records[i] = &record{
			original: row,
			payload:  mapping.Apply(row),
			state:    types.StatePending,
		}
	}

	queue := partition(records, d.batchSize)
	summary := &types.Summary{Total: len(rows)}

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			d.log("dispatch canceled", map[string]any{
				"chunks_remaining": len(queue),
			})
			d.finishSummary(summary, records)
			return summary, err
		}

		c := queue[0]
		queue = queue[1:]

		if c.attempt > 1 {
			d.sleep(d.backoff * time.Duration(1<<uint(c.attempt-2)))
		}

		retry, err := d.submitChunk(ctx, object, op, externalIDField, c)
		if err != nil {
			d.finishSummary(summary, records)
			return summary, err
		}
		if len(retry) > 0 {
			queue = append(queue, &chunk{records: retry, attempt: c.attempt + 1})
		}
	}

	d.finishSummary(summary, records)
	return summary, nil
}

// submitChunk submits one chunk, records terminal outcomes, and returns the
// records to retry in a follow-up chunk. A returned error is fatal to the
// run (sink write failure or unrecoverable authentication failure).
//
// The store calls and the reauthentication run detached from cancellation:
// an interrupt must not abort the in-flight chunk mid-call, or its outcomes
// would be lost. Dispatch honors cancellation before the next chunk starts.
func (d *Dispatcher) submitChunk(ctx context.Context, object string, op types.Operation, externalIDField string, c *chunk) ([]*record, error) {
	for _, r := range c.records {
		r.state = types.StateInFlight
		r.attempts++
	}

	callCtx := context.WithoutCancel(ctx)
	results, err := d.callStore(callCtx, object, op, externalIDField, c)
	d.metrics.IncChunkSubmitted()

	if err != nil {
		// Chunk-level transport failure: reauthenticate once and resubmit
		// the same chunk a single time. A second failure marks every record
		// in the chunk failed with the transport reason.
		d.log("chunk call failed, reauthenticating and resubmitting", map[string]any{
			"size":  len(c.records),
			"error": err.Error(),
		})
		if d.sessions != nil {
			if _, refreshErr := d.sessions.Refresh(callCtx); refreshErr != nil {
				return nil, fmt.Errorf("%w: %v", store.ErrAuth, refreshErr)
			}
			d.metrics.IncReauth()
		}

		results, err = d.callStore(callCtx, object, op, externalIDField, c)
		d.metrics.IncChunkSubmitted()
		if err != nil {
			reason := fmt.Sprintf("chunk submission failed: %v", err)
			for _, r := range c.records {
				if sinkErr := d.fail(r, reason, op); sinkErr != nil {
					return nil, sinkErr
				}
			}
			return nil, nil
		}
	}

	if len(results) != len(c.records) {
		return nil, fmt.Errorf("store returned %d results for %d records", len(results), len(c.records))
	}

	var retry []*record
	for i, res := range results {
		r := c.records[i]
		switch {
		case res.Success:
			r.state = types.StateSucceeded
			d.metrics.IncRecordSucceeded()
			if d.successes != nil {
				if err := d.successes.Record(r.original, res.ID); err != nil {
					d.log("success file write failed", map[string]any{
						"error": err.Error(),
					})
				}
			}

		case res.Err != nil && errors.Is(res.Err, store.ErrTransient) && r.attempts < d.maxAttempts:
			r.state = types.StateRetrying
			r.lastErr = res.Err
			retry = append(retry, r)
			d.metrics.IncRetryScheduled()

		default:
			r.lastErr = res.Err
			reason := "record rejected"
			if res.Err != nil {
				reason = res.Err.Error()
			}
			if err := d.fail(r, reason, op); err != nil {
				return nil, err
			}
		}
	}

	if len(retry) > 0 {
		d.log("scheduling retry chunk", map[string]any{
			"records": len(retry),
			"attempt": c.attempt + 1,
		})
	}
	return retry, nil
}

// fail marks a record terminally failed and appends it to the error sink.
// The sink write is fatal on failure.
func (d *Dispatcher) fail(r *record, reason string, op types.Operation) error {
	r.state = types.StateFailed
	d.metrics.IncRecordFailed()
	if d.sink == nil {
		return nil
	}
	if err := d.sink.Record(r.original, reason, op); err != nil {
		return fmt.Errorf("error sink write failed: %w", err)
	}
	d.metrics.IncSinkWrite()
	return nil
}

func (d *Dispatcher) callStore(ctx context.Context, object string, op types.Operation, externalIDField string, c *chunk) ([]store.RecordResult, error) {
	payloads := make([]types.Row, len(c.records))
	for i, r := range c.records {
		payloads[i] = r.payload
	}

	switch op {
	case types.OpInsert:
		return d.store.Insert(ctx, object, payloads)
	case types.OpUpdate:
		return d.store.Update(ctx, object, payloads)
	case types.OpUpsert:
		return d.store.Upsert(ctx, object, externalIDField, payloads)
	case types.OpDelete:
		return d.store.Delete(ctx, object, payloads)
	default:
		return nil, NewConfigError("unsupported operation %q", op)
	}
}

// finishSummary folds terminal record states into the summary.
func (d *Dispatcher) finishSummary(summary *types.Summary, records []*record) {
	for _, r := range records {
		switch r.state {
		case types.StateSucceeded:
			summary.Succeeded++
		case types.StateFailed:
			summary.Failed++
		}
	}
	if d.sink != nil && d.sink.Count() > 0 {
		summary.ErrorFile = d.sink.Path()
	}
	if d.successes != nil && d.successes.Count() > 0 {
		summary.SuccessFile = d.successes.Path()
	}
}

func (d *Dispatcher) log(message string, fields map[string]any) {
	if d.logger != nil {
		d.logger.Info(message, fields)
	}
}

// partition splits records into consecutive chunks of at most size,
// preserving order. The last chunk may be smaller.
func partition(records []*record, size int) []*chunk {
	var chunks []*chunk
	for start := 0; start < len(records); start += size {
		end := start + size
		if end > len(records) {
			end = len(records)
		}
		chunks = append(chunks, &chunk{records: records[start:end], attempt: 1})
	}
	return chunks
}
