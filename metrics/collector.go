// Package metrics provides per-run metrics collection.
//
// The Collector accumulates counters during a single sync, export, or
// enrichment run. It is a leaf package with no internal dependencies.
// All increment methods are nil-receiver safe so callers never need to
// guard against an absent collector.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of all run counters.
// Returned by Collector.Snapshot(). Safe to read concurrently after creation.
type Snapshot struct {
	// Input
	RecordsRead int64

	// Dispatch
	ChunksSubmitted  int64
	RetriesScheduled int64
	Reauths          int64

	// Outcomes
	RecordsSucceeded int64
	RecordsFailed    int64
	SinkWrites       int64

	// Dimensions (informational, set at construction)
	Object    string
	Operation string
	RunID     string
}

// Collector accumulates metrics during a single run.
// Thread-safe via sync.Mutex. All increment methods are nil-receiver safe.
type Collector struct {
	mu sync.Mutex

	recordsRead int64

	chunksSubmitted  int64
	retriesScheduled int64
	reauths          int64

	recordsSucceeded int64
	recordsFailed    int64
	sinkWrites       int64

	object    string
	operation string
	runID     string
}

// NewCollector creates a Collector with dimension labels.
func NewCollector(object, operation, runID string) *Collector {
	return &Collector{
		object:    object,
		operation: operation,
		runID:     runID,
	}
}

// AddRecordsRead records n input rows read from the source file.
func (c *Collector) AddRecordsRead(n int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.recordsRead += n
	c.mu.Unlock()
}

// IncChunkSubmitted records one bulk chunk submission (including resubmits).
func (c *Collector) IncChunkSubmitted() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.chunksSubmitted++
	c.mu.Unlock()
}

// IncRetryScheduled records one record scheduled for a retry chunk.
func (c *Collector) IncRetryScheduled() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.retriesScheduled++
	c.mu.Unlock()
}

// IncReauth records one session reauthentication triggered by a chunk failure.
func (c *Collector) IncReauth() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.reauths++
	c.mu.Unlock()
}

// IncRecordSucceeded records one record reaching terminal success.
func (c *Collector) IncRecordSucceeded() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.recordsSucceeded++
	c.mu.Unlock()
}

// IncRecordFailed records one record reaching terminal failure.
func (c *Collector) IncRecordFailed() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.recordsFailed++
	c.mu.Unlock()
}

// IncSinkWrite records one row appended to the error sink.
func (c *Collector) IncSinkWrite() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.sinkWrites++
	c.mu.Unlock()
}

// Snapshot returns an immutable point-in-time view of all counters.
// The returned Snapshot is safe to read concurrently; the Collector can
// continue to be mutated independently.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	return Snapshot{
		RecordsRead: c.recordsRead,

		ChunksSubmitted:  c.chunksSubmitted,
		RetriesScheduled: c.retriesScheduled,
		Reauths:          c.reauths,

		RecordsSucceeded: c.recordsSucceeded,
		RecordsFailed:    c.recordsFailed,
		SinkWrites:       c.sinkWrites,

		Object:    c.object,
		Operation: c.operation,
		RunID:     c.runID,
	}
}
