// Package adapter defines the notification adapter boundary.
//
// Adapters publish sync-run completion notifications to downstream
// systems. The CLI owns adapter lifecycle; users provide configuration
// only. Publish failures are logged by the caller, never fatal to a run.
package adapter

import (
	"context"
	"time"

	"github.com/copperline-io/ferry/types"
)

// SyncCompletedEvent is the payload published when a run finishes.
type SyncCompletedEvent struct {
	Version    string `json:"version"`
	EventType  string `json:"event_type"` // always "sync_completed"
	RunID      string `json:"run_id"`
	Object     string `json:"object"`
	Operation  string `json:"operation"`
	Total      int    `json:"total"`
	Succeeded  int    `json:"succeeded"`
	Failed     int    `json:"failed"`
	ErrorFile  string `json:"error_file,omitempty"`
	Timestamp  string `json:"timestamp"` // ISO 8601
	DurationMs int64  `json:"duration_ms"`
}

// NewSyncCompletedEvent builds the event for a finished run.
func NewSyncCompletedEvent(meta *types.RunMeta, summary *types.Summary, finishedAt time.Time) *SyncCompletedEvent {
	return &SyncCompletedEvent{
		Version:    types.Version,
		EventType:  "sync_completed",
		RunID:      meta.RunID,
		Object:     meta.Object,
		Operation:  string(meta.Operation),
		Total:      summary.Total,
		Succeeded:  summary.Succeeded,
		Failed:     summary.Failed,
		ErrorFile:  summary.ErrorFile,
		Timestamp:  finishedAt.UTC().Format(time.RFC3339),
		DurationMs: finishedAt.Sub(meta.StartedAt).Milliseconds(),
	}
}

// Adapter publishes sync completion events to a downstream system.
// Implementations must be safe for single-use per run.
type Adapter interface {
	// Publish sends a sync completion event to the downstream system.
	// Must respect context cancellation and deadlines.
	Publish(ctx context.Context, event *SyncCompletedEvent) error

	// Close releases adapter resources.
	Close() error
}
