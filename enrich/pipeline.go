// Package enrich implements the guided enrichment workflow: fetch one
// record, scrape candidate values from an external source, diff against
// current values restricted to an allow-list, and apply the diff as a
// single-record update only after explicit confirmation.
package enrich

import (
	"context"
	"fmt"
	"strings"

	"github.com/copperline-io/ferry/engine"
	"github.com/copperline-io/ferry/log"
	"github.com/copperline-io/ferry/store"
	"github.com/copperline-io/ferry/types"
)

// Pipeline runs enrichment invocations. One Pipeline serves many
// invocations; each invocation is independent and its failures never
// affect another.
type Pipeline struct {
	store      store.BulkStore
	dispatcher *engine.Dispatcher
	scraper    Scraper
	decider    engine.Decider
	logger     *log.Logger
	allowed    map[string][]string
}

// NewPipeline creates a Pipeline. allowed is the per-object-type field
// allow-list from configuration; object types absent from it fall back to
// the built-in defaults. logger is optional.
func NewPipeline(st store.BulkStore, d *engine.Dispatcher, sc Scraper, dec engine.Decider, logger *log.Logger, allowed map[string][]string) *Pipeline {
	return &Pipeline{
		store:      st,
		dispatcher: d,
		scraper:    sc,
		decider:    dec,
		logger:     logger,
		allowed:    allowed,
	}
}

// Enrich runs one enrichment invocation for recordID of objectType and
// reports whether an update was applied.
//
// fields overrides the allow-list for this invocation; nil uses the
// configured (or default) list for the object type. Candidate values
// outside the allow-list are discarded before the diff is computed. No
// update is ever dispatched without the decider's confirmation.
func (p *Pipeline) Enrich(ctx context.Context, recordID, objectType string, fields []string) (bool, error) {
	allowed := fields
	if len(allowed) == 0 {
		allowed = AllowedFields(p.allowed, objectType)
	}
	if len(allowed) == 0 {
		return false, engine.NewConfigError("no enrichment fields configured for object type %q", objectType)
	}

	current, err := p.fetch(ctx, recordID, objectType, allowed)
	if err != nil {
		return false, err
	}

	key := current["Name"]
	proposed, err := p.scraper.Scrape(ctx, key, allowed)
	if err != nil {
		return false, err
	}

	diff := buildDiff(current, proposed, allowed)
	if len(diff) == 0 {
		p.log("no changes proposed", map[string]any{"record_id": recordID})
		return false, nil
	}

	ok, err := p.decider.Confirm(diff)
	if err != nil {
		return false, fmt.Errorf("confirm enrichment: %w", err)
	}
	if !ok {
		p.log("enrichment declined", map[string]any{"record_id": recordID})
		return false, nil
	}

	payload := types.Row{"Id": recordID}
	for _, change := range diff {
		payload[change.Field] = change.Proposed
	}

	summary, err := p.dispatcher.Dispatch(ctx, objectType, types.OpUpdate, []types.Row{payload}, nil, "")
	if err != nil {
		return false, err
	}
	applied := summary.Succeeded == 1
	p.log("enrichment applied", map[string]any{
		"record_id": recordID,
		"fields":    len(diff),
		"applied":   applied,
	})
	return applied, nil
}

// Diff computes the proposed changes for a record without applying them.
// Exposed for front-ends that render the diff before asking for
// confirmation.
func (p *Pipeline) Diff(ctx context.Context, recordID, objectType string, fields []string) ([]engine.FieldChange, error) {
	allowed := fields
	if len(allowed) == 0 {
		allowed = AllowedFields(p.allowed, objectType)
	}
	current, err := p.fetch(ctx, recordID, objectType, allowed)
	if err != nil {
		return nil, err
	}
	proposed, err := p.scraper.Scrape(ctx, current["Name"], allowed)
	if err != nil {
		return nil, err
	}
	return buildDiff(current, proposed, allowed), nil
}

// fetch loads the record's current values for the allowed fields plus Id
// and Name. A missing record is a not-found failure scoped to this
// invocation.
func (p *Pipeline) fetch(ctx context.Context, recordID, objectType string, allowed []string) (types.Row, error) {
	soql := fmt.Sprintf(
		"SELECT %s FROM %s WHERE Id = '%s'",
		strings.Join(selectFields(allowed), ", "),
		objectType,
		strings.ReplaceAll(recordID, "'", "\\'"),
	)

	page, err := p.store.Query(ctx, soql)
	if err != nil {
		return nil, fmt.Errorf("fetch record %s: %w", recordID, err)
	}
	if len(page.Records) == 0 {
		return nil, fmt.Errorf("%w: %s %s", store.ErrNotFound, objectType, recordID)
	}
	return page.Records[0], nil
}

// selectFields prepends Id and Name (the search key) to the allow-list,
// deduplicated, preserving order.
func selectFields(allowed []string) []string {
	fields := []string{"Id", "Name"}
	seen := map[string]bool{"Id": true, "Name": true}
	for _, f := range allowed {
		if !seen[f] {
			seen[f] = true
			fields = append(fields, f)
		}
	}
	return fields
}

// buildDiff keeps fields where the candidate value is non-empty, differs
// from the current value, and is inside the allow-list. Order follows the
// allow-list for deterministic presentation.
func buildDiff(current, proposed types.Row, allowed []string) []engine.FieldChange {
	var diff []engine.FieldChange
	for _, field := range allowed {
		candidate := proposed[field]
		if candidate == "" || candidate == current[field] {
			continue
		}
		diff = append(diff, engine.FieldChange{
			Field:    field,
			Current:  current[field],
			Proposed: candidate,
		})
	}
	return diff
}

func (p *Pipeline) log(message string, fields map[string]any) {
	if p.logger != nil {
		p.logger.Info(message, fields)
	}
}
