package engine

import (
	"context"
	"fmt"

	"github.com/copperline-io/ferry/csvio"
	"github.com/copperline-io/ferry/iox"
	"github.com/copperline-io/ferry/log"
	"github.com/copperline-io/ferry/store"
)

// Exporter executes a query against the remote store and streams the
// results to a CSV file, transparently following pagination.
type Exporter struct {
	store     store.BulkStore
	logger    *log.Logger
	delimiter rune
}

// NewExporter creates an Exporter. logger is optional.
func NewExporter(st store.BulkStore, logger *log.Logger, delimiter rune) *Exporter {
	if delimiter == 0 {
		delimiter = ','
	}
	return &Exporter{store: st, logger: logger, delimiter: delimiter}
}

// Export runs the query and writes all result pages to outputPath in the
// order received, using the field order of the first page. It returns the
// number of data rows written.
//
// A rejected query propagates the store's error and writes nothing. An
// empty result set also writes nothing and returns 0. A mid-pagination
// failure leaves the rows already written in place and reports the error.
func (e *Exporter) Export(ctx context.Context, soql, outputPath string) (int, error) {
	page, err := e.store.Query(ctx, soql)
	if err != nil {
		return 0, err
	}
	if len(page.Records) == 0 {
		if e.logger != nil {
			e.logger.Info("query returned no rows, skipping export", map[string]any{
				"output": outputPath,
			})
		}
		return 0, nil
	}

	w, err := csvio.NewExportWriter(outputPath, e.delimiter)
	if err != nil {
		return 0, err
	}
	defer iox.DiscardErr(w.Close)

	if err := w.WriteHeader(page.Fields); err != nil {
		return 0, err
	}

	for {
		for _, row := range page.Records {
			if err := w.WriteRow(row); err != nil {
				return w.Count(), err
			}
		}
		if page.Done {
			break
		}
		page, err = e.store.QueryMore(ctx, page.NextLocator)
		if err != nil {
			// Partial results stay in place; the caller decides cleanup.
			return w.Count(), fmt.Errorf("pagination failed after %d rows: %w", w.Count(), err)
		}
	}

	if err := w.Close(); err != nil {
		return w.Count(), err
	}
	if e.logger != nil {
		e.logger.Info("export complete", map[string]any{
			"rows":   w.Count(),
			"output": outputPath,
		})
	}
	return w.Count(), nil
}
