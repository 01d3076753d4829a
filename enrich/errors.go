package enrich

import "fmt"

// ScrapeError is a failed or empty scrape. Scoped to one enrichment
// invocation; never aborts anything beyond it.
type ScrapeError struct {
	// Key is the search key that was scraped for.
	Key string
	// Message describes the failure.
	Message string
	// Err is the underlying cause, if any.
	Err error
}

func (e *ScrapeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("scrape failed for %q: %s: %v", e.Key, e.Message, e.Err)
	}
	return fmt.Sprintf("scrape failed for %q: %s", e.Key, e.Message)
}

func (e *ScrapeError) Unwrap() error { return e.Err }
