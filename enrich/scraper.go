package enrich

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/copperline-io/ferry/iox"
	"github.com/copperline-io/ferry/types"
)

// Scraper obtains candidate field values for a search key from an
// external source. Returned keys are field names; callers restrict them
// to the enrichment allow-list before use.
type Scraper interface {
	Scrape(ctx context.Context, key string, fields []string) (types.Row, error)
}

// excludedDomains are aggregator/social hosts that never count as a
// company's own site when picking a search result.
var excludedDomains = []string{
	"linkedin.com",
	"facebook.com",
	"twitter.com",
	"instagram.com",
	"yelp.com",
	"wikipedia.org",
	"youtube.com",
	"glassdoor.com",
}

var (
	phoneRe = regexp.MustCompile(`\(?\d{3}\)?[-.\s]\d{3}[-.\s]?\d{4}`)
	emailRe = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
)

// WebScraper finds a company's site via an HTML search endpoint, fetches
// its landing page, and extracts contact details.
//
// Resolution is first-match: the first search result whose host is not an
// excluded aggregator domain is taken as the company site. Zero remaining
// candidates is a ScrapeError.
type WebScraper struct {
	client *http.Client
	// searchURL is a format string receiving the url-escaped search key.
	searchURL string
	userAgent string
}

// WebScraperConfig configures a WebScraper. Zero values select defaults.
type WebScraperConfig struct {
	// SearchURL is a format string with one %s verb for the escaped query.
	SearchURL string
	// Timeout bounds each HTTP request.
	Timeout time.Duration
	// UserAgent is sent on every request.
	UserAgent string
}

// NewWebScraper creates a WebScraper.
func NewWebScraper(cfg WebScraperConfig) *WebScraper {
	if cfg.SearchURL == "" {
		cfg.SearchURL = "https://html.duckduckgo.com/html/?q=%s"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "ferry/" + types.Version
	}
	return &WebScraper{
		client:    &http.Client{Timeout: cfg.Timeout},
		searchURL: cfg.SearchURL,
		userAgent: cfg.UserAgent,
	}
}

// Scrape implements Scraper. It searches for key, follows the first
// non-excluded result, and extracts the requested fields from the page.
func (s *WebScraper) Scrape(ctx context.Context, key string, fields []string) (types.Row, error) {
	if strings.TrimSpace(key) == "" {
		return nil, &ScrapeError{Key: key, Message: "empty search key"}
	}

	site, err := s.findSite(ctx, key)
	if err != nil {
		return nil, err
	}

	doc, err := s.fetch(ctx, site)
	if err != nil {
		return nil, &ScrapeError{Key: key, Message: "fetch company page", Err: err}
	}

	text := doc.Find("body").Text()
	candidates := make(types.Row)
	for _, field := range fields {
		switch {
		case strings.Contains(field, "Phone"):
			candidates[field] = phoneRe.FindString(text)
		case strings.Contains(field, "Email"):
			candidates[field] = emailRe.FindString(text)
		case strings.Contains(field, "Website"):
			candidates[field] = site
		case strings.Contains(field, "Street"), strings.Contains(field, "City"), strings.Contains(field, "Address"):
			candidates[field] = extractAddressPart(doc, field)
		}
	}

	empty := true
	for _, v := range candidates {
		if v != "" {
			empty = false
			break
		}
	}
	if empty {
		return nil, &ScrapeError{Key: key, Message: "no candidate values found"}
	}
	return candidates, nil
}

// findSite runs the search and returns the first result URL whose host is
// not an excluded aggregator domain.
func (s *WebScraper) findSite(ctx context.Context, key string) (string, error) {
	doc, err := s.fetch(ctx, fmt.Sprintf(s.searchURL, url.QueryEscape(key)))
	if err != nil {
		return "", &ScrapeError{Key: key, Message: "search request", Err: err}
	}

	var site string
	doc.Find("a.result__a, a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, ok := sel.Attr("href")
		if !ok {
			return true
		}
		link := resolveResultLink(href)
		if link == "" || isExcluded(link) {
			return true
		}
		site = link
		return false
	})

	if site == "" {
		return "", &ScrapeError{Key: key, Message: "no usable search result"}
	}
	return site, nil
}

func (s *WebScraper) fetch(ctx context.Context, rawURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer iox.DiscardClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, rawURL)
	}
	return goquery.NewDocumentFromReader(resp.Body)
}

// resolveResultLink normalizes a search result href to an absolute http(s)
// URL, unwrapping redirect-style results that carry the target in a query
// parameter.
func resolveResultLink(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if target := u.Query().Get("uddg"); target != "" {
		if t, err := url.QueryUnescape(target); err == nil {
			u, err = url.Parse(t)
			if err != nil {
				return ""
			}
		}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	return u.String()
}

func isExcluded(link string) bool {
	u, err := url.Parse(link)
	if err != nil {
		return true
	}
	host := strings.ToLower(u.Hostname())
	for _, domain := range excludedDomains {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}

// extractAddressPart looks for address-ish elements by class name. The
// heuristic is loose on purpose; the user confirms every diff before any
// write happens.
func extractAddressPart(doc *goquery.Document, field string) string {
	var value string
	doc.Find("[class*=address], [class*=Address], address").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		text := strings.TrimSpace(sel.Text())
		if text == "" {
			return true
		}
		value = firstLine(text)
		return false
	})
	if value == "" {
		return ""
	}
	if strings.Contains(field, "City") {
		// Street address first line, city on the second when present.
		parts := strings.SplitN(value, ",", 3)
		if len(parts) >= 2 {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	return strings.TrimSpace(strings.SplitN(value, ",", 2)[0])
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}

var _ Scraper = (*WebScraper)(nil)
