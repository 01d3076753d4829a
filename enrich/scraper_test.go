package enrich

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWebScraper_ExtractsContactDetails(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/search", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintf(w, `<html><body>
			<a class="result__a" href="https://www.linkedin.com/company/acme">Acme on LinkedIn</a>
			<a class="result__a" href="%s/company">Acme Corp</a>
		</body></html>`, srv.URL)
	})
	mux.HandleFunc("/company", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<html><body>
			<p>Call us at (415) 555-0100 or write to sales@acme.example</p>
			<div class="street-address">12 Main St, Springfield</div>
		</body></html>`)
	})

	s := NewWebScraper(WebScraperConfig{SearchURL: srv.URL + "/search?q=%s"})

	got, err := s.Scrape(context.Background(), "Acme", []string{"Phone", "Email", "Website", "BillingStreet", "BillingCity"})
	if err != nil {
		t.Fatalf("scrape: %v", err)
	}
	if got["Phone"] != "(415) 555-0100" {
		t.Errorf("phone: %q", got["Phone"])
	}
	if got["Email"] != "sales@acme.example" {
		t.Errorf("email: %q", got["Email"])
	}
	if got["Website"] != srv.URL+"/company" {
		t.Errorf("website: %q", got["Website"])
	}
	if got["BillingStreet"] != "12 Main St" {
		t.Errorf("street: %q", got["BillingStreet"])
	}
	if got["BillingCity"] != "Springfield" {
		t.Errorf("city: %q", got["BillingCity"])
	}
}

func TestWebScraper_SkipsExcludedDomains(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<html><body>
			<a class="result__a" href="https://www.linkedin.com/company/acme">LinkedIn</a>
			<a class="result__a" href="https://facebook.com/acme">Facebook</a>
		</body></html>`)
	}))
	defer srv.Close()

	s := NewWebScraper(WebScraperConfig{SearchURL: srv.URL + "/search?q=%s"})

	_, err := s.Scrape(context.Background(), "Acme", []string{"Phone"})
	var scrapeErr *ScrapeError
	if !errors.As(err, &scrapeErr) {
		t.Fatalf("expected ScrapeError when only excluded domains match, got %v", err)
	}
}

func TestWebScraper_EmptyKey(t *testing.T) {
	s := NewWebScraper(WebScraperConfig{})
	_, err := s.Scrape(context.Background(), "  ", []string{"Phone"})
	var scrapeErr *ScrapeError
	if !errors.As(err, &scrapeErr) {
		t.Fatalf("expected ScrapeError for empty key, got %v", err)
	}
}

func TestWebScraper_NoCandidateValues(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/search", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintf(w, `<html><body><a class="result__a" href="%s/company">Acme</a></body></html>`, srv.URL)
	})
	mux.HandleFunc("/company", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<html><body><p>Nothing useful here.</p></body></html>`)
	})

	s := NewWebScraper(WebScraperConfig{SearchURL: srv.URL + "/search?q=%s"})

	_, err := s.Scrape(context.Background(), "Acme", []string{"Phone", "Email"})
	var scrapeErr *ScrapeError
	if !errors.As(err, &scrapeErr) {
		t.Fatalf("expected ScrapeError for empty extraction, got %v", err)
	}
}

func TestWebScraper_SearchFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	s := NewWebScraper(WebScraperConfig{SearchURL: srv.URL + "/search?q=%s"})

	_, err := s.Scrape(context.Background(), "Acme", []string{"Phone"})
	var scrapeErr *ScrapeError
	if !errors.As(err, &scrapeErr) {
		t.Fatalf("expected ScrapeError on search failure, got %v", err)
	}
}

func TestResolveResultLink(t *testing.T) {
	tests := []struct {
		name string
		href string
		want string
	}{
		{"absolute https", "https://acme.example/about", "https://acme.example/about"},
		{"redirect wrapper", "https://html.duckduckgo.com/l/?uddg=https%3A%2F%2Facme.example%2F", "https://acme.example/"},
		{"relative", "/html/?q=next", ""},
		{"javascript", "javascript:void(0)", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := resolveResultLink(tt.href); got != tt.want {
				t.Errorf("resolveResultLink(%q) = %q, want %q", tt.href, got, tt.want)
			}
		})
	}
}

func TestIsExcluded(t *testing.T) {
	tests := []struct {
		link string
		want bool
	}{
		{"https://www.linkedin.com/company/acme", true},
		{"https://linkedin.com/company/acme", true},
		{"https://acme.example/contact", false},
		{"https://notlinkedin.example/", false},
	}
	for _, tt := range tests {
		if got := isExcluded(tt.link); got != tt.want {
			t.Errorf("isExcluded(%q) = %v, want %v", tt.link, got, tt.want)
		}
	}
}
