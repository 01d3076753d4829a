package enrich

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/copperline-io/ferry/engine"
	"github.com/copperline-io/ferry/store"
	"github.com/copperline-io/ferry/types"
)

// stubScraper returns scripted candidate values.
type stubScraper struct {
	values types.Row
	err    error
	keys   []string
}

func (s *stubScraper) Scrape(_ context.Context, key string, _ []string) (types.Row, error) {
	s.keys = append(s.keys, key)
	if s.err != nil {
		return nil, s.err
	}
	return s.values.Clone(), nil
}

func newTestPipeline(t *testing.T, st *store.StubStore, sc Scraper, dec engine.Decider) *Pipeline {
	t.Helper()
	d, err := engine.NewDispatcher(st, nil, nil, nil, nil, engine.DispatchConfig{
		BatchSize: 1,
		Sleep:     func(time.Duration) {},
	})
	if err != nil {
		t.Fatalf("dispatcher: %v", err)
	}
	return NewPipeline(st, d, sc, dec, nil, nil)
}

func accountPage(row types.Row) *store.QueryPage {
	return &store.QueryPage{
		Fields:    []string{"Id", "Name", "Phone", "Website"},
		Records:   []types.Row{row},
		Done:      true,
		TotalSize: 1,
	}
}

func TestEnrich_ConfirmDispatchesSingleUpdate(t *testing.T) {
	st := store.NewStubStore()
	st.QueryPages = []*store.QueryPage{accountPage(types.Row{
		"Id": "001X", "Name": "Acme", "Phone": "", "Website": "https://acme.example",
	})}
	sc := &stubScraper{values: types.Row{"Phone": "555-0100", "Website": "https://acme.example"}}
	dec := &engine.ScriptedDecider{ConfirmAnswer: true}
	p := newTestPipeline(t, st, sc, dec)

	applied, err := p.Enrich(context.Background(), "001X", "Account", []string{"Phone", "Website"})
	if err != nil {
		t.Fatalf("enrich: %v", err)
	}
	if !applied {
		t.Error("expected applied=true")
	}

	if st.BulkCallCount() != 1 {
		t.Fatalf("dispatch calls: got %d, want exactly 1", st.BulkCallCount())
	}
	call := st.Calls[0]
	if call.Operation != types.OpUpdate || call.Object != "Account" {
		t.Errorf("unexpected call: %+v", call)
	}
	if len(call.Records) != 1 {
		t.Fatalf("batch size: got %d, want 1", len(call.Records))
	}
	rec := call.Records[0]
	if rec["Id"] != "001X" || rec["Phone"] != "555-0100" {
		t.Errorf("payload: %v", rec)
	}
	// Website matches the current value, so it must not be in the payload.
	if _, present := rec["Website"]; present {
		t.Errorf("unchanged field leaked into payload: %v", rec)
	}

	if dec.ConfirmCalls != 1 {
		t.Errorf("confirm calls: got %d, want 1", dec.ConfirmCalls)
	}
	if len(dec.LastDiff) != 1 || dec.LastDiff[0].Field != "Phone" || dec.LastDiff[0].Proposed != "555-0100" {
		t.Errorf("presented diff: %+v", dec.LastDiff)
	}
}

func TestEnrich_DeclineMakesNoAPICall(t *testing.T) {
	st := store.NewStubStore()
	st.QueryPages = []*store.QueryPage{accountPage(types.Row{
		"Id": "001X", "Name": "Acme", "Phone": "",
	})}
	sc := &stubScraper{values: types.Row{"Phone": "555-0100"}}
	dec := &engine.ScriptedDecider{ConfirmAnswer: false}
	p := newTestPipeline(t, st, sc, dec)

	applied, err := p.Enrich(context.Background(), "001X", "Account", []string{"Phone"})
	if err != nil {
		t.Fatalf("enrich: %v", err)
	}
	if applied {
		t.Error("expected applied=false on decline")
	}
	if st.BulkCallCount() != 0 {
		t.Errorf("decline must make zero dispatch calls, got %d", st.BulkCallCount())
	}
	if dec.ConfirmCalls != 1 {
		t.Errorf("confirm calls: got %d, want 1", dec.ConfirmCalls)
	}
}

func TestEnrich_DiffRestrictedToAllowList(t *testing.T) {
	st := store.NewStubStore()
	st.QueryPages = []*store.QueryPage{accountPage(types.Row{
		"Id": "001X", "Name": "Acme", "Phone": "",
	})}
	// Scraper returns a field outside the allow-list.
	sc := &stubScraper{values: types.Row{"Phone": "555-0100", "AnnualRevenue": "1000000"}}
	dec := &engine.ScriptedDecider{ConfirmAnswer: true}
	p := newTestPipeline(t, st, sc, dec)

	if _, err := p.Enrich(context.Background(), "001X", "Account", []string{"Phone"}); err != nil {
		t.Fatalf("enrich: %v", err)
	}

	for _, change := range dec.LastDiff {
		if change.Field == "AnnualRevenue" {
			t.Error("field outside allow-list leaked into diff")
		}
	}
	if _, present := st.Calls[0].Records[0]["AnnualRevenue"]; present {
		t.Error("field outside allow-list leaked into payload")
	}
}

func TestEnrich_EmptyDiffDoesNothing(t *testing.T) {
	st := store.NewStubStore()
	st.QueryPages = []*store.QueryPage{accountPage(types.Row{
		"Id": "001X", "Name": "Acme", "Phone": "555-0100",
	})}
	sc := &stubScraper{values: types.Row{"Phone": "555-0100"}}
	dec := &engine.ScriptedDecider{ConfirmAnswer: true}
	p := newTestPipeline(t, st, sc, dec)

	applied, err := p.Enrich(context.Background(), "001X", "Account", []string{"Phone"})
	if err != nil {
		t.Fatalf("enrich: %v", err)
	}
	if applied {
		t.Error("expected applied=false for empty diff")
	}
	if dec.ConfirmCalls != 0 {
		t.Errorf("empty diff must not prompt, got %d confirm calls", dec.ConfirmCalls)
	}
	if st.BulkCallCount() != 0 {
		t.Errorf("empty diff must not dispatch, got %d calls", st.BulkCallCount())
	}
}

func TestEnrich_MissingRecordFails(t *testing.T) {
	st := store.NewStubStore()
	st.QueryPages = []*store.QueryPage{{Done: true}}
	p := newTestPipeline(t, st, &stubScraper{}, &engine.ScriptedDecider{})

	_, err := p.Enrich(context.Background(), "001MISSING", "Account", []string{"Phone"})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not-found error, got %v", err)
	}
	if st.BulkCallCount() != 0 {
		t.Errorf("missing record must not dispatch, got %d calls", st.BulkCallCount())
	}
}

func TestEnrich_ScrapeFailureIsScoped(t *testing.T) {
	st := store.NewStubStore()
	st.QueryPages = []*store.QueryPage{accountPage(types.Row{
		"Id": "001X", "Name": "Acme",
	})}
	sc := &stubScraper{err: &ScrapeError{Key: "Acme", Message: "no usable search result"}}
	p := newTestPipeline(t, st, sc, &engine.ScriptedDecider{ConfirmAnswer: true})

	applied, err := p.Enrich(context.Background(), "001X", "Account", []string{"Phone"})
	var scrapeErr *ScrapeError
	if !errors.As(err, &scrapeErr) {
		t.Fatalf("expected ScrapeError, got %v", err)
	}
	if applied {
		t.Error("expected applied=false on scrape failure")
	}
	if st.BulkCallCount() != 0 {
		t.Errorf("scrape failure must not dispatch, got %d calls", st.BulkCallCount())
	}
}

func TestEnrich_SearchKeyIsRecordName(t *testing.T) {
	st := store.NewStubStore()
	st.QueryPages = []*store.QueryPage{accountPage(types.Row{
		"Id": "001X", "Name": "Copperline Threads", "Phone": "",
	})}
	sc := &stubScraper{values: types.Row{"Phone": "555-0100"}}
	p := newTestPipeline(t, st, sc, &engine.ScriptedDecider{ConfirmAnswer: true})

	if _, err := p.Enrich(context.Background(), "001X", "Account", []string{"Phone"}); err != nil {
		t.Fatalf("enrich: %v", err)
	}
	if len(sc.keys) != 1 || sc.keys[0] != "Copperline Threads" {
		t.Errorf("search keys: %v", sc.keys)
	}
}

func TestEnrich_DefaultAllowListUsedWhenFieldsOmitted(t *testing.T) {
	st := store.NewStubStore()
	st.QueryPages = []*store.QueryPage{accountPage(types.Row{
		"Id": "001X", "Name": "Acme", "Phone": "",
	})}
	sc := &stubScraper{values: types.Row{"Phone": "555-0100"}}
	p := newTestPipeline(t, st, sc, &engine.ScriptedDecider{ConfirmAnswer: true})

	applied, err := p.Enrich(context.Background(), "001X", "Account", nil)
	if err != nil {
		t.Fatalf("enrich: %v", err)
	}
	if !applied {
		t.Error("expected applied=true via default allow-list")
	}
}

func TestAllowedFields(t *testing.T) {
	configured := map[string][]string{"Account": {"Phone"}}

	if got := AllowedFields(configured, "Account"); len(got) != 1 || got[0] != "Phone" {
		t.Errorf("configured list not used: %v", got)
	}
	if got := AllowedFields(configured, "Contact"); len(got) == 0 {
		t.Error("default list missing for Contact")
	}
	if got := AllowedFields(nil, "CustomObject__c"); got != nil {
		t.Errorf("unknown type should have no list, got %v", got)
	}
}

func TestAllowedFields_Defaults(t *testing.T) {
	want := map[string][]string{
		"Account": {"Phone", "Website", "BillingStreet", "BillingCity", "BillingState", "BillingPostalCode", "BillingCountry"},
		"Contact": {"Phone", "Email", "MailingStreet", "MailingCity", "MailingState", "MailingPostalCode", "MailingCountry"},
		"Lead":    {"Phone", "Email", "Street", "City", "State", "PostalCode", "Country"},
	}
	for objectType, fields := range want {
		got := AllowedFields(nil, objectType)
		if len(got) != len(fields) {
			t.Errorf("%s: expected %d fields, got %v", objectType, len(fields), got)
			continue
		}
		for i, f := range fields {
			if got[i] != f {
				t.Errorf("%s field %d: expected %s, got %s", objectType, i, f, got[i])
			}
		}
	}
	// Leads carry plain address fields; a company website is not one of them.
	for _, f := range AllowedFields(nil, "Lead") {
		if f == "Website" {
			t.Error("Lead allow-list must not include Website")
		}
	}
}
