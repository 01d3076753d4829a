package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/copperline-io/ferry/iox"
	"github.com/copperline-io/ferry/types"
)

// DefaultAPIVersion is the REST API version used when the config has none.
const DefaultAPIVersion = "59.0"

// RESTConfig configures the REST client.
type RESTConfig struct {
	// APIVersion is the remote API version (e.g. "59.0").
	APIVersion string
	// Timeout is the per-request timeout.
	Timeout time.Duration
}

// RESTClient implements BulkStore over the store's REST API using the
// SObject Collections endpoints for bulk calls and the query endpoint
// with nextRecordsUrl continuation for SOQL.
type RESTClient struct {
	sessions SessionProvider
	client   *http.Client
	version  string
}

// NewRESTClient creates a REST client backed by the given session provider.
func NewRESTClient(sessions SessionProvider, cfg RESTConfig) *RESTClient {
	if cfg.APIVersion == "" {
		cfg.APIVersion = DefaultAPIVersion
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &RESTClient{
		sessions: sessions,
		client:   &http.Client{Timeout: cfg.Timeout},
		version:  cfg.APIVersion,
	}
}

// sobjectRecord is one record in a collections payload.
type sobjectRecord map[string]any

// collectionsPayload is the request body for collections insert/update/upsert.
type collectionsPayload struct {
	AllOrNone bool            `json:"allOrNone"`
	Records   []sobjectRecord `json:"records"`
}

// collectionsResult is the per-record response entry from a collections call.
type collectionsResult struct {
	ID      string `json:"id"`
	Success bool   `json:"success"`
	Errors  []struct {
		StatusCode string `json:"statusCode"`
		Message    string `json:"message"`
	} `json:"errors"`
}

// Insert implements BulkStore.
func (c *RESTClient) Insert(ctx context.Context, object string, records []types.Row) ([]RecordResult, error) {
	payload := buildPayload(object, records, "")
	return c.collections(ctx, http.MethodPost, "composite/sobjects", payload, len(records))
}

// Update implements BulkStore.
func (c *RESTClient) Update(ctx context.Context, object string, records []types.Row) ([]RecordResult, error) {
	payload := buildPayload(object, records, "")
	return c.collections(ctx, http.MethodPatch, "composite/sobjects", payload, len(records))
}

// Upsert implements BulkStore.
func (c *RESTClient) Upsert(ctx context.Context, object, externalIDField string, records []types.Row) ([]RecordResult, error) {
	payload := buildPayload(object, records, externalIDField)
	path := fmt.Sprintf("composite/sobjects/%s/%s", url.PathEscape(object), url.PathEscape(externalIDField))
	return c.collections(ctx, http.MethodPatch, path, payload, len(records))
}

// Delete implements BulkStore. Only the Id of each record is submitted.
func (c *RESTClient) Delete(ctx context.Context, _ string, records []types.Row) ([]RecordResult, error) {
	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r["Id"]
	}
	path := "composite/sobjects?allOrNone=false&ids=" + url.QueryEscape(strings.Join(ids, ","))
	return c.collections(ctx, http.MethodDelete, path, nil, len(records))
}

// buildPayload assembles a collections payload. The externalIDField is only
// set for upserts.
func buildPayload(object string, records []types.Row, externalIDField string) *collectionsPayload {
	payload := &collectionsPayload{AllOrNone: false, Records: make([]sobjectRecord, 0, len(records))}
	for _, row := range records {
		rec := sobjectRecord{}
		attrs := map[string]any{"type": object}
		if externalIDField != "" {
			attrs["externalIdField"] = externalIDField
		}
		rec["attributes"] = attrs
		for k, v := range row {
			rec[k] = v
		}
		payload.Records = append(payload.Records, rec)
	}
	return payload
}

// collections performs one SObject Collections call and parses the
// per-record results. want is the expected result count.
func (c *RESTClient) collections(ctx context.Context, method, path string, payload *collectionsPayload, want int) ([]RecordResult, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, &APIError{Kind: ErrPermanent, Message: fmt.Sprintf("encode payload: %v", err)}
		}
		body = bytes.NewReader(data)
	}

	raw, status, err := c.do(ctx, method, path, body)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, apiErrorFromBody(status, raw)
	}

	var results []collectionsResult
	if err := json.Unmarshal(raw, &results); err != nil {
		return nil, &APIError{Kind: ErrTransient, StatusCode: status, Message: fmt.Sprintf("decode results: %v", err)}
	}
	if len(results) != want {
		return nil, &APIError{
			Kind:       ErrTransient,
			StatusCode: status,
			Message:    fmt.Sprintf("result count %d does not match submitted %d", len(results), want),
		}
	}

	out := make([]RecordResult, len(results))
	for i, r := range results {
		if r.Success {
			out[i] = RecordResult{ID: r.ID, Success: true}
			continue
		}
		code, message := "", "unknown error"
		if len(r.Errors) > 0 {
			code = r.Errors[0].StatusCode
			parts := make([]string, 0, len(r.Errors))
			for _, e := range r.Errors {
				parts = append(parts, e.Message)
			}
			message = strings.Join(parts, "; ")
		}
		out[i] = RecordResult{ID: r.ID, Err: classifyRecordError(code, message)}
	}
	return out, nil
}

// queryResponse is the wire shape of a query page.
type queryResponse struct {
	TotalSize      int               `json:"totalSize"`
	Done           bool              `json:"done"`
	NextRecordsURL string            `json:"nextRecordsUrl"`
	Records        []json.RawMessage `json:"records"`
}

// Query implements BulkStore.
func (c *RESTClient) Query(ctx context.Context, soql string) (*QueryPage, error) {
	return c.queryPath(ctx, fmt.Sprintf("/services/data/v%s/query?q=%s", c.version, url.QueryEscape(soql)))
}

// QueryMore implements BulkStore. The locator is the nextRecordsUrl path
// returned by a prior page.
func (c *RESTClient) QueryMore(ctx context.Context, locator string) (*QueryPage, error) {
	return c.queryPath(ctx, locator)
}

func (c *RESTClient) queryPath(ctx context.Context, path string) (*QueryPage, error) {
	raw, status, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		apiErr := apiErrorFromBody(status, raw)
		if apiErr.Kind == ErrSessionExpired {
			return nil, apiErr
		}
		return nil, QueryRejectedError(status, apiErr.Message)
	}

	var resp queryResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, QueryRejectedError(status, fmt.Sprintf("decode query response: %v", err))
	}

	page := &QueryPage{
		Done:        resp.Done,
		NextLocator: resp.NextRecordsURL,
		TotalSize:   resp.TotalSize,
	}

	for i, rawRec := range resp.Records {
		if i == 0 {
			fields, err := orderedKeys(rawRec)
			if err != nil {
				return nil, QueryRejectedError(status, fmt.Sprintf("decode record: %v", err))
			}
			page.Fields = fields
		}
		var rec map[string]any
		if err := json.Unmarshal(rawRec, &rec); err != nil {
			return nil, QueryRejectedError(status, fmt.Sprintf("decode record: %v", err))
		}
		row := make(types.Row, len(rec))
		for k, v := range rec {
			if k == "attributes" {
				continue
			}
			row[k] = renderValue(v)
		}
		page.Records = append(page.Records, row)
	}

	return page, nil
}

// orderedKeys extracts the key order of a JSON object, skipping the
// store-injected "attributes" entry. Needed because map decoding loses
// order and exports must preserve the store's field order.
func orderedKeys(raw json.RawMessage) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("expected object, got %v", tok)
	}

	var keys []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("expected object key, got %v", tok)
		}
		if key != "attributes" {
			keys = append(keys, key)
		}
		if err := skipValue(dec); err != nil {
			return nil, err
		}
	}
	return keys, nil
}

// skipValue consumes the next JSON value from dec.
func skipValue(dec *json.Decoder) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	delim, ok := tok.(json.Delim)
	if !ok {
		return nil
	}
	if delim == '{' || delim == '[' {
		depth := 1
		for depth > 0 {
			tok, err := dec.Token()
			if err != nil {
				return err
			}
			if d, ok := tok.(json.Delim); ok {
				switch d {
				case '{', '[':
					depth++
				case '}', ']':
					depth--
				}
			}
		}
	}
	return nil
}

// renderValue renders a decoded JSON value as a CSV cell.
func renderValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(data)
	}
}

// do performs one authenticated request. The path may be absolute (query
// locators include the full /services/... path) or relative to the
// versioned API root.
func (c *RESTClient) do(ctx context.Context, method, path string, body io.Reader) ([]byte, int, error) {
	session, err := c.sessions.Current(ctx)
	if err != nil {
		return nil, 0, err
	}

	endpoint := session.InstanceURL
	if strings.HasPrefix(path, "/") {
		endpoint += path
	} else {
		endpoint += fmt.Sprintf("/services/data/v%s/%s", c.version, path)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, 0, &APIError{Kind: ErrPermanent, Message: fmt.Sprintf("build request: %v", err)}
	}
	req.Header.Set("Authorization", "Bearer "+session.AccessToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, 0, ctx.Err()
		}
		return nil, 0, classifyTransport(err)
	}
	defer iox.DiscardClose(resp.Body)

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return nil, 0, classifyTransport(err)
	}
	return raw, resp.StatusCode, nil
}

// apiErrorFromBody parses the store's error body, which is a JSON array of
// {message, errorCode} objects.
func apiErrorFromBody(status int, raw []byte) *APIError {
	var apiErrs []struct {
		Message   string `json:"message"`
		ErrorCode string `json:"errorCode"`
	}
	if err := json.Unmarshal(raw, &apiErrs); err == nil && len(apiErrs) > 0 {
		return classifyStatus(status, apiErrs[0].ErrorCode, apiErrs[0].Message)
	}
	return classifyStatus(status, "", strings.TrimSpace(string(raw)))
}

// Verify RESTClient implements BulkStore.
var _ BulkStore = (*RESTClient)(nil)
