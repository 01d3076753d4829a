// Error taxonomy for remote store failures.
//
// Sentinel errors classify failures so callers can use errors.Is rather
// than string matching. APIError wraps a remote failure with its
// classification and preserves the remote error code and message.
package store

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Sentinel errors for store failure classification.
var (
	// ErrTransient marks failures worth retrying: timeouts, rate limits,
	// row locks, 5xx-equivalents.
	ErrTransient = errors.New("transient api error")

	// ErrPermanent marks failures that will not succeed on retry:
	// validation, permissions, duplicates, malformed input.
	ErrPermanent = errors.New("permanent api error")

	// ErrSessionExpired indicates the session token was rejected.
	// The dispatcher reauthenticates once and resubmits the chunk.
	ErrSessionExpired = errors.New("session expired or invalid")

	// ErrAuth indicates a session could not be obtained or refreshed.
	ErrAuth = errors.New("authentication failed")

	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrQuery indicates the store rejected a query.
	ErrQuery = errors.New("query rejected")
)

// APIError is a classified remote store failure.
type APIError struct {
	// Kind is the classification sentinel (ErrTransient, ErrPermanent, ...).
	Kind error
	// StatusCode is the HTTP status, 0 for per-record failures.
	StatusCode int
	// Code is the remote error code (e.g. DUPLICATE_VALUE), if any.
	Code string
	// Message is the remote error message.
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%v: %s: %s", e.Kind, e.Code, e.Message)
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("%v: status %d: %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%v: %s", e.Kind, e.Message)
}

// Is reports whether the error matches the target sentinel.
func (e *APIError) Is(target error) bool {
	return errors.Is(e.Kind, target)
}

// IsTransient reports whether err should be retried.
func IsTransient(err error) bool { return errors.Is(err, ErrTransient) }

// transientCodes are remote error codes that clear on retry.
var transientCodes = map[string]bool{
	"UNABLE_TO_LOCK_ROW":            true,
	"REQUEST_LIMIT_EXCEEDED":        true,
	"SERVER_UNAVAILABLE":            true,
	"QUERY_TIMEOUT":                 true,
	"OPERATION_TOO_LARGE":           true,
	"TXN_SECURITY_METERING_ERROR":   true,
	"CONCURRENT_PERSISTENCE_UPDATE": true,
}

// classifyRecordError classifies a per-record failure by its remote code.
func classifyRecordError(code, message string) *APIError {
	kind := ErrPermanent
	if transientCodes[code] {
		kind = ErrTransient
	}
	return &APIError{Kind: kind, Code: code, Message: message}
}

// classifyStatus classifies a chunk-level HTTP failure.
func classifyStatus(status int, code, message string) *APIError {
	kind := ErrPermanent
	switch {
	case status == http.StatusUnauthorized || strings.EqualFold(code, "INVALID_SESSION_ID"):
		kind = ErrSessionExpired
	case status == http.StatusNotFound:
		kind = ErrNotFound
	case status == http.StatusTooManyRequests || status == http.StatusRequestTimeout:
		kind = ErrTransient
	case status >= 500:
		kind = ErrTransient
	}
	return &APIError{Kind: kind, StatusCode: status, Code: code, Message: message}
}

// classifyTransport classifies a network-level failure of a remote call.
// Timeouts and connection errors are transient; the dispatcher decides
// whether to resubmit the chunk.
func classifyTransport(err error) *APIError {
	return &APIError{Kind: ErrTransient, Message: err.Error()}
}

// QueryRejectedError wraps a store-side query rejection, preserving the
// store's message for the caller.
func QueryRejectedError(status int, message string) error {
	return fmt.Errorf("%w: status %d: %s", ErrQuery, status, message)
}
