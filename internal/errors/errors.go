package errors

import (
	"slices"
	"sync"
	"time"
)

// Code represents a typed error code surfaced in snapshot health.
type Code string

// Observer error codes.
const (
	ErrQueryFailed           Code = "QUERY_FAILED"
	ErrDecodeFailed          Code = "DECODE_FAILED"
	ErrAuthFailed            Code = "AUTH_FAILED"
	ErrNotFound              Code = "NOT_FOUND"
	ErrAPIUnreachable        Code = "API_UNREACHABLE"
	ErrTimeout               Code = "TIMEOUT"
	ErrDiscoveryFailed       Code = "DISCOVERY_FAILED"
	ErrVisibilityUnavailable Code = "VISIBILITY_UNAVAILABLE"
	ErrPartialData           Code = "PARTIAL_DATA"
)

// defaultTTL is the auto-expiry duration for errors not re-reported.
const defaultTTL = 5 * time.Minute

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// RealClock uses the system clock.
type RealClock struct{}

// Now returns the current time.
func (RealClock) Now() time.Time { return time.Now() }

// ObserverError represents a typed observer error with code, component, and optional wrapped error.
type ObserverError struct {
	Code      Code   `json:"code"`
	Message   string `json:"message"`
	Component string `json:"component"`
	Timestamp int64  `json:"timestamp"`
	Err       error  `json:"-"`
}

// Error implements the error interface.
func (e *ObserverError) Error() string {
	return e.Message
}

// Unwrap returns the wrapped error for errors.Is/As compatibility.
func (e *ObserverError) Unwrap() error {
	return e.Err
}

// New builds an ObserverError for component, classifying err and stamping it with now.
func New(component string, err error, now time.Time) ObserverError {
	return ObserverError{
		Code:      Classify(err),
		Message:   err.Error(),
		Component: component,
		Timestamp: now.UnixMilli(),
		Err:       err,
	}
}

// entry wraps an ObserverError with its last-reported time for expiry tracking.
type entry struct {
	err        ObserverError
	lastReport time.Time
}

// ErrorCollector is a thread-safe store for active observer errors.
// Errors are keyed by Code+Component and auto-expire after 5 minutes
// if not re-reported.
type ErrorCollector struct {
	mu      sync.Mutex
	clock   Clock
	entries map[string]entry // key = string(Code) + "|" + Component
}

// NewErrorCollector creates an ErrorCollector with the given clock.
func NewErrorCollector(clock Clock) *ErrorCollector {
	return &ErrorCollector{
		clock:   clock,
		entries: make(map[string]entry),
	}
}

// key builds the dedup key for an error.
func key(code Code, component string) string {
	return string(code) + "|" + component
}

// Report stores or refreshes an error. The dedup key is Code+Component.
func (ec *ErrorCollector) Report(err ObserverError) {
	ec.mu.Lock()
	defer ec.mu.Unlock()

	k := key(err.Code, err.Component)
	ec.entries[k] = entry{
		err:        err,
		lastReport: ec.clock.Now(),
	}
}

// Resolve drops every error reported by component, regardless of code.
// Called when the component's next query succeeds.
func (ec *ErrorCollector) Resolve(component string) {
	ec.mu.Lock()
	defer ec.mu.Unlock()

	for k, e := range ec.entries {
		if e.err.Component == component {
			delete(ec.entries, k)
		}
	}
}

// GetActiveErrors returns all errors that have been reported within the TTL window.
func (ec *ErrorCollector) GetActiveErrors() []ObserverError {
	ec.mu.Lock()
	defer ec.mu.Unlock()

	now := ec.clock.Now()
	result := make([]ObserverError, 0, len(ec.entries))
	for k, e := range ec.entries {
		if now.Sub(e.lastReport) > defaultTTL {
			delete(ec.entries, k)
			continue
		}
		result = append(result, e.err)
	}
	return result
}

// GetActiveErrorCodes returns a sorted, deduplicated list of active error codes.
func (ec *ErrorCollector) GetActiveErrorCodes() []string {
	ec.mu.Lock()
	defer ec.mu.Unlock()

	now := ec.clock.Now()
	seen := make(map[Code]struct{})
	codes := make([]string, 0)
	for k, e := range ec.entries {
		if now.Sub(e.lastReport) > defaultTTL {
			delete(ec.entries, k)
			continue
		}
		if _, ok := seen[e.err.Code]; !ok {
			seen[e.err.Code] = struct{}{}
			codes = append(codes, string(e.err.Code))
		}
	}
	slices.Sort(codes)
	return codes
}

// Clear removes all tracked errors.
func (ec *ErrorCollector) Clear() {
	ec.mu.Lock()
	defer ec.mu.Unlock()

	ec.entries = make(map[string]entry)
}
