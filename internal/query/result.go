// Package query holds the tri-state result slots the observer reads and the
// pollers and caches that fill them.
package query

import "context"

// State is the lifecycle state of a query result.
type State int

const (
	// StatePending means no result has landed yet.
	StatePending State = iota
	// StateError means the latest landed result is a failure.
	StateError
	// StateReady means the latest landed result carries data.
	StateReady
)

// String returns the lower-case state name used in snapshot health.
func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateError:
		return "error"
	case StateReady:
		return "ready"
	default:
		return "unknown"
	}
}

// Result is an immutable tri-state query result. An errored result never
// exposes data from an earlier successful fetch.
type Result[T any] struct {
	state State
	data  T
	err   error
}

// Pending returns a result with no data.
func Pending[T any]() Result[T] {
	return Result[T]{state: StatePending}
}

// Failed returns an errored result.
func Failed[T any](err error) Result[T] {
	return Result[T]{state: StateError, err: err}
}

// Ready returns a result carrying data.
func Ready[T any](data T) Result[T] {
	return Result[T]{state: StateReady, data: data}
}

// State returns the result state.
func (r Result[T]) State() State { return r.state }

// IsReady reports whether the result carries data.
func (r Result[T]) IsReady() bool { return r.state == StateReady }

// Data returns the data and true only when the result is ready.
func (r Result[T]) Data() (T, bool) {
	if r.state != StateReady {
		var zero T
		return zero, false
	}
	return r.data, true
}

// Err returns the failure of an errored result, nil otherwise.
func (r Result[T]) Err() error {
	if r.state != StateError {
		return nil
	}
	return r.err
}

// FetchFunc performs one query. Implementations must honor ctx cancellation.
type FetchFunc[T any] func(ctx context.Context) (T, error)
