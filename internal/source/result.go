// Package source models the outcome of reading one snapshot facet.
//
// Every data source the monitor reads can be missing or corrupt independently
// of the others. Internally each read returns a Result that records which of
// those happened; the public accessors collapse it to an empty or absent value.
package source

import "fmt"

// Outcome classifies how a facet read ended.
type Outcome int

const (
	// OK means the source was read and the value is meaningful (possibly empty).
	OK Outcome = iota
	// Unavailable means the source does not exist or could not be opened.
	Unavailable
	// Malformed means the source exists but its content could not be parsed.
	Malformed
)

func (o Outcome) String() string {
	switch o {
	case OK:
		return "ok"
	case Unavailable:
		return "unavailable"
	case Malformed:
		return "malformed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Result is the value of one facet read together with its Outcome.
type Result[T any] struct {
	value   T
	outcome Outcome
	err     error
}

// Ok wraps a successfully read value.
func Ok[T any](v T) Result[T] {
	return Result[T]{value: v, outcome: OK}
}

// Missing records that the source was unavailable.
func Missing[T any](err error) Result[T] {
	return Result[T]{outcome: Unavailable, err: err}
}

// Corrupt records that the source was malformed.
func Corrupt[T any](err error) Result[T] {
	return Result[T]{outcome: Malformed, err: err}
}

// Outcome reports how the read ended.
func (r Result[T]) Outcome() Outcome { return r.outcome }

// IsOk reports whether the source was read.
func (r Result[T]) IsOk() bool { return r.outcome == OK }

// Err returns the underlying cause for Unavailable and Malformed results.
func (r Result[T]) Err() error { return r.err }

// Value returns the wrapped value, or the zero value when the read failed.
func (r Result[T]) Value() T { return r.value }

// ValueOr returns the wrapped value when OK, otherwise fallback.
func (r Result[T]) ValueOr(fallback T) T {
	if r.outcome == OK {
		return r.value
	}
	return fallback
}
