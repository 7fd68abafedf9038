// Package tserr holds the sentinel errors shared across the growing array,
// timelapse, source, digest, and indicator packages. Validation errors are
// returned at the call site and never retried; a failed operation leaves
// state unchanged.
package tserr

import "errors"

var (
	// ErrOutOfRange is returned when reading an index >= length, or a slice
	// past length.
	ErrOutOfRange = errors.New("tsarray: index or slice out of range")

	// ErrInvalidSlice is returned for negative indices or non-unit step.
	ErrInvalidSlice = errors.New("tsarray: invalid slice bounds")

	// ErrInvalidInput is returned on dtype mismatch on push/set, or wrong
	// matrix shape.
	ErrInvalidInput = errors.New("tsarray: invalid input shape or type")

	// ErrMissingInitial is returned when interpolation is required but no
	// left boundary value was ever set.
	ErrMissingInitial = errors.New("source: interpolation requires a missing initial value")

	// ErrAlignment is returned when digest/link preconditions (divisibility,
	// timestamp rounding, interval ordering) are not satisfied.
	ErrAlignment = errors.New("source: alignment precondition not satisfied")

	// ErrInvalidArgument covers tail_size <= 1, moving_stderr_tail_size < 2,
	// zero chunk_size, unknown candle component, missing predictor side.
	ErrInvalidArgument = errors.New("indicator: invalid argument")

	// ErrDisposed is returned by any read on a disposed indicator.
	ErrDisposed = errors.New("indicator: disposed")

	// ErrGraphCycle is returned by the topology package's defensive cycle
	// assertion — it should never trigger in practice since edges are only
	// ever added from an already-existing producer to a new node.
	ErrGraphCycle = errors.New("topology: cycle detected in dependency graph")
)
