// Package seq provides sequential fallback combinators: run candidates in
// order and stop at the first one whose result counts. Evaluation is strictly
// one at a time; a later candidate never starts before the earlier one has
// finished. This matters for authentication handlers, where speculatively
// running two verifiers against the same credential would duplicate external
// calls and side effects.
package seq

import (
	"context"
	"errors"
)

// ErrNoCandidates is returned by FirstOK when called with no candidates.
var ErrNoCandidates = errors.New("seq: no candidates")

// FirstOK runs fns in order and returns the first nil-error result. When
// every candidate fails, the last candidate's result is returned verbatim,
// including its error. Context cancellation is checked before each candidate;
// once cancelled, no further candidate runs.
func FirstOK[T any](ctx context.Context, fns ...func(context.Context) (T, error)) (T, error) {
	var zero T
	if len(fns) == 0 {
		return zero, ErrNoCandidates
	}
	for i, fn := range fns {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		v, err := fn(ctx)
		if err == nil || i == len(fns)-1 {
			return v, err
		}
	}
	return zero, ErrNoCandidates // unreachable
}

// FirstSome runs fns in order and returns the first present result. When no
// candidate produces a value, or the context is cancelled, it reports absence.
func FirstSome[T any](ctx context.Context, fns ...func(context.Context) (T, bool)) (T, bool) {
	var zero T
	for _, fn := range fns {
		if ctx.Err() != nil {
			return zero, false
		}
		if v, ok := fn(ctx); ok {
			return v, true
		}
	}
	return zero, false
}
