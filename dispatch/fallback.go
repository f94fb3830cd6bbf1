package dispatch

import (
	"context"

	"github.com/jonwraymond/notifyops/failure"
	"github.com/jonwraymond/notifyops/observe"
)

// Fallback tries its candidates strictly in order until one succeeds.
//
// Contract:
//   - Candidates run one at a time on the caller's goroutine.
//   - The first success is returned at once and earlier failures are
//     discarded.
//   - When every candidate fails the error is a *failure.Aggregate holding
//     one *failure.Single per candidate in attempt order.
//   - A cancelled ctx stops the chain before the next candidate; the
//     aggregate then ends with a *failure.Single for that skipped
//     candidate whose cause is ctx.Err().
//   - Immutable after construction and safe for concurrent use when the
//     candidates are.
type Fallback[In, Out any] struct {
	candidates []Operation[In, Out]
	opts       options
}

// NewFallback creates a Fallback over candidates. Nil candidates are
// dropped.
func NewFallback[In, Out any](candidates []Operation[In, Out], opts ...Option) *Fallback[In, Out] {
	kept := make([]Operation[In, Out], 0, len(candidates))
	for _, c := range candidates {
		if c != nil {
			kept = append(kept, c)
		}
	}
	return &Fallback[In, Out]{candidates: kept, opts: applyOptions(opts)}
}

// FallbackOf is NewFallback with variadic candidates and default options.
func FallbackOf[In, Out any](candidates ...Operation[In, Out]) *Fallback[In, Out] {
	return NewFallback(candidates)
}

// Len returns the number of candidates.
func (f *Fallback[In, Out]) Len() int {
	return len(f.candidates)
}

// Name returns the chain name set with WithName.
func (f *Fallback[In, Out]) Name() string {
	return f.opts.name
}

// Perform invokes each candidate in turn and returns the first success.
func (f *Fallback[In, Out]) Perform(ctx context.Context, in In) (Out, error) {
	var zero Out
	if len(f.candidates) == 0 {
		return zero, ErrNoCandidates
	}

	causes := make([]error, 0, len(f.candidates))
	for i, c := range f.candidates {
		if i > 0 && ctx.Err() != nil {
			causes = append(causes, &failure.Single{Candidate: NameOf(c), Index: i, Cause: ctx.Err()})
			break
		}
		out, err := c.Perform(ctx, in)
		if err == nil {
			return out, nil
		}

		name := NameOf(c)
		causes = append(causes, &failure.Single{Candidate: name, Index: i, Cause: err})

		f.opts.logger.Warn(ctx, "candidate failed",
			observe.F("chain", f.opts.name),
			observe.F("candidate", name),
			observe.F("index", i),
			observe.F("remaining", len(f.candidates)-i-1),
			observe.F("error", err),
		)
		if f.opts.onFailure != nil {
			f.opts.onFailure(ctx, i, name, err)
		}
	}

	op := "dispatch: all candidates failed"
	if f.opts.name != "" {
		op = "dispatch: all candidates of " + f.opts.name + " failed"
	}
	return zero, failure.NewAggregate(op, causes...)
}
