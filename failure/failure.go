// Package failure defines the error values shared by the dispatch and cleanup
// layers.
//
// A Single records one failed candidate or resource. An Aggregate carries the
// complete, ordered list of failures produced by a multi-candidate or
// multi-resource operation. Both implement Unwrap so errors.Is and errors.As
// reach the underlying causes.
package failure

import (
	"errors"
	"fmt"
	"strings"
)

// Single is the failure of one candidate on one attempt.
type Single struct {
	// Candidate names the implementation or resource that failed.
	Candidate string

	// Index is the zero-based position of the candidate in its sequence.
	Index int

	// Cause is the error returned by the candidate.
	Cause error
}

// Error implements error.
func (s *Single) Error() string {
	if s.Candidate == "" {
		return fmt.Sprintf("#%d: %v", s.Index, s.Cause)
	}
	return fmt.Sprintf("%s (#%d): %v", s.Candidate, s.Index, s.Cause)
}

// Unwrap returns the underlying cause.
func (s *Single) Unwrap() error {
	return s.Cause
}

// Aggregate is an error carrying every underlying failure of an operation in
// the order in which they occurred. It is immutable once created.
type Aggregate struct {
	op     string
	causes []error
}

// NewAggregate creates an Aggregate for op. Nil causes are skipped. It returns
// nil when no non-nil cause remains, so callers can return it directly.
func NewAggregate(op string, causes ...error) *Aggregate {
	kept := make([]error, 0, len(causes))
	for _, c := range causes {
		if c != nil {
			kept = append(kept, c)
		}
	}
	if len(kept) == 0 {
		return nil
	}
	return &Aggregate{op: op, causes: kept}
}

// Op returns the operation that produced the failures.
func (a *Aggregate) Op() string {
	return a.op
}

// Causes returns a copy of the ordered cause list.
func (a *Aggregate) Causes() []error {
	out := make([]error, len(a.causes))
	copy(out, a.causes)
	return out
}

// Len returns the number of causes.
func (a *Aggregate) Len() int {
	return len(a.causes)
}

// Error implements error.
func (a *Aggregate) Error() string {
	var b strings.Builder
	if a.op != "" {
		b.WriteString(a.op)
		b.WriteString(": ")
	}
	fmt.Fprintf(&b, "%d failure(s)", len(a.causes))
	for i, c := range a.causes {
		fmt.Fprintf(&b, "\n\t[%d] %v", i, c)
	}
	return b.String()
}

// Unwrap returns the causes for errors.Is and errors.As.
func (a *Aggregate) Unwrap() []error {
	return a.Causes()
}

// Causes returns the ordered causes of err when it is (or wraps) an
// Aggregate. Any other non-nil error is returned as a one-element slice.
func Causes(err error) []error {
	if err == nil {
		return nil
	}
	var agg *Aggregate
	if errors.As(err, &agg) {
		return agg.Causes()
	}
	return []error{err}
}
