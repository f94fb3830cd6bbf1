package resilience

import (
	"errors"
	"fmt"
)

// Sentinel errors for resilience operations.
var (
	// ErrCircuitOpen is returned when the circuit breaker is open.
	ErrCircuitOpen = errors.New("resilience: circuit breaker is open")

	// ErrTooManyProbes is returned when a half-open breaker already has
	// its maximum number of trial calls in flight.
	ErrTooManyProbes = errors.New("resilience: too many half-open requests")

	// ErrRetryInterrupted is matched by an *InterruptedError.
	ErrRetryInterrupted = errors.New("resilience: retry interrupted")

	// ErrRateLimitExceeded is returned when the rate limit is exceeded.
	ErrRateLimitExceeded = errors.New("resilience: rate limit exceeded")

	// ErrBulkheadFull is returned when the bulkhead is at capacity.
	ErrBulkheadFull = errors.New("resilience: bulkhead at capacity")

	// ErrTimeout is returned when an operation times out.
	ErrTimeout = errors.New("resilience: operation timed out")
)

// InterruptedError reports a retry loop stopped while waiting for its next
// attempt. It matches ErrRetryInterrupted and the context error with
// errors.Is, and exposes the last failure of the operation.
type InterruptedError struct {
	// Attempts is the number of times the operation ran.
	Attempts int

	// Last is the error returned by the last attempt.
	Last error

	// Cause is the reason the wait ended, usually a context error.
	Cause error
}

// Error implements error.
func (e *InterruptedError) Error() string {
	return fmt.Sprintf("resilience: retry interrupted after %d attempt(s): %v (last error: %v)", e.Attempts, e.Cause, e.Last)
}

// Is reports whether target is ErrRetryInterrupted.
func (e *InterruptedError) Is(target error) bool {
	return target == ErrRetryInterrupted
}

// Unwrap returns the interruption cause and the last attempt error.
func (e *InterruptedError) Unwrap() []error {
	return []error{e.Cause, e.Last}
}
