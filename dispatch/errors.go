package dispatch

import (
	"errors"
	"fmt"
)

var (
	// ErrNoMatchingImplementation indicates that no registered condition
	// accepted the input.
	ErrNoMatchingImplementation = errors.New("dispatch: no matching implementation")

	// ErrNoCandidates indicates a Fallback built with no candidates.
	ErrNoCandidates = errors.New("dispatch: no candidates")
)

// NoMatchingImplementationError reports a Selector dispatch where every
// condition rejected the input. It matches ErrNoMatchingImplementation with
// errors.Is.
type NoMatchingImplementationError struct {
	// Selector is the name of the selector, if it has one.
	Selector string

	// Evaluated is the number of entries whose condition was evaluated.
	Evaluated int
}

// Error implements error.
func (e *NoMatchingImplementationError) Error() string {
	if e.Selector != "" {
		return fmt.Sprintf("dispatch: no matching implementation in %s (%d evaluated)", e.Selector, e.Evaluated)
	}
	return fmt.Sprintf("dispatch: no matching implementation (%d evaluated)", e.Evaluated)
}

// Is reports whether target is ErrNoMatchingImplementation.
func (e *NoMatchingImplementationError) Is(target error) bool {
	return target == ErrNoMatchingImplementation
}
