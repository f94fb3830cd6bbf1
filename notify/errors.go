package notify

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed is returned by operations on a closed Service.
	ErrClosed = errors.New("notify: service closed")

	// ErrNilMessage is returned by Send for a nil message.
	ErrNilMessage = errors.New("notify: nil message")

	// ErrInvalidMessage wraps message validation failures.
	ErrInvalidMessage = errors.New("notify: invalid message")

	// ErrNoSenders is returned by Register without senders.
	ErrNoSenders = errors.New("notify: no senders")

	// ErrEmptyChannel is returned by Register for an empty channel.
	ErrEmptyChannel = errors.New("notify: empty channel")

	// ErrNoTransports is returned by FromConfig when configuration enables
	// no sender at all.
	ErrNoTransports = errors.New("notify: no transport configured")

	// ErrUnknownDedupKey is returned by FromConfig for an unsupported
	// notify.dedup.key.
	ErrUnknownDedupKey = errors.New("notify: unknown dedup key")
)

// CloseError reports resources that failed to release during Close.
type CloseError struct {
	// Err is the release failure, usually a *failure.Aggregate.
	Err error
}

// Error implements error.
func (e *CloseError) Error() string {
	return fmt.Sprintf("notify: close: %v", e.Err)
}

// Unwrap returns the release failure.
func (e *CloseError) Unwrap() error {
	return e.Err
}
