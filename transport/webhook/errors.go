package webhook

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// StatusError reports a non-2xx gateway response.
type StatusError struct {
	StatusCode int
	Body       string
}

// Error implements error.
func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("webhook: gateway returned %d", e.StatusCode)
	}
	return fmt.Sprintf("webhook: gateway returned %d: %s", e.StatusCode, e.Body)
}

// Temporary reports whether the gateway may accept the same request later.
func (e *StatusError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests || e.StatusCode == http.StatusRequestTimeout
}

// IsRetryable reports whether err is worth retrying: transport failures and
// temporary gateway statuses are, rejected requests and cancellations are
// not.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}
	if errors.Is(err, ErrWrongChannel) || errors.Is(err, ErrInvalidChannel) {
		return false
	}
	return true
}
