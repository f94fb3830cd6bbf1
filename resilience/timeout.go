package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// TimeoutConfig configures the timeout wrapper.
type TimeoutConfig struct {
	// Timeout is the maximum duration of one attempt.
	// Default: 30 seconds
	Timeout time.Duration
}

// Timeout bounds the duration of each attempt.
type Timeout struct {
	config TimeoutConfig
}

// NewTimeout creates a Timeout.
func NewTimeout(config TimeoutConfig) *Timeout {
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	return &Timeout{config: config}
}

// Execute runs op under a deadline whose cause is ErrTimeout.
//
// An op that overruns is abandoned: Execute returns ErrTimeout at the
// deadline and op, whose context is then done, is expected to give up on its
// own. An op that reports the deadline itself gets its error wrapped so it
// matches ErrTimeout too. Cancellation of ctx is returned as ctx's cause.
func (t *Timeout) Execute(ctx context.Context, op func(context.Context) error) error {
	attemptCtx, cancel := context.WithTimeoutCause(ctx, t.config.Timeout, ErrTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- op(attemptCtx)
	}()

	select {
	case err := <-done:
		if err != nil && errors.Is(err, context.DeadlineExceeded) && context.Cause(attemptCtx) == ErrTimeout {
			return fmt.Errorf("%w: %w", ErrTimeout, err)
		}
		return err
	case <-attemptCtx.Done():
		return context.Cause(attemptCtx)
	}
}

// Config returns the timeout configuration.
func (t *Timeout) Config() TimeoutConfig {
	return t.config
}

// ExecuteWithTimeout runs op with a one-off Timeout.
func ExecuteWithTimeout(ctx context.Context, timeout time.Duration, op func(context.Context) error) error {
	return NewTimeout(TimeoutConfig{Timeout: timeout}).Execute(ctx, op)
}
