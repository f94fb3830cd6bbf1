package resilience

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/jonwraymond/notifyops/observe"
)

// RetryConfig configures the retry behavior.
type RetryConfig struct {
	// Provider supplies a fresh Strategy for every Execute call. A nil
	// strategy means the operation runs once.
	// Default: Backoff(BackoffConfig{}) (3 attempts, exponential)
	Provider StrategyProvider

	// Clock timestamps attempts.
	// Default: the real clock
	Clock clockwork.Clock

	// Awaiter blocks between attempts.
	// Default: NewClockAwaiter(Clock)
	Awaiter Awaiter

	// RetryIf determines if an error should trigger a retry.
	// Default: all non-nil errors trigger retry.
	RetryIf func(err error) bool

	// OnRetry is called before each wait with the number of the attempt
	// that failed and the delay until the next one.
	OnRetry func(attempt int, err error, delay time.Duration)

	// Logger receives one debug line per scheduled retry.
	// Default: observe.NopLogger()
	Logger observe.Logger
}

// Retry runs an operation again after failures, as long as the strategy of
// the current call allows.
//
// Contract:
//   - The error of the final attempt is returned unchanged.
//   - A wait ended by ctx yields an *InterruptedError.
//   - Safe for concurrent use when the provider is.
type Retry struct {
	config RetryConfig
}

// NewRetry creates a new retry handler.
func NewRetry(config RetryConfig) *Retry {
	if config.Provider == nil {
		config.Provider = Backoff(BackoffConfig{})
	}
	if config.Clock == nil {
		config.Clock = clockwork.NewRealClock()
	}
	if config.Awaiter == nil {
		config.Awaiter = NewClockAwaiter(config.Clock)
	}
	if config.RetryIf == nil {
		config.RetryIf = func(err error) bool { return err != nil }
	}
	if config.Logger == nil {
		config.Logger = observe.NopLogger()
	}

	return &Retry{config: config}
}

// Execute runs op, retrying on failure.
//
// Without a strategy op runs once and its outcome is returned as is.
// Otherwise each failure is checked against RetryIf and then against the
// strategy: a non-retryable error or an exhausted strategy ends the loop
// with that error; anything else waits until the strategy's next attempt
// time and runs op again.
func (r *Retry) Execute(ctx context.Context, op func(context.Context) error) error {
	strategy := r.config.Provider.Provide()
	if strategy == nil {
		return op(ctx)
	}

	clock := r.config.Clock
	for attempt := 1; ; attempt++ {
		started := clock.Now()
		err := op(ctx)
		if err == nil {
			return nil
		}

		if !r.config.RetryIf(err) {
			return err
		}
		if strategy.Exhausted() {
			r.config.Logger.Debug(ctx, "retries exhausted",
				observe.F("attempts", attempt),
				observe.F("error", err),
			)
			return err
		}

		failed := clock.Now()
		next := strategy.NextAttempt(Attempt{
			Number:  attempt,
			Started: started,
			Failed:  failed,
			Err:     err,
		})
		delay := next.Sub(failed)

		if r.config.OnRetry != nil {
			r.config.OnRetry(attempt, err, delay)
		}
		r.config.Logger.Debug(ctx, "retry scheduled",
			observe.F("attempt", attempt),
			observe.F("delay_ms", delay.Milliseconds()),
			observe.F("error", err),
		)

		if werr := r.config.Awaiter.WaitUntil(ctx, next); werr != nil {
			return &InterruptedError{Attempts: attempt, Last: err, Cause: werr}
		}
	}
}

// Config returns the retry configuration.
func (r *Retry) Config() RetryConfig {
	return r.config
}

// Do runs op through r and returns the value of the successful attempt.
func Do[T any](ctx context.Context, r *Retry, op func(context.Context) (T, error)) (T, error) {
	var out T
	err := r.Execute(ctx, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}
