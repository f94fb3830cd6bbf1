// Package resilience provides resilience patterns for sending notifications.
//
// # Retry
//
// Retry repeats a failing operation under a Strategy. The Strategy is made
// fresh for every call by a StrategyProvider and decides both when the next
// attempt happens and when to give up; Retry itself only loops and waits.
// Waiting goes through an Awaiter so tests can drive time with a
// clockwork.FakeClock.
//
// Providers:
//
//   - FixedDelay: the same delay after each failure.
//   - FixedInterval: attempts start a fixed interval apart.
//   - ExponentialDelay: the delay doubles after each failure.
//   - PerExecutionDelay: an explicit delay per retry, the last one repeating.
//   - Backoff: exponential, linear or constant delays with a cap and jitter.
//
// Every provider yields no strategy when configured with zero retries or a
// zero delay; the operation then runs exactly once.
//
// # Other patterns
//
//   - CircuitBreaker (sony/gobreaker): stops calling a dependency after
//     consecutive failures and probes it again after a timeout.
//   - RateLimiter (x/time/rate): token bucket.
//   - Bulkhead (x/sync/semaphore): bounds concurrent calls.
//   - Timeout: bounds each attempt.
//
// # Usage
//
//	retry := resilience.NewRetry(resilience.RetryConfig{
//	    Provider: resilience.ExponentialDelay(3, 500*time.Millisecond),
//	})
//
//	executor := resilience.NewExecutor(
//	    resilience.WithCircuitBreaker(resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{})),
//	    resilience.WithRetry(retry),
//	    resilience.WithTimeout(10*time.Second),
//	)
//
//	err := executor.Execute(ctx, func(ctx context.Context) error {
//	    return smtpSender.Send(ctx, msg)
//	})
package resilience
