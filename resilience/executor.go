package resilience

import (
	"context"
	"sync"
	"time"
)

// Pattern is one resilience layer around an operation.
type Pattern interface {
	Execute(ctx context.Context, op func(context.Context) error) error
}

// Layer positions, outermost first.
const (
	layerRateLimit = iota
	layerBulkhead
	layerCircuit
	layerRetry
	layerTimeout
	layerCount
)

// Executor composes resilience patterns in a fixed order, outermost first:
//
//  1. RateLimiter: spends a token per send, not per attempt
//  2. Bulkhead: caps sends in flight
//  3. CircuitBreaker: rejects sends while open and sees only the final
//     outcome of a retried send
//  4. Retry: repeats failed attempts
//  5. Timeout: bounds each attempt
//
// The order does not depend on the order of the options.
type Executor struct {
	layers [layerCount]Pattern

	retry          *Retry
	circuitBreaker *CircuitBreaker
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// NewExecutor creates an Executor. With no options Execute simply calls the
// operation.
func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// WithCircuitBreaker adds a circuit breaker.
func WithCircuitBreaker(cb *CircuitBreaker) ExecutorOption {
	return func(e *Executor) {
		e.circuitBreaker = cb
		e.set(layerCircuit, cb)
	}
}

// WithRetry adds retries.
func WithRetry(r *Retry) ExecutorOption {
	return func(e *Executor) {
		e.retry = r
		e.set(layerRetry, r)
	}
}

// WithRateLimiter adds rate limiting.
func WithRateLimiter(rl *RateLimiter) ExecutorOption {
	return func(e *Executor) {
		e.set(layerRateLimit, rl)
	}
}

// WithBulkhead adds concurrency isolation.
func WithBulkhead(b *Bulkhead) ExecutorOption {
	return func(e *Executor) {
		e.set(layerBulkhead, b)
	}
}

// WithTimeout bounds every attempt to timeout.
func WithTimeout(timeout time.Duration) ExecutorOption {
	return WithTimeoutConfig(NewTimeout(TimeoutConfig{Timeout: timeout}))
}

// WithTimeoutConfig adds a preconfigured Timeout.
func WithTimeoutConfig(t *Timeout) ExecutorOption {
	return func(e *Executor) {
		e.set(layerTimeout, t)
	}
}

// set stores p at pos; a typed nil pointer clears the slot.
func (e *Executor) set(pos int, p Pattern) {
	switch v := p.(type) {
	case *RateLimiter:
		if v == nil {
			p = nil
		}
	case *Bulkhead:
		if v == nil {
			p = nil
		}
	case *CircuitBreaker:
		if v == nil {
			p = nil
		}
	case *Retry:
		if v == nil {
			p = nil
		}
	case *Timeout:
		if v == nil {
			p = nil
		}
	}
	e.layers[pos] = p
}

// Retry returns the configured retry handler, or nil.
func (e *Executor) Retry() *Retry {
	return e.retry
}

// CircuitBreaker returns the configured circuit breaker, or nil.
func (e *Executor) CircuitBreaker() *CircuitBreaker {
	return e.circuitBreaker
}

// Execute runs op through every configured pattern.
func (e *Executor) Execute(ctx context.Context, op func(context.Context) error) error {
	call := op
	for i := layerCount - 1; i >= 0; i-- {
		p := e.layers[i]
		if p == nil {
			continue
		}
		next := call
		call = func(ctx context.Context) error {
			return p.Execute(ctx, next)
		}
	}
	return call(ctx)
}

// Run executes op through e and returns its value.
//
// An attempt abandoned by a Timeout may still finish after a later attempt
// started. Only the value of the most recently started successful attempt
// is returned, which is the attempt whose success Execute reports.
func Run[T any](ctx context.Context, e *Executor, op func(context.Context) (T, error)) (T, error) {
	var (
		mu        sync.Mutex
		started   int
		published int
		out       T
	)
	err := e.Execute(ctx, func(ctx context.Context) error {
		mu.Lock()
		started++
		n := started
		mu.Unlock()

		v, err := op(ctx)
		if err != nil {
			return err
		}

		mu.Lock()
		if n > published {
			published, out = n, v
		}
		mu.Unlock()
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}

	mu.Lock()
	defer mu.Unlock()
	return out, nil
}
