package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// State represents the circuit breaker state.
type State int

const (
	// StateClosed means the circuit is operating normally.
	StateClosed State = iota
	// StateOpen means the circuit is blocking all requests.
	StateOpen
	// StateHalfOpen means the circuit is testing if the service recovered.
	StateHalfOpen
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

func fromGobreaker(s gobreaker.State) State {
	switch s {
	case gobreaker.StateOpen:
		return StateOpen
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	default:
		return StateClosed
	}
}

// CircuitBreakerConfig configures the circuit breaker.
type CircuitBreakerConfig struct {
	// Name identifies the breaker in state change callbacks.
	Name string

	// MaxFailures is the number of consecutive failures that opens the
	// circuit.
	// Default: 5
	MaxFailures int

	// ResetTimeout is how long the circuit stays open before probing.
	// Default: 30 seconds
	ResetTimeout time.Duration

	// HalfOpenMaxRequests is the number of probes allowed in half-open
	// state; that many consecutive successes close the circuit.
	// Default: 1
	HalfOpenMaxRequests int

	// OnStateChange is called when the circuit state changes.
	OnStateChange func(from, to State)

	// IsFailure determines if an error should count as a failure.
	// Default: all non-nil errors are failures.
	IsFailure func(err error) bool
}

// CircuitBreaker stops calling a failing dependency for a while.
type CircuitBreaker struct {
	config CircuitBreakerConfig

	mu sync.RWMutex
	cb *gobreaker.CircuitBreaker[struct{}]
}

// NewCircuitBreaker creates a new circuit breaker.
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	if config.MaxFailures <= 0 {
		config.MaxFailures = 5
	}
	if config.ResetTimeout <= 0 {
		config.ResetTimeout = 30 * time.Second
	}
	if config.HalfOpenMaxRequests <= 0 {
		config.HalfOpenMaxRequests = 1
	}
	if config.IsFailure == nil {
		config.IsFailure = func(err error) bool { return err != nil }
	}

	b := &CircuitBreaker{config: config}
	b.cb = b.build()
	return b
}

func (b *CircuitBreaker) build() *gobreaker.CircuitBreaker[struct{}] {
	maxFailures := uint32(b.config.MaxFailures)
	st := gobreaker.Settings{
		Name:        b.config.Name,
		MaxRequests: uint32(b.config.HalfOpenMaxRequests),
		Timeout:     b.config.ResetTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		IsSuccessful: func(err error) bool {
			return !b.config.IsFailure(err)
		},
	}
	if b.config.OnStateChange != nil {
		st.OnStateChange = func(_ string, from, to gobreaker.State) {
			b.config.OnStateChange(fromGobreaker(from), fromGobreaker(to))
		}
	}
	return gobreaker.NewCircuitBreaker[struct{}](st)
}

func (b *CircuitBreaker) current() *gobreaker.CircuitBreaker[struct{}] {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.cb
}

// Execute runs the operation through the circuit breaker. An open circuit
// returns ErrCircuitOpen without calling op.
func (b *CircuitBreaker) Execute(ctx context.Context, op func(context.Context) error) error {
	_, err := b.current().Execute(func() (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	switch {
	case errors.Is(err, gobreaker.ErrOpenState):
		return ErrCircuitOpen
	case errors.Is(err, gobreaker.ErrTooManyRequests):
		return ErrTooManyProbes
	}
	return err
}

// State returns the current circuit state.
func (b *CircuitBreaker) State() State {
	return fromGobreaker(b.current().State())
}

// Reset closes the circuit and clears its counters.
func (b *CircuitBreaker) Reset() {
	b.mu.Lock()
	old := fromGobreaker(b.cb.State())
	b.cb = b.build()
	b.mu.Unlock()

	if old != StateClosed && b.config.OnStateChange != nil {
		b.config.OnStateChange(old, StateClosed)
	}
}

// Metrics returns current circuit breaker metrics.
func (b *CircuitBreaker) Metrics() CircuitBreakerMetrics {
	cb := b.current()
	counts := cb.Counts()
	return CircuitBreakerMetrics{
		State:     fromGobreaker(cb.State()),
		Requests:  int(counts.Requests),
		Failures:  int(counts.ConsecutiveFailures),
		Successes: int(counts.ConsecutiveSuccesses),
	}
}

// CircuitBreakerMetrics contains circuit breaker statistics for the current
// generation.
type CircuitBreakerMetrics struct {
	State     State
	Requests  int
	Failures  int
	Successes int
}
