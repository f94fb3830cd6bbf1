package resilience

import (
	"math"
	"math/rand/v2"
	"time"
)

// Attempt describes a failed attempt handed to a Strategy.
type Attempt struct {
	// Number is the 1-based index of the attempt that just failed.
	Number int

	// Started is when the attempt began.
	Started time.Time

	// Failed is when the attempt returned its error.
	Failed time.Time

	// Err is the error the attempt returned.
	Err error
}

// Strategy decides when to try again and when to stop.
//
// Contract:
//   - A Strategy is single-use and owned by one Retry.Execute call.
//   - Successive NextAttempt results never go backwards.
//   - NextAttempt is not called once Exhausted reports true.
type Strategy interface {
	NextAttempt(a Attempt) time.Time
	Exhausted() bool
}

// StrategyProvider creates a fresh Strategy for each execution, or nil when
// the operation must run exactly once.
//
// Contract:
//   - Provide must be safe for concurrent use.
type StrategyProvider interface {
	Provide() Strategy
}

// ProviderFunc adapts a function to a StrategyProvider.
type ProviderFunc func() Strategy

// Provide calls f().
func (f ProviderFunc) Provide() Strategy {
	return f()
}

// NoRetry is a provider that never yields a strategy.
var NoRetry StrategyProvider = ProviderFunc(func() Strategy { return nil })

// budget counts the retries left to a strategy.
type budget struct {
	remaining int
}

// Exhausted reports whether no retry is left.
func (b *budget) Exhausted() bool {
	return b.remaining <= 0
}

// Remaining returns the number of retries left.
func (b *budget) Remaining() int {
	return b.remaining
}

// spend consumes one retry and returns its 0-based index.
func (b *budget) spend(total int) int {
	b.remaining--
	return total - b.remaining - 1
}

// FixedDelayStrategy waits the same delay after each failure.
type FixedDelayStrategy struct {
	budget
	delay time.Duration
}

// NextAttempt implements Strategy.
func (s *FixedDelayStrategy) NextAttempt(a Attempt) time.Time {
	s.remaining--
	return a.Failed.Add(s.delay)
}

// FixedDelay retries up to maxRetries times, delay after each failure.
// It provides no strategy when maxRetries or delay is zero.
func FixedDelay(maxRetries int, delay time.Duration) StrategyProvider {
	return ProviderFunc(func() Strategy {
		if maxRetries <= 0 || delay <= 0 {
			return nil
		}
		return &FixedDelayStrategy{budget: budget{remaining: maxRetries}, delay: delay}
	})
}

// FixedIntervalStrategy starts attempts at a fixed interval, measured from
// the start of the previous attempt. A slow attempt is followed immediately.
type FixedIntervalStrategy struct {
	budget
	interval time.Duration
}

// NextAttempt implements Strategy.
func (s *FixedIntervalStrategy) NextAttempt(a Attempt) time.Time {
	s.remaining--
	return a.Started.Add(s.interval)
}

// FixedInterval retries up to maxRetries times, interval after the start of
// each failed attempt. It provides no strategy when maxRetries or interval is
// zero.
func FixedInterval(maxRetries int, interval time.Duration) StrategyProvider {
	return ProviderFunc(func() Strategy {
		if maxRetries <= 0 || interval <= 0 {
			return nil
		}
		return &FixedIntervalStrategy{budget: budget{remaining: maxRetries}, interval: interval}
	})
}

// ExponentialDelayStrategy doubles the delay after each failure.
type ExponentialDelayStrategy struct {
	budget
	total   int
	initial time.Duration
}

// NextAttempt implements Strategy.
func (s *ExponentialDelayStrategy) NextAttempt(a Attempt) time.Time {
	n := s.spend(s.total)
	return a.Failed.Add(scale(s.initial, math.Pow(2, float64(n))))
}

// ExponentialDelay retries up to maxRetries times, waiting initial, then
// 2*initial, 4*initial and so on after each failure. It provides no strategy
// when maxRetries or initial is zero.
func ExponentialDelay(maxRetries int, initial time.Duration) StrategyProvider {
	return ProviderFunc(func() Strategy {
		if maxRetries <= 0 || initial <= 0 {
			return nil
		}
		return &ExponentialDelayStrategy{
			budget:  budget{remaining: maxRetries},
			total:   maxRetries,
			initial: initial,
		}
	})
}

// PerExecutionDelayStrategy uses a dedicated delay for each retry. When
// there are more retries than delays, the last delay repeats.
type PerExecutionDelayStrategy struct {
	budget
	total  int
	delays []time.Duration
}

// NextAttempt implements Strategy.
func (s *PerExecutionDelayStrategy) NextAttempt(a Attempt) time.Time {
	n := s.spend(s.total)
	if n >= len(s.delays) {
		n = len(s.delays) - 1
	}
	return a.Failed.Add(s.delays[n])
}

// PerExecutionDelay retries up to maxRetries times, waiting delays[i] after
// the i-th failure. It provides no strategy when maxRetries is zero or
// delays is empty.
func PerExecutionDelay(maxRetries int, delays ...time.Duration) StrategyProvider {
	own := append([]time.Duration(nil), delays...)
	return ProviderFunc(func() Strategy {
		if maxRetries <= 0 || len(own) == 0 {
			return nil
		}
		return &PerExecutionDelayStrategy{
			budget: budget{remaining: maxRetries},
			total:  maxRetries,
			delays: own,
		}
	})
}

// BackoffStrategy defines how delays increase between retries.
type BackoffStrategy int

const (
	// BackoffExponential multiplies the delay each attempt.
	BackoffExponential BackoffStrategy = iota
	// BackoffLinear increases delay linearly.
	BackoffLinear
	// BackoffConstant uses the same delay for all retries.
	BackoffConstant
)

// BackoffConfig configures a Backoff provider.
type BackoffConfig struct {
	// MaxAttempts is the maximum number of attempts (including initial).
	// Default: 3
	MaxAttempts int

	// InitialDelay is the delay before the first retry.
	// Default: 100ms
	InitialDelay time.Duration

	// MaxDelay caps the maximum delay between retries.
	// Default: 30s
	MaxDelay time.Duration

	// Multiplier is the backoff multiplier for exponential backoff.
	// Default: 2.0
	Multiplier float64

	// Strategy is the backoff strategy.
	// Default: BackoffExponential
	Strategy BackoffStrategy

	// Jitter adds up to 25% random delay to spread out retries.
	Jitter bool
}

// BackoffRetry computes delays from a BackoffConfig.
type BackoffRetry struct {
	budget
	config BackoffConfig
}

// NextAttempt implements Strategy.
func (s *BackoffRetry) NextAttempt(a Attempt) time.Time {
	s.remaining--
	return a.Failed.Add(s.config.delay(a.Number))
}

// Backoff returns a provider of count-bounded backoff strategies. A
// MaxAttempts of 1 provides no strategy.
func Backoff(config BackoffConfig) StrategyProvider {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 3
	}
	if config.InitialDelay <= 0 {
		config.InitialDelay = 100 * time.Millisecond
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = 30 * time.Second
	}
	if config.Multiplier <= 0 {
		config.Multiplier = 2.0
	}
	return ProviderFunc(func() Strategy {
		if config.MaxAttempts <= 1 {
			return nil
		}
		return &BackoffRetry{budget: budget{remaining: config.MaxAttempts - 1}, config: config}
	})
}

func (c BackoffConfig) delay(attempt int) time.Duration {
	var delay time.Duration

	switch c.Strategy {
	case BackoffConstant:
		delay = c.InitialDelay
	case BackoffLinear:
		delay = c.InitialDelay * time.Duration(attempt)
	default:
		delay = scale(c.InitialDelay, math.Pow(c.Multiplier, float64(attempt-1)))
	}

	if delay > c.MaxDelay {
		delay = c.MaxDelay
	}

	if c.Jitter && delay >= 4 {
		// #nosec G404 -- jitter is non-cryptographic timing variance.
		delay += time.Duration(rand.Int64N(int64(delay / 4)))
	}

	return delay
}

// scale multiplies d by f, saturating instead of overflowing.
func scale(d time.Duration, f float64) time.Duration {
	v := float64(d) * f
	if v >= math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(v)
}
