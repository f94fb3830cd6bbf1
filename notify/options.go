package notify

import (
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/jonwraymond/notifyops/cache"
	"github.com/jonwraymond/notifyops/condition"
	"github.com/jonwraymond/notifyops/health"
	"github.com/jonwraymond/notifyops/observe"
	"github.com/jonwraymond/notifyops/resilience"
)

// ResilienceConfig configures the executor wrapped around every sender.
// Breakers, rate limiters and bulkheads are created per sender.
type ResilienceConfig struct {
	// Retry provides the retry strategy of each send.
	// Default: resilience.NoRetry
	Retry resilience.StrategyProvider

	// RetryIf limits retries to matching errors. Default: every error.
	RetryIf func(err error) bool

	// Clock drives retry waits. Default: the real clock.
	Clock clockwork.Clock

	// Awaiter overrides the clock based retry wait.
	Awaiter resilience.Awaiter

	// Timeout bounds each attempt. Zero disables it.
	Timeout time.Duration

	// CircuitBreaker enables a breaker per sender. Name defaults to the
	// sender ID.
	CircuitBreaker *resilience.CircuitBreakerConfig

	// RateLimit enables a token bucket per sender.
	RateLimit *resilience.RateLimiterConfig

	// Bulkhead caps concurrent sends per sender.
	Bulkhead *resilience.BulkheadConfig
}

type options struct {
	logger       observe.Logger
	middleware   *observe.Middleware
	observer     observe.Observer
	resilience   ResilienceConfig
	health       health.AggregatorConfig
	capabilities condition.CapabilityProbe
	httpClient   *http.Client
	dedup        *cache.Deduplicator
}

// Option configures a Service.
type Option func(*options)

// WithLogger sets the service logger. Default: the logger of the observer
// given to WithObserver, or observe.NopLogger().
func WithLogger(l observe.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMiddleware instruments every sender call with m.
func WithMiddleware(m *observe.Middleware) Option {
	return func(o *options) {
		o.middleware = m
	}
}

// WithObserver instruments every sender call with the tracer, meter and
// logger of obs. WithMiddleware takes precedence.
func WithObserver(obs observe.Observer) Option {
	return func(o *options) {
		o.observer = obs
	}
}

// WithResilience sets the executor configuration of every sender
// registered afterwards.
func WithResilience(cfg ResilienceConfig) Option {
	return func(o *options) {
		o.resilience = cfg
	}
}

// WithHealth configures the aggregator behind Health.
func WithHealth(cfg health.AggregatorConfig) Option {
	return func(o *options) {
		o.health = cfg
	}
}

// WithCapabilities sets the probe FromConfig consults before enabling a
// transport. Default: every built-in transport is available.
func WithCapabilities(p condition.CapabilityProbe) Option {
	return func(o *options) {
		o.capabilities = p
	}
}

// WithHTTPClient sets the client of webhook senders built by FromConfig.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		o.httpClient = c
	}
}

// WithDeduplication suppresses repeated sends of messages d considers
// equal. Only successful sends are remembered.
func WithDeduplication(d *cache.Deduplicator) Option {
	return func(o *options) {
		o.dedup = d
	}
}

// applyOptions falls back to the observer's logger when no logger was
// given.
func applyOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.logger == nil {
		if o.observer != nil {
			o.logger = o.observer.Logger()
		} else {
			o.logger = observe.NopLogger()
		}
	}
	return o
}
