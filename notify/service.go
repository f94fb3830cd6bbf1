package notify

import (
	"context"
	"fmt"
	"net/http"
	"reflect"
	"runtime"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/jonwraymond/notifyops/cache"
	"github.com/jonwraymond/notifyops/cleanup"
	"github.com/jonwraymond/notifyops/condition"
	"github.com/jonwraymond/notifyops/dispatch"
	"github.com/jonwraymond/notifyops/health"
	"github.com/jonwraymond/notifyops/message"
	"github.com/jonwraymond/notifyops/observe"
	"github.com/jonwraymond/notifyops/resilience"
)

type (
	operation = dispatch.Operation[message.Message, message.Receipt]
	selector  = dispatch.Selector[message.Message, message.Receipt]
)

// Service routes messages to registered senders.
//
// Contract:
//   - Concurrency: safe for concurrent use.
//   - Ownership: the Service releases every resource-holding sender it was
//     given, once, in reverse registration order.
//   - Errors: sender errors are returned unchanged unless a fallback chain
//     aggregates them.
type Service struct {
	logger     observe.Logger
	middleware *observe.Middleware
	resilience ResilienceConfig
	resources  *cleanup.Registry
	health     *health.Aggregator
	dedup      *cache.Deduplicator

	mu        sync.RWMutex
	selectors map[message.Channel]*selector
	senders   map[senderKey]*instrumented
	adopted   map[Sender]struct{}
	closed    bool

	closeOnce sync.Once
	closeErr  error
	safetyNet runtime.Cleanup
}

type senderKey struct {
	channel message.Channel
	sender  Sender
}

type instrumented struct {
	meta observe.SenderMeta
	op   operation
}

// New creates an empty Service.
func New(opts ...Option) (*Service, error) {
	o := applyOptions(opts)

	mw := o.middleware
	if mw == nil && o.observer != nil {
		var err error
		mw, err = observe.MiddlewareFromObserver(o.observer)
		if err != nil {
			return nil, fmt.Errorf("notify: instrumentation: %w", err)
		}
	}
	if mw == nil {
		mw = observe.NewMiddleware(nil, nil, o.logger)
	}

	s := &Service{
		logger:     o.logger,
		middleware: mw,
		resilience: o.resilience,
		resources:  cleanup.NewRegistry(cleanup.WithLogger(o.logger)),
		health:     health.NewAggregator(o.health),
		dedup:      o.dedup,
		selectors:  make(map[message.Channel]*selector),
		senders:    make(map[senderKey]*instrumented),
		adopted:    make(map[Sender]struct{}),
	}
	s.safetyNet = runtime.AddCleanup(s, drain, s.resources)
	return s, nil
}

// drain releases what an unreachable Service still owned.
func drain(r *cleanup.Registry) {
	_ = r.Cleanup()
}

// Register adds an implementation for channel, consulted after the ones
// registered before it. One sender is registered as is; several form a
// fallback chain tried in order. A nil cond always accepts.
func (s *Service) Register(channel message.Channel, cond condition.Condition[message.Message], senders ...Sender) error {
	if channel == "" {
		return ErrEmptyChannel
	}
	kept := make([]Sender, 0, len(senders))
	for _, snd := range senders {
		if snd != nil {
			kept = append(kept, snd)
		}
	}
	if len(kept) == 0 {
		return ErrNoSenders
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	ops := make([]operation, len(kept))
	metas := make([]observe.SenderMeta, len(kept))
	for i, snd := range kept {
		w := s.instrumentLocked(channel, snd)
		ops[i], metas[i] = w.op, w.meta
		s.adoptLocked(snd, w.meta)
	}

	impl := ops[0]
	if len(ops) > 1 {
		impl = dispatch.NewFallback(ops,
			dispatch.WithName(chainName(channel, metas)),
			dispatch.WithLogger(s.logger),
			dispatch.WithFailureHook(func(ctx context.Context, index int, _ string, err error) {
				s.middleware.Metrics().RecordFallback(ctx, metas[index], err)
			}),
		)
	}

	sel, ok := s.selectors[channel]
	if !ok {
		sel = dispatch.NewSelector[message.Message, message.Receipt](
			dispatch.WithName("notify."+string(channel)),
			dispatch.WithLogger(s.logger),
		)
		s.selectors[channel] = sel
	}
	sel.Register(cond, impl)

	s.logger.Debug(context.Background(), "implementation registered",
		observe.F("channel", string(channel)),
		observe.F("implementation", dispatch.NameOf(impl)),
		observe.F("position", sel.Len()-1),
	)
	return nil
}

// instrumentLocked returns the resilient, instrumented operation of snd on
// channel. Comparable senders get one per channel, so a sender shared by
// several registrations shares its breaker and limits.
func (s *Service) instrumentLocked(channel message.Channel, snd Sender) *instrumented {
	key := senderKey{channel: channel, sender: snd}
	cacheable := isComparable(snd)
	if cacheable {
		if w, ok := s.senders[key]; ok {
			return w
		}
	}

	meta := observe.SenderMeta{Channel: string(channel), Name: snd.Name()}
	exec := s.newExecutor(meta)
	call := s.middleware.Wrap(func(ctx context.Context, _ observe.SenderMeta, in any) (any, error) {
		return snd.Send(ctx, in.(message.Message))
	})

	op := dispatch.OperationFunc[message.Message, message.Receipt](func(ctx context.Context, msg message.Message) (message.Receipt, error) {
		return resilience.Run(ctx, exec, func(ctx context.Context) (message.Receipt, error) {
			out, err := call(ctx, meta, msg)
			if err != nil {
				return message.Receipt{}, err
			}
			receipt, _ := out.(message.Receipt)
			return receipt, nil
		})
	})

	w := &instrumented{meta: meta, op: dispatch.Named(meta.Name, op)}
	if cacheable {
		s.senders[key] = w
	}
	return w
}

func (s *Service) newExecutor(meta observe.SenderMeta) *resilience.Executor {
	cfg := s.resilience
	provider := cfg.Retry
	if provider == nil {
		provider = resilience.NoRetry
	}

	opts := []resilience.ExecutorOption{
		resilience.WithRetry(resilience.NewRetry(resilience.RetryConfig{
			Provider: provider,
			Clock:    cfg.Clock,
			Awaiter:  cfg.Awaiter,
			RetryIf:  cfg.RetryIf,
			OnRetry: func(attempt int, err error, _ time.Duration) {
				s.middleware.Metrics().RecordRetry(context.Background(), meta, attempt, err)
			},
			Logger: s.logger.WithSender(meta),
		})),
	}

	if cfg.Timeout > 0 {
		opts = append(opts, resilience.WithTimeout(cfg.Timeout))
	}
	if cfg.CircuitBreaker != nil {
		cb := *cfg.CircuitBreaker
		if cb.Name == "" {
			cb.Name = meta.SenderID()
		}
		if cb.OnStateChange == nil {
			logger := s.logger.WithSender(meta)
			cb.OnStateChange = func(from, to resilience.State) {
				logger.Warn(context.Background(), "circuit state changed",
					observe.F("from", from.String()),
					observe.F("to", to.String()),
				)
			}
		}
		breaker := resilience.NewCircuitBreaker(cb)
		s.health.Register(circuitCheck(meta.SenderID()+".circuit", breaker))
		opts = append(opts, resilience.WithCircuitBreaker(breaker))
	}
	if cfg.RateLimit != nil {
		opts = append(opts, resilience.WithRateLimiter(resilience.NewRateLimiter(*cfg.RateLimit)))
	}
	if cfg.Bulkhead != nil {
		opts = append(opts, resilience.WithBulkhead(resilience.NewBulkhead(*cfg.Bulkhead)))
	}
	return resilience.NewExecutor(opts...)
}

// adoptLocked takes ownership of snd's resources and health check, once
// per sender.
func (s *Service) adoptLocked(snd Sender, meta observe.SenderMeta) {
	if isComparable(snd) {
		if _, ok := s.adopted[snd]; ok {
			return
		}
		s.adopted[snd] = struct{}{}
	}

	if s.resources.Track(snd) {
		s.logger.Debug(context.Background(), "sender tracked for cleanup", observe.F("sender", meta.SenderID()))
	}
	if p, ok := snd.(health.Pinger); ok {
		s.health.Register(health.PingCheck(meta.SenderID(), p))
	}
}

// Send validates msg, assigns its ID and hands it to the first
// implementation of its channel whose condition accepts it. A channel
// without accepting implementation yields a
// *dispatch.NoMatchingImplementationError. With deduplication a message
// already delivered returns its earlier receipt.
func (s *Service) Send(ctx context.Context, msg message.Message) (message.Receipt, error) {
	if msg == nil {
		return message.Receipt{}, ErrNilMessage
	}
	if err := msg.Validate(); err != nil {
		return message.Receipt{}, fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}
	msg.EnsureID()

	s.mu.RLock()
	closed := s.closed
	sel := s.selectors[msg.Channel()]
	s.mu.RUnlock()

	if closed {
		return message.Receipt{}, ErrClosed
	}
	if sel == nil {
		return message.Receipt{}, &dispatch.NoMatchingImplementationError{Selector: "notify." + string(msg.Channel())}
	}
	if s.dedup != nil {
		return s.dedup.Send(ctx, msg, sel.Dispatch)
	}
	return sel.Dispatch(ctx, msg)
}

// Supports reports whether Send would find an implementation for msg.
func (s *Service) Supports(msg message.Message) bool {
	if msg == nil {
		return false
	}
	s.mu.RLock()
	sel := s.selectors[msg.Channel()]
	s.mu.RUnlock()
	return sel != nil && sel.Supports(msg)
}

// Channels returns the channels with at least one registration, sorted.
func (s *Service) Channels() []message.Channel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]message.Channel, 0, len(s.selectors))
	for ch := range s.selectors {
		out = append(out, ch)
	}
	slices.Sort(out)
	return out
}

// Health runs the health checks of every sender implementing
// health.Pinger.
func (s *Service) Health(ctx context.Context) (health.Status, map[string]health.Result) {
	results := s.health.CheckAll(ctx)
	return health.OverallStatus(results), results
}

// HealthHandler serves the sender health checks as JSON.
func (s *Service) HealthHandler() http.Handler {
	return health.DetailedHandler(s.health)
}

// Clean releases every resource tracked so far, most recent first, and
// keeps the Service open. Senders registered later are tracked again.
func (s *Service) Clean() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.adopted)
	return s.resources.Cleanup()
}

// Close stops the Service and releases its resources. Only the first call
// releases anything; later calls return the same result.
func (s *Service) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()

		// Nothing is logged after the drain: the logger may be among the
		// released resources.
		s.logger.Debug(context.Background(), "closing service", observe.F("resources", s.resources.Len()))
		s.safetyNet.Stop()
		if err := s.resources.Cleanup(); err != nil {
			s.closeErr = &CloseError{Err: err}
		}
	})
	return s.closeErr
}

// circuitCheck reports an open breaker as unhealthy and a half-open one as
// degraded.
func circuitCheck(name string, cb *resilience.CircuitBreaker) health.Checker {
	return health.NewCheckerFunc(name, func(context.Context) health.Result {
		m := cb.Metrics()
		var r health.Result
		switch m.State {
		case resilience.StateOpen:
			r = health.Unhealthy("circuit open", resilience.ErrCircuitOpen)
		case resilience.StateHalfOpen:
			r = health.Degraded("circuit half-open")
		default:
			r = health.Healthy("circuit closed")
		}
		return r.WithDetails(map[string]any{"consecutive_failures": m.Failures})
	})
}

func chainName(channel message.Channel, metas []observe.SenderMeta) string {
	names := make([]string, len(metas))
	for i, m := range metas {
		names[i] = m.Name
	}
	return string(channel) + ":" + strings.Join(names, ">")
}

// isComparable checks the dynamic value, so a struct holding a slice in an
// interface field is not used as a map key.
func isComparable(v any) bool {
	return reflect.ValueOf(v).Comparable()
}
