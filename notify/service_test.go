package notify

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/jonwraymond/notifyops/cache"
	"github.com/jonwraymond/notifyops/condition"
	"github.com/jonwraymond/notifyops/dispatch"
	"github.com/jonwraymond/notifyops/failure"
	"github.com/jonwraymond/notifyops/health"
	"github.com/jonwraymond/notifyops/message"
	"github.com/jonwraymond/notifyops/observe"
	"github.com/jonwraymond/notifyops/resilience"
)

var (
	errDown    = errors.New("backend down")
	errRelease = errors.New("release failed")
)

// fakeSender fails its first `fails` sends with err (every send when fails
// is zero), and records releases into log.
type fakeSender struct {
	name       string
	err        error
	fails      int
	pingErr    error
	releaseErr error
	log        *releaseLog

	mu    sync.Mutex
	calls int
}

func (f *fakeSender) Name() string { return f.name }

func (f *fakeSender) Send(_ context.Context, msg message.Message) (message.Receipt, error) {
	f.mu.Lock()
	f.calls++
	n := f.calls
	f.mu.Unlock()

	if f.err != nil && (f.fails == 0 || n <= f.fails) {
		return message.Receipt{}, f.err
	}
	return message.Receipt{MessageID: msg.EnsureID(), Channel: msg.Channel(), Sender: f.name}, nil
}

func (f *fakeSender) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeSender) Ping(context.Context) error { return f.pingErr }

func (f *fakeSender) Close() error {
	if f.log != nil {
		f.log.add(f.name)
	}
	return f.releaseErr
}

type releaseLog struct {
	mu    sync.Mutex
	names []string
}

func (l *releaseLog) add(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.names = append(l.names, name)
}

func (l *releaseLog) get() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.names...)
}

// recordingMetrics counts metric calls per sender ID.
type recordingMetrics struct {
	mu        sync.Mutex
	sends     []string
	fallbacks []string
	retries   []int
}

func (m *recordingMetrics) RecordSend(_ context.Context, meta observe.SenderMeta, _ time.Duration, _ error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sends = append(m.sends, meta.SenderID())
}

func (m *recordingMetrics) RecordFallback(_ context.Context, meta observe.SenderMeta, _ error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallbacks = append(m.fallbacks, meta.SenderID())
}

func (m *recordingMetrics) RecordRetry(_ context.Context, _ observe.SenderMeta, attempt int, _ error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.retries = append(m.retries, attempt)
}

func newService(t *testing.T, opts ...Option) *Service {
	t.Helper()
	svc, err := New(opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = svc.Close() })
	return svc
}

func email() *message.Email {
	return &message.Email{
		From:    "ops@example.com",
		To:      []string{"jane@example.com"},
		Subject: "Deploy finished",
		Text:    "All green.",
	}
}

func always() condition.Condition[message.Message] {
	return condition.Always[message.Message]()
}

func TestService_SendRoutesToFirstAcceptingRegistration(t *testing.T) {
	svc := newService(t)
	a := &fakeSender{name: "a"}
	b := &fakeSender{name: "b"}
	c := &fakeSender{name: "c"}

	_ = svc.Register(message.ChannelEmail, condition.Never[message.Message](), a)
	_ = svc.Register(message.ChannelEmail, always(), b)
	_ = svc.Register(message.ChannelEmail, always(), c)

	receipt, err := svc.Send(context.Background(), email())
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if receipt.Sender != "b" {
		t.Errorf("Sender = %q, want %q", receipt.Sender, "b")
	}
	if a.Calls() != 0 || c.Calls() != 0 {
		t.Errorf("calls a=%d c=%d, want 0 0", a.Calls(), c.Calls())
	}
}

func TestService_SendAssignsID(t *testing.T) {
	svc := newService(t)
	_ = svc.Register(message.ChannelEmail, nil, &fakeSender{name: "a"})

	msg := email()
	receipt, err := svc.Send(context.Background(), msg)
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if msg.ID == "" {
		t.Fatal("message ID not assigned")
	}
	if receipt.MessageID != msg.ID {
		t.Errorf("MessageID = %q, want %q", receipt.MessageID, msg.ID)
	}

	msg = email()
	msg.ID = "fixed"
	receipt, _ = svc.Send(context.Background(), msg)
	if receipt.MessageID != "fixed" {
		t.Errorf("MessageID = %q, want %q", receipt.MessageID, "fixed")
	}
}

func TestService_SendRejectsInvalidMessages(t *testing.T) {
	svc := newService(t)
	a := &fakeSender{name: "a"}
	_ = svc.Register(message.ChannelEmail, nil, a)

	if _, err := svc.Send(context.Background(), nil); !errors.Is(err, ErrNilMessage) {
		t.Errorf("Send(nil) error = %v, want ErrNilMessage", err)
	}

	msg := email()
	msg.To = nil
	_, err := svc.Send(context.Background(), msg)
	if !errors.Is(err, ErrInvalidMessage) || !errors.Is(err, message.ErrNoRecipients) {
		t.Errorf("Send() error = %v, want ErrInvalidMessage wrapping ErrNoRecipients", err)
	}
	if a.Calls() != 0 {
		t.Errorf("calls = %d, want 0", a.Calls())
	}
}

func TestService_SendWithoutImplementation(t *testing.T) {
	svc := newService(t)
	_ = svc.Register(message.ChannelEmail, condition.Never[message.Message](), &fakeSender{name: "a"})

	tests := []struct {
		name      string
		msg       message.Message
		selector  string
		evaluated int
	}{
		{"all rejected", email(), "notify.email", 1},
		{"unknown channel", &message.SMS{To: "+15551234567", Body: "hi"}, "notify.sms", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Send(context.Background(), tt.msg)
			if !errors.Is(err, dispatch.ErrNoMatchingImplementation) {
				t.Fatalf("Send() error = %v, want ErrNoMatchingImplementation", err)
			}
			var nm *dispatch.NoMatchingImplementationError
			if !errors.As(err, &nm) {
				t.Fatalf("error %T is not *NoMatchingImplementationError", err)
			}
			if nm.Selector != tt.selector || nm.Evaluated != tt.evaluated {
				t.Errorf("error = %+v, want selector %q evaluated %d", nm, tt.selector, tt.evaluated)
			}
		})
	}
}

func TestService_FallbackChain(t *testing.T) {
	metrics := &recordingMetrics{}
	svc := newService(t, WithMiddleware(observe.NewMiddleware(nil, metrics, nil)))

	primary := &fakeSender{name: "primary", err: errDown}
	secondary := &fakeSender{name: "secondary"}
	if err := svc.Register(message.ChannelEmail, nil, primary, secondary); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	receipt, err := svc.Send(context.Background(), email())
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if receipt.Sender != "secondary" {
		t.Errorf("Sender = %q, want %q", receipt.Sender, "secondary")
	}
	if primary.Calls() != 1 || secondary.Calls() != 1 {
		t.Errorf("calls = %d/%d, want 1/1", primary.Calls(), secondary.Calls())
	}

	metrics.mu.Lock()
	defer metrics.mu.Unlock()
	if !reflect.DeepEqual(metrics.fallbacks, []string{"email.primary"}) {
		t.Errorf("fallbacks = %v, want [email.primary]", metrics.fallbacks)
	}
	if !reflect.DeepEqual(metrics.sends, []string{"email.primary", "email.secondary"}) {
		t.Errorf("sends = %v, want [email.primary email.secondary]", metrics.sends)
	}
}

func TestService_FallbackChainAllFail(t *testing.T) {
	svc := newService(t)
	errOther := errors.New("quota exceeded")
	_ = svc.Register(message.ChannelEmail, nil,
		&fakeSender{name: "a", err: errDown},
		&fakeSender{name: "b", err: errOther},
	)

	_, err := svc.Send(context.Background(), email())
	if !errors.Is(err, errDown) || !errors.Is(err, errOther) {
		t.Fatalf("Send() error = %v, want both causes", err)
	}
	causes := failure.Causes(err)
	if len(causes) != 2 {
		t.Fatalf("len(causes) = %d, want 2", len(causes))
	}
	var first *failure.Single
	if !errors.As(causes[0], &first) || first.Candidate != "a" || first.Index != 0 {
		t.Errorf("causes[0] = %v, want candidate a at index 0", causes[0])
	}
}

func TestService_Retry(t *testing.T) {
	metrics := &recordingMetrics{}
	svc := newService(t,
		WithMiddleware(observe.NewMiddleware(nil, metrics, nil)),
		WithResilience(ResilienceConfig{Retry: resilience.FixedDelay(3, time.Millisecond)}),
	)
	flaky := &fakeSender{name: "flaky", err: errDown, fails: 2}
	_ = svc.Register(message.ChannelEmail, nil, flaky)

	if _, err := svc.Send(context.Background(), email()); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if flaky.Calls() != 3 {
		t.Errorf("calls = %d, want 3", flaky.Calls())
	}

	metrics.mu.Lock()
	defer metrics.mu.Unlock()
	if !reflect.DeepEqual(metrics.retries, []int{1, 2}) {
		t.Errorf("retries = %v, want [1 2]", metrics.retries)
	}
}

func TestService_RetryIf(t *testing.T) {
	svc := newService(t, WithResilience(ResilienceConfig{
		Retry:   resilience.FixedDelay(3, time.Millisecond),
		RetryIf: func(err error) bool { return !errors.Is(err, errDown) },
	}))
	down := &fakeSender{name: "down", err: errDown}
	_ = svc.Register(message.ChannelEmail, nil, down)

	_, err := svc.Send(context.Background(), email())
	if !errors.Is(err, errDown) {
		t.Fatalf("Send() error = %v, want errDown", err)
	}
	if down.Calls() != 1 {
		t.Errorf("calls = %d, want 1", down.Calls())
	}
}

func TestService_CircuitBreakerPerSender(t *testing.T) {
	svc := newService(t, WithResilience(ResilienceConfig{
		CircuitBreaker: &resilience.CircuitBreakerConfig{MaxFailures: 2, ResetTimeout: time.Hour},
	}))
	down := &fakeSender{name: "down", err: errDown}
	up := &fakeSender{name: "up"}
	_ = svc.Register(message.ChannelEmail, nil, down, up)

	for i := 0; i < 4; i++ {
		if _, err := svc.Send(context.Background(), email()); err != nil {
			t.Fatalf("Send() #%d error = %v", i, err)
		}
	}
	if down.Calls() != 2 {
		t.Errorf("down calls = %d, want 2 before the breaker opened", down.Calls())
	}
	if up.Calls() != 4 {
		t.Errorf("up calls = %d, want 4", up.Calls())
	}
}

func TestService_SharedSenderSharesBreaker(t *testing.T) {
	svc := newService(t, WithResilience(ResilienceConfig{
		CircuitBreaker: &resilience.CircuitBreakerConfig{MaxFailures: 1, ResetTimeout: time.Hour},
	}))
	down := &fakeSender{name: "down", err: errDown}
	_ = svc.Register(message.ChannelEmail, condition.Func[message.Message](func(m message.Message) bool {
		return len(m.Recipients()) > 1
	}), down)
	_ = svc.Register(message.ChannelEmail, nil, down)

	_, _ = svc.Send(context.Background(), email())

	both := email()
	both.To = append(both.To, "joe@example.com")
	_, err := svc.Send(context.Background(), both)
	if !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Errorf("Send() error = %v, want ErrCircuitOpen", err)
	}
	if down.Calls() != 1 {
		t.Errorf("calls = %d, want 1", down.Calls())
	}
}

func TestService_Deduplication(t *testing.T) {
	dedup, err := cache.NewDeduplicator(cache.NewMemoryCache(10), cache.DefaultPolicy())
	if err != nil {
		t.Fatal(err)
	}
	svc := newService(t, WithDeduplication(dedup))
	flaky := &fakeSender{name: "flaky", err: errDown, fails: 1}
	_ = svc.Register(message.ChannelEmail, nil, flaky)

	send := func() (message.Receipt, error) {
		msg := email()
		msg.ID = "order-42"
		return svc.Send(context.Background(), msg)
	}

	if _, err := send(); !errors.Is(err, errDown) {
		t.Fatalf("first Send() error = %v, want errDown", err)
	}
	for i := 0; i < 2; i++ {
		receipt, err := send()
		if err != nil {
			t.Fatalf("Send() error = %v", err)
		}
		if receipt.MessageID != "order-42" {
			t.Errorf("MessageID = %q, want order-42", receipt.MessageID)
		}
	}
	if flaky.Calls() != 2 {
		t.Errorf("calls = %d, want 2: one failure, then one delivery", flaky.Calls())
	}
}

func TestService_RegisterErrors(t *testing.T) {
	svc := newService(t)
	if err := svc.Register("", nil, &fakeSender{name: "a"}); !errors.Is(err, ErrEmptyChannel) {
		t.Errorf("Register(\"\") error = %v, want ErrEmptyChannel", err)
	}
	if err := svc.Register(message.ChannelEmail, nil); !errors.Is(err, ErrNoSenders) {
		t.Errorf("Register() error = %v, want ErrNoSenders", err)
	}
	if err := svc.Register(message.ChannelEmail, nil, nil, nil); !errors.Is(err, ErrNoSenders) {
		t.Errorf("Register(nil, nil) error = %v, want ErrNoSenders", err)
	}
	if got := svc.Channels(); len(got) != 0 {
		t.Errorf("Channels() = %v, want none", got)
	}
}

func TestService_SupportsAndChannels(t *testing.T) {
	svc := newService(t)
	_ = svc.Register(message.ChannelSMS, nil, &fakeSender{name: "sms"})
	_ = svc.Register(message.ChannelEmail, condition.Never[message.Message](), &fakeSender{name: "a"})

	if got := svc.Channels(); !reflect.DeepEqual(got, []message.Channel{message.ChannelEmail, message.ChannelSMS}) {
		t.Errorf("Channels() = %v, want [email sms]", got)
	}
	if svc.Supports(email()) {
		t.Error("Supports(email) = true, want false")
	}
	if !svc.Supports(&message.SMS{To: "+15551234567", Body: "hi"}) {
		t.Error("Supports(sms) = false, want true")
	}
	if svc.Supports(nil) {
		t.Error("Supports(nil) = true, want false")
	}
}

func TestService_CloseReleasesInReverseOrder(t *testing.T) {
	log := &releaseLog{}
	svc, _ := New()
	a := &fakeSender{name: "a", log: log}
	b := &fakeSender{name: "b", log: log}
	c := &fakeSender{name: "c", log: log}
	_ = svc.Register(message.ChannelEmail, nil, a)
	_ = svc.Register(message.ChannelEmail, nil, b, c)
	_ = svc.Register(message.ChannelSMS, nil, a)

	if err := svc.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if got := log.get(); !reflect.DeepEqual(got, []string{"c", "b", "a"}) {
		t.Errorf("released = %v, want [c b a]", got)
	}

	if err := svc.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if got := log.get(); len(got) != 3 {
		t.Errorf("released after second Close = %v, want no more releases", got)
	}

	if _, err := svc.Send(context.Background(), email()); !errors.Is(err, ErrClosed) {
		t.Errorf("Send() after Close error = %v, want ErrClosed", err)
	}
	if err := svc.Register(message.ChannelEmail, nil, &fakeSender{name: "d"}); !errors.Is(err, ErrClosed) {
		t.Errorf("Register() after Close error = %v, want ErrClosed", err)
	}
}

func TestService_CloseError(t *testing.T) {
	log := &releaseLog{}
	svc, _ := New()
	_ = svc.Register(message.ChannelEmail, nil,
		&fakeSender{name: "a", log: log, releaseErr: errRelease},
		&fakeSender{name: "b", log: log},
	)

	err := svc.Close()
	var closeErr *CloseError
	if !errors.As(err, &closeErr) {
		t.Fatalf("Close() error = %v, want *CloseError", err)
	}
	if !errors.Is(err, errRelease) {
		t.Errorf("Close() error = %v, want errRelease in chain", err)
	}
	if got := log.get(); !reflect.DeepEqual(got, []string{"b", "a"}) {
		t.Errorf("released = %v, want [b a]", got)
	}
	if again := svc.Close(); again != err {
		t.Errorf("second Close() = %v, want the first result", again)
	}
}

func TestService_Clean(t *testing.T) {
	log := &releaseLog{}
	svc := newService(t)
	a := &fakeSender{name: "a", log: log}
	_ = svc.Register(message.ChannelEmail, nil, a)

	if err := svc.Clean(); err != nil {
		t.Fatalf("Clean() error = %v", err)
	}
	if err := svc.Clean(); err != nil {
		t.Fatalf("second Clean() error = %v", err)
	}
	if got := log.get(); !reflect.DeepEqual(got, []string{"a"}) {
		t.Errorf("released = %v, want [a]", got)
	}
	if _, err := svc.Send(context.Background(), email()); err != nil {
		t.Errorf("Send() after Clean error = %v", err)
	}
}

// taggedSender is a value whose type is comparable but whose tags field may
// hold an uncomparable value.
type taggedSender struct {
	name string
	tags any
}

func (s taggedSender) Name() string { return s.name }

func (s taggedSender) Send(_ context.Context, msg message.Message) (message.Receipt, error) {
	return message.Receipt{MessageID: msg.EnsureID(), Channel: msg.Channel(), Sender: s.name}, nil
}

func TestService_UncomparableSenderValue(t *testing.T) {
	svc := newService(t)
	snd := taggedSender{name: "tagged", tags: []string{"bulk"}}

	for i := 0; i < 2; i++ {
		if err := svc.Register(message.ChannelEmail, nil, snd); err != nil {
			t.Fatalf("Register() error = %v", err)
		}
	}
	receipt, err := svc.Send(context.Background(), email())
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if receipt.Sender != "tagged" {
		t.Errorf("Sender = %q, want %q", receipt.Sender, "tagged")
	}
}

func TestService_CleanThenRegisterAgain(t *testing.T) {
	log := &releaseLog{}
	svc, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	a := &fakeSender{name: "a", log: log}

	_ = svc.Register(message.ChannelEmail, nil, a)
	if err := svc.Clean(); err != nil {
		t.Fatalf("Clean() error = %v", err)
	}
	if err := svc.Register(message.ChannelSMS, nil, a); err != nil {
		t.Fatalf("Register() after Clean error = %v", err)
	}
	if err := svc.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if got := log.get(); !reflect.DeepEqual(got, []string{"a", "a"}) {
		t.Errorf("released = %v, want [a a]", got)
	}
}

func TestService_UnreachableServiceIsDrained(t *testing.T) {
	log := &releaseLog{}
	func() {
		svc, _ := New()
		_ = svc.Register(message.ChannelEmail, nil, &fakeSender{name: "leaked", log: log})
	}()

	deadline := time.Now().Add(5 * time.Second)
	for len(log.get()) == 0 && time.Now().Before(deadline) {
		runtime.GC()
		time.Sleep(10 * time.Millisecond)
	}
	if got := log.get(); !reflect.DeepEqual(got, []string{"leaked"}) {
		t.Errorf("released = %v, want [leaked]", got)
	}
}

func TestService_Health(t *testing.T) {
	svc := newService(t)
	_ = svc.Register(message.ChannelEmail, nil,
		&fakeSender{name: "ok"},
		&fakeSender{name: "broken", pingErr: errDown},
	)
	_ = svc.Register(message.ChannelSMS, nil, NewSenderFunc("plain", func(context.Context, message.Message) (message.Receipt, error) {
		return message.Receipt{}, nil
	}))

	status, results := svc.Health(context.Background())
	if status != health.StatusUnhealthy {
		t.Errorf("status = %v, want unhealthy", status)
	}
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}
	if results["email.ok"].Status != health.StatusHealthy {
		t.Errorf("email.ok = %v, want healthy", results["email.ok"].Status)
	}
	if results["email.broken"].Status != health.StatusUnhealthy {
		t.Errorf("email.broken = %v, want unhealthy", results["email.broken"].Status)
	}

	rec := httptest.NewRecorder()
	svc.HealthHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status code = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}

func TestService_CircuitHealth(t *testing.T) {
	svc := newService(t, WithResilience(ResilienceConfig{
		CircuitBreaker: &resilience.CircuitBreakerConfig{MaxFailures: 1, ResetTimeout: time.Hour},
	}))
	_ = svc.Register(message.ChannelEmail, nil, &fakeSender{name: "down", err: errDown})

	status, results := svc.Health(context.Background())
	if status != health.StatusHealthy || results["email.down.circuit"].Status != health.StatusHealthy {
		t.Fatalf("Health() = %v %v, want closed circuit healthy", status, results)
	}

	_, _ = svc.Send(context.Background(), email())

	status, results = svc.Health(context.Background())
	r := results["email.down.circuit"]
	if status != health.StatusUnhealthy || !errors.Is(r.Error, resilience.ErrCircuitOpen) {
		t.Errorf("Health() = %v %+v, want open circuit unhealthy", status, r)
	}
}

func TestService_ConcurrentSend(t *testing.T) {
	svc := newService(t)
	a := &fakeSender{name: "a"}
	_ = svc.Register(message.ChannelEmail, nil, a)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Send(context.Background(), email()); err != nil {
				t.Errorf("Send() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if a.Calls() != 20 {
		t.Errorf("calls = %d, want 20", a.Calls())
	}
}
