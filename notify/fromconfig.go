package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonwraymond/notifyops/cache"
	"github.com/jonwraymond/notifyops/cleanup"
	"github.com/jonwraymond/notifyops/condition"
	"github.com/jonwraymond/notifyops/config"
	"github.com/jonwraymond/notifyops/message"
	"github.com/jonwraymond/notifyops/observe"
	"github.com/jonwraymond/notifyops/resilience"
	"github.com/jonwraymond/notifyops/transport/logsender"
	"github.com/jonwraymond/notifyops/transport/smtp"
	"github.com/jonwraymond/notifyops/transport/webhook"
)

// Capabilities consulted by FromConfig.
const (
	// CapabilitySMTP is the module that provides the SMTP transport.
	CapabilitySMTP = "github.com/wneessen/go-mail"

	// CapabilityWebhook enables the HTTP gateway transports.
	CapabilityWebhook = "webhook"
)

// Configuration keys read by FromConfig.
const (
	KeySMTPHost        = "mail.smtp.host"
	KeyEmailWebhookURL = "email.webhook.url"
	KeySMSWebhookURL   = "sms.webhook.url"
	KeyDevMode         = "notify.dev-mode"
)

// settings is the "notify" configuration section.
type settings struct {
	DevMode bool          `koanf:"dev-mode"`
	Timeout time.Duration `koanf:"timeout"`

	Retry struct {
		MaxAttempts  int           `koanf:"max-attempts"`
		InitialDelay time.Duration `koanf:"initial-delay"`
		MaxDelay     time.Duration `koanf:"max-delay"`
		Jitter       bool          `koanf:"jitter"`
	} `koanf:"retry"`

	Breaker struct {
		MaxFailures  int           `koanf:"max-failures"`
		ResetTimeout time.Duration `koanf:"reset-timeout"`
	} `koanf:"breaker"`

	RateLimit struct {
		Rate  float64 `koanf:"rate"`
		Burst int     `koanf:"burst"`
	} `koanf:"rate-limit"`

	Dedup struct {
		TTL        time.Duration `koanf:"ttl"`
		Key        string        `koanf:"key"`
		MaxEntries int           `koanf:"max-entries"`
	} `koanf:"dedup"`

	Observe observe.Config `koanf:"observe"`
}

func (s settings) resilience() ResilienceConfig {
	cfg := ResilienceConfig{
		Retry:   resilience.NoRetry,
		RetryIf: Retryable,
		Timeout: s.Timeout,
	}
	if s.Retry.MaxAttempts > 1 {
		cfg.Retry = resilience.Backoff(resilience.BackoffConfig{
			MaxAttempts:  s.Retry.MaxAttempts,
			InitialDelay: s.Retry.InitialDelay,
			MaxDelay:     s.Retry.MaxDelay,
			Jitter:       s.Retry.Jitter,
		})
	}
	if s.Breaker.MaxFailures > 0 {
		cfg.CircuitBreaker = &resilience.CircuitBreakerConfig{
			MaxFailures:  s.Breaker.MaxFailures,
			ResetTimeout: s.Breaker.ResetTimeout,
		}
	}
	if s.RateLimit.Rate > 0 {
		cfg.RateLimit = &resilience.RateLimiterConfig{
			Rate:        s.RateLimit.Rate,
			Burst:       s.RateLimit.Burst,
			WaitOnLimit: true,
		}
	}
	return cfg
}

// deduplicator returns nil when notify.dedup.ttl is unset.
func (s settings) deduplicator(logger observe.Logger) (*cache.Deduplicator, error) {
	if s.Dedup.TTL <= 0 {
		return nil, nil
	}
	var keyer cache.Keyer
	switch s.Dedup.Key {
	case "", "id":
		keyer = cache.IDKeyer{}
	case "content":
		keyer = cache.ContentKeyer{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDedupKey, s.Dedup.Key)
	}
	return cache.NewDeduplicator(
		cache.NewMemoryCache(s.Dedup.MaxEntries),
		cache.Policy{TTL: s.Dedup.TTL},
		cache.WithKeyer(keyer),
		cache.WithLogger(logger),
	)
}

// FromConfig builds a Service with a sender for every transport props
// enables:
//
//   - email: SMTP when mail.smtp.host is set and go-mail is available,
//     then the email webhook when email.webhook.url is set. With both, SMTP
//     falls back to the webhook.
//   - sms: the SMS webhook when sms.webhook.url is set.
//   - notify.dev-mode: true adds the log sender as the last resort of
//     every channel.
//   - notify.dedup.ttl: suppresses repeated sends for that long, keyed by
//     message ID or, with notify.dedup.key: content, by content.
//   - notify.observe.service-name: builds an observe.Observer from the
//     notify.observe section, unless WithObserver or WithMiddleware is
//     given. The Service shuts it down on Close.
//
// Conditions stay attached to the registrations, so a key removed or a
// capability withdrawn later takes the matching sender out of rotation.
// Options given by the caller override the resilience settings found under
// "notify".
func FromConfig(props *config.Properties, opts ...Option) (*Service, error) {
	if props == nil {
		return nil, ErrNoTransports
	}

	var set settings
	if err := props.Unmarshal("notify", &set); err != nil {
		return nil, fmt.Errorf("notify: %w", err)
	}

	o := applyOptions(opts)
	probe := o.capabilities
	if probe == nil {
		probe = condition.FirstOf(condition.NewCapabilities(CapabilityWebhook), condition.BuildInfoProbe{})
	}

	defaults := []Option{WithResilience(set.resilience())}

	var owned observe.Observer
	if set.Observe.ServiceName != "" && o.observer == nil && o.middleware == nil {
		obs, err := observe.NewObserver(context.Background(), set.Observe)
		if err != nil {
			return nil, fmt.Errorf("notify: %w", err)
		}
		owned = obs
		defaults = append(defaults, WithObserver(obs))
	}
	shutdown := cleanup.Func(func() error {
		if owned == nil {
			return nil
		}
		return owned.Shutdown(context.Background())
	})

	dedup, err := set.deduplicator(applyOptions(append(defaults, opts...)).logger)
	if err != nil {
		_ = shutdown()
		return nil, err
	}
	if dedup != nil {
		defaults = append(defaults, WithDeduplication(dedup))
	}

	svc, err := New(append(defaults, opts...)...)
	if err != nil {
		_ = shutdown()
		return nil, err
	}
	if owned != nil {
		// Tracked first so it is released last, after every sender.
		svc.resources.Track(shutdown)
	}

	if err := registerFromConfig(svc, props, probe, o); err != nil {
		_ = svc.Close()
		return nil, err
	}
	if len(svc.Channels()) == 0 {
		_ = svc.Close()
		return nil, ErrNoTransports
	}

	svc.logger.Info(context.Background(), "notification service configured",
		observe.F("channels", svc.Channels()),
		observe.F("dev_mode", set.DevMode),
	)
	return svc, nil
}

func registerFromConfig(svc *Service, props *config.Properties, probe condition.CapabilityProbe, o options) error {
	smtpReady := condition.And[message.Message](
		condition.RequiredCapability[message.Message](probe, CapabilitySMTP),
		condition.RequiredConfig[message.Message](props, KeySMTPHost),
	)
	emailHookReady := condition.And[message.Message](
		condition.RequiredCapability[message.Message](probe, CapabilityWebhook),
		condition.RequiredConfig[message.Message](props, KeyEmailWebhookURL),
	)
	smsHookReady := condition.And[message.Message](
		condition.RequiredCapability[message.Message](probe, CapabilityWebhook),
		condition.RequiredConfig[message.Message](props, KeySMSWebhookURL),
	)
	devMode := condition.RequiredConfigValue[message.Message](props, KeyDevMode, "true")

	var hookOpts []webhook.Option
	if o.httpClient != nil {
		hookOpts = append(hookOpts, webhook.WithHTTPClient(o.httpClient))
	}

	var email []Sender
	var emailConds []condition.Condition[message.Message]

	if smtpReady.Accept(nil) {
		var cfg smtp.Config
		if err := props.Unmarshal("mail.smtp", &cfg); err != nil {
			return fmt.Errorf("notify: smtp: %w", err)
		}
		snd, err := smtp.New(cfg)
		if err != nil {
			return fmt.Errorf("notify: %w", err)
		}
		email = append(email, snd)
		emailConds = append(emailConds, smtpReady)
	}

	if emailHookReady.Accept(nil) {
		snd, err := newWebhook(props, "email.webhook", message.ChannelEmail, hookOpts)
		if err != nil {
			return err
		}
		email = append(email, snd)
		emailConds = append(emailConds, emailHookReady)
	}

	if len(email) > 1 {
		if err := svc.Register(message.ChannelEmail, condition.And(emailConds...), email...); err != nil {
			return err
		}
	}
	for i, snd := range email {
		if err := svc.Register(message.ChannelEmail, emailConds[i], snd); err != nil {
			return err
		}
	}

	if smsHookReady.Accept(nil) {
		snd, err := newWebhook(props, "sms.webhook", message.ChannelSMS, hookOpts)
		if err != nil {
			return err
		}
		if err := svc.Register(message.ChannelSMS, smsHookReady, snd); err != nil {
			return err
		}
	}

	if devMode.Accept(nil) {
		dev := logsender.New(svc.logger)
		for _, ch := range []message.Channel{message.ChannelEmail, message.ChannelSMS} {
			if err := svc.Register(ch, devMode, dev); err != nil {
				return err
			}
		}
	}
	return nil
}

func newWebhook(props *config.Properties, path string, channel message.Channel, opts []webhook.Option) (*webhook.Sender, error) {
	var cfg webhook.Config
	if err := props.Unmarshal(path, &cfg); err != nil {
		return nil, fmt.Errorf("notify: %s: %w", path, err)
	}
	cfg.Channel = channel
	snd, err := webhook.New(cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("notify: %w", err)
	}
	return snd, nil
}

// Retryable reports whether a failed send is worth another attempt.
// Cancellations, invalid messages, channel mismatches and rejections by a
// gateway are final.
func Retryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, context.Canceled),
		errors.Is(err, message.ErrInvalidAddress),
		errors.Is(err, message.ErrNoRecipients),
		errors.Is(err, message.ErrEmptyBody),
		errors.Is(err, smtp.ErrNotEmail):
		return false
	}
	return webhook.IsRetryable(err)
}
