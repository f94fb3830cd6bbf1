// Package webhook delivers email and SMS by posting JSON to an HTTP
// gateway.
//
// Each request may carry a short-lived HS256 bearer token so the gateway
// can authenticate the caller. Responses in the 2xx range are accepted;
// anything else becomes a *StatusError, and IsRetryable tells transient
// failures from permanent ones.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jonwraymond/notifyops/message"
)

// Sentinel errors.
var (
	ErrMissingURL     = errors.New("webhook: url is required")
	ErrInvalidChannel = errors.New("webhook: unsupported channel")
	ErrWrongChannel   = errors.New("webhook: message channel does not match sender")
)

const maxResponseBody = 64 << 10

// Config configures a webhook sender.
type Config struct {
	// URL receives one POST per message.
	URL string `koanf:"url"`

	// PingURL is fetched by Ping. Default: a HEAD request to URL.
	PingURL string `koanf:"ping-url"`

	// Channel is the kind of message this gateway accepts.
	// Default: "email"
	Channel message.Channel `koanf:"channel"`

	// Name identifies the sender in logs and metrics.
	// Default: "webhook"
	Name string `koanf:"name"`

	// SigningKey signs an HS256 bearer token per request. Empty disables
	// the Authorization header.
	SigningKey string `koanf:"signing-key"`

	// Issuer is the iss claim of signed tokens.
	// Default: "notifyops"
	Issuer string `koanf:"issuer"`

	// TokenTTL is the lifetime of signed tokens.
	// Default: 5 minutes
	TokenTTL time.Duration `koanf:"token-ttl"`

	// Headers are added to every request.
	Headers map[string]string `koanf:"headers"`

	// Timeout bounds each request.
	// Default: 10 seconds
	Timeout time.Duration `koanf:"timeout"`
}

// Option configures a Sender.
type Option func(*Sender)

// WithHTTPClient sets the HTTP client. The sender closes its idle
// connections on Close.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Sender) {
		if c != nil {
			s.client = c
		}
	}
}

// WithClock sets the time source used for receipts and token claims.
func WithClock(now func() time.Time) Option {
	return func(s *Sender) {
		if now != nil {
			s.now = now
		}
	}
}

// Sender posts messages to a webhook gateway.
type Sender struct {
	config Config
	client *http.Client
	now    func() time.Time
}

// New creates a webhook sender.
func New(config Config, opts ...Option) (*Sender, error) {
	if config.URL == "" {
		return nil, ErrMissingURL
	}
	if config.Channel == "" {
		config.Channel = message.ChannelEmail
	}
	if config.Channel != message.ChannelEmail && config.Channel != message.ChannelSMS {
		return nil, fmt.Errorf("%w: %q", ErrInvalidChannel, config.Channel)
	}
	if config.Name == "" {
		config.Name = "webhook"
	}
	if config.Issuer == "" {
		config.Issuer = "notifyops"
	}
	if config.TokenTTL <= 0 {
		config.TokenTTL = 5 * time.Minute
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}

	s := &Sender{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// Name returns the configured sender name.
func (s *Sender) Name() string { return s.config.Name }

// Channel returns the channel the gateway accepts.
func (s *Sender) Channel() message.Channel { return s.config.Channel }

// payload is the JSON body posted to the gateway.
type payload struct {
	ID      string            `json:"id"`
	Channel message.Channel   `json:"channel"`
	From    string            `json:"from,omitempty"`
	To      []string          `json:"to"`
	Cc      []string          `json:"cc,omitempty"`
	Bcc     []string          `json:"bcc,omitempty"`
	ReplyTo string            `json:"reply_to,omitempty"`
	Subject string            `json:"subject,omitempty"`
	Text    string            `json:"text,omitempty"`
	HTML    string            `json:"html,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
}

// response is the optional JSON body returned by the gateway.
type response struct {
	ID string `json:"id"`
}

func toPayload(msg message.Message) (payload, error) {
	id := msg.EnsureID()
	switch m := msg.(type) {
	case *message.Email:
		return payload{
			ID: id, Channel: message.ChannelEmail,
			From: m.From, To: m.To, Cc: m.Cc, Bcc: m.Bcc, ReplyTo: m.ReplyTo,
			Subject: m.Subject, Text: m.Text, HTML: m.HTML, Headers: m.Headers,
		}, nil
	case *message.SMS:
		return payload{
			ID: id, Channel: message.ChannelSMS,
			From: m.From, To: []string{m.To}, Text: m.Body,
		}, nil
	default:
		return payload{}, fmt.Errorf("%w: %T", ErrInvalidChannel, msg)
	}
}

// Send posts msg to the gateway.
func (s *Sender) Send(ctx context.Context, msg message.Message) (message.Receipt, error) {
	if msg.Channel() != s.config.Channel {
		return message.Receipt{}, fmt.Errorf("%w: got %s, want %s", ErrWrongChannel, msg.Channel(), s.config.Channel)
	}
	p, err := toPayload(msg)
	if err != nil {
		return message.Receipt{}, err
	}
	body, err := json.Marshal(p)
	if err != nil {
		return message.Receipt{}, fmt.Errorf("webhook: encode: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.URL, bytes.NewReader(body))
	if err != nil {
		return message.Receipt{}, fmt.Errorf("webhook: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", p.ID)
	if err := s.authorize(req, p.ID); err != nil {
		return message.Receipt{}, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return message.Receipt{}, fmt.Errorf("webhook: post: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return message.Receipt{}, &StatusError{StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(raw))}
	}

	var r response
	if len(raw) > 0 {
		// A non-JSON success body is fine; the gateway ID is optional.
		_ = json.Unmarshal(raw, &r)
	}
	return message.Receipt{
		MessageID:  p.ID,
		Channel:    p.Channel,
		Sender:     s.config.Name,
		ProviderID: r.ID,
		Accepted:   s.now(),
	}, nil
}

// Ping checks the gateway answers with a status below 500.
func (s *Sender) Ping(ctx context.Context) error {
	method, url := http.MethodHead, s.config.URL
	if s.config.PingURL != "" {
		method, url = http.MethodGet, s.config.PingURL
	}

	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return fmt.Errorf("webhook: build request: %w", err)
	}
	if err := s.authorize(req, "ping"); err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: ping: %w", err)
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBody))
	_ = resp.Body.Close()

	if resp.StatusCode >= 500 {
		return &StatusError{StatusCode: resp.StatusCode}
	}
	return nil
}

// Close releases idle connections held by the HTTP client.
func (s *Sender) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

func (s *Sender) authorize(req *http.Request, subject string) error {
	for k, v := range s.config.Headers {
		req.Header.Set(k, v)
	}
	if s.config.SigningKey == "" {
		return nil
	}

	now := s.now()
	claims := jwt.RegisteredClaims{
		Issuer:    s.config.Issuer,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.config.TokenTTL)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.config.SigningKey))
	if err != nil {
		return fmt.Errorf("webhook: sign token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return nil
}
