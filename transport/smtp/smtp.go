// Package smtp sends email through an SMTP relay using go-mail.
//
// A Sender keeps one connection open between sends and redials after a
// failure. Close (or Release) hangs up; the sender can be tracked by a
// cleanup.Registry.
package smtp

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/wneessen/go-mail"

	"github.com/jonwraymond/notifyops/message"
)

// ErrNotEmail is returned when Send receives a message of another channel.
var ErrNotEmail = errors.New("smtp: not an email message")

// ErrMissingHost is returned by New without a host.
var ErrMissingHost = errors.New("smtp: host is required")

// Encryption values for Config.Encryption.
const (
	EncryptionNone     = "none"
	EncryptionSTARTTLS = "starttls"
	EncryptionTLS      = "ssl_tls"
)

// Config holds connection parameters for the relay.
type Config struct {
	// Host is the relay host name.
	Host string `koanf:"host"`

	// Port is the relay port.
	// Default: 587, or 465 with "ssl_tls"
	Port int `koanf:"port"`

	// Username and Password enable SMTP PLAIN authentication when
	// Username is set.
	Username string `koanf:"username"`
	Password string `koanf:"password"`

	// From is used when a message has no sender address.
	From string `koanf:"from"`

	// Encryption is one of "none", "starttls" or "ssl_tls".
	// Default: "starttls"
	Encryption string `koanf:"encryption"`

	// Timeout bounds dialing and each SMTP command.
	// Default: 15 seconds
	Timeout time.Duration `koanf:"timeout"`
}

// Sender delivers email over SMTP.
type Sender struct {
	config Config
	client *mail.Client

	mu        sync.Mutex
	connected bool
	now       func() time.Time
}

// New creates a sender. No connection is made until the first Send or
// Ping.
func New(config Config) (*Sender, error) {
	if config.Host == "" {
		return nil, ErrMissingHost
	}
	if config.Encryption == "" {
		config.Encryption = EncryptionSTARTTLS
	}
	if config.Port <= 0 {
		config.Port = 587
		if config.Encryption == EncryptionTLS {
			config.Port = 465
		}
	}
	if config.Timeout <= 0 {
		config.Timeout = 15 * time.Second
	}

	opts := []mail.Option{
		mail.WithPort(config.Port),
		mail.WithTimeout(config.Timeout),
	}
	switch config.Encryption {
	case EncryptionTLS:
		opts = append(opts, mail.WithSSL())
	case EncryptionSTARTTLS:
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	default:
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	}
	if config.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(config.Username),
			mail.WithPassword(config.Password),
		)
	}

	client, err := mail.NewClient(config.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp: create client: %w", err)
	}
	return &Sender{config: config, client: client, now: time.Now}, nil
}

// Name returns "smtp".
func (s *Sender) Name() string { return "smtp" }

// Send delivers an *message.Email.
func (s *Sender) Send(ctx context.Context, msg message.Message) (message.Receipt, error) {
	email, ok := msg.(*message.Email)
	if !ok {
		return message.Receipt{}, fmt.Errorf("%w: %s", ErrNotEmail, msg.Channel())
	}
	id := email.EnsureID()

	m, err := s.build(email)
	if err != nil {
		return message.Receipt{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.dialLocked(ctx); err != nil {
		return message.Receipt{}, err
	}
	if err := s.client.Send(m); err != nil {
		s.hangUpLocked()
		return message.Receipt{}, fmt.Errorf("smtp: send: %w", err)
	}

	return message.Receipt{
		MessageID: id,
		Channel:   message.ChannelEmail,
		Sender:    s.Name(),
		Accepted:  s.now(),
	}, nil
}

// Ping checks the relay answers, dialing when not connected.
func (s *Sender) Ping(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.connected {
		if err := s.client.Reset(); err == nil {
			return nil
		}
		s.hangUpLocked()
	}
	return s.dialLocked(ctx)
}

// Close hangs up the connection, if any. It is safe to call repeatedly.
func (s *Sender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected {
		return nil
	}
	s.connected = false
	if err := s.client.Close(); err != nil {
		return fmt.Errorf("smtp: close: %w", err)
	}
	return nil
}

func (s *Sender) dialLocked(ctx context.Context) error {
	if s.connected {
		return nil
	}
	if err := s.client.DialWithContext(ctx); err != nil {
		return fmt.Errorf("smtp: dial %s:%d: %w", s.config.Host, s.config.Port, err)
	}
	s.connected = true
	return nil
}

func (s *Sender) hangUpLocked() {
	_ = s.client.Close()
	s.connected = false
}

// build converts email into a go-mail message.
func (s *Sender) build(email *message.Email) (*mail.Msg, error) {
	m := mail.NewMsg()

	from := email.From
	if from == "" {
		from = s.config.From
	}
	if err := m.From(from); err != nil {
		return nil, fmt.Errorf("smtp: invalid from address: %w", err)
	}
	if len(email.To) > 0 {
		if err := m.To(email.To...); err != nil {
			return nil, fmt.Errorf("smtp: invalid recipient: %w", err)
		}
	}
	if len(email.Cc) > 0 {
		if err := m.Cc(email.Cc...); err != nil {
			return nil, fmt.Errorf("smtp: invalid cc: %w", err)
		}
	}
	if len(email.Bcc) > 0 {
		if err := m.Bcc(email.Bcc...); err != nil {
			return nil, fmt.Errorf("smtp: invalid bcc: %w", err)
		}
	}
	if email.ReplyTo != "" {
		if err := m.ReplyTo(email.ReplyTo); err != nil {
			return nil, fmt.Errorf("smtp: invalid reply-to: %w", err)
		}
	}

	m.Subject(email.Subject)
	m.SetMessageIDWithValue(email.ID)
	for k, v := range email.Headers {
		m.SetGenHeader(mail.Header(k), v)
	}

	switch {
	case email.Text != "" && email.HTML != "":
		m.SetBodyString(mail.TypeTextPlain, email.Text)
		m.AddAlternativeString(mail.TypeTextHTML, email.HTML)
	case email.HTML != "":
		m.SetBodyString(mail.TypeTextHTML, email.HTML)
	default:
		m.SetBodyString(mail.TypeTextPlain, email.Text)
	}
	return m, nil
}

// Config returns the sender configuration with defaults applied.
func (s *Sender) Config() Config {
	return s.config
}
