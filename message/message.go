// Package message defines the notifications handed to senders and the
// receipts senders return.
package message

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Channel names a delivery medium.
type Channel string

// Known channels.
const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// Validation errors.
var (
	ErrNoRecipients   = errors.New("message: no recipients")
	ErrEmptyBody      = errors.New("message: empty body")
	ErrInvalidAddress = errors.New("message: invalid address")
)

// Message is a notification addressed to one or more recipients.
type Message interface {
	// Channel returns the medium the message travels over.
	Channel() Channel

	// EnsureID returns the message ID, assigning a random one first when
	// it is empty.
	EnsureID() string

	// Recipients returns every destination address.
	Recipients() []string

	// Validate reports a message no sender could deliver.
	Validate() error
}

// Receipt confirms a sender accepted a message.
type Receipt struct {
	// MessageID is the ID of the accepted message.
	MessageID string

	// Channel is the medium the message was sent over.
	Channel Channel

	// Sender names the implementation that accepted the message.
	Sender string

	// ProviderID is the identifier assigned by the backend, if any.
	ProviderID string

	// Accepted is when the sender accepted the message.
	Accepted time.Time
}

// NewID returns a random message ID.
func NewID() string {
	return uuid.NewString()
}

// Email is an email message.
type Email struct {
	ID      string
	From    string
	To      []string
	Cc      []string
	Bcc     []string
	ReplyTo string
	Subject string
	Text    string
	HTML    string
	Headers map[string]string
}

// Channel returns ChannelEmail.
func (e *Email) Channel() Channel { return ChannelEmail }

// EnsureID implements Message.
func (e *Email) EnsureID() string {
	if e.ID == "" {
		e.ID = NewID()
	}
	return e.ID
}

// Recipients returns To, Cc and Bcc in that order.
func (e *Email) Recipients() []string {
	out := make([]string, 0, len(e.To)+len(e.Cc)+len(e.Bcc))
	out = append(out, e.To...)
	out = append(out, e.Cc...)
	return append(out, e.Bcc...)
}

// Validate checks that the email has recipients, a body and parseable
// addresses. An empty From is allowed; senders fill in their default.
func (e *Email) Validate() error {
	rcpts := e.Recipients()
	if len(rcpts) == 0 {
		return ErrNoRecipients
	}
	if strings.TrimSpace(e.Text) == "" && strings.TrimSpace(e.HTML) == "" {
		return ErrEmptyBody
	}
	for _, addr := range rcpts {
		if _, err := mail.ParseAddress(addr); err != nil {
			return fmt.Errorf("%w: %q", ErrInvalidAddress, addr)
		}
	}
	if e.From != "" {
		if _, err := mail.ParseAddress(e.From); err != nil {
			return fmt.Errorf("%w: from %q", ErrInvalidAddress, e.From)
		}
	}
	return nil
}

// SMS is a short text message.
type SMS struct {
	ID   string
	From string
	To   string
	Body string
}

// Channel returns ChannelSMS.
func (s *SMS) Channel() Channel { return ChannelSMS }

// EnsureID implements Message.
func (s *SMS) EnsureID() string {
	if s.ID == "" {
		s.ID = NewID()
	}
	return s.ID
}

// Recipients returns the single destination number.
func (s *SMS) Recipients() []string {
	if s.To == "" {
		return nil
	}
	return []string{s.To}
}

// Validate checks that the SMS has a plausible E.164 destination and a
// body.
func (s *SMS) Validate() error {
	if s.To == "" {
		return ErrNoRecipients
	}
	if !isE164(s.To) {
		return fmt.Errorf("%w: %q", ErrInvalidAddress, s.To)
	}
	if strings.TrimSpace(s.Body) == "" {
		return ErrEmptyBody
	}
	return nil
}

// isE164 reports whether n looks like +<country><number>, 8 to 15 digits.
func isE164(n string) bool {
	digits, ok := strings.CutPrefix(n, "+")
	if !ok || len(digits) < 8 || len(digits) > 15 || digits[0] == '0' {
		return false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
