// Package logsender provides a development sender that writes messages to
// a logger instead of delivering them.
package logsender

import (
	"context"
	"time"

	"github.com/jonwraymond/notifyops/message"
	"github.com/jonwraymond/notifyops/observe"
)

// Sender logs every message at info level and always succeeds. Message
// bodies are logged under the "body" key, which the structured logger
// redacts.
type Sender struct {
	logger observe.Logger
	now    func() time.Time
}

// New returns a sender writing to logger, or discarding when logger is nil.
func New(logger observe.Logger) *Sender {
	if logger == nil {
		logger = observe.NopLogger()
	}
	return &Sender{logger: logger, now: time.Now}
}

// Name returns "log".
func (s *Sender) Name() string { return "log" }

// Send logs msg.
func (s *Sender) Send(ctx context.Context, msg message.Message) (message.Receipt, error) {
	id := msg.EnsureID()
	fields := []observe.Field{
		observe.F("message_id", id),
		observe.F("channel", string(msg.Channel())),
		observe.F("recipients", msg.Recipients()),
	}
	switch m := msg.(type) {
	case *message.Email:
		fields = append(fields, observe.F("subject", m.Subject), observe.F("body", m.Text+m.HTML))
	case *message.SMS:
		fields = append(fields, observe.F("body", m.Body))
	}
	s.logger.Info(ctx, "message not delivered: log sender", fields...)

	return message.Receipt{
		MessageID: id,
		Channel:   msg.Channel(),
		Sender:    s.Name(),
		Accepted:  s.now(),
	}, nil
}
