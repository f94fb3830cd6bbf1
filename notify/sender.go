package notify

import (
	"context"

	"github.com/jonwraymond/notifyops/message"
)

// Sender delivers messages over one transport.
//
// Contract:
//   - Name is stable and non-empty.
//   - Send must be safe for concurrent use and honour ctx.
//   - A Sender that holds resources implements io.Closer or
//     cleanup.Cleanable; a Sender that can check its backend implements
//     health.Pinger.
type Sender interface {
	Name() string
	Send(ctx context.Context, msg message.Message) (message.Receipt, error)
}

// SendFunc is the signature of a single send.
type SendFunc func(ctx context.Context, msg message.Message) (message.Receipt, error)

type funcSender struct {
	name string
	fn   SendFunc
}

// NewSenderFunc adapts fn to a Sender called name.
func NewSenderFunc(name string, fn SendFunc) Sender {
	return &funcSender{name: name, fn: fn}
}

func (s *funcSender) Name() string { return s.name }

func (s *funcSender) Send(ctx context.Context, msg message.Message) (message.Receipt, error) {
	return s.fn(ctx, msg)
}
