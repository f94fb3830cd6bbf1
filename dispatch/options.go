package dispatch

import (
	"context"

	"github.com/jonwraymond/notifyops/observe"
)

// FailureHook is called by a Fallback after each failed candidate, before
// the next one is tried.
type FailureHook func(ctx context.Context, index int, candidate string, err error)

type options struct {
	name      string
	logger    observe.Logger
	onFailure FailureHook
}

// Option configures a Selector or a Fallback.
type Option func(*options)

// WithName names the selector or fallback chain in logs and errors.
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger observe.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithFailureHook registers fn to observe candidate failures of a Fallback.
// Selectors ignore it.
func WithFailureHook(fn FailureHook) Option {
	return func(o *options) {
		o.onFailure = fn
	}
}

func applyOptions(opts []Option) options {
	o := options{logger: observe.NopLogger()}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}
