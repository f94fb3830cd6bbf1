package cleanup

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/jonwraymond/notifyops/failure"
	"github.com/jonwraymond/notifyops/observe"
)

// Cleanable is implemented by values that own a resource needing explicit
// release.
type Cleanable interface {
	Release() error
}

// Func adapts a function to Cleanable.
type Func func() error

// Release calls f().
func (f Func) Release() error {
	return f()
}

type closerAdapter struct {
	io.Closer
}

func (c closerAdapter) Release() error {
	return c.Close()
}

func (c closerAdapter) name() string {
	return nameOf(c.Closer)
}

type tracked struct {
	name string
	res  Cleanable
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger used to report failed releases.
func WithLogger(l observe.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// Registry holds tracked resources in last-in-first-out order.
//
// Contract:
//   - Cleanup releases every tracked value exactly once.
//   - Safe for concurrent use; Track racing Cleanup lands in either the
//     current drain or the next one.
type Registry struct {
	mu     sync.Mutex
	stack  []tracked
	logger observe.Logger
}

// NewRegistry returns an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{logger: observe.NopLogger()}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Track pushes v when it implements Cleanable or io.Closer and reports
// whether it did. Any other value is ignored.
func (r *Registry) Track(v any) bool {
	var t tracked
	switch res := v.(type) {
	case nil:
		return false
	case Cleanable:
		t = tracked{name: nameOf(res), res: res}
	case io.Closer:
		c := closerAdapter{res}
		t = tracked{name: c.name(), res: c}
	default:
		return false
	}

	r.mu.Lock()
	r.stack = append(r.stack, t)
	r.mu.Unlock()
	return true
}

// Len returns the number of values awaiting release.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.stack)
}

// Cleanup releases all tracked values, most recent first, and empties the
// registry. It returns nil when every release succeeded and a
// *failure.Aggregate of the failures, in release order, otherwise.
func (r *Registry) Cleanup() error {
	r.mu.Lock()
	stack := r.stack
	r.stack = nil
	r.mu.Unlock()

	var errs []error
	for i := len(stack) - 1; i >= 0; i-- {
		t := stack[i]
		if err := release(t.res); err != nil {
			r.logger.Warn(context.Background(), "release failed",
				observe.F("resource", t.name),
				observe.F("error", err),
			)
			errs = append(errs, &failure.Single{Candidate: t.name, Index: i, Cause: err})
		}
	}

	if agg := failure.NewAggregate("cleanup: release failed", errs...); agg != nil {
		return agg
	}
	return nil
}

// release calls res.Release and turns a panic into an error.
func release(res Cleanable) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("cleanup: release panicked: %v", p)
		}
	}()
	return res.Release()
}

func nameOf(v any) string {
	if n, ok := v.(interface{ Name() string }); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", v)
}
