package dispatch

import (
	"context"
	"sync"

	"github.com/jonwraymond/notifyops/condition"
	"github.com/jonwraymond/notifyops/observe"
)

// Entry pairs a condition with the implementation it guards.
type Entry[In, Out any] struct {
	Condition      condition.Condition[In]
	Implementation Operation[In, Out]
}

// Selector routes each input to the first registered implementation whose
// condition accepts it. Registration order is priority order.
//
// Contract:
//   - Register appends; entries are never de-duplicated or reordered.
//   - Dispatch invokes at most one implementation and returns its result and
//     error untouched.
//   - Safe for concurrent use; registering while dispatching is memory safe
//     but the dispatch sees either the old or the new entry list.
type Selector[In, Out any] struct {
	mu      sync.RWMutex
	entries []Entry[In, Out]
	opts    options
}

// NewSelector creates an empty Selector.
func NewSelector[In, Out any](opts ...Option) *Selector[In, Out] {
	return &Selector[In, Out]{opts: applyOptions(opts)}
}

// Register appends an entry and returns the selector for chaining. A nil
// condition always accepts. A nil implementation is ignored.
func (s *Selector[In, Out]) Register(cond condition.Condition[In], impl Operation[In, Out]) *Selector[In, Out] {
	if impl == nil {
		return s
	}
	if cond == nil {
		cond = condition.Always[In]()
	}
	s.mu.Lock()
	s.entries = append(s.entries, Entry[In, Out]{Condition: cond, Implementation: impl})
	s.mu.Unlock()
	return s
}

// Len returns the number of registered entries.
func (s *Selector[In, Out]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Entries returns a copy of the registered entries in priority order.
func (s *Selector[In, Out]) Entries() []Entry[In, Out] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Entry[In, Out], len(s.entries))
	copy(out, s.entries)
	return out
}

// Name returns the selector name set with WithName.
func (s *Selector[In, Out]) Name() string {
	return s.opts.name
}

// Select returns the implementation that Dispatch would invoke for in,
// without invoking it.
func (s *Selector[In, Out]) Select(in In) (Operation[In, Out], bool) {
	impl, _, _ := s.find(in)
	return impl, impl != nil
}

// Supports reports whether any entry accepts in.
func (s *Selector[In, Out]) Supports(in In) bool {
	_, ok := s.Select(in)
	return ok
}

func (s *Selector[In, Out]) find(in In) (impl Operation[In, Out], index, evaluated int) {
	s.mu.RLock()
	entries := s.entries
	s.mu.RUnlock()

	for i, e := range entries {
		evaluated++
		if e.Condition.Accept(in) {
			return e.Implementation, i, evaluated
		}
	}
	return nil, -1, evaluated
}

// Dispatch invokes the first implementation whose condition accepts in.
// When none accepts it returns a *NoMatchingImplementationError.
func (s *Selector[In, Out]) Dispatch(ctx context.Context, in In) (Out, error) {
	impl, index, evaluated := s.find(in)
	if impl == nil {
		var zero Out
		s.opts.logger.Debug(ctx, "no implementation accepted",
			observe.F("selector", s.opts.name),
			observe.F("evaluated", evaluated),
		)
		return zero, &NoMatchingImplementationError{Selector: s.opts.name, Evaluated: evaluated}
	}

	s.opts.logger.Debug(ctx, "implementation selected",
		observe.F("selector", s.opts.name),
		observe.F("implementation", NameOf(impl)),
		observe.F("index", index),
	)
	return impl.Perform(ctx, in)
}

// Perform is Dispatch, so a Selector is itself an Operation.
func (s *Selector[In, Out]) Perform(ctx context.Context, in In) (Out, error) {
	return s.Dispatch(ctx, in)
}
