// Package dispatch routes an operation to one of several interchangeable
// implementations.
//
// A Selector holds ordered (condition, implementation) entries and invokes
// the first implementation whose condition accepts the input. A Fallback
// holds an ordered list of implementations and tries them one after another
// until one succeeds, reporting every failure in a *failure.Aggregate when
// none does.
//
// Both are Operations themselves, so they compose: a Fallback of Selectors,
// or a Selector entry whose implementation is a Fallback chain.
//
// Neither type retries, spawns goroutines or reorders candidates. Retrying a
// single implementation is the job of resilience.Retry.
package dispatch
