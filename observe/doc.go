// Package observe provides observability primitives for notification senders.
//
// It is a pure instrumentation library: no sending, no transport, no I/O
// beyond exporter setup and log output. Consumers wire the observer into the
// dispatch layer through Middleware, or hand Logger and Metrics to the
// components that accept them.
package observe
