// Package cleanup releases resources owned by pluggable implementations.
//
// A Registry tracks values that hold sockets, pools or sessions and releases
// them on demand, most recently tracked first. A release failure never stops
// the remaining releases; all failures come back together as a single
// *failure.Aggregate. Cleanup drains the registry, so a repeated call is a
// no-op that returns nil.
//
// Values are tracked when they implement Cleanable or io.Closer:
//
//	reg := cleanup.NewRegistry()
//	reg.Track(smtpSender)   // io.Closer
//	reg.Track(webhookPool)  // Cleanable
//	defer func() { _ = reg.Cleanup() }()
package cleanup
