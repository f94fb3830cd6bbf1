package cache

import "time"

// Policy configures how long receipts are remembered.
type Policy struct {
	// TTL is how long a receipt suppresses duplicates.
	// If zero, nothing is remembered.
	TTL time.Duration

	// MaxTTL clamps override TTLs. If zero, no maximum is enforced.
	MaxTTL time.Duration
}

// DefaultPolicy remembers receipts for 10 minutes, at most 24 hours.
func DefaultPolicy() Policy {
	return Policy{
		TTL:    10 * time.Minute,
		MaxTTL: 24 * time.Hour,
	}
}

// NoCachePolicy returns a policy that disables deduplication.
func NoCachePolicy() Policy {
	return Policy{}
}

// ShouldCache returns true if the policy remembers anything.
func (p Policy) ShouldCache() bool {
	return p.TTL > 0
}

// EffectiveTTL returns override, or TTL when override is not positive,
// clamped to MaxTTL.
func (p Policy) EffectiveTTL(override time.Duration) time.Duration {
	ttl := override
	if ttl <= 0 {
		ttl = p.TTL
	}
	if p.MaxTTL > 0 && ttl > p.MaxTTL {
		ttl = p.MaxTTL
	}
	return ttl
}
