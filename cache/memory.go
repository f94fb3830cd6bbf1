package cache

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jonboulle/clockwork"

	"github.com/jonwraymond/notifyops/message"
)

// DefaultMaxEntries bounds a MemoryCache created with a non-positive size.
const DefaultMaxEntries = 10_000

// MemoryCache is an in-memory Cache. It holds at most a fixed number of
// receipts and evicts the least recently used one first.
type MemoryCache struct {
	entries *lru.Cache[string, cacheEntry]
	clock   clockwork.Clock
}

type cacheEntry struct {
	receipt   message.Receipt
	expiresAt time.Time
}

// MemoryOption configures a MemoryCache.
type MemoryOption func(*MemoryCache)

// WithClock sets the clock used for expiry. Default: the real clock.
func WithClock(c clockwork.Clock) MemoryOption {
	return func(m *MemoryCache) {
		if c != nil {
			m.clock = c
		}
	}
}

// NewMemoryCache creates a cache holding up to maxEntries receipts.
func NewMemoryCache(maxEntries int, opts ...MemoryOption) *MemoryCache {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	// lru.New fails only for a non-positive size.
	entries, _ := lru.New[string, cacheEntry](maxEntries)

	m := &MemoryCache{entries: entries, clock: clockwork.NewRealClock()}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

// Get retrieves a receipt. Expired entries are removed lazily.
func (c *MemoryCache) Get(_ context.Context, key string) (message.Receipt, bool) {
	entry, ok := c.entries.Get(key)
	if !ok {
		return message.Receipt{}, false
	}
	if !c.clock.Now().Before(entry.expiresAt) {
		c.entries.Remove(key)
		return message.Receipt{}, false
	}
	return entry.receipt, true
}

// Set stores a receipt for ttl. A ttl of zero or less stores nothing.
func (c *MemoryCache) Set(_ context.Context, key string, receipt message.Receipt, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := ValidateKey(key); err != nil {
		return err
	}
	c.entries.Add(key, cacheEntry{receipt: receipt, expiresAt: c.clock.Now().Add(ttl)})
	return nil
}

// Delete removes a receipt. Idempotent.
func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.entries.Remove(key)
	return nil
}

// Len returns the number of stored receipts, expired ones included.
func (c *MemoryCache) Len() int {
	return c.entries.Len()
}

var _ Cache = (*MemoryCache)(nil)
