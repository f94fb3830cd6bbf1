package condition

import (
	"runtime/debug"
	"sort"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jonboulle/clockwork"
)

// CapabilityProbe reports whether a named capability is present in the
// current runtime.
//
// Contract:
//   - Available must not panic; unknown names report false.
//   - Implementations must be safe for concurrent use.
type CapabilityProbe interface {
	Available(name string) bool
}

// ProbeFunc adapts a function to a CapabilityProbe.
type ProbeFunc func(name string) bool

// Available calls f(name).
func (f ProbeFunc) Available(name string) bool {
	return f(name)
}

// RequiredCapabilityCondition accepts when its capability is available.
type RequiredCapabilityCondition[S any] struct {
	probe CapabilityProbe
	name  string
}

// RequiredCapability returns a condition that accepts iff probe reports name
// as available. The probe is asked on every call.
func RequiredCapability[S any](probe CapabilityProbe, name string) *RequiredCapabilityCondition[S] {
	return &RequiredCapabilityCondition[S]{probe: probe, name: name}
}

// Accept implements Condition.
func (c *RequiredCapabilityCondition[S]) Accept(S) bool {
	if c.probe == nil || c.name == "" {
		return false
	}
	return c.probe.Available(c.name)
}

// Name returns the required capability name.
func (c *RequiredCapabilityCondition[S]) Name() string {
	return c.name
}

// Capabilities is an explicit, mutable set of capability names.
//
// It replaces reflection-style existence checks: code that wires an optional
// integration registers its capability name here, and conditions observe the
// current contents on each call.
type Capabilities struct {
	mu    sync.RWMutex
	names map[string]struct{}
}

// NewCapabilities creates a capability set containing names.
func NewCapabilities(names ...string) *Capabilities {
	c := &Capabilities{names: make(map[string]struct{}, len(names))}
	for _, n := range names {
		c.Add(n)
	}
	return c
}

// Add registers a capability.
func (c *Capabilities) Add(name string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.names[name] = struct{}{}
}

// Remove unregisters a capability.
func (c *Capabilities) Remove(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.names, name)
}

// Available implements CapabilityProbe.
func (c *Capabilities) Available(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.names[name]
	return ok
}

// List returns the registered names, sorted.
func (c *Capabilities) List() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.names))
	for n := range c.names {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// BuildInfoProbe reports a capability as available when it names a Go module
// (or a package inside one) linked into the running binary.
type BuildInfoProbe struct {
	// ReadBuildInfo overrides debug.ReadBuildInfo, mainly for tests.
	ReadBuildInfo func() (*debug.BuildInfo, bool)
}

// Available implements CapabilityProbe.
func (p BuildInfoProbe) Available(name string) bool {
	read := p.ReadBuildInfo
	if read == nil {
		read = debug.ReadBuildInfo
	}
	info, ok := read()
	if !ok || info == nil || name == "" {
		return false
	}
	if matchesModule(name, info.Main.Path) {
		return true
	}
	for _, dep := range info.Deps {
		if dep == nil {
			continue
		}
		if matchesModule(name, dep.Path) {
			return true
		}
		if dep.Replace != nil && matchesModule(name, dep.Replace.Path) {
			return true
		}
	}
	return false
}

func matchesModule(name, module string) bool {
	if module == "" {
		return false
	}
	return name == module || strings.HasPrefix(name, module+"/")
}

// ProbeChain tries several lookup strategies in order.
type ProbeChain struct {
	probes []CapabilityProbe
}

// FirstOf returns a probe that reports a capability as available as soon as
// one of probes, tried in order, does. Later probes are not consulted once an
// earlier one succeeds.
func FirstOf(probes ...CapabilityProbe) *ProbeChain {
	kept := make([]CapabilityProbe, 0, len(probes))
	for _, p := range probes {
		if p != nil {
			kept = append(kept, p)
		}
	}
	return &ProbeChain{probes: kept}
}

// Available implements CapabilityProbe.
func (c *ProbeChain) Available(name string) bool {
	for _, p := range c.probes {
		if p.Available(name) {
			return true
		}
	}
	return false
}

// CachedProbe memoizes the answers of another probe for a bounded time.
// Entries expire lazily on lookup; no goroutine is started.
type CachedProbe struct {
	probe CapabilityProbe
	ttl   time.Duration
	clock clockwork.Clock
	cache *lru.Cache[string, cachedAnswer]
}

type cachedAnswer struct {
	available bool
	expiresAt time.Time
}

// CachedOption configures a CachedProbe.
type CachedOption func(*CachedProbe)

// WithProbeClock sets the clock used for expiry. Default: the real clock.
func WithProbeClock(c clockwork.Clock) CachedOption {
	return func(p *CachedProbe) {
		if c != nil {
			p.clock = c
		}
	}
}

// Cached wraps probe so that each answer is reused for ttl. Use it only when
// the capability set is known not to change while the cache is warm.
// Default ttl: 1 minute. At most 256 names are remembered.
func Cached(probe CapabilityProbe, ttl time.Duration, opts ...CachedOption) *CachedProbe {
	if ttl <= 0 {
		ttl = time.Minute
	}
	// lru.New fails only for a non-positive size.
	cache, _ := lru.New[string, cachedAnswer](256)
	c := &CachedProbe{
		probe: probe,
		ttl:   ttl,
		clock: clockwork.NewRealClock(),
		cache: cache,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Available implements CapabilityProbe.
func (c *CachedProbe) Available(name string) bool {
	now := c.clock.Now()
	if a, ok := c.cache.Get(name); ok {
		if now.Before(a.expiresAt) {
			return a.available
		}
		c.cache.Remove(name)
	}
	v := c.probe != nil && c.probe.Available(name)
	c.cache.Add(name, cachedAnswer{available: v, expiresAt: now.Add(c.ttl)})
	return v
}

// Invalidate forgets every cached answer.
func (c *CachedProbe) Invalidate() {
	c.cache.Purge()
}
