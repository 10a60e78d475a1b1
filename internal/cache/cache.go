// Package cache implements the payload cache: a keyed map from
// (symbol, timeframe, ext) to the most recently built Payload plus a
// parallel failure-marker table governing upstream cooldowns. Grounded on
// the teacher's infrastructure/data/cache.go InMemoryCacheManager — same
// mutex-guarded map and hit/miss bookkeeping — generalized from an
// interface{} value store to a typed Payload store with the two lookup
// modes (fresh vs peek) the spec requires.
package cache

import (
	"sync"
	"time"

	"github.com/northbeam/quotecache/internal/market"
	"github.com/northbeam/quotecache/internal/obs"
)

// entry pairs a payload with the wall-clock time it was built.
type entry struct {
	payload market.Payload
	builtAt time.Time
}

// Cache is a concurrent, in-memory payload store. It never evicts on read;
// entries are replaced only by a subsequent Set for the same key.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry

	failMu   sync.RWMutex
	failedAt map[string]time.Time

	cooldown time.Duration
	metrics  *obs.Metrics
}

// New builds an empty Cache with the given failure cooldown window.
func New(cooldown time.Duration, metrics *obs.Metrics) *Cache {
	return &Cache{
		entries:  make(map[string]entry),
		failedAt: make(map[string]time.Time),
		cooldown: cooldown,
		metrics:  metrics,
	}
}

// Peek returns the cached payload for key without regard to freshness. The
// bool reports whether any entry exists at all.
func (c *Cache) Peek(key market.Key) (market.Payload, time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key.String()]
	return e.payload, e.builtAt, ok
}

// Fresh reports whether the entry at key, if any, was built within ttl of
// now. A missing entry is never fresh.
func (c *Cache) Fresh(key market.Key, ttl time.Duration) bool {
	_, builtAt, ok := c.Peek(key)
	if !ok {
		c.observe(key, false)
		return false
	}
	fresh := time.Since(builtAt) <= ttl
	c.observe(key, fresh)
	return fresh
}

func (c *Cache) observe(key market.Key, hit bool) {
	if c.metrics == nil {
		return
	}
	if hit {
		c.metrics.CacheHits.WithLabelValues(key.Timeframe).Inc()
	} else {
		c.metrics.CacheMisses.WithLabelValues(key.Timeframe).Inc()
	}
}

// Set replaces the cache entry for key with payload, stamped at now, and
// clears any failure marker — a successful build always resets cooldown.
func (c *Cache) Set(key market.Key, payload market.Payload) {
	c.mu.Lock()
	c.entries[key.String()] = entry{payload: payload, builtAt: time.Now()}
	c.mu.Unlock()
	c.ClearFailure(key)
}

// MarkFailure records that key's most recent build attempt failed, starting
// its cooldown window.
func (c *Cache) MarkFailure(key market.Key) {
	c.failMu.Lock()
	c.failedAt[key.String()] = time.Now()
	c.failMu.Unlock()
}

// ClearFailure removes any failure marker for key.
func (c *Cache) ClearFailure(key market.Key) {
	c.failMu.Lock()
	delete(c.failedAt, key.String())
	c.failMu.Unlock()
}

// InCooldown reports whether key failed recently enough that callers should
// prefer stale data over retrying upstream.
func (c *Cache) InCooldown(key market.Key) bool {
	c.failMu.RLock()
	failedAt, ok := c.failedAt[key.String()]
	c.failMu.RUnlock()
	if !ok {
		return false
	}
	return time.Since(failedAt) < c.cooldown
}
