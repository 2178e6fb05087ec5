package dispatch

import (
	"sync"
	"sync/atomic"
	"time"
)

// Resolution outcomes reported to an Observer.
const (
	OutcomeResolved    = "resolved"
	OutcomeUnsupported = "unsupported"
	OutcomeError       = "error"
)

// Observer receives cache and resolution events. Implementations must be
// safe for concurrent use.
type Observer interface {
	// RecordCacheLookup records a lookup and whether it hit.
	RecordCacheLookup(hit bool)

	// RecordResolution records one run of the match and compose engine.
	RecordResolution(outcome string, duration time.Duration)

	// RecordCacheSize records the number of cached chains.
	RecordCacheSize(entries int)
}

type nopObserver struct{}

func (nopObserver) RecordCacheLookup(bool)                {}
func (nopObserver) RecordResolution(string, time.Duration) {}
func (nopObserver) RecordCacheSize(int)                   {}

// CacheStats is a point-in-time snapshot of cache counters.
type CacheStats struct {
	Entries    int   `json:"entries"`
	Hits       int64 `json:"hits"`
	Misses     int64 `json:"misses"`
	Identities int   `json:"identities"`
}

// HitRatio returns hits / (hits + misses), or 0 before any lookup.
func (s CacheStats) HitRatio() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Cache maps keys to resolved chains. It is shared by every dispatcher
// created against it and is safe for concurrent use.
//
// Entries never expire. Only successful resolutions are stored, and the first
// chain stored for a key wins.
type Cache struct {
	entries    sync.Map // Key -> *Chain
	size       atomic.Int64
	hits       atomic.Int64
	misses     atomic.Int64
	identities identityTable
	observer   Observer
}

// NewCache creates an empty cache. A nil observer disables reporting.
func NewCache(observer Observer) *Cache {
	if observer == nil {
		observer = nopObserver{}
	}
	return &Cache{observer: observer}
}

// GetOrResolve returns the chain stored for key, computing and storing it on
// a miss. compute may run more than once for the same key under concurrent
// misses; every caller still receives the single stored chain. A compute
// error is returned as is and nothing is stored.
func (c *Cache) GetOrResolve(key Key, compute func() (*Chain, error)) (*Chain, error) {
	if v, ok := c.entries.Load(key); ok {
		c.hits.Add(1)
		c.observer.RecordCacheLookup(true)
		return v.(*Chain), nil
	}
	c.misses.Add(1)
	c.observer.RecordCacheLookup(false)

	start := time.Now()
	chain, err := compute()
	if err != nil {
		c.observer.RecordResolution(OutcomeError, time.Since(start))
		return nil, err
	}
	outcome := OutcomeResolved
	if chain.Unsupported() {
		outcome = OutcomeUnsupported
	}
	c.observer.RecordResolution(outcome, time.Since(start))

	actual, loaded := c.entries.LoadOrStore(key, chain)
	if !loaded {
		c.observer.RecordCacheSize(int(c.size.Add(1)))
	}
	return actual.(*Chain), nil
}

// Lookup returns the cached chain for key without resolving.
func (c *Cache) Lookup(key Key) (*Chain, bool) {
	v, ok := c.entries.Load(key)
	if !ok {
		return nil, false
	}
	return v.(*Chain), true
}

// Clear drops every cached chain. Identity fingerprints stay valid.
func (c *Cache) Clear() int {
	removed := 0
	c.entries.Range(func(k, _ any) bool {
		if _, ok := c.entries.LoadAndDelete(k); ok {
			removed++
			c.size.Add(-1)
		}
		return true
	})
	c.observer.RecordCacheSize(int(c.size.Load()))
	return removed
}

// Len returns the number of cached chains.
func (c *Cache) Len() int {
	return int(c.size.Load())
}

// Stats returns the cache counters.
func (c *Cache) Stats() CacheStats {
	return CacheStats{
		Entries:    c.Len(),
		Hits:       c.hits.Load(),
		Misses:     c.misses.Load(),
		Identities: c.identities.len(),
	}
}

// Fingerprint interns an identity vector. Every value must be comparable.
func (c *Cache) Fingerprint(values []any) (Fingerprint, error) {
	return c.identities.intern(values)
}
