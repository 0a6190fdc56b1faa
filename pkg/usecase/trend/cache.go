package trend

import (
	"sync"
	"time"

	"github.com/karte-health/karte/pkg/model"
)

// defaultTTL is how long a computed dataset stays valid before the next
// access recomputes it
const defaultTTL = time.Hour

// CacheKey identifies one cached dataset. Including the user ID means
// switching users invalidates lookups structurally, with no eviction step.
type CacheKey struct {
	UserID string
	Kind   model.WindowKind
}

// CacheEntry is one complete computed dataset: the day buckets and the
// criticality report derived from the same window. Entries are never
// mutated in place; a refresh replaces the whole entry.
type CacheEntry struct {
	Buckets   []model.DailyBucket
	Report    []model.DailyCriticality
	FetchedAt time.Time
}

// Cache is a time-boxed cache for trend datasets. The clock is injected so
// tests control time.
type Cache struct {
	mu      sync.Mutex
	entries map[CacheKey]*CacheEntry
	ttl     time.Duration
	now     func() time.Time
}

type CacheOption func(*Cache)

func WithTTL(ttl time.Duration) CacheOption {
	return func(c *Cache) {
		c.ttl = ttl
	}
}

func WithClock(now func() time.Time) CacheOption {
	return func(c *Cache) {
		c.now = now
	}
}

func NewCache(opts ...CacheOption) *Cache {
	c := &Cache{
		entries: make(map[CacheKey]*CacheEntry),
		ttl:     defaultTTL,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get is a pure lookup; it never triggers a fetch and ignores freshness
func (c *Cache) Get(userID string, kind model.WindowKind) (*CacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[CacheKey{UserID: userID, Kind: kind}]
	return entry, ok
}

// Fresh reports whether the entry is still within its TTL
func (c *Cache) Fresh(entry *CacheEntry) bool {
	if entry == nil {
		return false
	}
	return c.now().Sub(entry.FetchedAt) < c.ttl
}

// Lookup combines Get and Fresh: a stale entry is a miss
func (c *Cache) Lookup(userID string, kind model.WindowKind) (*CacheEntry, bool) {
	entry, ok := c.Get(userID, kind)
	if !ok || !c.Fresh(entry) {
		return nil, false
	}
	return entry, true
}

// Put stores a complete entry, fully replacing any prior one for the key
func (c *Cache) Put(userID string, kind model.WindowKind, buckets []model.DailyBucket, report []model.DailyCriticality) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[CacheKey{UserID: userID, Kind: kind}] = &CacheEntry{
		Buckets:   buckets,
		Report:    report,
		FetchedAt: c.now(),
	}
}
