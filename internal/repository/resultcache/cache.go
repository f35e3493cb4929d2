package resultcache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/roadsafe/internal/domain/search/result"
	"github.com/kailas-cloud/roadsafe/internal/metrics"
)

// Defaults applied to a zero Config.
const (
	DefaultTTL        = 10 * time.Minute
	DefaultMaxEntries = 1000
)

// Config controls expiry and capacity.
type Config struct {
	TTL        time.Duration
	MaxEntries int
}

// Stats is a point-in-time view of cache activity.
type Stats struct {
	Entries   int
	Hits      uint64
	Misses    uint64
	Expired   uint64
	Evictions uint64
}

type entry struct {
	set       result.Set
	createdAt time.Time
	ttl       time.Duration
}

func (e entry) expired(now time.Time) bool {
	return !now.Before(e.createdAt.Add(e.ttl))
}

// Cache maps query fingerprints to completed result sets with expiry.
// Expired entries are dropped lazily on read and by Sweep.
type Cache struct {
	mu         sync.RWMutex
	entries    map[string]entry
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
	logger     *zap.Logger

	hits      atomic.Uint64
	misses    atomic.Uint64
	expired   atomic.Uint64
	evictions atomic.Uint64
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithLogger sets the logger used by the sweeper.
func WithLogger(l *zap.Logger) Option {
	return func(c *Cache) { c.logger = l }
}

// New creates a cache.
func New(cfg Config, opts ...Option) *Cache {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultMaxEntries
	}
	c := &Cache{
		entries:    make(map[string]entry),
		ttl:        cfg.TTL,
		maxEntries: cfg.MaxEntries,
		now:        time.Now,
		logger:     zap.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Get returns the set cached under fingerprint if it has not expired.
func (c *Cache) Get(fingerprint string) (result.Set, bool) {
	now := c.now()

	c.mu.RLock()
	e, ok := c.entries[fingerprint]
	c.mu.RUnlock()

	if !ok {
		c.misses.Add(1)
		metrics.ResultCacheTotal.WithLabelValues("miss").Inc()
		return result.Set{}, false
	}
	if e.expired(now) {
		c.mu.Lock()
		// Re-check: a concurrent Set may have refreshed the entry.
		if cur, still := c.entries[fingerprint]; still && cur.expired(now) {
			delete(c.entries, fingerprint)
			metrics.ResultCacheEntries.Set(float64(len(c.entries)))
		}
		c.mu.Unlock()
		c.expired.Add(1)
		metrics.ResultCacheTotal.WithLabelValues("expired").Inc()
		return result.Set{}, false
	}

	c.hits.Add(1)
	metrics.ResultCacheTotal.WithLabelValues("hit").Inc()
	return e.set, true
}

// Set stores a completed result set. ttl <= 0 uses the configured TTL.
// When the cache is full the oldest entry is evicted.
func (c *Cache) Set(fingerprint string, set result.Set, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.ttl
	}
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[fingerprint]; !exists && len(c.entries) >= c.maxEntries {
		c.evictOldestLocked()
	}
	c.entries[fingerprint] = entry{set: set, createdAt: now, ttl: ttl}
	metrics.ResultCacheEntries.Set(float64(len(c.entries)))
}

func (c *Cache) evictOldestLocked() {
	var (
		oldestKey string
		oldestAt  time.Time
		found     bool
	)
	for k, e := range c.entries {
		if !found || e.createdAt.Before(oldestAt) || (e.createdAt.Equal(oldestAt) && k < oldestKey) {
			oldestKey, oldestAt, found = k, e.createdAt, true
		}
	}
	if found {
		delete(c.entries, oldestKey)
		c.evictions.Add(1)
	}
}

// Delete removes a single entry.
func (c *Cache) Delete(fingerprint string) {
	c.mu.Lock()
	delete(c.entries, fingerprint)
	metrics.ResultCacheEntries.Set(float64(len(c.entries)))
	c.mu.Unlock()
}

// Invalidate drops every entry and returns how many were removed.
func (c *Cache) Invalidate() int {
	c.mu.Lock()
	n := len(c.entries)
	c.entries = make(map[string]entry)
	c.mu.Unlock()
	metrics.ResultCacheEntries.Set(0)
	return n
}

// Sweep removes expired entries and returns how many were removed.
func (c *Cache) Sweep() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for k, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, k)
			removed++
		}
	}
	metrics.ResultCacheEntries.Set(float64(len(c.entries)))
	return removed
}

// Run sweeps every interval until ctx is done. interval <= 0 returns immediately.
func (c *Cache) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := c.Sweep(); n > 0 {
				c.logger.Debug("result cache swept", zap.Int("removed", n))
			}
		}
	}
}

// Len returns the number of held entries, expired or not.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats returns counters since creation.
func (c *Cache) Stats() Stats {
	return Stats{
		Entries:   c.Len(),
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Expired:   c.expired.Load(),
		Evictions: c.evictions.Load(),
	}
}
