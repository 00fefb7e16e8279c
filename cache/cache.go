package cache

import (
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/wudi/ember/internal/diag"
)

// DefaultMaxEntries is the cache capacity used when a pool doesn't
// override max_script_cache_size.
const DefaultMaxEntries = 512

// Stats is the cache's structured snapshot, reported under Cache's
// lock the same way pool.Pool reports its own statistics.
type Stats struct {
	Enabled     bool
	Entries     int
	MaxEntries  int
	Hits        uint64
	Misses      uint64
	Evictions   uint64
	Invalidations uint64
}

// Cache is the process-scoped bytecode cache: a fixed
// capacity LRU keyed by script path, guarded by an RWMutex for the
// exclusive writer operations (insert/invalidate/clear) while lookups
// only take the read side plus atomic per-entry counters.
type Cache struct {
	mu      sync.RWMutex
	lru     *lru.Cache[string, *Entry]
	maxSize int
	enabled bool

	hits        atomic.Uint64
	misses      atomic.Uint64
	evictions   atomic.Uint64
	invalidates atomic.Uint64
}

// New builds a Cache capped at maxEntries. enabled mirrors the pool
// config's enable_bytecode_caching flag: a disabled cache tracks
// nothing and every Lookup reports a miss, so callers always fall
// through to recompilation rather than failing.
func New(maxEntries int, enabled bool) *Cache {
	if maxEntries < 1 {
		maxEntries = DefaultMaxEntries
	}
	c := &Cache{maxSize: maxEntries, enabled: enabled}
	l, err := lru.NewWithEvict[string, *Entry](maxEntries, func(key string, value *Entry) {
		c.evictions.Add(1)
		diag.Logf(diag.Cache, "evicted %s (access count %d)", key, value.AccessCount())
	})
	if err != nil {
		// maxEntries is always >= 1 by construction above; lru.New only
		// errors on a non-positive size.
		l, _ = lru.NewWithEvict[string, *Entry](DefaultMaxEntries, nil)
	}
	c.lru = l
	return c
}

// Lookup returns a cache hit only if the entry exists and its stored
// fingerprint still matches contentHash/sourceModTime; a stale hit is invalidated
// before reporting the miss.
func (c *Cache) Lookup(path, contentHash string, sourceModTime time.Time) (*Entry, bool) {
	if !c.enabled {
		return nil, false
	}

	c.mu.RLock()
	entry, ok := c.lru.Get(path)
	c.mu.RUnlock()

	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	if entry.ContentHash != contentHash || sourceModTime.After(entry.SourceModTime) {
		c.Invalidate(path)
		c.misses.Add(1)
		return nil, false
	}

	entry.touch()
	c.hits.Add(1)
	return entry, true
}

// Insert installs entry under path, evicting the least-recently-used
// entry if the cache is already at capacity. A re-insert at an
// existing path replaces the map slot atomically (the backing
// lru.Cache's own internal lock guarantees a reader never observes a
// torn value).
func (c *Cache) Insert(path string, entry *Entry) {
	if !c.enabled {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Add(path, entry)
}

// Invalidate removes path's entry, if any, under the writer lock.
func (c *Cache) Invalidate(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lru.Remove(path) {
		c.invalidates.Add(1)
	}
}

// Clear removes every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Purge()
}

// Stats returns a structured snapshot of the cache's counters.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	n := c.lru.Len()
	c.mu.RUnlock()
	return Stats{
		Enabled:       c.enabled,
		Entries:       n,
		MaxEntries:    c.maxSize,
		Hits:          c.hits.Load(),
		Misses:        c.misses.Load(),
		Evictions:     c.evictions.Load(),
		Invalidations: c.invalidates.Load(),
	}
}
