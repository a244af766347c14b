// Package cache implements the vault's bounded, lock-free LRU over
// ciphertext values. Concurrent readers and writers use
// sync.Map; eviction is driven by an atomically-updated last-accessed
// timestamp per entry rather than a mutex-guarded list, the same
// lock-free-chain idiom the key lifecycle manager's in-memory key chains
// use.
package cache

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cysec-io/cysec/internal/metrics"
)

// Mode selects when a Put's database write happens relative to its cache
// insert.
type Mode int

const (
	// WriteThrough persists to the database before inserting into the
	// cache: a Put does not return success until the value is durable.
	WriteThrough Mode = iota
	// WriteBack inserts into the cache immediately and persists
	// asynchronously, coalescing bursts of writes to the same key.
	WriteBack
)

// PersistFunc is how the cache reaches the database. The cache never
// interprets value: it is opaque ciphertext produced by the crypto layer,
// so compromising the cache alone yields nothing not already at rest.
type PersistFunc func(ctx context.Context, key, value string) error

// entry is one cached value plus its LRU bookkeeping. Fields touched
// concurrently are atomics so Get can update access stats without taking
// a lock.
type entry struct {
	value          string
	createdAt      int64 // unix nanos, fixed at insert
	lastAccessedNs atomic.Int64
	accessCount    atomic.Int64
}

// Cache is a bounded map from key to ciphertext value with LRU eviction
// and TTL expiry.
type Cache struct {
	entries sync.Map // string -> *entry
	count   atomic.Int64

	maxEntries int
	ttl        time.Duration
	mode       Mode
	persist    PersistFunc
	metrics    metrics.BusinessMetrics

	hits            atomic.Int64
	misses          atomic.Int64
	evictions       atomic.Int64
	writebackFailed atomic.Int64

	pendingMu sync.Mutex
	pending   map[string]string // write-back queue, keyed by key, coalesced

	stop chan struct{}
	once sync.Once
}

// New builds a Cache bounded to maxEntries, expiring entries after ttl,
// persisting through persist in the given mode. bm may be
// metrics.NewNoOpBusinessMetrics() if metrics are disabled.
func New(maxEntries int, ttl time.Duration, mode Mode, persist PersistFunc, bm metrics.BusinessMetrics) *Cache {
	return &Cache{
		maxEntries: maxEntries,
		ttl:        ttl,
		mode:       mode,
		persist:    persist,
		metrics:    bm,
		pending:    make(map[string]string),
		stop:       make(chan struct{}),
	}
}

// Get returns the cached value for key, updating its LRU timestamp and
// access count on a hit.
func (c *Cache) Get(ctx context.Context, key string) (value string, ok bool) {
	v, found := c.entries.Load(key)
	if !found {
		c.misses.Add(1)
		c.metrics.RecordOperation(ctx, "cache", "get", "miss")
		return "", false
	}
	e := v.(*entry)
	e.lastAccessedNs.Store(time.Now().UnixNano())
	e.accessCount.Add(1)
	c.hits.Add(1)
	c.metrics.RecordOperation(ctx, "cache", "get", "hit")
	return e.value, true
}

// Put stores value under key. In WriteThrough mode the database write via
// persist happens before the cache insert; in WriteBack mode the cache
// insert happens immediately and persist runs asynchronously.
func (c *Cache) Put(ctx context.Context, key, value string) error {
	if c.mode == WriteThrough {
		if err := c.persist(ctx, key, value); err != nil {
			c.metrics.RecordOperation(ctx, "cache", "put", "error")
			return err
		}
		c.insert(key, value)
		c.metrics.RecordOperation(ctx, "cache", "put", "success")
		return nil
	}

	c.insert(key, value)
	c.queueWriteback(key, value)
	c.metrics.RecordOperation(ctx, "cache", "put", "success")
	return nil
}

func (c *Cache) insert(key, value string) {
	now := time.Now().UnixNano()
	e := &entry{value: value, createdAt: now}
	e.lastAccessedNs.Store(now)
	if _, existed := c.entries.Swap(key, e); !existed {
		c.count.Add(1)
	}
	if c.maxEntries > 0 && int(c.count.Load()) > c.maxEntries {
		c.evictOldest()
	}
}

// evictOldest removes the entry with the smallest last_accessed_ns. A full
// scan is unavoidable without an auxiliary ordered index; sync.Map gives
// no ordering guarantee to exploit.
func (c *Cache) evictOldest() {
	var oldestKey any
	var oldestTs int64 = -1
	c.entries.Range(func(key, value any) bool {
		e := value.(*entry)
		ts := e.lastAccessedNs.Load()
		if oldestTs == -1 || ts < oldestTs {
			oldestTs = ts
			oldestKey = key
		}
		return true
	})
	if oldestKey != nil {
		if _, existed := c.entries.LoadAndDelete(oldestKey); existed {
			c.count.Add(-1)
			c.evictions.Add(1)
		}
	}
}

func (c *Cache) queueWriteback(key, value string) {
	c.pendingMu.Lock()
	c.pending[key] = value
	c.pendingMu.Unlock()
}

// InvalidateKey removes a single key, reporting whether it was present.
func (c *Cache) InvalidateKey(key string) bool {
	_, existed := c.entries.LoadAndDelete(key)
	if existed {
		c.count.Add(-1)
	}
	return existed
}

// InvalidatePattern removes every key matching pattern (substring match;
// the cache has no index to support glob translation the way storage.Find
// does, so pattern is always treated as a plain substring). Returns the
// count removed.
func (c *Cache) InvalidatePattern(pattern string) int {
	removed := 0
	c.entries.Range(func(key, _ any) bool {
		if strings.Contains(key.(string), pattern) {
			if c.InvalidateKey(key.(string)) {
				removed++
			}
		}
		return true
	})
	return removed
}

// InvalidateOlderThan removes every entry created more than age ago.
// Returns the count removed.
func (c *Cache) InvalidateOlderThan(age time.Duration) int {
	cutoff := time.Now().Add(-age).UnixNano()
	removed := 0
	c.entries.Range(func(key, value any) bool {
		if value.(*entry).createdAt <= cutoff {
			if c.InvalidateKey(key.(string)) {
				removed++
			}
		}
		return true
	})
	return removed
}

// InvalidateAll clears the cache entirely. Returns the count removed.
func (c *Cache) InvalidateAll() int {
	removed := 0
	c.entries.Range(func(key, _ any) bool {
		if c.InvalidateKey(key.(string)) {
			removed++
		}
		return true
	})
	return removed
}

// Len returns the current entry count.
func (c *Cache) Len() int {
	return int(c.count.Load())
}

// Stats is a point-in-time snapshot of the cache's counters.
type Stats struct {
	Hits              int64
	Misses            int64
	Evictions         int64
	WritebackFailures int64
	Len               int
}

// Metrics returns a snapshot of the cache's counters.
func (c *Cache) Metrics() Stats {
	return Stats{
		Hits:              c.hits.Load(),
		Misses:            c.misses.Load(),
		Evictions:         c.evictions.Load(),
		WritebackFailures: c.writebackFailed.Load(),
		Len:               c.Len(),
	}
}

