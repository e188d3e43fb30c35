package engine

import (
	"fmt"
	"sync"
	"time"

	"github.com/roach88/vigil/validation"
)

// cacheEntry stores one validated outcome alongside the entity hash it
// was computed from. An entry is served only while it is younger than
// the TTL AND the entity still hashes to the same value; an in-place
// mutation of the same id invalidates the entry without a fresh write.
type cacheEntry struct {
	result   *validation.Result
	storedAt time.Time
	hash     string
}

// resultCache is a TTL + content-hash validation cache with explicit
// FIFO eviction: when full, the oldest-inserted key is evicted.
// Overwriting an existing key keeps its original queue position.
//
// This is deliberately not an LRU; eviction order is insertion order,
// stated as a contract rather than inherited from map iteration order.
type resultCache struct {
	mu      sync.Mutex
	entries map[string]*cacheEntry
	order   []string // insertion-ordered keys for FIFO eviction
	ttl     time.Duration
	maxSize int
	now     func() time.Time
}

func newResultCache(ttl time.Duration, maxSize int) *resultCache {
	return &resultCache{
		entries: make(map[string]*cacheEntry),
		ttl:     ttl,
		maxSize: maxSize,
		now:     time.Now,
	}
}

// get returns the cached result when the entry is fresh and the hash
// still matches. Stale or mutated entries are removed on the spot.
func (c *resultCache) get(key, hash string) (*validation.Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.ttl > 0 && c.now().Sub(entry.storedAt) > c.ttl {
		c.remove(key)
		return nil, false
	}
	if entry.hash != hash {
		c.remove(key)
		return nil, false
	}
	// Clone so callers cannot mutate the cached copy.
	return entry.result.Clone(), true
}

// put stores a result. The cached copy is cloned on the way in for the
// same isolation reason get clones on the way out.
func (c *resultCache) put(key, hash string, result *validation.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; exists {
		// Overwrite in place; FIFO position is unchanged.
		c.entries[key] = &cacheEntry{result: result.Clone(), storedAt: c.now(), hash: hash}
		return
	}

	if c.maxSize > 0 && len(c.entries) >= c.maxSize {
		// Evict the insertion-order-oldest entry.
		oldest := c.order[0]
		c.remove(oldest)
	}

	c.entries[key] = &cacheEntry{result: result.Clone(), storedAt: c.now(), hash: hash}
	c.order = append(c.order, key)
}

// remove deletes a key and its queue slot. Caller holds the lock.
func (c *resultCache) remove(key string) {
	delete(c.entries, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// clear drops every entry.
func (c *resultCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*cacheEntry)
	c.order = nil
}

// len returns the current entry count.
func (c *resultCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// cacheKey derives the cache key for an entity. Prefers an id field
// (id, then Id, then _id); entities with no id key at all fall back to
// their canonical JSON hash, which in practice means no cache reuse
// across distinct instances unless they are content-identical.
func cacheKey(entityType string, entity map[string]any, hash string) string {
	for _, field := range []string{"id", "Id", "_id"} {
		if v, ok := entity[field]; ok && v != nil {
			return fmt.Sprintf("%s:%v", entityType, v)
		}
	}
	return fmt.Sprintf("%s:%s", entityType, hash)
}
