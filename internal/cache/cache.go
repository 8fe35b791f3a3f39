// Package cache implements the bounded in-memory metadata cache (C6):
// TTL expiry, LRU eviction at capacity, and hit/miss/eviction statistics.
// The cache intentionally does not coalesce concurrent producers — that is
// the orchestrator's job via a double-checked lookup combined with the
// cost of slot acquisition (see internal/orchestrator).
package cache

import (
	"container/list"
	"sync"
	"time"
)

// Key identifies one cache entry: a provider name plus its id within that provider.
type Key struct {
	Provider string
	ID       string
}

// entry is the value stored in the LRU list. Value is nil for a cached
// "not found" (negative) result.
type entry struct {
	key         Key
	value       any
	negative    bool
	insertedAt  time.Time
	listElement *list.Element
}

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Requests  int64
}

// HitRatio returns Hits/Requests, or 0 when there have been no requests.
func (s Stats) HitRatio() float64 {
	if s.Requests == 0 {
		return 0
	}
	return float64(s.Hits) / float64(s.Requests)
}

// Cache is a bounded TTL+LRU cache keyed by (provider, id). Safe for
// concurrent use: every operation, reads included (TryGet updates recency
// and counters), and eviction run under one mutex.
type Cache struct {
	ttl      time.Duration
	capacity int

	mu        sync.Mutex
	items     map[Key]*list.Element
	order     *list.List // front = most recently used
	hits      int64
	misses    int64
	evictions int64
	requests  int64
}

// New constructs a Cache with the given TTL and capacity. A zero or
// negative capacity defaults to 1 to keep the LRU invariant well-defined.
func New(ttl time.Duration, capacity int) *Cache {
	if capacity < 1 {
		capacity = 1
	}
	return &Cache{
		ttl:      ttl,
		capacity: capacity,
		items:    make(map[Key]*list.Element),
		order:    list.New(),
	}
}

// TryGet returns the cached value and true if there is a live (non-expired)
// entry for the key. A positive hit returns (value, true, true); a cached
// negative ("not found") result returns (nil, true, false); a miss
// (absent or expired) returns (nil, false, false).
func (c *Cache) TryGet(key Key) (value any, found bool, positive bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.requests++

	element, ok := c.items[key]
	if !ok {
		c.misses++
		return nil, false, false
	}
	ent := element.Value.(*entry)
	if c.ttl > 0 && time.Since(ent.insertedAt) > c.ttl {
		c.removeElementLocked(element)
		c.misses++
		return nil, false, false
	}

	c.order.MoveToFront(element)
	c.hits++
	if ent.negative {
		return nil, true, false
	}
	return ent.value, true, true
}

// Put stores a positive (value != nil) or negative (value == nil) result
// for key, evicting the least-recently-used entry if the cache is at
// capacity and this is a new key.
func (c *Cache) Put(key Key, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if element, ok := c.items[key]; ok {
		ent := element.Value.(*entry)
		ent.value = value
		ent.negative = value == nil
		ent.insertedAt = time.Now()
		c.order.MoveToFront(element)
		return
	}

	ent := &entry{key: key, value: value, negative: value == nil, insertedAt: time.Now()}
	element := c.order.PushFront(ent)
	ent.listElement = element
	c.items[key] = element

	if c.order.Len() > c.capacity {
		c.evictOldestLocked()
	}
}

// Remove drops a single entry, if present.
func (c *Cache) Remove(key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if element, ok := c.items[key]; ok {
		c.removeElementLocked(element)
	}
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[Key]*list.Element)
	c.order.Init()
}

// StatsSnapshot returns the current counters.
func (c *Cache) StatsSnapshot() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{Hits: c.hits, Misses: c.misses, Evictions: c.evictions, Requests: c.requests}
}

func (c *Cache) evictOldestLocked() {
	oldest := c.order.Back()
	if oldest == nil {
		return
	}
	c.removeElementLocked(oldest)
	c.evictions++
}

func (c *Cache) removeElementLocked(element *list.Element) {
	ent := element.Value.(*entry)
	delete(c.items, ent.key)
	c.order.Remove(element)
}
