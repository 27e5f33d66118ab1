// Package cache provides a bounded in-memory key value store with per entry
// TTL and least recently used eviction. Expiry is lazy: entries are checked on
// read and removed when stale, there is no background sweeper
package cache

import (
	"container/list"
	"sync"
	"time"
)

// Cache is a concurrency safe TTL+LRU store bounded by a maximum entry count
type Cache[K comparable, V any] struct {
	mu    sync.Mutex
	max   int
	ll    *list.List
	items map[K]*list.Element

	// now is a seam so tests can drive expiry deterministically
	now func() time.Time
}

type entry[K comparable, V any] struct {
	key      K
	val      V
	storedAt time.Time
	ttl      time.Duration
}

// New constructs a Cache bounded at max entries. max must be positive
func New[K comparable, V any](max int) *Cache[K, V] {
	if max <= 0 {
		panic("cache: max entries must be positive")
	}
	return &Cache[K, V]{
		max:   max,
		ll:    list.New(),
		items: make(map[K]*list.Element, max),
		now:   time.Now,
	}
}

// Get returns the live value for key. An expired entry is evicted and
// reported as absent. A hit refreshes recency
func (c *Cache[K, V]) Get(key K) (V, bool) {
	var zero V
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return zero, false
	}
	e := el.Value.(*entry[K, V])
	if c.expired(e) {
		c.remove(el)
		return zero, false
	}
	c.ll.MoveToFront(el)
	return e.val, true
}

// Set stores val under key with the given ttl and refreshes recency.
// ttl <= 0 means the entry never expires. When the store exceeds its bound
// the least recently touched entry is evicted
func (c *Cache[K, V]) Set(key K, val V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		e := el.Value.(*entry[K, V])
		e.val = val
		e.storedAt = c.now()
		e.ttl = ttl
		c.ll.MoveToFront(el)
		return
	}

	el := c.ll.PushFront(&entry[K, V]{key: key, val: val, storedAt: c.now(), ttl: ttl})
	c.items[key] = el

	if c.ll.Len() > c.max {
		if oldest := c.ll.Back(); oldest != nil {
			c.remove(oldest)
		}
	}
}

// Delete removes key if present
func (c *Cache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		c.remove(el)
	}
}

// Len reports the number of live entries, sweeping any that have expired
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	var next *list.Element
	for el := c.ll.Front(); el != nil; el = next {
		next = el.Next()
		if c.expired(el.Value.(*entry[K, V])) {
			c.remove(el)
		}
	}
	return c.ll.Len()
}

// Purge drops every entry
func (c *Cache[K, V]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ll.Init()
	clear(c.items)
}

func (c *Cache[K, V]) expired(e *entry[K, V]) bool {
	return e.ttl > 0 && c.now().Sub(e.storedAt) > e.ttl
}

func (c *Cache[K, V]) remove(el *list.Element) {
	e := el.Value.(*entry[K, V])
	c.ll.Remove(el)
	delete(c.items, e.key)
}
