// Package cache provides a byte-cost bounded LRU for reassembled payloads.
package cache

import (
	"container/list"
	"sync"
)

// DefaultCapacity is the default byte budget (5 GB).
const DefaultCapacity int64 = 5_000_000_000

// LRU maps keys to byte buffers, bounded by the summed cost of its entries.
// An entry costs len(buf) bytes, or 1 if the buffer is empty.
//
// All methods are safe for concurrent use. Buffers are stored and returned
// as-is; callers must treat them as read-only.
type LRU[K comparable] struct {
	mu       sync.Mutex
	capacity int64
	size     int64
	lru      *list.List // front is most recently used
	index    map[K]*list.Element

	// OnEvict, if set, is called with the mutex held for every entry removed
	// by capacity pressure. It must not call back into the cache.
	OnEvict func(key K, cost int64)
}

type entry[K comparable] struct {
	key  K
	buf  []byte
	cost int64
}

// New creates an LRU with the given byte capacity. A capacity <= 0 uses
// DefaultCapacity.
func New[K comparable](capacity int64) *LRU[K] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &LRU[K]{
		capacity: capacity,
		lru:      list.New(),
		index:    make(map[K]*list.Element),
	}
}

// Cost returns the accounting cost of buf.
func Cost(buf []byte) int64 {
	if len(buf) == 0 {
		return 1
	}
	return int64(len(buf))
}

// Get returns the buffer stored under key and marks it most recently used.
func (c *LRU[K]) Get(key K) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.index[key]
	if !ok {
		return nil, false
	}
	c.lru.MoveToFront(elem)
	return elem.Value.(*entry[K]).buf, true
}

// Contains reports whether key is cached without touching its recency.
func (c *LRU[K]) Contains(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.index[key]
	return ok
}

// Put stores buf under key, replacing any previous entry, and marks it most
// recently used. Least recently used entries are evicted until the new entry
// fits. An entry larger than the whole capacity is still stored and becomes
// the only entry.
func (c *LRU[K]) Put(key K, buf []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.index[key]; ok {
		c.remove(elem)
	}

	cost := Cost(buf)
	for c.size+cost > c.capacity && c.lru.Len() > 0 {
		victim := c.lru.Back()
		e := victim.Value.(*entry[K])
		c.remove(victim)
		if c.OnEvict != nil {
			c.OnEvict(e.key, e.cost)
		}
	}

	c.index[key] = c.lru.PushFront(&entry[K]{key: key, buf: buf, cost: cost})
	c.size += cost
}

// Invalidate removes key if present. It reports whether an entry was removed.
func (c *LRU[K]) Invalidate(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.index[key]
	if !ok {
		return false
	}
	c.remove(elem)
	return true
}

// Len returns the number of entries.
func (c *LRU[K]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Size returns the summed cost of all entries.
func (c *LRU[K]) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// Capacity returns the configured byte budget.
func (c *LRU[K]) Capacity() int64 {
	return c.capacity
}

// Clear drops every entry.
func (c *LRU[K]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Init()
	c.index = make(map[K]*list.Element)
	c.size = 0
}

// remove must be called with c.mu held.
func (c *LRU[K]) remove(elem *list.Element) {
	e := elem.Value.(*entry[K])
	c.lru.Remove(elem)
	delete(c.index, e.key)
	c.size -= e.cost
}
