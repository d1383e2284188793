// Package cache provides the bounded, expiring in-process store used for
// per-user purchase lists.
package cache

import (
	"container/list"
	"sync"
	"time"
)

// Options bounds an LRU. Zero MaxEntries or MaxSize disables that bound, zero
// TTL keeps entries until they are evicted.
type Options[V any] struct {
	MaxEntries int
	MaxSize    int
	TTL        time.Duration
	// SizeOf reports the weight of a value against MaxSize. Defaults to 1.
	SizeOf func(V) int
	Now    func() time.Time
}

type entry[K comparable, V any] struct {
	key       K
	value     V
	size      int
	createdAt time.Time
}

// LRU is a least-recently-used cache bounded by entry count and aggregate
// size, with a fixed time-to-live checked lazily on access.
type LRU[K comparable, V any] struct {
	mu    sync.Mutex
	opts  Options[V]
	ll    *list.List // front is most recently used
	items map[K]*list.Element
	size  int
}

func New[K comparable, V any](opts Options[V]) *LRU[K, V] {
	if opts.SizeOf == nil {
		opts.SizeOf = func(V) int { return 1 }
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &LRU[K, V]{
		opts:  opts,
		ll:    list.New(),
		items: make(map[K]*list.Element),
	}
}

// Get returns the value for key. Expired entries are removed and reported as
// absent.
func (c *LRU[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	el, ok := c.items[key]
	if !ok {
		return zero, false
	}
	e := el.Value.(*entry[K, V])
	if c.expired(e) {
		c.removeElement(el)
		return zero, false
	}
	c.ll.MoveToFront(el)
	return e.value, true
}

// Set stores value under key, replacing any previous entry, then evicts from
// the back until both bounds hold. A value heavier than MaxSize on its own is
// not stored.
func (c *LRU[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		c.removeElement(el)
	}

	size := c.opts.SizeOf(value)
	if size < 1 {
		size = 1
	}
	if c.opts.MaxSize > 0 && size > c.opts.MaxSize {
		return
	}

	e := &entry[K, V]{key: key, value: value, size: size, createdAt: c.opts.Now()}
	c.items[key] = c.ll.PushFront(e)
	c.size += size

	for c.overBounds() {
		c.removeElement(c.ll.Back())
	}
}

func (c *LRU[K, V]) Delete(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if ok {
		c.removeElement(el)
	}
	return ok
}

// PurgeStale drops every expired entry and returns how many were removed.
func (c *LRU[K, V]) PurgeStale() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for el := c.ll.Back(); el != nil; {
		prev := el.Prev()
		if c.expired(el.Value.(*entry[K, V])) {
			c.removeElement(el)
			removed++
		}
		el = prev
	}
	return removed
}

// Reset empties the cache.
func (c *LRU[K, V]) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ll.Init()
	c.items = make(map[K]*list.Element)
	c.size = 0
}

func (c *LRU[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

// Size is the aggregate SizeOf of the stored values.
func (c *LRU[K, V]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

func (c *LRU[K, V]) expired(e *entry[K, V]) bool {
	if c.opts.TTL <= 0 {
		return false
	}
	return c.opts.Now().Sub(e.createdAt) > c.opts.TTL
}

func (c *LRU[K, V]) overBounds() bool {
	if c.ll.Len() == 0 {
		return false
	}
	if c.opts.MaxEntries > 0 && c.ll.Len() > c.opts.MaxEntries {
		return true
	}
	return c.opts.MaxSize > 0 && c.size > c.opts.MaxSize
}

func (c *LRU[K, V]) removeElement(el *list.Element) {
	e := c.ll.Remove(el).(*entry[K, V])
	delete(c.items, e.key)
	c.size -= e.size
}
