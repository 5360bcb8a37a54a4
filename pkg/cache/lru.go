package cache

import (
	"sync"
	"time"
)

type node[T any] struct {
	key       string
	value     T
	expiresAt time.Time
	prev      *node[T]
	next      *node[T]
}

// LRUCache is a concurrency-safe LRU cache with an optional per-entry TTL.
// A zero ttl means entries only leave by eviction or Purge.
type LRUCache[T any] struct {
	cache    map[string]*node[T]
	head     *node[T] // most recently used
	tail     *node[T] // least recently used
	capacity int
	ttl      time.Duration
	size     int
	now      func() time.Time
	mu       sync.Mutex
}

// NewLRUCache creates a cache holding at most capacity entries.
func NewLRUCache[T any](capacity int, ttl time.Duration) *LRUCache[T] {
	if capacity <= 0 {
		capacity = 1
	}
	head := &node[T]{}
	tail := &node[T]{}
	head.next = tail
	tail.prev = head

	return &LRUCache[T]{
		cache:    make(map[string]*node[T], capacity),
		head:     head,
		tail:     tail,
		capacity: capacity,
		ttl:      ttl,
		now:      time.Now,
	}
}

func (c *LRUCache[T]) moveToHead(n *node[T]) {
	c.removeNode(n)
	c.addToHead(n)
}

func (c *LRUCache[T]) addToHead(n *node[T]) {
	n.prev = c.head
	n.next = c.head.next
	c.head.next.prev = n
	c.head.next = n
}

func (c *LRUCache[T]) removeNode(n *node[T]) {
	n.prev.next = n.next
	n.next.prev = n.prev
}

func (c *LRUCache[T]) removeTail() *node[T] {
	n := c.tail.prev
	c.removeNode(n)
	return n
}

func (c *LRUCache[T]) expired(n *node[T]) bool {
	return c.ttl > 0 && !c.now().Before(n.expiresAt)
}

// Get returns the value for key if present and not expired.
func (c *LRUCache[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if n, ok := c.cache[key]; ok {
		if c.expired(n) {
			c.removeNode(n)
			delete(c.cache, key)
			c.size--
		} else {
			c.moveToHead(n)
			return n.value, true
		}
	}

	var zero T
	return zero, false
}

// Put adds or replaces the value for key.
func (c *LRUCache[T]) Put(key string, value T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := c.now().Add(c.ttl)
	if n, ok := c.cache[key]; ok {
		n.value = value
		n.expiresAt = expiresAt
		c.moveToHead(n)
		return
	}

	n := &node[T]{key: key, value: value, expiresAt: expiresAt}
	c.cache[key] = n
	c.addToHead(n)
	c.size++

	if c.size > c.capacity {
		removed := c.removeTail()
		delete(c.cache, removed.key)
		c.size--
	}
}

// Purge drops every entry.
func (c *LRUCache[T]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache = make(map[string]*node[T], c.capacity)
	c.head.next = c.tail
	c.tail.prev = c.head
	c.size = 0
}

// Len returns the number of entries, expired ones included until touched.
func (c *LRUCache[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}
