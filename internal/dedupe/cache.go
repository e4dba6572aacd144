// ABOUTME: TTL cache for suppressing webhook redeliveries
// ABOUTME: Size-bounded with O(1) oldest-entry eviction

package dedupe

import (
	"container/list"
	"sync"
	"time"
)

// DefaultMaxSize bounds the cache when no explicit size is given. Teams
// retries a failed webhook delivery a handful of times within minutes,
// so a few thousand keys is plenty of headroom.
const DefaultMaxSize = 4096

type entry struct {
	seenAt  time.Time
	element *list.Element
}

// Cache remembers delivery keys for a TTL so retried webhook posts are
// processed once. Insertion order is kept in a linked list so eviction
// at capacity is O(1).
type Cache struct {
	mu      sync.Mutex
	entries map[string]*entry
	order   *list.List
	ttl     time.Duration
	maxSize int
	done    chan struct{}
	closed  bool
}

// New creates a cache that forgets keys after ttl. maxSize caps the
// number of live entries; zero or negative uses DefaultMaxSize. A
// background goroutine sweeps expired entries; call Close to stop it.
func New(ttl time.Duration, maxSize int) *Cache {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	c := &Cache{
		entries: make(map[string]*entry),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		done:    make(chan struct{}),
	}
	go c.sweepLoop()
	return c
}

// CheckAndMark reports whether key was already seen within the TTL, and
// marks it seen if not. The check and mark are a single critical section
// so concurrent redeliveries of the same key race to exactly one false.
func (c *Cache) CheckAndMark(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok && time.Since(e.seenAt) < c.ttl {
		e.seenAt = time.Now()
		c.order.MoveToBack(e.element)
		return true
	}

	c.markLocked(key)
	return false
}

// Len returns the number of live entries, expired or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) markLocked(key string) {
	now := time.Now()

	if e, ok := c.entries[key]; ok {
		e.seenAt = now
		c.order.MoveToBack(e.element)
		return
	}

	if len(c.entries) >= c.maxSize {
		if front := c.order.Front(); front != nil {
			oldest, _ := front.Value.(string)
			c.order.Remove(front)
			delete(c.entries, oldest)
		}
	}

	c.entries[key] = &entry{
		seenAt:  now,
		element: c.order.PushBack(key),
	}
}

func (c *Cache) sweepLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.sweep()
		case <-c.done:
			return
		}
	}
}

// sweep drops every entry older than the TTL.
func (c *Cache) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for key, e := range c.entries {
		if now.Sub(e.seenAt) > c.ttl {
			c.order.Remove(e.element)
			delete(c.entries, key)
		}
	}
}

// Close stops the background sweeper. Safe to call more than once.
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		close(c.done)
		c.closed = true
	}
}
