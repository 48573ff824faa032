package cache

import (
	"container/list"
	"sync"
	"time"
)

// Cache defines the common interface for L1 caches.
type Cache[V any] interface {
	Get(key string) (V, bool)
	Set(key string, value V, ttl time.Duration)
	Delete(key string)
	Len() int
	Purge()
}

type entry[V any] struct {
	key     string
	value   V
	expires time.Time
}

type lruCache[V any] struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	items    map[string]*list.Element
	order    *list.List
	now      func() time.Time
}

// NewLRU creates an LRU cache with capacity and default TTL. A negative ttl
// keeps entries until they are evicted.
func NewLRU[V any](capacity int, ttl time.Duration) Cache[V] {
	if capacity <= 0 {
		capacity = 512
	}
	if ttl == 0 {
		ttl = time.Minute
	}
	return &lruCache[V]{
		capacity: capacity,
		ttl:      ttl,
		items:    make(map[string]*list.Element, capacity),
		order:    list.New(),
		now:      time.Now,
	}
}

func (c *lruCache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	elem, ok := c.items[key]
	if !ok {
		return zero, false
	}
	ent := elem.Value.(*entry[V])
	if !ent.expires.IsZero() && !c.now().Before(ent.expires) {
		c.remove(elem)
		return zero, false
	}
	c.order.MoveToFront(elem)
	return ent.value, true
}

func (c *lruCache[V]) Set(key string, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		ent := elem.Value.(*entry[V])
		ent.value = value
		ent.expires = c.expiry(ttl)
		c.order.MoveToFront(elem)
		return
	}
	if len(c.items) >= c.capacity {
		if oldest := c.order.Back(); oldest != nil {
			c.remove(oldest)
		}
	}
	c.items[key] = c.order.PushFront(&entry[V]{key: key, value: value, expires: c.expiry(ttl)})
}

func (c *lruCache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.items[key]; ok {
		c.remove(elem)
	}
}

func (c *lruCache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *lruCache[V]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*list.Element, c.capacity)
	c.order.Init()
}

func (c *lruCache[V]) expiry(ttl time.Duration) time.Time {
	if ttl == 0 {
		ttl = c.ttl
	}
	if ttl < 0 {
		return time.Time{}
	}
	return c.now().Add(ttl)
}

func (c *lruCache[V]) remove(elem *list.Element) {
	c.order.Remove(elem)
	delete(c.items, elem.Value.(*entry[V]).key)
}
