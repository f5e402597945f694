package cache

import (
	"container/list"
	"sync"
	"time"
)

// LRUCache bounds entries by count and age. The least recently read entry
// goes first when the cache is full.
type LRUCache[T any] struct {
	mu      sync.Mutex
	limit   int
	ttl     time.Duration
	index   map[string]*list.Element
	order   *list.List // front is most recent
	now     func() time.Time
	observe func(hit bool)
}

type entry[T any] struct {
	key     string
	value   T
	expires time.Time
}

func NewLRUCache[T any](maxSize int, ttl time.Duration) *LRUCache[T] {
	return &LRUCache[T]{
		limit: maxSize,
		ttl:   ttl,
		index: make(map[string]*list.Element, maxSize),
		order: list.New(),
		now:   time.Now,
	}
}

// Observe registers fn to be told about every lookup result.
func (c *LRUCache[T]) Observe(fn func(hit bool)) {
	c.mu.Lock()
	c.observe = fn
	c.mu.Unlock()
}

func (c *LRUCache[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok := c.lookup(key)
	if c.observe != nil {
		c.observe(ok)
	}
	return v, ok
}

func (c *LRUCache[T]) lookup(key string) (v T, ok bool) {
	el, found := c.index[key]
	if !found {
		return v, false
	}
	e := el.Value.(*entry[T])
	if c.now().After(e.expires) {
		c.unlink(el)
		return v, false
	}
	c.order.MoveToFront(el)
	return e.value, true
}

// Set stores value under key, resetting its age.
func (c *LRUCache[T]) Set(key string, value T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := &entry[T]{key: key, value: value, expires: c.now().Add(c.ttl)}
	if el, found := c.index[key]; found {
		el.Value = e
		c.order.MoveToFront(el)
		return
	}
	c.index[key] = c.order.PushFront(e)
	for c.order.Len() > c.limit {
		c.unlink(c.order.Back())
	}
}

func (c *LRUCache[T]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, found := c.index[key]; found {
		c.unlink(el)
	}
}

func (c *LRUCache[T]) unlink(el *list.Element) {
	delete(c.index, el.Value.(*entry[T]).key)
	c.order.Remove(el)
}

// CleanExpired drops aged-out entries and reports how many went.
func (c *LRUCache[T]) CleanExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for el := c.order.Back(); el != nil; {
		prev := el.Prev()
		if now.After(el.Value.(*entry[T]).expires) {
			c.unlink(el)
			removed++
		}
		el = prev
	}
	return removed
}

func (c *LRUCache[T]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *LRUCache[T]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.index)
	c.order.Init()
}
