package cache

import (
	"strings"
	"sync"
	"time"
)

// TTL is an in-memory cache whose entries expire after a fixed duration.
// Used for tenant (clinic) lookups on every request.
type TTL[V any] struct {
	mu    sync.RWMutex
	items map[string]item[V]
	ttl   time.Duration
	now   func() time.Time
	stop  chan struct{}
	once  sync.Once
}

type item[V any] struct {
	value V
	exp   time.Time
}

// New returns a cache with the given ttl and starts a janitor goroutine; call Stop to release it.
func New[V any](ttl time.Duration) *TTL[V] {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	c := &TTL[V]{items: make(map[string]item[V]), ttl: ttl, now: time.Now, stop: make(chan struct{})}
	go c.cleanup()
	return c
}

func (c *TTL[V]) cleanup() {
	tick := time.NewTicker(c.ttl / 2)
	defer tick.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-tick.C:
			c.mu.Lock()
			now := c.now()
			for k, v := range c.items {
				if v.exp.Before(now) {
					delete(c.items, k)
				}
			}
			c.mu.Unlock()
		}
	}
}

// Get returns the value for key if present and not expired.
func (c *TTL[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	it, ok := c.items[key]
	c.mu.RUnlock()
	if !ok || it.exp.Before(c.now()) {
		var zero V
		return zero, false
	}
	return it.value, true
}

func (c *TTL[V]) Set(key string, value V) {
	exp := c.now().Add(c.ttl)
	c.mu.Lock()
	c.items[key] = item[V]{value: value, exp: exp}
	c.mu.Unlock()
}

func (c *TTL[V]) Delete(key string) {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
}

// DeletePrefix removes all keys that start with prefix (e.g. "clinic:" after a billing sweep).
func (c *TTL[V]) DeletePrefix(prefix string) {
	c.mu.Lock()
	for k := range c.items {
		if strings.HasPrefix(k, prefix) {
			delete(c.items, k)
		}
	}
	c.mu.Unlock()
}

func (c *TTL[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

func (c *TTL[V]) Stop() {
	c.once.Do(func() { close(c.stop) })
}
