package player

import (
	"sync"
	"time"
)

// bodyCache keeps fetched bodies by URL until they expire.
type bodyCache struct {
	mu    sync.RWMutex
	ttl   time.Duration
	now   func() time.Time
	items map[string]cacheEntry
}

type cacheEntry struct {
	body  string
	expAt time.Time
}

func newBodyCache(ttl time.Duration) *bodyCache {
	return &bodyCache{
		ttl:   ttl,
		now:   time.Now,
		items: make(map[string]cacheEntry),
	}
}

func (c *bodyCache) get(key string) (string, bool) {
	c.mu.RLock()
	entry, ok := c.items[key]
	c.mu.RUnlock()
	if !ok {
		return "", false
	}
	if !c.now().Before(entry.expAt) {
		c.mu.Lock()
		if cur, ok := c.items[key]; ok && cur.expAt.Equal(entry.expAt) {
			delete(c.items, key)
		}
		c.mu.Unlock()
		return "", false
	}
	return entry.body, true
}

func (c *bodyCache) set(key, body string) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	c.items[key] = cacheEntry{body: body, expAt: c.now().Add(c.ttl)}
	c.mu.Unlock()
}

func (c *bodyCache) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
