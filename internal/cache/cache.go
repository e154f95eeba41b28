// Package cache memoizes enrichment lookups in process memory.
package cache

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// TTLs per lookup family.
const (
	TTLDomain     = 24 * time.Hour
	TTLIP         = time.Hour
	TTLEmail      = time.Hour
	TTLPhone      = time.Hour
	TTLShodan     = time.Hour
	TTLVirusTotal = 6 * time.Hour
)

// Cache is a TTL map. Entries are never evicted early; an expired entry is
// dropped when it is next read.
type Cache struct {
	mu    sync.Mutex
	now   func() time.Time
	items map[string]entry
}

type entry struct {
	value   any
	expires time.Time
}

func New(now func() time.Time) *Cache {
	if now == nil {
		now = time.Now
	}
	return &Cache{now: now, items: make(map[string]entry)}
}

// Key joins module, function and arguments into one cache key.
func Key(module, fn string, args ...any) string {
	var b strings.Builder
	b.WriteString(module)
	b.WriteByte(':')
	b.WriteString(fn)
	for _, a := range args {
		b.WriteByte('|')
		fmt.Fprint(&b, a)
	}
	return b.String()
}

func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.items[key]
	if !ok {
		return nil, false
	}
	if !c.now().Before(e.expires) {
		delete(c.items, key)
		return nil, false
	}
	return e.value, true
}

func (c *Cache) Set(key string, value any, ttl time.Duration) {
	c.mu.Lock()
	c.items[key] = entry{value: value, expires: c.now().Add(ttl)}
	c.mu.Unlock()
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Flush drops every entry.
func (c *Cache) Flush() {
	c.mu.Lock()
	c.items = make(map[string]entry)
	c.mu.Unlock()
}
