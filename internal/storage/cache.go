package storage

import (
	"fmt"
	"sync"

	"github.com/dgraph-io/ristretto"
)

// Cache keeps the raw entries of recently listed collections so repeated
// reads skip the medium. Every write invalidates the collection; a
// generation counter stops a read that raced a write from caching stale
// entries.
type Cache struct {
	c   *ristretto.Cache
	mu  sync.Mutex
	gen map[string]uint64
}

// NewCache creates a cache bounded to maxBytes of raw entry data.
func NewCache(maxBytes int64) (*Cache, error) {
	if maxBytes <= 0 {
		maxBytes = 64 << 20
	}
	rc, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 10_000,
		MaxCost:     maxBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("storage: failed to create cache: %w", err)
	}
	return &Cache{c: rc, gen: make(map[string]uint64)}, nil
}

// generation returns the current generation of a collection.
func (c *Cache) generation(collection string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen[collection]
}

func (c *Cache) load(collection string) ([]Entry, bool) {
	v, ok := c.c.Get(collection)
	if !ok {
		return nil, false
	}
	entries, ok := v.([]Entry)
	return entries, ok
}

// store caches entries only if no write happened since gen was observed.
func (c *Cache) store(collection string, entries []Entry, gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen[collection] != gen {
		return
	}
	var cost int64 = 1
	for _, e := range entries {
		cost += int64(len(e.Key) + len(e.Value))
	}
	c.c.Set(collection, entries, cost)
	c.c.Wait()
}

// invalidate drops the cached entries of a collection.
func (c *Cache) invalidate(collection string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen[collection]++
	c.c.Del(collection)
}

// Close releases the cache.
func (c *Cache) Close() {
	c.c.Close()
}
