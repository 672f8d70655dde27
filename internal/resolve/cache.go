package resolve

import (
	"time"

	"github.com/dgraph-io/ristretto"
)

const (
	cacheNumCounters = 1e5
	cacheMaxCost     = 1e4
	cacheBufferItems = 64
	// defaultCacheTTL bounds how long a resolution near the stream head
	// can be served after a tie-timestamp append lands behind it.
	defaultCacheTTL = 30 * time.Second
)

// Cache memoizes resolutions keyed by (entity, generation, instant). The
// generation in the key gives rebuilds snapshot isolation for free: a flip
// changes every key, so readers never mix generations.
type Cache struct {
	cache *ristretto.Cache
	ttl   time.Duration
}

// NewCache builds a resolution cache. A non-positive ttl uses the default.
func NewCache(ttl time.Duration) (*Cache, error) {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: cacheNumCounters,
		MaxCost:     cacheMaxCost,
		BufferItems: cacheBufferItems,
	})
	if err != nil {
		return nil, err
	}
	return &Cache{cache: cache, ttl: ttl}, nil
}

func (c *Cache) get(key string) (any, bool) {
	if c == nil || c.cache == nil {
		return nil, false
	}
	return c.cache.Get(key)
}

func (c *Cache) set(key string, value any) {
	if c == nil || c.cache == nil {
		return
	}
	c.cache.SetWithTTL(key, value, 1, c.ttl)
}

// Wait blocks until pending writes are visible. Tests use this; serving
// paths never need it.
func (c *Cache) Wait() {
	if c == nil || c.cache == nil {
		return
	}
	c.cache.Wait()
}

// Close releases the cache's resources. Nil-safe.
func (c *Cache) Close() {
	if c == nil || c.cache == nil {
		return
	}
	c.cache.Close()
}
