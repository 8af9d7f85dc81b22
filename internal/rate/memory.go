package rate

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryCounter keeps counters in process memory. Limits are per instance.
type MemoryCounter struct {
	mu    sync.Mutex
	cache *gocache.Cache
}

// NewMemoryCounter returns a counter whose expired windows are swept every
// cleanupInterval.
func NewMemoryCounter(cleanupInterval time.Duration) *MemoryCounter {
	if cleanupInterval <= 0 {
		cleanupInterval = time.Minute
	}
	return &MemoryCounter{cache: gocache.New(gocache.NoExpiration, cleanupInterval)}
}

func (c *MemoryCounter) Get(_ context.Context, key string) (int64, error) {
	v, ok := c.cache.Get(key)
	if !ok {
		return 0, nil
	}
	n, _ := v.(int64)
	return n, nil
}

func (c *MemoryCounter) Incr(_ context.Context, key string, ttl time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.cache.Add(key, int64(1), ttl); err == nil {
		return 1, nil
	}
	n, err := c.cache.IncrementInt64(key, 1)
	if err != nil {
		// Window expired between Add and IncrementInt64.
		c.cache.Set(key, int64(1), ttl)
		return 1, nil
	}
	return n, nil
}

func (c *MemoryCounter) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		c.cache.Delete(k)
	}
	return nil
}
