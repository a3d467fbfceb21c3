package cache

import (
	"context"
	"time"

	"github.com/maypok86/otter"

	"github.com/rafaeljc/accolade/internal/observability"
)

// MemoryCache is an L1 cache using the contention-free S3-FIFO algorithm
// provided by 'otter'. Every entry expires after the configured TTL.
type MemoryCache[V any] struct {
	name  string
	store otter.Cache[string, V]
}

// NewMemoryCache initializes an in-memory cache with strict limits.
// name labels the cache metrics; capacity is a hard cap on items.
func NewMemoryCache[V any](name string, capacity int, ttl time.Duration) (*MemoryCache[V], error) {
	store, err := otter.MustBuilder[string, V](capacity).
		CollectStats().
		WithTTL(ttl).
		Build()
	if err != nil {
		return nil, err
	}

	return &MemoryCache[V]{name: name, store: store}, nil
}

// Get retrieves a value and reports whether it was found.
func (c *MemoryCache[V]) Get(key string) (V, bool) {
	v, ok := c.store.Get(key)
	if ok {
		observability.CacheHits.WithLabelValues(c.name).Inc()
	} else {
		observability.CacheMisses.WithLabelValues(c.name).Inc()
	}
	return v, ok
}

// Set adds or updates a value. The TTL configured at construction applies.
func (c *MemoryCache[V]) Set(key string, value V) {
	c.store.Set(key, value)
}

// Del removes a value.
func (c *MemoryCache[V]) Del(key string) {
	c.store.Delete(key)
}

// Clear removes every entry.
func (c *MemoryCache[V]) Clear() {
	c.store.Clear()
}

// Len returns the current number of entries.
func (c *MemoryCache[V]) Len() int {
	return c.store.Size()
}

// RunMetricsCollector exports the size and eviction count every interval until ctx is done.
func (c *MemoryCache[V]) RunMetricsCollector(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastEvicted int64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			observability.CacheItems.WithLabelValues(c.name).Set(float64(c.store.Size()))

			evicted := c.store.Stats().EvictedCount()
			if d := evicted - lastEvicted; d > 0 {
				observability.CacheEvictions.WithLabelValues(c.name).Add(float64(d))
			}
			lastEvicted = evicted
		}
	}
}

// Close shuts down the cache and its background cleanup goroutines.
func (c *MemoryCache[V]) Close() {
	c.store.Close()
}
