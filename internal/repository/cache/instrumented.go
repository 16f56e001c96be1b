package cache

import (
	"context"
	"time"

	"github.com/jaennil/guide_helper/backend/clusterbuster/pkg/metrics"
)

// InstrumentedCache records hit, miss, store and error counts and latency of
// the wrapped backend.
type InstrumentedCache struct {
	next    TileCache
	backend string
}

var _ TileCache = (*InstrumentedCache)(nil)

func NewInstrumentedCache(next TileCache, backend string) *InstrumentedCache {
	return &InstrumentedCache{next: next, backend: backend}
}

func (c *InstrumentedCache) Get(ctx context.Context, k TileCacheKey) (TileCacheValue, bool, error) {
	start := time.Now()
	v, found, err := c.next.Get(ctx, k)
	metrics.CacheOperationDuration.WithLabelValues(c.backend, "get").Observe(time.Since(start).Seconds())

	switch {
	case err != nil:
		metrics.CacheErrors.WithLabelValues(c.backend, "get").Inc()
	case found:
		metrics.CacheHits.WithLabelValues(c.backend).Inc()
	default:
		metrics.CacheMisses.WithLabelValues(c.backend).Inc()
	}

	return v, found, err
}

func (c *InstrumentedCache) Set(ctx context.Context, k TileCacheKey, v TileCacheValue, ttl time.Duration) error {
	start := time.Now()
	err := c.next.Set(ctx, k, v, ttl)
	metrics.CacheOperationDuration.WithLabelValues(c.backend, "set").Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.CacheErrors.WithLabelValues(c.backend, "set").Inc()
		return err
	}

	metrics.CacheStores.WithLabelValues(c.backend).Inc()
	return nil
}

func (c *InstrumentedCache) Close() error {
	return c.next.Close()
}
