package cache

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"
	"github.com/jaennil/guide_helper/backend/clusterbuster/pkg/metrics"
)

type memoryEntry struct {
	value     TileCacheValue
	expiresAt time.Time
}

func (e memoryEntry) expired(now time.Time) bool {
	return !now.Before(e.expiresAt)
}

// MemoryCache is an in-process LRU bounded by entry count.
type MemoryCache struct {
	mu  sync.Mutex
	lru *simplelru.LRU[TileCacheKey, memoryEntry]
	now func() time.Time
}

var _ TileCache = (*MemoryCache)(nil)

func NewMemoryCache(maxEntries int) (*MemoryCache, error) {
	l, err := simplelru.NewLRU[TileCacheKey, memoryEntry](maxEntries, nil)
	if err != nil {
		return nil, err
	}

	return &MemoryCache{
		lru: l,
		now: time.Now,
	}, nil
}

func (c *MemoryCache) Get(_ context.Context, k TileCacheKey) (TileCacheValue, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.lru.Get(k)
	if !ok {
		return nil, false, nil
	}

	if e.expired(c.now()) {
		c.lru.Remove(k)
		return nil, false, nil
	}

	return clone(e.value), true, nil
}

func (c *MemoryCache) Set(_ context.Context, k TileCacheKey, v TileCacheValue, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ttl <= 0 {
		c.lru.Remove(k)
		return nil
	}

	evicted := c.lru.Add(k, memoryEntry{
		value:     clone(v),
		expiresAt: c.now().Add(ttl),
	})
	if evicted {
		metrics.CacheEvictions.WithLabelValues(BackendMemory).Inc()
	}
	return nil
}

func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

func (c *MemoryCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Purge()
	return nil
}
