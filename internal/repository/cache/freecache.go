package cache

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/coocood/freecache"
)

// FreeCache keeps tiles in a fixed-size, GC-free byte arena. Eviction is
// approximate LRU per segment and expiry has one second resolution, so
// sub-second TTLs are rounded up.
//
// A single entry must be smaller than 1/1024 of the arena size (256 KiB for
// the default 256 MiB). Larger tiles are rejected by Set with
// freecache.ErrLargeEntry and are never cached.
type FreeCache struct {
	cache *freecache.Cache
}

var _ TileCache = (*FreeCache)(nil)

func NewFreeCache(sizeBytes int) *FreeCache {
	return &FreeCache{cache: freecache.NewCache(sizeBytes)}
}

func (c *FreeCache) Get(_ context.Context, k TileCacheKey) (TileCacheValue, bool, error) {
	v, err := c.cache.Get([]byte(k))
	if err != nil {
		if errors.Is(err, freecache.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("%w: freecache get: %w", ErrCacheUnavailable, err)
	}

	return v, true, nil
}

func (c *FreeCache) Set(_ context.Context, k TileCacheKey, v TileCacheValue, ttl time.Duration) error {
	if ttl <= 0 {
		c.cache.Del([]byte(k))
		return nil
	}

	seconds := int(math.Ceil(ttl.Seconds()))
	if err := c.cache.Set([]byte(k), v, seconds); err != nil {
		return fmt.Errorf("%w: freecache set: %w", ErrCacheUnavailable, err)
	}

	return nil
}

func (c *FreeCache) Close() error {
	c.cache.Clear()
	return nil
}
