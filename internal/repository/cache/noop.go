package cache

import (
	"context"
	"time"
)

// NoopCache never stores anything. Used when caching is disabled.
type NoopCache struct{}

var _ TileCache = NoopCache{}

func (NoopCache) Get(context.Context, TileCacheKey) (TileCacheValue, bool, error) {
	return nil, false, nil
}

func (NoopCache) Set(context.Context, TileCacheKey, TileCacheValue, time.Duration) error {
	return nil
}

func (NoopCache) Close() error {
	return nil
}
