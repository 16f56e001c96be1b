package cache

import (
	"context"
	"errors"
	"time"
)

// TileCacheKey identifies one rendered tile: table, coordinate and filters.
type TileCacheKey string

// TileCacheValue is a compressed tile payload.
type TileCacheValue []byte

// ErrCacheUnavailable marks failures of the backing store itself. Callers are
// expected to treat it as a miss.
var ErrCacheUnavailable = errors.New("tile cache unavailable")

// TileCache stores compressed tiles with a per-entry TTL.
//
// Get reports a miss for absent and expired keys without an error. Set with a
// non-positive ttl removes the key instead of storing it.
type TileCache interface {
	Get(ctx context.Context, k TileCacheKey) (TileCacheValue, bool, error)
	Set(ctx context.Context, k TileCacheKey, v TileCacheValue, ttl time.Duration) error
	Close() error
}

func clone(v TileCacheValue) TileCacheValue {
	if v == nil {
		return nil
	}
	out := make(TileCacheValue, len(v))
	copy(out, v)
	return out
}
