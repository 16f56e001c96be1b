package cache

import (
	"fmt"

	"github.com/jaennil/guide_helper/backend/clusterbuster/pkg/config"
	"github.com/jaennil/guide_helper/backend/clusterbuster/pkg/logger"
)

const (
	BackendMemory    = "memory"
	BackendFreeCache = "freecache"
	BackendSQLite    = "sqlite"
	BackendRedis     = "redis"
	BackendDisabled  = "disabled"
)

// NewTileCache builds the backend selected by cfg.Type. Out-of-process
// backends are put behind a circuit breaker when enabled, and every backend is
// instrumented.
func NewTileCache(cfg config.Cache, redisCfg config.Redis, l logger.Logger) (TileCache, error) {
	var (
		backend TileCache
		err     error
	)

	switch cfg.Type {
	case BackendMemory:
		l.Info("using memory cache", "max_entries", cfg.MaxEntries)
		backend, err = NewMemoryCache(cfg.MaxEntries)
	case BackendFreeCache:
		l.Info("using freecache", "size_bytes", cfg.SizeBytes)
		backend = NewFreeCache(cfg.SizeBytes)
	case BackendSQLite:
		l.Info("using sqlite cache", "path", cfg.SQLitePath, "max_entries", cfg.MaxEntries)
		backend, err = NewSQLiteCache(cfg.SQLitePath, cfg.MaxEntries, l)
	case BackendRedis:
		l.Info("using redis cache", "addr", redisCfg.Addr, "db", redisCfg.DB)
		backend, err = NewRedisCache(RedisConfig{
			Addr:     redisCfg.Addr,
			Password: redisCfg.Password,
			DB:       redisCfg.DB,
		})
	case BackendDisabled:
		l.Info("cache disabled")
		return NoopCache{}, nil
	default:
		return nil, fmt.Errorf("unknown cache type: %s (supported: memory, freecache, sqlite, redis, disabled)", cfg.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s cache: %w", cfg.Type, err)
	}

	if cfg.Breaker.Enabled && (cfg.Type == BackendSQLite || cfg.Type == BackendRedis) {
		backend = NewBreakerCache(backend, BreakerConfig{
			Name:             cfg.Type,
			MaxRequests:      cfg.Breaker.MaxRequests,
			Interval:         cfg.Breaker.Interval,
			Timeout:          cfg.Breaker.Timeout,
			FailureThreshold: cfg.Breaker.FailureThreshold,
			MinRequests:      cfg.Breaker.MinRequests,
		}, l)
	}

	return NewInstrumentedCache(backend, cfg.Type), nil
}
