package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache relies on the server for expiry and eviction; configure it with
// maxmemory and maxmemory-policy allkeys-lru to get LRU behaviour.
type RedisCache struct {
	client *redis.Client
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

func NewRedisCache(cfg RedisConfig) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisCache{
		client: client,
	}, nil
}

var _ TileCache = (*RedisCache)(nil)

func (c *RedisCache) Get(ctx context.Context, k TileCacheKey) (TileCacheValue, bool, error) {
	data, err := c.client.Get(ctx, string(k)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("%w: redis get: %w", ErrCacheUnavailable, err)
	}

	return data, true, nil
}

func (c *RedisCache) Set(ctx context.Context, k TileCacheKey, v TileCacheValue, ttl time.Duration) error {
	if ttl <= 0 {
		if err := c.client.Del(ctx, string(k)).Err(); err != nil {
			return fmt.Errorf("%w: redis del: %w", ErrCacheUnavailable, err)
		}
		return nil
	}

	if err := c.client.Set(ctx, string(k), []byte(v), ttl).Err(); err != nil {
		return fmt.Errorf("%w: redis set: %w", ErrCacheUnavailable, err)
	}

	return nil
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
