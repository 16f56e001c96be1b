package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jaennil/guide_helper/backend/clusterbuster/pkg/logger"
	"github.com/jaennil/guide_helper/backend/clusterbuster/pkg/metrics"
	"github.com/sony/gobreaker"
)

type BreakerConfig struct {
	Name             string
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold float64
	MinRequests      uint32
}

// BreakerCache stops calling a failing backend for a while. While the circuit
// is open every call fails fast with ErrCacheUnavailable.
type BreakerCache struct {
	next TileCache
	cb   *gobreaker.CircuitBreaker
}

var _ TileCache = (*BreakerCache)(nil)

type getResult struct {
	value TileCacheValue
	found bool
}

func NewBreakerCache(next TileCache, cfg BreakerConfig, l logger.Logger) *BreakerCache {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}

			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			l.Warn("cache circuit breaker state changed", "backend", name, "from", from.String(), "to", to.String())
			metrics.CacheBreakerState.WithLabelValues(name).Set(float64(to))
		},
		// a canceled request says nothing about backend health
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})

	return &BreakerCache{next: next, cb: cb}
}

func (c *BreakerCache) Get(ctx context.Context, k TileCacheKey) (TileCacheValue, bool, error) {
	res, err := c.cb.Execute(func() (any, error) {
		v, found, err := c.next.Get(ctx, k)
		if err != nil {
			return nil, err
		}
		return getResult{value: v, found: found}, nil
	})
	if err != nil {
		return nil, false, c.wrap(err)
	}

	r := res.(getResult)
	return r.value, r.found, nil
}

func (c *BreakerCache) Set(ctx context.Context, k TileCacheKey, v TileCacheValue, ttl time.Duration) error {
	_, err := c.cb.Execute(func() (any, error) {
		return nil, c.next.Set(ctx, k, v, ttl)
	})
	if err != nil {
		return c.wrap(err)
	}
	return nil
}

func (c *BreakerCache) State() gobreaker.State {
	return c.cb.State()
}

func (c *BreakerCache) Close() error {
	return c.next.Close()
}

func (c *BreakerCache) wrap(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %s: %w", ErrCacheUnavailable, c.cb.Name(), err)
	}
	return err
}
