package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TileRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tiles_requests_total",
		Help: "Total number of tile requests by outcome",
	}, []string{"outcome"})

	TileQueryShape = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tiles_query_shape_total",
		Help: "Total number of built tile queries by shape (clustered or raw)",
	}, []string{"shape"})

	TileQueryLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tiles_query_latency_seconds",
		Help:    "Latency of tile query execution in seconds",
		Buckets: prometheus.DefBuckets,
	})

	TileCompressLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tiles_compress_latency_seconds",
		Help:    "Latency of tile compression in seconds",
		Buckets: []float64{.0001, .0005, .001, .005, .01, .025, .05, .1},
	})

	TileSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tiles_size_bytes",
		Help:    "Size of compressed tiles in bytes",
		Buckets: prometheus.ExponentialBuckets(256, 4, 8),
	})

	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total number of cache hits",
	}, []string{"backend"})

	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total number of cache misses",
	}, []string{"backend"})

	CacheStores = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_stores_total",
		Help: "Total number of cache store operations",
	}, []string{"backend"})

	CacheEvictions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_evictions_total",
		Help: "Total number of entries evicted to make room for new ones",
	}, []string{"backend"})

	CacheErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_errors_total",
		Help: "Total number of cache backend errors",
	}, []string{"backend", "operation"})

	CacheOperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cache_operation_duration_seconds",
		Help:    "Duration of cache operations in seconds",
		Buckets: []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
	}, []string{"backend", "operation"})

	CacheBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "cache_breaker_state",
		Help: "Cache circuit breaker state (0 closed, 1 half-open, 2 open)",
	}, []string{"backend"})
)
