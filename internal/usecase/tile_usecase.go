package usecase

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/jaennil/guide_helper/backend/clusterbuster/internal/query"
	"github.com/jaennil/guide_helper/backend/clusterbuster/internal/repository/cache"
	"github.com/jaennil/guide_helper/backend/clusterbuster/pkg/logger"
	"github.com/jaennil/guide_helper/backend/clusterbuster/pkg/metrics"
	"github.com/jaennil/guide_helper/backend/clusterbuster/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

// QueryExecutor runs SQL and returns rows keyed by column name.
type QueryExecutor interface {
	Query(ctx context.Context, sql string) ([]map[string]any, error)
}

type Compressor interface {
	Compress(ctx context.Context, data []byte) ([]byte, error)
}

// FiltersToWhere turns request parameters into SQL boolean clauses.
type FiltersToWhere func(params map[string]string) []string

// Defaults are the server-level tile settings a request falls back to.
type Defaults struct {
	MaxZoomLevel int
	Table        string
	Geometry     string
	SRID         int
	SourceLayer  string
	Radius       float64
	Extent       int
	BufferSize   int
	Attributes   []string
}

type Config struct {
	Defaults       Defaults
	TTL            cache.TTLPolicy
	FiltersToWhere FiltersToWhere
	Debug          bool
	SingleFlight   bool
}

// TileRequest is one tile lookup. Z, X and Y are raw path segments. Nil or
// empty overrides fall back to the server defaults.
type TileRequest struct {
	ID string

	Z, X, Y string

	Table       string
	Geometry    string
	SourceLayer string
	Attributes  []string

	MaxZoomLevel *int
	CacheTTL     *time.Duration
	Radius       *float64
	Extent       *int
	BufferSize   *int

	QueryParams    map[string]string
	ZoomToDistance query.ZoomStrategy
	BaseQuery      query.BaseQueryFunc
}

type TileUseCase struct {
	cfg        Config
	cache      cache.TileCache
	executor   QueryExecutor
	compressor Compressor
	group      singleflight.Group
	logger     logger.Logger
}

func NewTileUseCase(cfg Config, tileCache cache.TileCache, executor QueryExecutor, compressor Compressor, l logger.Logger) *TileUseCase {
	if tileCache == nil {
		tileCache = cache.NoopCache{}
	}

	return &TileUseCase{
		cfg:        cfg,
		cache:      tileCache,
		executor:   executor,
		compressor: compressor,
		logger:     l,
	}
}

// GetTile returns the gzip-compressed vector tile for req. Cache failures
// never fail a request, they only turn lookups into misses.
func (uc *TileUseCase) GetTile(ctx context.Context, req TileRequest) ([]byte, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "TileUseCase.GetTile")
	defer span.End()

	tile, err := query.ParseTile(req.Z, req.X, req.Y)
	if err != nil {
		metrics.TileRequests.WithLabelValues("invalid").Inc()
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("%w: %w", ErrInvalidTileCoordinate, err)
	}

	table := or(req.Table, uc.cfg.Defaults.Table)
	span.SetAttributes(
		attribute.Int("tile.z", tile.Z),
		attribute.Int("tile.x", tile.X),
		attribute.Int("tile.y", tile.Y),
		attribute.String("tile.table", table),
	)

	var filters []string
	if uc.cfg.FiltersToWhere != nil {
		filters = uc.cfg.FiltersToWhere(req.QueryParams)
	}

	key, cacheable := cache.BuildKey(table, tile.Z, tile.X, tile.Y, filters)
	if cacheable {
		if v, found := uc.lookup(ctx, req.ID, key); found {
			metrics.TileRequests.WithLabelValues("hit").Inc()
			span.SetAttributes(attribute.Bool("tile.cache_hit", true))
			return v, nil
		}
	}

	produce := func(ctx context.Context) ([]byte, error) {
		payload, err := uc.render(ctx, req, tile, table, filters)
		if err != nil {
			return nil, err
		}
		if cacheable {
			uc.fill(ctx, req.ID, key, uc.cfg.TTL.TTL(tile.Z, req.CacheTTL), payload)
		}
		return payload, nil
	}

	var payload []byte
	if cacheable && uc.cfg.SingleFlight {
		payload, err = uc.shared(ctx, span, key, produce)
	} else {
		payload, err = produce(ctx)
	}
	if err != nil {
		metrics.TileRequests.WithLabelValues("error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	metrics.TileRequests.WithLabelValues("miss").Inc()
	span.SetAttributes(attribute.Bool("tile.cache_hit", false), attribute.Int("tile.size", len(payload)))

	return payload, nil
}

// shared collapses concurrent misses for the same key into one produce call.
// The shared render is detached from the cancellation of whichever caller
// started it; each caller stops waiting when its own ctx is done. Callers
// that joined an in-flight call get their own copy of the payload.
func (uc *TileUseCase) shared(ctx context.Context, span trace.Span, key cache.TileCacheKey, produce func(context.Context) ([]byte, error)) ([]byte, error) {
	detached := context.WithoutCancel(ctx)
	ch := uc.group.DoChan(string(key), func() (any, error) {
		return produce(detached)
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", ErrQueryExecution, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}

		payload := res.Val.([]byte)
		if res.Shared {
			span.SetAttributes(attribute.Bool("tile.shared", true))
			payload = bytes.Clone(payload)
		}

		return payload, nil
	}
}

func (uc *TileUseCase) lookup(ctx context.Context, id string, key cache.TileCacheKey) ([]byte, bool) {
	v, found, err := uc.cache.Get(ctx, key)
	if err != nil {
		uc.logCacheError("tile cache lookup failed", id, key, err)
		return nil, false
	}
	if !found {
		uc.logger.Debug("tile cache miss", "id", id, "key", key)
		return nil, false
	}

	uc.logger.Debug("tile cache hit", "id", id, "key", key, "size", len(v))
	return v, true
}

func (uc *TileUseCase) fill(ctx context.Context, id string, key cache.TileCacheKey, ttl time.Duration, payload []byte) {
	if err := uc.cache.Set(ctx, key, payload, ttl); err != nil {
		uc.logCacheError("tile cache store failed", id, key, err)
	}
}

func (uc *TileUseCase) logCacheError(msg, id string, key cache.TileCacheKey, err error) {
	if uc.cfg.Debug {
		uc.logger.Warn(msg, "id", id, "key", key, "error", err)
		return
	}
	uc.logger.Debug(msg, "id", id, "key", key, "error", err)
}

func (uc *TileUseCase) render(ctx context.Context, req TileRequest, tile query.Tile, table string, filters []string) ([]byte, error) {
	qc := uc.queryContext(req, tile, table, filters)

	sql, err := query.Build(qc)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQueryBuild, err)
	}

	shape := "raw"
	if qc.Clustered() {
		shape = "clustered"
	}
	metrics.TileQueryShape.WithLabelValues(shape).Inc()

	start := time.Now()
	rows, err := uc.executor.Query(ctx, sql)
	queryTime := time.Since(start)
	metrics.TileQueryLatency.Observe(queryTime.Seconds())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQueryExecution, err)
	}

	mvt, err := firstTile(rows)
	if err != nil {
		return nil, err
	}

	start = time.Now()
	compressed, err := uc.compressor.Compress(ctx, mvt)
	compressTime := time.Since(start)
	metrics.TileCompressLatency.Observe(compressTime.Seconds())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCompression, err)
	}

	metrics.TileSize.Observe(float64(len(compressed)))

	if uc.cfg.Debug {
		uc.logger.Info("tile rendered",
			"id", req.ID,
			"tile", tile.String(),
			"shape", shape,
			"query", queryTime,
			"gzip", compressTime,
			"raw_size", len(mvt),
			"size", len(compressed),
		)
	}

	return compressed, nil
}

func (uc *TileUseCase) queryContext(req TileRequest, tile query.Tile, table string, filters []string) query.Context {
	d := uc.cfg.Defaults

	attributes := req.Attributes
	if attributes == nil {
		attributes = d.Attributes
	}

	return query.Context{
		Tile:           tile,
		Table:          table,
		Geometry:       or(req.Geometry, d.Geometry),
		SRID:           d.SRID,
		SourceLayer:    or(req.SourceLayer, d.SourceLayer),
		Radius:         deref(req.Radius, d.Radius),
		Extent:         deref(req.Extent, d.Extent),
		BufferSize:     deref(req.BufferSize, d.BufferSize),
		Attributes:     attributes,
		Filters:        filters,
		MaxZoomLevel:   deref(req.MaxZoomLevel, d.MaxZoomLevel),
		ZoomToDistance: req.ZoomToDistance,
		BaseQuery:      req.BaseQuery,
	}
}

// firstTile extracts the mvt column of the first row. A NULL tile is empty.
func firstTile(rows []map[string]any) ([]byte, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: no rows returned", ErrQueryExecution)
	}

	v, ok := rows[0]["mvt"]
	if !ok {
		return nil, fmt.Errorf("%w: mvt column missing", ErrQueryExecution)
	}

	switch mvt := v.(type) {
	case nil:
		return []byte{}, nil
	case []byte:
		return mvt, nil
	default:
		return nil, fmt.Errorf("%w: unexpected mvt type %T", ErrQueryExecution, v)
	}
}

func or(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func deref[T any](p *T, fallback T) T {
	if p == nil {
		return fallback
	}
	return *p
}
