package usecase

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jaennil/guide_helper/backend/clusterbuster/internal/query"
	"github.com/jaennil/guide_helper/backend/clusterbuster/internal/repository/cache"
	"github.com/jaennil/guide_helper/backend/clusterbuster/pkg/compress"
	"github.com/jaennil/guide_helper/backend/clusterbuster/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCache struct {
	mu      sync.Mutex
	data    map[cache.TileCacheKey]cache.TileCacheValue
	ttls    map[cache.TileCacheKey]time.Duration
	getErr  error
	setErr  error
	gets    int
	sets    int
	lastKey cache.TileCacheKey
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		data: map[cache.TileCacheKey]cache.TileCacheValue{},
		ttls: map[cache.TileCacheKey]time.Duration{},
	}
}

func (c *fakeCache) Get(_ context.Context, k cache.TileCacheKey) (cache.TileCacheValue, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	c.lastKey = k
	if c.getErr != nil {
		return nil, false, c.getErr
	}
	v, ok := c.data[k]
	return v, ok, nil
}

func (c *fakeCache) Set(_ context.Context, k cache.TileCacheKey, v cache.TileCacheValue, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets++
	c.lastKey = k
	if c.setErr != nil {
		return c.setErr
	}
	c.data[k] = append(cache.TileCacheValue(nil), v...)
	c.ttls[k] = ttl
	return nil
}

func (c *fakeCache) Close() error { return nil }

type fakeExecutor struct {
	rows    []map[string]any
	err     error
	calls   atomic.Int32
	mu      sync.Mutex
	lastSQL string
	release chan struct{}
}

func (e *fakeExecutor) Query(ctx context.Context, sql string) ([]map[string]any, error) {
	e.calls.Add(1)
	e.mu.Lock()
	e.lastSQL = sql
	e.mu.Unlock()

	if e.release != nil {
		select {
		case <-e.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if e.err != nil {
		return nil, e.err
	}
	return e.rows, nil
}

func (e *fakeExecutor) sql() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastSQL
}

type prefixCompressor struct {
	err   error
	calls int
}

func (c *prefixCompressor) Compress(_ context.Context, data []byte) ([]byte, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return append([]byte("gz:"), data...), nil
}

var mvtRows = []map[string]any{{"mvt": []byte("tile-bytes")}}

func testConfig() Config {
	return Config{
		Defaults: Defaults{
			MaxZoomLevel: 12,
			Table:        "public.points",
			Geometry:     "wkb_geometry",
			SRID:         query.WebMercator,
			SourceLayer:  "points",
			Radius:       15,
			Extent:       4096,
			BufferSize:   256,
			Attributes:   []string{"name"},
		},
		TTL: cache.TTLPolicy{Base: time.Hour},
	}
}

type fixture struct {
	uc         *TileUseCase
	cache      *fakeCache
	executor   *fakeExecutor
	compressor *prefixCompressor
}

func newFixture(cfg Config) *fixture {
	f := &fixture{
		cache:      newFakeCache(),
		executor:   &fakeExecutor{rows: mvtRows},
		compressor: &prefixCompressor{},
	}
	f.uc = NewTileUseCase(cfg, f.cache, f.executor, f.compressor, logger.NewNop())
	return f
}

func tileReq(z, x, y string) TileRequest {
	return TileRequest{ID: "req-1", Z: z, X: x, Y: y}
}

func TestGetTileMissThenHit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(testConfig())

	first, err := f.uc.GetTile(ctx, tileReq("5", "10", "12"))
	require.NoError(t, err)
	assert.Equal(t, []byte("gz:tile-bytes"), first)
	assert.Equal(t, int32(1), f.executor.calls.Load())
	assert.Equal(t, 1, f.cache.sets)
	assert.Equal(t, time.Hour, f.cache.ttls[f.cache.lastKey])

	second, err := f.uc.GetTile(ctx, tileReq("5", "10", "12"))
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), f.executor.calls.Load(), "second request must be served from cache")
	assert.Equal(t, 1, f.compressor.calls)
}

func TestGetTileInvalidCoordinates(t *testing.T) {
	cases := [][3]string{
		{"abc", "0", "0"},
		{"-1", "0", "0"},
		{"2", "4", "0"},
		{"2", "0", "9"},
		{"", "", ""},
	}

	for _, c := range cases {
		f := newFixture(testConfig())

		payload, err := f.uc.GetTile(context.Background(), tileReq(c[0], c[1], c[2]))
		assert.ErrorIs(t, err, ErrInvalidTileCoordinate)
		assert.Nil(t, payload)
		assert.Zero(t, f.cache.gets)
		assert.Zero(t, f.cache.sets)
		assert.Zero(t, f.executor.calls.Load())
	}
}

func TestGetTileClusteringThreshold(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		z         string
		clustered bool
	}{
		{"11", true},
		{"12", true},
		{"13", false},
	}

	for _, c := range cases {
		f := newFixture(testConfig())
		_, err := f.uc.GetTile(ctx, tileReq(c.z, "0", "0"))
		require.NoError(t, err)

		sql := f.executor.sql()
		assert.Equal(t, c.clustered, strings.Contains(sql, "ST_ClusterDBSCAN"), "z=%s", c.z)
		assert.Equal(t, c.clustered, strings.Contains(sql, "eps := "), "z=%s", c.z)
	}
}

func TestGetTileRequestOverrides(t *testing.T) {
	ctx := context.Background()
	f := newFixture(testConfig())

	maxZoom := 16
	radius := 40.0
	req := tileReq("14", "0", "0")
	req.MaxZoomLevel = &maxZoom
	req.Radius = &radius
	req.SourceLayer = "shops"

	_, err := f.uc.GetTile(ctx, req)
	require.NoError(t, err)

	sql := f.executor.sql()
	assert.Contains(t, sql, "eps := "+strconv.FormatFloat(query.DefaultZoomToDistance(14, radius), 'f', -1, 64)+",")
	assert.Contains(t, sql, "ST_ClusterDBSCAN")
	assert.Contains(t, sql, "'shops'")

	zero := 0
	req = tileReq("3", "0", "0")
	req.MaxZoomLevel = &zero
	_, err = f.uc.GetTile(ctx, req)
	require.NoError(t, err)
	assert.NotContains(t, f.executor.sql(), "ST_ClusterDBSCAN")
}

func TestGetTileCustomZoomStrategy(t *testing.T) {
	f := newFixture(testConfig())

	req := tileReq("4", "0", "0")
	req.ZoomToDistance = func(z int, radius float64) float64 { return float64(z) * radius }

	_, err := f.uc.GetTile(context.Background(), req)
	require.NoError(t, err)
	assert.Contains(t, f.executor.sql(), "eps := 60,")
}

func TestGetTileFiltersInKeyAndQuery(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.FiltersToWhere = func(params map[string]string) []string {
		if kind, ok := params["kind"]; ok {
			return []string{"kind = '" + kind + "'"}
		}
		return nil
	}
	f := newFixture(cfg)

	req := tileReq("5", "1", "1")
	req.QueryParams = map[string]string{"kind": "cafe"}
	_, err := f.uc.GetTile(ctx, req)
	require.NoError(t, err)
	assert.Contains(t, f.executor.sql(), "(kind = 'cafe')")
	cafeKey := f.cache.lastKey

	req.QueryParams = map[string]string{"kind": "bar"}
	_, err = f.uc.GetTile(ctx, req)
	require.NoError(t, err)

	assert.NotEqual(t, cafeKey, f.cache.lastKey)
	assert.Equal(t, int32(2), f.executor.calls.Load())
}

func TestGetTileCacheLookupFailureIsMiss(t *testing.T) {
	cfg := testConfig()
	cfg.Debug = true
	f := newFixture(cfg)
	f.cache.getErr = cache.ErrCacheUnavailable

	payload, err := f.uc.GetTile(context.Background(), tileReq("5", "10", "12"))
	require.NoError(t, err)
	assert.Equal(t, []byte("gz:tile-bytes"), payload)
	assert.Equal(t, int32(1), f.executor.calls.Load())
	assert.Equal(t, 1, f.cache.sets)
}

func TestGetTileCacheStoreFailureIgnored(t *testing.T) {
	f := newFixture(testConfig())
	f.cache.setErr = errors.New("disk full")

	payload, err := f.uc.GetTile(context.Background(), tileReq("5", "10", "12"))
	require.NoError(t, err)
	assert.Equal(t, []byte("gz:tile-bytes"), payload)
}

func TestGetTileCacheTTL(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.TTL = cache.TTLPolicy{Base: time.Minute, PerZoom: time.Minute}
	f := newFixture(cfg)

	_, err := f.uc.GetTile(ctx, tileReq("3", "0", "0"))
	require.NoError(t, err)
	assert.Equal(t, 4*time.Minute, f.cache.ttls[f.cache.lastKey])

	override := 10 * time.Second
	req := tileReq("4", "0", "0")
	req.CacheTTL = &override
	_, err = f.uc.GetTile(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, override, f.cache.ttls[f.cache.lastKey])
}

func TestGetTileQueryExecutionErrors(t *testing.T) {
	cases := map[string]*fakeExecutor{
		"executor error": {err: errors.New("relation does not exist")},
		"no rows":        {rows: []map[string]any{}},
		"missing column": {rows: []map[string]any{{"other": []byte("x")}}},
		"wrong type":     {rows: []map[string]any{{"mvt": 42}}},
	}

	for name, executor := range cases {
		t.Run(name, func(t *testing.T) {
			c := newFakeCache()
			uc := NewTileUseCase(testConfig(), c, executor, &prefixCompressor{}, logger.NewNop())

			payload, err := uc.GetTile(context.Background(), tileReq("5", "10", "12"))
			assert.ErrorIs(t, err, ErrQueryExecution)
			assert.Nil(t, payload)
			assert.Zero(t, c.sets)
		})
	}
}

func TestGetTileNullTileIsEmpty(t *testing.T) {
	f := newFixture(testConfig())
	f.executor.rows = []map[string]any{{"mvt": nil}}

	payload, err := f.uc.GetTile(context.Background(), tileReq("5", "10", "12"))
	require.NoError(t, err)
	assert.Equal(t, []byte("gz:"), payload)
}

func TestGetTileQueryBuildError(t *testing.T) {
	cfg := testConfig()
	cfg.Defaults.Extent = 0
	f := newFixture(cfg)

	_, err := f.uc.GetTile(context.Background(), tileReq("5", "10", "12"))
	assert.ErrorIs(t, err, ErrQueryBuild)
	assert.ErrorIs(t, err, query.ErrInvalidContext)
	assert.Zero(t, f.executor.calls.Load())
	assert.Zero(t, f.cache.sets)
}

func TestGetTileCompressionError(t *testing.T) {
	f := newFixture(testConfig())
	f.compressor.err = errors.New("boom")

	payload, err := f.uc.GetTile(context.Background(), tileReq("5", "10", "12"))
	assert.ErrorIs(t, err, ErrCompression)
	assert.Nil(t, payload)
	assert.Zero(t, f.cache.sets)
}

func TestGetTileGzipRoundTrip(t *testing.T) {
	gz := compress.NewGzip(compress.DefaultLevel)
	uc := NewTileUseCase(testConfig(), nil, &fakeExecutor{rows: mvtRows}, gz, logger.NewNop())

	payload, err := uc.GetTile(context.Background(), tileReq("0", "0", "0"))
	require.NoError(t, err)

	raw, err := compress.Decompress(payload)
	require.NoError(t, err)
	assert.Equal(t, []byte("tile-bytes"), raw)
}

func TestGetTileSingleFlight(t *testing.T) {
	cfg := testConfig()
	cfg.SingleFlight = true
	f := newFixture(cfg)
	f.executor.release = make(chan struct{})

	const callers = 8
	results := make([][]byte, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = f.uc.GetTile(context.Background(), tileReq("5", "10", "12"))
		}(i)
	}

	require.Eventually(t, func() bool { return f.executor.calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(f.executor.release)
	wg.Wait()

	assert.Equal(t, int32(1), f.executor.calls.Load())
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, []byte("gz:tile-bytes"), results[i])
	}
}

func TestGetTileSingleFlightSurvivesLeaderCancel(t *testing.T) {
	cfg := testConfig()
	cfg.SingleFlight = true
	f := newFixture(cfg)
	f.executor.release = make(chan struct{})

	leaderCtx, cancelLeader := context.WithCancel(context.Background())
	defer cancelLeader()

	leaderErr := make(chan error, 1)
	go func() {
		_, err := f.uc.GetTile(leaderCtx, tileReq("5", "10", "12"))
		leaderErr <- err
	}()
	require.Eventually(t, func() bool { return f.executor.calls.Load() == 1 }, time.Second, time.Millisecond)

	type result struct {
		payload []byte
		err     error
	}
	joiner := make(chan result, 1)
	go func() {
		payload, err := f.uc.GetTile(context.Background(), tileReq("5", "10", "12"))
		joiner <- result{payload, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancelLeader()
	select {
	case err := <-leaderErr:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("canceled caller kept waiting for the shared render")
	}

	close(f.executor.release)

	select {
	case r := <-joiner:
		require.NoError(t, r.err)
		assert.Equal(t, []byte("gz:tile-bytes"), r.payload)
	case <-time.After(time.Second):
		t.Fatal("joined caller did not get the tile")
	}

	assert.Equal(t, int32(1), f.executor.calls.Load())
	assert.Equal(t, 1, f.cache.sets)
}
