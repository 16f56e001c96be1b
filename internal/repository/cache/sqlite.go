package cache

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/jaennil/guide_helper/backend/clusterbuster/pkg/logger"
	"github.com/jaennil/guide_helper/backend/clusterbuster/pkg/metrics"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

// SQLiteCache persists tiles in a single table and trims it back to
// maxEntries least recently read rows after every write.
type SQLiteCache struct {
	db         *sql.DB
	maxEntries int
	logger     logger.Logger
	now        func() time.Time
}

var _ TileCache = (*SQLiteCache)(nil)

func NewSQLiteCache(path string, maxEntries int, l logger.Logger) (*SQLiteCache, error) {
	if maxEntries <= 0 {
		return nil, fmt.Errorf("sqlite cache: max entries must be positive, got %d", maxEntries)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	// one connection, concurrent writers would otherwise hit SQLITE_BUSY
	db.SetMaxOpenConns(1)

	err = db.Ping()
	if err != nil {
		db.Close()
		return nil, err
	}

	c := &SQLiteCache{
		db:         db,
		maxEntries: maxEntries,
		logger:     l,
		now:        time.Now,
	}

	err = c.runMigrations()
	if err != nil {
		db.Close()
		return nil, err
	}

	l.Info("sqlite cache initialized", "path", path, "max_entries", maxEntries)

	return c, nil
}

func (c *SQLiteCache) runMigrations() error {
	goose.SetBaseFS(migrations)

	err := goose.SetDialect("sqlite3")
	if err != nil {
		return err
	}

	err = goose.Up(c.db, "migrations")
	if err != nil {
		return err
	}

	return nil
}

func (c *SQLiteCache) Get(ctx context.Context, k TileCacheKey) (TileCacheValue, bool, error) {
	c.logger.Debug("sqlite cache get", "key", k)

	query := `SELECT tile_data, expires_at
	FROM tile_cache
	WHERE cache_key = ?`

	var tileData []byte
	var expiresAt int64
	err := c.db.QueryRowContext(ctx, query, string(k)).Scan(&tileData, &expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		c.logger.Debug("sqlite cache get failed", "key", k, "error", err)
		return nil, false, fmt.Errorf("%w: sqlite get: %w", ErrCacheUnavailable, err)
	}

	now := c.now().UnixNano()
	if expiresAt <= now {
		_, err = c.db.ExecContext(ctx, `DELETE FROM tile_cache WHERE cache_key = ? AND expires_at <= ?`, string(k), now)
		if err != nil {
			c.logger.Debug("sqlite cache expired entry removal failed", "key", k, "error", err)
		}
		return nil, false, nil
	}

	_, err = c.db.ExecContext(ctx, `UPDATE tile_cache SET accessed_at = ? WHERE cache_key = ?`, now, string(k))
	if err != nil {
		c.logger.Debug("sqlite cache touch failed", "key", k, "error", err)
	}

	return tileData, true, nil
}

func (c *SQLiteCache) Set(ctx context.Context, k TileCacheKey, v TileCacheValue, ttl time.Duration) error {
	c.logger.Debug("sqlite cache set", "key", k, "size", len(v), "ttl", ttl)

	if ttl <= 0 {
		_, err := c.db.ExecContext(ctx, `DELETE FROM tile_cache WHERE cache_key = ?`, string(k))
		if err != nil {
			return fmt.Errorf("%w: sqlite delete: %w", ErrCacheUnavailable, err)
		}
		return nil
	}

	now := c.now()

	query := `INSERT INTO tile_cache (cache_key, tile_data, expires_at, accessed_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(cache_key) DO UPDATE SET
		tile_data = excluded.tile_data,
		expires_at = excluded.expires_at,
		accessed_at = excluded.accessed_at`

	_, err := c.db.ExecContext(ctx, query, string(k), []byte(v), now.Add(ttl).UnixNano(), now.UnixNano())
	if err != nil {
		c.logger.Debug("sqlite cache set failed", "key", k, "error", err)
		return fmt.Errorf("%w: sqlite set: %w", ErrCacheUnavailable, err)
	}

	return c.trim(ctx)
}

// trim drops every row beyond the maxEntries most recently used ones.
func (c *SQLiteCache) trim(ctx context.Context) error {
	query := `DELETE FROM tile_cache
	WHERE cache_key IN (
		SELECT cache_key FROM tile_cache
		ORDER BY accessed_at DESC, rowid DESC
		LIMIT -1 OFFSET ?
	)`

	res, err := c.db.ExecContext(ctx, query, c.maxEntries)
	if err != nil {
		c.logger.Debug("sqlite cache trim failed", "error", err)
		return fmt.Errorf("%w: sqlite trim: %w", ErrCacheUnavailable, err)
	}

	if n, err := res.RowsAffected(); err == nil && n > 0 {
		metrics.CacheEvictions.WithLabelValues(BackendSQLite).Add(float64(n))
		c.logger.Debug("sqlite cache evicted", "count", n)
	}

	return nil
}

func (c *SQLiteCache) Close() error {
	return c.db.Close()
}
