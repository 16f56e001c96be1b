package postgis

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jaennil/guide_helper/backend/clusterbuster/pkg/logger"
)

// DB is the subset of *pgxpool.Pool the executor needs.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Executor runs generated SQL and returns rows as column name to value maps.
type Executor struct {
	db     DB
	logger logger.Logger
}

func NewExecutor(db DB, l logger.Logger) *Executor {
	return &Executor{db: db, logger: l}
}

func (e *Executor) Query(ctx context.Context, sql string) ([]map[string]any, error) {
	start := time.Now()

	rows, err := e.db.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}

	result, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, fmt.Errorf("collect rows: %w", err)
	}

	e.logger.Debug("tile query executed", "rows", len(result), "duration", time.Since(start))

	return result, nil
}

func (e *Executor) Exec(ctx context.Context, sql string) error {
	_, err := e.db.Exec(ctx, sql)
	return err
}
