package postgis

import (
	"context"
	"fmt"
)

type Execer interface {
	Exec(ctx context.Context, sql string) error
}

var bootstrapStatements = []struct {
	name string
	sql  string
}{
	{"first_agg", createFirstAgg},
	{"FIRST", createFirstAggregate},
	{"TileBBox", createTileBBox},
	{"TileDoubleBBox", createTileDoubleBBox},
}

// Bootstrap installs the helper routines the tile queries rely on. Every
// statement is CREATE OR REPLACE, so running it on each start is safe.
func Bootstrap(ctx context.Context, db Execer) error {
	for _, s := range bootstrapStatements {
		if err := db.Exec(ctx, s.sql); err != nil {
			return fmt.Errorf("create %s: %w", s.name, err)
		}
	}
	return nil
}
