package cache

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/jaennil/guide_helper/backend/clusterbuster/internal/query"
)

// BuildKey derives the cache key of a tile request. Filter order is
// significant. ok is false when the inputs cannot address a tile, in which
// case the request should simply not be cached.
func BuildKey(table string, z, x, y int, filters []string) (key TileCacheKey, ok bool) {
	if table == "" || !(query.Tile{Z: z, X: x, Y: y}).Valid() {
		return "", false
	}

	h := sha256.New()
	var size [8]byte
	for _, f := range filters {
		binary.BigEndian.PutUint64(size[:], uint64(len(f)))
		h.Write(size[:])
		h.Write([]byte(f))
	}

	return TileCacheKey(fmt.Sprintf("tile:%s:%d:%d:%d:%s", table, z, x, y, hex.EncodeToString(h.Sum(nil)))), true
}
