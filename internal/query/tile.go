package query

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
	"github.com/paulmach/orb/project"
)

// MaxZoom is the deepest zoom level a tile request may address.
const MaxZoom = 30

var ErrInvalidTile = errors.New("invalid tile")

// Tile is a slippy-map tile address.
type Tile struct {
	Z int
	X int
	Y int
}

func (t Tile) Valid() bool {
	if t.Z < 0 || t.Z > MaxZoom {
		return false
	}
	n := 1 << t.Z
	return t.X >= 0 && t.X < n && t.Y >= 0 && t.Y < n
}

func (t Tile) String() string {
	return fmt.Sprintf("%d/%d/%d", t.Z, t.X, t.Y)
}

// ParseTile parses raw z/x/y path values. Every part must be a base-10
// integer and the result must address an existing tile.
func ParseTile(z, x, y string) (Tile, error) {
	zi, err := strconv.Atoi(z)
	if err != nil {
		return Tile{}, fmt.Errorf("%w: z should be integer, got %q", ErrInvalidTile, z)
	}

	xi, err := strconv.Atoi(x)
	if err != nil {
		return Tile{}, fmt.Errorf("%w: x should be integer, got %q", ErrInvalidTile, x)
	}

	yi, err := strconv.Atoi(y)
	if err != nil {
		return Tile{}, fmt.Errorf("%w: y should be integer, got %q", ErrInvalidTile, y)
	}

	t := Tile{Z: zi, X: xi, Y: yi}
	if !t.Valid() {
		return Tile{}, fmt.Errorf("%w: %s is out of range", ErrInvalidTile, t)
	}

	return t, nil
}

// Bound returns the tile envelope in EPSG:3857 metres, padded on every side
// by bufferSize/extent of the tile width.
func (t Tile) Bound(bufferSize, extent int) orb.Bound {
	lonLat := maptile.New(uint32(t.X), uint32(t.Y), maptile.Zoom(t.Z)).Bound()

	b := orb.Bound{
		Min: project.WGS84.ToMercator(lonLat.Min),
		Max: project.WGS84.ToMercator(lonLat.Max),
	}

	if bufferSize <= 0 || extent <= 0 {
		return b
	}

	width := b.Max.X() - b.Min.X()
	return b.Pad(width * float64(bufferSize) / float64(extent))
}
