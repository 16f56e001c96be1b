package dto

// TileQuery holds the per-request overrides of a tile request. Any other
// query parameter is passed to the filter mapper.
type TileQuery struct {
	MaxZoom  *int     `form:"max_zoom" validate:"omitempty,min=0,max=30"`
	CacheTTL *int     `form:"cache_ttl" validate:"omitempty,min=0"`
	Radius   *float64 `form:"radius" validate:"omitempty,gt=0"`
	Extent   *int     `form:"extent" validate:"omitempty,min=1,max=65536"`
	Buffer   *int     `form:"buffer" validate:"omitempty,min=0,max=65536"`
	Table    string   `form:"table" validate:"omitempty,max=128"`
	Geometry string   `form:"geometry" validate:"omitempty,max=128"`
	Layer    string   `form:"layer" validate:"omitempty,max=128"`
}

// ReservedParams are the query parameters consumed by TileQuery.
var ReservedParams = map[string]struct{}{
	"max_zoom":  {},
	"cache_ttl": {},
	"radius":    {},
	"extent":    {},
	"buffer":    {},
	"table":     {},
	"geometry":  {},
	"layer":     {},
}
