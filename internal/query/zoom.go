package query

import "math"

// metersPerPixel is the EPSG:3857 ground resolution of a 256px tile at zoom 0.
const metersPerPixel = 2 * math.Pi * 6378137 / 256

// ZoomStrategy maps a zoom level and a pixel radius to the clustering
// distance, in EPSG:3857 metres, used for that zoom.
type ZoomStrategy func(z int, radius float64) float64

// DefaultZoomToDistance converts radius screen pixels into ground metres at z.
// The distance halves with every zoom level.
func DefaultZoomToDistance(z int, radius float64) float64 {
	return radius * metersPerPixel / math.Exp2(float64(z))
}
