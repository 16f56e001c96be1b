package query

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
)

// WebMercator is the SRID of the tile envelope and of the encoded geometry.
const WebMercator = 3857

var ErrInvalidContext = errors.New("invalid query context")

// generatedColumns are the names the built queries give their own columns.
// Attributes may not reuse them.
var generatedColumns = map[string]struct{}{
	"size":       {},
	"geom":       {},
	"center":     {},
	"cluster_id": {},
}

// BaseQueryFunc returns the row selection for the unclustered tile shape. The
// selection must expose the MVT geometry as a column named geom.
type BaseQueryFunc func(Context) string

// Context is everything needed to render the SQL of one tile request.
type Context struct {
	Tile           Tile
	Table          string
	Geometry       string
	SRID           int
	SourceLayer    string
	Radius         float64
	Extent         int
	BufferSize     int
	Attributes     []string
	Filters        []string
	MaxZoomLevel   int
	ZoomToDistance ZoomStrategy
	BaseQuery      BaseQueryFunc
}

// Clustered reports whether points are aggregated at this zoom.
func (c Context) Clustered() bool {
	return c.Tile.Z <= c.MaxZoomLevel
}

// Distance is the clustering distance for the tile zoom.
func (c Context) Distance() float64 {
	zoomToDistance := c.ZoomToDistance
	if zoomToDistance == nil {
		zoomToDistance = DefaultZoomToDistance
	}

	d := zoomToDistance(c.Tile.Z, c.Radius)
	if d < 0 {
		return 0
	}
	return d
}

// Envelope is the buffered tile bound as a EPSG:3857 SQL geometry.
func (c Context) Envelope() string {
	b := c.Tile.Bound(c.BufferSize, c.Extent)
	return fmt.Sprintf("ST_MakeEnvelope(%s, %s, %s, %s, %d)",
		formatFloat(b.Min.X()), formatFloat(b.Min.Y()),
		formatFloat(b.Max.X()), formatFloat(b.Max.Y()),
		WebMercator,
	)
}

// TableIdent is the quoted, optionally schema-qualified table name.
func (c Context) TableIdent() string {
	return quoteIdent(c.Table)
}

// GeometryIdent is the quoted geometry column.
func (c Context) GeometryIdent() string {
	return quoteIdent(c.Geometry)
}

// MercatorGeometry is the geometry column expressed in EPSG:3857.
func (c Context) MercatorGeometry() string {
	if c.SRID == 0 || c.SRID == WebMercator {
		return c.GeometryIdent()
	}
	return fmt.Sprintf("ST_Transform(%s, %d)", c.GeometryIdent(), WebMercator)
}

// AttributeIdents quotes every attribute column.
func (c Context) AttributeIdents() []string {
	out := make([]string, 0, len(c.Attributes))
	for _, a := range c.Attributes {
		out = append(out, quoteIdent(a))
	}
	return out
}

// Where combines the index-friendly bbox test with the filter clauses.
func (c Context) Where() string {
	envelope := c.Envelope()
	if c.SRID != 0 && c.SRID != WebMercator {
		envelope = fmt.Sprintf("ST_Transform(%s, %d)", envelope, c.SRID)
	}

	conds := make([]string, 0, len(c.Filters)+1)
	conds = append(conds, fmt.Sprintf("%s && %s", c.GeometryIdent(), envelope))
	for _, f := range c.Filters {
		if strings.TrimSpace(f) == "" {
			continue
		}
		conds = append(conds, "("+f+")")
	}

	return strings.Join(conds, " AND ")
}

// MVTGeometry clips and encodes expr into tile coordinates.
func (c Context) MVTGeometry(expr string) string {
	return fmt.Sprintf("ST_AsMVTGeom(%s, %s, %d, %d, true)", expr, c.Envelope(), c.Extent, c.BufferSize)
}

// DefaultBaseQuery selects the configured attributes and the encoded geometry
// of every row inside the tile.
func DefaultBaseQuery(c Context) string {
	columns := append(c.AttributeIdents(), c.MVTGeometry(c.MercatorGeometry())+" AS geom")

	return fmt.Sprintf("SELECT %s FROM %s WHERE %s",
		strings.Join(columns, ", "), c.TableIdent(), c.Where())
}

// Build renders the SQL for a tile. At or below MaxZoomLevel the rows are
// clustered with DBSCAN and each cluster becomes one point with a size
// attribute; above it the rows are encoded as is.
func Build(c Context) (string, error) {
	if err := validate(c); err != nil {
		return "", err
	}

	if c.Clustered() {
		return buildClustered(c)
	}

	baseQuery := c.BaseQuery
	if baseQuery == nil {
		baseQuery = DefaultBaseQuery
	}

	base := baseQuery(c)
	if strings.TrimSpace(base) == "" {
		return "", fmt.Errorf("%w: empty base query", ErrInvalidContext)
	}

	return fmt.Sprintf("WITH tile AS (%s) SELECT ST_AsMVT(tile.*, %s, %d, 'geom') AS mvt FROM tile",
		base, quoteLiteral(c.SourceLayer), c.Extent), nil
}

func buildClustered(c Context) (string, error) {
	distance := c.Distance()
	if math.IsNaN(distance) || math.IsInf(distance, 0) {
		return "", fmt.Errorf("%w: clustering distance %v for zoom %d", ErrInvalidContext, distance, c.Tile.Z)
	}

	attrs := c.AttributeIdents()

	filtered := append([]string{c.MercatorGeometry() + " AS geom"}, attrs...)

	grouped := []string{"count(*) AS size", "ST_Centroid(ST_Collect(geom)) AS center"}
	for _, a := range attrs {
		grouped = append(grouped, fmt.Sprintf("public.FIRST(%s) AS %s", a, a))
	}

	tile := append([]string{"size"}, attrs...)
	tile = append(tile, c.MVTGeometry("center")+" AS geom")

	var sb strings.Builder
	fmt.Fprintf(&sb, "WITH filtered AS (SELECT %s FROM %s WHERE %s), ",
		strings.Join(filtered, ", "), c.TableIdent(), c.Where())
	fmt.Fprintf(&sb, "clustered AS (SELECT *, ST_ClusterDBSCAN(geom, eps := %s, minpoints := 1) OVER () AS cluster_id FROM filtered), ",
		formatFloat(distance))
	fmt.Fprintf(&sb, "grouped AS (SELECT %s FROM clustered GROUP BY cluster_id), ", strings.Join(grouped, ", "))
	fmt.Fprintf(&sb, "tile AS (SELECT %s FROM grouped) ", strings.Join(tile, ", "))
	fmt.Fprintf(&sb, "SELECT ST_AsMVT(tile.*, %s, %d, 'geom') AS mvt FROM tile", quoteLiteral(c.SourceLayer), c.Extent)

	return sb.String(), nil
}

func validate(c Context) error {
	switch {
	case strings.TrimSpace(c.Table) == "":
		return fmt.Errorf("%w: table is required", ErrInvalidContext)
	case strings.TrimSpace(c.Geometry) == "":
		return fmt.Errorf("%w: geometry column is required", ErrInvalidContext)
	case c.SourceLayer == "":
		return fmt.Errorf("%w: source layer is required", ErrInvalidContext)
	case c.Extent <= 0:
		return fmt.Errorf("%w: extent must be positive, got %d", ErrInvalidContext, c.Extent)
	case c.BufferSize < 0:
		return fmt.Errorf("%w: buffer size must not be negative, got %d", ErrInvalidContext, c.BufferSize)
	}

	for _, a := range c.Attributes {
		if _, ok := generatedColumns[a]; ok {
			return fmt.Errorf("%w: attribute %q clashes with a generated column", ErrInvalidContext, a)
		}
	}
	return nil
}

// quoteIdent quotes a possibly schema-qualified identifier.
func quoteIdent(name string) string {
	return pgx.Identifier(strings.Split(name, ".")).Sanitize()
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
