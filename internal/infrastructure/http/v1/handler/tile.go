package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jaennil/guide_helper/backend/clusterbuster/internal/infrastructure/http/v1/dto"
	"github.com/jaennil/guide_helper/backend/clusterbuster/internal/usecase"
	"github.com/jaennil/guide_helper/backend/clusterbuster/pkg/compress"
)

const mvtContentType = "application/vnd.mapbox-vector-tile"

func (h *Handler) Tile(c *gin.Context) {
	l := requestLogger(c)

	var q dto.TileQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		l.Warn("invalid tile query", "error", err)
		h.RespondWithJSON(c, http.StatusBadRequest, "invalid query parameters", nil)
		return
	}

	if err := h.validate.Struct(q); err != nil {
		l.Warn("tile query validation failed", "error", err)
		h.RespondWithJSON(c, http.StatusBadRequest, err.Error(), nil)
		return
	}

	if q.Table == "" && (q.Geometry != "" || q.Layer != "") {
		h.RespondWithJSON(c, http.StatusBadRequest, "geometry and layer can only be overridden together with table", nil)
		return
	}
	if q.Table != "" {
		if _, ok := h.allowedTables[q.Table]; !ok {
			l.Warn("tile table not allowed", "table", q.Table)
			h.RespondWithJSON(c, http.StatusBadRequest, "table is not allowed", nil)
			return
		}
	}

	req := usecase.TileRequest{
		ID:           c.GetString("request_id"),
		Z:            c.Param("z"),
		X:            c.Param("x"),
		Y:            trimTileExt(c.Param("y")),
		Table:        q.Table,
		Geometry:     q.Geometry,
		SourceLayer:  q.Layer,
		MaxZoomLevel: q.MaxZoom,
		Radius:       q.Radius,
		Extent:       q.Extent,
		BufferSize:   q.Buffer,
		QueryParams:  filterParams(c),
	}
	if q.CacheTTL != nil {
		ttl := time.Duration(*q.CacheTTL) * time.Second
		req.CacheTTL = &ttl
	}

	tile, err := h.tileService.GetTile(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, usecase.ErrInvalidTileCoordinate) {
			l.Warn("invalid tile coordinate", "z", req.Z, "x", req.X, "y", req.Y, "error", err)
			h.RespondWithJSON(c, http.StatusBadRequest, err.Error(), nil)
			return
		}

		l.Error("failed to get tile", "z", req.Z, "x", req.X, "y", req.Y, "error", err)
		c.Error(err)
		h.RespondWithInternalServerError(c)
		return
	}

	c.Header("Vary", "Accept-Encoding")

	if strings.Contains(c.GetHeader("Accept-Encoding"), "gzip") {
		c.Header("Content-Encoding", "gzip")
		c.Data(http.StatusOK, mvtContentType, tile)
		return
	}

	raw, err := compress.Decompress(tile)
	if err != nil {
		l.Error("failed to decompress tile", "error", err)
		c.Error(err)
		h.RespondWithInternalServerError(c)
		return
	}

	c.Data(http.StatusOK, mvtContentType, raw)
}

func trimTileExt(y string) string {
	for _, ext := range []string{".mvt", ".pbf"} {
		if strings.HasSuffix(y, ext) {
			return strings.TrimSuffix(y, ext)
		}
	}
	return y
}

// filterParams returns the first value of every non-reserved query parameter.
func filterParams(c *gin.Context) map[string]string {
	params := make(map[string]string)
	for k, v := range c.Request.URL.Query() {
		if _, reserved := dto.ReservedParams[k]; reserved || len(v) == 0 {
			continue
		}
		params[k] = v[0]
	}
	return params
}
