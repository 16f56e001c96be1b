package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jaennil/guide_helper/backend/clusterbuster/internal/usecase"
	"github.com/jaennil/guide_helper/backend/clusterbuster/pkg/logger"
)

const (
	internalServerErrorText = "the server encountered an error and could not process your request"
)

type response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type TileService interface {
	GetTile(ctx context.Context, req usecase.TileRequest) ([]byte, error)
}

type Handler struct {
	validate      *validator.Validate
	tileService   TileService
	allowedTables map[string]struct{}
}

func NewHandler(v *validator.Validate, tileService TileService, allowedTables []string) *Handler {
	allowed := make(map[string]struct{}, len(allowedTables))
	for _, t := range allowedTables {
		allowed[t] = struct{}{}
	}

	return &Handler{
		validate:      v,
		tileService:   tileService,
		allowedTables: allowed,
	}
}

func (h *Handler) RespondWithInternalServerError(c *gin.Context) {
	h.RespondWithJSON(c, http.StatusInternalServerError, internalServerErrorText, nil)
}

func (h *Handler) RespondWithJSON(c *gin.Context, code int, message string, data any) {
	success := code < 400

	r := response{
		Success: success,
		Message: message,
		Data:    data,
	}

	c.JSON(code, r)
}

func requestLogger(c *gin.Context) logger.Logger {
	if v, ok := c.Get("logger"); ok {
		if l, ok := v.(logger.Logger); ok {
			return l
		}
	}
	return logger.FromContext(c.Request.Context())
}
