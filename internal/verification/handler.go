package verification

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handler struct {
	service *Service
	logger  *zap.Logger
}

func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterRoutes mounts the public, unauthenticated lookup.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/documents/validate/:hash", h.ValidateByHash)
}

func (h *Handler) ValidateByHash(c *gin.Context) {
	result, err := h.service.ValidateByHash(c.Request.Context(), c.Param("hash"))
	if err != nil {
		h.logger.Error("hash validation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, result)
}
