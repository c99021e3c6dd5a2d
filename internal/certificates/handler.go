package certificates

import (
	"encoding/base64"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"telecare/care-portal/care-portal-backend/internal/audit"
	"telecare/care-portal/care-portal-backend/internal/auth"
)

type Handler struct {
	service *Service
	audit   *audit.Service
	logger  *zap.Logger
}

func NewHandler(service *Service, audit *audit.Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, audit: audit, logger: logger}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	certs := rg.Group("/certificates")
	{
		certs.POST("/validate", h.Validate)
		certs.POST("", h.Save)
		certs.GET("", h.List)
		certs.GET("/:id", h.Get)
		certs.PATCH("/:id", h.Update)
		certs.DELETE("/:id", h.Delete)
	}
}

type validateRequest struct {
	PFX      string `json:"pfx" binding:"required"`
	Password string `json:"password"`
}

type saveRequest struct {
	PFX         string `json:"pfx" binding:"required"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
	QuickUse    bool   `json:"quick_use"`
}

func (h *Handler) Validate(c *gin.Context) {
	var req validateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	pfx, err := base64.StdEncoding.DecodeString(req.PFX)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "pfx must be base64 encoded"})
		return
	}

	c.JSON(http.StatusOK, h.service.Validate(pfx, req.Password))
}

func (h *Handler) Save(c *gin.Context) {
	userID, ok := auth.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	var req saveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	pfx, err := base64.StdEncoding.DecodeString(req.PFX)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "pfx must be base64 encoded"})
		return
	}

	cert, err := h.service.Save(c.Request.Context(), userID, pfx, req.Password, req.DisplayName, req.QuickUse)
	if err != nil {
		h.writeError(c, err)
		return
	}

	h.audit.Record(c, userID, audit.ActionCreate, "certificate", cert.ID, nil, cert)
	c.JSON(http.StatusCreated, cert)
}

func (h *Handler) List(c *gin.Context) {
	userID, ok := auth.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	certs, err := h.service.ListByUser(c.Request.Context(), userID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, certs)
}

func (h *Handler) Get(c *gin.Context) {
	userID, ok := auth.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	cert, err := h.service.GetByID(c.Request.Context(), id, userID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cert)
}

func (h *Handler) Update(c *gin.Context) {
	userID, ok := auth.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cert, err := h.service.Update(c.Request.Context(), id, userID, req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	h.audit.Record(c, userID, audit.ActionUpdate, "certificate", cert.ID, nil, cert)
	c.JSON(http.StatusOK, cert)
}

func (h *Handler) Delete(c *gin.Context) {
	userID, ok := auth.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	deleted, err := h.service.Delete(c.Request.Context(), id, userID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, gin.H{"error": "certificate not found"})
		return
	}

	h.audit.Record(c, userID, audit.ActionDelete, "certificate", id, nil, nil)
	c.Status(http.StatusNoContent)
}

func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "certificate not found"})
	case errors.Is(err, ErrInvalidCertificate),
		errors.Is(err, ErrIncorrectPassword),
		errors.Is(err, ErrMalformedPFX),
		errors.Is(err, ErrUnsupportedKey):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, ErrCertificateExpired):
		c.JSON(http.StatusBadRequest, gin.H{"error": "certificate has expired"})
	case errors.Is(err, ErrPasswordRequired):
		c.JSON(http.StatusBadRequest, gin.H{"error": "certificate password required"})
	default:
		h.logger.Error("certificate request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
