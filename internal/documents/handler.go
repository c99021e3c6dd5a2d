package documents

import (
	"encoding/json"
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
	docs := rg.Group("/documents")
	{
		docs.POST("", h.Create)
		docs.GET("", h.List)
		docs.GET("/:id", h.Get)
		docs.PUT("/:id", h.Update)
		docs.DELETE("/:id", h.Delete)
		docs.GET("/:id/pdf", h.DownloadPDF)
	}
}

type createRequest struct {
	Kind          Kind            `json:"kind" binding:"required"`
	AppointmentID uuid.UUID       `json:"appointment_id" binding:"required"`
	PatientID     uuid.UUID       `json:"patient_id" binding:"required"`
	PatientName   string          `json:"patient_name" binding:"required"`
	Content       json.RawMessage `json:"content" binding:"required"`
}

type updateRequest struct {
	Content json.RawMessage `json:"content" binding:"required"`
}

func (h *Handler) Create(c *gin.Context) {
	userID, ok := auth.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	professionalName := c.GetString(auth.ContextUserName)
	doc, err := h.service.Create(c.Request.Context(), CreateRequest{
		Kind:             req.Kind,
		AppointmentID:    req.AppointmentID,
		ProfessionalID:   userID,
		PatientID:        req.PatientID,
		ProfessionalName: professionalName,
		PatientName:      req.PatientName,
		Content:          req.Content,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	h.audit.Record(c, userID, audit.ActionCreate, "document", doc.ID, nil, doc)
	c.JSON(http.StatusCreated, doc)
}

func (h *Handler) List(c *gin.Context) {
	userID, ok := auth.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	var appointmentID *uuid.UUID
	if s := c.Query("appointment_id"); s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid appointment_id"})
			return
		}
		appointmentID = &id
	}

	var kind *Kind
	if s := c.Query("kind"); s != "" {
		k := Kind(s)
		if !k.Known() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown document kind"})
			return
		}
		kind = &k
	}

	docs, err := h.service.List(c.Request.Context(), userID, appointmentID, kind)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, docs)
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

	doc, err := h.service.GetForUser(c.Request.Context(), id, userID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
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

	var req updateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	doc, err := h.service.UpdateContent(c.Request.Context(), id, userID, req.Content)
	if err != nil {
		h.writeError(c, err)
		return
	}

	h.audit.Record(c, userID, audit.ActionUpdate, "document", doc.ID, nil, doc)
	c.JSON(http.StatusOK, doc)
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

	if err := h.service.Delete(c.Request.Context(), id, userID); err != nil {
		h.writeError(c, err)
		return
	}

	h.audit.Record(c, userID, audit.ActionDelete, "document", id, nil, nil)
	c.Status(http.StatusNoContent)
}

func (h *Handler) DownloadPDF(c *gin.Context) {
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

	data, err := h.service.RenderPDF(c.Request.Context(), id, userID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/pdf", data)
}

func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "document not found"})
	case errors.Is(err, ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "not a participant of this document"})
	case errors.Is(err, ErrDocumentSigned):
		c.JSON(http.StatusConflict, gin.H{"error": "document is signed and immutable"})
	case errors.Is(err, ErrUnknownKind):
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown document kind"})
	case errors.Is(err, ErrInvalidContent):
		c.JSON(http.StatusBadRequest, gin.H{"error": "document content must be a JSON object"})
	default:
		h.logger.Error("document request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
