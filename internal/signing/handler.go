package signing

import (
	"encoding/base64"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"telecare/care-portal/care-portal-backend/internal/audit"
	"telecare/care-portal/care-portal-backend/internal/auth"
	"telecare/care-portal/care-portal-backend/internal/certificates"
	"telecare/care-portal/care-portal-backend/internal/documents"
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
	rg.POST("/documents/:id/sign", h.Sign)
}

type signRequest struct {
	// Saved-certificate flow
	CertificateID *uuid.UUID `json:"certificate_id"`
	// One-time upload flow
	PFX string `json:"pfx"`
	// Shared
	Password string `json:"password"`
	// Save-and-sign flow
	SaveCertificate bool   `json:"save_certificate"`
	DisplayName     string `json:"display_name"`
	QuickUse        bool   `json:"quick_use"`
}

func (h *Handler) Sign(c *gin.Context) {
	userID, ok := auth.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	docID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	var req signRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	switch {
	case req.CertificateID != nil:
		result, err := h.service.SignWithSaved(c.Request.Context(), docID, *req.CertificateID, userID, req.Password)
		h.respond(c, userID, docID, result, err)

	case req.PFX != "" && req.SaveCertificate:
		pfx, decodeErr := base64.StdEncoding.DecodeString(req.PFX)
		if decodeErr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "pfx must be base64 encoded"})
			return
		}
		result, err := h.service.SaveCertificateAndSign(c.Request.Context(), docID, userID, pfx, req.Password, req.DisplayName, req.QuickUse)
		if err != nil {
			h.writeError(c, err)
			return
		}
		if result.SignResult.Success {
			h.audit.Record(c, userID, audit.ActionSign, "document", docID, nil, result.SignResult)
		}
		c.JSON(http.StatusOK, result)

	case req.PFX != "":
		pfx, decodeErr := base64.StdEncoding.DecodeString(req.PFX)
		if decodeErr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "pfx must be base64 encoded"})
			return
		}
		result, err := h.service.SignWithOneTimePFX(c.Request.Context(), docID, pfx, req.Password, userID)
		h.respond(c, userID, docID, result, err)

	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "either certificate_id or pfx is required"})
	}
}

func (h *Handler) respond(c *gin.Context, userID, docID uuid.UUID, result *SignResult, err error) {
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.audit.Record(c, userID, audit.ActionSign, "document", docID, nil, result)
	c.JSON(http.StatusOK, result)
}

func (h *Handler) writeError(c *gin.Context, err error) {
	msg := userMessage(err)
	switch {
	case errors.Is(err, documents.ErrNotFound), errors.Is(err, certificates.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": msg})
	case errors.Is(err, documents.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": msg})
	case errors.Is(err, ErrAlreadySigned):
		c.JSON(http.StatusConflict, gin.H{"error": msg})
	case errors.Is(err, certificates.ErrPasswordRequired),
		errors.Is(err, certificates.ErrIncorrectPassword),
		errors.Is(err, certificates.ErrCertificateExpired),
		errors.Is(err, certificates.ErrInvalidCertificate),
		errors.Is(err, certificates.ErrMalformedPFX),
		errors.Is(err, certificates.ErrUnsupportedKey):
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
	default:
		h.logger.Error("signing request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
