package documents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"telecare/care-portal/care-portal-backend/pkg/pdf"
)

var (
	ErrNotFound       = errors.New("document not found")
	ErrForbidden      = errors.New("caller has no relation to this document")
	ErrDocumentSigned = errors.New("document is signed and can no longer be modified")
	ErrUnknownKind    = errors.New("unknown document kind")
	ErrInvalidContent = errors.New("document content must be a JSON object")
)

// validateContentObject rejects content the canonical hasher cannot
// process: anything that is not a JSON object.
func validateContentObject(content json.RawMessage) error {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(content, &obj); err != nil {
		return ErrInvalidContent
	}
	return nil
}

// CreateRequest carries everything needed to open an unsigned document.
type CreateRequest struct {
	Kind             Kind
	AppointmentID    uuid.UUID
	ProfessionalID   uuid.UUID
	PatientID        uuid.UUID
	ProfessionalName string
	PatientName      string
	Content          json.RawMessage
}

// Service implements the lifecycle of signable documents: created unsigned,
// mutable only while unsigned, signing is terminal.
type Service struct {
	repo     Repository
	renderer pdf.Renderer
	logger   *zap.Logger
}

func NewService(repo Repository, renderer pdf.Renderer, logger *zap.Logger) *Service {
	return &Service{repo: repo, renderer: renderer, logger: logger}
}

func (s *Service) Create(ctx context.Context, req CreateRequest) (*Document, error) {
	if !req.Kind.Known() {
		return nil, ErrUnknownKind
	}
	if len(req.Content) > 0 {
		if err := validateContentObject(req.Content); err != nil {
			return nil, err
		}
	}

	doc := &Document{
		ID:               uuid.New(),
		Kind:             req.Kind,
		AppointmentID:    req.AppointmentID,
		ProfessionalID:   req.ProfessionalID,
		PatientID:        req.PatientID,
		ProfessionalName: req.ProfessionalName,
		PatientName:      req.PatientName,
		Content:          req.Content,
		Status:           StatusUnsigned,
	}

	if err := s.repo.Create(ctx, doc); err != nil {
		return nil, err
	}

	s.logger.Info("Document created",
		zap.String("document_id", doc.ID.String()),
		zap.String("kind", string(doc.Kind)),
		zap.String("professional_id", doc.ProfessionalID.String()),
	)
	return doc, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Document, error) {
	doc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, ErrNotFound
	}
	return doc, nil
}

// GetForUser is the participant-scoped read behind the API: callers with
// no relation to the document get ErrForbidden, never the content.
func (s *Service) GetForUser(ctx context.Context, id, callerID uuid.UUID) (*Document, error) {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !doc.IsParticipant(callerID) {
		return nil, ErrForbidden
	}
	return doc, nil
}

// List returns the caller's documents, optionally filtered by appointment
// and kind. Documents the caller has no relation to are never returned.
func (s *Service) List(ctx context.Context, callerID uuid.UUID, appointmentID *uuid.UUID, kind *Kind) ([]Document, error) {
	docs, err := s.repo.List(ctx, appointmentID, kind)
	if err != nil {
		return nil, err
	}
	visible := make([]Document, 0, len(docs))
	for _, d := range docs {
		if d.IsParticipant(callerID) {
			visible = append(visible, d)
		}
	}
	return visible, nil
}

// UpdateContent replaces the clinical fields of an unsigned document.
// Only the issuing professional may edit; signed documents are immutable.
func (s *Service) UpdateContent(ctx context.Context, id, callerID uuid.UUID, content json.RawMessage) (*Document, error) {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.ProfessionalID != callerID {
		return nil, ErrForbidden
	}
	if doc.IsSigned() {
		return nil, ErrDocumentSigned
	}
	if err := validateContentObject(content); err != nil {
		return nil, err
	}

	doc.Content = content
	updated, err := s.repo.UpdateContent(ctx, doc)
	if err != nil {
		return nil, err
	}
	if !updated {
		// Lost a race with a concurrent sign.
		return nil, ErrDocumentSigned
	}
	return doc, nil
}

// Delete removes an unsigned document. Deletion of signed documents is
// always rejected.
func (s *Service) Delete(ctx context.Context, id, callerID uuid.UUID) error {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if doc.ProfessionalID != callerID {
		return ErrForbidden
	}
	if doc.IsSigned() {
		return ErrDocumentSigned
	}

	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrDocumentSigned
	}

	s.logger.Info("Document deleted", zap.String("document_id", id.String()))
	return nil
}

// RenderPDF returns the artifact of record for signed documents and a
// freshly rendered preview for unsigned ones.
func (s *Service) RenderPDF(ctx context.Context, id, callerID uuid.UUID) ([]byte, error) {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !doc.IsParticipant(callerID) {
		return nil, ErrForbidden
	}
	if doc.IsSigned() {
		return doc.SignedArtifact, nil
	}
	return s.Render(ctx, doc, nil)
}

// Render produces PDF bytes for a document, with an optional signature
// block for signed artifacts.
func (s *Service) Render(ctx context.Context, doc *Document, sig *pdf.SignatureBlock) ([]byte, error) {
	return s.renderer.Render(ctx, pdf.RenderInput{
		Kind:             string(doc.Kind),
		Title:            doc.Kind.Title(),
		DocumentID:       doc.ID.String(),
		ProfessionalName: doc.ProfessionalName,
		PatientName:      doc.PatientName,
		IssuedAt:         doc.CreatedAt,
		Fields:           contentFields(doc.Content),
		Signature:        sig,
	})
}

func contentFields(content json.RawMessage) map[string]string {
	fields := map[string]string{}
	if len(content) == 0 {
		return fields
	}
	var raw map[string]interface{}
	if err := json.Unmarshal(content, &raw); err != nil {
		return fields
	}
	for k, v := range raw {
		fields[k] = fmt.Sprintf("%v", v)
	}
	return fields
}
