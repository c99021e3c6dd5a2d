// Package verification exposes the public document authenticity lookup:
// given a hash, confirm that a signed document with that content exists
// without disclosing the clinical content itself.
package verification

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"telecare/care-portal/care-portal-backend/internal/documents"
)

// Result is the public view of a hash lookup. A miss is a normal outcome,
// not an error.
type Result struct {
	Found              bool       `json:"found"`
	IsSigned           bool       `json:"is_signed"`
	DocumentKind       string     `json:"document_kind,omitempty"`
	SignedAt           *time.Time `json:"signed_at,omitempty"`
	CertificateSubject string     `json:"certificate_subject,omitempty"`
	ProfessionalName   string     `json:"professional_name,omitempty"`
	PatientName        string     `json:"patient_name,omitempty"`
}

type Service struct {
	repo   documents.Repository
	logger *zap.Logger
}

func NewService(repo documents.Repository, logger *zap.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// ValidateByHash looks a hash up across all document kinds. Only enough
// metadata to confirm authenticity is returned; the patient name is masked.
func (s *Service) ValidateByHash(ctx context.Context, hash string) (*Result, error) {
	hash = strings.ToLower(strings.TrimSpace(hash))
	if hash == "" {
		return &Result{Found: false}, nil
	}

	doc, err := s.repo.FindByHash(ctx, hash)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return &Result{Found: false}, nil
	}

	s.logger.Info("Document hash validated",
		zap.String("document_id", doc.ID.String()),
		zap.String("kind", string(doc.Kind)),
	)

	return &Result{
		Found:              true,
		IsSigned:           true,
		DocumentKind:       string(doc.Kind),
		SignedAt:           doc.SignedAt,
		CertificateSubject: doc.CertificateSubject,
		ProfessionalName:   doc.ProfessionalName,
		PatientName:        MaskName(doc.PatientName),
	}, nil
}

// MaskName keeps the first name and reduces the rest to initials, so a
// third party can confirm who a document concerns without full disclosure.
func MaskName(name string) string {
	parts := strings.Fields(name)
	if len(parts) == 0 {
		return ""
	}
	masked := []string{parts[0]}
	for _, p := range parts[1:] {
		masked = append(masked, string([]rune(p)[:1])+".")
	}
	return strings.Join(masked, " ")
}
