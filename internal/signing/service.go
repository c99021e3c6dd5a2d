package signing

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"telecare/care-portal/care-portal-backend/internal/certificates"
	"telecare/care-portal/care-portal-backend/internal/documents"
	"telecare/care-portal/care-portal-backend/pkg/pdf"
	"telecare/care-portal/care-portal-backend/pkg/workflows"
)

var ErrAlreadySigned = errors.New("document is already signed")

// SignResult is the outcome of a signing attempt. It is transient and
// never persisted on its own.
type SignResult struct {
	Success            bool   `json:"success"`
	DocumentHash       string `json:"document_hash,omitempty"`
	CertificateSubject string `json:"certificate_subject,omitempty"`
	ErrorMessage       string `json:"error_message,omitempty"`
}

// SaveAndSignResult makes partial success explicit: the certificate may
// persist even when the subsequent signing attempt fails.
type SaveAndSignResult struct {
	Certificate *certificates.Certificate `json:"certificate"`
	SignResult  *SignResult               `json:"sign_result"`
}

// Service is the signing engine. A signing attempt progresses
// REQUESTED -> CERTIFICATE_RESOLVED -> HASHED -> SIGNED or FAILED, and the
// document transition to signed happens in a single conditional update, so
// no partial signature is ever observable.
type Service struct {
	docs      *documents.Service
	docRepo   documents.Repository
	certs     *certificates.Service
	locks     *documentLocks
	lifecycle *workflows.StateMachine
	attempt   *workflows.StateMachine
	logger    *zap.Logger
	now       func() time.Time
}

func NewService(docs *documents.Service, docRepo documents.Repository, certs *certificates.Service, logger *zap.Logger) *Service {
	return &Service{
		docs:      docs,
		docRepo:   docRepo,
		certs:     certs,
		locks:     newDocumentLocks(),
		lifecycle: workflows.NewDocumentLifecycle(),
		attempt:   workflows.NewSigningAttempt(),
		logger:    logger,
		now:       time.Now,
	}
}

// SignWithSaved signs a document with one of the caller's stored
// certificates. Quick-use certificates need no password.
func (s *Service) SignWithSaved(ctx context.Context, docID, certID, userID uuid.UUID, password string) (*SignResult, error) {
	return s.sign(ctx, docID, userID,
		func(doc *documents.Document) error {
			// Ownership of the certificate is the authorization: resolution
			// below fails with not-found for another user's certificate.
			return nil
		},
		func() (*certificates.SigningContext, error) {
			return s.certs.ResolveSigner(ctx, certID, userID, password)
		},
	)
}

// SignWithOneTimePFX signs with an uploaded container that is never
// persisted. The caller must be a participant of the document.
func (s *Service) SignWithOneTimePFX(ctx context.Context, docID uuid.UUID, pfx []byte, password string, userID uuid.UUID) (*SignResult, error) {
	return s.sign(ctx, docID, userID,
		func(doc *documents.Document) error {
			if !doc.IsParticipant(userID) {
				return documents.ErrForbidden
			}
			return nil
		},
		func() (*certificates.SigningContext, error) {
			return s.certs.ResolveOneTime(pfx, password)
		},
	)
}

// SaveCertificateAndSign saves the certificate first and then signs.
// A failed sign does not roll the certificate back; both outcomes are
// reported to the caller.
func (s *Service) SaveCertificateAndSign(ctx context.Context, docID, userID uuid.UUID, pfx []byte, password, displayName string, quickUse bool) (*SaveAndSignResult, error) {
	cert, err := s.certs.Save(ctx, userID, pfx, password, displayName, quickUse)
	if err != nil {
		return nil, err
	}

	result, err := s.SignWithSaved(ctx, docID, cert.ID, userID, password)
	if err != nil {
		result = &SignResult{Success: false, ErrorMessage: userMessage(err)}
	}
	return &SaveAndSignResult{Certificate: cert, SignResult: result}, nil
}

func (s *Service) sign(ctx context.Context, docID, actorID uuid.UUID,
	authorize func(*documents.Document) error,
	resolve func() (*certificates.SigningContext, error),
) (*SignResult, error) {
	unlock := s.locks.Lock(docID)
	defer unlock()

	state := "REQUESTED"

	doc, err := s.docs.Get(ctx, docID)
	if err != nil {
		return s.fail(docID, state, err)
	}
	if !s.lifecycle.CanTransition(string(doc.Status), string(documents.StatusSigned)) {
		return s.fail(docID, state, ErrAlreadySigned)
	}
	if err := authorize(doc); err != nil {
		return s.fail(docID, state, err)
	}

	sc, err := resolve()
	if err != nil {
		return s.fail(docID, state, err)
	}
	state = s.advance(state, "CERTIFICATE_RESOLVED")

	if s.now().After(sc.Certificate.NotAfter) {
		return s.fail(docID, state, certificates.ErrCertificateExpired)
	}

	canonical, err := documents.CanonicalBytes(doc)
	if err != nil {
		return s.fail(docID, state, err)
	}
	digest := sha256.Sum256(canonical)
	hash := fmt.Sprintf("%x", digest)
	state = s.advance(state, "HASHED")

	sigBytes, err := sc.Signer.Sign(rand.Reader, digest[:], crypto.SHA256)
	if err != nil {
		return s.fail(docID, state, fmt.Errorf("signature operation failed: %w", err))
	}

	signedAt := s.now()
	thumbprint := certificates.Thumbprint(sc.Certificate)
	subject := sc.Certificate.Subject.String()

	artifact, err := s.docs.Render(ctx, doc, &pdf.SignatureBlock{
		Subject:    subject,
		Thumbprint: thumbprint,
		SignedAt:   signedAt,
	})
	if err != nil {
		return s.fail(docID, state, fmt.Errorf("failed to render signed artifact: %w", err))
	}

	won, err := s.docRepo.MarkSigned(ctx, docID, &documents.Signature{
		Bytes:        sigBytes,
		Thumbprint:   thumbprint,
		Subject:      subject,
		SignedAt:     signedAt,
		DocumentHash: hash,
		Artifact:     artifact,
	})
	if err != nil {
		return s.fail(docID, state, err)
	}
	if !won {
		return s.fail(docID, state, ErrAlreadySigned)
	}
	state = s.advance(state, "SIGNED")

	s.logger.Info("Document signed",
		zap.String("document_id", docID.String()),
		zap.String("actor_id", actorID.String()),
		zap.String("document_hash", hash),
		zap.String("thumbprint", thumbprint),
		zap.String("attempt_state", state),
	)

	return &SignResult{
		Success:            true,
		DocumentHash:       hash,
		CertificateSubject: subject,
	}, nil
}

func (s *Service) advance(from, to string) string {
	if !s.attempt.CanTransition(from, to) {
		s.logger.Warn("Unexpected signing attempt transition",
			zap.String("from", from), zap.String("to", to),
			zap.Strings("allowed", s.attempt.GetAllowedTransitions(from)))
	}
	return to
}

func (s *Service) fail(docID uuid.UUID, state string, err error) (*SignResult, error) {
	s.logger.Info("Signing attempt failed",
		zap.String("document_id", docID.String()),
		zap.String("attempt_state", state),
		zap.Error(err),
	)
	return &SignResult{Success: false, ErrorMessage: userMessage(err)}, err
}

// userMessage maps internal errors to messages safe to show callers.
func userMessage(err error) string {
	switch {
	case errors.Is(err, documents.ErrNotFound):
		return "document not found"
	case errors.Is(err, ErrAlreadySigned):
		return "document is already signed"
	case errors.Is(err, documents.ErrForbidden):
		return "not a participant of this document"
	case errors.Is(err, certificates.ErrNotFound):
		return "certificate not found"
	case errors.Is(err, certificates.ErrPasswordRequired):
		return "certificate password required"
	case errors.Is(err, certificates.ErrIncorrectPassword):
		return "incorrect certificate password"
	case errors.Is(err, certificates.ErrCertificateExpired):
		return "certificate has expired"
	case errors.Is(err, certificates.ErrMalformedPFX),
		errors.Is(err, certificates.ErrInvalidCertificate),
		errors.Is(err, certificates.ErrUnsupportedKey):
		return "invalid certificate"
	default:
		return "signing failed"
	}
}
