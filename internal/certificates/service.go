package certificates

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"telecare/care-portal/care-portal-backend/pkg/keywrap"
)

var (
	ErrNotFound           = errors.New("certificate not found")
	ErrInvalidCertificate = errors.New("invalid certificate")
	ErrCertificateExpired = errors.New("certificate has expired")
	ErrPasswordRequired   = errors.New("certificate password required")
	ErrDecodeTimeout      = errors.New("certificate processing timed out")
)

// Service manages user-owned signing certificates and opens signing
// contexts for the signer. All at-rest key material goes through keywrap.
type Service struct {
	repo      Repository
	masterKey []byte
	opTimeout time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

func NewService(repo Repository, masterKey []byte, opTimeout time.Duration, logger *zap.Logger) *Service {
	if opTimeout <= 0 {
		opTimeout = 10 * time.Second
	}
	return &Service{
		repo:      repo,
		masterKey: masterKey,
		opTimeout: opTimeout,
		logger:    logger,
		now:       time.Now,
	}
}

// Validate opens a PKCS#12 blob and reports its contents. Nothing is
// persisted. Decoding of untrusted input is bounded by the operation timeout.
func (s *Service) Validate(pfx []byte, password string) ValidationResult {
	result, err := s.openBounded(pfx, password)
	if errors.Is(err, ErrDecodeTimeout) {
		return ValidationResult{IsValid: false, ErrorMessage: "certificate processing timed out"}
	}
	return result
}

func (s *Service) openBounded(pfx []byte, password string) (ValidationResult, error) {
	done := make(chan ValidationResult, 1)
	go func() {
		done <- Validate(pfx, password, s.now())
	}()
	select {
	case r := <-done:
		return r, nil
	case <-time.After(s.opTimeout):
		return ValidationResult{}, ErrDecodeTimeout
	}
}

// openPFXBounded opens an uploaded container with the same timeout bound
// as Validate. Uploads are untrusted input.
func (s *Service) openPFXBounded(pfx []byte, password string) (*SigningContext, error) {
	type opened struct {
		sc  *SigningContext
		err error
	}
	done := make(chan opened, 1)
	go func() {
		sc, err := OpenPFX(pfx, password)
		done <- opened{sc, err}
	}()
	select {
	case o := <-done:
		return o.sc, o.err
	case <-time.After(s.opTimeout):
		return nil, ErrDecodeTimeout
	}
}

// Save validates and persists a certificate for a user. The original
// container is stored wrapped under the master key; quick-use certificates
// additionally store material sufficient to sign without the passphrase.
func (s *Service) Save(ctx context.Context, userID uuid.UUID, pfx []byte, password, displayName string, quickUse bool) (*Certificate, error) {
	sc, err := s.openPFXBounded(pfx, password)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCertificate, err)
	}
	if s.now().After(sc.Certificate.NotAfter) {
		return nil, ErrCertificateExpired
	}

	id := uuid.New()
	wrappedPFX, err := keywrap.Wrap(s.masterKey, pfxContext(id), pfx)
	if err != nil {
		return nil, fmt.Errorf("failed to protect certificate material: %w", err)
	}

	cert := &Certificate{
		ID:           id,
		UserID:       userID,
		DisplayName:  displayName,
		Thumbprint:   Thumbprint(sc.Certificate),
		Subject:      sc.Certificate.Subject.String(),
		NotAfter:     sc.Certificate.NotAfter,
		QuickUse:     quickUse,
		EncryptedPFX: wrappedPFX,
	}
	if displayName == "" {
		cert.DisplayName = sc.Certificate.Subject.CommonName
	}

	if quickUse {
		material, err := encodeQuickUseMaterial(sc)
		if err != nil {
			return nil, err
		}
		wrapped, err := keywrap.Wrap(s.masterKey, quickUseContext(id), material)
		if err != nil {
			return nil, fmt.Errorf("failed to protect quick-use material: %w", err)
		}
		cert.QuickUseMaterial = wrapped
	}

	if err := s.repo.Create(ctx, cert); err != nil {
		return nil, err
	}

	s.logger.Info("Certificate saved",
		zap.String("certificate_id", cert.ID.String()),
		zap.String("user_id", userID.String()),
		zap.String("thumbprint", cert.Thumbprint),
		zap.Bool("quick_use", quickUse),
	)
	return cert, nil
}

// Update changes display name and quick-use metadata only. Enabling
// quick-use requires the passphrase, so it must go through the save flow;
// disabling it discards the stored quick-use material.
func (s *Service) Update(ctx context.Context, id, userID uuid.UUID, req UpdateRequest) (*Certificate, error) {
	cert, err := s.repo.GetByID(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if cert == nil {
		return nil, ErrNotFound
	}

	if req.DisplayName != nil {
		cert.DisplayName = *req.DisplayName
	}
	if req.QuickUse != nil && *req.QuickUse != cert.QuickUse {
		if *req.QuickUse {
			return nil, ErrPasswordRequired
		}
		cert.QuickUse = false
		cert.QuickUseMaterial = nil
	}

	if err := s.repo.Update(ctx, cert); err != nil {
		return nil, err
	}
	return cert, nil
}

// Delete removes a certificate. Documents already signed with it keep
// their signatures untouched.
func (s *Service) Delete(ctx context.Context, id, userID uuid.UUID) (bool, error) {
	deleted, err := s.repo.Delete(ctx, id, userID)
	if err != nil {
		return false, err
	}
	if deleted {
		s.logger.Info("Certificate deleted",
			zap.String("certificate_id", id.String()),
			zap.String("user_id", userID.String()),
		)
	}
	return deleted, nil
}

// ListByUser returns all of a user's certificates in insertion order,
// expired ones included. Callers filter for signing-eligible entries.
func (s *Service) ListByUser(ctx context.Context, userID uuid.UUID) ([]Certificate, error) {
	return s.repo.ListByUser(ctx, userID)
}

// GetByID is an ownership-scoped lookup.
func (s *Service) GetByID(ctx context.Context, id, userID uuid.UUID) (*Certificate, error) {
	cert, err := s.repo.GetByID(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if cert == nil {
		return nil, ErrNotFound
	}
	return cert, nil
}

// ResolveSigner reopens a saved certificate's signing context. Quick-use
// certificates need no password; all others require the original passphrase.
func (s *Service) ResolveSigner(ctx context.Context, id, userID uuid.UUID, password string) (*SigningContext, error) {
	cert, err := s.GetByID(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	if cert.QuickUse && len(cert.QuickUseMaterial) > 0 {
		material, err := keywrap.Unwrap(s.masterKey, quickUseContext(cert.ID), cert.QuickUseMaterial)
		if err != nil {
			return nil, fmt.Errorf("failed to unwrap quick-use material: %w", err)
		}
		return decodeQuickUseMaterial(material)
	}

	if password == "" {
		return nil, ErrPasswordRequired
	}

	pfx, err := keywrap.Unwrap(s.masterKey, pfxContext(cert.ID), cert.EncryptedPFX)
	if err != nil {
		return nil, fmt.Errorf("failed to unwrap certificate material: %w", err)
	}
	return OpenPFX(pfx, password)
}

// ResolveOneTime opens an uploaded container that is never persisted.
func (s *Service) ResolveOneTime(pfx []byte, password string) (*SigningContext, error) {
	sc, err := s.openPFXBounded(pfx, password)
	if err != nil {
		return nil, err
	}
	if s.now().After(sc.Certificate.NotAfter) {
		return nil, ErrCertificateExpired
	}
	return sc, nil
}

// SweepExpired refreshes the denormalized expiry flag. Run nightly; expired
// certificates are flagged, never deleted.
func (s *Service) SweepExpired(ctx context.Context) {
	n, err := s.repo.MarkExpired(ctx, s.now())
	if err != nil {
		s.logger.Error("Expired certificate sweep failed", zap.Error(err))
		return
	}
	if n > 0 {
		s.logger.Info("Marked expired certificates", zap.Int64("count", n))
	}
}

func pfxContext(id uuid.UUID) string {
	return "cert-pfx:" + id.String()
}

func quickUseContext(id uuid.UUID) string {
	return "cert-quickuse:" + id.String()
}
