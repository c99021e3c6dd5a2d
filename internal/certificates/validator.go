package certificates

import (
	"crypto"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"software.sslmate.com/src/go-pkcs12"
)

var (
	ErrIncorrectPassword = errors.New("incorrect certificate password")
	ErrMalformedPFX      = errors.New("malformed PKCS#12 container")
	ErrUnsupportedKey    = errors.New("certificate key does not support signing")
)

// SigningContext is an opened certificate ready to produce signatures.
type SigningContext struct {
	Signer      crypto.Signer
	Certificate *x509.Certificate
}

// Thumbprint returns the hex SHA-256 fingerprint of a certificate.
func Thumbprint(cert *x509.Certificate) string {
	sum := sha256.Sum256(cert.Raw)
	return hex.EncodeToString(sum[:])
}

// OpenPFX decodes a PKCS#12 container with its passphrase. Errors are
// normalized so callers can distinguish a wrong password from garbage input.
func OpenPFX(pfx []byte, password string) (*SigningContext, error) {
	priv, cert, _, err := pkcs12.DecodeChain(pfx, password)
	if err != nil {
		if errors.Is(err, pkcs12.ErrIncorrectPassword) {
			return nil, ErrIncorrectPassword
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformedPFX, err)
	}
	signer, ok := priv.(crypto.Signer)
	if !ok {
		return nil, ErrUnsupportedKey
	}
	return &SigningContext{Signer: signer, Certificate: cert}, nil
}

// Validate opens a PKCS#12 blob and reports what it contains without
// persisting anything. It never returns an error: failures are carried in
// the result. Safe to call repeatedly.
func Validate(pfx []byte, password string, now time.Time) ValidationResult {
	sc, err := OpenPFX(pfx, password)
	if err != nil {
		msg := "invalid certificate file"
		switch {
		case errors.Is(err, ErrIncorrectPassword):
			msg = "incorrect password"
		case errors.Is(err, ErrUnsupportedKey):
			msg = "unsupported key algorithm"
		}
		return ValidationResult{IsValid: false, ErrorMessage: msg}
	}

	cert := sc.Certificate
	return ValidationResult{
		IsValid:             true,
		IsExpired:           now.After(cert.NotAfter),
		Thumbprint:          Thumbprint(cert),
		Subject:             cert.Subject.String(),
		NameFromCertificate: cert.Subject.CommonName,
		NotAfter:            cert.NotAfter,
	}
}

// quickUseMaterial is the at-rest payload for quick-use certificates:
// enough to rebuild a signing context without the passphrase. It is only
// ever stored wrapped by pkg/keywrap.
type quickUseMaterial struct {
	KeyPKCS8 []byte `json:"key_pkcs8"`
	CertDER  []byte `json:"cert_der"`
}

func encodeQuickUseMaterial(sc *SigningContext) ([]byte, error) {
	keyDER, err := x509.MarshalPKCS8PrivateKey(sc.Signer)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal private key: %w", err)
	}
	return json.Marshal(quickUseMaterial{KeyPKCS8: keyDER, CertDER: sc.Certificate.Raw})
}

func decodeQuickUseMaterial(data []byte) (*SigningContext, error) {
	var m quickUseMaterial
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("corrupt quick-use material: %w", err)
	}
	key, err := x509.ParsePKCS8PrivateKey(m.KeyPKCS8)
	if err != nil {
		return nil, fmt.Errorf("corrupt quick-use key: %w", err)
	}
	signer, ok := key.(crypto.Signer)
	if !ok {
		return nil, ErrUnsupportedKey
	}
	cert, err := x509.ParseCertificate(m.CertDER)
	if err != nil {
		return nil, fmt.Errorf("corrupt quick-use certificate: %w", err)
	}
	return &SigningContext{Signer: signer, Certificate: cert}, nil
}
