// Package keywrap provides envelope encryption for sensitive material
// stored at rest. Each blob is encrypted with AES-256-GCM under a key
// derived from the process master key via HKDF-SHA256, so the master key
// itself is never used directly and entries are bound to a context string.
package keywrap

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	MasterKeySize = 32
	saltSize      = 16
)

var (
	ErrInvalidMasterKey = errors.New("master key must be 32 bytes")
	ErrMalformedBlob    = errors.New("encrypted blob is malformed")
	ErrUnwrapFailed     = errors.New("failed to decrypt blob")
)

// Wrap encrypts plaintext under a key derived from master and context.
// The context binds the ciphertext to its owner (e.g. a certificate id):
// unwrapping with a different context fails authentication.
func Wrap(master []byte, context string, plaintext []byte) ([]byte, error) {
	if len(master) != MasterKeySize {
		return nil, ErrInvalidMasterKey
	}

	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}

	gcm, err := newGCM(master, salt, context)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}

	out := make([]byte, 0, saltSize+gcm.NonceSize()+len(plaintext)+gcm.Overhead())
	out = append(out, salt...)
	out = append(out, nonce...)
	return gcm.Seal(out, nonce, plaintext, []byte(context)), nil
}

// Unwrap reverses Wrap. The same master key and context must be supplied.
func Unwrap(master []byte, context string, blob []byte) ([]byte, error) {
	if len(master) != MasterKeySize {
		return nil, ErrInvalidMasterKey
	}
	if len(blob) < saltSize {
		return nil, ErrMalformedBlob
	}

	salt := blob[:saltSize]
	gcm, err := newGCM(master, salt, context)
	if err != nil {
		return nil, err
	}

	rest := blob[saltSize:]
	if len(rest) < gcm.NonceSize() {
		return nil, ErrMalformedBlob
	}
	nonce, ciphertext := rest[:gcm.NonceSize()], rest[gcm.NonceSize():]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, []byte(context))
	if err != nil {
		return nil, ErrUnwrapFailed
	}
	return plaintext, nil
}

func newGCM(master, salt []byte, context string) (cipher.AEAD, error) {
	kdf := hkdf.New(sha256.New, master, salt, []byte(context))
	key := make([]byte, 32)
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
