package keywrap

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func testMasterKey(t *testing.T) []byte {
	t.Helper()
	key := make([]byte, MasterKeySize)
	_, err := rand.Read(key)
	assert.NoError(t, err)
	return key
}

func TestWrapUnwrapRoundTrip(t *testing.T) {
	master := testMasterKey(t)
	plaintext := []byte("pkcs12 container bytes")

	blob, err := Wrap(master, "cert:1234", plaintext)
	assert.NoError(t, err)
	assert.NotEqual(t, plaintext, blob)

	got, err := Unwrap(master, "cert:1234", blob)
	assert.NoError(t, err)
	assert.Equal(t, plaintext, got)
}

func TestUnwrapWrongContext(t *testing.T) {
	master := testMasterKey(t)

	blob, err := Wrap(master, "cert:1234", []byte("secret"))
	assert.NoError(t, err)

	_, err = Unwrap(master, "cert:9999", blob)
	assert.ErrorIs(t, err, ErrUnwrapFailed)
}

func TestUnwrapWrongMasterKey(t *testing.T) {
	master := testMasterKey(t)
	other := testMasterKey(t)

	blob, err := Wrap(master, "cert:1234", []byte("secret"))
	assert.NoError(t, err)

	_, err = Unwrap(other, "cert:1234", blob)
	assert.ErrorIs(t, err, ErrUnwrapFailed)
}

func TestWrapRejectsShortMasterKey(t *testing.T) {
	_, err := Wrap([]byte("too short"), "ctx", []byte("secret"))
	assert.ErrorIs(t, err, ErrInvalidMasterKey)
}

func TestUnwrapRejectsTruncatedBlob(t *testing.T) {
	master := testMasterKey(t)

	_, err := Unwrap(master, "ctx", []byte{0x01, 0x02})
	assert.ErrorIs(t, err, ErrMalformedBlob)
}

func TestWrapProducesFreshCiphertext(t *testing.T) {
	master := testMasterKey(t)

	a, err := Wrap(master, "ctx", []byte("secret"))
	assert.NoError(t, err)
	b, err := Wrap(master, "ctx", []byte("secret"))
	assert.NoError(t, err)

	// Random salt and nonce per wrap.
	assert.NotEqual(t, a, b)
}
