package documents

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func testDocument(content string) *Document {
	return &Document{
		ID:             uuid.MustParse("3e7f4a4e-54c8-4d07-9a7a-111111111111"),
		Kind:           KindMedicalCertificate,
		AppointmentID:  uuid.MustParse("3e7f4a4e-54c8-4d07-9a7a-222222222222"),
		ProfessionalID: uuid.MustParse("3e7f4a4e-54c8-4d07-9a7a-333333333333"),
		PatientID:      uuid.MustParse("3e7f4a4e-54c8-4d07-9a7a-444444444444"),
		Content:        json.RawMessage(content),
		Status:         StatusUnsigned,
	}
}

func TestCanonicalHashDeterministic(t *testing.T) {
	doc := testDocument(`{"diagnosis":"influenza","rest_days":3}`)

	first, err := CanonicalHash(doc)
	assert.NoError(t, err)
	second, err := CanonicalHash(doc)
	assert.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, first, 64)
}

func TestCanonicalHashIgnoresKeyOrder(t *testing.T) {
	a := testDocument(`{"diagnosis":"influenza","rest_days":3}`)
	b := testDocument(`{"rest_days":3,"diagnosis":"influenza"}`)

	hashA, err := CanonicalHash(a)
	assert.NoError(t, err)
	hashB, err := CanonicalHash(b)
	assert.NoError(t, err)

	assert.Equal(t, hashA, hashB)
}

func TestCanonicalHashChangesWithContent(t *testing.T) {
	a := testDocument(`{"diagnosis":"influenza","rest_days":3}`)
	b := testDocument(`{"diagnosis":"influenza","rest_days":4}`)

	hashA, err := CanonicalHash(a)
	assert.NoError(t, err)
	hashB, err := CanonicalHash(b)
	assert.NoError(t, err)

	assert.NotEqual(t, hashA, hashB)
}

func TestCanonicalHashChangesWithKind(t *testing.T) {
	a := testDocument(`{"notes":"x"}`)
	b := testDocument(`{"notes":"x"}`)
	b.Kind = KindExamRequest

	hashA, err := CanonicalHash(a)
	assert.NoError(t, err)
	hashB, err := CanonicalHash(b)
	assert.NoError(t, err)

	assert.NotEqual(t, hashA, hashB)
}

func TestCanonicalHashIgnoresSignatureState(t *testing.T) {
	a := testDocument(`{"notes":"x"}`)
	hashBefore, err := CanonicalHash(a)
	assert.NoError(t, err)

	now := time.Now()
	a.Status = StatusSigned
	a.SignatureBytes = []byte{0x01, 0x02}
	a.CertificateThumbprint = "aa"
	a.CertificateSubject = "CN=someone"
	a.SignedAt = &now
	a.DocumentHash = hashBefore

	hashAfter, err := CanonicalHash(a)
	assert.NoError(t, err)
	assert.Equal(t, hashBefore, hashAfter)
}

func TestCanonicalHashRejectsNonObjectContent(t *testing.T) {
	doc := testDocument(`[1,2,3]`)

	_, err := CanonicalHash(doc)
	assert.Error(t, err)
}

func TestCanonicalHashEmptyContent(t *testing.T) {
	doc := testDocument("")

	hash, err := CanonicalHash(doc)
	assert.NoError(t, err)
	assert.Len(t, hash, 64)
}
