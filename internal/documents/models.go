package documents

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusUnsigned Status = "unsigned"
	StatusSigned   Status = "signed"
)

type Kind string

const (
	KindMedicalCertificate Kind = "medical_certificate"
	KindExamRequest        Kind = "exam_request"
	KindMedicalReport      Kind = "medical_report"
	KindPrescription       Kind = "prescription"
)

var kindTitles = map[Kind]string{
	KindMedicalCertificate: "Medical Certificate",
	KindExamRequest:        "Exam Request",
	KindMedicalReport:      "Medical Report",
	KindPrescription:       "Prescription",
}

// Known reports whether k is one of the supported document kinds.
func (k Kind) Known() bool {
	_, ok := kindTitles[k]
	return ok
}

// Title returns the heading printed on rendered artifacts.
func (k Kind) Title() string {
	if t, ok := kindTitles[k]; ok {
		return t
	}
	return "Clinical Document"
}

// Document is a signable clinical document of any kind. Content holds the
// kind-specific clinical fields as JSON and is immutable once signed.
// DocumentHash is set exactly when the document is signed.
type Document struct {
	ID                    uuid.UUID       `json:"id" db:"id"`
	Kind                  Kind            `json:"kind" db:"kind"`
	AppointmentID         uuid.UUID       `json:"appointment_id" db:"appointment_id"`
	ProfessionalID        uuid.UUID       `json:"professional_id" db:"professional_id"`
	PatientID             uuid.UUID       `json:"patient_id" db:"patient_id"`
	ProfessionalName      string          `json:"professional_name" db:"professional_name"`
	PatientName           string          `json:"patient_name" db:"patient_name"`
	Content               json.RawMessage `json:"content" db:"content"`
	Status                Status          `json:"status" db:"status"`
	SignatureBytes        []byte          `json:"-" db:"signature_bytes"`
	CertificateThumbprint string          `json:"certificate_thumbprint,omitempty" db:"certificate_thumbprint"`
	CertificateSubject    string          `json:"certificate_subject,omitempty" db:"certificate_subject"`
	SignedAt              *time.Time      `json:"signed_at,omitempty" db:"signed_at"`
	DocumentHash          string          `json:"document_hash,omitempty" db:"document_hash"`
	SignedArtifact        []byte          `json:"-" db:"signed_artifact"`
	CreatedAt             time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at" db:"updated_at"`
}

// IsSigned reports whether the document reached its terminal state.
func (d *Document) IsSigned() bool {
	return d.Status == StatusSigned
}

// IsParticipant reports whether userID is the issuing professional or the
// subject patient of this document.
func (d *Document) IsParticipant(userID uuid.UUID) bool {
	return d.ProfessionalID == userID || d.PatientID == userID
}

// Signature carries the fields persisted when a document is signed.
type Signature struct {
	Bytes        []byte
	Thumbprint   string
	Subject      string
	SignedAt     time.Time
	DocumentHash string
	Artifact     []byte
}
