package certificates

import (
	"time"

	"github.com/google/uuid"
)

// Certificate is a user-owned signing certificate. Thumbprint, subject and
// expiry are derived from the PKCS#12 container at save time and never edited.
// EncryptedPFX holds the original container wrapped under the process master
// key; QuickUseMaterial additionally holds re-derivable signing material for
// certificates saved with quick-use enabled. The passphrase is never stored.
type Certificate struct {
	ID               uuid.UUID `json:"id" gorm:"primaryKey;type:uuid"`
	UserID           uuid.UUID `json:"user_id" gorm:"type:uuid;not null;index"`
	DisplayName      string    `json:"display_name" gorm:"not null"`
	Thumbprint       string    `json:"thumbprint" gorm:"not null;index"`
	Subject          string    `json:"subject" gorm:"not null"`
	NotAfter         time.Time `json:"not_after" gorm:"not null"`
	IsExpired        bool      `json:"is_expired" gorm:"default:false"`
	QuickUse         bool      `json:"quick_use" gorm:"default:false"`
	EncryptedPFX     []byte    `json:"-" gorm:"type:bytea"`
	QuickUseMaterial []byte    `json:"-" gorm:"type:bytea"`
	CreatedAt        time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt        time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

func (Certificate) TableName() string {
	return "certificates"
}

// ValidationResult reports the outcome of opening a PKCS#12 container.
// A failed validation is a result, not an error.
type ValidationResult struct {
	IsValid             bool      `json:"is_valid"`
	IsExpired           bool      `json:"is_expired"`
	Thumbprint          string    `json:"thumbprint,omitempty"`
	Subject             string    `json:"subject,omitempty"`
	NameFromCertificate string    `json:"name_from_certificate,omitempty"`
	NotAfter            time.Time `json:"not_after,omitempty"`
	ErrorMessage        string    `json:"error_message,omitempty"`
}

// UpdateRequest carries the only certificate fields a user may change.
type UpdateRequest struct {
	DisplayName *string `json:"display_name"`
	QuickUse    *bool   `json:"quick_use"`
}
