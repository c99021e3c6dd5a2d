package documents

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// canonicalPayload is the signature-independent identity of a document:
// its kind, identity/issuance metadata and clinical content. Signature
// fields and render-time values are deliberately excluded so the hash is
// computable before and after signing and stable across re-renders.
type canonicalPayload struct {
	Kind           Kind                   `json:"kind"`
	ID             string                 `json:"id"`
	AppointmentID  string                 `json:"appointment_id"`
	ProfessionalID string                 `json:"professional_id"`
	PatientID      string                 `json:"patient_id"`
	Content        map[string]interface{} `json:"content"`
}

// CanonicalBytes returns the canonical serialization of a document's
// logical content. The content JSON is decoded into maps first so client
// key ordering never changes the result: encoding/json writes map keys
// sorted at every nesting level. Pure function, no I/O.
func CanonicalBytes(d *Document) ([]byte, error) {
	payload := canonicalPayload{
		Kind:           d.Kind,
		ID:             d.ID.String(),
		AppointmentID:  d.AppointmentID.String(),
		ProfessionalID: d.ProfessionalID.String(),
		PatientID:      d.PatientID.String(),
		Content:        map[string]interface{}{},
	}

	if len(d.Content) > 0 {
		if err := json.Unmarshal(d.Content, &payload.Content); err != nil {
			return nil, fmt.Errorf("document content is not a JSON object: %w", err)
		}
	}

	return json.Marshal(payload)
}

// CanonicalHash computes the hex SHA-256 digest of CanonicalBytes.
func CanonicalHash(d *Document) (string, error) {
	canonical, err := CanonicalBytes(d)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}
