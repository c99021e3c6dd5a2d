package pdf

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// RenderInput is the logical content of a clinical document. Field values
// are supplied by the document service; the renderer never reads storage.
type RenderInput struct {
	Kind             string
	Title            string
	DocumentID       string
	ProfessionalName string
	PatientName      string
	IssuedAt         time.Time
	Fields           map[string]string
	Signature        *SignatureBlock
}

// SignatureBlock carries the metadata printed on a signed artifact.
type SignatureBlock struct {
	Subject    string
	Thumbprint string
	SignedAt   time.Time
}

// Renderer produces PDF bytes for a clinical document, unsigned or signed.
type Renderer interface {
	Render(ctx context.Context, input RenderInput) ([]byte, error)
}

type clinicalRenderer struct{}

// NewRenderer returns a gofpdf-backed renderer.
func NewRenderer() Renderer {
	return &clinicalRenderer{}
}

func (r *clinicalRenderer) Render(ctx context.Context, input RenderInput) ([]byte, error) {
	doc := gofpdf.New("P", "mm", "A4", "")
	doc.SetMargins(15, 20, 15)
	doc.SetAutoPageBreak(true, 20)
	doc.AddPage()

	doc.SetFont("Arial", "B", 16)
	doc.SetTextColor(40, 60, 90)
	doc.CellFormat(0, 10, input.Title, "", 1, "C", false, 0, "")

	doc.SetFont("Arial", "", 10)
	doc.SetTextColor(0, 0, 0)
	doc.Ln(4)
	doc.CellFormat(0, 6, fmt.Sprintf("Document: %s", input.DocumentID), "", 1, "L", false, 0, "")
	doc.CellFormat(0, 6, fmt.Sprintf("Professional: %s", input.ProfessionalName), "", 1, "L", false, 0, "")
	doc.CellFormat(0, 6, fmt.Sprintf("Patient: %s", input.PatientName), "", 1, "L", false, 0, "")
	doc.CellFormat(0, 6, fmt.Sprintf("Issued: %s", input.IssuedAt.Format("2006-01-02 15:04")), "", 1, "L", false, 0, "")
	doc.Ln(6)

	// Stable field ordering so successive renders look identical.
	keys := make([]string, 0, len(input.Fields))
	for k := range input.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		doc.SetFont("Arial", "B", 10)
		doc.CellFormat(45, 7, k, "", 0, "L", false, 0, "")
		doc.SetFont("Arial", "", 10)
		doc.MultiCell(0, 7, input.Fields[k], "", "L", false)
		doc.Ln(1)
	}

	if input.Signature != nil {
		doc.Ln(10)
		doc.SetDrawColor(120, 120, 120)
		doc.Line(15, doc.GetY(), 195, doc.GetY())
		doc.Ln(3)
		doc.SetFont("Arial", "I", 9)
		doc.SetTextColor(80, 80, 80)
		doc.CellFormat(0, 5, "Digitally signed document", "", 1, "L", false, 0, "")
		doc.CellFormat(0, 5, fmt.Sprintf("Signer: %s", input.Signature.Subject), "", 1, "L", false, 0, "")
		doc.CellFormat(0, 5, fmt.Sprintf("Certificate thumbprint: %s", input.Signature.Thumbprint), "", 1, "L", false, 0, "")
		doc.CellFormat(0, 5, fmt.Sprintf("Signed at: %s", input.Signature.SignedAt.UTC().Format(time.RFC3339)), "", 1, "L", false, 0, "")
	}

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
