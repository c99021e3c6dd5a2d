package documents

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type Repository interface {
	Create(ctx context.Context, doc *Document) error
	GetByID(ctx context.Context, id uuid.UUID) (*Document, error)
	List(ctx context.Context, appointmentID *uuid.UUID, kind *Kind) ([]Document, error)
	UpdateContent(ctx context.Context, doc *Document) (bool, error)
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
	MarkSigned(ctx context.Context, id uuid.UUID, sig *Signature) (bool, error)
	FindByHash(ctx context.Context, hash string) (*Document, error)
}

type postgresRepository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) Create(ctx context.Context, doc *Document) error {
	query := `
		INSERT INTO signable_documents (
			id, kind, appointment_id, professional_id, patient_id,
			professional_name, patient_name, content, status
		) VALUES (
			:id, :kind, :appointment_id, :professional_id, :patient_id,
			:professional_name, :patient_name, :content, :status
		)`
	_, err := r.db.NamedExecContext(ctx, query, doc)
	return err
}

func (r *postgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Document, error) {
	var doc Document
	err := r.db.GetContext(ctx, &doc, "SELECT * FROM signable_documents WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (r *postgresRepository) List(ctx context.Context, appointmentID *uuid.UUID, kind *Kind) ([]Document, error) {
	docs := []Document{}
	query := "SELECT * FROM signable_documents WHERE 1=1"
	var args []interface{}
	argCount := 1

	if appointmentID != nil {
		query += fmt.Sprintf(" AND appointment_id = $%d", argCount)
		args = append(args, *appointmentID)
		argCount++
	}
	if kind != nil {
		query += fmt.Sprintf(" AND kind = $%d", argCount)
		args = append(args, *kind)
		argCount++
	}
	query += " ORDER BY created_at"

	err := r.db.SelectContext(ctx, &docs, query, args...)
	return docs, err
}

// UpdateContent replaces the clinical content of an unsigned document.
// The status guard in the WHERE clause makes signed documents immutable
// even under concurrent signing.
func (r *postgresRepository) UpdateContent(ctx context.Context, doc *Document) (bool, error) {
	query := `
		UPDATE signable_documents SET
			content = :content,
			patient_name = :patient_name,
			updated_at = now()
		WHERE id = :id AND status = 'unsigned'`
	res, err := r.db.NamedExecContext(ctx, query, doc)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *postgresRepository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM signable_documents WHERE id = $1 AND status = 'unsigned'", id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// MarkSigned performs the one-shot unsigned -> signed transition. The
// conditional update is the race guard: of two concurrent attempts, only
// one can match status = 'unsigned' and win.
func (r *postgresRepository) MarkSigned(ctx context.Context, id uuid.UUID, sig *Signature) (bool, error) {
	query := `
		UPDATE signable_documents SET
			status = 'signed',
			signature_bytes = $2,
			certificate_thumbprint = $3,
			certificate_subject = $4,
			signed_at = $5,
			document_hash = $6,
			signed_artifact = $7,
			updated_at = now()
		WHERE id = $1 AND status = 'unsigned'`
	res, err := r.db.ExecContext(ctx, query, id,
		sig.Bytes, sig.Thumbprint, sig.Subject, sig.SignedAt, sig.DocumentHash, sig.Artifact)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *postgresRepository) FindByHash(ctx context.Context, hash string) (*Document, error) {
	var doc Document
	err := r.db.GetContext(ctx, &doc,
		"SELECT * FROM signable_documents WHERE document_hash = $1 AND status = 'signed'", hash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}
