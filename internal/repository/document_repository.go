package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ryadh-dz/autoecole-api/internal/models"
)

// DocumentRepository handles persistence of upload metadata.
type DocumentRepository struct {
	db *sqlx.DB
}

// NewDocumentRepository constructs the repository.
func NewDocumentRepository(db *sqlx.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

const documentColumns = `id, user_id, document_type, file_name, file_size, file_ref, is_verified, verified_by, verified_at, uploaded_at`

// Replace removes any previous upload of the same kind for the user and
// inserts the new row, in one transaction. Re-uploading resets the
// verification flag implicitly since the old row is gone.
func (r *DocumentRepository) Replace(ctx context.Context, doc *models.Document) error {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.UploadedAt.IsZero() {
		doc.UploadedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin document tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const deleteQuery = `DELETE FROM documents WHERE user_id = $1 AND document_type = $2`
	if _, err := tx.ExecContext(ctx, deleteQuery, doc.UserID, doc.Kind); err != nil {
		return fmt.Errorf("delete previous document: %w", err)
	}

	const insertQuery = `INSERT INTO documents (id, user_id, document_type, file_name, file_size, file_ref, is_verified, uploaded_at)
        VALUES (:id, :user_id, :document_type, :file_name, :file_size, :file_ref, :is_verified, :uploaded_at)`
	if _, err := tx.NamedExecContext(ctx, insertQuery, doc); err != nil {
		return fmt.Errorf("insert document: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit document tx: %w", err)
	}
	return nil
}

// FindByID returns a document by its ID.
func (r *DocumentRepository) FindByID(ctx context.Context, id string) (*models.Document, error) {
	query := fmt.Sprintf(`SELECT %s FROM documents WHERE id = $1`, documentColumns)
	var doc models.Document
	if err := r.db.GetContext(ctx, &doc, query, id); err != nil {
		return nil, err
	}
	return &doc, nil
}

// ListByUser returns a user's documents, newest first.
func (r *DocumentRepository) ListByUser(ctx context.Context, userID string) ([]models.Document, error) {
	query := fmt.Sprintf(`SELECT %s FROM documents WHERE user_id = $1 ORDER BY uploaded_at DESC`, documentColumns)
	var docs []models.Document
	if err := r.db.SelectContext(ctx, &docs, query, userID); err != nil {
		return nil, fmt.Errorf("list user documents: %w", err)
	}
	return docs, nil
}

// ListKindsByUser returns the distinct kinds a user has uploaded.
func (r *DocumentRepository) ListKindsByUser(ctx context.Context, userID string) ([]models.DocumentKind, error) {
	const query = `SELECT DISTINCT document_type FROM documents WHERE user_id = $1`
	var kinds []models.DocumentKind
	if err := r.db.SelectContext(ctx, &kinds, query, userID); err != nil {
		return nil, fmt.Errorf("list user document kinds: %w", err)
	}
	return kinds, nil
}

// MarkVerified flips the one-way verification flag. Returns false when the
// document was already verified.
func (r *DocumentRepository) MarkVerified(ctx context.Context, id, verifierID string, verifiedAt time.Time) (bool, error) {
	const query = `UPDATE documents SET is_verified = TRUE, verified_by = $2, verified_at = $3
        WHERE id = $1 AND is_verified = FALSE`
	res, err := r.db.ExecContext(ctx, query, id, verifierID, verifiedAt)
	if err != nil {
		return false, fmt.Errorf("verify document: %w", err)
	}
	return rowsAffected(res)
}
