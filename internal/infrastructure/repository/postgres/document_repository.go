package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tenantic/assistant-core/internal/core/domain"
)

type DocumentRepository struct {
	db *sql.DB
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func (r *DocumentRepository) Create(ctx context.Context, doc *domain.Document) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO documents (
	id, collection_id, filename, mime_type, storage_path, size_bytes, status, version, error_message, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
`,
		doc.ID, doc.CollectionID, doc.Filename, doc.MimeType, doc.StoragePath, doc.SizeBytes,
		string(doc.Status), doc.Version, doc.Error, doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, collection_id, filename, mime_type, storage_path, size_bytes, status, version, error_message, created_at, updated_at
FROM documents
WHERE id = $1
`, id)

	var doc domain.Document
	var status string
	err := row.Scan(
		&doc.ID, &doc.CollectionID, &doc.Filename, &doc.MimeType, &doc.StoragePath, &doc.SizeBytes,
		&status, &doc.Version, &doc.Error, &doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "get document", fmt.Errorf("id=%s", id))
		}
		return nil, fmt.Errorf("scan document: %w", err)
	}
	doc.Status = domain.DocumentStatus(status)
	return &doc, nil
}

// GetByIDForTenant scopes the read through the owning collection. A document
// in another tenant's collection is indistinguishable from a missing one.
func (r *DocumentRepository) GetByIDForTenant(ctx context.Context, tenantID, id string) (*domain.Document, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT d.id, d.collection_id, d.filename, d.mime_type, d.storage_path, d.size_bytes, d.status, d.version, d.error_message, d.created_at, d.updated_at
FROM documents d
JOIN collections c ON c.id = d.collection_id
WHERE d.id = $1 AND c.tenant_id = $2
`, id, tenantID)

	var doc domain.Document
	var status string
	err := row.Scan(
		&doc.ID, &doc.CollectionID, &doc.Filename, &doc.MimeType, &doc.StoragePath, &doc.SizeBytes,
		&status, &doc.Version, &doc.Error, &doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "get document", fmt.Errorf("id=%s", id))
		}
		return nil, fmt.Errorf("scan document: %w", err)
	}
	doc.Status = domain.DocumentStatus(status)
	return &doc, nil
}

func (r *DocumentRepository) UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMessage string) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE documents
SET status = $2, error_message = $3, updated_at = $4
WHERE id = $1
`, id, string(status), errMessage, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update document status: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return domain.WrapError(domain.ErrNotFound, "update document status", fmt.Errorf("id=%s", id))
	}
	return nil
}

func (r *DocumentRepository) ResetForReprocess(ctx context.Context, id string) (int, error) {
	row := r.db.QueryRowContext(ctx, `
UPDATE documents
SET status = $2, version = version + 1, error_message = '', updated_at = $3
WHERE id = $1
RETURNING version
`, id, string(domain.StatusPending), time.Now().UTC())

	var version int
	if err := row.Scan(&version); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, domain.WrapError(domain.ErrNotFound, "reset document", fmt.Errorf("id=%s", id))
		}
		return 0, fmt.Errorf("reset document for reprocess: %w", err)
	}
	return version, nil
}

func (r *DocumentRepository) ListPendingIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id FROM documents WHERE status = $1 ORDER BY created_at
`, string(domain.StatusPending))
	if err != nil {
		return nil, fmt.Errorf("list pending documents: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan pending document id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *DocumentRepository) ListCompletedIDsForAgent(ctx context.Context, agentID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT d.id
FROM documents d
JOIN collections c ON c.id = d.collection_id
WHERE d.status = $1
  AND (c.global_visible OR c.id IN (SELECT collection_id FROM agent_collections WHERE agent_id = $2))
`, string(domain.StatusCompleted), agentID)
	if err != nil {
		return nil, fmt.Errorf("list candidate documents: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan candidate document id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
