package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/tenantic/assistant-core/internal/core/domain"
)

type FragmentRepository struct {
	db *sql.DB
}

func NewFragmentRepository(db *sql.DB) *FragmentRepository {
	return &FragmentRepository{db: db}
}

// ReplaceForDocument swaps the document's fragment set and marks it completed
// in one transaction, so readers never see the document without fragments
// between the delete and the insert.
func (r *FragmentRepository) ReplaceForDocument(ctx context.Context, doc *domain.Document, fragments []domain.Fragment) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM fragments WHERE document_id = $1`, doc.ID); err != nil {
		return fmt.Errorf("delete old fragments: %w", err)
	}

	now := time.Now().UTC()
	for _, f := range fragments {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO fragments (id, document_id, version, idx, content, embedding, created_at)
VALUES ($1, $2, $3, $4, $5, $6::vector, $7)
`, f.ID, f.DocumentID, f.Version, f.Index, f.Text, encodeVector(f.Vector), now); err != nil {
			return fmt.Errorf("insert fragment %d: %w", f.Index, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
UPDATE documents SET status = $2, error_message = '', updated_at = $3 WHERE id = $1
`, doc.ID, string(domain.StatusCompleted), now); err != nil {
		return fmt.Errorf("mark document completed: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace tx: %w", err)
	}
	return nil
}

func (r *FragmentRepository) DeleteByDocument(ctx context.Context, documentID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM fragments WHERE document_id = $1`, documentID); err != nil {
		return fmt.Errorf("delete fragments: %w", err)
	}
	return nil
}

func (r *FragmentRepository) ListByDocuments(ctx context.Context, documentIDs []string) ([]domain.CandidateFragment, error) {
	if len(documentIDs) == 0 {
		return nil, nil
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT f.document_id, d.filename, f.version, f.idx, f.content, f.embedding::text
FROM fragments f
JOIN documents d ON d.id = f.document_id
WHERE f.document_id = ANY($1) AND f.version = d.version
`, documentIDs)
	if err != nil {
		return nil, fmt.Errorf("list fragments: %w", err)
	}
	defer rows.Close()

	var out []domain.CandidateFragment
	for rows.Next() {
		var c domain.CandidateFragment
		var embedding string
		if err := rows.Scan(&c.DocumentID, &c.DocumentName, &c.Version, &c.Index, &c.Text, &embedding); err != nil {
			return nil, fmt.Errorf("scan fragment: %w", err)
		}
		vector, err := parseVector(embedding)
		if err != nil {
			return nil, fmt.Errorf("fragment %s/%d: %w", c.DocumentID, c.Index, err)
		}
		c.Vector = vector
		out = append(out, c)
	}
	return out, rows.Err()
}

// Search is the accelerated similarity-ordering path: pgvector orders by
// cosine distance server-side, restricted to the candidate document set. The
// score floor is applied by the caller so both ranking paths share it.
func (r *FragmentRepository) Search(ctx context.Context, queryVector []float32, documentIDs []string, limit int) ([]domain.Evidence, error) {
	if len(documentIDs) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 5
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT f.document_id, d.filename, f.version, f.idx, f.content,
       1 - (f.embedding <=> $1::vector) AS score
FROM fragments f
JOIN documents d ON d.id = f.document_id
WHERE f.document_id = ANY($2) AND f.version = d.version
ORDER BY f.embedding <=> $1::vector, f.document_id, f.idx
LIMIT $3
`, encodeVector(queryVector), documentIDs, limit)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	defer rows.Close()

	var out []domain.Evidence
	for rows.Next() {
		var ev domain.Evidence
		if err := rows.Scan(&ev.DocumentID, &ev.DocumentName, &ev.Version, &ev.FragmentIndex, &ev.Text, &ev.Score); err != nil {
			return nil, fmt.Errorf("scan search row: %w", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}
