package usecase

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tenantic/assistant-core/internal/core/domain"
	"github.com/tenantic/assistant-core/internal/core/ports"
)

// IngestDocumentUseCase accepts uploads and re-process requests. Both return
// immediately with status=pending; the worker picks the job up from the
// queue.
type IngestDocumentUseCase struct {
	documents ports.DocumentStore
	storage   ports.ObjectStorage
	queue     ports.MessageQueue
}

func NewIngestDocumentUseCase(
	documents ports.DocumentStore,
	storage ports.ObjectStorage,
	queue ports.MessageQueue,
) *IngestDocumentUseCase {
	return &IngestDocumentUseCase{
		documents: documents,
		storage:   storage,
		queue:     queue,
	}
}

func (uc *IngestDocumentUseCase) Upload(
	ctx context.Context,
	collectionID, filename, mimeType string,
	size int64,
	body io.Reader,
) (*domain.Document, error) {
	if strings.TrimSpace(collectionID) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload document", fmt.Errorf("collection_id is required"))
	}

	id := uuid.NewString()
	storageKey := fmt.Sprintf("%s_%s", id, sanitizeFilename(filename))
	now := time.Now().UTC()

	if err := uc.storage.Save(ctx, storageKey, body); err != nil {
		return nil, fmt.Errorf("save to object storage: %w", err)
	}

	doc := &domain.Document{
		ID:           id,
		CollectionID: collectionID,
		Filename:     filename,
		MimeType:     mimeType,
		StoragePath:  storageKey,
		SizeBytes:    size,
		Status:       domain.StatusPending,
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := uc.documents.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("create document metadata: %w", err)
	}

	if err := uc.queue.PublishDocumentProcess(ctx, doc.ID); err != nil {
		return nil, fmt.Errorf("publish processing job: %w", err)
	}
	return doc, nil
}

// Reprocess advances the version before any extraction starts, so fragments
// written by the new attempt are attributable to it.
func (uc *IngestDocumentUseCase) Reprocess(ctx context.Context, documentID string) error {
	if _, err := uc.documents.ResetForReprocess(ctx, documentID); err != nil {
		return fmt.Errorf("reset document for reprocess: %w", err)
	}
	if err := uc.queue.PublishDocumentProcess(ctx, documentID); err != nil {
		return fmt.Errorf("publish processing job: %w", err)
	}
	return nil
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" {
		return "document.bin"
	}
	return base
}
