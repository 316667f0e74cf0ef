package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/tenantic/assistant-core/internal/core/domain"
	"github.com/tenantic/assistant-core/internal/core/ports"
)

// ProcessDocumentUseCase runs the ingestion pipeline for one document:
// extract, chunk, embed each fragment, replace the fragment set. A single
// document is processed strictly sequentially; concurrency exists only across
// documents.
type ProcessDocumentUseCase struct {
	documents ports.DocumentStore
	fragments ports.FragmentStore
	extractor ports.TextExtractor
	chunker   ports.Chunker
	embedder  ports.Embedder
	logger    *slog.Logger
}

func NewProcessDocumentUseCase(
	documents ports.DocumentStore,
	fragments ports.FragmentStore,
	extractor ports.TextExtractor,
	chunker ports.Chunker,
	embedder ports.Embedder,
	logger *slog.Logger,
) *ProcessDocumentUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProcessDocumentUseCase{
		documents: documents,
		fragments: fragments,
		extractor: extractor,
		chunker:   chunker,
		embedder:  embedder,
		logger:    logger,
	}
}

func (uc *ProcessDocumentUseCase) ProcessByID(ctx context.Context, documentID string) error {
	if err := uc.documents.UpdateStatus(ctx, documentID, domain.StatusProcessing, ""); err != nil {
		return fmt.Errorf("set status=processing: %w", err)
	}

	if err := uc.runPipeline(ctx, documentID); err != nil {
		if failErr := uc.markFailed(ctx, documentID, err); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}
	return nil
}

func (uc *ProcessDocumentUseCase) runPipeline(ctx context.Context, documentID string) error {
	doc, err := uc.documents.GetByID(ctx, documentID)
	if err != nil {
		return fmt.Errorf("fetch document by id: %w", err)
	}

	text, err := uc.extractor.Extract(ctx, doc)
	if err != nil {
		return domain.WrapError(domain.ErrExtraction, "extract text", err)
	}
	if text == "" {
		return domain.WrapError(domain.ErrExtraction, "extract text", errors.New("empty extracted text"))
	}

	chunks := uc.chunker.Split(text)
	if len(chunks) == 0 {
		return domain.WrapError(domain.ErrInvalidInput, "chunk document", errors.New("chunking produced zero chunks"))
	}

	fragments, err := uc.embedChunks(ctx, doc, chunks)
	if err != nil {
		return err
	}

	if err := uc.fragments.ReplaceForDocument(ctx, doc, fragments); err != nil {
		return fmt.Errorf("store fragments: %w", err)
	}
	return nil
}

// embedChunks embeds fragments one at a time. A single fragment's embedding
// failure is skipped; only losing every fragment fails the document.
func (uc *ProcessDocumentUseCase) embedChunks(ctx context.Context, doc *domain.Document, chunks []string) ([]domain.Fragment, error) {
	fragments := make([]domain.Fragment, 0, len(chunks))
	var lastErr error

	for i, chunk := range chunks {
		vector, err := uc.embedder.Embed(ctx, chunk)
		if err != nil {
			lastErr = err
			uc.logger.Warn("fragment_embed_skipped",
				"document_id", doc.ID,
				"version", doc.Version,
				"fragment_index", i,
				"error", err,
			)
			continue
		}
		fragments = append(fragments, domain.Fragment{
			ID:         uuid.NewString(),
			DocumentID: doc.ID,
			Version:    doc.Version,
			Index:      i,
			Text:       chunk,
			Vector:     vector,
		})
	}

	if len(fragments) == 0 {
		return nil, domain.WrapError(domain.ErrEmbedding, "embed fragments", fmt.Errorf("all %d fragments failed: %w", len(chunks), lastErr))
	}
	return fragments, nil
}

// markFailed deletes partially written fragments so the document is eligible
// for a fresh attempt, then records the failure.
func (uc *ProcessDocumentUseCase) markFailed(ctx context.Context, documentID string, processErr error) error {
	if err := uc.fragments.DeleteByDocument(ctx, documentID); err != nil {
		uc.logger.Warn("fragment_cleanup_failed", "document_id", documentID, "error", err)
	}
	return uc.documents.UpdateStatus(ctx, documentID, domain.StatusFailed, processErr.Error())
}
