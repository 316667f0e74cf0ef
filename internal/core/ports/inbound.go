package ports

import (
	"context"
	"io"

	"github.com/tenantic/assistant-core/internal/core/domain"
)

// DocumentIngestor is the inbound contract for upload and re-process
// orchestration.
type DocumentIngestor interface {
	Upload(ctx context.Context, collectionID, filename, mimeType string, size int64, body io.Reader) (*domain.Document, error)
	Reprocess(ctx context.Context, documentID string) error
}

// DocumentProcessor is the inbound contract for asynchronous ingestion. Safe
// to invoke again after a failure.
type DocumentProcessor interface {
	ProcessByID(ctx context.Context, documentID string) error
}

// ContextRetriever exposes retrieval independently of chat.
type ContextRetriever interface {
	Retrieve(ctx context.Context, query string, agent *domain.Agent, topK int) (*domain.RetrievalResult, error)
}

// ChatService runs one governed chat turn.
type ChatService interface {
	Chat(ctx context.Context, req domain.ChatRequest) (*domain.ChatResult, error)
}
