package ports

import (
	"context"
	"io"

	"github.com/tenantic/assistant-core/internal/core/domain"
)

// DocumentStore persists and reads document state.
type DocumentStore interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	// GetByIDForTenant reads a document only when its collection belongs to
	// the tenant; API reads go through this, the worker keeps the id-only
	// read.
	GetByIDForTenant(ctx context.Context, tenantID, id string) (*domain.Document, error)
	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMessage string) error
	// ResetForReprocess moves a document back to pending, increments its
	// version and clears the error message in a single statement, returning
	// the new version.
	ResetForReprocess(ctx context.Context, id string) (int, error)
	// ListPendingIDs backs the worker's startup re-scan so an enqueue lost
	// before execution is recoverable.
	ListPendingIDs(ctx context.Context) ([]string, error)
	// ListCompletedIDsForAgent resolves the candidate document set: completed
	// documents in collections linked to the agent or globally visible.
	ListCompletedIDsForAgent(ctx context.Context, agentID string) ([]string, error)
}

// FragmentStore persists embedded fragments.
type FragmentStore interface {
	// ReplaceForDocument deletes all fragments of the document, inserts the
	// given set and marks the document completed, all in one transaction, so
	// a concurrent reader never observes the document without fragments.
	ReplaceForDocument(ctx context.Context, doc *domain.Document, fragments []domain.Fragment) error
	DeleteByDocument(ctx context.Context, documentID string) error
	ListByDocuments(ctx context.Context, documentIDs []string) ([]domain.CandidateFragment, error)
}

// FragmentSearcher is the optional accelerated similarity-ordering operation
// over fragment vectors, restricted by a candidate document set and a limit.
type FragmentSearcher interface {
	Search(ctx context.Context, queryVector []float32, documentIDs []string, limit int) ([]domain.Evidence, error)
}

// AgentStore reads agent policy and records spend.
type AgentStore interface {
	GetByID(ctx context.Context, tenantID, agentID string) (*domain.Agent, error)
	// AddCost increments cost_used_today atomically; callers must never
	// read-then-write the counter.
	AddCost(ctx context.Context, agentID string, amount float64) error
}

// DecisionLog appends immutable governance outcome records.
type DecisionLog interface {
	Record(ctx context.Context, entry *domain.DecisionLogEntry) error
}

// ConversationStore persists chat turn ordering per conversation.
type ConversationStore interface {
	EnsureConversation(ctx context.Context, tenantID, agentID, userID, conversationID string) (*domain.Conversation, error)
	AppendMessage(ctx context.Context, message domain.ConversationMessage) error
	ListRecentMessages(ctx context.Context, conversationID string, limit int) ([]domain.ConversationMessage, error)
}

// ObjectStorage stores source documents.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// MessageQueue publishes/consumes document processing jobs.
type MessageQueue interface {
	PublishDocumentProcess(ctx context.Context, documentID string) error
	SubscribeDocumentProcess(ctx context.Context, handler func(context.Context, string) error) error
}

// TextExtractor extracts plain text from a stored document.
type TextExtractor interface {
	Extract(ctx context.Context, doc *domain.Document) (string, error)
}

// Chunker splits text into overlapping fragments.
type Chunker interface {
	Split(text string) []string
}

// Embedder builds fixed-dimension vectors for fragments and query text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// CompletionProvider generates the model answer for a chat turn.
type CompletionProvider interface {
	Complete(ctx context.Context, messages []domain.ChatMessage) (*domain.Completion, error)
}
