package domain

import "time"

type DocumentStatus string

const (
	StatusPending    DocumentStatus = "pending"
	StatusProcessing DocumentStatus = "processing"
	StatusCompleted  DocumentStatus = "completed"
	StatusFailed     DocumentStatus = "failed"
)

// Document is an uploaded artifact owned by a collection. Version starts at 1
// and is incremented before every re-process attempt, so fragments written
// under a failed attempt remain attributable to the attempt that wrote them.
type Document struct {
	ID           string         `json:"id"`
	CollectionID string         `json:"collection_id"`
	Filename     string         `json:"filename"`
	MimeType     string         `json:"mime_type"`
	StoragePath  string         `json:"storage_path"`
	SizeBytes    int64          `json:"size_bytes"`
	Status       DocumentStatus `json:"status"`
	Version      int            `json:"version"`
	Error        string         `json:"error,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// Collection groups documents. A globally visible collection is a candidate
// source for every agent regardless of explicit links.
type Collection struct {
	ID            string    `json:"id"`
	TenantID      string    `json:"tenant_id"`
	Name          string    `json:"name"`
	GlobalVisible bool      `json:"global_visible"`
	CreatedAt     time.Time `json:"created_at"`
}

// Fragment is one embedded slice of a document's extracted text. Fragments
// are append-only per document version and replaced in bulk on re-process.
type Fragment struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	Version    int       `json:"version"`
	Index      int       `json:"index"`
	Text       string    `json:"text"`
	Vector     []float32 `json:"-"`
}

// CandidateFragment is a fragment joined with its parent document's identity,
// as read back for query-time scoring.
type CandidateFragment struct {
	DocumentID   string
	DocumentName string
	Version      int
	Index        int
	Text         string
	Vector       []float32
}
