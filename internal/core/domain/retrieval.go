package domain

// Evidence is a query-time projection of a fragment with provenance and a
// similarity score. It is never persisted.
type Evidence struct {
	DocumentID    string  `json:"document_id"`
	DocumentName  string  `json:"document_name"`
	Version       int     `json:"version"`
	FragmentIndex int     `json:"fragment_index"`
	Text          string  `json:"text"`
	Score         float64 `json:"score"`
}

// RetrievalResult carries the assembled model context and the parallel
// evidence list reported to the caller.
type RetrievalResult struct {
	Context  string     `json:"context"`
	Evidence []Evidence `json:"evidence"`
}

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Completion struct {
	Text       string `json:"text"`
	TokensUsed int    `json:"tokens_used"`
}

type ChatRequest struct {
	TenantID       string `json:"tenant_id"`
	UserID         string `json:"user_id"`
	AgentID        string `json:"agent_id"`
	ConversationID string `json:"conversation_id,omitempty"`
	Message        string `json:"message"`
}

// ChatResult is the outcome of one chat turn. A governance block is a
// successful result with Blocked set, not an error.
type ChatResult struct {
	Response       string     `json:"response"`
	ConversationID string     `json:"conversation_id"`
	TokensUsed     int        `json:"tokens_used"`
	Cost           float64    `json:"cost"`
	LatencyMS      int64      `json:"latency_ms"`
	Evidence       []Evidence `json:"evidence"`
	Blocked        bool       `json:"blocked"`
	BlockReason    string     `json:"block_reason,omitempty"`
}
