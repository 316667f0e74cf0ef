package domain

import "time"

type Decision string

const (
	DecisionAllowed  Decision = "allowed"
	DecisionBlocked  Decision = "blocked"
	DecisionModified Decision = "modified"
)

// Closed set of metadata keys recognized on decision log entries. Keeping the
// key space enumerated keeps audit records machine-checkable.
const (
	MetaTokensUsed    = "tokens_used"
	MetaEvidenceCount = "evidence_count"
	MetaTopScore      = "top_score"
	MetaLatencyMS     = "latency_ms"
	MetaMatchedTopic  = "matched_topic"
	MetaAgentMode     = "agent_mode"
	MetaCostRecorded  = "cost_recorded"
)

// DecisionLogEntry is the immutable audit record for one governance outcome.
// Entries are appended and never updated or deleted.
type DecisionLogEntry struct {
	ID            string            `json:"id"`
	TenantID      string            `json:"tenant_id"`
	UserID        string            `json:"user_id"`
	AgentID       string            `json:"agent_id"`
	Action        string            `json:"action"`
	Decision      Decision          `json:"decision"`
	Reason        string            `json:"reason"`
	InputPreview  string            `json:"input_preview"`
	OutputPreview string            `json:"output_preview,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}

const previewLimit = 200

// Preview truncates free text for storage in a decision record.
func Preview(s string) string {
	runes := []rune(s)
	if len(runes) <= previewLimit {
		return s
	}
	return string(runes[:previewLimit])
}
