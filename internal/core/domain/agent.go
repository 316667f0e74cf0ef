package domain

import "time"

type AgentMode string

const (
	ModeInternal AgentMode = "INTERNAL"
	ModeHybrid   AgentMode = "HYBRID"
	ModeFree     AgentMode = "FREE"
)

// Agent governs chat behavior for one tenant. Topic lists are ordered
// case-insensitive substrings; CostUsedToday is only ever incremented here,
// the daily reset is owned by an external scheduler.
type Agent struct {
	ID              string    `json:"id"`
	TenantID        string    `json:"tenant_id"`
	Name            string    `json:"name"`
	Mode            AgentMode `json:"mode"`
	AllowedTopics   []string  `json:"allowed_topics"`
	ForbiddenTopics []string  `json:"forbidden_topics"`
	KillSwitch      bool      `json:"kill_switch"`
	CostLimitDaily  float64   `json:"cost_limit_daily"`
	CostUsedToday   float64   `json:"cost_used_today"`
	EnableRAG       bool      `json:"enable_rag"`
	CollectionIDs   []string  `json:"collection_ids"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}
