package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/tenantic/assistant-core/internal/core/domain"
)

// DecisionLogRepository appends governance outcomes. There are deliberately
// no update or delete operations.
type DecisionLogRepository struct {
	db *sql.DB
}

func NewDecisionLogRepository(db *sql.DB) *DecisionLogRepository {
	return &DecisionLogRepository{db: db}
}

func (r *DecisionLogRepository) Record(ctx context.Context, entry *domain.DecisionLogEntry) error {
	metadata := entry.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("marshal decision metadata: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO decision_log (
	id, tenant_id, user_id, agent_id, action, decision, reason, input_preview, output_preview, metadata, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
`,
		entry.ID, entry.TenantID, entry.UserID, entry.AgentID, entry.Action,
		string(entry.Decision), entry.Reason, entry.InputPreview, entry.OutputPreview, metadataJSON, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert decision log entry: %w", err)
	}
	return nil
}
