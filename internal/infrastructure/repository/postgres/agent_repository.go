package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/tenantic/assistant-core/internal/core/domain"
)

type AgentRepository struct {
	db *sql.DB
}

func NewAgentRepository(db *sql.DB) *AgentRepository {
	return &AgentRepository{db: db}
}

func (r *AgentRepository) GetByID(ctx context.Context, tenantID, agentID string) (*domain.Agent, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, tenant_id, name, mode, allowed_topics, forbidden_topics, kill_switch,
       cost_limit_daily, cost_used_today, enable_rag, created_at, updated_at
FROM agents
WHERE id = $1 AND tenant_id = $2
`, agentID, tenantID)

	var agent domain.Agent
	var mode string
	var allowedRaw, forbiddenRaw []byte
	err := row.Scan(
		&agent.ID, &agent.TenantID, &agent.Name, &mode, &allowedRaw, &forbiddenRaw, &agent.KillSwitch,
		&agent.CostLimitDaily, &agent.CostUsedToday, &agent.EnableRAG, &agent.CreatedAt, &agent.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "get agent", fmt.Errorf("id=%s", agentID))
		}
		return nil, fmt.Errorf("scan agent: %w", err)
	}
	agent.Mode = domain.AgentMode(mode)

	if err := json.Unmarshal(allowedRaw, &agent.AllowedTopics); err != nil {
		return nil, fmt.Errorf("unmarshal allowed topics: %w", err)
	}
	if err := json.Unmarshal(forbiddenRaw, &agent.ForbiddenTopics); err != nil {
		return nil, fmt.Errorf("unmarshal forbidden topics: %w", err)
	}

	collections, err := r.listCollectionIDs(ctx, agent.ID)
	if err != nil {
		return nil, err
	}
	agent.CollectionIDs = collections
	return &agent, nil
}

// AddCost is a single atomic increment-and-clamp. Authorization reads the
// counter separately, so concurrent turns can race past the limit check; the
// clamp keeps the stored counter from climbing past the daily ceiling (or
// past its current value when it already sits above the ceiling).
func (r *AgentRepository) AddCost(ctx context.Context, agentID string, amount float64) error {
	if amount <= 0 {
		return nil
	}
	res, err := r.db.ExecContext(ctx, `
UPDATE agents
SET cost_used_today = LEAST(cost_used_today + $2, GREATEST(cost_limit_daily, cost_used_today)),
    updated_at = $3
WHERE id = $1
`, agentID, amount, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("add agent cost: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return domain.WrapError(domain.ErrNotFound, "add agent cost", fmt.Errorf("id=%s", agentID))
	}
	return nil
}

func (r *AgentRepository) listCollectionIDs(ctx context.Context, agentID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT collection_id FROM agent_collections WHERE agent_id = $1
`, agentID)
	if err != nil {
		return nil, fmt.Errorf("list agent collections: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan agent collection id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
