package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tenantic/assistant-core/internal/core/domain"
)

type ConversationRepository struct {
	db *sql.DB
}

func NewConversationRepository(db *sql.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

// EnsureConversation creates the conversation if it does not exist and
// returns it scoped to the tenant. A conversation id owned by another tenant
// is indistinguishable from a missing one.
func (r *ConversationRepository) EnsureConversation(ctx context.Context, tenantID, agentID, userID, conversationID string) (*domain.Conversation, error) {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
INSERT INTO conversations (id, tenant_id, agent_id, user_id, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $5)
ON CONFLICT (id) DO NOTHING
`, conversationID, tenantID, agentID, userID, now)
	if err != nil {
		return nil, fmt.Errorf("ensure conversation insert: %w", err)
	}

	row := r.db.QueryRowContext(ctx, `
SELECT id, tenant_id, agent_id, user_id, created_at, updated_at
FROM conversations
WHERE id = $1 AND tenant_id = $2
`, conversationID, tenantID)

	var conv domain.Conversation
	if err := row.Scan(&conv.ID, &conv.TenantID, &conv.AgentID, &conv.UserID, &conv.CreatedAt, &conv.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "ensure conversation", fmt.Errorf("id=%s", conversationID))
		}
		return nil, fmt.Errorf("ensure conversation select: %w", err)
	}
	return &conv, nil
}

func (r *ConversationRepository) AppendMessage(ctx context.Context, message domain.ConversationMessage) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO conversation_messages (id, conversation_id, role, content, created_at)
VALUES ($1, $2, $3, $4, $5)
`, message.ID, message.ConversationID, message.Role, message.Content, message.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert conversation message: %w", err)
	}
	return nil
}

// ListRecentMessages returns the newest messages in chronological order.
func (r *ConversationRepository) ListRecentMessages(ctx context.Context, conversationID string, limit int) ([]domain.ConversationMessage, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, conversation_id, role, content, created_at FROM (
	SELECT id, conversation_id, role, content, created_at
	FROM conversation_messages
	WHERE conversation_id = $1
	ORDER BY created_at DESC
	LIMIT $2
) recent
ORDER BY created_at ASC
`, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent messages: %w", err)
	}
	defer rows.Close()

	var out []domain.ConversationMessage
	for rows.Next() {
		var msg domain.ConversationMessage
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.Role, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan conversation message: %w", err)
		}
		out = append(out, msg)
	}
	return out, rows.Err()
}
