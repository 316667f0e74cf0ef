package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/tenantic/assistant-core/internal/core/domain"
)

func newAgentRepoWithMock(t *testing.T) (*AgentRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &AgentRepository{db: db}, mock, func() { _ = db.Close() }
}

func TestAgentGetByIDScopedToTenant(t *testing.T) {
	repo, mock, done := newAgentRepoWithMock(t)
	defer done()

	now := time.Now().UTC()
	mock.ExpectQuery("SELECT id, tenant_id, name, mode").
		WithArgs("agent-1", "tenant-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "tenant_id", "name", "mode", "allowed_topics", "forbidden_topics", "kill_switch",
			"cost_limit_daily", "cost_used_today", "enable_rag", "created_at", "updated_at",
		}).AddRow(
			"agent-1", "tenant-1", "support bot", "INTERNAL", `["billing"]`, `["salary"]`, false,
			10.0, 2.5, true, now, now,
		))
	mock.ExpectQuery("SELECT collection_id FROM agent_collections").
		WithArgs("agent-1").
		WillReturnRows(sqlmock.NewRows([]string{"collection_id"}).AddRow("col-1"))

	agent, err := repo.GetByID(context.Background(), "tenant-1", "agent-1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if agent.Mode != domain.ModeInternal {
		t.Fatalf("mode = %s", agent.Mode)
	}
	if len(agent.AllowedTopics) != 1 || agent.AllowedTopics[0] != "billing" {
		t.Fatalf("allowed topics = %v", agent.AllowedTopics)
	}
	if len(agent.CollectionIDs) != 1 || agent.CollectionIDs[0] != "col-1" {
		t.Fatalf("collections = %v", agent.CollectionIDs)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestAgentGetByIDWrongTenantIsNotFound(t *testing.T) {
	repo, mock, done := newAgentRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT id, tenant_id, name, mode").
		WithArgs("agent-1", "other-tenant").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "other-tenant", "agent-1")
	if !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestAddCostIsBoundedIncrementStatement(t *testing.T) {
	repo, mock, done := newAgentRepoWithMock(t)
	defer done()

	// The increment must clamp against the daily ceiling in the same
	// statement, never read-then-write.
	mock.ExpectExec(`UPDATE agents\s+SET cost_used_today = LEAST\(cost_used_today \+ \$2, GREATEST\(cost_limit_daily, cost_used_today\)\)`).
		WithArgs("agent-1", 0.042, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.AddCost(context.Background(), "agent-1", 0.042); err != nil {
		t.Fatalf("AddCost() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestAddCostZeroAmountIsNoop(t *testing.T) {
	repo, mock, done := newAgentRepoWithMock(t)
	defer done()

	if err := repo.AddCost(context.Background(), "agent-1", 0); err != nil {
		t.Fatalf("AddCost() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestAddCostUnknownAgent(t *testing.T) {
	repo, mock, done := newAgentRepoWithMock(t)
	defer done()

	mock.ExpectExec("UPDATE agents").
		WithArgs("missing", 0.01, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.AddCost(context.Background(), "missing", 0.01)
	if !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
