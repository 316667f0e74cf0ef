package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/tenantic/assistant-core/internal/core/domain"
)

func newDocumentRepoWithMock(t *testing.T) (*DocumentRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &DocumentRepository{db: db}, mock, func() { _ = db.Close() }
}

func TestGetByIDReturnsDomainNotFound(t *testing.T) {
	repo, mock, done := newDocumentRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT id, collection_id, filename").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	if !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetByIDForTenantJoinsOwningCollection(t *testing.T) {
	repo, mock, done := newDocumentRepoWithMock(t)
	defer done()

	now := time.Now().UTC()
	mock.ExpectQuery(`JOIN collections c ON c\.id = d\.collection_id\s+WHERE d\.id = \$1 AND c\.tenant_id = \$2`).
		WithArgs("doc-1", "tenant-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "collection_id", "filename", "mime_type", "storage_path", "size_bytes",
			"status", "version", "error_message", "created_at", "updated_at",
		}).AddRow(
			"doc-1", "col-1", "handbook.pdf", "application/pdf", "col-1/handbook.pdf", int64(1024),
			string(domain.StatusCompleted), 1, "", now, now,
		))

	doc, err := repo.GetByIDForTenant(context.Background(), "tenant-1", "doc-1")
	if err != nil {
		t.Fatalf("GetByIDForTenant() error = %v", err)
	}
	if doc.ID != "doc-1" || doc.Status != domain.StatusCompleted {
		t.Fatalf("doc = %+v", doc)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetByIDForTenantForeignTenantIsNotFound(t *testing.T) {
	repo, mock, done := newDocumentRepoWithMock(t)
	defer done()

	mock.ExpectQuery("JOIN collections").
		WithArgs("doc-1", "tenant-b").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByIDForTenant(context.Background(), "tenant-b", "doc-1")
	if !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUpdateStatusReturnsDomainNotFoundWhenNoRowsAffected(t *testing.T) {
	repo, mock, done := newDocumentRepoWithMock(t)
	defer done()

	mock.ExpectExec("UPDATE documents").
		WithArgs("missing", string(domain.StatusProcessing), "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatus(context.Background(), "missing", domain.StatusProcessing, "")
	if !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestResetForReprocessReturnsNewVersion(t *testing.T) {
	repo, mock, done := newDocumentRepoWithMock(t)
	defer done()

	mock.ExpectQuery("UPDATE documents").
		WithArgs("doc-1", string(domain.StatusPending), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(3))

	version, err := repo.ResetForReprocess(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("ResetForReprocess() error = %v", err)
	}
	if version != 3 {
		t.Fatalf("version = %d, want 3", version)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestResetForReprocessUnknownDocument(t *testing.T) {
	repo, mock, done := newDocumentRepoWithMock(t)
	defer done()

	mock.ExpectQuery("UPDATE documents").
		WithArgs("missing", string(domain.StatusPending), sqlmock.AnyArg()).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.ResetForReprocess(context.Background(), "missing")
	if !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestListPendingIDs(t *testing.T) {
	repo, mock, done := newDocumentRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT id FROM documents WHERE status").
		WithArgs(string(domain.StatusPending)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("doc-1").AddRow("doc-2"))

	ids, err := repo.ListPendingIDs(context.Background())
	if err != nil {
		t.Fatalf("ListPendingIDs() error = %v", err)
	}
	if len(ids) != 2 || ids[0] != "doc-1" || ids[1] != "doc-2" {
		t.Fatalf("ids = %v", ids)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
