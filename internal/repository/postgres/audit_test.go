package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/cratecrew/boxops/internal/domain"
	"github.com/cratecrew/boxops/internal/service/migration"
)

func newMockDB(t *testing.T) (sqlmock.Sqlmock, *AuditRepo) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return mock, NewAuditRepo(db)
}

func TestAuditGetNotFound(t *testing.T) {
	mock, repo := newMockDB(t)

	mock.ExpectQuery("SELECT (.+) FROM audit_records").
		WithArgs("rec-1", "org-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.Get(context.Background(), "org-1", "rec-1")
	if !errors.Is(err, migration.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestAuditResolveTransaction(t *testing.T) {
	mock, repo := newMockDB(t)
	resolvedAt := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE audit_records").
		WithArgs(5, "ops@cratecrew.io", "confirmed with customer", resolvedAt, "rec-1", "org-1").
		WillReturnRows(sqlmock.NewRows([]string{"subscriber_id"}).AddRow("sub-1"))
	mock.ExpectExec("UPDATE subscribers SET box_number").
		WithArgs(5, "sub-1", "org-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.Resolve(context.Background(), "org-1", "rec-1", 5, "ops@cratecrew.io", "confirmed with customer", resolvedAt)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestAuditResolveRollsBackWhenSubscriberMissing(t *testing.T) {
	mock, repo := newMockDB(t)
	resolvedAt := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE audit_records").
		WithArgs(5, "ops", "", resolvedAt, "rec-1", "org-1").
		WillReturnRows(sqlmock.NewRows([]string{"subscriber_id"}).AddRow("sub-1"))
	mock.ExpectExec("UPDATE subscribers SET box_number").
		WithArgs(5, "sub-1", "org-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.Resolve(context.Background(), "org-1", "rec-1", 5, "ops", "", resolvedAt)
	if err == nil {
		t.Fatal("expected error when subscriber row is missing")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestAuditResolveAlreadyResolved(t *testing.T) {
	mock, repo := newMockDB(t)
	resolvedAt := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE audit_records").
		WithArgs(5, "ops", "", resolvedAt, "rec-1", "org-1").
		WillReturnRows(sqlmock.NewRows([]string{"subscriber_id"}))
	// Guarded update matched nothing; the repo inspects the record's status.
	mock.ExpectQuery("SELECT status FROM audit_records").
		WithArgs("rec-1", "org-1").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("resolved"))
	mock.ExpectRollback()

	err := repo.Resolve(context.Background(), "org-1", "rec-1", 5, "ops", "", resolvedAt)
	if !errors.Is(err, migration.ErrAlreadyResolved) {
		t.Errorf("err = %v, want ErrAlreadyResolved", err)
	}
}

func TestAuditSkipConflicts(t *testing.T) {
	tests := []struct {
		name    string
		status  string
		wantErr error
	}{
		{"already skipped", "skipped", migration.ErrAlreadyResolved},
		{"clean record", "clean", migration.ErrInvalidTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, repo := newMockDB(t)
			resolvedAt := time.Now().UTC()

			mock.ExpectExec("UPDATE audit_records").
				WithArgs("ops", "", resolvedAt, "rec-1", "org-1").
				WillReturnResult(sqlmock.NewResult(0, 0))
			mock.ExpectQuery("SELECT status FROM audit_records").
				WithArgs("rec-1", "org-1").
				WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow(tt.status))

			err := repo.Skip(context.Background(), "org-1", "rec-1", "ops", "", resolvedAt)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestAuditUpsertArguments(t *testing.T) {
	mock, repo := newMockDB(t)

	rec := &domain.AuditRecord{
		ID:                "rec-1",
		OrganizationID:    "org-1",
		SubscriberID:      "sub-1",
		MigrationRunID:    "run-1",
		Status:            domain.AuditFlagged,
		DetectedSequences: []int{1, 2, 4},
		ProposedNextBox:   5,
		FlagReasons:       []string{domain.FlagSkippedBox},
		ConfidenceScore:   0.70,
	}

	mock.ExpectExec("INSERT INTO audit_records").
		WithArgs("rec-1", "org-1", "sub-1", "run-1", "flagged",
			sqlmock.AnyArg(), 5, sqlmock.AnyArg(), 0.70, "").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Upsert(context.Background(), rec); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestRunIncrementProgress(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	repo := NewRunRepo(db)

	mock.ExpectExec("UPDATE migration_runs").
		WithArgs(10, 7, 2, 1, "run-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = repo.IncrementProgress(context.Background(), "run-1", migration.ProgressDelta{
		Processed: 10, Clean: 7, Flagged: 2, Errors: 1,
	})
	if err != nil {
		t.Fatalf("IncrementProgress: %v", err)
	}

	mock.ExpectExec("UPDATE migration_runs").
		WithArgs(1, 0, 0, 1, "run-missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = repo.IncrementProgress(context.Background(), "run-missing", migration.ProgressDelta{Processed: 1, Errors: 1})
	if !errors.Is(err, migration.ErrRunNotFound) {
		t.Errorf("err = %v, want ErrRunNotFound", err)
	}
}

func TestMappingDeleteNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	repo := NewMappingRepo(db)

	mock.ExpectExec("DELETE FROM sku_aliases").
		WithArgs("alias-1", "org-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.DeleteAlias(context.Background(), "org-1", "alias-1"); !errors.Is(err, migration.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
