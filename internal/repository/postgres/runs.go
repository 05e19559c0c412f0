package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/cratecrew/boxops/internal/domain"
	"github.com/cratecrew/boxops/internal/service/migration"
)

// RunRepo implements migration.RunRepository against PostgreSQL.
type RunRepo struct{ db *sql.DB }

// NewRunRepo creates a Postgres-backed migration run repository.
func NewRunRepo(db *sql.DB) *RunRepo { return &RunRepo{db: db} }

func (r *RunRepo) Create(ctx context.Context, run *domain.MigrationRun) (string, error) {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO migration_runs
			(id, organization_id, status, total_subscribers, started_at)
		VALUES ($1, $2, $3, $4, $5)
	`, run.ID, run.OrganizationID, run.Status, run.TotalSubscribers, run.StartedAt)
	if err != nil {
		return "", fmt.Errorf("create run: %w", err)
	}
	return run.ID, nil
}

func (r *RunRepo) Get(ctx context.Context, orgID, id string) (*domain.MigrationRun, error) {
	run := &domain.MigrationRun{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, organization_id, status, total_subscribers,
		       processed_subscribers, clean_count, flagged_count, error_count,
		       started_at, completed_at
		FROM migration_runs
		WHERE id = $1 AND organization_id = $2
	`, id, orgID).Scan(
		&run.ID, &run.OrganizationID, &run.Status, &run.TotalSubscribers,
		&run.ProcessedSubscribers, &run.CleanCount, &run.FlaggedCount, &run.ErrorCount,
		&run.StartedAt, &run.CompletedAt,
	)
	if err == sql.ErrNoRows {
		return nil, migration.ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// IncrementProgress adds the deltas with SQL-level increments. Concurrent
// batches for the same run each add their own slice; nothing ever reads a
// counter back to write it.
func (r *RunRepo) IncrementProgress(ctx context.Context, runID string, delta migration.ProgressDelta) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE migration_runs
		SET processed_subscribers = processed_subscribers + $1,
		    clean_count = clean_count + $2,
		    flagged_count = flagged_count + $3,
		    error_count = error_count + $4
		WHERE id = $5
	`, delta.Processed, delta.Clean, delta.Flagged, delta.Errors, runID)
	if err != nil {
		return fmt.Errorf("increment run progress: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return migration.ErrRunNotFound
	}
	return nil
}

func (r *RunRepo) SetStatus(ctx context.Context, orgID, id string, status domain.RunStatus) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE migration_runs
		SET status = $1,
		    completed_at = CASE WHEN $1 IN ('completed','failed') THEN NOW() ELSE completed_at END
		WHERE id = $2 AND organization_id = $3
	`, status, id, orgID)
	if err != nil {
		return fmt.Errorf("set run status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return migration.ErrRunNotFound
	}
	return nil
}
