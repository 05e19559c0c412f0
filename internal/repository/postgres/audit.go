package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/cratecrew/boxops/internal/domain"
	"github.com/cratecrew/boxops/internal/service/migration"
)

// AuditRepo implements migration.AuditRepository against PostgreSQL.
type AuditRepo struct{ db *sql.DB }

// NewAuditRepo creates a Postgres-backed audit record repository.
func NewAuditRepo(db *sql.DB) *AuditRepo { return &AuditRepo{db: db} }

func (r *AuditRepo) Get(ctx context.Context, orgID, id string) (*domain.AuditRecord, error) {
	rec := &domain.AuditRecord{}
	var seqs pq.Int64Array
	err := r.db.QueryRowContext(ctx, `
		SELECT id, organization_id, subscriber_id, migration_run_id, status,
		       detected_sequences, proposed_next_box, resolved_next_box,
		       flag_reasons, confidence_score, COALESCE(error_message,''),
		       resolution_note, resolved_by, resolved_at, created_at, updated_at
		FROM audit_records
		WHERE id = $1 AND organization_id = $2
	`, id, orgID).Scan(
		&rec.ID, &rec.OrganizationID, &rec.SubscriberID, &rec.MigrationRunID, &rec.Status,
		&seqs, &rec.ProposedNextBox, &rec.ResolvedNextBox,
		pq.Array(&rec.FlagReasons), &rec.ConfidenceScore, &rec.ErrorMessage,
		&rec.ResolutionNote, &rec.ResolvedBy, &rec.ResolvedAt, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, migration.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get audit record: %w", err)
	}
	rec.DetectedSequences = toIntSlice(seqs)
	return rec, nil
}

func (r *AuditRepo) ListByStatus(ctx context.Context, orgID, runID string, status domain.AuditStatus, limit, offset int) ([]domain.AuditRecord, int, error) {
	if limit <= 0 {
		limit = 50
	}

	var total int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM audit_records
		WHERE organization_id = $1 AND migration_run_id = $2 AND status = $3
	`, orgID, runID, status).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count audit records: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, subscriber_id, status, detected_sequences, proposed_next_box,
		       resolved_next_box, flag_reasons, confidence_score,
		       COALESCE(error_message,''), created_at
		FROM audit_records
		WHERE organization_id = $1 AND migration_run_id = $2 AND status = $3
		ORDER BY created_at ASC LIMIT $4 OFFSET $5
	`, orgID, runID, status, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list audit records: %w", err)
	}
	defer rows.Close()

	var out []domain.AuditRecord
	for rows.Next() {
		var rec domain.AuditRecord
		var seqs pq.Int64Array
		if err := rows.Scan(
			&rec.ID, &rec.SubscriberID, &rec.Status, &seqs, &rec.ProposedNextBox,
			&rec.ResolvedNextBox, pq.Array(&rec.FlagReasons), &rec.ConfidenceScore,
			&rec.ErrorMessage, &rec.CreatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("scan audit record: %w", err)
		}
		rec.OrganizationID = orgID
		rec.MigrationRunID = runID
		rec.DetectedSequences = toIntSlice(seqs)
		out = append(out, rec)
	}
	return out, total, nil
}

func (r *AuditRepo) ListByRun(ctx context.Context, orgID, runID string) ([]domain.AuditRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, subscriber_id, status, detected_sequences, proposed_next_box,
		       resolved_next_box, flag_reasons, confidence_score,
		       COALESCE(error_message,''), resolved_by, resolution_note, created_at
		FROM audit_records
		WHERE organization_id = $1 AND migration_run_id = $2
		ORDER BY created_at ASC
	`, orgID, runID)
	if err != nil {
		return nil, fmt.Errorf("list run records: %w", err)
	}
	defer rows.Close()

	var out []domain.AuditRecord
	for rows.Next() {
		var rec domain.AuditRecord
		var seqs pq.Int64Array
		if err := rows.Scan(
			&rec.ID, &rec.SubscriberID, &rec.Status, &seqs, &rec.ProposedNextBox,
			&rec.ResolvedNextBox, pq.Array(&rec.FlagReasons), &rec.ConfidenceScore,
			&rec.ErrorMessage, &rec.ResolvedBy, &rec.ResolutionNote, &rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan run record: %w", err)
		}
		rec.OrganizationID = orgID
		rec.MigrationRunID = runID
		rec.DetectedSequences = toIntSlice(seqs)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *AuditRepo) Upsert(ctx context.Context, rec *domain.AuditRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO audit_records
			(id, organization_id, subscriber_id, migration_run_id, status,
			 detected_sequences, proposed_next_box, flag_reasons,
			 confidence_score, error_message, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
		ON CONFLICT (subscriber_id, migration_run_id) DO UPDATE SET
			status = EXCLUDED.status,
			detected_sequences = EXCLUDED.detected_sequences,
			proposed_next_box = EXCLUDED.proposed_next_box,
			flag_reasons = EXCLUDED.flag_reasons,
			confidence_score = EXCLUDED.confidence_score,
			error_message = EXCLUDED.error_message,
			updated_at = NOW()
		WHERE audit_records.status = 'pending'
	`, rec.ID, rec.OrganizationID, rec.SubscriberID, rec.MigrationRunID, rec.Status,
		toInt64Array(rec.DetectedSequences), rec.ProposedNextBox, pq.Array(rec.FlagReasons),
		rec.ConfidenceScore, rec.ErrorMessage)
	if err != nil {
		return fmt.Errorf("upsert audit record: %w", err)
	}
	return nil
}

// Resolve performs the flagged → resolved transition and the canonical
// box-number propagation as one transaction. A partial write can never leave
// the audit record and the subscriber row inconsistent.
func (r *AuditRepo) Resolve(ctx context.Context, orgID, id string, nextBox int, resolvedBy, note string, resolvedAt time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin resolve tx: %w", err)
	}
	defer tx.Rollback()

	var subscriberID string
	err = tx.QueryRowContext(ctx, `
		UPDATE audit_records
		SET status = 'resolved', resolved_next_box = $1, resolved_by = $2,
		    resolution_note = $3, resolved_at = $4, updated_at = NOW()
		WHERE id = $5 AND organization_id = $6 AND status = 'flagged'
		RETURNING subscriber_id
	`, nextBox, resolvedBy, note, resolvedAt, id, orgID).Scan(&subscriberID)
	if err == sql.ErrNoRows {
		return resolveConflict(ctx, r.db, orgID, id)
	}
	if err != nil {
		return fmt.Errorf("resolve audit record: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE subscribers SET box_number = $1, updated_at = NOW()
		WHERE id = $2 AND organization_id = $3
	`, nextBox, subscriberID, orgID)
	if err != nil {
		return fmt.Errorf("propagate box number: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("propagate box number: subscriber %s not found", subscriberID)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit resolve tx: %w", err)
	}
	return nil
}

// Skip performs the flagged → skipped transition. No subscriber update.
func (r *AuditRepo) Skip(ctx context.Context, orgID, id string, resolvedBy, note string, resolvedAt time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE audit_records
		SET status = 'skipped', resolved_by = $1, resolution_note = $2,
		    resolved_at = $3, updated_at = NOW()
		WHERE id = $4 AND organization_id = $5 AND status = 'flagged'
	`, resolvedBy, note, resolvedAt, id, orgID)
	if err != nil {
		return fmt.Errorf("skip audit record: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return resolveConflict(ctx, r.db, orgID, id)
	}
	return nil
}

// resolveConflict distinguishes "record missing" from "record already
// terminal" after a guarded update matched zero rows.
func resolveConflict(ctx context.Context, db *sql.DB, orgID, id string) error {
	var status string
	err := db.QueryRowContext(ctx, `
		SELECT status FROM audit_records WHERE id = $1 AND organization_id = $2
	`, id, orgID).Scan(&status)
	if err == sql.ErrNoRows {
		return migration.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("inspect audit record: %w", err)
	}
	if status == string(domain.AuditResolved) || status == string(domain.AuditSkipped) {
		return migration.ErrAlreadyResolved
	}
	return fmt.Errorf("%w: record is %s", migration.ErrInvalidTransition, status)
}

func toInt64Array(in []int) pq.Int64Array {
	out := make(pq.Int64Array, len(in))
	for i, v := range in {
		out[i] = int64(v)
	}
	return out
}

func toIntSlice(in pq.Int64Array) []int {
	if len(in) == 0 {
		return nil
	}
	out := make([]int, len(in))
	for i, v := range in {
		out[i] = int(v)
	}
	return out
}
