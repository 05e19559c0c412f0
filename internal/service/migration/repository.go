package migration

import (
	"context"
	"time"

	"github.com/cratecrew/boxops/internal/domain"
)

// AuditRepository defines the data access contract for audit records.
// Implementations must be safe for concurrent use.
type AuditRepository interface {
	// Get returns a single audit record. Returns ErrNotFound if it doesn't exist.
	Get(ctx context.Context, orgID, id string) (*domain.AuditRecord, error)

	// ListByStatus returns records for a run filtered by status, ordered by
	// created_at ascending, plus the total matching count.
	ListByStatus(ctx context.Context, orgID, runID string, status domain.AuditStatus, limit, offset int) ([]domain.AuditRecord, int, error)

	// ListByRun returns every record for a run, ordered by created_at
	// ascending. Used by the report exporter.
	ListByRun(ctx context.Context, orgID, runID string) ([]domain.AuditRecord, error)

	// Upsert inserts or replaces the record keyed by (subscriber_id, run_id).
	Upsert(ctx context.Context, rec *domain.AuditRecord) error

	// Resolve transitions a flagged record to resolved and propagates nextBox
	// to the subscriber's canonical box-number field in the same transaction.
	// Returns ErrAlreadyResolved if the record is not in flagged state.
	Resolve(ctx context.Context, orgID, id string, nextBox int, resolvedBy, note string, resolvedAt time.Time) error

	// Skip transitions a flagged record to skipped. No propagation happens.
	// Returns ErrAlreadyResolved if the record is not in flagged state.
	Skip(ctx context.Context, orgID, id string, resolvedBy, note string, resolvedAt time.Time) error
}

// RunRepository defines the data access contract for migration runs.
type RunRepository interface {
	// Create inserts a new run and returns its ID.
	Create(ctx context.Context, run *domain.MigrationRun) (string, error)

	// Get returns a single run. Returns ErrRunNotFound if it doesn't exist.
	Get(ctx context.Context, orgID, id string) (*domain.MigrationRun, error)

	// IncrementProgress atomically adds the deltas to the run's counters.
	// Increment-only: implementations must use SQL-level increments, never
	// read-modify-write, so concurrent batches stay correct.
	IncrementProgress(ctx context.Context, runID string, delta ProgressDelta) error

	// SetStatus transitions the run's status, stamping completed_at for
	// terminal states.
	SetStatus(ctx context.Context, orgID, id string, status domain.RunStatus) error
}

// ProgressDelta holds increment-only counter deltas for a run.
type ProgressDelta struct {
	Processed int
	Clean     int
	Flagged   int
	Errors    int
}

// MappingRepository provides SKU mapping rules. Read-only from the engine's
// perspective; writes happen through admin endpoints.
type MappingRepository interface {
	GetAliases(ctx context.Context, orgID string) ([]domain.SkuAlias, error)
	GetPatterns(ctx context.Context, orgID string) ([]domain.ProductPattern, error)
	CreateAlias(ctx context.Context, a *domain.SkuAlias) (string, error)
	CreatePattern(ctx context.Context, p *domain.ProductPattern) (string, error)
	DeleteAlias(ctx context.Context, orgID, id string) error
	DeletePattern(ctx context.Context, orgID, id string) error
}

// SubscriberRepository provides subscriber lookups for the batch runner. The
// canonical box number is only ever written inside AuditRepository.Resolve.
type SubscriberRepository interface {
	Get(ctx context.Context, orgID, id string) (*domain.Subscriber, error)
}

// UnmappedSink records purchases whose SKU could not be resolved. Append-only.
type UnmappedSink interface {
	Record(ctx context.Context, item domain.UnmappedItem) error
}
