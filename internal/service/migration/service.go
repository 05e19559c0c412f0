package migration

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/cratecrew/boxops/internal/audit"
	"github.com/cratecrew/boxops/internal/domain"
)

// Human-supplied resolutions must land in this range; anything else is a fat
// finger, not a real box number.
const (
	MinResolutionBox = 1
	MaxResolutionBox = 100
)

// Service implements the audit resolution workflow and run lifecycle. All
// public methods are safe for concurrent use if the underlying repositories
// are concurrency-safe.
type Service struct {
	audits   AuditRepository
	runs     RunRepository
	mappings MappingRepository
}

// NewService creates a migration service backed by the given repositories.
func NewService(audits AuditRepository, runs RunRepository, mappings MappingRepository) *Service {
	return &Service{audits: audits, runs: runs, mappings: mappings}
}

// BuildResolver loads the org's mapping rules and compiles them into an
// immutable resolver for one run. Returns ErrNoMappingsConfigured when the
// org has zero SKU aliases: starting a run then would classify every
// subscriber as "no_mapped_purchases", which helps nobody.
func (s *Service) BuildResolver(ctx context.Context, orgID string) (*audit.Resolver, error) {
	aliases, err := s.mappings.GetAliases(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("load aliases: %w", err)
	}
	if len(aliases) == 0 {
		return nil, ErrNoMappingsConfigured
	}
	patterns, err := s.mappings.GetPatterns(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("load patterns: %w", err)
	}
	return audit.NewResolver(aliases, patterns)
}

// StartRun validates that the org is auditable and creates a running
// MigrationRun covering totalSubscribers.
func (s *Service) StartRun(ctx context.Context, orgID string, totalSubscribers int) (*domain.MigrationRun, error) {
	if totalSubscribers <= 0 {
		return nil, fmt.Errorf("total subscribers must be positive")
	}
	if _, err := s.BuildResolver(ctx, orgID); err != nil {
		return nil, err
	}

	run := &domain.MigrationRun{
		ID:               uuid.New().String(),
		OrganizationID:   orgID,
		Status:           domain.RunRunning,
		TotalSubscribers: totalSubscribers,
		StartedAt:        time.Now().UTC(),
	}
	id, err := s.runs.Create(ctx, run)
	if err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}
	run.ID = id
	return run, nil
}

// RecordVerdict persists the analyzer's verdict for one subscriber as an
// audit record. The pending → clean/flagged transition happens synchronously
// here; the record is born already classified.
func (s *Service) RecordVerdict(ctx context.Context, orgID, runID, subscriberID string, res audit.Result) (*domain.AuditRecord, error) {
	now := time.Now().UTC()
	rec := &domain.AuditRecord{
		ID:                uuid.New().String(),
		OrganizationID:    orgID,
		SubscriberID:      subscriberID,
		MigrationRunID:    runID,
		Status:            res.Status,
		DetectedSequences: res.DetectedSequences,
		ProposedNextBox:   res.ProposedNextBox,
		FlagReasons:       res.FlagReasons,
		ConfidenceScore:   res.ConfidenceScore,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.audits.Upsert(ctx, rec); err != nil {
		return nil, fmt.Errorf("persist verdict: %w", err)
	}
	return rec, nil
}

// RecordError persists a terminal error record for one subscriber. Upstream
// fetch failures land here; they never abort the batch.
func (s *Service) RecordError(ctx context.Context, orgID, runID, subscriberID, message string) error {
	now := time.Now().UTC()
	rec := &domain.AuditRecord{
		ID:             uuid.New().String(),
		OrganizationID: orgID,
		SubscriberID:   subscriberID,
		MigrationRunID: runID,
		Status:         domain.AuditError,
		ErrorMessage:   message,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	return s.audits.Upsert(ctx, rec)
}

// ResolveInput carries the human side of a flagged → resolved transition.
type ResolveInput struct {
	NextBox    int    `json:"next_box"`
	ResolvedBy string `json:"resolved_by"`
	Note       string `json:"note"`
}

// Resolve transitions a flagged record to resolved and propagates the chosen
// box number to the subscriber's canonical field. The audit update and the
// propagation are one transaction in the repository: either both land or
// neither does.
func (s *Service) Resolve(ctx context.Context, orgID, recordID string, in ResolveInput) error {
	if in.NextBox < MinResolutionBox || in.NextBox > MaxResolutionBox {
		return fmt.Errorf("%w: next box %d outside [%d,%d]", ErrInvalidResolution, in.NextBox, MinResolutionBox, MaxResolutionBox)
	}
	if err := s.checkResolvable(ctx, orgID, recordID); err != nil {
		return err
	}
	if err := s.audits.Resolve(ctx, orgID, recordID, in.NextBox, in.ResolvedBy, in.Note, time.Now().UTC()); err != nil {
		return err
	}
	log.Printf("[migration.Service] record %s resolved to box %d by %s", recordID, in.NextBox, in.ResolvedBy)
	return nil
}

// SkipInput carries the human side of a flagged → skipped transition.
type SkipInput struct {
	ResolvedBy string `json:"resolved_by"`
	Note       string `json:"note"`
}

// Skip excludes a flagged subscriber from the migration. Nothing propagates
// to the subscriber record.
func (s *Service) Skip(ctx context.Context, orgID, recordID string, in SkipInput) error {
	if err := s.checkResolvable(ctx, orgID, recordID); err != nil {
		return err
	}
	if err := s.audits.Skip(ctx, orgID, recordID, in.ResolvedBy, in.Note, time.Now().UTC()); err != nil {
		return err
	}
	log.Printf("[migration.Service] record %s skipped by %s", recordID, in.ResolvedBy)
	return nil
}

// checkResolvable enforces the state machine up front so callers get a
// precise error instead of a generic conflict. The repository re-checks the
// state inside its transaction, so this is a courtesy, not the guard.
func (s *Service) checkResolvable(ctx context.Context, orgID, recordID string) error {
	rec, err := s.audits.Get(ctx, orgID, recordID)
	if err != nil {
		return err
	}
	switch rec.Status {
	case domain.AuditFlagged:
		return nil
	case domain.AuditResolved, domain.AuditSkipped:
		return ErrAlreadyResolved
	default:
		return fmt.Errorf("%w: cannot resolve record in %s state", ErrInvalidTransition, rec.Status)
	}
}

// Get returns a single audit record.
func (s *Service) Get(ctx context.Context, orgID, id string) (*domain.AuditRecord, error) {
	return s.audits.Get(ctx, orgID, id)
}

// ListByStatus returns audit records for a run filtered by status.
func (s *Service) ListByStatus(ctx context.Context, orgID, runID string, status domain.AuditStatus, limit, offset int) ([]domain.AuditRecord, int, error) {
	return s.audits.ListByStatus(ctx, orgID, runID, status, limit, offset)
}

// ListByRun returns every audit record for a run, for report export.
func (s *Service) ListByRun(ctx context.Context, orgID, runID string) ([]domain.AuditRecord, error) {
	return s.audits.ListByRun(ctx, orgID, runID)
}

// GetRun returns a single migration run.
func (s *Service) GetRun(ctx context.Context, orgID, id string) (*domain.MigrationRun, error) {
	return s.runs.Get(ctx, orgID, id)
}

// RecordProgress atomically adds batch counters to the run.
func (s *Service) RecordProgress(ctx context.Context, runID string, delta ProgressDelta) error {
	return s.runs.IncrementProgress(ctx, runID, delta)
}

// CompleteRun marks a run as completed or failed.
func (s *Service) CompleteRun(ctx context.Context, orgID, runID string, status domain.RunStatus) error {
	if status != domain.RunCompleted && status != domain.RunFailed {
		return fmt.Errorf("%w: %s is not a terminal run status", ErrInvalidTransition, status)
	}
	return s.runs.SetStatus(ctx, orgID, runID, status)
}
