package domain

import "time"

// AuditStatus enumerates the lifecycle states of an audit record.
type AuditStatus string

const (
	AuditPending  AuditStatus = "pending"
	AuditClean    AuditStatus = "clean"
	AuditFlagged  AuditStatus = "flagged"
	AuditResolved AuditStatus = "resolved"
	AuditSkipped  AuditStatus = "skipped"
	AuditError    AuditStatus = "error"
)

// Flag reasons emitted by the sequence analyzer, in the vocabulary the review
// UI filters on.
const (
	FlagNoMappedPurchases  = "no_mapped_purchases"
	FlagSkippedBox         = "skipped_box"
	FlagDuplicateBox       = "duplicate_box"
	FlagOutOfOrderPurchase = "out_of_order_purchase"
	FlagUnmappedItems      = "unmapped_items_present"
)

// AuditRecord is one audit verdict for one subscriber within one migration
// run. Records are created pending, classified clean or flagged by the
// analyzer, and flagged records are closed out by a human as resolved or
// skipped. Once clean, resolved, skipped, or error, a record is immutable for
// that run.
type AuditRecord struct {
	ID             string `json:"id" db:"id"`
	OrganizationID string `json:"organization_id" db:"organization_id"`
	SubscriberID   string `json:"subscriber_id" db:"subscriber_id"`
	MigrationRunID string `json:"migration_run_id" db:"migration_run_id"`

	Status            AuditStatus `json:"status" db:"status"`
	DetectedSequences []int       `json:"detected_sequences" db:"detected_sequences"`
	ProposedNextBox   int         `json:"proposed_next_box" db:"proposed_next_box"`
	ResolvedNextBox   *int        `json:"resolved_next_box" db:"resolved_next_box"`
	FlagReasons       []string    `json:"flag_reasons" db:"flag_reasons"`
	ConfidenceScore   float64     `json:"confidence_score" db:"confidence_score"`
	ErrorMessage      string      `json:"error_message,omitempty" db:"error_message"`

	ResolutionNote *string    `json:"resolution_note" db:"resolution_note"`
	ResolvedBy     *string    `json:"resolved_by" db:"resolved_by"`
	ResolvedAt     *time.Time `json:"resolved_at" db:"resolved_at"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// IsTerminal returns true if the record can no longer change within its run.
func (r *AuditRecord) IsTerminal() bool {
	switch r.Status {
	case AuditClean, AuditResolved, AuditSkipped, AuditError:
		return true
	}
	return false
}

// RunStatus enumerates the lifecycle states of a migration run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// MigrationRun is one batch-processing session over a set of subscribers for
// one organization. Counters are increment-only and updated atomically so
// concurrent batches for the same run stay consistent.
type MigrationRun struct {
	ID             string    `json:"id" db:"id"`
	OrganizationID string    `json:"organization_id" db:"organization_id"`
	Status         RunStatus `json:"status" db:"status"`

	TotalSubscribers     int `json:"total_subscribers" db:"total_subscribers"`
	ProcessedSubscribers int `json:"processed_subscribers" db:"processed_subscribers"`
	CleanCount           int `json:"clean_count" db:"clean_count"`
	FlaggedCount         int `json:"flagged_count" db:"flagged_count"`
	ErrorCount           int `json:"error_count" db:"error_count"`

	StartedAt   time.Time  `json:"started_at" db:"started_at"`
	CompletedAt *time.Time `json:"completed_at" db:"completed_at"`
}
