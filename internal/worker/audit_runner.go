package worker

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/cratecrew/boxops/internal/audit"
	"github.com/cratecrew/boxops/internal/domain"
	"github.com/cratecrew/boxops/internal/pkg/logger"
	"github.com/cratecrew/boxops/internal/service/migration"
)

// MaxBatchSize bounds one runner invocation. Larger migrations are driven by
// the UI dispatching successive batches against the same run.
const MaxBatchSize = 10

// OrderSource fetches a customer's raw order history from the upstream
// commerce platform. May fail per subscriber with rate-limit or not-found
// errors; 429 retry/backoff happens inside the implementation.
type OrderSource interface {
	FetchOrders(ctx context.Context, customerID string) ([]domain.Order, error)
}

// Limiter gates calls to the order source. Satisfied by *RateLimiter.
type Limiter interface {
	Wait(ctx context.Context, orgID string) error
}

// AuditRunner drives one bounded batch of subscribers through
// fetch → normalize → analyze → persist. Subscribers are processed
// sequentially: that is a rate-limit policy choice, not a correctness
// requirement — no mutable state is shared between subscribers.
type AuditRunner struct {
	svc         *migration.Service
	subscribers migration.SubscriberRepository
	unmapped    migration.UnmappedSink
	orders      OrderSource
	limiter     Limiter

	// Fixed pause between subscribers, on top of the limiter.
	interDelay time.Duration
}

// NewAuditRunner creates a batch runner. limiter may be nil (no gating
// beyond interDelay), which the CLI uses for single-org dry runs.
func NewAuditRunner(
	svc *migration.Service,
	subscribers migration.SubscriberRepository,
	unmapped migration.UnmappedSink,
	orders OrderSource,
	limiter Limiter,
	interDelay time.Duration,
) *AuditRunner {
	return &AuditRunner{
		svc:         svc,
		subscribers: subscribers,
		unmapped:    unmapped,
		orders:      orders,
		limiter:     limiter,
		interDelay:  interDelay,
	}
}

// BatchSummary reports what one ProcessBatch invocation did.
type BatchSummary struct {
	Processed int `json:"processed"`
	Clean     int `json:"clean"`
	Flagged   int `json:"flagged"`
	Errors    int `json:"errors"`
}

// ProcessBatch audits the given subscribers for one run. Per-subscriber
// failures are recorded as error verdicts and never abort the batch; the
// whole call fails only before any processing begins (oversized batch, no
// mappings configured, unknown run). Run counters are incremented once,
// atomically, after the batch.
func (r *AuditRunner) ProcessBatch(ctx context.Context, orgID, runID string, subscriberIDs []string) (BatchSummary, error) {
	var summary BatchSummary

	if len(subscriberIDs) == 0 {
		return summary, fmt.Errorf("empty batch")
	}
	if len(subscriberIDs) > MaxBatchSize {
		return summary, fmt.Errorf("batch of %d exceeds limit of %d", len(subscriberIDs), MaxBatchSize)
	}

	if _, err := r.svc.GetRun(ctx, orgID, runID); err != nil {
		return summary, err
	}

	// Fatal before processing: an org with zero aliases would flag every
	// subscriber as no_mapped_purchases, so refuse to start instead.
	resolver, err := r.svc.BuildResolver(ctx, orgID)
	if err != nil {
		return summary, err
	}

	for i, subID := range subscriberIDs {
		if i > 0 && r.interDelay > 0 {
			select {
			case <-time.After(r.interDelay):
			case <-ctx.Done():
				return summary, ctx.Err()
			}
		}

		verdict, err := r.processSubscriber(ctx, orgID, runID, subID, resolver)
		summary.Processed++
		switch {
		case err != nil:
			summary.Errors++
			logger.Warn("subscriber audit failed",
				"org_id", orgID, "run_id", runID, "subscriber_id", subID, "error", err.Error())
			if recErr := r.svc.RecordError(ctx, orgID, runID, subID, err.Error()); recErr != nil {
				log.Printf("[AuditRunner] failed to record error verdict for %s: %v", subID, recErr)
			}
		case verdict == domain.AuditClean:
			summary.Clean++
		default:
			summary.Flagged++
		}
	}

	if err := r.svc.RecordProgress(ctx, runID, migration.ProgressDelta{
		Processed: summary.Processed,
		Clean:     summary.Clean,
		Flagged:   summary.Flagged,
		Errors:    summary.Errors,
	}); err != nil {
		return summary, fmt.Errorf("record run progress: %w", err)
	}

	log.Printf("[AuditRunner] run %s batch done: %d processed, %d clean, %d flagged, %d errors",
		runID, summary.Processed, summary.Clean, summary.Flagged, summary.Errors)
	return summary, nil
}

func (r *AuditRunner) processSubscriber(ctx context.Context, orgID, runID, subID string, resolver *audit.Resolver) (domain.AuditStatus, error) {
	sub, err := r.subscribers.Get(ctx, orgID, subID)
	if err != nil {
		return "", fmt.Errorf("load subscriber: %w", err)
	}
	customerID := sub.ShopifyCustomerID
	if customerID == "" {
		return "", fmt.Errorf("subscriber has no order-source customer id")
	}

	if r.limiter != nil {
		if err := r.limiter.Wait(ctx, orgID); err != nil {
			return "", fmt.Errorf("rate limiter: %w", err)
		}
	}

	orders, err := r.orders.FetchOrders(ctx, customerID)
	if err != nil {
		return "", fmt.Errorf("fetch orders: %w", err)
	}

	normalizer := audit.NewNormalizer(resolver, func(ev domain.BoxEvent) {
		item := domain.UnmappedItem{
			OrganizationID:     orgID,
			SKU:                ev.RawSKU,
			ProductName:        ev.RawProductName,
			OrderID:            ev.SourceOrderID,
			CustomerIdentifier: customerID,
			OccurredAt:         ev.OccurredAt,
		}
		// Triage data must not be dropped, but it also must not fail the
		// audit: the verdict stands either way.
		if err := r.unmapped.Record(ctx, item); err != nil {
			log.Printf("[AuditRunner] failed to record unmapped item %s: %v", ev.RawSKU, err)
		}
	})

	events := normalizer.Normalize(orders)
	result := audit.Analyze(events)

	if _, err := r.svc.RecordVerdict(ctx, orgID, runID, subID, result); err != nil {
		return "", err
	}
	return result.Status, nil
}
