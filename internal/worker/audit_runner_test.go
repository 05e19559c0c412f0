package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/cratecrew/boxops/internal/domain"
	"github.com/cratecrew/boxops/internal/service/migration"
)

// --- stubs ---

type stubAuditRepo struct {
	mu      sync.Mutex
	records []domain.AuditRecord
}

func (s *stubAuditRepo) Get(context.Context, string, string) (*domain.AuditRecord, error) {
	return nil, migration.ErrNotFound
}

func (s *stubAuditRepo) ListByStatus(context.Context, string, string, domain.AuditStatus, int, int) ([]domain.AuditRecord, int, error) {
	return nil, 0, nil
}

func (s *stubAuditRepo) ListByRun(context.Context, string, string) ([]domain.AuditRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.AuditRecord(nil), s.records...), nil
}

func (s *stubAuditRepo) Upsert(_ context.Context, rec *domain.AuditRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, *rec)
	return nil
}

func (s *stubAuditRepo) Resolve(context.Context, string, string, int, string, string, time.Time) error {
	return nil
}

func (s *stubAuditRepo) Skip(context.Context, string, string, string, string, time.Time) error {
	return nil
}

func (s *stubAuditRepo) bySubscriber(id string) *domain.AuditRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.records {
		if s.records[i].SubscriberID == id {
			return &s.records[i]
		}
	}
	return nil
}

type stubRunRepo struct {
	mu     sync.Mutex
	run    *domain.MigrationRun
	deltas []migration.ProgressDelta
}

func (s *stubRunRepo) Create(_ context.Context, run *domain.MigrationRun) (string, error) {
	s.run = run
	return run.ID, nil
}

func (s *stubRunRepo) Get(_ context.Context, orgID, id string) (*domain.MigrationRun, error) {
	if s.run == nil || s.run.ID != id {
		return nil, migration.ErrRunNotFound
	}
	return s.run, nil
}

func (s *stubRunRepo) IncrementProgress(_ context.Context, runID string, delta migration.ProgressDelta) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deltas = append(s.deltas, delta)
	return nil
}

func (s *stubRunRepo) SetStatus(context.Context, string, string, domain.RunStatus) error {
	return nil
}

type stubMappingRepo struct{ aliases []domain.SkuAlias }

func (s *stubMappingRepo) GetAliases(context.Context, string) ([]domain.SkuAlias, error) {
	return s.aliases, nil
}
func (s *stubMappingRepo) GetPatterns(context.Context, string) ([]domain.ProductPattern, error) {
	return nil, nil
}
func (s *stubMappingRepo) CreateAlias(context.Context, *domain.SkuAlias) (string, error) {
	return "", nil
}
func (s *stubMappingRepo) CreatePattern(context.Context, *domain.ProductPattern) (string, error) {
	return "", nil
}
func (s *stubMappingRepo) DeleteAlias(context.Context, string, string) error   { return nil }
func (s *stubMappingRepo) DeletePattern(context.Context, string, string) error { return nil }

type stubSubscriberRepo struct{ subs map[string]*domain.Subscriber }

func (s *stubSubscriberRepo) Get(_ context.Context, orgID, id string) (*domain.Subscriber, error) {
	sub, ok := s.subs[id]
	if !ok {
		return nil, migration.ErrNotFound
	}
	return sub, nil
}

type stubUnmappedSink struct {
	mu    sync.Mutex
	items []domain.UnmappedItem
}

func (s *stubUnmappedSink) Record(_ context.Context, item domain.UnmappedItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, item)
	return nil
}

type stubOrderSource struct {
	orders map[string][]domain.Order
	errs   map[string]error
}

func (s *stubOrderSource) FetchOrders(_ context.Context, customerID string) ([]domain.Order, error) {
	if err, ok := s.errs[customerID]; ok {
		return nil, err
	}
	return s.orders[customerID], nil
}

// --- fixture ---

type runnerFixture struct {
	runner   *AuditRunner
	audits   *stubAuditRepo
	runs     *stubRunRepo
	unmapped *stubUnmappedSink
	source   *stubOrderSource
}

func newRunnerFixture(t *testing.T, mapped bool) *runnerFixture {
	t.Helper()

	mappings := &stubMappingRepo{}
	if mapped {
		mappings.aliases = []domain.SkuAlias{
			{RawSKU: "BOX-01", SequenceNumber: 1},
			{RawSKU: "BOX-02", SequenceNumber: 2},
			{RawSKU: "BOX-03", SequenceNumber: 3},
		}
	}

	audits := &stubAuditRepo{}
	runs := &stubRunRepo{run: &domain.MigrationRun{
		ID:               "run-1",
		OrganizationID:   "org-1",
		Status:           domain.RunRunning,
		TotalSubscribers: 10,
	}}
	svc := migration.NewService(audits, runs, mappings)

	subs := &stubSubscriberRepo{subs: map[string]*domain.Subscriber{
		"sub-clean":   {ID: "sub-clean", OrganizationID: "org-1", ShopifyCustomerID: "cust-clean"},
		"sub-flagged": {ID: "sub-flagged", OrganizationID: "org-1", ShopifyCustomerID: "cust-flagged"},
		"sub-failing": {ID: "sub-failing", OrganizationID: "org-1", ShopifyCustomerID: "cust-failing"},
		"sub-no-link": {ID: "sub-no-link", OrganizationID: "org-1"},
	}}

	day := func(d int) time.Time { return time.Date(2025, 4, d, 0, 0, 0, 0, time.UTC) }
	order := func(id string, d int, sku string) domain.Order {
		return domain.Order{OrderID: id, CreatedAt: day(d), LineItems: []domain.LineItem{
			{SKU: sku, ProductName: sku, Quantity: 1, Class: domain.ItemSubscription},
		}}
	}

	source := &stubOrderSource{
		orders: map[string][]domain.Order{
			"cust-clean": {order("c1", 1, "BOX-01"), order("c2", 2, "BOX-02")},
			"cust-flagged": {
				order("f1", 1, "BOX-01"),
				order("f2", 2, "BOX-03"), // gap
				order("f3", 3, "MYSTERY-SKU"),
			},
		},
		errs: map[string]error{"cust-failing": errors.New("api error (status 500)")},
	}

	unmapped := &stubUnmappedSink{}
	runner := NewAuditRunner(svc, subs, unmapped, source, nil, 0)
	return &runnerFixture{runner: runner, audits: audits, runs: runs, unmapped: unmapped, source: source}
}

// --- tests ---

func TestProcessBatchHappyPath(t *testing.T) {
	f := newRunnerFixture(t, true)

	summary, err := f.runner.ProcessBatch(context.Background(), "org-1", "run-1", []string{"sub-clean", "sub-flagged"})
	if err != nil {
		t.Fatalf("ProcessBatch: %v", err)
	}
	if summary.Processed != 2 || summary.Clean != 1 || summary.Flagged != 1 || summary.Errors != 0 {
		t.Errorf("summary = %+v, want 2 processed, 1 clean, 1 flagged", summary)
	}

	clean := f.audits.bySubscriber("sub-clean")
	if clean == nil || clean.Status != domain.AuditClean {
		t.Errorf("clean record = %+v, want clean status", clean)
	}
	if clean != nil && clean.ProposedNextBox != 3 {
		t.Errorf("clean proposed next box = %d, want 3", clean.ProposedNextBox)
	}

	flagged := f.audits.bySubscriber("sub-flagged")
	if flagged == nil || flagged.Status != domain.AuditFlagged {
		t.Fatalf("flagged record = %+v, want flagged status", flagged)
	}
	if flagged.ProposedNextBox != 4 {
		t.Errorf("flagged proposed next box = %d, want 4", flagged.ProposedNextBox)
	}

	// One atomic progress increment for the whole batch.
	if len(f.runs.deltas) != 1 {
		t.Fatalf("got %d progress increments, want 1 per batch", len(f.runs.deltas))
	}
	d := f.runs.deltas[0]
	if d.Processed != 2 || d.Clean != 1 || d.Flagged != 1 || d.Errors != 0 {
		t.Errorf("progress delta = %+v", d)
	}

	// The unmapped SKU went to the triage sink with customer context.
	if len(f.unmapped.items) != 1 {
		t.Fatalf("got %d unmapped items, want 1", len(f.unmapped.items))
	}
	item := f.unmapped.items[0]
	if item.SKU != "MYSTERY-SKU" || item.CustomerIdentifier != "cust-flagged" || item.OrganizationID != "org-1" {
		t.Errorf("unmapped item = %+v", item)
	}
}

func TestProcessBatchCapturesPerSubscriberErrors(t *testing.T) {
	f := newRunnerFixture(t, true)

	summary, err := f.runner.ProcessBatch(context.Background(), "org-1", "run-1",
		[]string{"sub-failing", "sub-clean", "sub-no-link"})
	if err != nil {
		t.Fatalf("ProcessBatch: %v (per-subscriber failures must not abort the batch)", err)
	}
	if summary.Processed != 3 || summary.Clean != 1 || summary.Errors != 2 {
		t.Errorf("summary = %+v, want 3 processed, 1 clean, 2 errors", summary)
	}

	failing := f.audits.bySubscriber("sub-failing")
	if failing == nil || failing.Status != domain.AuditError {
		t.Fatalf("failing record = %+v, want error status", failing)
	}
	if failing.ErrorMessage == "" {
		t.Error("error record missing message")
	}

	noLink := f.audits.bySubscriber("sub-no-link")
	if noLink == nil || noLink.Status != domain.AuditError {
		t.Errorf("no-link record = %+v, want error status", noLink)
	}
}

func TestProcessBatchRejectsBadBatches(t *testing.T) {
	f := newRunnerFixture(t, true)

	if _, err := f.runner.ProcessBatch(context.Background(), "org-1", "run-1", nil); err == nil {
		t.Error("expected error for empty batch")
	}

	oversized := make([]string, MaxBatchSize+1)
	for i := range oversized {
		oversized[i] = fmt.Sprintf("sub-%d", i)
	}
	if _, err := f.runner.ProcessBatch(context.Background(), "org-1", "run-1", oversized); err == nil {
		t.Error("expected error for oversized batch")
	}

	if _, err := f.runner.ProcessBatch(context.Background(), "org-1", "run-unknown", []string{"sub-clean"}); !errors.Is(err, migration.ErrRunNotFound) {
		t.Errorf("err = %v, want ErrRunNotFound", err)
	}

	if len(f.runs.deltas) != 0 {
		t.Errorf("rejected batches must not increment progress, got %d", len(f.runs.deltas))
	}
}

func TestProcessBatchRequiresMappings(t *testing.T) {
	f := newRunnerFixture(t, false)

	_, err := f.runner.ProcessBatch(context.Background(), "org-1", "run-1", []string{"sub-clean"})
	if !errors.Is(err, migration.ErrNoMappingsConfigured) {
		t.Errorf("err = %v, want ErrNoMappingsConfigured", err)
	}
	if len(f.audits.records) != 0 {
		t.Error("no records should be written when the batch refuses to start")
	}
}
