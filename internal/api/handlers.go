package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cratecrew/boxops/internal/discord"
	"github.com/cratecrew/boxops/internal/domain"
	"github.com/cratecrew/boxops/internal/export"
	"github.com/cratecrew/boxops/internal/pkg/httputil"
	"github.com/cratecrew/boxops/internal/service/migration"
	"github.com/cratecrew/boxops/internal/worker"
)

// Handlers holds the portal's HTTP handlers and their dependencies.
type Handlers struct {
	svc      *migration.Service
	runner   *worker.AuditRunner
	mappings migration.MappingRepository
	notifier *discord.Notifier
	reporter *export.Reporter // nil when S3 export is disabled
}

// NewHandlers creates the handler set.
func NewHandlers(
	svc *migration.Service,
	runner *worker.AuditRunner,
	mappings migration.MappingRepository,
	notifier *discord.Notifier,
	reporter *export.Reporter,
) *Handlers {
	return &Handlers{
		svc:      svc,
		runner:   runner,
		mappings: mappings,
		notifier: notifier,
		reporter: reporter,
	}
}

// HealthCheck reports liveness.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, map[string]string{
		"status":  "ok",
		"service": "boxops",
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// writeMigrationError maps service-layer sentinels onto HTTP statuses so the
// review UI can distinguish "gone", "someone beat you to it", and "bad input".
func writeMigrationError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, migration.ErrNotFound), errors.Is(err, migration.ErrRunNotFound):
		httputil.NotFound(w, err.Error())
	case errors.Is(err, migration.ErrAlreadyResolved), errors.Is(err, migration.ErrInvalidTransition):
		httputil.Conflict(w, err.Error())
	case errors.Is(err, migration.ErrInvalidResolution), errors.Is(err, migration.ErrNoMappingsConfigured):
		httputil.UnprocessableEntity(w, err.Error())
	default:
		httputil.InternalError(w, err)
	}
}

// --- Run lifecycle ---

type startRunRequest struct {
	TotalSubscribers int `json:"total_subscribers"`
}

// StartRun creates a new migration run for the org.
func (h *Handlers) StartRun(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "orgID")

	var req startRunRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if req.TotalSubscribers <= 0 {
		httputil.BadRequest(w, "total_subscribers must be positive")
		return
	}

	run, err := h.svc.StartRun(r.Context(), orgID, req.TotalSubscribers)
	if err != nil {
		writeMigrationError(w, err)
		return
	}
	httputil.Created(w, run)
}

// GetRun returns a run with its progress counters.
func (h *Handlers) GetRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.svc.GetRun(r.Context(), chi.URLParam(r, "orgID"), chi.URLParam(r, "runID"))
	if err != nil {
		writeMigrationError(w, err)
		return
	}
	httputil.OK(w, run)
}

type dispatchBatchRequest struct {
	SubscriberIDs []string `json:"subscriber_ids"`
}

// DispatchBatch processes one bounded batch of subscribers synchronously and
// returns the batch summary. The UI drives large migrations by dispatching
// successive batches against the same run.
func (h *Handlers) DispatchBatch(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "orgID")
	runID := chi.URLParam(r, "runID")

	var req dispatchBatchRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if len(req.SubscriberIDs) == 0 {
		httputil.BadRequest(w, "subscriber_ids must not be empty")
		return
	}
	if len(req.SubscriberIDs) > worker.MaxBatchSize {
		httputil.UnprocessableEntity(w, "batch exceeds limit of "+strconv.Itoa(worker.MaxBatchSize))
		return
	}

	summary, err := h.runner.ProcessBatch(r.Context(), orgID, runID, req.SubscriberIDs)
	if err != nil {
		if h.notifier != nil {
			h.notifier.BatchFailed(r.Context(), orgID, err)
		}
		writeMigrationError(w, err)
		return
	}
	httputil.OK(w, summary)
}

type completeRunRequest struct {
	Status string `json:"status"`
}

// CompleteRun closes a run as completed (default) or failed, and posts the
// summary to the ops channel.
func (h *Handlers) CompleteRun(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "orgID")
	runID := chi.URLParam(r, "runID")

	var req completeRunRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	status := domain.RunCompleted
	if req.Status == string(domain.RunFailed) {
		status = domain.RunFailed
	}

	if err := h.svc.CompleteRun(r.Context(), orgID, runID, status); err != nil {
		writeMigrationError(w, err)
		return
	}

	run, err := h.svc.GetRun(r.Context(), orgID, runID)
	if err != nil {
		writeMigrationError(w, err)
		return
	}
	if h.notifier != nil && status == domain.RunCompleted {
		// Best effort: a dead webhook must not fail the close-out.
		h.notifier.RunCompleted(r.Context(), run)
	}
	httputil.OK(w, run)
}

// ListRecords returns a run's audit records filtered by status
// (default flagged), paginated with limit/offset.
func (h *Handlers) ListRecords(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "orgID")
	runID := chi.URLParam(r, "runID")

	status := domain.AuditStatus(r.URL.Query().Get("status"))
	if status == "" {
		status = domain.AuditFlagged
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	records, total, err := h.svc.ListByStatus(r.Context(), orgID, runID, status, limit, offset)
	if err != nil {
		writeMigrationError(w, err)
		return
	}
	httputil.OK(w, map[string]any{
		"records": records,
		"total":   total,
	})
}

// ExportRunReport uploads the run's full record set to S3 as CSV.
func (h *Handlers) ExportRunReport(w http.ResponseWriter, r *http.Request) {
	if h.reporter == nil {
		httputil.Error(w, http.StatusServiceUnavailable, "report export is not configured")
		return
	}
	orgID := chi.URLParam(r, "orgID")
	runID := chi.URLParam(r, "runID")

	run, err := h.svc.GetRun(r.Context(), orgID, runID)
	if err != nil {
		writeMigrationError(w, err)
		return
	}
	records, err := h.svc.ListByRun(r.Context(), orgID, runID)
	if err != nil {
		writeMigrationError(w, err)
		return
	}

	key, err := h.reporter.UploadRunReport(r.Context(), run, records)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]string{"key": key})
}

// --- Audit record review ---

// GetRecord returns one audit record.
func (h *Handlers) GetRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := h.svc.Get(r.Context(), chi.URLParam(r, "orgID"), chi.URLParam(r, "recordID"))
	if err != nil {
		writeMigrationError(w, err)
		return
	}
	httputil.OK(w, rec)
}

// ResolveRecord applies a human resolution to a flagged record.
func (h *Handlers) ResolveRecord(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "orgID")
	recordID := chi.URLParam(r, "recordID")

	var in migration.ResolveInput
	if !httputil.Decode(w, r, &in) {
		return
	}
	if in.ResolvedBy == "" {
		httputil.BadRequest(w, "resolved_by is required")
		return
	}

	if err := h.svc.Resolve(r.Context(), orgID, recordID, in); err != nil {
		writeMigrationError(w, err)
		return
	}

	rec, err := h.svc.Get(r.Context(), orgID, recordID)
	if err != nil {
		writeMigrationError(w, err)
		return
	}
	httputil.OK(w, rec)
}

// SkipRecord excludes a flagged subscriber from the migration.
func (h *Handlers) SkipRecord(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "orgID")
	recordID := chi.URLParam(r, "recordID")

	var in migration.SkipInput
	if !httputil.Decode(w, r, &in) {
		return
	}
	if in.ResolvedBy == "" {
		httputil.BadRequest(w, "resolved_by is required")
		return
	}

	if err := h.svc.Skip(r.Context(), orgID, recordID, in); err != nil {
		writeMigrationError(w, err)
		return
	}
	httputil.NoContent(w)
}
