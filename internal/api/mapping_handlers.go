package api

import (
	"net/http"
	"regexp"

	"github.com/go-chi/chi/v5"

	"github.com/cratecrew/boxops/internal/domain"
	"github.com/cratecrew/boxops/internal/pkg/httputil"
)

// ListAliases returns the org's exact SKU mappings.
func (h *Handlers) ListAliases(w http.ResponseWriter, r *http.Request) {
	aliases, err := h.mappings.GetAliases(r.Context(), chi.URLParam(r, "orgID"))
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"aliases": aliases, "total": len(aliases)})
}

type createAliasRequest struct {
	RawSKU         string `json:"raw_sku"`
	SequenceNumber int    `json:"sequence_number"`
}

// CreateAlias adds an exact SKU → box number mapping. Re-posting the same SKU
// updates the sequence number.
func (h *Handlers) CreateAlias(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "orgID")

	var req createAliasRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if req.RawSKU == "" {
		httputil.BadRequest(w, "raw_sku is required")
		return
	}
	if req.SequenceNumber < 1 {
		httputil.UnprocessableEntity(w, "sequence_number must be at least 1")
		return
	}

	alias := &domain.SkuAlias{
		OrganizationID: orgID,
		RawSKU:         req.RawSKU,
		SequenceNumber: req.SequenceNumber,
	}
	id, err := h.mappings.CreateAlias(r.Context(), alias)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	alias.ID = id
	httputil.Created(w, alias)
}

// DeleteAlias removes an exact SKU mapping.
func (h *Handlers) DeleteAlias(w http.ResponseWriter, r *http.Request) {
	if err := h.mappings.DeleteAlias(r.Context(), chi.URLParam(r, "orgID"), chi.URLParam(r, "aliasID")); err != nil {
		writeMigrationError(w, err)
		return
	}
	httputil.NoContent(w)
}

// ListPatterns returns the org's fallback pattern rules in evaluation order.
func (h *Handlers) ListPatterns(w http.ResponseWriter, r *http.Request) {
	patterns, err := h.mappings.GetPatterns(r.Context(), chi.URLParam(r, "orgID"))
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"patterns": patterns, "total": len(patterns)})
}

type createPatternRequest struct {
	Pattern        string `json:"pattern"`
	PatternType    string `json:"pattern_type"`
	SequenceNumber int    `json:"sequence_number"`
	Priority       int    `json:"priority"`
}

// CreatePattern adds a fallback mapping rule. Regex patterns are compiled up
// front so a bad rule is rejected here, not at audit time.
func (h *Handlers) CreatePattern(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "orgID")

	var req createPatternRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if req.Pattern == "" {
		httputil.BadRequest(w, "pattern is required")
		return
	}
	if req.SequenceNumber < 1 {
		httputil.UnprocessableEntity(w, "sequence_number must be at least 1")
		return
	}

	ptype := domain.PatternType(req.PatternType)
	switch ptype {
	case domain.PatternContains, domain.PatternPrefix:
	case domain.PatternRegex:
		if _, err := regexp.Compile(req.Pattern); err != nil {
			httputil.UnprocessableEntity(w, "invalid regex: "+err.Error())
			return
		}
	default:
		httputil.UnprocessableEntity(w, "pattern_type must be contains, prefix, or regex")
		return
	}

	pattern := &domain.ProductPattern{
		OrganizationID: orgID,
		Pattern:        req.Pattern,
		PatternType:    ptype,
		SequenceNumber: req.SequenceNumber,
		Priority:       req.Priority,
	}
	id, err := h.mappings.CreatePattern(r.Context(), pattern)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	pattern.ID = id
	httputil.Created(w, pattern)
}

// DeletePattern removes a fallback mapping rule.
func (h *Handlers) DeletePattern(w http.ResponseWriter, r *http.Request) {
	if err := h.mappings.DeletePattern(r.Context(), chi.URLParam(r, "orgID"), chi.URLParam(r, "patternID")); err != nil {
		writeMigrationError(w, err)
		return
	}
	httputil.NoContent(w)
}
