// Package handlers implements the HTTP surface of the track enricher.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"

	"track-enricher/internal/common/logging"
	"track-enricher/internal/enrich"
)

// invalidBodyMessage is the single client-error message for malformed
// or structurally incomplete request bodies.
const invalidBodyMessage = "Invalid request body"

// Handlers carries the dependencies of all HTTP handlers.
type Handlers struct {
	enricher    *enrich.Enricher
	validate    *validator.Validate
	cacheHealth func() error
}

// New creates the handler set. cacheHealth may be nil when the cache
// backend has no health probe.
func New(enricher *enrich.Enricher, cacheHealth func() error) *Handlers {
	return &Handlers{
		enricher:    enricher,
		validate:    validator.New(),
		cacheHealth: cacheHealth,
	}
}

// HandleEnrich processes one enrichment request. Well-formed input
// always yields HTTP 200 with a structured body, even when the batch
// was fully throttled; only malformed input or an unexpected internal
// fault produce error statuses.
func (h *Handlers) HandleEnrich(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			logging.Error("enrichment panicked", nil, logging.Field{Key: "panic", Value: rec})
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
		}
	}()

	var req enrich.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": invalidBodyMessage})
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": invalidBodyMessage})
		return
	}

	resp := h.enricher.Enrich(r.Context(), &req)
	writeJSON(w, http.StatusOK, resp)
}

// HealthCheck reports liveness and the cache backend state. A degraded
// cache is not a failure: the service keeps serving without it.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{
		"status": "healthy",
		"cache":  "ok",
	}
	if h.cacheHealth == nil {
		status["cache"] = "disabled"
	} else if err := h.cacheHealth(); err != nil {
		status["cache"] = "degraded"
	}
	writeJSON(w, http.StatusOK, status)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.Error("failed to encode response", err)
	}
}
