package handler

import (
	"log/slog"
	"net/http"

	"github.com/trustscope/trustscope/internal/domain"
)

// AuditHandler serves the scan audit trail.
type AuditHandler struct {
	store  domain.AuditStore
	logger *slog.Logger
}

// NewAuditHandler creates an AuditHandler backed by the given store.
func NewAuditHandler(store domain.AuditStore, logger *slog.Logger) *AuditHandler {
	return &AuditHandler{store: store, logger: logger}
}

// ListKeys returns every audit trail key that has recorded events.
// GET /api/audit
func (h *AuditHandler) ListKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := h.store.Keys(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list audit keys failed",
			slog.String("error", err.Error()),
		)
		writeError(w, statusFor(err), "failed to list audit keys")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"keys":  keys,
		"total": len(keys),
	})
}

// ListEntries returns the audit entries for a single key, newest first.
// GET /api/audit/{key}?limit=50
func (h *AuditHandler) ListEntries(w http.ResponseWriter, r *http.Request) {
	key := pathParam(r, "key")
	if key == "" {
		writeError(w, http.StatusBadRequest, "missing audit key")
		return
	}

	entries, err := h.store.List(r.Context(), key, parseLimit(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list audit entries failed",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		writeError(w, statusFor(err), "failed to list audit entries")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"key":     key,
		"entries": entries,
		"total":   len(entries),
	})
}
