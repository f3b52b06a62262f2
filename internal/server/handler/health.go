package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/trustscope/trustscope/internal/chains"
)

// HealthHandler serves the health-check endpoint.
type HealthHandler struct {
	registry  *chains.Registry
	startedAt time.Time
	logger    *slog.Logger
}

// NewHealthHandler creates a HealthHandler reporting over the given chain
// registry.
func NewHealthHandler(registry *chains.Registry, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{registry: registry, startedAt: time.Now(), logger: logger}
}

// HealthCheck reports liveness plus how many chains the service can scan.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
		"chains":         len(h.registry.Specs()),
		"uptime_seconds": int(time.Since(h.startedAt).Seconds()),
	})
}
