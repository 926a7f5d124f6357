// Package handler contains the HTTP handlers for the operational API.
package handler

import (
	"log/slog"
	"net/http"
	"time"
)

// HealthHandler serves the liveness endpoint used by deploy probes.
type HealthHandler struct {
	logger *slog.Logger
}

// NewHealthHandler creates a HealthHandler with the provided logger.
func NewHealthHandler(logger *slog.Logger) *HealthHandler {
	return &HealthHandler{logger: logger}
}

// HealthCheck reports that the process is up. It says nothing about chain,
// datastore, or cache health; those surface through /api/status and logs.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.logger.Debug("health check", slog.String("remote", r.RemoteAddr))
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"service":   "p2pbot",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
