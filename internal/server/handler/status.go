package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// backendCheckTimeout bounds each connectivity probe so one slow backend
// cannot stall the status response.
const backendCheckTimeout = 2 * time.Second

// BackendCheck is a named connectivity check for an optional backend
// (Postgres, Redis, S3) surfaced on the status endpoint.
type BackendCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// StatusHandler serves the backend status (mode, monitored pair, backend
// connectivity) for the dashboard.
type StatusHandler struct {
	mode        string
	instrumentX string
	instrumentY string
	startedAt   time.Time
	checks      []BackendCheck
	logger      *slog.Logger
}

// NewStatusHandler creates a StatusHandler for the given mode and pair.
// checks may be empty when no optional backend is wired.
func NewStatusHandler(mode, instrumentX, instrumentY string, checks []BackendCheck, logger *slog.Logger) *StatusHandler {
	return &StatusHandler{
		mode:        mode,
		instrumentX: instrumentX,
		instrumentY: instrumentY,
		startedAt:   time.Now().UTC(),
		checks:      checks,
		logger:      logger,
	}
}

// GetStatus responds with the current backend mode, monitored pair, uptime,
// and per-backend connectivity.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	backends := make(map[string]string, len(h.checks))
	for _, bc := range h.checks {
		ctx, cancel := context.WithTimeout(r.Context(), backendCheckTimeout)
		if err := bc.Check(ctx); err != nil {
			backends[bc.Name] = "error"
			h.logger.WarnContext(r.Context(), "backend check failed",
				slog.String("backend", bc.Name),
				slog.String("error", err.Error()),
			)
		} else {
			backends[bc.Name] = "ok"
		}
		cancel()
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"mode":           h.mode,
		"instrument_x":   h.instrumentX,
		"instrument_y":   h.instrumentY,
		"started_at":     h.startedAt.Format(time.RFC3339),
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
		"backends":       backends,
	})
}
