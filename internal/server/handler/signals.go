package handler

import (
	"log/slog"
	"net/http"

	"github.com/ktp-quant/pairsignal/internal/domain"
)

// SignalsHandler serves the persisted history of signal transitions.
type SignalsHandler struct {
	store  domain.SignalEventStore
	logger *slog.Logger
}

// NewSignalsHandler creates a SignalsHandler backed by the given event store.
func NewSignalsHandler(store domain.SignalEventStore, logger *slog.Logger) *SignalsHandler {
	return &SignalsHandler{
		store:  store,
		logger: logHandler(logger, "signals"),
	}
}

// ListRecent responds with the most recent signal events, newest first.
// Supports limit, offset, and since (RFC 3339) query parameters.
// GET /api/signals/recent
func (h *SignalsHandler) ListRecent(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)

	events, err := h.store.ListRecent(r.Context(), opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list signal events failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list signal events")
		return
	}
	if events == nil {
		events = []domain.SignalEvent{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"events": events,
		"count":  len(events),
	})
}
