package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/ktp-quant/pairsignal/internal/domain"
)

// ModelHandler serves the currently persisted model artifact.
type ModelHandler struct {
	store  domain.ModelStore
	logger *slog.Logger
}

// NewModelHandler creates a ModelHandler backed by the given model store.
func NewModelHandler(store domain.ModelStore, logger *slog.Logger) *ModelHandler {
	return &ModelHandler{
		store:  store,
		logger: logHandler(logger, "model"),
	}
}

// GetModel responds with the persisted model artifact, or 404 when no fit
// has been run yet.
// GET /api/model
func (h *ModelHandler) GetModel(w http.ResponseWriter, r *http.Request) {
	m, err := h.store.Load(r.Context())
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no fitted model")
			return
		}
		if errors.Is(err, domain.ErrCorruptModel) {
			h.logger.ErrorContext(r.Context(), "model artifact corrupt", slog.String("error", err.Error()))
			writeError(w, http.StatusInternalServerError, "model artifact is corrupt; re-run estimation")
			return
		}
		h.logger.ErrorContext(r.Context(), "load model failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to load model")
		return
	}
	writeJSON(w, http.StatusOK, m)
}
