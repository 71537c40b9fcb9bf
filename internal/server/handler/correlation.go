package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/ktp-quant/pairsignal/internal/domain"
	"github.com/ktp-quant/pairsignal/internal/service"
)

// CorrelationHandler serves the correlation snapshot for the dashboard.
type CorrelationHandler struct {
	svc    *service.SnapshotService
	logger *slog.Logger
}

// NewCorrelationHandler creates a CorrelationHandler backed by the given
// snapshot service.
func NewCorrelationHandler(svc *service.SnapshotService, logger *slog.Logger) *CorrelationHandler {
	return &CorrelationHandler{
		svc:    svc,
		logger: logHandler(logger, "correlation"),
	}
}

// GetCorrelation responds with the aligned pair series, training residuals,
// and summary statistics for the configured window.
// GET /api/correlation
func (h *CorrelationHandler) GetCorrelation(w http.ResponseWriter, r *http.Request) {
	snap, err := h.svc.GetSnapshot(r.Context())
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientData) {
			writeError(w, http.StatusUnprocessableEntity, "not enough overlapping candle history for this pair")
			return
		}
		h.logger.ErrorContext(r.Context(), "snapshot failed", slog.String("error", err.Error()))
		writeError(w, http.StatusBadGateway, "failed to build correlation snapshot")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}
