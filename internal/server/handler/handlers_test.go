package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ktp-quant/pairsignal/internal/domain"
	"github.com/ktp-quant/pairsignal/internal/service"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type linearCandles struct{}

func (linearCandles) FetchCandles(ctx context.Context, instrumentID string, start, end time.Time, periodMinutes int) ([]domain.CandlePoint, error) {
	base := time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC)
	out := make([]domain.CandlePoint, 20)
	for i := range out {
		x := 0.30 + float64(i)*0.01
		px := x
		if instrumentID == "Y" {
			px = 2*x + 0.05
		}
		out[i] = domain.CandlePoint{Time: base.Add(time.Duration(i) * time.Hour), Close: px}
	}
	return out, nil
}

type emptyCandles struct{}

func (emptyCandles) FetchCandles(ctx context.Context, instrumentID string, start, end time.Time, periodMinutes int) ([]domain.CandlePoint, error) {
	return nil, nil
}

func newSnapshotService(t *testing.T, candles domain.CandleSource) *service.SnapshotService {
	t.Helper()
	return service.NewSnapshotService(candles, nil, service.SnapshotParams{
		InstrumentX:   "X",
		InstrumentY:   "Y",
		Window:        24 * time.Hour,
		PeriodMinutes: 60,
		MinSamples:    10,
		CacheTTL:      time.Minute,
	}, discardLogger())
}

func TestGetCorrelationReturnsSnapshot(t *testing.T) {
	h := NewCorrelationHandler(newSnapshotService(t, linearCandles{}), discardLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/correlation", nil)
	rec := httptest.NewRecorder()
	h.GetCorrelation(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var snap domain.CorrelationSnapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if snap.OverlappingPoints != 20 {
		t.Fatalf("overlappingPoints = %d, want 20", snap.OverlappingPoints)
	}
	if snap.Correlation < 0.999 {
		t.Fatalf("correlation = %v, want ~1 for a linear pair", snap.Correlation)
	}
}

func TestGetCorrelationWithoutHistoryIs422(t *testing.T) {
	h := NewCorrelationHandler(newSnapshotService(t, emptyCandles{}), discardLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/correlation", nil)
	rec := httptest.NewRecorder()
	h.GetCorrelation(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
}

func TestGetStatusReportsBackendConnectivity(t *testing.T) {
	checks := []BackendCheck{
		{Name: "postgres", Check: func(ctx context.Context) error { return nil }},
		{Name: "redis", Check: func(ctx context.Context) error { return errors.New("connection refused") }},
	}
	h := NewStatusHandler("full", "X", "Y", checks, discardLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	rec := httptest.NewRecorder()
	h.GetStatus(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body struct {
		Mode     string            `json:"mode"`
		Backends map[string]string `json:"backends"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Mode != "full" {
		t.Fatalf("mode = %q, want full", body.Mode)
	}
	if body.Backends["postgres"] != "ok" {
		t.Fatalf("postgres = %q, want ok", body.Backends["postgres"])
	}
	if body.Backends["redis"] != "error" {
		t.Fatalf("redis = %q, want error", body.Backends["redis"])
	}
}

type fixedModelStore struct {
	model domain.FittedModel
	err   error
}

func (s fixedModelStore) Save(ctx context.Context, m domain.FittedModel) error { return nil }

func (s fixedModelStore) Load(ctx context.Context) (domain.FittedModel, error) {
	return s.model, s.err
}

func TestGetModelServesArtifact(t *testing.T) {
	m := domain.FittedModel{
		InstrumentX:    "X",
		InstrumentY:    "Y",
		Slope:          2,
		Intercept:      0.05,
		RSquared:       0.95,
		ResidualStdDev: 0.01,
		SampleCount:    20,
		ThresholdSigma: 2,
		FittedAt:       time.Date(2025, 11, 3, 12, 0, 0, 0, time.UTC),
	}
	h := NewModelHandler(fixedModelStore{model: m}, discardLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/model", nil)
	rec := httptest.NewRecorder()
	h.GetModel(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var got domain.FittedModel
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if got != m {
		t.Fatalf("model round trip mismatch: %+v", got)
	}
}

func TestGetModelBeforeFitIs404(t *testing.T) {
	h := NewModelHandler(fixedModelStore{err: domain.ErrNotFound}, discardLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/model", nil)
	rec := httptest.NewRecorder()
	h.GetModel(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

type recordingEventStore struct {
	gotOpts domain.ListOpts
	events  []domain.SignalEvent
}

func (s *recordingEventStore) Insert(ctx context.Context, ev domain.SignalEvent) error { return nil }

func (s *recordingEventStore) ListRecent(ctx context.Context, opts domain.ListOpts) ([]domain.SignalEvent, error) {
	s.gotOpts = opts
	return s.events, nil
}

func (s *recordingEventStore) CountOpened(ctx context.Context, since time.Time) (int64, error) {
	return int64(len(s.events)), nil
}

func TestListRecentParsesQueryParams(t *testing.T) {
	store := &recordingEventStore{}
	h := NewSignalsHandler(store, discardLogger())

	req := httptest.NewRequest(http.MethodGet,
		"/api/signals/recent?limit=9999&offset=5&since=2025-11-01T00:00:00Z", nil)
	rec := httptest.NewRecorder()
	h.ListRecent(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if store.gotOpts.Limit != 500 {
		t.Fatalf("limit = %d, want clamped to 500", store.gotOpts.Limit)
	}
	if store.gotOpts.Offset != 5 {
		t.Fatalf("offset = %d, want 5", store.gotOpts.Offset)
	}
	if store.gotOpts.Since == nil || !store.gotOpts.Since.Equal(time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("since = %v, want 2025-11-01T00:00:00Z", store.gotOpts.Since)
	}

	var body struct {
		Events []domain.SignalEvent `json:"events"`
		Count  int                  `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Count != 0 || body.Events == nil {
		t.Fatalf("empty history should serialize as [], got %+v", body)
	}
}
