package estimator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/ktp-quant/pairsignal/internal/domain"
)

// fakeCandles serves a fixed number of candles per period width. Y tracks X
// linearly with a small deterministic wobble so the fit is strong without
// being mechanically exact; the exact flag drops the wobble to produce a
// zero-spread pair.
type fakeCandles struct {
	perPeriod map[int]int // period minutes -> candle count
	exact     bool
	requested []int
}

func (f *fakeCandles) FetchCandles(ctx context.Context, instrumentID string, start, end time.Time, periodMinutes int) ([]domain.CandlePoint, error) {
	f.requested = append(f.requested, periodMinutes)
	n := f.perPeriod[periodMinutes]
	base := time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC)
	points := make([]domain.CandlePoint, 0, n)
	for i := 0; i < n; i++ {
		px := 0.10 + 0.01*float64(i)
		if instrumentID == "Y" {
			px = 2*px + 0.05
			if !f.exact {
				px += 0.002 * float64(i%3-1)
			}
		}
		points = append(points, domain.CandlePoint{
			Time:  base.Add(time.Duration(i) * time.Hour),
			Close: px,
		})
	}
	return points, nil
}

type memStore struct {
	saved  []domain.FittedModel
	loaded *domain.FittedModel
}

func (s *memStore) Save(ctx context.Context, m domain.FittedModel) error {
	s.saved = append(s.saved, m)
	return nil
}

func (s *memStore) Load(ctx context.Context) (domain.FittedModel, error) {
	if s.loaded == nil {
		return domain.FittedModel{}, domain.ErrNotFound
	}
	return *s.loaded, nil
}

type recordingArchiver struct {
	archived []domain.FittedModel
}

func (a *recordingArchiver) Archive(ctx context.Context, m domain.FittedModel) error {
	a.archived = append(a.archived, m)
	return nil
}

func testParams() Params {
	return Params{
		InstrumentX:    "X",
		InstrumentY:    "Y",
		Window:         24 * time.Hour,
		PeriodMinutes:  60,
		MinSamples:     10,
		MinRSquared:    0.7,
		ThresholdSigma: 2.0,
	}
}

func newTestEstimator(candles domain.CandleSource, store domain.ModelStore, archive Archiver, params Params) *Estimator {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	e := New(candles, store, archive, params, logger)
	e.now = func() time.Time { return time.Date(2025, 11, 3, 12, 0, 0, 0, time.UTC) }
	return e
}

func TestRunFitsAndPersists(t *testing.T) {
	candles := &fakeCandles{perPeriod: map[int]int{60: 20}}
	store := &memStore{}
	est := newTestEstimator(candles, store, nil, testParams())

	res, err := est.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(store.saved) != 1 {
		t.Fatalf("saved %d models, want 1", len(store.saved))
	}
	m := store.saved[0]
	if m.SampleCount != 20 {
		t.Fatalf("sample count = %d, want 20", m.SampleCount)
	}
	if m.RSquared < 0.99 {
		t.Fatalf("r_squared = %v, want near 1 for an almost linear pair", m.RSquared)
	}
	if m.ResidualStdDev <= 0 {
		t.Fatalf("residual stddev = %v, want positive", m.ResidualStdDev)
	}
	if m.WeakCorrelation {
		t.Fatalf("weak flag set on a strong fit")
	}
	if res.PeriodMinutes != 60 {
		t.Fatalf("period = %d, want requested 60", res.PeriodMinutes)
	}
}

func TestRunFallsBackToCoarserPeriod(t *testing.T) {
	// Requested width has too few buckets; the daily width has enough.
	candles := &fakeCandles{perPeriod: map[int]int{60: 3, 1: 3, 1440: 15}}
	store := &memStore{}
	est := newTestEstimator(candles, store, nil, testParams())

	res, err := est.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.PeriodMinutes != 1440 {
		t.Fatalf("period = %d, want fallback 1440", res.PeriodMinutes)
	}
}

func TestRunAllPeriodsInsufficient(t *testing.T) {
	candles := &fakeCandles{perPeriod: map[int]int{60: 2, 1: 2, 1440: 2}}
	est := newTestEstimator(candles, &memStore{}, nil, testParams())

	_, err := est.Run(context.Background())
	if !errors.Is(err, domain.ErrInsufficientData) {
		t.Fatalf("err = %v, want ErrInsufficientData", err)
	}
}

func TestRunRejectsExactLinearPairAsDegenerate(t *testing.T) {
	// Y = 2X + 0.05 exactly: a perfect R-squared with a residual spread of
	// pure float noise. The fit must be rejected before anything persists.
	candles := &fakeCandles{perPeriod: map[int]int{60: 20}, exact: true}
	store := &memStore{}
	est := newTestEstimator(candles, store, nil, testParams())

	_, err := est.Run(context.Background())
	if !errors.Is(err, domain.ErrDegenerateModel) {
		t.Fatalf("err = %v, want ErrDegenerateModel", err)
	}
	if len(store.saved) != 0 {
		t.Fatalf("degenerate model was persisted")
	}
}

func TestRunRejectsWeakCorrelationByDefault(t *testing.T) {
	params := testParams()
	params.MinRSquared = 1.1 // unreachable, forces the weak path
	store := &memStore{}
	est := newTestEstimator(&fakeCandles{perPeriod: map[int]int{60: 20}}, store, nil, params)

	_, err := est.Run(context.Background())
	if !errors.Is(err, domain.ErrWeakCorrelation) {
		t.Fatalf("err = %v, want ErrWeakCorrelation", err)
	}
	if len(store.saved) != 0 {
		t.Fatalf("weak model was persisted")
	}
}

func TestRunPersistsWeakModelWhenAllowed(t *testing.T) {
	params := testParams()
	params.MinRSquared = 1.1
	params.PersistWeakModel = true
	store := &memStore{}
	est := newTestEstimator(&fakeCandles{perPeriod: map[int]int{60: 20}}, store, nil, params)

	res, err := est.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !res.Model.WeakCorrelation {
		t.Fatalf("weak flag not set")
	}
	if len(store.saved) != 1 {
		t.Fatalf("weak model not persisted")
	}
}

func TestRunArchivesPreviousArtifact(t *testing.T) {
	prev := domain.FittedModel{
		InstrumentX:    "X",
		InstrumentY:    "Y",
		Slope:          1,
		RSquared:       0.8,
		ResidualStdDev: 0.01,
		SampleCount:    10,
		ThresholdSigma: 2,
		FittedAt:       time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC),
	}
	store := &memStore{loaded: &prev}
	arch := &recordingArchiver{}
	est := newTestEstimator(&fakeCandles{perPeriod: map[int]int{60: 20}}, store, arch, testParams())

	if _, err := est.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(arch.archived) != 1 || arch.archived[0].FittedAt != prev.FittedAt {
		t.Fatalf("archived = %+v, want the previous artifact", arch.archived)
	}
}
