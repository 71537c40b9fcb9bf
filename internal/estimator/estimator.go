// Package estimator fits the pair model: it pulls aligned candle history for
// both instruments, regresses Y on X, applies the quality gates, and persists
// the resulting artifact.
package estimator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/ktp-quant/pairsignal/internal/analytics"
	"github.com/ktp-quant/pairsignal/internal/domain"
)

// minResidualStdDev is the smallest residual spread a model may be fitted
// with. An exactly linear pair leaves only float rounding noise in the
// residuals; z-scoring live quotes against that spread fires on every poll.
const minResidualStdDev = 1e-9

// Archiver copies a superseded model aside before a refit overwrites it.
type Archiver interface {
	Archive(ctx context.Context, m domain.FittedModel) error
}

// Params configures a fit run.
type Params struct {
	InstrumentX string
	InstrumentY string
	// Window is how far back the candle history reaches.
	Window time.Duration
	// PeriodMinutes is the preferred candle width; coarser widths are tried
	// when it yields too few overlapping buckets.
	PeriodMinutes    int
	MinSamples       int
	MinRSquared      float64
	PersistWeakModel bool
	ThresholdSigma   float64
}

// Result carries everything a fit run produced, including the training
// series and residuals for charting.
type Result struct {
	Model  domain.FittedModel
	Fit    analytics.Fit
	Series domain.AlignedSeries
	// PeriodMinutes is the candle width that actually produced the series.
	PeriodMinutes int
}

// Estimator runs the estimation pipeline.
type Estimator struct {
	candles domain.CandleSource
	store   domain.ModelStore
	archive Archiver // nil disables archiving
	logger  *slog.Logger
	params  Params
	now     func() time.Time
}

// New creates an Estimator. archive may be nil.
func New(candles domain.CandleSource, store domain.ModelStore, archive Archiver, params Params, logger *slog.Logger) *Estimator {
	return &Estimator{
		candles: candles,
		store:   store,
		archive: archive,
		logger:  logger.With(slog.String("component", "estimator")),
		params:  params,
		now:     time.Now,
	}
}

// Run fetches history, fits the model, and persists it. A model below the
// R-squared gate is rejected with ErrWeakCorrelation unless weak persistence
// is enabled, in which case it is saved with the weak flag set.
func (e *Estimator) Run(ctx context.Context) (Result, error) {
	series, period, err := e.fetchAligned(ctx)
	if err != nil {
		return Result{}, err
	}

	fit, err := analytics.FitOLS(series)
	if err != nil {
		return Result{}, err
	}

	if math.IsNaN(fit.ResidualStdDev) || math.IsInf(fit.ResidualStdDev, 0) ||
		fit.ResidualStdDev < minResidualStdDev {
		return Result{}, fmt.Errorf("estimator: residual spread %.3e is unusable for z-scoring: %w",
			fit.ResidualStdDev, domain.ErrDegenerateModel)
	}

	weak := fit.RSquared < e.params.MinRSquared
	if weak && !e.params.PersistWeakModel {
		return Result{}, fmt.Errorf("estimator: r_squared %.3f below gate %.3f: %w",
			fit.RSquared, e.params.MinRSquared, domain.ErrWeakCorrelation)
	}

	m := domain.FittedModel{
		InstrumentX:     e.params.InstrumentX,
		InstrumentY:     e.params.InstrumentY,
		Slope:           fit.Slope,
		Intercept:       fit.Intercept,
		RSquared:        fit.RSquared,
		ResidualStdDev:  fit.ResidualStdDev,
		SampleCount:     series.Overlap(),
		ThresholdSigma:  e.params.ThresholdSigma,
		WeakCorrelation: weak,
		FittedAt:        e.now().UTC(),
	}

	e.archivePrevious(ctx)

	if err := e.store.Save(ctx, m); err != nil {
		return Result{}, err
	}

	e.logger.InfoContext(ctx, "model fitted",
		slog.String("instrument_x", m.InstrumentX),
		slog.String("instrument_y", m.InstrumentY),
		slog.Float64("slope", m.Slope),
		slog.Float64("intercept", m.Intercept),
		slog.Float64("r_squared", m.RSquared),
		slog.Float64("residual_std_dev", m.ResidualStdDev),
		slog.Int("samples", m.SampleCount),
		slog.Int("period_minutes", period),
		slog.Bool("weak_correlation", m.WeakCorrelation),
	)

	return Result{Model: m, Fit: fit, Series: series, PeriodMinutes: period}, nil
}

// fetchAligned tries each candidate candle width until one yields enough
// overlapping buckets.
func (e *Estimator) fetchAligned(ctx context.Context) (domain.AlignedSeries, int, error) {
	end := e.now().UTC()
	start := end.Add(-e.params.Window)

	var lastErr error
	for _, period := range fallbackPeriods(e.params.PeriodMinutes) {
		xs, err := e.candles.FetchCandles(ctx, e.params.InstrumentX, start, end, period)
		if err != nil {
			return domain.AlignedSeries{}, 0, err
		}
		ys, err := e.candles.FetchCandles(ctx, e.params.InstrumentY, start, end, period)
		if err != nil {
			return domain.AlignedSeries{}, 0, err
		}

		series, err := analytics.Align(xs, ys, e.params.MinSamples)
		if err != nil {
			if errors.Is(err, domain.ErrInsufficientData) {
				e.logger.DebugContext(ctx, "not enough overlap at candle width, widening",
					slog.Int("period_minutes", period),
					slog.Int("overlap", series.Overlap()),
				)
				lastErr = err
				continue
			}
			return domain.AlignedSeries{}, 0, err
		}
		return series, period, nil
	}
	return domain.AlignedSeries{}, 0, lastErr
}

// archivePrevious copies the standing artifact to blob storage, when both an
// archiver and an artifact exist. Archive failures are logged, not fatal; a
// refit must not be blocked by the archive store.
func (e *Estimator) archivePrevious(ctx context.Context) {
	if e.archive == nil {
		return
	}
	prev, err := e.store.Load(ctx)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			e.logger.WarnContext(ctx, "previous artifact unreadable, skipping archive",
				slog.String("error", err.Error()))
		}
		return
	}
	if err := e.archive.Archive(ctx, prev); err != nil {
		e.logger.WarnContext(ctx, "archive of previous model failed",
			slog.String("error", err.Error()))
	}
}

// fallbackPeriods orders the candidate candle widths: the requested width
// first, then the remaining valid widths from finest to coarsest.
func fallbackPeriods(requested int) []int {
	out := []int{requested}
	for _, p := range []int{1, 60, 1440} {
		if p != requested {
			out = append(out, p)
		}
	}
	return out
}
