// Package service holds the read-side use cases behind the HTTP API.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/ktp-quant/pairsignal/internal/analytics"
	"github.com/ktp-quant/pairsignal/internal/domain"
)

// opportunityEpsilon separates real training residuals from float noise when
// counting trade opportunities.
const opportunityEpsilon = 1e-9

// SnapshotParams configures the correlation snapshot computation.
type SnapshotParams struct {
	InstrumentX   string
	InstrumentY   string
	Window        time.Duration
	PeriodMinutes int
	MinSamples    int
	CacheTTL      time.Duration
}

// SnapshotService builds the correlation snapshot served to the dashboard,
// caching the serialized result so repeated queries do not hammer the venue.
type SnapshotService struct {
	candles domain.CandleSource
	cache   domain.SnapshotCache // may be nil
	logger  *slog.Logger
	params  SnapshotParams
	now     func() time.Time

	// mu serializes recomputation so a cache miss under concurrent load
	// fetches the candle history once.
	mu sync.Mutex
}

// NewSnapshotService creates a SnapshotService. cache may be nil to disable
// caching.
func NewSnapshotService(candles domain.CandleSource, cache domain.SnapshotCache, params SnapshotParams, logger *slog.Logger) *SnapshotService {
	return &SnapshotService{
		candles: candles,
		cache:   cache,
		logger:  logger.With(slog.String("component", "snapshot_service")),
		params:  params,
		now:     time.Now,
	}
}

// GetSnapshot returns the current correlation snapshot, from cache when
// fresh enough, otherwise recomputed from candle history.
func (s *SnapshotService) GetSnapshot(ctx context.Context) (domain.CorrelationSnapshot, error) {
	key := s.cacheKey()

	if snap, ok := s.fromCache(ctx, key); ok {
		return snap, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Another request may have filled the cache while we waited.
	if snap, ok := s.fromCache(ctx, key); ok {
		return snap, nil
	}

	snap, err := s.compute(ctx)
	if err != nil {
		return domain.CorrelationSnapshot{}, err
	}

	if s.cache != nil {
		payload, err := json.Marshal(snap)
		if err == nil {
			err = s.cache.Set(ctx, key, payload, s.params.CacheTTL)
		}
		if err != nil {
			s.logger.WarnContext(ctx, "snapshot cache write failed",
				slog.String("error", err.Error()))
		}
	}

	return snap, nil
}

func (s *SnapshotService) cacheKey() string {
	return fmt.Sprintf("snapshot:%s:%s:%d",
		s.params.InstrumentX, s.params.InstrumentY, s.params.PeriodMinutes)
}

func (s *SnapshotService) fromCache(ctx context.Context, key string) (domain.CorrelationSnapshot, bool) {
	if s.cache == nil {
		return domain.CorrelationSnapshot{}, false
	}
	payload, err := s.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.WarnContext(ctx, "snapshot cache read failed",
				slog.String("error", err.Error()))
		}
		return domain.CorrelationSnapshot{}, false
	}
	var snap domain.CorrelationSnapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		s.logger.WarnContext(ctx, "snapshot cache entry corrupt, recomputing",
			slog.String("error", err.Error()))
		return domain.CorrelationSnapshot{}, false
	}
	return snap, true
}

// compute pulls fresh candle history for both legs, aligns it, and derives
// the regression residuals and summary statistics.
func (s *SnapshotService) compute(ctx context.Context) (domain.CorrelationSnapshot, error) {
	end := s.now().UTC()
	start := end.Add(-s.params.Window)

	series, err := s.fetchAligned(ctx, start, end)
	if err != nil {
		return domain.CorrelationSnapshot{}, err
	}

	fit, err := analytics.FitOLS(series)
	if err != nil {
		return domain.CorrelationSnapshot{}, err
	}

	opportunities := 0
	for _, r := range fit.Residuals {
		if math.Abs(r.Residual) > opportunityEpsilon {
			opportunities++
		}
	}

	return domain.CorrelationSnapshot{
		TimeSeries:         series.Points,
		Residuals:          fit.Residuals,
		Correlation:        analytics.Pearson(series),
		TotalPoints:        series.TotalX + series.TotalY - series.Overlap(),
		OverlappingPoints:  series.Overlap(),
		TradeOpportunities: opportunities,
		GeneratedAt:        end,
	}, nil
}

// fetchAligned tries the configured candle width first, then the remaining
// valid widths, until one produces enough overlap.
func (s *SnapshotService) fetchAligned(ctx context.Context, start, end time.Time) (domain.AlignedSeries, error) {
	periods := []int{s.params.PeriodMinutes}
	for _, p := range []int{1, 60, 1440} {
		if p != s.params.PeriodMinutes {
			periods = append(periods, p)
		}
	}

	var lastErr error
	for _, period := range periods {
		xs, err := s.candles.FetchCandles(ctx, s.params.InstrumentX, start, end, period)
		if err != nil {
			return domain.AlignedSeries{}, err
		}
		ys, err := s.candles.FetchCandles(ctx, s.params.InstrumentY, start, end, period)
		if err != nil {
			return domain.AlignedSeries{}, err
		}

		series, err := analytics.Align(xs, ys, s.params.MinSamples)
		if err != nil {
			if errors.Is(err, domain.ErrInsufficientData) {
				lastErr = err
				continue
			}
			return domain.AlignedSeries{}, err
		}
		return series, nil
	}
	return domain.AlignedSeries{}, lastErr
}
