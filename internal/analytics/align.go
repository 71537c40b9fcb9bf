// Package analytics contains the pure numeric core: series alignment,
// ordinary least squares fitting, and correlation. No I/O happens here so the
// whole package is testable without a venue connection.
package analytics

import (
	"fmt"
	"sort"

	"github.com/ktp-quant/pairsignal/internal/domain"
)

// Align inner-joins two candle series on exact candle end time, preserving
// time order. Points without a partner in the other series are discarded.
// Kalshi candles for the same requested period share bucket boundaries, so an
// exact join is sufficient; no nearest-neighbor tolerance is applied.
//
// Returns ErrInsufficientData when fewer than minSamples rows overlap.
func Align(xs, ys []domain.CandlePoint, minSamples int) (domain.AlignedSeries, error) {
	byTime := make(map[int64]float64, len(ys))
	for _, p := range ys {
		byTime[p.Time.Unix()] = p.Close
	}

	series := domain.AlignedSeries{
		TotalX: len(xs),
		TotalY: len(ys),
	}
	seen := make(map[int64]bool, len(xs))
	for _, p := range xs {
		ts := p.Time.Unix()
		if seen[ts] {
			continue
		}
		seen[ts] = true
		if y, ok := byTime[ts]; ok {
			series.Points = append(series.Points, domain.AlignedPoint{
				Time: p.Time.UTC(),
				X:    p.Close,
				Y:    y,
			})
		}
	}

	sort.Slice(series.Points, func(i, j int) bool {
		return series.Points[i].Time.Before(series.Points[j].Time)
	})

	if series.Overlap() < minSamples {
		return series, fmt.Errorf("analytics: %d overlapping points, need %d: %w",
			series.Overlap(), minSamples, domain.ErrInsufficientData)
	}
	return series, nil
}
