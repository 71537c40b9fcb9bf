package domain

import (
	"context"
	"time"
)

// CandlePoint is a single close observation from a historical candle series.
// Prices are in probability units (Kalshi cents / 100).
type CandlePoint struct {
	Time  time.Time
	Close float64
}

// AlignedPoint is one row of an aligned pair series: both instruments had a
// candle ending at the same instant.
type AlignedPoint struct {
	Time time.Time `json:"time"`
	X    float64   `json:"x"`
	Y    float64   `json:"y"`
}

// AlignedSeries is the inner join of two candle series on candle end time,
// ordered by strictly increasing time.
type AlignedSeries struct {
	Points []AlignedPoint
	TotalX int // candle count of the X series before joining
	TotalY int // candle count of the Y series before joining
}

// Overlap returns the number of joined rows.
func (s AlignedSeries) Overlap() int {
	return len(s.Points)
}

// CandleSource supplies historical candle series for an instrument. A source
// may return an empty series for a window/period combination the venue cannot
// serve at that granularity.
type CandleSource interface {
	FetchCandles(ctx context.Context, instrumentID string, start, end time.Time, periodMinutes int) ([]CandlePoint, error)
}
