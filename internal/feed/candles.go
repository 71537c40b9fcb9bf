package feed

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ktp-quant/pairsignal/internal/domain"
	"github.com/ktp-quant/pairsignal/internal/platform/kalshi"
)

// candleAPI is the slice of the Kalshi client the candle feed needs.
type candleAPI interface {
	GetMarket(ctx context.Context, ticker string) (kalshi.Market, error)
	GetEvent(ctx context.Context, eventTicker string) (kalshi.Event, error)
	GetCandlesticks(ctx context.Context, seriesTicker, marketTicker string, start, end time.Time, periodMinutes int) ([]kalshi.Candlestick, error)
}

// CandleFeed implements domain.CandleSource on the Kalshi candlestick
// endpoint. Candles are filed under a series ticker, which the API only
// exposes via market -> event -> series, so resolutions are cached.
type CandleFeed struct {
	api candleAPI

	mu     sync.Mutex
	series map[string]string // market ticker -> series ticker
}

// NewCandleFeed wraps a Kalshi client as a candle source.
func NewCandleFeed(client *kalshi.Client) *CandleFeed {
	return &CandleFeed{api: client, series: make(map[string]string)}
}

// FetchCandles returns the close-price history for one instrument. Buckets
// without a traded close fall back to the bid/ask mid; buckets with neither
// are dropped.
func (f *CandleFeed) FetchCandles(ctx context.Context, instrumentID string, start, end time.Time, periodMinutes int) ([]domain.CandlePoint, error) {
	seriesTicker, err := f.resolveSeries(ctx, instrumentID)
	if err != nil {
		return nil, err
	}

	sticks, err := f.api.GetCandlesticks(ctx, seriesTicker, instrumentID, start, end, periodMinutes)
	if err != nil {
		return nil, fmt.Errorf("feed: candles %s: %w", instrumentID, err)
	}

	points := make([]domain.CandlePoint, 0, len(sticks))
	for _, cs := range sticks {
		px, ok := closePrice(cs)
		if !ok {
			continue
		}
		points = append(points, domain.CandlePoint{
			Time:  cs.EndTime(),
			Close: px / 100,
		})
	}
	return points, nil
}

func (f *CandleFeed) resolveSeries(ctx context.Context, instrumentID string) (string, error) {
	f.mu.Lock()
	cached, ok := f.series[instrumentID]
	f.mu.Unlock()
	if ok {
		return cached, nil
	}

	m, err := f.api.GetMarket(ctx, instrumentID)
	if err != nil {
		return "", fmt.Errorf("feed: resolve series for %s: %w", instrumentID, err)
	}
	ev, err := f.api.GetEvent(ctx, m.EventTicker)
	if err != nil {
		return "", fmt.Errorf("feed: resolve series for %s: %w", instrumentID, err)
	}
	if ev.SeriesTicker == "" {
		return "", fmt.Errorf("feed: event %s has no series ticker", m.EventTicker)
	}

	f.mu.Lock()
	f.series[instrumentID] = ev.SeriesTicker
	f.mu.Unlock()
	return ev.SeriesTicker, nil
}

// closePrice picks the bucket's close in cents: the traded close when one
// exists, otherwise the bid/ask mid.
func closePrice(cs kalshi.Candlestick) (float64, bool) {
	if cs.Price.Close != nil && *cs.Price.Close > 0 {
		return *cs.Price.Close, true
	}
	if cs.YesBid.Close != nil && cs.YesAsk.Close != nil {
		bid, ask := *cs.YesBid.Close, *cs.YesAsk.Close
		if bid > 0 && ask > 0 {
			return (bid + ask) / 2, true
		}
	}
	return 0, false
}

var _ domain.CandleSource = (*CandleFeed)(nil)
