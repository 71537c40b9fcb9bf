package feed

import (
	"context"
	"testing"
	"time"

	"github.com/ktp-quant/pairsignal/internal/platform/kalshi"
)

type fakeCandleAPI struct {
	market       kalshi.Market
	event        kalshi.Event
	sticks       []kalshi.Candlestick
	marketCalls  int
	candleSeries string
}

func (f *fakeCandleAPI) GetMarket(ctx context.Context, ticker string) (kalshi.Market, error) {
	f.marketCalls++
	return f.market, nil
}

func (f *fakeCandleAPI) GetEvent(ctx context.Context, eventTicker string) (kalshi.Event, error) {
	return f.event, nil
}

func (f *fakeCandleAPI) GetCandlesticks(ctx context.Context, seriesTicker, marketTicker string, start, end time.Time, periodMinutes int) ([]kalshi.Candlestick, error) {
	f.candleSeries = seriesTicker
	return f.sticks, nil
}

func ptr(v float64) *float64 { return &v }

func TestFetchCandlesMapsAndFilters(t *testing.T) {
	api := &fakeCandleAPI{
		market: kalshi.Market{EventTicker: "KXSPACEXCOUNT-25"},
		event:  kalshi.Event{EventTicker: "KXSPACEXCOUNT-25", SeriesTicker: "KXSPACEXCOUNT"},
		sticks: []kalshi.Candlestick{
			{EndPeriodTs: 1700000000, Price: kalshi.OHLC{Close: ptr(41)}},
			// No trades: mid of bid/ask close.
			{EndPeriodTs: 1700003600, YesBid: kalshi.OHLC{Close: ptr(40)}, YesAsk: kalshi.OHLC{Close: ptr(44)}},
			// Dead bucket, dropped.
			{EndPeriodTs: 1700007200},
		},
	}
	feed := &CandleFeed{api: api, series: make(map[string]string)}

	start := time.Unix(1700000000, 0)
	points, err := feed.FetchCandles(context.Background(), "KXSPACEXCOUNT-25-140", start, start.Add(2*time.Hour), 60)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(points) != 2 {
		t.Fatalf("len(points) = %d, want 2", len(points))
	}
	if points[0].Close != 0.41 {
		t.Fatalf("first close = %v, want 0.41", points[0].Close)
	}
	if points[1].Close != 0.42 {
		t.Fatalf("second close = %v, want mid 0.42", points[1].Close)
	}
	if api.candleSeries != "KXSPACEXCOUNT" {
		t.Fatalf("series ticker = %q, want KXSPACEXCOUNT", api.candleSeries)
	}
}

func TestFetchCandlesCachesSeriesLookup(t *testing.T) {
	api := &fakeCandleAPI{
		market: kalshi.Market{EventTicker: "KXSPACEXCOUNT-25"},
		event:  kalshi.Event{SeriesTicker: "KXSPACEXCOUNT"},
	}
	feed := &CandleFeed{api: api, series: make(map[string]string)}

	ctx := context.Background()
	start := time.Unix(1700000000, 0)
	for i := 0; i < 3; i++ {
		if _, err := feed.FetchCandles(ctx, "KXSPACEXCOUNT-25-140", start, start.Add(time.Hour), 60); err != nil {
			t.Fatalf("fetch %d: %v", i, err)
		}
	}
	if api.marketCalls != 1 {
		t.Fatalf("market lookups = %d, want 1 (cached)", api.marketCalls)
	}
}
