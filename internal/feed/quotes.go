// Package feed adapts the Kalshi REST API to the engine's data source
// interfaces. Prices cross the boundary here: Kalshi quotes in integer
// cents, everything downstream works in dollars.
package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/ktp-quant/pairsignal/internal/domain"
	"github.com/ktp-quant/pairsignal/internal/platform/kalshi"
)

// quoteAPI is the slice of the Kalshi client the quote feed needs.
type quoteAPI interface {
	GetMarket(ctx context.Context, ticker string) (kalshi.Market, error)
	GetOrderbook(ctx context.Context, ticker string) (kalshi.Orderbook, error)
}

// QuoteFeed implements domain.QuoteSource by polling the Kalshi orderbook,
// falling back to the last traded price when the book is one-sided or empty.
type QuoteFeed struct {
	api quoteAPI
	now func() time.Time
}

// NewQuoteFeed wraps a Kalshi client as a quote source.
func NewQuoteFeed(client *kalshi.Client) *QuoteFeed {
	return &QuoteFeed{api: client, now: time.Now}
}

// FetchQuote returns the current best bid/ask for the instrument. When the
// book has no two-sided market, the last traded price stands in for both
// sides so the mid is still defined. Returns ErrQuoteUnavailable when the
// exchange cannot produce any usable price.
func (f *QuoteFeed) FetchQuote(ctx context.Context, instrumentID string) (domain.LiveQuote, error) {
	ob, err := f.api.GetOrderbook(ctx, instrumentID)
	if err != nil {
		return domain.LiveQuote{}, fmt.Errorf("feed: orderbook %s: %v: %w",
			instrumentID, err, domain.ErrQuoteUnavailable)
	}

	bid := ob.BestYesBid()
	ask := ob.BestYesAsk()
	if bid > 0 && ask > 0 {
		return domain.LiveQuote{
			InstrumentID: instrumentID,
			BestBid:      float64(bid) / 100,
			BestAsk:      float64(ask) / 100,
			ObservedAt:   f.now().UTC(),
		}, nil
	}

	m, err := f.api.GetMarket(ctx, instrumentID)
	if err != nil {
		return domain.LiveQuote{}, fmt.Errorf("feed: market %s: %v: %w",
			instrumentID, err, domain.ErrQuoteUnavailable)
	}
	if m.LastPrice <= 0 {
		return domain.LiveQuote{}, fmt.Errorf("feed: %s has no book and no trades: %w",
			instrumentID, domain.ErrQuoteUnavailable)
	}

	last := m.LastPrice / 100
	return domain.LiveQuote{
		InstrumentID: instrumentID,
		BestBid:      last,
		BestAsk:      last,
		ObservedAt:   f.now().UTC(),
	}, nil
}

var _ domain.QuoteSource = (*QuoteFeed)(nil)
