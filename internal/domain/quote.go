package domain

import (
	"context"
	"time"
)

// LiveQuote is the current top-of-book for one instrument.
type LiveQuote struct {
	InstrumentID string
	BestBid      float64
	BestAsk      float64
	ObservedAt   time.Time
}

// Mid returns the mid price. The same derivation is used when building the
// historical fit and when evaluating live prices; mixing conventions would
// bias every residual.
func (q LiveQuote) Mid() float64 {
	return (q.BestBid + q.BestAsk) / 2
}

// QuoteSource supplies the current quote for an instrument on demand. Fetches
// may fail transiently (network, auth, malformed response) and the caller is
// expected to retry with backoff.
type QuoteSource interface {
	FetchQuote(ctx context.Context, instrumentID string) (LiveQuote, error)
}
