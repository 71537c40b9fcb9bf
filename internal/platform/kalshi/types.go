package kalshi

import "time"

// --------------------------------------------------------------------------
// Kalshi API DTOs
// --------------------------------------------------------------------------

// Market represents a market as returned by the Kalshi REST API. Only the
// fields the signal engine reads are mapped.
type Market struct {
	Ticker      string  `json:"ticker"`
	EventTicker string  `json:"event_ticker"`
	Title       string  `json:"title"`
	Status      string  `json:"status"` // "open", "closed", "settled"
	YesBid      float64 `json:"yes_bid"`
	YesAsk      float64 `json:"yes_ask"`
	LastPrice   float64 `json:"last_price"`
	Volume      int64   `json:"volume"`
	OpenTime    string  `json:"open_time"`
	CloseTime   string  `json:"close_time"`
}

// Event is the event a market belongs to. The series ticker is needed to
// address the candlestick endpoint.
type Event struct {
	EventTicker  string `json:"event_ticker"`
	SeriesTicker string `json:"series_ticker"`
	Title        string `json:"title"`
}

// PriceLevel is a single price+quantity entry in the Kalshi orderbook.
type PriceLevel struct {
	Price    int64 `json:"price"`    // in cents (1-99)
	Quantity int64 `json:"quantity"` // number of contracts
}

// Orderbook represents the current book for a market. Kalshi publishes
// resting YES bids and NO bids; the best YES ask is implied by the best NO
// bid (ask = 100 - no_bid).
type Orderbook struct {
	Ticker    string       `json:"ticker"`
	YesBids   []PriceLevel `json:"yes"`
	NoBids    []PriceLevel `json:"no"`
	Timestamp time.Time    `json:"-"`
}

// BestYesBid returns the highest resting YES bid in cents, or 0 when the
// side is empty.
func (b Orderbook) BestYesBid() int64 {
	var best int64
	for _, lvl := range b.YesBids {
		if lvl.Price > best {
			best = lvl.Price
		}
	}
	return best
}

// BestYesAsk returns the implied best YES ask in cents, or 0 when no NO
// bids are resting.
func (b Orderbook) BestYesAsk() int64 {
	var bestNo int64
	for _, lvl := range b.NoBids {
		if lvl.Price > bestNo {
			bestNo = lvl.Price
		}
	}
	if bestNo == 0 {
		return 0
	}
	return 100 - bestNo
}

// OHLC carries the candle aggregates for one price stream. Fields are
// pointers because Kalshi omits them for buckets without activity.
type OHLC struct {
	Open  *float64 `json:"open"`
	High  *float64 `json:"high"`
	Low   *float64 `json:"low"`
	Close *float64 `json:"close"`
}

// Candlestick is one bucket from the candlestick history endpoint.
type Candlestick struct {
	EndPeriodTs  int64 `json:"end_period_ts"`
	Price        OHLC  `json:"price"`
	YesBid       OHLC  `json:"yes_bid"`
	YesAsk       OHLC  `json:"yes_ask"`
	Volume       int64 `json:"volume"`
	OpenInterest int64 `json:"open_interest"`
}

// EndTime returns the bucket end as a UTC instant.
func (c Candlestick) EndTime() time.Time {
	return time.Unix(c.EndPeriodTs, 0).UTC()
}

// ErrorResponse represents a Kalshi API error response.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
