package domain

import "time"

// ResidualObservation is one live evaluation of the pair against the fitted
// model.
type ResidualObservation struct {
	ObservedAt time.Time `json:"observed_at"`
	XMid       float64   `json:"x_mid"`
	YMid       float64   `json:"y_mid"`
	PredictedY float64   `json:"predicted_y"`
	Residual   float64   `json:"residual"`
	ZScore     float64   `json:"z_score"`
}

// Observe evaluates the model at the given live mid prices.
func Observe(m FittedModel, xMid, yMid float64, at time.Time) ResidualObservation {
	predicted := m.PredictY(xMid)
	residual := yMid - predicted
	return ResidualObservation{
		ObservedAt: at,
		XMid:       xMid,
		YMid:       yMid,
		PredictedY: predicted,
		Residual:   residual,
		ZScore:     residual / m.ResidualStdDev,
	}
}

// SignalState tracks whether a deviation signal is currently standing. It is
// owned exclusively by the monitor's control loop; the hysteresis (stay open
// until the z-score drops back under threshold) is what prevents re-emitting
// the same standing deviation every poll.
type SignalState struct {
	IsOpen     bool
	OpenedAt   time.Time
	LastZScore float64
}

// SignalEventType distinguishes open and close transitions.
type SignalEventType string

const (
	SignalOpened SignalEventType = "signal_opened"
	SignalClosed SignalEventType = "signal_closed"
)

// SignalDirection says which leg is rich. Positive residual means Y trades
// above the model's prediction (sell Y / buy X); negative means Y is cheap.
type SignalDirection string

const (
	DirectionSellPair SignalDirection = "sell_pair" // Y rich: sell Y, buy X
	DirectionBuyPair  SignalDirection = "buy_pair"  // Y cheap: buy Y, sell X
)

// DirectionFor classifies a residual.
func DirectionFor(residual float64) SignalDirection {
	if residual > 0 {
		return DirectionSellPair
	}
	return DirectionBuyPair
}

// SignalEvent is an emitted open/close transition, suitable for logging,
// notification, the event bus, and the persistent event history.
type SignalEvent struct {
	ID          string              `json:"id"`
	Type        SignalEventType     `json:"type"`
	InstrumentX string              `json:"instrument_x"`
	InstrumentY string              `json:"instrument_y"`
	Direction   SignalDirection     `json:"direction,omitempty"`
	Observation ResidualObservation `json:"observation"`
}
