package domain

import "time"

// TimedResidual is a training residual at a point in time, used for charting.
type TimedResidual struct {
	Time     time.Time `json:"time"`
	Residual float64   `json:"residual"`
}

// CorrelationSnapshot is the read-only projection served to the dashboard:
// the aligned pair series, the training residuals, and summary statistics
// from the most recent estimation over the configured window.
type CorrelationSnapshot struct {
	TimeSeries         []AlignedPoint  `json:"timeSeries"`
	Residuals          []TimedResidual `json:"residuals"`
	Correlation        float64         `json:"correlation"`
	TotalPoints        int             `json:"totalPoints"`
	OverlappingPoints  int             `json:"overlappingPoints"`
	TradeOpportunities int             `json:"tradeOpportunities"`
	GeneratedAt        time.Time       `json:"generatedAt"`
}
