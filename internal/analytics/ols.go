package analytics

import (
	"fmt"
	"math"

	"github.com/ktp-quant/pairsignal/internal/domain"
)

// Fit is the result of an ordinary least squares regression of y on x,
// together with the training residuals used for charting and for the
// residual-spread estimate.
type Fit struct {
	Slope          float64
	Intercept      float64
	RSquared       float64
	ResidualStdDev float64 // population standard deviation of the residuals
	Residuals      []domain.TimedResidual
}

// FitOLS regresses y on x over all aligned points. The residual standard
// deviation is the population convention (divide by n); the monitor z-scores
// live residuals against the same value, so the convention only has to be
// applied consistently, and it is applied in exactly one place: here.
//
// Returns ErrInsufficientData for fewer than 2 points and ErrDegenerateModel
// when x has no variance (the slope is undefined).
func FitOLS(series domain.AlignedSeries) (Fit, error) {
	n := series.Overlap()
	if n < 2 {
		return Fit{}, fmt.Errorf("analytics: %d points cannot determine a line: %w",
			n, domain.ErrInsufficientData)
	}

	var sumX, sumY float64
	for _, p := range series.Points {
		sumX += p.X
		sumY += p.Y
	}
	meanX := sumX / float64(n)
	meanY := sumY / float64(n)

	var covXY, varX, varY float64
	for _, p := range series.Points {
		dx := p.X - meanX
		dy := p.Y - meanY
		covXY += dx * dy
		varX += dx * dx
		varY += dy * dy
	}
	if varX == 0 {
		return Fit{}, fmt.Errorf("analytics: x series is constant: %w", domain.ErrDegenerateModel)
	}

	fit := Fit{
		Slope: covXY / varX,
	}
	fit.Intercept = meanY - fit.Slope*meanX

	var sse float64
	fit.Residuals = make([]domain.TimedResidual, n)
	for i, p := range series.Points {
		r := p.Y - (fit.Slope*p.X + fit.Intercept)
		fit.Residuals[i] = domain.TimedResidual{Time: p.Time, Residual: r}
		sse += r * r
	}
	fit.ResidualStdDev = math.Sqrt(sse / float64(n))

	// SST == 0 means y is constant: the fit explains everything trivially but
	// the residual spread is zero, which Validate rejects downstream anyway.
	if varY == 0 {
		fit.RSquared = 1
	} else {
		fit.RSquared = 1 - sse/varY
	}
	if math.IsNaN(fit.RSquared) {
		return Fit{}, fmt.Errorf("analytics: r_squared is NaN: %w", domain.ErrDegenerateModel)
	}
	// Guard float noise so callers can rely on [0, 1].
	if fit.RSquared < 0 {
		fit.RSquared = 0
	}
	if fit.RSquared > 1 {
		fit.RSquared = 1
	}

	return fit, nil
}

// Pearson returns the Pearson correlation coefficient of the aligned pair,
// or 0 when either side has no variance.
func Pearson(series domain.AlignedSeries) float64 {
	n := series.Overlap()
	if n < 2 {
		return 0
	}

	var sumX, sumY float64
	for _, p := range series.Points {
		sumX += p.X
		sumY += p.Y
	}
	meanX := sumX / float64(n)
	meanY := sumY / float64(n)

	var covXY, varX, varY float64
	for _, p := range series.Points {
		dx := p.X - meanX
		dy := p.Y - meanY
		covXY += dx * dy
		varX += dx * dx
		varY += dy * dy
	}
	if varX == 0 || varY == 0 {
		return 0
	}
	return covXY / math.Sqrt(varX*varY)
}
