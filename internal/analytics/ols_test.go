package analytics

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/ktp-quant/pairsignal/internal/domain"
)

func alignedSeries(t *testing.T, xs, ys []float64) domain.AlignedSeries {
	t.Helper()
	if len(xs) != len(ys) {
		t.Fatalf("fixture length mismatch")
	}
	base := time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC)
	series := domain.AlignedSeries{TotalX: len(xs), TotalY: len(ys)}
	for i := range xs {
		series.Points = append(series.Points, domain.AlignedPoint{
			Time: base.Add(time.Duration(i) * time.Hour),
			X:    xs[i],
			Y:    ys[i],
		})
	}
	return series
}

func TestFitOLSResidualMeanNearZero(t *testing.T) {
	series := alignedSeries(t,
		[]float64{0.10, 0.20, 0.30, 0.40, 0.50, 0.60},
		[]float64{0.31, 0.48, 0.74, 0.89, 1.12, 1.27},
	)

	fit, err := FitOLS(series)
	if err != nil {
		t.Fatalf("fit: %v", err)
	}

	var sum float64
	for _, r := range fit.Residuals {
		sum += r.Residual
	}
	mean := sum / float64(len(fit.Residuals))
	if math.Abs(mean) > 1e-12 {
		t.Fatalf("residual mean = %v, want ~0", mean)
	}
}

// FitOLS reports the raw regression even for a mechanically exact pair; the
// estimation pipeline rejects the near-zero spread before persisting, while
// charting callers still get the fit.
func TestFitOLSExactLinearFit(t *testing.T) {
	series := alignedSeries(t,
		[]float64{0.10, 0.20, 0.30, 0.40, 0.50},
		[]float64{0.25, 0.45, 0.65, 0.85, 1.05}, // y = 2x + 0.05
	)

	fit, err := FitOLS(series)
	if err != nil {
		t.Fatalf("fit: %v", err)
	}
	if math.Abs(fit.Slope-2) > 1e-12 {
		t.Fatalf("slope = %v, want 2", fit.Slope)
	}
	if math.Abs(fit.Intercept-0.05) > 1e-12 {
		t.Fatalf("intercept = %v, want 0.05", fit.Intercept)
	}
	if fit.RSquared != 1 {
		t.Fatalf("r_squared = %v, want exactly 1", fit.RSquared)
	}
	if fit.ResidualStdDev > 1e-12 {
		t.Fatalf("residual stddev = %v, want ~0", fit.ResidualStdDev)
	}
}

func TestFitOLSRSquaredInRange(t *testing.T) {
	series := alignedSeries(t,
		[]float64{0.1, 0.9, 0.2, 0.8, 0.3, 0.7},
		[]float64{0.5, 0.1, 0.9, 0.4, 0.2, 0.8}, // essentially noise
	)

	fit, err := FitOLS(series)
	if err != nil {
		t.Fatalf("fit: %v", err)
	}
	if fit.RSquared < 0 || fit.RSquared > 1 {
		t.Fatalf("r_squared = %v, want within [0, 1]", fit.RSquared)
	}
}

func TestFitOLSConstantXIsDegenerate(t *testing.T) {
	series := alignedSeries(t,
		[]float64{0.5, 0.5, 0.5, 0.5},
		[]float64{0.1, 0.2, 0.3, 0.4},
	)

	_, err := FitOLS(series)
	if !errors.Is(err, domain.ErrDegenerateModel) {
		t.Fatalf("err = %v, want ErrDegenerateModel", err)
	}
}

func TestFitOLSTooFewPoints(t *testing.T) {
	series := alignedSeries(t, []float64{0.5}, []float64{0.7})

	_, err := FitOLS(series)
	if !errors.Is(err, domain.ErrInsufficientData) {
		t.Fatalf("err = %v, want ErrInsufficientData", err)
	}
}

func TestPearsonPerfectCorrelation(t *testing.T) {
	series := alignedSeries(t,
		[]float64{0.1, 0.2, 0.3, 0.4, 0.5},
		[]float64{0.2, 0.4, 0.6, 0.8, 1.0},
	)
	if got := Pearson(series); math.Abs(got-1) > 1e-12 {
		t.Fatalf("pearson = %v, want 1", got)
	}

	for i := range series.Points {
		series.Points[i].Y = -series.Points[i].Y
	}
	if got := Pearson(series); math.Abs(got+1) > 1e-12 {
		t.Fatalf("pearson = %v, want -1", got)
	}
}

func TestPearsonNoVariance(t *testing.T) {
	series := alignedSeries(t,
		[]float64{0.5, 0.5, 0.5},
		[]float64{0.1, 0.2, 0.3},
	)
	if got := Pearson(series); got != 0 {
		t.Fatalf("pearson = %v, want 0 for constant series", got)
	}
}
