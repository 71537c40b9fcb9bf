package domain

import (
	"context"
	"fmt"
	"math"
	"time"
)

// FittedModel is the persisted result of one estimation run: the linear
// relationship Y ≈ Slope·X + Intercept plus the residual distribution used to
// z-score live deviations. A model is immutable once fitted; re-running
// estimation supersedes the artifact rather than mutating it.
type FittedModel struct {
	InstrumentX     string    `json:"instrument_x"`
	InstrumentY     string    `json:"instrument_y"`
	Slope           float64   `json:"slope"`
	Intercept       float64   `json:"intercept"`
	RSquared        float64   `json:"r_squared"`
	ResidualStdDev  float64   `json:"residual_std_dev"`
	SampleCount     int       `json:"sample_count"`
	ThresholdSigma  float64   `json:"threshold_sigma"`
	WeakCorrelation bool      `json:"weak_correlation"`
	FittedAt        time.Time `json:"fitted_at"`
}

// Validate checks the invariants a model must satisfy before it may be used
// for live monitoring. It is applied both after fitting and after loading a
// persisted artifact.
func (m FittedModel) Validate() error {
	for name, v := range map[string]float64{
		"slope":            m.Slope,
		"intercept":        m.Intercept,
		"r_squared":        m.RSquared,
		"residual_std_dev": m.ResidualStdDev,
		"threshold_sigma":  m.ThresholdSigma,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%s is not finite: %w", name, ErrCorruptModel)
		}
	}
	if m.InstrumentX == "" || m.InstrumentY == "" {
		return fmt.Errorf("missing instrument ids: %w", ErrCorruptModel)
	}
	if m.SampleCount < 1 {
		return fmt.Errorf("sample_count %d < 1: %w", m.SampleCount, ErrCorruptModel)
	}
	if m.ResidualStdDev <= 0 {
		return fmt.Errorf("residual_std_dev %v <= 0: %w", m.ResidualStdDev, ErrCorruptModel)
	}
	if m.ThresholdSigma <= 0 {
		return fmt.Errorf("threshold_sigma %v <= 0: %w", m.ThresholdSigma, ErrCorruptModel)
	}
	return nil
}

// PredictY returns the model's predicted Y price for a given X price.
func (m FittedModel) PredictY(x float64) float64 {
	return m.Slope*x + m.Intercept
}

// ModelStore persists and loads the single fitted model artifact.
type ModelStore interface {
	// Save atomically replaces the persisted artifact.
	Save(ctx context.Context, model FittedModel) error
	// Load returns the persisted artifact, ErrNotFound when none exists, or
	// ErrCorruptModel when the artifact fails invariant checks.
	Load(ctx context.Context) (FittedModel, error)
}
