package domain

import "errors"

var (
	// ErrNotFound indicates a missing artifact or record (e.g. no persisted model).
	ErrNotFound = errors.New("not found")

	// ErrInsufficientData indicates too few overlapping points to fit a model.
	ErrInsufficientData = errors.New("insufficient overlapping data")

	// ErrWeakCorrelation indicates the fit's R-squared is below the configured minimum.
	ErrWeakCorrelation = errors.New("correlation below minimum r-squared")

	// ErrDegenerateModel indicates a fit whose residual distribution has no
	// usable spread (zero or non-finite residual standard deviation).
	ErrDegenerateModel = errors.New("degenerate model")

	// ErrCorruptModel indicates a persisted model artifact that fails invariant
	// checks on load.
	ErrCorruptModel = errors.New("corrupt model artifact")

	// ErrQuoteUnavailable indicates a market responded without a usable price
	// (empty book and no last trade).
	ErrQuoteUnavailable = errors.New("no usable quote")
)
