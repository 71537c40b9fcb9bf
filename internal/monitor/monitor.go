// Package monitor runs the live polling loop: it evaluates fresh quotes
// against the persisted model and emits open/close signal transitions.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/ktp-quant/pairsignal/internal/domain"
)

// Config holds the loop timings.
type Config struct {
	PollInterval time.Duration
	RetryBase    time.Duration
	RetryMax     time.Duration
	// MinSignalInterval suppresses a new open within this window of the
	// previous open. Zero disables the cooldown.
	MinSignalInterval time.Duration
}

// Monitor owns the signal state machine. One standing deviation produces one
// open event; the signal stays open until the z-score falls back under the
// threshold, which produces one close event.
type Monitor struct {
	quotes domain.QuoteSource
	store  domain.ModelStore
	sink   Sink // may be nil
	logger *slog.Logger
	cfg    Config

	now   func() time.Time
	newID func() string
}

// New creates a Monitor. sink may be nil when no consumer is wired.
func New(quotes domain.QuoteSource, store domain.ModelStore, sink Sink, cfg Config, logger *slog.Logger) *Monitor {
	return &Monitor{
		quotes: quotes,
		store:  store,
		sink:   sink,
		logger: logger.With(slog.String("component", "monitor")),
		cfg:    cfg,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// Run loads the model and polls until ctx is cancelled. A missing or corrupt
// artifact is fatal; quote failures are transient and retried with
// exponential backoff.
func (m *Monitor) Run(ctx context.Context) error {
	model, err := m.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("monitor: cannot start without a model: %w", err)
	}

	m.logger.InfoContext(ctx, "monitor started",
		slog.String("instrument_x", model.InstrumentX),
		slog.String("instrument_y", model.InstrumentY),
		slog.Float64("threshold_sigma", model.ThresholdSigma),
		slog.Duration("poll_interval", m.cfg.PollInterval),
	)
	if model.WeakCorrelation {
		m.logger.WarnContext(ctx, "model was fitted below the correlation gate",
			slog.Float64("r_squared", model.RSquared))
	}

	var state domain.SignalState
	var lastOpen time.Time
	var hasOpened bool
	retry := Backoff{Base: m.cfg.RetryBase, Max: m.cfg.RetryMax}

	for {
		obs, err := m.observe(ctx, model)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			delay := retry.Next()
			m.logger.WarnContext(ctx, "quote fetch failed, backing off",
				slog.String("error", err.Error()),
				slog.Duration("retry_in", delay),
			)
			if !sleep(ctx, delay) {
				return ctx.Err()
			}
			continue
		}
		retry.Reset()

		m.emitResidual(ctx, obs)

		above := math.Abs(obs.ZScore) >= model.ThresholdSigma
		switch {
		case above && !state.IsOpen:
			if m.cfg.MinSignalInterval > 0 && hasOpened &&
				obs.ObservedAt.Sub(lastOpen) < m.cfg.MinSignalInterval {
				m.logger.DebugContext(ctx, "open suppressed by cooldown",
					slog.Float64("z_score", obs.ZScore),
					slog.Time("last_open", lastOpen),
				)
				break
			}
			state.IsOpen = true
			state.OpenedAt = obs.ObservedAt
			lastOpen = obs.ObservedAt
			hasOpened = true
			m.emitTransition(ctx, model, domain.SignalOpened, obs)

		case !above && state.IsOpen:
			state.IsOpen = false
			m.emitTransition(ctx, model, domain.SignalClosed, obs)
		}
		state.LastZScore = obs.ZScore

		if !sleep(ctx, m.cfg.PollInterval) {
			return ctx.Err()
		}
	}
}

// observe fetches both legs and evaluates the model. A panic in a quote
// source is converted into a transient error so one bad response cannot take
// the loop down.
func (m *Monitor) observe(ctx context.Context, model domain.FittedModel) (obs domain.ResidualObservation, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("monitor: quote source panic: %v: %w", r, domain.ErrQuoteUnavailable)
		}
	}()

	xq, err := m.quotes.FetchQuote(ctx, model.InstrumentX)
	if err != nil {
		return domain.ResidualObservation{}, err
	}
	yq, err := m.quotes.FetchQuote(ctx, model.InstrumentY)
	if err != nil {
		return domain.ResidualObservation{}, err
	}

	return domain.Observe(model, xq.Mid(), yq.Mid(), m.now().UTC()), nil
}

func (m *Monitor) emitResidual(ctx context.Context, obs domain.ResidualObservation) {
	m.logger.DebugContext(ctx, "observation",
		slog.Float64("x_mid", obs.XMid),
		slog.Float64("y_mid", obs.YMid),
		slog.Float64("residual", obs.Residual),
		slog.Float64("z_score", obs.ZScore),
	)
	if m.sink == nil {
		return
	}
	if err := m.sink.Residual(ctx, obs); err != nil {
		m.logger.WarnContext(ctx, "residual sink failed", slog.String("error", err.Error()))
	}
}

func (m *Monitor) emitTransition(ctx context.Context, model domain.FittedModel, typ domain.SignalEventType, obs domain.ResidualObservation) {
	ev := domain.SignalEvent{
		ID:          m.newID(),
		Type:        typ,
		InstrumentX: model.InstrumentX,
		InstrumentY: model.InstrumentY,
		Observation: obs,
	}
	if typ == domain.SignalOpened {
		ev.Direction = domain.DirectionFor(obs.Residual)
	}

	level := slog.LevelInfo
	if typ == domain.SignalOpened {
		level = slog.LevelWarn
	}
	m.logger.Log(ctx, level, string(typ),
		slog.String("event_id", ev.ID),
		slog.String("direction", string(ev.Direction)),
		slog.Float64("z_score", obs.ZScore),
		slog.Float64("residual", obs.Residual),
	)

	if m.sink == nil {
		return
	}
	if err := m.sink.SignalEvent(ctx, ev); err != nil {
		m.logger.ErrorContext(ctx, "signal sink failed",
			slog.String("event_id", ev.ID),
			slog.String("error", err.Error()),
		)
	}
}

// sleep waits for d or until ctx is cancelled; it reports false on
// cancellation.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
