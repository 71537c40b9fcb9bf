// Package notify provides a multi-channel notification system. Notifications
// are dispatched to all registered senders (Telegram, Discord, etc.) and can be
// filtered by event type so operators receive only the alerts they care about.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ktp-quant/pairsignal/internal/domain"
)

// Event types the engine emits.
const (
	EventSignalOpened = "signal_opened"
	EventSignalClosed = "signal_closed"
	EventModelFitted  = "model_fitted"
	EventError        = "error"
)

// Sender is the interface that each notification channel must implement.
type Sender interface {
	// Send delivers a notification with the given title and message body.
	Send(ctx context.Context, title, message string) error
	// Name returns a human-readable identifier for the sender (e.g. "telegram").
	Name() string
}

// Notifier dispatches notifications to one or more Senders. It maintains a set
// of allowed event types; Notify only forwards messages whose event type is in
// the allowed set.
type Notifier struct {
	senders []Sender
	events  map[string]bool // allowed event types
	logger  *slog.Logger
}

// NewNotifier creates a Notifier that will deliver to the given senders. Only
// events whose type appears in the events slice will be forwarded by Notify.
// If events is empty, all event types are allowed.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		allowed[strings.TrimSpace(e)] = true
	}
	return &Notifier{
		senders: senders,
		events:  allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Notify sends a notification to all senders only if the event type is in the
// allowed list. If no events were configured (empty list), all events pass.
func (n *Notifier) Notify(ctx context.Context, event, title, message string) error {
	if len(n.events) > 0 && !n.events[event] {
		n.logger.DebugContext(ctx, "event filtered out",
			slog.String("event", event),
		)
		return nil
	}

	return n.dispatch(ctx, title, message)
}

// NotifySignal formats and delivers a signal transition event.
func (n *Notifier) NotifySignal(ctx context.Context, ev domain.SignalEvent) error {
	var title string
	switch ev.Type {
	case domain.SignalOpened:
		title = fmt.Sprintf("Signal OPENED: %s / %s", ev.InstrumentX, ev.InstrumentY)
	case domain.SignalClosed:
		title = fmt.Sprintf("Signal closed: %s / %s", ev.InstrumentX, ev.InstrumentY)
	default:
		title = fmt.Sprintf("Signal %s: %s / %s", ev.Type, ev.InstrumentX, ev.InstrumentY)
	}

	msg := fmt.Sprintf("z-score %.2f (residual %+.4f)\ndirection: %s\nat %s",
		ev.Observation.ZScore, ev.Observation.Residual, ev.Direction,
		ev.Observation.ObservedAt.Format(time.RFC3339))
	return n.Notify(ctx, string(ev.Type), title, msg)
}

// NotifyModelFitted formats and delivers a model refit event.
func (n *Notifier) NotifyModelFitted(ctx context.Context, m domain.FittedModel) error {
	title := fmt.Sprintf("Model fitted: %s / %s", m.InstrumentX, m.InstrumentY)
	msg := fmt.Sprintf("slope %.4f, intercept %.4f\nR² %.3f over %d samples\nresidual σ %.5f",
		m.Slope, m.Intercept, m.RSquared, m.SampleCount, m.ResidualStdDev)
	if m.WeakCorrelation {
		msg += "\nwarning: weak correlation"
	}
	return n.Notify(ctx, EventModelFitted, title, msg)
}

// NotifyError delivers an operational failure to the operator channels.
func (n *Notifier) NotifyError(ctx context.Context, message string) error {
	return n.Notify(ctx, EventError, "Pair signal engine error", message)
}

// dispatch iterates over all senders and sends the notification. Errors from
// individual senders are collected and returned as a combined error; a single
// sender failure does not prevent delivery to the remaining senders.
func (n *Notifier) dispatch(ctx context.Context, title, message string) error {
	if len(n.senders) == 0 {
		return nil
	}

	var errs []string
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Sprintf("%s: %v", s.Name(), err))
		} else {
			n.logger.DebugContext(ctx, "notification sent",
				slog.String("sender", s.Name()),
				slog.String("title", title),
			)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %s", len(errs), strings.Join(errs, "; "))
	}
	return nil
}
