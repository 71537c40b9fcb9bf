package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ktp-quant/pairsignal/internal/domain"
	"github.com/ktp-quant/pairsignal/internal/notify"
)

// Bus channel names.
const (
	ChannelSignalEvents = "signal_events"
	ChannelResiduals    = "residuals"
)

// Sink consumes what the loop produces. Sink failures never stop the loop;
// the monitor logs them and moves on.
type Sink interface {
	SignalEvent(ctx context.Context, ev domain.SignalEvent) error
	Residual(ctx context.Context, obs domain.ResidualObservation) error
}

// MultiSink fans out to every child sink, collecting errors so one failing
// consumer does not starve the others.
type MultiSink []Sink

func (s MultiSink) SignalEvent(ctx context.Context, ev domain.SignalEvent) error {
	var errs []string
	for _, child := range s {
		if err := child.SignalEvent(ctx, ev); err != nil {
			errs = append(errs, err.Error())
		}
	}
	return joined(errs)
}

func (s MultiSink) Residual(ctx context.Context, obs domain.ResidualObservation) error {
	var errs []string
	for _, child := range s {
		if err := child.Residual(ctx, obs); err != nil {
			errs = append(errs, err.Error())
		}
	}
	return joined(errs)
}

func joined(errs []string) error {
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("monitor: %d sink(s) failed: %s", len(errs), strings.Join(errs, "; "))
}

// BusSink publishes events and observations as JSON on the signal bus.
type BusSink struct {
	bus domain.SignalBus
}

// NewBusSink wraps a signal bus as a sink.
func NewBusSink(bus domain.SignalBus) *BusSink {
	return &BusSink{bus: bus}
}

func (s *BusSink) SignalEvent(ctx context.Context, ev domain.SignalEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("monitor: marshal event: %w", err)
	}
	return s.bus.Publish(ctx, ChannelSignalEvents, payload)
}

func (s *BusSink) Residual(ctx context.Context, obs domain.ResidualObservation) error {
	payload, err := json.Marshal(obs)
	if err != nil {
		return fmt.Errorf("monitor: marshal observation: %w", err)
	}
	return s.bus.Publish(ctx, ChannelResiduals, payload)
}

// HistorySink appends signal transitions to the persistent event store.
// Per-poll observations are not recorded; only transitions matter for the
// history.
type HistorySink struct {
	store domain.SignalEventStore
}

// NewHistorySink wraps an event store as a sink.
func NewHistorySink(store domain.SignalEventStore) *HistorySink {
	return &HistorySink{store: store}
}

func (s *HistorySink) SignalEvent(ctx context.Context, ev domain.SignalEvent) error {
	return s.store.Insert(ctx, ev)
}

func (s *HistorySink) Residual(ctx context.Context, obs domain.ResidualObservation) error {
	return nil
}

// NotifySink forwards signal transitions to the operator channels.
type NotifySink struct {
	notifier *notify.Notifier
}

// NewNotifySink wraps a notifier as a sink.
func NewNotifySink(notifier *notify.Notifier) *NotifySink {
	return &NotifySink{notifier: notifier}
}

func (s *NotifySink) SignalEvent(ctx context.Context, ev domain.SignalEvent) error {
	return s.notifier.NotifySignal(ctx, ev)
}

func (s *NotifySink) Residual(ctx context.Context, obs domain.ResidualObservation) error {
	return nil
}
