package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/ktp-quant/pairsignal/internal/domain"
)

type recordingSender struct {
	name   string
	titles []string
	err    error
}

func (r *recordingSender) Send(ctx context.Context, title, message string) error {
	r.titles = append(r.titles, title)
	return r.err
}

func (r *recordingSender) Name() string { return r.name }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNotifyFiltersDisallowedEvents(t *testing.T) {
	s := &recordingSender{name: "test"}
	n := NewNotifier([]Sender{s}, []string{EventSignalOpened}, discardLogger())
	ctx := context.Background()

	if err := n.Notify(ctx, EventModelFitted, "fitted", "body"); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if err := n.Notify(ctx, EventSignalOpened, "opened", "body"); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(s.titles) != 1 || s.titles[0] != "opened" {
		t.Fatalf("delivered titles = %v, want only the allowed event", s.titles)
	}
}

func TestNotifyDeliversToAllSendersDespiteFailure(t *testing.T) {
	bad := &recordingSender{name: "bad", err: errors.New("boom")}
	good := &recordingSender{name: "good"}
	n := NewNotifier([]Sender{bad, good}, nil, discardLogger())

	err := n.Notify(context.Background(), EventError, "title", "body")
	if err == nil || !strings.Contains(err.Error(), "bad: boom") {
		t.Fatalf("err = %v, want combined sender failure", err)
	}
	if len(good.titles) != 1 {
		t.Fatalf("healthy sender skipped after failure")
	}
}

func TestNotifySignalFormatsTransition(t *testing.T) {
	s := &recordingSender{name: "test"}
	n := NewNotifier([]Sender{s}, nil, discardLogger())

	ev := domain.SignalEvent{
		Type:        domain.SignalOpened,
		InstrumentX: "KXSPACEXCOUNT-25-140",
		InstrumentY: "KXHURCTOTMAJ-25DEC01-T5",
		Direction:   domain.DirectionSellPair,
		Observation: domain.ResidualObservation{
			ObservedAt: time.Date(2025, 11, 3, 15, 0, 0, 0, time.UTC),
			Residual:   0.031,
			ZScore:     2.6,
		},
	}
	if err := n.NotifySignal(context.Background(), ev); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(s.titles) != 1 || !strings.Contains(s.titles[0], "OPENED") {
		t.Fatalf("titles = %v, want open transition title", s.titles)
	}
}
