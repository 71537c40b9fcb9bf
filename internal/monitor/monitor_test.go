package monitor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/ktp-quant/pairsignal/internal/domain"
)

func testModel() domain.FittedModel {
	return domain.FittedModel{
		InstrumentX:    "X",
		InstrumentY:    "Y",
		Slope:          1.0,
		Intercept:      0,
		RSquared:       0.9,
		ResidualStdDev: 0.01,
		SampleCount:    100,
		ThresholdSigma: 2.0,
		FittedAt:       time.Date(2025, 11, 3, 0, 0, 0, 0, time.UTC),
	}
}

type fixedStore struct {
	model domain.FittedModel
	err   error
}

func (s *fixedStore) Save(ctx context.Context, m domain.FittedModel) error { return nil }

func (s *fixedStore) Load(ctx context.Context) (domain.FittedModel, error) {
	return s.model, s.err
}

// scriptedQuotes serves one entry per poll for both legs, cancelling the run
// once the script is exhausted. A nil entry simulates a fetch failure.
type scriptedQuotes struct {
	mu     sync.Mutex
	script []*[2]float64 // [x mid, y mid]; nil means failure
	poll   int
	cancel context.CancelFunc

	fetches  int
	failures int
}

func (q *scriptedQuotes) FetchQuote(ctx context.Context, instrumentID string) (domain.LiveQuote, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.poll >= len(q.script) {
		q.cancel()
		return domain.LiveQuote{}, ctx.Err()
	}
	entry := q.script[q.poll]
	q.fetches++

	if entry == nil {
		q.poll++
		q.failures++
		return domain.LiveQuote{}, fmt.Errorf("scripted outage: %w", domain.ErrQuoteUnavailable)
	}

	var mid float64
	if instrumentID == "X" {
		mid = entry[0]
	} else {
		mid = entry[1]
		q.poll++ // Y is fetched second, advance after it
	}
	return domain.LiveQuote{
		InstrumentID: instrumentID,
		BestBid:      mid,
		BestAsk:      mid,
		ObservedAt:   time.Now(),
	}, nil
}

type captureSink struct {
	mu        sync.Mutex
	events    []domain.SignalEvent
	residuals []domain.ResidualObservation
}

func (s *captureSink) SignalEvent(ctx context.Context, ev domain.SignalEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func (s *captureSink) Residual(ctx context.Context, obs domain.ResidualObservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.residuals = append(s.residuals, obs)
	return nil
}

func (s *captureSink) eventTypes() []domain.SignalEventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.SignalEventType, len(s.events))
	for i, ev := range s.events {
		out[i] = ev.Type
	}
	return out
}

// runScripted drives a monitor over the given quote script and returns the
// captured sink output. Each script entry is one poll: [x, y] mids or nil
// for an outage.
func runScripted(t *testing.T, script []*[2]float64, cfg Config) *captureSink {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	quotes := &scriptedQuotes{script: script, cancel: cancel}
	sink := &captureSink{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	m := New(quotes, &fixedStore{model: testModel()}, sink, cfg, logger)

	err := m.Run(ctx)
	if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("run ended with %v, want context cancellation", err)
	}
	return sink
}

func fastConfig() Config {
	return Config{
		PollInterval: time.Millisecond,
		RetryBase:    time.Millisecond,
		RetryMax:     4 * time.Millisecond,
	}
}

// With slope 1, intercept 0, and stddev 0.01: y = x + z*0.01.
func pollAt(x, z float64) *[2]float64 {
	return &[2]float64{x, x + z*0.01}
}

func TestStandingDeviationOpensOnce(t *testing.T) {
	// Five consecutive polls above threshold must produce exactly one open.
	script := []*[2]float64{
		pollAt(0.40, 3), pollAt(0.40, 3), pollAt(0.41, 4), pollAt(0.40, 3), pollAt(0.40, 5),
	}
	sink := runScripted(t, script, fastConfig())

	types := sink.eventTypes()
	if len(types) != 1 || types[0] != domain.SignalOpened {
		t.Fatalf("events = %v, want exactly one open", types)
	}
	if sink.events[0].Direction != domain.DirectionSellPair {
		t.Fatalf("direction = %v, want sell_pair for positive residual", sink.events[0].Direction)
	}
}

func TestSignalClosesWhenDeviationReverts(t *testing.T) {
	script := []*[2]float64{
		pollAt(0.40, 3), pollAt(0.40, 3), pollAt(0.40, 0.5), pollAt(0.40, 0.2),
	}
	sink := runScripted(t, script, fastConfig())

	types := sink.eventTypes()
	if len(types) != 2 || types[0] != domain.SignalOpened || types[1] != domain.SignalClosed {
		t.Fatalf("events = %v, want open then close", types)
	}
}

func TestNegativeDeviationBelowThresholdStaysQuiet(t *testing.T) {
	// z = -1 is within the band on both sides; nothing may open.
	script := []*[2]float64{
		pollAt(0.40, -1), pollAt(0.40, -1), pollAt(0.40, -1),
	}
	sink := runScripted(t, script, fastConfig())

	if len(sink.events) != 0 {
		t.Fatalf("events = %v, want none", sink.events)
	}
	if len(sink.residuals) != 3 {
		t.Fatalf("residual observations = %d, want one per poll", len(sink.residuals))
	}
}

func TestNegativeDeviationOpensBuyPair(t *testing.T) {
	script := []*[2]float64{pollAt(0.40, -4)}
	sink := runScripted(t, script, fastConfig())

	if len(sink.events) != 1 || sink.events[0].Direction != domain.DirectionBuyPair {
		t.Fatalf("events = %+v, want one buy_pair open", sink.events)
	}
}

func TestReopenAfterClose(t *testing.T) {
	script := []*[2]float64{
		pollAt(0.40, 3), pollAt(0.40, 0), pollAt(0.40, 3),
	}
	sink := runScripted(t, script, fastConfig())

	types := sink.eventTypes()
	want := []domain.SignalEventType{domain.SignalOpened, domain.SignalClosed, domain.SignalOpened}
	if len(types) != len(want) {
		t.Fatalf("events = %v, want %v", types, want)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Fatalf("events = %v, want %v", types, want)
		}
	}
}

func TestCooldownSuppressesRapidReopen(t *testing.T) {
	cfg := fastConfig()
	cfg.MinSignalInterval = time.Hour

	script := []*[2]float64{
		pollAt(0.40, 3), pollAt(0.40, 0), pollAt(0.40, 3), pollAt(0.40, 3),
	}
	sink := runScripted(t, script, cfg)

	types := sink.eventTypes()
	if len(types) != 2 || types[0] != domain.SignalOpened || types[1] != domain.SignalClosed {
		t.Fatalf("events = %v, want the reopen suppressed", types)
	}
}

func TestQuoteOutageRetriesThenRecovers(t *testing.T) {
	script := []*[2]float64{
		nil, nil, pollAt(0.40, 3),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	quotes := &scriptedQuotes{script: script, cancel: cancel}
	sink := &captureSink{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := New(quotes, &fixedStore{model: testModel()}, sink, fastConfig(), logger)

	err := m.Run(ctx)
	if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("run ended with %v", err)
	}
	if quotes.failures != 2 {
		t.Fatalf("failures = %d, want 2", quotes.failures)
	}
	if len(sink.events) != 1 {
		t.Fatalf("events = %v, want one open after recovery", sink.events)
	}
}

func TestMissingModelIsFatal(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := New(nil, &fixedStore{err: domain.ErrNotFound}, nil, fastConfig(), logger)

	err := m.Run(context.Background())
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
