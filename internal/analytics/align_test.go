package analytics

import (
	"errors"
	"testing"
	"time"

	"github.com/ktp-quant/pairsignal/internal/domain"
)

func candleAt(base time.Time, minute int, close float64) domain.CandlePoint {
	return domain.CandlePoint{Time: base.Add(time.Duration(minute) * time.Minute), Close: close}
}

func TestAlignInnerJoin(t *testing.T) {
	base := time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC)
	xs := []domain.CandlePoint{
		candleAt(base, 0, 0.10),
		candleAt(base, 1, 0.11),
		candleAt(base, 2, 0.12),
		candleAt(base, 4, 0.14),
	}
	ys := []domain.CandlePoint{
		candleAt(base, 1, 0.50),
		candleAt(base, 2, 0.52),
		candleAt(base, 3, 0.53),
	}

	series, err := Align(xs, ys, 2)
	if err != nil {
		t.Fatalf("align: %v", err)
	}
	if series.TotalX != 4 || series.TotalY != 3 {
		t.Fatalf("totals = (%d, %d), want (4, 3)", series.TotalX, series.TotalY)
	}
	if series.Overlap() != 2 {
		t.Fatalf("overlap = %d, want 2", series.Overlap())
	}
	if series.Points[0].X != 0.11 || series.Points[0].Y != 0.50 {
		t.Fatalf("first row = %+v, want x=0.11 y=0.50", series.Points[0])
	}
}

func TestAlignPreservesTimeOrder(t *testing.T) {
	base := time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC)
	// Deliberately out of order.
	xs := []domain.CandlePoint{
		candleAt(base, 3, 0.13),
		candleAt(base, 1, 0.11),
		candleAt(base, 2, 0.12),
	}
	ys := []domain.CandlePoint{
		candleAt(base, 2, 0.52),
		candleAt(base, 3, 0.53),
		candleAt(base, 1, 0.51),
	}

	series, err := Align(xs, ys, 3)
	if err != nil {
		t.Fatalf("align: %v", err)
	}
	for i := 1; i < len(series.Points); i++ {
		if !series.Points[i-1].Time.Before(series.Points[i].Time) {
			t.Fatalf("timestamps not strictly increasing at row %d", i)
		}
	}
}

func TestAlignInsufficientOverlap(t *testing.T) {
	base := time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC)
	xs := []domain.CandlePoint{candleAt(base, 0, 0.10)}
	ys := []domain.CandlePoint{candleAt(base, 5, 0.50)}

	_, err := Align(xs, ys, 2)
	if !errors.Is(err, domain.ErrInsufficientData) {
		t.Fatalf("err = %v, want ErrInsufficientData", err)
	}
}

func TestAlignOverlapNeverExceedsTotals(t *testing.T) {
	base := time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC)
	xs := []domain.CandlePoint{
		candleAt(base, 0, 0.10),
		candleAt(base, 0, 0.10), // duplicate timestamp must not double-join
		candleAt(base, 1, 0.11),
	}
	ys := []domain.CandlePoint{
		candleAt(base, 0, 0.50),
		candleAt(base, 1, 0.51),
	}

	series, err := Align(xs, ys, 1)
	if err != nil {
		t.Fatalf("align: %v", err)
	}
	if series.Overlap() > series.TotalY {
		t.Fatalf("overlap %d exceeds min total %d", series.Overlap(), series.TotalY)
	}
}
