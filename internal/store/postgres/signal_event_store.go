package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ktp-quant/pairsignal/internal/domain"
)

// SignalEventStore implements domain.SignalEventStore using PostgreSQL.
type SignalEventStore struct {
	pool *pgxpool.Pool
}

// NewSignalEventStore creates a new SignalEventStore backed by the given
// connection pool.
func NewSignalEventStore(pool *pgxpool.Pool) *SignalEventStore {
	return &SignalEventStore{pool: pool}
}

const signalSelectCols = `id, event_type, instrument_x, instrument_y, direction,
	observed_at, x_mid, y_mid, predicted_y, residual, z_score`

// Insert appends a signal transition to the history.
func (s *SignalEventStore) Insert(ctx context.Context, ev domain.SignalEvent) error {
	const query = `
		INSERT INTO signal_events (
			id, event_type, instrument_x, instrument_y, direction,
			observed_at, x_mid, y_mid, predicted_y, residual, z_score
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10, $11
		)`

	// direction is only meaningful on open transitions.
	var direction *string
	if ev.Direction != "" {
		d := string(ev.Direction)
		direction = &d
	}

	_, err := s.pool.Exec(ctx, query,
		ev.ID, string(ev.Type), ev.InstrumentX, ev.InstrumentY, direction,
		ev.Observation.ObservedAt, ev.Observation.XMid, ev.Observation.YMid,
		ev.Observation.PredictedY, ev.Observation.Residual, ev.Observation.ZScore,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert signal event %s: %w", ev.ID, err)
	}
	return nil
}

// ListRecent returns signal transitions ordered by observation time, newest
// first.
func (s *SignalEventStore) ListRecent(ctx context.Context, opts domain.ListOpts) ([]domain.SignalEvent, error) {
	query := `SELECT ` + signalSelectCols + ` FROM signal_events`
	args := []any{}

	if opts.Since != nil {
		args = append(args, *opts.Since)
		query += fmt.Sprintf(" WHERE observed_at >= $%d", len(args))
	}
	query += " ORDER BY observed_at DESC"
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list signal events: %w", err)
	}
	defer rows.Close()

	var events []domain.SignalEvent
	for rows.Next() {
		var ev domain.SignalEvent
		var direction *string

		if err := rows.Scan(
			&ev.ID, &ev.Type, &ev.InstrumentX, &ev.InstrumentY, &direction,
			&ev.Observation.ObservedAt, &ev.Observation.XMid, &ev.Observation.YMid,
			&ev.Observation.PredictedY, &ev.Observation.Residual, &ev.Observation.ZScore,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan signal event: %w", err)
		}
		if direction != nil {
			ev.Direction = domain.SignalDirection(*direction)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list signal events rows: %w", err)
	}
	return events, nil
}

// CountOpened returns the number of open transitions observed since the
// given instant.
func (s *SignalEventStore) CountOpened(ctx context.Context, since time.Time) (int64, error) {
	const query = `
		SELECT COUNT(*) FROM signal_events
		WHERE event_type = 'signal_opened' AND observed_at >= $1`

	var count int64
	if err := s.pool.QueryRow(ctx, query, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("postgres: count opened signals: %w", err)
	}
	return count, nil
}

var _ domain.SignalEventStore = (*SignalEventStore)(nil)
