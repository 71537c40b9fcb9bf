package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
}

// SignalEventStore persists the append-only history of signal transitions.
type SignalEventStore interface {
	Insert(ctx context.Context, event SignalEvent) error
	ListRecent(ctx context.Context, opts ListOpts) ([]SignalEvent, error)
	CountOpened(ctx context.Context, since time.Time) (int64, error)
}
