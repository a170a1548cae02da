package storage

import (
	"context"
	"errors"

	"hookfeed/pkg/events"
)

// ErrStoreUnavailable wraps every failure to read from or write to the event store.
var ErrStoreUnavailable = errors.New("event store unavailable")

// EventStore is the append-only persistence boundary for canonical records.
type EventStore interface {
	// Append durably writes one record. It is not idempotent: appending the
	// same delivery twice stores two records.
	Append(ctx context.Context, record events.Record) error
	// RecentEvents returns up to limit records, newest occurred_at first and
	// later insertions first on ties. An empty store yields an empty slice.
	RecentEvents(ctx context.Context, limit int) ([]events.Record, error)
	Close() error
}
