// Package store persists received SSE events so a tail session can be
// inspected or replayed after the stream is gone.
package store

import (
	"context"
	"time"

	"github.com/papercomputeco/wiretap/pkg/sse"
)

// Record is a persisted SSE event plus its position in the stream's history.
type Record struct {
	// Seq is the append order within a stream, starting at 1.
	Seq int64

	// Stream is the URL the event was received from.
	Stream string

	// EventID is the event's "id:" field. Empty if the event carried none.
	EventID string

	// EventType is the event's "event:" field. Empty means the default
	// "message" type.
	EventType string

	// Data is the event payload, newline-joined across data lines.
	Data string

	// Retry is the reconnection delay the event carried, if any.
	Retry *time.Duration

	// ReceivedAt is when the event was appended.
	ReceivedAt time.Time
}

// Driver defines the interface for persisting and retrieving events in a
// storage backend. Streams are keyed by URL; events within a stream are
// ordered by Seq.
type Driver interface {
	// Append stores an event at the end of the stream's history and
	// returns the persisted record.
	Append(ctx context.Context, stream string, evt sse.Event) (*Record, error)

	// List returns all records for a stream in append order.
	List(ctx context.Context, stream string) ([]*Record, error)

	// LastEventID returns the most recent non-empty event id appended to
	// the stream. Returns NotFoundError if the stream has no records with
	// an id.
	LastEventID(ctx context.Context, stream string) (string, error)

	// Count returns the number of records for a stream.
	Count(ctx context.Context, stream string) (int64, error)

	// Close closes the store and releases any resources.
	Close() error
}
