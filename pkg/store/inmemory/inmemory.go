// Package inmemory provides a map-backed store driver for tests and
// short-lived tail sessions that don't need persistence.
package inmemory

import (
	"context"
	"sync"
	"time"

	"github.com/papercomputeco/wiretap/pkg/sse"
	"github.com/papercomputeco/wiretap/pkg/store"
)

// Driver implements store.Driver using an in-memory map of stream URL to
// record slice.
type Driver struct {
	mu      sync.RWMutex
	streams map[string][]*store.Record
}

// NewDriver creates a new in-memory store.
func NewDriver() *Driver {
	return &Driver{
		streams: make(map[string][]*store.Record),
	}
}

// Append stores an event at the end of the stream's history.
func (d *Driver) Append(_ context.Context, stream string, evt sse.Event) (*store.Record, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	rec := &store.Record{
		Seq:        int64(len(d.streams[stream]) + 1),
		Stream:     stream,
		EventID:    evt.ID,
		EventType:  evt.Type,
		Data:       evt.Data,
		Retry:      evt.Retry,
		ReceivedAt: time.Now().UTC(),
	}

	d.streams[stream] = append(d.streams[stream], rec)
	return rec, nil
}

// List returns all records for a stream in append order.
func (d *Driver) List(_ context.Context, stream string) ([]*store.Record, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	recs := d.streams[stream]
	out := make([]*store.Record, len(recs))
	copy(out, recs)
	return out, nil
}

// LastEventID returns the most recent non-empty event id for a stream.
func (d *Driver) LastEventID(_ context.Context, stream string) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	recs := d.streams[stream]
	for i := len(recs) - 1; i >= 0; i-- {
		if recs[i].EventID != "" {
			return recs[i].EventID, nil
		}
	}

	return "", store.NotFoundError{Stream: stream}
}

// Count returns the number of records for a stream.
func (d *Driver) Count(_ context.Context, stream string) (int64, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return int64(len(d.streams[stream])), nil
}

// Close is a no-op for the in-memory store.
func (d *Driver) Close() error {
	return nil
}
