// Package sqlite provides a SQLite-backed store driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/papercomputeco/wiretap/pkg/sse"
	"github.com/papercomputeco/wiretap/pkg/store"
)

const schema = `
	CREATE TABLE IF NOT EXISTS events (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		stream TEXT NOT NULL,
		event_id TEXT NOT NULL,
		event_type TEXT NOT NULL,
		data TEXT NOT NULL,
		retry_ms INTEGER,
		received_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_stream_seq ON events(stream, seq);`

// Driver implements store.Driver backed by a SQLite database.
type Driver struct {
	db *sql.DB
}

// NewDriver opens or creates a SQLite event database at the given path.
// The path can be a file path or ":memory:" for an in-memory database.
func NewDriver(path string) (*Driver, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Driver{db: db}, nil
}

// Append stores an event at the end of the stream's history.
func (d *Driver) Append(ctx context.Context, stream string, evt sse.Event) (*store.Record, error) {
	receivedAt := time.Now().UTC()

	var retryMS sql.NullInt64
	if evt.Retry != nil {
		retryMS = sql.NullInt64{Int64: evt.Retry.Milliseconds(), Valid: true}
	}

	res, err := d.db.ExecContext(ctx,
		`INSERT INTO events (stream, event_id, event_type, data, retry_ms, received_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		stream, evt.ID, evt.Type, evt.Data, retryMS, receivedAt.Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("inserting event: %w", err)
	}

	seq, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading insert id: %w", err)
	}

	return &store.Record{
		Seq:        seq,
		Stream:     stream,
		EventID:    evt.ID,
		EventType:  evt.Type,
		Data:       evt.Data,
		Retry:      evt.Retry,
		ReceivedAt: receivedAt,
	}, nil
}

// List returns all records for a stream in append order.
func (d *Driver) List(ctx context.Context, stream string) ([]*store.Record, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT seq, event_id, event_type, data, retry_ms, received_at
		 FROM events WHERE stream = ? ORDER BY seq ASC`, stream)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var recs []*store.Record
	for rows.Next() {
		rec := &store.Record{Stream: stream}

		var retryMS sql.NullInt64
		var receivedAt string
		if err := rows.Scan(&rec.Seq, &rec.EventID, &rec.EventType, &rec.Data, &retryMS, &receivedAt); err != nil {
			return nil, fmt.Errorf("scanning event row: %w", err)
		}

		if retryMS.Valid {
			retry := time.Duration(retryMS.Int64) * time.Millisecond
			rec.Retry = &retry
		}

		ts, err := time.Parse(time.RFC3339Nano, receivedAt)
		if err != nil {
			return nil, fmt.Errorf("parsing received_at: %w", err)
		}
		rec.ReceivedAt = ts

		recs = append(recs, rec)
	}

	return recs, rows.Err()
}

// LastEventID returns the most recent non-empty event id for a stream.
func (d *Driver) LastEventID(ctx context.Context, stream string) (string, error) {
	var id string
	err := d.db.QueryRowContext(ctx,
		`SELECT event_id FROM events WHERE stream = ? AND event_id != ''
		 ORDER BY seq DESC LIMIT 1`, stream).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", store.NotFoundError{Stream: stream}
	}
	if err != nil {
		return "", fmt.Errorf("querying last event id: %w", err)
	}

	return id, nil
}

// Count returns the number of records for a stream.
func (d *Driver) Count(ctx context.Context, stream string) (int64, error) {
	var n int64
	if err := d.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM events WHERE stream = ?", stream).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting events: %w", err)
	}

	return n, nil
}

// Close closes the underlying database connection.
func (d *Driver) Close() error {
	return d.db.Close()
}
