package eventstream

import (
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/wiretap/pkg/sse"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeEventReceived is emitted for every event received from an
	// upstream SSE stream.
	EventTypeEventReceived = "wiretap.event.received"
)

// EventReceivedEvent is a transport-neutral envelope for an SSE event
// received from an upstream stream.
type EventReceivedEvent struct {
	SchemaVersion int         `json:"schema_version"`
	EventType     string      `json:"event_type"`
	EventID       string      `json:"event_id"`
	EmittedAt     time.Time   `json:"emitted_at"`
	Source        EventSource `json:"source"`
	Event         EventMeta   `json:"event"`
}

// EventSource identifies the upstream stream the event came from.
type EventSource struct {
	Stream string `json:"stream"`
}

// EventMeta carries the wire fields of the received SSE event.
type EventMeta struct {
	ID      string `json:"id,omitempty"`
	Type    string `json:"type,omitempty"`
	Data    string `json:"data"`
	RetryMS int64  `json:"retry_ms,omitempty"`
}

// NewEventReceived builds a v1 envelope for an event received from the
// given stream URL.
func NewEventReceived(stream string, evt sse.Event) *EventReceivedEvent {
	meta := EventMeta{
		ID:   evt.ID,
		Type: evt.Type,
		Data: evt.Data,
	}
	if evt.Retry != nil {
		meta.RetryMS = evt.Retry.Milliseconds()
	}

	return &EventReceivedEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeEventReceived,
		EventID:       uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		Source:        EventSource{Stream: stream},
		Event:         meta,
	}
}
