// Package sse provides a streaming client for the text/event-stream
// (Server-Sent Events) wire format. The parser is layered as three small,
// independently testable stages:
//
//	┌──────────────────┐
//	│   byte chunks    │ response body, arbitrary split points
//	└──────────────────┘
//	│
//	▼
//	┌──────────────────┐
//	│   LineSplitter   │ reassembles logical lines across chunk boundaries
//	└──────────────────┘
//	│
//	▼
//	┌──────────────────┐
//	│     Decoder      │ accumulates fields, emits one Event per blank line
//	└──────────────────┘
//
// Client wires the stages to an HTTP request and maintains the
// Last-Event-ID header across reconnects. TeeReader layers a pull-style
// iterator on the same pipeline while copying raw bytes to a destination
// writer verbatim.
//
// See the SSE specification:
// https://html.spec.whatwg.org/multipage/server-sent-events.html
package sse

import (
	"fmt"
	"strings"
	"time"
)

// Event represents a single parsed SSE event, delimited by a blank line
// in the upstream byte stream.
type Event struct {
	// ID is the last event ID from the "id:" field, if present.
	ID string

	// Type is the SSE event type from the "event:" field.
	// An empty string means the default "message" type per the SSE spec.
	Type string

	// Data is the concatenated contents of all "data:" lines for this event,
	// joined with "\n" (per the SSE spec, multiple data fields are joined
	// with a single newline).
	Data string

	// Retry is the reconnection delay from the "retry:" field. Nil unless
	// the stream supplied a syntactically valid non-negative integer;
	// a zero delay is valid and distinct from absent.
	Retry *time.Duration
}

// String serializes the event back to wire format, ending with the
// blank-line delimiter. Multi-line data becomes multiple "data:" lines.
// Used by the relay to re-emit events downstream.
func (e Event) String() string {
	var b strings.Builder

	if e.Type != "" {
		b.WriteString("event: ")
		b.WriteString(e.Type)
		b.WriteByte('\n')
	}

	if e.ID != "" {
		b.WriteString("id: ")
		b.WriteString(e.ID)
		b.WriteByte('\n')
	}

	if e.Retry != nil {
		fmt.Fprintf(&b, "retry: %d\n", e.Retry.Milliseconds())
	}

	// An event whose only content was a non-data field serializes without
	// a data line; emitting "data: " here would invent an empty payload.
	if e.Data != "" || b.Len() == 0 {
		for _, line := range strings.Split(e.Data, "\n") {
			b.WriteString("data: ")
			b.WriteString(line)
			b.WriteByte('\n')
		}
	}

	b.WriteByte('\n')

	return b.String()
}
