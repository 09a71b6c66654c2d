package sse

import (
	"bytes"
	"strconv"
	"strings"
	"time"
)

// DecoderCallbacks holds the downstream hooks for a Decoder. Any of the
// fields may be nil.
type DecoderCallbacks struct {
	// OnEvent receives each completed event when its blank-line delimiter
	// arrives.
	OnEvent func(Event)

	// OnID fires as soon as an "id:" line is decoded, before the enclosing
	// event flushes. An empty value is delivered too: it means "stop
	// sending Last-Event-ID on reconnect".
	OnID func(string)

	// OnRetry fires for every syntactically valid "retry:" line.
	OnRetry func(time.Duration)
}

// Decoder accumulates decoded lines into events per the SSE processing
// model. Feed it with Line (typically wired to a LineSplitter) and call
// Flush once the stream has ended cleanly.
type Decoder struct {
	callbacks DecoderCallbacks

	current  Event
	hasField bool
}

// NewDecoder creates a Decoder dispatching to the given callbacks.
func NewDecoder(callbacks DecoderCallbacks) *Decoder {
	return &Decoder{callbacks: callbacks}
}

// Line consumes one logical line as produced by a LineSplitter.
//
// A zero-length line completes the current event. A colon at offset 0 is a
// comment. A non-empty line with no colon names a field with no value; no
// SSE field is meaningful without a value, so such lines are ignored.
func (d *Decoder) Line(line []byte, fieldLen int) {
	if len(line) == 0 {
		d.Flush()
		return
	}

	switch {
	case fieldLen == NoColon:
		// Malformed field line. Ignored per spec leniency.
		return
	case fieldLen == 0:
		// Comment line. Never terminates an event.
		return
	}

	field := string(line[:fieldLen])
	value := line[fieldLen+1:]
	// "field: value" and "field:value" are equivalent; exactly one leading
	// space is stripped.
	if len(value) > 0 && value[0] == ' ' {
		value = value[1:]
	}

	switch field {
	case "data":
		if d.hasField && d.current.Data != "" {
			// Multiple data fields are joined with "\n".
			d.current.Data += "\n"
		}
		d.current.Data += string(value)
		d.hasField = true

	case "event":
		d.current.Type = string(value)
		d.hasField = true

	case "id":
		// Per the SSE spec, an id containing U+0000 NULL is ignored.
		if bytes.IndexByte(value, 0) >= 0 {
			return
		}
		d.current.ID = string(value)
		d.hasField = true
		if d.callbacks.OnID != nil {
			d.callbacks.OnID(d.current.ID)
		}

	case "retry":
		ms, err := strconv.ParseInt(strings.TrimSpace(string(value)), 10, 64)
		if err != nil || ms < 0 {
			// Non-numeric retry values are silently ignored.
			return
		}
		retry := time.Duration(ms) * time.Millisecond
		d.current.Retry = &retry
		d.hasField = true
		if d.callbacks.OnRetry != nil {
			d.callbacks.OnRetry(retry)
		}

	default:
		// Unknown fields are ignored per the SSE spec.
	}
}

// Flush completes the in-progress event, if any fields were accumulated,
// and resets for the next one. Called automatically on blank lines; call it
// once more after a stream that ended without a trailing delimiter.
func (d *Decoder) Flush() {
	if !d.hasField {
		// Keep-alive blank lines and comment-only blocks don't produce
		// empty events.
		return
	}

	event := d.current
	d.current = Event{}
	d.hasField = false

	if d.callbacks.OnEvent != nil {
		d.callbacks.OnEvent(event)
	}
}
