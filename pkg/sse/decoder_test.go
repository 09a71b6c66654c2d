package sse

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// decodeString runs raw through a splitter+decoder pair and returns the
// flushed events plus every OnID / OnRetry invocation in order.
func decodeString(raw string) (events []Event, ids []string, retries []time.Duration) {
	d := NewDecoder(DecoderCallbacks{
		OnEvent: func(ev Event) { events = append(events, ev) },
		OnID:    func(id string) { ids = append(ids, id) },
		OnRetry: func(r time.Duration) { retries = append(retries, r) },
	})
	s := NewLineSplitter(d.Line)
	s.Write([]byte(raw))
	d.Flush()
	return events, ids, retries
}

var _ = Describe("Decoder", func() {
	It("joins multiple data lines with newlines in arrival order", func() {
		events, _, _ := decodeString("data: a\ndata: b\ndata: c\n\n")
		Expect(events).To(HaveLen(1))
		Expect(events[0].Data).To(Equal("a\nb\nc"))
	})

	It("strips exactly one leading space from values", func() {
		withSpace, _, _ := decodeString("data: value\n\n")
		without, _, _ := decodeString("data:value\n\n")
		twoSpaces, _, _ := decodeString("data:  value\n\n")

		Expect(withSpace[0].Data).To(Equal("value"))
		Expect(without[0].Data).To(Equal("value"))
		Expect(twoSpaces[0].Data).To(Equal(" value"))
	})

	It("applies last-write-wins for the event type within a message", func() {
		events, _, _ := decodeString("event: first\nevent: second\ndata: x\n\n")
		Expect(events[0].Type).To(Equal("second"))
	})

	It("invokes OnID immediately, before the event flushes", func() {
		var order []string
		d := NewDecoder(DecoderCallbacks{
			OnEvent: func(Event) { order = append(order, "event") },
			OnID:    func(string) { order = append(order, "id") },
		})
		s := NewLineSplitter(d.Line)
		s.Write([]byte("id: 42\ndata: x\n\n"))

		Expect(order).To(Equal([]string{"id", "event"}))
	})

	It("delivers an explicit empty id", func() {
		_, ids, _ := decodeString("id: 1\n\nid:\ndata: x\n\n")
		Expect(ids).To(Equal([]string{"1", ""}))
	})

	It("ignores ids containing a NUL byte", func() {
		events, ids, _ := decodeString("id: bad\x00id\ndata: x\n\n")
		Expect(ids).To(BeEmpty())
		Expect(events[0].ID).To(BeEmpty())
	})

	It("parses valid retry values and surfaces them via OnRetry", func() {
		events, _, retries := decodeString("retry: 3000\ndata: x\n\n")
		Expect(retries).To(Equal([]time.Duration{3 * time.Second}))
		Expect(events[0].Retry).NotTo(BeNil())
		Expect(*events[0].Retry).To(Equal(3 * time.Second))
	})

	It("treats a zero retry as present", func() {
		events, _, retries := decodeString("retry: 0\ndata: x\n\n")
		Expect(retries).To(HaveLen(1))
		Expect(events[0].Retry).NotTo(BeNil())
		Expect(*events[0].Retry).To(BeZero())
	})

	It("silently ignores non-numeric and negative retry values", func() {
		events, _, retries := decodeString("retry: abc\nretry: -5\ndata: x\n\n")
		Expect(retries).To(BeEmpty())
		Expect(events[0].Retry).To(BeNil())
	})

	It("ignores comment lines without terminating the event", func() {
		events, _, _ := decodeString("data: a\n: this is a comment\ndata: b\n\n")
		Expect(events).To(HaveLen(1))
		Expect(events[0].Data).To(Equal("a\nb"))
	})

	It("ignores non-empty lines with no colon", func() {
		events, _, _ := decodeString("data\nnotafield\ndata: real\n\n")
		Expect(events).To(HaveLen(1))
		Expect(events[0].Data).To(Equal("real"))
	})

	It("ignores unknown fields", func() {
		events, _, _ := decodeString("foo: bar\ndata: x\n\n")
		Expect(events).To(HaveLen(1))
		Expect(events[0].Data).To(Equal("x"))
	})

	It("does not emit events for keep-alive blank lines", func() {
		events, _, _ := decodeString("\n\n: ping\n\n\n")
		Expect(events).To(BeEmpty())
	})

	It("starts each event fresh: id does not leak into the next event", func() {
		events, _, _ := decodeString("event: ping\ndata: hello\nid: 1\n\ndata: world\n\n")
		Expect(events).To(HaveLen(2))
		Expect(events[0].Type).To(Equal("ping"))
		Expect(events[0].Data).To(Equal("hello"))
		Expect(events[0].ID).To(Equal("1"))
		Expect(events[1].Type).To(BeEmpty())
		Expect(events[1].Data).To(Equal("world"))
		Expect(events[1].ID).To(BeEmpty())
	})

	It("flushes a trailing event when the stream ends without a delimiter", func() {
		events, _, _ := decodeString("data: unterminated\n")
		Expect(events).To(HaveLen(1))
		Expect(events[0].Data).To(Equal("unterminated"))
	})
})

var _ = Describe("Event", func() {
	It("serializes back to wire format", func() {
		retry := 250 * time.Millisecond
		ev := Event{ID: "7", Type: "tick", Data: "a\nb", Retry: &retry}

		Expect(ev.String()).To(Equal("event: tick\nid: 7\nretry: 250\ndata: a\ndata: b\n\n"))
	})

	It("serializes a data-only event", func() {
		Expect(Event{Data: "x"}.String()).To(Equal("data: x\n\n"))
	})

	It("omits the data line for an event with no data", func() {
		Expect(Event{Type: "ping"}.String()).To(Equal("event: ping\n\n"))
	})
})
