package relay

import (
	"sync"

	"go.uber.org/zap"

	"github.com/papercomputeco/wiretap/pkg/sse"
)

const defaultSubscriberBuffer uint = 64

// Hub fans upstream events out to downstream subscribers. Delivery is
// non-blocking: a subscriber whose buffer is full has events dropped so a
// single slow client cannot stall the upstream read.
type Hub struct {
	mu     sync.Mutex
	subs   map[uint64]chan sse.Event
	nextID uint64
	buffer uint
	closed bool

	dropped uint64

	logger *zap.Logger
}

// NewHub creates a Hub with the given per-subscriber buffer size.
// A zero buffer gets the default.
func NewHub(buffer uint, logger *zap.Logger) *Hub {
	if buffer == 0 {
		buffer = defaultSubscriberBuffer
	}

	return &Hub{
		subs:   make(map[uint64]chan sse.Event),
		buffer: buffer,
		logger: logger,
	}
}

// Subscribe registers a new subscriber and returns its event channel plus an
// unsubscribe function. The channel is closed on unsubscribe or hub close.
// Subscribing to a closed hub returns an already-closed channel.
func (h *Hub) Subscribe() (<-chan sse.Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan sse.Event, h.buffer)
	if h.closed {
		close(ch)
		return ch, func() {}
	}

	id := h.nextID
	h.nextID++
	h.subs[id] = ch

	h.logger.Debug("subscriber added", zap.Uint64("subscriber_id", id))

	unsubscribe := func() {
		h.mu.Lock()
		defer h.mu.Unlock()

		if sub, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(sub)
			h.logger.Debug("subscriber removed", zap.Uint64("subscriber_id", id))
		}
	}

	return ch, unsubscribe
}

// Publish delivers the event to every subscriber. Returns the number of
// subscribers that received the event; full subscribers are skipped and
// counted as drops.
func (h *Hub) Publish(evt sse.Event) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	delivered := 0
	for id, ch := range h.subs {
		select {
		case ch <- evt:
			delivered++
		default:
			h.dropped++
			h.logger.Warn("subscriber buffer full, event dropped",
				zap.Uint64("subscriber_id", id),
				zap.String("event_id", evt.ID),
			)
		}
	}

	return delivered
}

// Len returns the current number of subscribers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.subs)
}

// Dropped returns the total number of events dropped across all subscribers.
func (h *Hub) Dropped() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.dropped
}

// Close closes every subscriber channel and rejects future subscribers.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true

	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}
