package relay

import (
	"github.com/papercomputeco/wiretap/pkg/eventstream"
	"github.com/papercomputeco/wiretap/pkg/store"
)

// Config is the configuration for a Relay.
type Config struct {
	// ListenAddr is the address the relay server listens on (e.g. ":8080").
	ListenAddr string

	// UpstreamURL is the SSE endpoint the relay subscribes to.
	UpstreamURL string

	// Headers are sent to the upstream on every (re)connect, e.g. auth.
	Headers map[string]string

	// SubscriberBuffer is the per-subscriber event buffer size. A slow
	// subscriber whose buffer fills up drops events rather than stalling
	// the upstream read. Defaults to 64.
	SubscriberBuffer uint

	// LastEventID seeds the upstream resume position for the first connect.
	LastEventID string

	// Store optionally records every upstream event. Nil disables recording.
	Store store.Driver

	// Publisher optionally forwards every upstream event to an event
	// stream backend. Nil disables publishing.
	Publisher eventstream.Publisher
}
