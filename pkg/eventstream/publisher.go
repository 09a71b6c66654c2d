// Package eventstream publishes received SSE events to downstream backends
// (Kafka, or a no-op sink when publishing is disabled).
package eventstream

import "context"

// Publisher publishes received stream events to an event stream backend.
type Publisher interface {
	PublishEvent(ctx context.Context, event *EventReceivedEvent) error
	Close() error
}
