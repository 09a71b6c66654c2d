// Package kafka provides a Kafka-backed eventstream publisher.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	segkafka "github.com/segmentio/kafka-go"

	"github.com/papercomputeco/wiretap/pkg/eventstream"
)

// Publisher publishes received events to a Kafka topic.
//
// Messages are keyed by the SSE event id when present so consumers can
// partition by upstream id; events without an id fall back to the envelope
// id, spreading them across partitions.
type Publisher struct {
	writer *segkafka.Writer
}

// NewPublisher creates a Kafka publisher writing to the given topic.
func NewPublisher(brokers []string, topic string) (*Publisher, error) {
	if len(brokers) == 0 {
		return nil, errors.New("no kafka brokers configured")
	}
	if topic == "" {
		return nil, errors.New("no kafka topic configured")
	}

	return &Publisher{
		writer: &segkafka.Writer{
			Addr:     segkafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &segkafka.Hash{},
		},
	}, nil
}

// PublishEvent writes the JSON-encoded envelope to the topic.
func (p *Publisher) PublishEvent(ctx context.Context, event *eventstream.EventReceivedEvent) error {
	if event == nil {
		return eventstream.ErrNilEvent
	}

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}

	key := event.Event.ID
	if key == "" {
		key = event.EventID
	}

	msg := segkafka.Message{
		Key:   []byte(key),
		Value: value,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("writing to kafka: %w", err)
	}

	return nil
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
