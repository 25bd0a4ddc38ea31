package pipeline

import (
	"context"
	"fmt"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/kristobalus/sport-triggers-sub000/internal/kafka"
)

// Consumer reads job payloads from one queue topic.
type Consumer struct {
	reader *kafkago.Reader
	topic  string
}

// NewConsumer creates a consumer for one queue topic with at-least-once
// semantics.
func NewConsumer(brokers, topic, groupID string) (*Consumer, error) {
	reader, err := kafka.NewReader(brokers, topic, groupID)
	if err != nil {
		return nil, err
	}
	return &Consumer{reader: reader, topic: topic}, nil
}

// Read returns the next message from the queue.
func (c *Consumer) Read(ctx context.Context) (kafkago.Message, error) {
	msg, err := c.reader.ReadMessage(ctx)
	if err != nil {
		return msg, fmt.Errorf("read from %s: %w", c.topic, err)
	}
	return msg, nil
}

// Close closes the underlying reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}
