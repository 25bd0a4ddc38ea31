package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/kristobalus/sport-triggers-sub000/internal/kafka"
)

// Producer publishes JSON job payloads to one queue topic.
type Producer struct {
	writer *kafkago.Writer
	topic  string
}

// NewProducer creates a producer for one queue topic.
func NewProducer(brokers, topic string) (*Producer, error) {
	writer, err := kafka.NewWriter(brokers, topic)
	if err != nil {
		return nil, err
	}
	return &Producer{writer: writer, topic: topic}, nil
}

// Publish writes one job. The key selects the partition, keeping all jobs of
// one trigger on one ordered stream.
func (p *Producer) Publish(ctx context.Context, key string, job interface{}) error {
	value, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job for %s: %w", p.topic, err)
	}
	err = p.writer.WriteMessages(ctx, kafkago.Message{
		Key:   []byte(key),
		Value: value,
	})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", p.topic, err)
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (p *Producer) Close() error {
	return p.writer.Close()
}
