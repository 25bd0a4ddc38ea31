// Package kafka provides shared Kafka reader and writer construction for the
// pipeline queues, tuned for at-least-once delivery.
package kafka

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	kafkago "github.com/segmentio/kafka-go"
)

const (
	// ReadMaxWait is the longest a reader waits before returning whatever is
	// available.
	ReadMaxWait = 500 * time.Millisecond
	// CommitInterval is the offset auto-commit cadence shared by all
	// consumers.
	CommitInterval = time.Second
	// WriteTimeout is the maximum time to wait for a Kafka write operation.
	WriteTimeout = 10 * time.Second
)

// ParseBrokers parses a comma-separated broker list and trims whitespace.
func ParseBrokers(brokers string) []string {
	if brokers == "" {
		return nil
	}
	brokerList := strings.Split(brokers, ",")
	for i := range brokerList {
		brokerList[i] = strings.TrimSpace(brokerList[i])
	}
	return brokerList
}

// NewReader creates a reader for one queue topic. StartOffset only applies
// when no committed offset exists for the group.
func NewReader(brokers, topic, groupID string) (*kafkago.Reader, error) {
	if brokers == "" {
		return nil, fmt.Errorf("brokers cannot be empty")
	}
	if topic == "" {
		return nil, fmt.Errorf("topic cannot be empty")
	}
	if groupID == "" {
		return nil, fmt.Errorf("groupID cannot be empty")
	}

	brokerList := ParseBrokers(brokers)
	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:        brokerList,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,    // Return immediately when any data is available
		MaxBytes:       10e6, // 10MB
		MaxWait:        ReadMaxWait,
		CommitInterval: CommitInterval,
		StartOffset:    kafkago.FirstOffset, // Start from beginning if no committed offset
	})

	slog.Info("Kafka consumer configured",
		"brokers", brokerList,
		"topic", topic,
		"group_id", groupID,
		"max_wait", ReadMaxWait,
		"commit_interval", CommitInterval,
	)
	return reader, nil
}

// NewWriter creates a writer for one queue topic. Writes are synchronous and
// hash-balanced by message key so jobs for one trigger land on one partition.
func NewWriter(brokers, topic string) (*kafkago.Writer, error) {
	if brokers == "" {
		return nil, fmt.Errorf("brokers cannot be empty")
	}
	if topic == "" {
		return nil, fmt.Errorf("topic cannot be empty")
	}

	brokerList := ParseBrokers(brokers)
	writer := &kafkago.Writer{
		Addr:         kafkago.TCP(brokerList...),
		Topic:        topic,
		Balancer:     &kafkago.Hash{},
		WriteTimeout: WriteTimeout,
		RequiredAcks: kafkago.RequireOne,
		Async:        false,
	}

	slog.Info("Kafka producer configured",
		"brokers", brokerList,
		"topic", topic,
		"write_timeout", WriteTimeout,
		"required_acks", "RequireOne",
	)
	return writer, nil
}
