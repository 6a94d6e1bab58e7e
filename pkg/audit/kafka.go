package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"farmreport/pkg/config"
)

// MessageWriter is the part of *kafka.Writer used by KafkaLogger.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaLogger publishes entries to a topic so the main application can
// merge them into its activity feed. Messages are keyed by category.
type KafkaLogger struct {
	writer  MessageWriter
	service string
}

// NewKafkaLogger wraps an existing writer.
func NewKafkaLogger(w MessageWriter, service string) *KafkaLogger {
	return &KafkaLogger{writer: w, service: service}
}

// NewKafkaLoggerFromConfig creates a synchronous writer for the configured brokers.
func NewKafkaLoggerFromConfig(cfg config.KafkaConfig, service string) (*KafkaLogger, error) {
	if len(cfg.Brokers) == 0 || cfg.Topic == "" {
		return nil, errors.New("audit kafka backend requires brokers and topic")
	}

	batchTimeout := cfg.BatchTimeout
	if batchTimeout <= 0 {
		batchTimeout = 50 * time.Millisecond
	}

	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: batchTimeout,
		WriteTimeout: cfg.WriteTimeout,
		RequiredAcks: kafka.RequireOne,
	}

	return NewKafkaLogger(w, service), nil
}

// Log publishes one message.
func (l *KafkaLogger) Log(ctx context.Context, entry *Entry) error {
	if entry.Service == "" {
		entry.Service = l.service
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:   []byte(entry.Category),
		Value: data,
		Time:  entry.Timestamp,
		Headers: []kafka.Header{
			{Key: "service", Value: []byte(entry.Service)},
			{Key: "action", Value: []byte(entry.Action)},
		},
	}

	if err := l.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish audit entry: %w", err)
	}
	return nil
}

// Query is not supported: the topic is write-only for this service.
func (l *KafkaLogger) Query(_ context.Context, _ *QueryFilter) ([]*Entry, error) {
	return nil, ErrQueryNotSupported
}

// Close flushes and closes the writer.
func (l *KafkaLogger) Close() error {
	return l.writer.Close()
}
