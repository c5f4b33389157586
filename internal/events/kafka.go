package events

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaForwarder republishes bus events to a Kafka topic.
type KafkaForwarder struct {
	writer  messageWriter
	timeout time.Duration
	logger  *zerolog.Logger
}

func NewKafkaForwarder(brokers []string, topic string, logger *zerolog.Logger) *KafkaForwarder {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 50 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}
	return newKafkaForwarder(writer, logger)
}

func newKafkaForwarder(writer messageWriter, logger *zerolog.Logger) *KafkaForwarder {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &KafkaForwarder{writer: writer, timeout: 5 * time.Second, logger: logger}
}

// Deliver writes one event. The event type travels as a header, the event id as key.
func (f *KafkaForwarder) Deliver(ctx context.Context, event *Event) error {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	msg := kafka.Message{
		Key:   []byte(event.ID),
		Value: event.Payload,
		Time:  event.CreatedAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	}
	if err := f.writer.WriteMessages(ctx, msg); err != nil {
		f.logger.Warn().Err(err).Str("event_type", event.Type).Str("event_id", event.ID).Msg("kafka publish failed")
		return fmt.Errorf("failed to write message to kafka: %w", err)
	}
	return nil
}

func (f *KafkaForwarder) Close() error {
	if f.writer == nil {
		return nil
	}
	return f.writer.Close()
}
