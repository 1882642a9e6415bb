package producer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"connections-portal/backend/internal/telemetry/domain"
)

const writeTimeout = 5 * time.Second

// messageWriter is the subset of *kafka.Writer KafkaProducer needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaProducer publishes telemetry events as JSON to one topic.
type KafkaProducer struct {
	writer messageWriter
	topic  string
}

// NewKafkaProducer returns nil, nil when brokers or topic is empty; telemetry to Kafka is optional.
func NewKafkaProducer(brokers []string, topic string) (*KafkaProducer, error) {
	if len(brokers) == 0 || topic == "" {
		return nil, nil
	}
	return &KafkaProducer{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			BatchTimeout:           50 * time.Millisecond,
			RequiredAcks:           kafka.RequireOne,
			AllowAutoTopicCreation: true,
		},
		topic: topic,
	}, nil
}

// Emit writes event keyed by identity, so one applicant's events keep their order on a single partition.
// The event type travels as a header too, letting consumers filter without decoding.
func (p *KafkaProducer) Emit(ctx context.Context, event *domain.Event) error {
	if p == nil || p.writer == nil || event == nil {
		return nil
	}
	msg, err := toMessage(event)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("telemetry: kafka emit to %s: %w", p.topic, err)
	}
	return nil
}

func toMessage(event *domain.Event) (kafka.Message, error) {
	value, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("telemetry: encode event: %w", err)
	}
	msg := kafka.Message{
		Value:   value,
		Time:    event.CreatedAt,
		Headers: []kafka.Header{{Key: "event_type", Value: []byte(event.EventType)}},
	}
	if event.Identity != "" {
		msg.Key = []byte(event.Identity)
	}
	return msg, nil
}

// Close flushes and closes the writer. Nil-safe.
func (p *KafkaProducer) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
