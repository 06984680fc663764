package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"strata/internal/logging"
)

// messageWriter is the subset of *kafka.Writer the sink uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes envelopes as JSON messages keyed by run id.
type KafkaSink struct {
	writer messageWriter
	topic  string
}

// NewKafkaSink builds an asynchronous writer for topic. Delivery failures are
// reported to logger as they complete.
func NewKafkaSink(brokers []string, topic string, logger *slog.Logger) (*KafkaSink, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka brokers required")
	}
	if topic == "" {
		return nil, errors.New("kafka topic required")
	}
	logger = logging.NewComponentLogger(logger, "events")
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		RequiredAcks:           kafka.RequireOne,
		Async:                  true,
		WriteTimeout:           10 * time.Second,
		ReadTimeout:            10 * time.Second,
		AllowAutoTopicCreation: true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logging.WarnWithContext(logger, "kafka delivery failed", "kafka_delivery_failed",
					logging.Int("messages", len(messages)),
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "check [events] kafka_brokers"),
				)
			}
		},
	}
	return newKafkaSink(writer, topic), nil
}

func newKafkaSink(w messageWriter, topic string) *KafkaSink {
	return &KafkaSink{writer: w, topic: topic}
}

func (s *KafkaSink) Publish(ctx context.Context, env Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(env.RunID),
		Value: payload,
		Time:  env.Timestamp,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(env.Type)},
			{Key: "source", Value: []byte("strata")},
		},
	}
	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write to kafka topic %s: %w", s.topic, err)
	}
	return nil
}

// Close flushes pending messages.
func (s *KafkaSink) Close() error {
	if s.writer == nil {
		return nil
	}
	return s.writer.Close()
}
