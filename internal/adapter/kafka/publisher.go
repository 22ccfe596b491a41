package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/ocean-query-service/internal/config"
	"github.com/couchcryptid/ocean-query-service/internal/domain"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Publisher produces query events to a Kafka topic.
// It implements pipeline.EventPublisher.
type Publisher struct {
	writer messageWriter
	logger *slog.Logger
}

// NewPublisher creates a Kafka producer for the configured query topic.
func NewPublisher(cfg *config.Config, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaQueryTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Publisher{writer: w, logger: logger}
}

// Publish writes one event keyed by session id, so a session's events stay on
// one partition and in order.
func (p *Publisher) Publish(ctx context.Context, event domain.QueryEvent) error {
	msg, err := serializeToMessage(event)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write query event: %w", err)
	}
	p.logger.Debug("query event published", "session_id", event.SessionID, "answer_kind", event.AnswerKind)
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// serializeToMessage marshals a QueryEvent into a Kafka message.
func serializeToMessage(event domain.QueryEvent) (kafkago.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize query event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(event.SessionID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "answer_kind", Value: []byte(event.AnswerKind)},
			{Key: "resolved_at", Value: []byte(event.ResolvedAt.Format(time.RFC3339))},
		},
	}, nil
}
