package events

import (
	"context"
	"fmt"
	"time"

	"parkly/pkg/config"
	"parkly/pkg/kafka"
	"parkly/pkg/logger"
	"parkly/pkg/model"
)

// Publisher emits domain events for the notifications pipeline. Workflows
// treat publishing as best-effort; a failed publish never rolls back the
// state change that produced the event.
type Publisher interface {
	Publish(ctx context.Context, event *model.DomainEvent) error
	Close() error
}

type kafkaPublisher struct {
	producer *kafka.Producer
	log      *logger.Logger
}

func NewKafkaPublisher(cfg *config.Config) (Publisher, error) {
	producer, err := kafka.NewProducer(cfg.KafkaBrokers, cfg.NotificationsTopic)
	if err != nil {
		return nil, fmt.Errorf("failed to create notifications producer: %w", err)
	}
	return &kafkaPublisher{
		producer: producer,
		log:      cfg.Log,
	}, nil
}

func (p *kafkaPublisher) Publish(ctx context.Context, event *model.DomainEvent) error {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	msg, err := kafka.NewMessage().
		WithKey(event.UserID).
		WithValue(event).
		WithEventType(event.Type).
		WithSource("parkly").
		Build()
	if err != nil {
		return fmt.Errorf("failed to build %s event: %w", event.Type, err)
	}

	if err := p.producer.Publish(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", event.Type, err)
	}

	p.log.Debug("Domain event published", "type", event.Type, "user_id", event.UserID)
	return nil
}

func (p *kafkaPublisher) Close() error {
	return p.producer.Close()
}

// NoopPublisher drops all events. Used when no Kafka brokers are configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(ctx context.Context, event *model.DomainEvent) error {
	return nil
}

func (NoopPublisher) Close() error {
	return nil
}
