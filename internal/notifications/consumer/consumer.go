package consumer

import (
	"context"
	"encoding/json"
	"fmt"

	"parkly/internal/notifications/service"
	"parkly/pkg/config"
	"parkly/pkg/kafka"
	"parkly/pkg/model"
)

const groupID = "parkly-notifications"

// EventConsumer reads domain events off the notifications topic and turns
// them into notification records.
type EventConsumer struct {
	consumer *kafka.Consumer
	service  service.NotificationService
	cfg      *config.Config
}

func NewEventConsumer(cfg *config.Config, svc service.NotificationService) (*EventConsumer, error) {
	consumer, err := kafka.NewConsumer(cfg.KafkaBrokers, cfg.NotificationsTopic, groupID, cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to create notifications consumer: %w", err)
	}
	return &EventConsumer{
		consumer: consumer,
		service:  svc,
		cfg:      cfg,
	}, nil
}

// Run blocks until ctx is cancelled.
func (c *EventConsumer) Run(ctx context.Context) {
	c.cfg.Log.Info("Notifications consumer started", "topic", c.cfg.NotificationsTopic, "group_id", groupID)
	c.consumer.Run(ctx, c.handle)
}

func (c *EventConsumer) handle(ctx context.Context, msg kafka.Message) error {
	var event model.DomainEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return fmt.Errorf("failed to decode domain event: %w", err)
	}
	if event.Type == "" {
		event.Type = msg.Headers[kafka.HeaderEventType]
	}
	return c.service.Record(ctx, &event)
}

func (c *EventConsumer) Close() error {
	return c.consumer.Close()
}
