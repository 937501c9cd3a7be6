package kafka

import (
	"context"
	"errors"
	"fmt"

	"github.com/segmentio/kafka-go"

	"parkly/pkg/logger"
)

// HandlerFunc processes one message. A returned error logs and skips the
// message; offsets are committed either way.
type HandlerFunc func(ctx context.Context, msg Message) error

// Consumer wraps a kafka-go reader in a run loop with graceful stop.
type Consumer struct {
	reader *kafka.Reader
	log    *logger.Logger
}

func NewConsumer(brokers []string, topic, groupID string, log *logger.Logger) (*Consumer, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("at least one broker is required")
	}
	if topic == "" {
		return nil, fmt.Errorf("topic cannot be empty")
	}
	if groupID == "" {
		return nil, fmt.Errorf("group ID cannot be empty")
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: groupID,
	})

	return &Consumer{
		reader: reader,
		log:    log,
	}, nil
}

// Run blocks until ctx is cancelled or the reader is closed.
func (c *Consumer) Run(ctx context.Context, handler HandlerFunc) {
	for {
		raw, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, kafka.ErrGroupClosed) {
				return
			}
			c.log.Error("Failed to read message", "topic", c.reader.Config().Topic, "error", err)
			continue
		}

		msg := Message{
			Key:       string(raw.Key),
			Value:     raw.Value,
			Headers:   make(map[string]string, len(raw.Headers)),
			Topic:     raw.Topic,
			Partition: raw.Partition,
			Offset:    raw.Offset,
			Timestamp: raw.Time,
		}
		for _, h := range raw.Headers {
			msg.Headers[h.Key] = string(h.Value)
		}

		if err := handler(ctx, msg); err != nil {
			c.log.Error("Message handler failed",
				"topic", msg.Topic,
				"offset", msg.Offset,
				"event_id", msg.Headers[HeaderEventID],
				"error", err,
			)
		}
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
