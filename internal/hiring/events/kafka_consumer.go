package events

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type KafkaReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer feeds collection events from other instances to a handler.
type Consumer struct {
	reader  KafkaReader
	source  string
	logger  *zap.Logger
	handler func(context.Context, Event) error
}

// NewConsumer reads topic as member of groupID. Events published by source
// itself are committed without being handled.
func NewConsumer(brokers []string, topic, groupID, source string, logger *zap.Logger) *Consumer {
	return newConsumer(kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		GroupID: groupID,
		Topic:   topic,
		Dialer:  kafka.DefaultDialer,
	}), source, logger)
}

func newConsumer(reader KafkaReader, source string, logger *zap.Logger) *Consumer {
	return &Consumer{
		reader: reader,
		source: source,
		logger: logger.Named("kafka_consumer"),
	}
}

func (c *Consumer) Start(ctx context.Context) {
	go c.run(ctx)
}

func (c *Consumer) run(ctx context.Context) {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("Failed to fetch message", zap.Error(err))
			continue
		}

		if err := c.handle(ctx, msg); err != nil {
			continue
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.logger.Error("Failed to commit message", zap.Error(err))
		}
	}
}

// handle returns an error when the message must not be committed.
func (c *Consumer) handle(ctx context.Context, msg kafka.Message) error {
	var event Event
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		c.logger.Error("Failed to parse event",
			zap.Error(err),
			zap.ByteString("value", msg.Value),
		)
		// unparsable messages are committed so they are not redelivered forever
		return nil
	}

	if event.Source == c.source || c.handler == nil {
		return nil
	}

	if err := c.handler(ctx, event); err != nil {
		c.logger.Error("Failed to handle event",
			zap.Error(err),
			zap.String("event_type", string(event.Type)),
		)
		return err
	}
	return nil
}

func (c *Consumer) RegisterHandler(fn func(context.Context, Event) error) {
	c.handler = fn
}

func (c *Consumer) Close() {
	if err := c.reader.Close(); err != nil {
		c.logger.Error("Failed to close Kafka reader", zap.Error(err))
	}
}
