package trigger

import (
	"context"
	"fmt"

	"github.com/ThiagoRGoveia/epi-cleaning/internal/logging"
	"github.com/streadway/amqp"
)

const consumerTag = "epi-cleaner"

// AMQPChannel is the part of *amqp.Channel the consumer needs.
type AMQPChannel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	Qos(prefetchCount, prefetchSize int, global bool) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
}

// Consumer reads storage notifications from a queue, one at a time.
// A message is acked once every object in it was handled and nacked
// without requeue otherwise.
type Consumer struct {
	channel AMQPChannel
	queue   string
	handler Handler
	logger  *logging.Logger
}

func NewConsumer(channel AMQPChannel, queue string, handler Handler, logger *logging.Logger) *Consumer {
	return &Consumer{
		channel: channel,
		queue:   queue,
		handler: handler,
		logger:  logger,
	}
}

// Start consumes until ctx is done or the delivery channel closes.
func (c *Consumer) Start(ctx context.Context) error {
	if _, err := c.channel.QueueDeclare(c.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", c.queue, err)
	}

	if err := c.channel.Qos(1, 0, false); err != nil {
		return fmt.Errorf("failed to set prefetch: %w", err)
	}

	msgs, err := c.channel.Consume(c.queue, consumerTag, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to consume: %w", err)
	}

	c.logger.WithField("queue", c.queue).Info("Consumer started, waiting for messages...")

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Consumer stopping")
			return ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				return fmt.Errorf("delivery channel for %s closed", c.queue)
			}
			c.processMessage(ctx, msg)
		}
	}
}

func (c *Consumer) processMessage(ctx context.Context, msg amqp.Delivery) {
	event, err := ParseStorageEvent(msg.Body)
	if err != nil {
		c.logger.WithError(err).Error("Discarding malformed message")
		c.nack(msg)
		return
	}

	if err := c.handler.HandleEvent(ctx, event); err != nil {
		c.logger.WithError(err).Error("Failed to handle storage notification")
		c.nack(msg)
		return
	}

	if err := msg.Ack(false); err != nil {
		c.logger.WithError(err).Error("Failed to ack message")
	}
}

func (c *Consumer) nack(msg amqp.Delivery) {
	if err := msg.Nack(false, false); err != nil {
		c.logger.WithError(err).Error("Failed to nack message")
	}
}
