package amqp

import (
	"context"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"

	applog "expensetracker/internal/log"
)

const publishTimeout = 5 * time.Second

// Client publishes and consumes change events on a durable direct exchange.
type Client struct {
	conn         *amqp091.Connection
	channel      *amqp091.Channel
	exchangeName string
	queueName    string
	logger       *applog.Logger
}

func NewClient(url, exchangeName, queueName string, logger *applog.Logger) (*Client, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	client := &Client{
		conn:         conn,
		channel:      channel,
		exchangeName: exchangeName,
		queueName:    queueName,
		logger:       applog.OrDefault(logger, applog.ComponentAMQP),
	}

	if err := client.setup(); err != nil {
		client.Close()
		return nil, fmt.Errorf("setup exchange and queue: %w", err)
	}

	return client, nil
}

func (c *Client) setup() error {
	err := c.channel.ExchangeDeclare(
		c.exchangeName, // name
		"direct",       // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	_, err = c.channel.QueueDeclare(
		c.queueName, // name
		true,        // durable
		false,       // delete when unused
		false,       // exclusive
		false,       // no-wait
		nil,         // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	// routing key is the queue name
	err = c.channel.QueueBind(c.queueName, c.queueName, c.exchangeName, false, nil)
	if err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}

	return nil
}

// Publish sends a change event as a persistent JSON message.
func (c *Client) Publish(ctx context.Context, event ChangeEvent) error {
	body, err := event.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = c.channel.PublishWithContext(
		ctx,
		c.exchangeName, // exchange
		c.queueName,    // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			MessageId:    event.ID.String(),
			Type:         event.Entity + "." + event.Op,
			Timestamp:    event.Timestamp,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish event: %w", err)
	}

	c.logger.DebugContext(ctx, "Published change event",
		"event_id", event.ID,
		applog.FieldEntity, event.Entity,
		applog.FieldOperation, event.Op,
		applog.FieldID, event.RecordID,
		"exchange", c.exchangeName)

	return nil
}

// ConsumeChanges delivers events to handler until ctx is done. Malformed
// bodies are dropped, handler failures are requeued.
func (c *Client) ConsumeChanges(ctx context.Context, handler func(context.Context, ChangeEvent) error) error {
	msgs, err := c.channel.Consume(
		c.queueName, // queue
		"",          // consumer
		false,       // auto-ack
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	c.logger.InfoContext(ctx, "Started consuming change events", "queue", c.queueName)

	for {
		select {
		case <-ctx.Done():
			c.logger.InfoContext(ctx, "Stopping change event consumption", "reason", ctx.Err())
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return fmt.Errorf("message channel closed")
			}
			c.handleDelivery(ctx, delivery, handler)
		}
	}
}

func (c *Client) handleDelivery(ctx context.Context, d amqp091.Delivery, handler func(context.Context, ChangeEvent) error) {
	event, err := ChangeEventFromJSON(d.Body)
	if err != nil {
		c.logger.ErrorContext(ctx, "Dropping malformed change event", applog.FieldError, err)
		if err := d.Nack(false, false); err != nil {
			c.logger.WarnContext(ctx, "Nack failed", applog.FieldError, err)
		}
		return
	}

	if err := handler(ctx, event); err != nil {
		c.logger.ErrorContext(ctx, "Failed to handle change event",
			applog.FieldError, err,
			"event_id", event.ID,
			applog.FieldEntity, event.Entity)
		if err := d.Nack(false, true); err != nil {
			c.logger.WarnContext(ctx, "Nack failed", applog.FieldError, err)
		}
		return
	}

	if err := d.Ack(false); err != nil {
		c.logger.WarnContext(ctx, "Ack failed", applog.FieldError, err)
	}
}

// Healthy reports whether the broker connection is still open.
func (c *Client) Healthy() bool {
	return c.conn != nil && !c.conn.IsClosed()
}

func (c *Client) Close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
