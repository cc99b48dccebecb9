// Package queue wires the service to RabbitMQ: the durable work queue the
// consumer drains, the reply publisher for stats queries, and the
// producer-side client used by the main application.
package queue

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/fairyhunter13/page-stats-service/internal/model"
)

const consumerTag = "page-stats-consumer"

// Client owns one AMQP connection and channel bound to the work queue.
type Client struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
}

// Dial connects to the broker, opens a channel with the given prefetch, and
// declares the durable work queue.
func Dial(url, queueName string, prefetch int) (*Client, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		conn.Close()
		return nil, fmt.Errorf("amqp qos: %w", err)
	}
	if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("declare queue %q: %w", queueName, err)
	}
	return &Client{conn: conn, ch: ch, queue: queueName}, nil
}

// Deliveries starts consuming the work queue with manual acknowledgements.
func (c *Client) Deliveries() (<-chan amqp.Delivery, error) {
	deliveries, err := c.ch.Consume(c.queue, consumerTag, false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("consume queue %q: %w", c.queue, err)
	}
	return deliveries, nil
}

// StopConsuming cancels the consumer. The broker stops pushing deliveries
// and the deliveries channel closes once in-flight messages are drained,
// while the channel stays open for pending acks.
func (c *Client) StopConsuming() error {
	return c.ch.Cancel(consumerTag, false)
}

// PublishEvent publishes a domain event onto the work queue. This is the
// surface the main application drives on every page/post/like/follower
// change.
func (c *Client) PublishEvent(ctx context.Context, ev model.Event) error {
	if err := ev.Validate(); err != nil {
		return err
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	err = c.ch.PublishWithContext(ctx, "", c.queue, false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
	})
	if err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// PublishReply publishes a stats reply directly to the caller's reply queue,
// tagged with its correlation id.
func (c *Client) PublishReply(ctx context.Context, replyTo, correlationID string, body []byte) error {
	err := c.ch.PublishWithContext(ctx, "", replyTo, false, false, amqp.Publishing{
		ContentType:   "application/json",
		CorrelationId: correlationID,
		Body:          body,
	})
	if err != nil {
		return fmt.Errorf("publish reply to %q: %w", replyTo, err)
	}
	return nil
}

// Close tears down the channel and connection.
func (c *Client) Close() error {
	if err := c.ch.Close(); err != nil {
		c.conn.Close()
		return fmt.Errorf("close channel: %w", err)
	}
	return c.conn.Close()
}
