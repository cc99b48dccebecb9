package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/fairyhunter13/page-stats-service/internal/model"
	"github.com/fairyhunter13/page-stats-service/internal/store"
)

// ErrTimeout means no correlated reply arrived within the deadline; the
// caller must treat statistics as unavailable.
var ErrTimeout = errors.New("stats reply timed out")

// ErrReplyChannelClosed means the reply queue consumer shut down mid-call.
var ErrReplyChannelClosed = errors.New("reply channel closed")

type errorReply struct {
	Error  string `json:"error"`
	PageID int64  `json:"page_id"`
}

type publishFunc func(ctx context.Context, replyTo, correlationID string, body []byte) error

// StatsClient is the producer-side synchronous stats query client. It holds
// one exclusive auto-deleted reply queue and rotates a fresh correlation id
// per call; replies carrying a stale id are discarded.
type StatsClient struct {
	publish    publishFunc
	deliveries <-chan amqp.Delivery
	replyQueue string
	timeout    time.Duration

	// One outstanding call at a time: the reply queue is shared across
	// calls from this client.
	mu sync.Mutex

	closer func() error
}

// NewStatsClient opens a channel on the given connection, declares the
// exclusive reply queue, and starts consuming it with auto-ack.
func NewStatsClient(conn *amqp.Connection, workQueue string, timeout time.Duration) (*StatsClient, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	if _, err := ch.QueueDeclare(workQueue, true, false, false, false, nil); err != nil {
		ch.Close()
		return nil, fmt.Errorf("declare queue %q: %w", workQueue, err)
	}
	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("declare reply queue: %w", err)
	}
	deliveries, err := ch.Consume(q.Name, "", true, true, false, false, nil)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("consume reply queue: %w", err)
	}
	publish := func(ctx context.Context, replyTo, correlationID string, body []byte) error {
		return ch.PublishWithContext(ctx, "", workQueue, false, false, amqp.Publishing{
			ContentType:   "application/json",
			CorrelationId: correlationID,
			ReplyTo:       replyTo,
			Body:          body,
		})
	}
	return &StatsClient{
		publish:    publish,
		deliveries: deliveries,
		replyQueue: q.Name,
		timeout:    timeout,
		closer:     ch.Close,
	}, nil
}

// GetStats publishes a stats query for the page and blocks until the
// correlated reply arrives, the deadline elapses, or ctx is cancelled.
// A missing page record surfaces as store.ErrNotFound.
func (c *StatsClient) GetStats(ctx context.Context, pageID int64) (model.Stats, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	corrID := uuid.NewString()
	body, err := json.Marshal(model.Event{Page: pageID, Field: model.FieldPage, Action: model.ActionStats})
	if err != nil {
		return model.Stats{}, fmt.Errorf("marshal stats query: %w", err)
	}
	if err := c.publish(ctx, c.replyQueue, corrID, body); err != nil {
		return model.Stats{}, fmt.Errorf("publish stats query: %w", err)
	}

	deadline := time.NewTimer(c.timeout)
	defer deadline.Stop()
	for {
		select {
		case <-ctx.Done():
			return model.Stats{}, ctx.Err()
		case <-deadline.C:
			return model.Stats{}, ErrTimeout
		case d, ok := <-c.deliveries:
			if !ok {
				return model.Stats{}, ErrReplyChannelClosed
			}
			if d.CorrelationId != corrID {
				// Late reply from a previous call.
				continue
			}
			return decodeReply(pageID, d.Body)
		}
	}
}

func decodeReply(pageID int64, body []byte) (model.Stats, error) {
	var er errorReply
	if err := json.Unmarshal(body, &er); err == nil && er.Error != "" {
		if er.Error == "not_found" {
			return model.Stats{}, fmt.Errorf("stats for page %d: %w", pageID, store.ErrNotFound)
		}
		return model.Stats{}, fmt.Errorf("stats for page %d: %s", pageID, er.Error)
	}
	var st model.Stats
	if err := json.Unmarshal(body, &st); err != nil {
		return model.Stats{}, fmt.Errorf("decode stats reply: %w", err)
	}
	return st, nil
}

// Close shuts the client's channel, deleting the exclusive reply queue.
func (c *StatsClient) Close() error {
	if c.closer == nil {
		return nil
	}
	return c.closer()
}
