// Package consumer implements the event consumer: a worker pool draining the
// work queue, dispatching each delivery to the counter store, and answering
// stats queries on the caller's reply queue.
package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/fairyhunter13/page-stats-service/internal/model"
	"github.com/fairyhunter13/page-stats-service/internal/obs"
	"github.com/fairyhunter13/page-stats-service/internal/store"
)

// Replier publishes a stats reply to a caller-specified reply queue.
type Replier interface {
	PublishReply(ctx context.Context, replyTo, correlationID string, body []byte) error
}

// Consumer dispatches deliveries from the work queue. Handlers are safe
// under concurrent delivery because all mutations are atomic conditional
// updates in the store.
type Consumer struct {
	store   store.Store
	replier Replier
	workers int
}

// New constructs a Consumer with explicit dependencies.
func New(st store.Store, rep Replier, workers int) *Consumer {
	if workers < 1 {
		workers = 1
	}
	return &Consumer{store: st, replier: rep, workers: workers}
}

// Run drains the deliveries channel with the configured number of workers
// and blocks until the channel closes or ctx is cancelled.
func (c *Consumer) Run(ctx context.Context, deliveries <-chan amqp.Delivery) {
	var wg sync.WaitGroup
	for i := 0; i < c.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.worker(ctx, deliveries)
		}()
	}
	obs.Logger.Info().Int("worker_count", c.workers).Msg("consumer_started")
	wg.Wait()
	obs.Logger.Info().Msg("consumer_stopped")
}

func (c *Consumer) worker(ctx context.Context, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				return
			}
			c.handle(ctx, d)
		}
	}
}

// handle processes one delivery end to end. Errors are isolated per
// message: a bad message never stops the loop.
func (c *Consumer) handle(ctx context.Context, d amqp.Delivery) {
	ev, err := model.DecodeEvent(d.Body)
	if err != nil {
		obs.DecodeFailures.Inc()
		obs.Logger.Error().Err(err).Str("body", string(d.Body)).Msg("event_decode_failed")
		// Dead-letter when the queue has a DLX, drop otherwise. Requeueing
		// a malformed message would loop forever.
		c.nack(d, false)
		return
	}

	err = c.dispatch(ctx, ev, d)
	switch {
	case err == nil:
		obs.EventsConsumed.WithLabelValues(string(ev.Field), string(ev.Action)).Inc()
		c.ack(d)
	case errors.Is(err, store.ErrConditionFailed):
		obs.ConditionFailures.WithLabelValues(string(ev.Field)).Inc()
		obs.Logger.Warn().Int64("page_id", ev.Page).Str("field", string(ev.Field)).
			Msg("decrement_rejected_at_zero")
		c.ack(d)
	case errors.Is(err, store.ErrNotFound):
		// A missing record on a non-creation event means a lost or missing
		// "new" event upstream. Redelivery cannot fix it, so surface and ack.
		obs.Logger.Error().Int64("page_id", ev.Page).Str("field", string(ev.Field)).
			Str("action", string(ev.Action)).Msg("page_record_missing")
		c.ack(d)
	case errors.Is(err, store.ErrAlreadyExists):
		obs.Logger.Error().Int64("page_id", ev.Page).Msg("duplicate_page_create")
		c.ack(d)
	case errors.Is(err, model.ErrInvalidEvent):
		// Same policy as a decode failure: dead-letter, never requeue.
		obs.DecodeFailures.Inc()
		obs.Logger.Error().Err(err).Int64("page_id", ev.Page).Msg("event_rejected")
		c.nack(d, false)
	default:
		// Store or broker unavailable: leave the message for redelivery.
		obs.Requeues.Inc()
		obs.Logger.Error().Err(err).Int64("page_id", ev.Page).Msg("event_handling_failed")
		c.nack(d, true)
	}
}

// dispatch branches on the (field, action) pair. DecodeEvent has already
// rejected unknown combinations.
func (c *Consumer) dispatch(ctx context.Context, ev model.Event, d amqp.Delivery) error {
	switch {
	case ev.Field == model.FieldPage && ev.Action == model.ActionNew:
		return c.store.Create(ctx, ev.Page)
	case ev.Field == model.FieldPage && ev.Action == model.ActionStats:
		return c.answerStats(ctx, ev, d.ReplyTo, d.CorrelationId)
	case ev.Action == model.ActionPlus:
		return c.store.Increment(ctx, ev.Page, ev.Field)
	case ev.Action == model.ActionMinus:
		return c.store.Decrement(ctx, ev.Page, ev.Field)
	default:
		return fmt.Errorf("%w: no handler for (%s, %s)", model.ErrInvalidEvent, ev.Field, ev.Action)
	}
}

// answerStats reads the counter record and publishes the reply to the
// caller's reply queue, tagged with its correlation id. A missing record
// becomes an explicit error reply so the caller never waits out its
// deadline for an answerable query.
func (c *Consumer) answerStats(ctx context.Context, ev model.Event, replyTo, correlationID string) error {
	if replyTo == "" {
		return fmt.Errorf("%w: stats query without reply_to", model.ErrInvalidEvent)
	}
	var body []byte
	st, err := c.store.Get(ctx, ev.Page)
	switch {
	case err == nil:
		body, err = json.Marshal(st)
		if err != nil {
			return fmt.Errorf("marshal stats reply: %w", err)
		}
	case errors.Is(err, store.ErrNotFound):
		obs.Logger.Error().Int64("page_id", ev.Page).Msg("stats_query_page_missing")
		body, err = json.Marshal(map[string]any{"error": "not_found", "page_id": ev.Page})
		if err != nil {
			return fmt.Errorf("marshal error reply: %w", err)
		}
	default:
		return err
	}
	if err := c.replier.PublishReply(ctx, replyTo, correlationID, body); err != nil {
		return err
	}
	obs.StatsReplies.Inc()
	return nil
}

func (c *Consumer) ack(d amqp.Delivery) {
	if err := d.Ack(false); err != nil {
		obs.Logger.Error().Err(err).Uint64("delivery_tag", d.DeliveryTag).Msg("ack_failed")
	}
}

func (c *Consumer) nack(d amqp.Delivery, requeue bool) {
	if err := d.Nack(false, requeue); err != nil {
		obs.Logger.Error().Err(err).Uint64("delivery_tag", d.DeliveryTag).Msg("nack_failed")
	}
}
