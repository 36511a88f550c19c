// Package queue carries storage-write events and forwarded transcripts over
// RabbitMQ.
package queue

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"subtitler/internal/job"
	"subtitler/internal/pipeline"
)

// Handler processes one message body.
type Handler func(ctx context.Context, body []byte) error

// Disposition is what happens to a message after its handler returns.
type Disposition int

const (
	Ack Disposition = iota
	// Requeue hands the message back for redelivery.
	Requeue
	// Drop rejects the message for good (or to a dead-letter exchange).
	Drop
)

func (d Disposition) String() string {
	switch d {
	case Ack:
		return "ack"
	case Requeue:
		return "requeue"
	case Drop:
		return "drop"
	}
	return fmt.Sprintf("disposition(%d)", int(d))
}

// Decide maps a handler outcome to a disposition. Redelivery is the only
// retry mechanism, so anything retriable is requeued.
func Decide(err error) Disposition {
	switch {
	case err == nil:
		return Ack
	case job.Retriable(err):
		return Requeue
	}
	return Drop
}

// Consumer delivers messages from one queue to a Handler, at most Prefetch
// at a time. Every invocation runs under its own Timeout.
type Consumer struct {
	ch       *amqp.Channel
	queue    string
	prefetch int
	timeout  time.Duration
}

func NewConsumer(conn *amqp.Connection, queue string, prefetch int, timeout time.Duration) (*Consumer, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}
	if _, err := declare(ch, queue); err != nil {
		ch.Close()
		return nil, err
	}
	if prefetch < 1 {
		prefetch = 1
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to set qos: %w", err)
	}
	return &Consumer{ch: ch, queue: queue, prefetch: prefetch, timeout: timeout}, nil
}

// Run consumes until ctx is done or the channel closes.
func (c *Consumer) Run(ctx context.Context, handle Handler) error {
	defer c.ch.Close()

	messages, err := c.ch.ConsumeWithContext(ctx, c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to consume the queue %s: %w", c.queue, err)
	}
	log.Info().Str("queue", c.queue).Int("prefetch", c.prefetch).Msg("consuming")

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.prefetch)
	for {
		select {
		case <-ctx.Done():
			return g.Wait()
		case message, ok := <-messages:
			if !ok {
				_ = g.Wait()
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("delivery channel for %s closed", c.queue)
			}
			g.Go(func() error {
				_ = c.process(gctx, message, handle)
				return nil
			})
		}
	}
}

// process runs one invocation and settles the message. The returned Result is
// the stage outcome at the transport boundary.
func (c *Consumer) process(ctx context.Context, message amqp.Delivery, handle Handler) pipeline.Result {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	err := handle(ctx, message.Body)
	disposition := Decide(err)
	result := pipeline.NewResult(map[string]string{"message": "ok"}, err)
	logger := log.With().
		Str("queue", c.queue).
		Str("messageId", message.MessageId).
		Bool("redelivered", message.Redelivered).
		Stringer("disposition", disposition).
		Int("statusCode", result.StatusCode).
		Str("body", result.Body).
		Logger()

	switch disposition {
	case Ack:
		if err := message.Ack(false); err != nil {
			logger.Error().Err(err).Msg("failed to ack the message")
		}
	case Requeue:
		logger.Error().Err(err).Msg("failed to handle the message")
		if err := message.Nack(false, true); err != nil {
			logger.Error().Err(err).Msg("failed to nack the message")
		}
	case Drop:
		logger.Error().Err(err).Msg("dropping the message")
		if err := message.Nack(false, false); err != nil {
			logger.Error().Err(err).Msg("failed to nack the message")
		}
	}
	return result
}

func declare(ch *amqp.Channel, queue string) (amqp.Queue, error) {
	q, err := ch.QueueDeclare(queue, true, false, false, false, nil)
	if err != nil {
		return q, fmt.Errorf("failed to declare the queue %s: %w", queue, err)
	}
	return q, nil
}
