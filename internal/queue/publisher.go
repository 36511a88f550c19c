package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"subtitler/internal/job"
	"subtitler/internal/pipeline"
)

// Publisher sends persistent messages to one queue and waits for the broker
// to confirm each. A confirm means the broker took responsibility for the
// message, not that anyone consumed it.
type Publisher struct {
	mu    sync.Mutex
	ch    *amqp.Channel
	queue string
}

func NewPublisher(conn *amqp.Connection, queue string) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}
	if _, err := declare(ch, queue); err != nil {
		ch.Close()
		return nil, err
	}
	if err := ch.Confirm(false); err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to enable publisher confirms: %w", err)
	}
	return &Publisher{ch: ch, queue: queue}, nil
}

func (p *Publisher) Publish(ctx context.Context, messageID string, body []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	confirmation, err := p.ch.PublishWithDeferredConfirmWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    messageID,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", p.queue, err)
	}
	acked, err := confirmation.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to confirm publish to %s: %w", p.queue, err)
	}
	if !acked {
		return errors.New("broker rejected the message")
	}
	return nil
}

func (p *Publisher) Close() error {
	return p.ch.Close()
}

type publisher interface {
	Publish(ctx context.Context, messageID string, body []byte) error
}

// Forwarder sends delivery requests to the delivery queue.
type Forwarder struct {
	publisher publisher
}

func NewForwarder(p publisher) *Forwarder {
	return &Forwarder{publisher: p}
}

// Forward publishes req with the job's correlation id as message id, so
// redelivered copies of one job are recognizable on the wire.
func (f *Forwarder) Forward(ctx context.Context, req pipeline.DeliveryRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal the delivery request: %w", err)
	}
	return f.publisher.Publish(ctx, job.CorrelationID(req.FileName), body)
}
