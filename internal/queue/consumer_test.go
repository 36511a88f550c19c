package queue

import (
	"context"
	"fmt"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"subtitler/internal/job"
)

type settlement struct {
	tag     uint64
	method  string
	requeue bool
}

type recordingAcknowledger struct {
	settled []settlement
}

func (a *recordingAcknowledger) Ack(tag uint64, _ bool) error {
	a.settled = append(a.settled, settlement{tag: tag, method: "ack"})
	return nil
}

func (a *recordingAcknowledger) Nack(tag uint64, _ bool, requeue bool) error {
	a.settled = append(a.settled, settlement{tag: tag, method: "nack", requeue: requeue})
	return nil
}

func (a *recordingAcknowledger) Reject(tag uint64, requeue bool) error {
	a.settled = append(a.settled, settlement{tag: tag, method: "reject", requeue: requeue})
	return nil
}

func TestProcessSettlesMessages(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		want   settlement
		status int
	}{
		{"success", nil, settlement{tag: 7, method: "ack"}, 200},
		{"retriable", &job.StageError{State: "fetched", Err: job.ErrFetch}, settlement{tag: 7, method: "nack", requeue: true}, 500},
		{"malformed", fmt.Errorf("x: %w", job.ErrMalformedTrigger), settlement{tag: 7, method: "nack"}, 400},
		{"missing field", fmt.Errorf("x: %w", job.ErrMissingField), settlement{tag: 7, method: "nack"}, 400},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ack := &recordingAcknowledger{}
			c := &Consumer{queue: "deliveries", prefetch: 1}

			var got []byte
			result := c.process(context.Background(), amqp.Delivery{
				Acknowledger: ack,
				DeliveryTag:  7,
				MessageId:    "job-1",
				Body:         []byte(`{"k":"v"}`),
			}, func(_ context.Context, body []byte) error {
				got = body
				return tt.err
			})

			assert.Equal(t, []byte(`{"k":"v"}`), got)
			assert.Equal(t, []settlement{tt.want}, ack.settled)
			assert.Equal(t, tt.status, result.StatusCode)
			if tt.err != nil {
				assert.Contains(t, result.Body, tt.err.Error())
			}
		})
	}
}

func TestProcessAppliesInvocationTimeout(t *testing.T) {
	ack := &recordingAcknowledger{}
	c := &Consumer{queue: "uploads", prefetch: 1, timeout: 50 * time.Millisecond}

	result := c.process(context.Background(), amqp.Delivery{Acknowledger: ack, DeliveryTag: 3}, func(ctx context.Context, _ []byte) error {
		_, ok := ctx.Deadline()
		require.True(t, ok)
		<-ctx.Done()
		return ctx.Err()
	})

	assert.Equal(t, []settlement{{tag: 3, method: "nack", requeue: true}}, ack.settled)
	assert.Equal(t, 500, result.StatusCode)
}
