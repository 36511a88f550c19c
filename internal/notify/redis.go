// Package notify publishes pipeline notifications on a Redis pub/sub channel.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"subtitler/internal/pipeline"
)

type Redis struct {
	client  redis.UniversalClient
	channel string
}

func NewRedis(opts *redis.Options, channel string) *Redis {
	return &Redis{client: redis.NewClient(opts), channel: channel}
}

// Notify publishes n as JSON. Subscribers are not awaited; the result only
// reports how many were listening.
func (r *Redis) Notify(ctx context.Context, n pipeline.Notification) (pipeline.DispatchResult, error) {
	output, err := json.Marshal(n)
	if err != nil {
		return pipeline.DispatchResult{}, err
	}
	receivers, err := r.client.Publish(ctx, r.channel, output).Result()
	if err != nil {
		return pipeline.DispatchResult{}, fmt.Errorf("publish to %s: %w", r.channel, err)
	}
	return pipeline.DispatchResult{Receivers: receivers}, nil
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Redis) Close() error {
	return r.client.Close()
}
