package emit

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/yanun0323/errors"

	"main/internal/codec"
	"main/internal/schema"
)

// RedisSink publishes trade events to the analytics channel over redis
// pub/sub, the same transport the rest of the platform speaks.
type RedisSink struct {
	client  *redis.Client
	channel string
}

// NewRedisSink creates a sink publishing to the given channel.
func NewRedisSink(client *redis.Client, channel string) *RedisSink {
	return &RedisSink{client: client, channel: channel}
}

// Name implements Sink.
func (s *RedisSink) Name() string {
	return "redis:" + s.channel
}

// Deliver implements Sink.
func (s *RedisSink) Deliver(ctx context.Context, event schema.TradeEvent) error {
	payload, err := codec.EncodeTradeEvent(event)
	if err != nil {
		return err
	}
	if err := s.client.Publish(ctx, s.channel, payload).Err(); err != nil {
		return errors.Wrap(err, "publish trade event")
	}
	return nil
}
