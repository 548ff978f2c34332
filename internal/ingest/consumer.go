// Package ingest consumes ticks, signals, and cancel requests from the
// platform's redis pub/sub channels and feeds them to the engine.
// Delivery is at-least-once with possible reordering; the engine's
// sequence guard and deduplicator absorb both.
package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/yanun0323/logs"

	"main/internal/codec"
	"main/internal/engine"
)

// defaultRetryDelay paces retries when a partition mailbox is full.
const defaultRetryDelay = 50 * time.Millisecond

// Channels names the pub/sub channels the consumer listens on.
type Channels struct {
	Ticks   string
	Signals string
	Cancels string
}

// Consumer bridges redis pub/sub into the engine.
type Consumer struct {
	client     *redis.Client
	channels   Channels
	eng        *engine.Engine
	retryDelay time.Duration
}

// NewConsumer creates a consumer over the given channels.
func NewConsumer(client *redis.Client, channels Channels, eng *engine.Engine) *Consumer {
	return &Consumer{
		client:     client,
		channels:   channels,
		eng:        eng,
		retryDelay: defaultRetryDelay,
	}
}

// Run subscribes and dispatches messages until the context is done.
func (c *Consumer) Run(ctx context.Context) error {
	sub := c.client.Subscribe(ctx, c.channels.Ticks, c.channels.Signals, c.channels.Cancels)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	logs.Infof("consuming. ticks: %s, signals: %s, cancels: %s", c.channels.Ticks, c.channels.Signals, c.channels.Cancels)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			c.dispatch(ctx, msg)
		}
	}
}

func (c *Consumer) dispatch(ctx context.Context, msg *redis.Message) {
	payload := []byte(msg.Payload)
	switch msg.Channel {
	case c.channels.Ticks:
		tick, err := codec.DecodeMarketTick(payload)
		if err != nil {
			logs.Warnf("malformed tick dropped. err: %v", err)
			return
		}
		c.eng.ApplyTick(tick)
	case c.channels.Signals:
		sig, err := codec.DecodeSignal(payload)
		if err != nil {
			logs.Warnf("malformed signal dropped. err: %v", err)
			return
		}
		c.submit(ctx, func() error { return c.eng.SubmitSignal(sig) })
	case c.channels.Cancels:
		req, err := codec.DecodeCancelRequest(payload)
		if err != nil {
			logs.Warnf("malformed cancel dropped. err: %v", err)
			return
		}
		c.submit(ctx, func() error { return c.eng.SubmitCancel(req) })
	}
}

// submit retries mailbox-full rejections so the message is requeued, not
// reordered or lost. Any other error is terminal for the message.
func (c *Consumer) submit(ctx context.Context, fn func() error) {
	for {
		err := fn()
		if err == nil {
			return
		}
		if !errors.Is(err, engine.ErrMailboxFull) {
			logs.Warnf("message dropped. err: %v", err)
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(c.retryDelay):
		}
	}
}
