// Package emit hands committed trade events to the analytics boundary.
//
// The hand-off is at-least-once and never blocks a partition: events queue
// in arrival order and a single worker delivers them to every sink,
// retrying with backoff. Engine state is never rolled back for a delivery
// failure; the engine is the source of truth and the boundary is
// eventually consistent.
package emit

import (
	"context"
	"sync"
	"time"

	"github.com/yanun0323/logs"

	"main/internal/obs"
	"main/internal/schema"
)

const (
	initialBackoff = 100 * time.Millisecond
	maxBackoff     = 5 * time.Second
)

// Sink is one durable destination for trade events.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, event schema.TradeEvent) error
}

// Publisher queues trade events and delivers them in order.
type Publisher struct {
	sinks   []Sink
	metrics *obs.Metrics

	mu      sync.Mutex
	pending []schema.TradeEvent
	wake    chan struct{}
	done    chan struct{}
}

// NewPublisher creates a publisher over the given sinks.
func NewPublisher(metrics *obs.Metrics, sinks ...Sink) *Publisher {
	return &Publisher{
		sinks:   sinks,
		metrics: metrics,
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

// Emit queues an event. It never blocks; emission order is preserved.
func (p *Publisher) Emit(event schema.TradeEvent) {
	p.mu.Lock()
	p.pending = append(p.pending, event)
	p.mu.Unlock()
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// Depth returns the number of undelivered events.
func (p *Publisher) Depth() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

// Start runs the delivery worker until the context is done.
func (p *Publisher) Start(ctx context.Context) {
	go func() {
		defer close(p.done)
		for {
			select {
			case <-ctx.Done():
				return
			case <-p.wake:
				p.drain(ctx)
			}
		}
	}()
}

// Wait blocks until the worker has exited.
func (p *Publisher) Wait() {
	<-p.done
}

func (p *Publisher) drain(ctx context.Context) {
	for {
		p.mu.Lock()
		if len(p.pending) == 0 {
			p.mu.Unlock()
			return
		}
		event := p.pending[0]
		p.mu.Unlock()

		if !p.deliver(ctx, event) {
			return
		}

		p.mu.Lock()
		p.pending = p.pending[1:]
		p.mu.Unlock()
		p.metrics.IncEventEmitted()
	}
}

// deliver pushes one event to every sink, retrying each with backoff.
// Returns false only when the context ends.
func (p *Publisher) deliver(ctx context.Context, event schema.TradeEvent) bool {
	for _, sink := range p.sinks {
		backoff := initialBackoff
		for {
			if err := sink.Deliver(ctx, event); err == nil {
				break
			} else {
				p.metrics.IncEmitRetry()
				logs.Warnf("trade event delivery failed, retrying. sink: %s, eventId: %s, err: %v", sink.Name(), event.EventID, err)
			}
			select {
			case <-ctx.Done():
				return false
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}
	}
	return true
}
