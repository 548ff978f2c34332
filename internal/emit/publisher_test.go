package emit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/obs"
	"main/internal/schema"
)

type flakySink struct {
	mu        sync.Mutex
	failures  int
	delivered []string
}

func (s *flakySink) Name() string { return "flaky" }

func (s *flakySink) Deliver(_ context.Context, event schema.TradeEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failures > 0 {
		s.failures--
		return errors.New("sink unavailable")
	}
	s.delivered = append(s.delivered, event.EventID)
	return nil
}

func (s *flakySink) ids() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.delivered))
	copy(out, s.delivered)
	return out
}

func event(id string) schema.TradeEvent {
	return schema.TradeEvent{EventID: id, Kind: schema.TradeEventFill, OrderID: "o-1", Timestamp: time.Now().UTC()}
}

func TestDeliversInOrder(t *testing.T) {
	sink := &flakySink{}
	p := NewPublisher(obs.NewMetrics(), sink)
	p.Start(t.Context())

	p.Emit(event("ev-1"))
	p.Emit(event("ev-2"))
	p.Emit(event("ev-3"))

	require.Eventually(t, func() bool {
		return len(sink.ids()) == 3
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"ev-1", "ev-2", "ev-3"}, sink.ids())
	assert.Equal(t, 0, p.Depth())
}

func TestRetriesWithBackoffUntilDelivered(t *testing.T) {
	sink := &flakySink{failures: 2}
	metrics := obs.NewMetrics()
	p := NewPublisher(metrics, sink)
	p.Start(t.Context())

	p.Emit(event("ev-1"))

	require.Eventually(t, func() bool {
		return len(sink.ids()) == 1
	}, 5*time.Second, 10*time.Millisecond)
	assert.GreaterOrEqual(t, metrics.Snapshot().EmitRetries, uint64(2))
}

func TestStopsOnContextCancel(t *testing.T) {
	sink := &flakySink{failures: 1 << 30}
	ctx, cancel := context.WithCancel(context.Background())
	p := NewPublisher(obs.NewMetrics(), sink)
	p.Start(ctx)

	p.Emit(event("ev-1"))
	time.Sleep(50 * time.Millisecond)
	cancel()

	done := make(chan struct{})
	go func() {
		p.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publisher did not stop")
	}
	// The undelivered event stays queued; engine state is never rolled back.
	assert.Equal(t, 1, p.Depth())
}
