package bus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTryPublishReportsFull(t *testing.T) {
	q := NewQueue[int](2)

	require.NoError(t, q.TryPublish(1))
	require.NoError(t, q.TryPublish(2))
	assert.ErrorIs(t, q.TryPublish(3), ErrQueueFull)
	assert.Equal(t, 2, q.Len())
}

func TestCloseRejectsPublish(t *testing.T) {
	q := NewQueue[int](1)
	q.Close()
	assert.ErrorIs(t, q.TryPublish(1), ErrQueueClosed)
}

func TestRunConsumesInOrder(t *testing.T) {
	q := NewQueue[int](4)
	for i := 1; i <= 3; i++ {
		require.NoError(t, q.TryPublish(i))
	}
	q.Close()

	var got []int
	done := make(chan struct{})
	go func() {
		defer close(done)
		q.Run(context.Background(), func(v int) { got = append(got, v) })
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("run did not drain")
	}
	assert.Equal(t, []int{1, 2, 3}, got)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	q := NewQueue[int](1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		q.Run(ctx, func(int) {})
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("run ignored cancellation")
	}
}
