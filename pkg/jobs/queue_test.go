package jobs

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestQueueProcessesJobs(t *testing.T) {
	var processed int64
	queue := NewQueue("test", func(_ context.Context, _ Job) error {
		atomic.AddInt64(&processed, 1)
		return nil
	}, QueueConfig{Workers: 2, BufferSize: 4})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	queue.Start(ctx)
	defer queue.Stop()

	for i := 0; i < 4; i++ {
		require.NoError(t, queue.Enqueue(Job{ID: "job", Type: "solve"}))
	}

	require.Eventually(t, func() bool {
		return atomic.LoadInt64(&processed) == 4
	}, 2*time.Second, 10*time.Millisecond)
}

func TestQueueEnqueueBeforeStart(t *testing.T) {
	queue := NewQueue("test", func(_ context.Context, _ Job) error { return nil }, QueueConfig{})
	require.Error(t, queue.Enqueue(Job{ID: "job"}))
	require.Error(t, queue.TryEnqueue(Job{ID: "job"}))
}

func TestQueueTryEnqueueFullBuffer(t *testing.T) {
	block := make(chan struct{})
	queue := NewQueue("test", func(_ context.Context, _ Job) error {
		<-block
		return nil
	}, QueueConfig{Workers: 1, BufferSize: 1})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	queue.Start(ctx)
	defer func() {
		close(block)
		queue.Stop()
	}()

	// first job occupies the worker, second fills the buffer
	require.NoError(t, queue.Enqueue(Job{ID: "a"}))
	require.Eventually(t, func() bool {
		return queue.TryEnqueue(Job{ID: "b"}) == nil
	}, time.Second, 5*time.Millisecond)

	require.Error(t, queue.TryEnqueue(Job{ID: "c"}))
}
