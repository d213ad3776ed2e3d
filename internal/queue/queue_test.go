package queue

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRedisQueue(t *testing.T) *RedisQueue {
	t.Helper()
	srv := miniredis.RunT(t)
	q := NewRedisQueue(srv.Addr(), "mindyard:tasks")
	t.Cleanup(func() { q.Close() })
	return q
}

func TestRedisQueueRoundTrip(t *testing.T) {
	q := newTestRedisQueue(t)
	ctx := context.Background()

	id, err := q.Enqueue(ctx, Task{
		Type:     TypeDeepResearch,
		ThreadID: "t1",
		Query:    "Pythonの非同期処理",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	task, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, task)
	assert.Equal(t, id, task.ID)
	assert.Equal(t, TypeDeepResearch, task.Type)
	assert.Equal(t, "Pythonの非同期処理", task.Query)
}

func TestRedisQueuePreservesOrder(t *testing.T) {
	q := newTestRedisQueue(t)
	ctx := context.Background()

	first, err := q.Enqueue(ctx, Task{Type: TypeStructuralUpdate, ThreadID: "t1"})
	require.NoError(t, err)
	second, err := q.Enqueue(ctx, Task{Type: TypeStructuralUpdate, ThreadID: "t2"})
	require.NoError(t, err)

	task, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, task.ID)

	task, err = q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, second, task.ID)
}

func TestRedisQueueLen(t *testing.T) {
	q := newTestRedisQueue(t)
	ctx := context.Background()

	_, err := q.Enqueue(ctx, Task{Type: TypeDeepResearch})
	require.NoError(t, err)

	n, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestMemoryQueueRoundTrip(t *testing.T) {
	q := NewMemoryQueue(4)
	ctx := context.Background()

	id, err := q.Enqueue(ctx, Task{Type: TypeStructuralUpdate, ThreadID: "t1"})
	require.NoError(t, err)

	task, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, task)
	assert.Equal(t, id, task.ID)
}

func TestMemoryQueueFull(t *testing.T) {
	q := NewMemoryQueue(1)
	ctx := context.Background()

	_, err := q.Enqueue(ctx, Task{Type: TypeDeepResearch})
	require.NoError(t, err)

	_, err = q.Enqueue(ctx, Task{Type: TypeDeepResearch})
	assert.ErrorIs(t, err, ErrQueueFull)
}

func TestWorkerDispatchesByType(t *testing.T) {
	q := NewMemoryQueue(4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var handled int32
	w := NewWorker(q, zap.NewNop())
	w.Handle(TypeStructuralUpdate, func(ctx context.Context, task Task) error {
		atomic.AddInt32(&handled, 1)
		cancel()
		return nil
	})

	_, err := q.Enqueue(ctx, Task{Type: TypeStructuralUpdate, ThreadID: "t1"})
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		_ = w.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not process the task in time")
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&handled))
}

type failingDequeuer struct {
	calls int32
}

func (f *failingDequeuer) Dequeue(ctx context.Context) (*Task, error) {
	atomic.AddInt32(&f.calls, 1)
	return nil, errors.New("connection refused")
}

func TestWorkerBacksOffOnDequeueErrors(t *testing.T) {
	src := &failingDequeuer{}
	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	w := NewWorker(src, zap.NewNop())

	err := w.Run(ctx)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	// One failure, then the retry delay absorbs the rest of the deadline.
	assert.LessOrEqual(t, atomic.LoadInt32(&src.calls), int32(2))
}

func TestWorkerSkipsUnknownType(t *testing.T) {
	q := NewMemoryQueue(4)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	w := NewWorker(q, zap.NewNop())

	_, err := q.Enqueue(ctx, Task{Type: "unknown"})
	require.NoError(t, err)

	err = w.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
