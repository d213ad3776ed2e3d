package queue

import (
	"context"
	"errors"
	"time"
)

// ErrQueueFull is returned when the in-memory queue cannot accept more
// tasks.
var ErrQueueFull = errors.New("task queue full")

// MemoryQueue is a bounded in-process queue used when no Redis server is
// configured. Tasks do not survive a restart.
type MemoryQueue struct {
	ch chan Task
}

// NewMemoryQueue creates a MemoryQueue holding up to capacity pending
// tasks.
func NewMemoryQueue(capacity int) *MemoryQueue {
	if capacity <= 0 {
		capacity = 256
	}
	return &MemoryQueue{ch: make(chan Task, capacity)}
}

// Enqueue submits the task without blocking; ErrQueueFull when at capacity.
func (q *MemoryQueue) Enqueue(ctx context.Context, task Task) (string, error) {
	ensureID(&task)
	select {
	case q.ch <- task:
		return task.ID, nil
	default:
		return "", ErrQueueFull
	}
}

// Dequeue waits up to one second for the next task; (nil, nil) on timeout.
func (q *MemoryQueue) Dequeue(ctx context.Context) (*Task, error) {
	timer := time.NewTimer(time.Second)
	defer timer.Stop()
	select {
	case task := <-q.ch:
		return &task, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, nil
	}
}
