package queue

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// dequeueRetryDelay spaces out retries when the queue backend is failing.
const dequeueRetryDelay = time.Second

// Handler processes one dequeued task.
type Handler func(ctx context.Context, task Task) error

// Worker drains a queue and dispatches tasks to registered handlers. Tasks
// with no registered handler are logged and dropped; handler errors are
// logged, never retried (re-enqueue is the caller's decision).
type Worker struct {
	source   Dequeuer
	handlers map[string]Handler
	logger   *zap.Logger
}

// NewWorker builds a Worker reading from source.
func NewWorker(source Dequeuer, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		source:   source,
		handlers: map[string]Handler{},
		logger:   logger,
	}
}

// Handle registers a handler for a task type.
func (w *Worker) Handle(taskType string, h Handler) {
	w.handlers[taskType] = h
}

// Run processes tasks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	for {
		task, err := w.source.Dequeue(ctx)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		if err != nil {
			w.logger.Warn("dequeue failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(dequeueRetryDelay):
			}
			continue
		}
		if task == nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			continue
		}

		h, ok := w.handlers[task.Type]
		if !ok {
			w.logger.Warn("no handler for task",
				zap.String("task_id", task.ID),
				zap.String("task_type", task.Type))
			continue
		}
		if err := h(ctx, *task); err != nil {
			w.logger.Warn("task handler failed",
				zap.String("task_id", task.ID),
				zap.String("task_type", task.Type),
				zap.Error(err))
		}
	}
}
