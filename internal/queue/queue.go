// Package queue provides background task scheduling for handler nodes:
// research lookups and deferred hypothesis updates.
package queue

import (
	"context"

	"github.com/google/uuid"
)

// Task types understood by the worker.
const (
	TypeDeepResearch     = "deep_research"
	TypeStructuralUpdate = "structural_update"
)

// Task is an opaque descriptor handed to the scheduler by handler nodes.
type Task struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	ThreadID    string `json:"thread_id,omitempty"`
	UtteranceID string `json:"utterance_id,omitempty"`
	Query       string `json:"query,omitempty"`
}

// Scheduler enqueues tasks for background processing.
type Scheduler interface {
	// Enqueue submits the task and returns its id (generated when empty).
	Enqueue(ctx context.Context, task Task) (string, error)
}

// Dequeuer is the worker-side view of a queue. Dequeue returns (nil, nil)
// when no task arrived within the implementation's wait interval.
type Dequeuer interface {
	Dequeue(ctx context.Context) (*Task, error)
}

func ensureID(task *Task) {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
}
