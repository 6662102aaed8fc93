package queue

import (
	"context"
	"encoding/json"
)

// Job names understood by the engine worker.
const (
	ProcessWorkflowEventJob    = "processWorkflowEvent"
	CheckScheduledWorkflowsJob = "checkScheduledWorkflows"
)

// DefaultKeepFailed bounds how many failed jobs are retained for inspection.
const DefaultKeepFailed = 100

// Job is one durable unit of work.
type Job struct {
	ID       string          `json:"id" db:"id"`
	Name     string          `json:"name" db:"name"`
	Payload  json.RawMessage `json:"payload" db:"payload"`
	Attempts int             `json:"attempts" db:"attempts"`
}

// Options control job retention. Completed jobs are removed when
// RemoveOnComplete is set; failed jobs are kept up to KeepFailed rows,
// never silently discarded.
type Options struct {
	RemoveOnComplete bool
	KeepFailed       int
}

// DefaultOptions matches the engine's retention policy.
func DefaultOptions() Options {
	return Options{RemoveOnComplete: true, KeepFailed: DefaultKeepFailed}
}

// Queue is a durable at-least-once job queue. A job dequeued but neither
// completed nor failed (e.g. consumer crash) becomes eligible for
// redelivery.
type Queue interface {
	// Enqueue adds a job. payload is JSON-marshalled.
	Enqueue(ctx context.Context, name string, payload interface{}, opts Options) error
	// Dequeue blocks until a job is available or ctx is done.
	Dequeue(ctx context.Context) (*Job, error)
	// Complete acknowledges successful processing.
	Complete(ctx context.Context, job *Job) error
	// Fail records a processing failure; the job is retained for inspection.
	Fail(ctx context.Context, job *Job, jobErr error) error
	Close() error
}
