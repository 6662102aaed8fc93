package queue

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// MemoryQueue implements Queue in memory for unit tests and examples. It
// mirrors the retention behavior of the durable queue: completed jobs with
// RemoveOnComplete are dropped, failed jobs are kept up to KeepFailed.
type MemoryQueue struct {
	mu     sync.Mutex
	jobs   chan *Job
	opts   map[string]Options // by job ID
	Failed []*Job
	Done   []*Job
	closed bool

	// EnqueueErr, when set, makes Enqueue fail (for dispatcher tests).
	EnqueueErr error
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{
		jobs: make(chan *Job, 256),
		opts: make(map[string]Options),
	}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, name string, payload interface{}, opts Options) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.EnqueueErr != nil {
		return q.EnqueueErr
	}
	if q.closed {
		return errors.New("queue closed")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "marshal job payload")
	}
	job := &Job{ID: uuid.NewString(), Name: name, Payload: data}
	q.opts[job.ID] = opts
	select {
	case q.jobs <- job:
		return nil
	default:
		return errors.New("queue full")
	}
}

func (q *MemoryQueue) Dequeue(ctx context.Context) (*Job, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case job, ok := <-q.jobs:
		if !ok {
			return nil, errors.New("queue closed")
		}
		job.Attempts++
		return job, nil
	}
}

func (q *MemoryQueue) Complete(ctx context.Context, job *Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	opts := q.opts[job.ID]
	delete(q.opts, job.ID)
	if !opts.RemoveOnComplete {
		q.Done = append(q.Done, job)
	}
	return nil
}

func (q *MemoryQueue) Fail(ctx context.Context, job *Job, jobErr error) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	opts := q.opts[job.ID]
	delete(q.opts, job.ID)
	q.Failed = append(q.Failed, job)
	keep := opts.KeepFailed
	if keep <= 0 {
		keep = DefaultKeepFailed
	}
	if len(q.Failed) > keep {
		q.Failed = q.Failed[len(q.Failed)-keep:]
	}
	return nil
}

// Len reports the number of queued (not yet dequeued) jobs.
func (q *MemoryQueue) Len() int {
	return len(q.jobs)
}

func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
	return nil
}
