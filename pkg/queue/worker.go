package queue

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

// Logger defines the logging interface for the worker.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// HandlerFunc processes one job. A returned error marks the job failed.
type HandlerFunc func(ctx context.Context, job *Job) error

// Worker consumes jobs from a Queue and dispatches them to handlers
// registered by job name. Handlers for the same worker run up to
// `concurrency` at a time; within one handler invocation the job runs to
// completion without preemption.
type Worker struct {
	queue       Queue
	logger      Logger
	concurrency int

	mu       sync.RWMutex
	handlers map[string]HandlerFunc
	wg       sync.WaitGroup
}

func NewWorker(q Queue, logger Logger, concurrency int) *Worker {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Worker{
		queue:       q,
		logger:      logger,
		concurrency: concurrency,
		handlers:    make(map[string]HandlerFunc),
	}
}

// Register binds a handler to a job name. Re-registering replaces the
// previous handler.
func (w *Worker) Register(name string, h HandlerFunc) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers[name] = h
}

// Run consumes jobs until ctx is cancelled, then waits for in-flight
// handlers to finish.
func (w *Worker) Run(ctx context.Context) {
	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.consume(ctx)
	}
	w.wg.Wait()
}

func (w *Worker) consume(ctx context.Context) {
	defer w.wg.Done()
	for {
		job, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Errorf("Failed to dequeue job: %v", err)
			continue
		}
		w.process(ctx, job)
	}
}

func (w *Worker) process(ctx context.Context, job *Job) {
	w.mu.RLock()
	handler, ok := w.handlers[job.Name]
	w.mu.RUnlock()

	if !ok {
		err := errors.Errorf("no handler registered for job %q", job.Name)
		w.logger.Warnf("Skipping job %s: %v", job.ID, err)
		if failErr := w.queue.Fail(ctx, job, err); failErr != nil {
			w.logger.Errorf("Failed to mark job %s as failed: %v", job.ID, failErr)
		}
		return
	}

	if err := handler(ctx, job); err != nil {
		w.logger.Errorf("Job %s (%s) failed: %v", job.ID, job.Name, err)
		if failErr := w.queue.Fail(ctx, job, err); failErr != nil {
			w.logger.Errorf("Failed to mark job %s as failed: %v", job.ID, failErr)
		}
		return
	}

	if err := w.queue.Complete(ctx, job); err != nil {
		w.logger.Errorf("Failed to complete job %s: %v", job.ID, err)
	}
}
