package queue

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/apexcrm/leadflow/internal/log"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func runUntilDrained(t *testing.T, q *MemoryQueue, w *Worker) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		deadline := time.After(2 * time.Second)
		for {
			select {
			case <-deadline:
				cancel()
				return
			default:
			}
			if q.Len() == 0 {
				time.Sleep(50 * time.Millisecond)
				cancel()
				return
			}
			time.Sleep(5 * time.Millisecond)
		}
	}()
	w.Run(ctx)
}

func TestWorkerDispatchesByJobName(t *testing.T) {
	q := NewMemoryQueue()
	w := NewWorker(q, log.GetLogger(), 1)

	var aCount, bCount int32
	w.Register("jobA", func(ctx context.Context, job *Job) error {
		atomic.AddInt32(&aCount, 1)
		return nil
	})
	w.Register("jobB", func(ctx context.Context, job *Job) error {
		atomic.AddInt32(&bCount, 1)
		return nil
	})

	ctx := context.Background()
	assert.NoError(t, q.Enqueue(ctx, "jobA", struct{}{}, DefaultOptions()))
	assert.NoError(t, q.Enqueue(ctx, "jobA", struct{}{}, DefaultOptions()))
	assert.NoError(t, q.Enqueue(ctx, "jobB", struct{}{}, DefaultOptions()))

	runUntilDrained(t, q, w)

	assert.Equal(t, int32(2), atomic.LoadInt32(&aCount))
	assert.Equal(t, int32(1), atomic.LoadInt32(&bCount))
	assert.Empty(t, q.Failed)
}

func TestWorkerMarksHandlerErrorsFailed(t *testing.T) {
	q := NewMemoryQueue()
	w := NewWorker(q, log.GetLogger(), 1)
	w.Register("boom", func(ctx context.Context, job *Job) error {
		return errors.New("handler exploded")
	})

	assert.NoError(t, q.Enqueue(context.Background(), "boom", struct{}{}, DefaultOptions()))
	runUntilDrained(t, q, w)

	assert.Len(t, q.Failed, 1)
	assert.Equal(t, "boom", q.Failed[0].Name)
}

func TestWorkerFailsJobsWithoutHandler(t *testing.T) {
	q := NewMemoryQueue()
	w := NewWorker(q, log.GetLogger(), 1)

	assert.NoError(t, q.Enqueue(context.Background(), "unregistered", struct{}{}, DefaultOptions()))
	runUntilDrained(t, q, w)

	assert.Len(t, q.Failed, 1)
}

func TestWorkerConcurrentConsumers(t *testing.T) {
	q := NewMemoryQueue()
	w := NewWorker(q, log.GetLogger(), 4)

	var count int32
	w.Register("job", func(ctx context.Context, job *Job) error {
		atomic.AddInt32(&count, 1)
		return nil
	})

	ctx := context.Background()
	for i := 0; i < 20; i++ {
		assert.NoError(t, q.Enqueue(ctx, "job", struct{}{}, DefaultOptions()))
	}
	runUntilDrained(t, q, w)

	assert.Equal(t, int32(20), atomic.LoadInt32(&count))
}
