package service

import (
	"context"
	"encoding/json"

	"github.com/apexcrm/leadflow/pkg/queue"
	"github.com/apexcrm/leadflow/pkg/storage"
	"github.com/pkg/errors"
)

// Engine bundles the executor with its persistence handle and wires the
// queue worker handlers. Lifecycle is owned by the process entry point.
type Engine struct {
	store     storage.Store
	executor  *Executor
	scheduler *Scheduler
	logger    Logger
}

func NewEngine(store storage.Store, executor *Executor, scheduler *Scheduler, logger Logger) *Engine {
	return &Engine{store: store, executor: executor, scheduler: scheduler, logger: logger}
}

// RegisterHandlers binds the engine's job handlers onto the worker.
func (e *Engine) RegisterHandlers(w *queue.Worker) {
	w.Register(queue.ProcessWorkflowEventJob, e.HandleWorkflowEvent)
	w.Register(queue.CheckScheduledWorkflowsJob, e.HandleScheduledScan)
}

// HandleWorkflowEvent processes one queued event: it loads every active
// workflow subscribed to the trigger and executes them sequentially. The
// executor never errors, so one workflow's failure cannot abort its batch
// siblings; only the lookup itself can fail the job.
func (e *Engine) HandleWorkflowEvent(ctx context.Context, job *queue.Job) error {
	var payload EventPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return errors.Wrap(err, "decode event payload")
	}

	workflows, err := e.store.ListActiveWorkflowsByTrigger(payload.TriggerType)
	if err != nil {
		return errors.Wrapf(err, "list workflows for trigger %q", payload.TriggerType)
	}
	if len(workflows) == 0 {
		e.logger.Infof("No active workflows for trigger %q", payload.TriggerType)
		return nil
	}

	e.logger.Infof("Running %d workflow(s) for trigger %q on entity %s",
		len(workflows), payload.TriggerType, payload.Entity.ID)
	for _, wf := range workflows {
		e.executor.Execute(ctx, wf, payload.Entity)
	}
	return nil
}

// HandleScheduledScan runs the once-per-minute scheduled-workflow scan. A
// scan-level error surfaces as a failed job, eligible for the queue's
// retention and inspection.
func (e *Engine) HandleScheduledScan(ctx context.Context, job *queue.Job) error {
	return e.scheduler.Scan(ctx)
}
