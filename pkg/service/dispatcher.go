package service

import (
	"context"

	"github.com/apexcrm/leadflow/pkg/models"
	"github.com/apexcrm/leadflow/pkg/queue"
)

// EventPayload is the body of a processWorkflowEvent job.
type EventPayload struct {
	TriggerType models.TriggerType   `json:"triggerType"`
	Entity      models.TriggerEntity `json:"entity"`
}

// Dispatcher is the event intake: domain code calls Trigger when something
// happens (lead created, call logged) and returns immediately. Matching
// and execution are deferred to the queue worker so the triggering code
// path is never blocked by automation latency.
type Dispatcher struct {
	queue  queue.Queue
	logger Logger
}

func NewDispatcher(q queue.Queue, logger Logger) *Dispatcher {
	return &Dispatcher{queue: q, logger: logger}
}

// Trigger enqueues exactly one job per event. Enqueue failures are logged
// and swallowed: raising a workflow event must never fail the domain
// operation that caused it.
func (d *Dispatcher) Trigger(ctx context.Context, triggerType models.TriggerType, entity models.TriggerEntity) {
	payload := EventPayload{TriggerType: triggerType, Entity: entity}
	if err := d.queue.Enqueue(ctx, queue.ProcessWorkflowEventJob, payload, queue.DefaultOptions()); err != nil {
		d.logger.Errorf("Failed to enqueue %s event for entity %s: %v", triggerType, entity.ID, err)
		return
	}
	d.logger.Infof("Enqueued %s event for entity %s", triggerType, entity.ID)
}
