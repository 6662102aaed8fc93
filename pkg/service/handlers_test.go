package service

import (
	"context"
	"testing"
	"time"

	"github.com/apexcrm/leadflow/internal/log"
	"github.com/apexcrm/leadflow/pkg/models"
	"github.com/apexcrm/leadflow/pkg/queue"
	"github.com/apexcrm/leadflow/pkg/storage"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func newTestEngine(store storage.Store) *Engine {
	logger := log.GetLogger()
	clock := fakeClock{now: time.Date(2025, 3, 10, 17, 30, 0, 0, time.UTC)}
	executor := NewExecutor(store, LogMailer{Logger: logger}, clock, logger)
	scheduler := NewScheduler(store, executor, clock, logger)
	return NewEngine(store, executor, scheduler, logger)
}

// drain runs the worker until the queue is empty.
func drain(t *testing.T, q *queue.MemoryQueue, engine *Engine) {
	t.Helper()
	worker := queue.NewWorker(q, log.GetLogger(), 1)
	engine.RegisterHandlers(worker)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		for q.Len() > 0 {
			time.Sleep(5 * time.Millisecond)
		}
		// Allow the in-flight job to finish before stopping the worker.
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	worker.Run(ctx)
}

func TestLeadCreatedEndToEnd(t *testing.T) {
	store := storage.NewMockStore()
	assert.NoError(t, store.SaveWorkflow(models.Workflow{
		ID:          "wf-1",
		Name:        "New Lead Follow-up",
		TriggerType: models.LeadCreatedTrigger,
		RawActions:  []byte(`[{"type":"CREATE_TASK","title":"Welcome call"}]`),
		IsActive:    true,
	}))

	q := queue.NewMemoryQueue()
	dispatcher := NewDispatcher(q, log.GetLogger())
	dispatcher.Trigger(context.Background(), models.LeadCreatedTrigger,
		models.TriggerEntity{ID: "L1", Name: "Acme", Email: "a@x.com"})
	assert.Equal(t, 1, q.Len())

	drain(t, q, newTestEngine(store))

	assert.Len(t, store.Tasks, 1)
	assert.Equal(t, "L1", store.Tasks[0].RelatedLeadID)
	assert.Equal(t, models.UpcomingTaskStatus, store.Tasks[0].Status)
	assert.Equal(t, models.DefaultTaskPriority, store.Tasks[0].Priority)

	assert.Len(t, store.Logs, 1)
	assert.Equal(t, models.SuccessExecutionStatus, store.Logs[0].Status)
	assert.Equal(t, "CREATE_TASK", store.Logs[0].ActionExecuted)
	assert.Empty(t, q.Failed)
}

func TestBroadcastNotificationEndToEnd(t *testing.T) {
	store := storage.NewMockStore()
	store.Users = []models.User{
		{ID: "u1", Status: models.ActiveUserStatus},
		{ID: "u2", Status: models.ActiveUserStatus},
	}
	assert.NoError(t, store.SaveWorkflow(models.Workflow{
		ID:          "wf-1",
		Name:        "Global Alert",
		TriggerType: models.CallLoggedTrigger,
		RawActions:  []byte(`[{"type":"SEND_NOTIFICATION","userId":"all","message":"Global Alert"}]`),
		IsActive:    true,
	}))

	q := queue.NewMemoryQueue()
	NewDispatcher(q, log.GetLogger()).Trigger(context.Background(), models.CallLoggedTrigger,
		models.TriggerEntity{ID: "L5", Name: "Beta Corp"})

	drain(t, q, newTestEngine(store))

	assert.Len(t, store.BulkInserts, 1)
	assert.Len(t, store.BulkInserts[0], 2)
	assert.Equal(t, "u1", store.BulkInserts[0][0].UserID)
	assert.Equal(t, "u2", store.BulkInserts[0][1].UserID)
}

func TestHandleWorkflowEventRunsMatchingWorkflowsOnly(t *testing.T) {
	store := storage.NewMockStore()
	matching := models.Workflow{
		ID: "wf-1", Name: "Assigned", TriggerType: models.LeadAssignedTrigger,
		RawActions: []byte(`[{"type":"CREATE_TASK"}]`), IsActive: true,
	}
	otherTrigger := models.Workflow{
		ID: "wf-2", Name: "Created", TriggerType: models.LeadCreatedTrigger,
		RawActions: []byte(`[{"type":"CREATE_TASK"}]`), IsActive: true,
	}
	inactive := models.Workflow{
		ID: "wf-3", Name: "Disabled", TriggerType: models.LeadAssignedTrigger,
		RawActions: []byte(`[{"type":"CREATE_TASK"}]`), IsActive: false,
	}
	for _, wf := range []models.Workflow{matching, otherTrigger, inactive} {
		assert.NoError(t, store.SaveWorkflow(wf))
	}

	engine := newTestEngine(store)
	job := eventJob(t, models.LeadAssignedTrigger, testEntity)
	assert.NoError(t, engine.HandleWorkflowEvent(context.Background(), job))

	assert.Len(t, store.Logs, 1)
	assert.Equal(t, "wf-1", store.Logs[0].WorkflowID)
}

func TestHandleWorkflowEventBatchIsolation(t *testing.T) {
	store := storage.NewMockStore()
	store.TaskErr = errors.New("insert failed")
	failing := models.Workflow{
		ID: "wf-1", Name: "Broken", TriggerType: models.LeadCreatedTrigger,
		RawActions: []byte(`[{"type":"CREATE_TASK"}]`), IsActive: true,
	}
	healthy := models.Workflow{
		ID: "wf-2", Name: "Healthy", TriggerType: models.LeadCreatedTrigger,
		RawActions: []byte(`[{"type":"SEND_NOTIFICATION","userId":"u1","message":"ok"}]`), IsActive: true,
	}
	assert.NoError(t, store.SaveWorkflow(failing))
	assert.NoError(t, store.SaveWorkflow(healthy))

	engine := newTestEngine(store)
	job := eventJob(t, models.LeadCreatedTrigger, testEntity)
	// The batch handler itself succeeds: executor failures never propagate.
	assert.NoError(t, engine.HandleWorkflowEvent(context.Background(), job))

	assert.Len(t, store.Logs, 2)
	assert.Equal(t, models.FailedExecutionStatus, store.Logs[0].Status)
	assert.Equal(t, models.SuccessExecutionStatus, store.Logs[1].Status)
}

func TestHandleWorkflowEventFailsJobOnQueryError(t *testing.T) {
	store := storage.NewMockStore()
	store.ListErr = errors.New("db down")
	engine := newTestEngine(store)

	job := eventJob(t, models.LeadCreatedTrigger, testEntity)
	assert.Error(t, engine.HandleWorkflowEvent(context.Background(), job))
}

func TestHandleWorkflowEventRejectsMalformedPayload(t *testing.T) {
	engine := newTestEngine(storage.NewMockStore())
	job := &queue.Job{ID: "j1", Name: queue.ProcessWorkflowEventJob, Payload: []byte("{{")}
	assert.Error(t, engine.HandleWorkflowEvent(context.Background(), job))
}

func TestFailedJobsAreRetained(t *testing.T) {
	store := storage.NewMockStore()
	store.ListErr = errors.New("db down")

	q := queue.NewMemoryQueue()
	NewDispatcher(q, log.GetLogger()).Trigger(context.Background(), models.LeadCreatedTrigger, testEntity)

	drain(t, q, newTestEngine(store))

	assert.Len(t, q.Failed, 1)
	assert.Equal(t, queue.ProcessWorkflowEventJob, q.Failed[0].Name)
}

func eventJob(t *testing.T, trigger models.TriggerType, entity models.TriggerEntity) *queue.Job {
	t.Helper()
	q := queue.NewMemoryQueue()
	assert.NoError(t, q.Enqueue(context.Background(), queue.ProcessWorkflowEventJob,
		EventPayload{TriggerType: trigger, Entity: entity}, queue.DefaultOptions()))
	job, err := q.Dequeue(context.Background())
	assert.NoError(t, err)
	return job
}
