package service

import (
	"context"
	"strings"
	"time"

	"github.com/apexcrm/leadflow/pkg/models"
	"github.com/apexcrm/leadflow/pkg/storage"
	"github.com/google/uuid"
)

// Logger defines the logging interface for the engine services.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// Clock abstracts wall-clock reads so the executor and scheduler can be
// tested against fixed times.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the real wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Mailer is the external email transport. Delivery is outside the engine;
// the contract is a single synchronous send per SEND_EMAIL command.
type Mailer interface {
	Send(ctx context.Context, recipient, subject, body string) error
}

// LogMailer is the stub transport: it logs the send and succeeds.
type LogMailer struct {
	Logger Logger
}

func (m LogMailer) Send(ctx context.Context, recipient, subject, body string) error {
	m.Logger.Infof("Email to %s: %s", recipient, subject)
	return nil
}

// Executor runs one workflow's ordered actions against a triggering
// entity and records exactly one execution log row per invocation.
type Executor struct {
	store  storage.Store
	mailer Mailer
	clock  Clock
	logger Logger
}

func NewExecutor(store storage.Store, mailer Mailer, clock Clock, logger Logger) *Executor {
	return &Executor{store: store, mailer: mailer, clock: clock, logger: logger}
}

// Execute runs the workflow's actions in stored order. It never returns an
// error: every failure is converted into a Failed log row so one bad
// workflow cannot abort its batch siblings. The log write happens in a
// deferred block and runs even when an action fails mid-loop.
func (e *Executor) Execute(ctx context.Context, wf models.Workflow, entity models.TriggerEntity) {
	start := e.clock.Now()
	status := models.SuccessExecutionStatus
	actionExecuted := ""

	defer func() {
		elapsed := e.clock.Now().Sub(start).Milliseconds()
		logRow := models.ExecutionLog{
			ID:              uuid.NewString(),
			WorkflowID:      wf.ID,
			WorkflowName:    wf.Name,
			Status:          status,
			EntityID:        entity.ID,
			EntityName:      entity.Name,
			EntityType:      "lead",
			ActionExecuted:  actionExecuted,
			Actor:           "AI",
			ExecutionTimeMS: elapsed,
			CreatedAt:       e.clock.Now(),
		}
		if err := e.store.SaveExecutionLog(logRow); err != nil {
			// Nowhere softer to catch this; the audit row is lost.
			e.logger.Errorf("Failed to write execution log for workflow %s: %v", wf.ID, err)
		}
	}()

	for _, action := range wf.Actions {
		cmd := Interpret(action, entity, e.clock.Now())
		if err := e.dispatch(ctx, cmd, entity); err != nil {
			status = models.FailedExecutionStatus
			e.logger.Errorf("Workflow %s (%s) failed on %s: %v", wf.ID, wf.Name, cmd.CommandType(), err)
			return
		}
		if _, unknown := cmd.(UnknownCommand); !unknown {
			// Last-wins overwrite, preserved as observed upstream.
			actionExecuted = cmd.CommandType()
		}
	}
}

func (e *Executor) dispatch(ctx context.Context, cmd Command, entity models.TriggerEntity) error {
	switch c := cmd.(type) {
	case SendEmailCommand:
		return e.mailer.Send(ctx, c.Recipient, c.Subject, c.Body)
	case SendNotificationCommand:
		e.sendNotification(c)
		return nil
	case CreateTaskCommand:
		due := c.DueDate
		return e.store.SaveTask(models.Task{
			ID:            uuid.NewString(),
			Title:         c.Title,
			Description:   c.Description,
			Status:        models.UpcomingTaskStatus,
			Priority:      models.DefaultTaskPriority,
			DueDate:       &due,
			RelatedLeadID: entity.ID,
			AssignedTo:    c.AssignedTo,
			CreatedAt:     e.clock.Now(),
		})
	case UnknownCommand:
		e.logger.Warnf("Skipping unrecognized action: %q", c.Text)
		return nil
	}
	e.logger.Warnf("Skipping command of unexpected type %s", cmd.CommandType())
	return nil
}

// sendNotification inserts notification rows. Insert failures are logged
// and swallowed here: a missed notification must not fail the workflow.
func (e *Executor) sendNotification(c SendNotificationCommand) {
	if isBroadcast(c) {
		users, err := e.store.ListActiveUsers()
		if err != nil {
			e.logger.Errorf("Failed to list users for broadcast: %v", err)
			return
		}
		rows := make([]models.Notification, 0, len(users))
		for _, u := range users {
			rows = append(rows, models.Notification{
				ID:        uuid.NewString(),
				UserID:    u.ID,
				Message:   c.Message,
				CreatedAt: e.clock.Now(),
			})
		}
		if len(rows) == 0 {
			return
		}
		if err := e.store.SaveNotifications(rows); err != nil {
			e.logger.Errorf("Failed to broadcast notification to %d users: %v", len(rows), err)
		}
		return
	}

	n := models.Notification{
		ID:        uuid.NewString(),
		UserID:    c.UserID,
		Message:   c.Message,
		CreatedAt: e.clock.Now(),
	}
	if err := e.store.SaveNotification(n); err != nil {
		e.logger.Errorf("Failed to notify user %s: %v", c.UserID, err)
	}
}

func isBroadcast(c SendNotificationCommand) bool {
	if c.UserID == "all" {
		return true
	}
	msg := strings.ToLower(c.Message)
	return strings.Contains(msg, "all users") || strings.Contains(msg, "everyone")
}
