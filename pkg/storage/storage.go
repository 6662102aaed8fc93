package storage

import (
	"time"

	"github.com/apexcrm/leadflow/pkg/models"
	"github.com/pkg/errors"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// LogFilter narrows execution-log reads. Zero values mean "any".
type LogFilter struct {
	Search     string // substring match on workflow name or entity name
	Status     models.ExecutionStatus
	WorkflowID string
	From       time.Time
	To         time.Time
}

// Store defines the persistence operations for the workflow engine.
type Store interface {
	// Transaction support
	Begin() (Store, error)
	Commit() error
	Rollback() error
	Close() error

	// Workflow operations. Reads return workflows with Actions already
	// normalized from the stored column.
	SaveWorkflow(w models.Workflow) error
	GetWorkflow(id string) (models.Workflow, error)
	ListWorkflows() ([]models.Workflow, error)
	ListActiveWorkflowsByTrigger(trigger models.TriggerType) ([]models.Workflow, error)
	UpdateWorkflow(w models.Workflow) error
	SetWorkflowActive(id string, active bool) error
	DeleteWorkflow(id string) error

	// Execution log operations
	SaveExecutionLog(l models.ExecutionLog) error
	ListExecutionLogs(f LogFilter) ([]models.ExecutionLog, error)

	// Notification operations
	SaveNotification(n models.Notification) error
	SaveNotifications(ns []models.Notification) error

	// Task operations
	SaveTask(t models.Task) error

	// User operations
	ListActiveUsers() ([]models.User, error)
}
