package storage

import (
	"strings"
	"time"

	"github.com/apexcrm/leadflow/pkg/models"
	"github.com/pkg/errors"
)

// MockStore implements Store with in-memory storage for unit tests. It
// records bulk notification inserts call-by-call so tests can assert the
// broadcast shape, and supports error injection per operation.
type MockStore struct {
	Workflows     []models.Workflow
	Logs          []models.ExecutionLog
	Notifications []models.Notification
	Tasks         []models.Task
	Users         []models.User

	// BulkInserts records the rows passed to each SaveNotifications call.
	BulkInserts [][]models.Notification

	// Error injection: when set, the matching operation fails.
	TaskErr         error
	NotificationErr error
	ListErr         error
	LogErr          error

	committed bool
}

func NewMockStore() *MockStore {
	return &MockStore{}
}

func (m *MockStore) Begin() (Store, error) { return m, nil }

func (m *MockStore) Commit() error {
	if m.committed {
		return errors.New("already committed")
	}
	m.committed = true
	return nil
}

func (m *MockStore) Rollback() error {
	if m.committed {
		return errors.New("cannot rollback committed transaction")
	}
	return nil
}

func (m *MockStore) Close() error { return nil }

func (m *MockStore) SaveWorkflow(w models.Workflow) error {
	for _, existing := range m.Workflows {
		if existing.ID == w.ID {
			return errors.New("workflow already exists")
		}
	}
	w.Actions = models.DecodeActions(w.RawActions)
	m.Workflows = append(m.Workflows, w)
	return nil
}

func (m *MockStore) GetWorkflow(id string) (models.Workflow, error) {
	for _, w := range m.Workflows {
		if w.ID == id {
			return w, nil
		}
	}
	return models.Workflow{}, ErrNotFound
}

func (m *MockStore) ListWorkflows() ([]models.Workflow, error) {
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	return m.Workflows, nil
}

func (m *MockStore) ListActiveWorkflowsByTrigger(trigger models.TriggerType) ([]models.Workflow, error) {
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	var out []models.Workflow
	for _, w := range m.Workflows {
		if w.IsActive && w.TriggerType == trigger {
			out = append(out, w)
		}
	}
	return out, nil
}

func (m *MockStore) UpdateWorkflow(w models.Workflow) error {
	for i, existing := range m.Workflows {
		if existing.ID == w.ID {
			w.Actions = models.DecodeActions(w.RawActions)
			w.UpdatedAt = time.Now()
			m.Workflows[i] = w
			return nil
		}
	}
	return ErrNotFound
}

func (m *MockStore) SetWorkflowActive(id string, active bool) error {
	for i, w := range m.Workflows {
		if w.ID == id {
			m.Workflows[i].IsActive = active
			m.Workflows[i].UpdatedAt = time.Now()
			return nil
		}
	}
	return ErrNotFound
}

func (m *MockStore) DeleteWorkflow(id string) error {
	for i, w := range m.Workflows {
		if w.ID == id {
			m.Workflows = append(m.Workflows[:i], m.Workflows[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (m *MockStore) SaveExecutionLog(l models.ExecutionLog) error {
	if m.LogErr != nil {
		return m.LogErr
	}
	m.Logs = append(m.Logs, l)
	return nil
}

func (m *MockStore) ListExecutionLogs(f LogFilter) ([]models.ExecutionLog, error) {
	var out []models.ExecutionLog
	for _, l := range m.Logs {
		if f.Status != "" && l.Status != f.Status {
			continue
		}
		if f.WorkflowID != "" && l.WorkflowID != f.WorkflowID {
			continue
		}
		if f.Search != "" &&
			!strings.Contains(strings.ToLower(l.WorkflowName), strings.ToLower(f.Search)) &&
			!strings.Contains(strings.ToLower(l.EntityName), strings.ToLower(f.Search)) {
			continue
		}
		if !f.From.IsZero() && l.CreatedAt.Before(f.From) {
			continue
		}
		if !f.To.IsZero() && l.CreatedAt.After(f.To) {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

func (m *MockStore) SaveNotification(n models.Notification) error {
	if m.NotificationErr != nil {
		return m.NotificationErr
	}
	m.Notifications = append(m.Notifications, n)
	return nil
}

func (m *MockStore) SaveNotifications(ns []models.Notification) error {
	if m.NotificationErr != nil {
		return m.NotificationErr
	}
	m.BulkInserts = append(m.BulkInserts, ns)
	m.Notifications = append(m.Notifications, ns...)
	return nil
}

func (m *MockStore) SaveTask(t models.Task) error {
	if m.TaskErr != nil {
		return m.TaskErr
	}
	m.Tasks = append(m.Tasks, t)
	return nil
}

func (m *MockStore) ListActiveUsers() ([]models.User, error) {
	var out []models.User
	for _, u := range m.Users {
		if u.Status == models.ActiveUserStatus {
			out = append(out, u)
		}
	}
	return out, nil
}
