package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/apexcrm/leadflow/pkg/models"
	"github.com/apexcrm/leadflow/pkg/storage"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

type DBInterface interface {
	Get(dest interface{}, query string, args ...interface{}) error
	Select(dest interface{}, query string, args ...interface{}) error
	QueryRowx(query string, args ...interface{}) *sqlx.Row
	Exec(query string, args ...interface{}) (sql.Result, error)
}

type PostgresStore struct {
	db DBInterface
}

func NewPostgresStore(connStr string) (*PostgresStore, error) {
	db, err := sqlx.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Begin() (storage.Store, error) {
	if db, ok := s.db.(*sqlx.DB); ok {
		tx, err := db.Beginx()
		if err != nil {
			return nil, err
		}
		return &PostgresStore{db: tx}, nil
	}
	return nil, fmt.Errorf("cannot begin transaction on unknown type")
}

func (s *PostgresStore) Commit() error {
	if tx, ok := s.db.(*sqlx.Tx); ok {
		return tx.Commit()
	}
	return fmt.Errorf("cannot commit: not a transaction")
}

func (s *PostgresStore) Rollback() error {
	if tx, ok := s.db.(*sqlx.Tx); ok {
		return tx.Rollback()
	}
	return fmt.Errorf("cannot rollback: not a transaction")
}

func (s *PostgresStore) Close() error {
	if db, ok := s.db.(*sqlx.DB); ok {
		return db.Close()
	}
	return nil // No-op for *sqlx.Tx
}

// SaveWorkflow inserts a new workflow definition
func (s *PostgresStore) SaveWorkflow(w models.Workflow) error {
	_, err := s.db.Exec(`INSERT INTO workflows (id, name, description, trigger_type, actions, is_active, risk_level, source, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		w.ID, w.Name, w.Description, w.TriggerType, normalizeRawActions(w.RawActions), w.IsActive, w.RiskLevel, w.Source, w.CreatedAt, w.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save workflow: %w", err)
	}
	return nil
}

// GetWorkflow retrieves a workflow by ID with Actions normalized
func (s *PostgresStore) GetWorkflow(id string) (models.Workflow, error) {
	var wf models.Workflow
	err := s.db.Get(&wf, "SELECT * FROM workflows WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return models.Workflow{}, storage.ErrNotFound
	}
	if err != nil {
		return models.Workflow{}, fmt.Errorf("get workflow %s: %w", id, err)
	}
	wf.Actions = models.DecodeActions(wf.RawActions)
	return wf, nil
}

func (s *PostgresStore) ListWorkflows() ([]models.Workflow, error) {
	workflows := []models.Workflow{}
	err := s.db.Select(&workflows, "SELECT * FROM workflows ORDER BY created_at DESC")
	if err != nil {
		return nil, err
	}
	for i := range workflows {
		workflows[i].Actions = models.DecodeActions(workflows[i].RawActions)
	}
	return workflows, nil
}

// ListActiveWorkflowsByTrigger retrieves active workflows subscribed to a trigger
func (s *PostgresStore) ListActiveWorkflowsByTrigger(trigger models.TriggerType) ([]models.Workflow, error) {
	workflows := []models.Workflow{}
	err := s.db.Select(&workflows,
		"SELECT * FROM workflows WHERE trigger_type = $1 AND is_active = TRUE ORDER BY created_at", trigger)
	if err != nil {
		return nil, fmt.Errorf("list workflows for trigger %q: %w", trigger, err)
	}
	for i := range workflows {
		workflows[i].Actions = models.DecodeActions(workflows[i].RawActions)
	}
	return workflows, nil
}

func (s *PostgresStore) UpdateWorkflow(w models.Workflow) error {
	res, err := s.db.Exec(`UPDATE workflows
		SET name = $1, description = $2, trigger_type = $3, actions = $4, is_active = $5, risk_level = $6, source = $7, updated_at = CURRENT_TIMESTAMP
		WHERE id = $8`,
		w.Name, w.Description, w.TriggerType, normalizeRawActions(w.RawActions), w.IsActive, w.RiskLevel, w.Source, w.ID)
	if err != nil {
		return fmt.Errorf("update workflow %s: %w", w.ID, err)
	}
	return noRowsToNotFound(res)
}

func (s *PostgresStore) SetWorkflowActive(id string, active bool) error {
	res, err := s.db.Exec("UPDATE workflows SET is_active = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2", active, id)
	if err != nil {
		return err
	}
	return noRowsToNotFound(res)
}

func (s *PostgresStore) DeleteWorkflow(id string) error {
	res, err := s.db.Exec("DELETE FROM workflows WHERE id = $1", id)
	if err != nil {
		return err
	}
	return noRowsToNotFound(res)
}

// SaveExecutionLog appends one audit row
func (s *PostgresStore) SaveExecutionLog(l models.ExecutionLog) error {
	_, err := s.db.Exec(`INSERT INTO execution_logs (id, workflow_id, workflow_name, status, entity_id, entity_name, entity_type, action_executed, actor, execution_time_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		l.ID, l.WorkflowID, l.WorkflowName, l.Status, l.EntityID, l.EntityName, l.EntityType, l.ActionExecuted, l.Actor, l.ExecutionTimeMS, l.CreatedAt)
	if err != nil {
		return fmt.Errorf("save execution log: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListExecutionLogs(f storage.LogFilter) ([]models.ExecutionLog, error) {
	query := "SELECT * FROM execution_logs WHERE 1=1"
	args := []interface{}{}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		query += fmt.Sprintf(" AND (workflow_name ILIKE $%d OR entity_name ILIKE $%d)", len(args), len(args))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if f.WorkflowID != "" {
		args = append(args, f.WorkflowID)
		query += fmt.Sprintf(" AND workflow_id = $%d", len(args))
	}
	if !f.From.IsZero() {
		args = append(args, f.From)
		query += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}
	if !f.To.IsZero() {
		args = append(args, f.To)
		query += fmt.Sprintf(" AND created_at <= $%d", len(args))
	}
	query += " ORDER BY created_at DESC"

	logs := []models.ExecutionLog{}
	if err := s.db.Select(&logs, query, args...); err != nil {
		return nil, fmt.Errorf("list execution logs: %w", err)
	}
	return logs, nil
}

func (s *PostgresStore) SaveNotification(n models.Notification) error {
	_, err := s.db.Exec("INSERT INTO notifications (id, user_id, message, read, created_at) VALUES ($1, $2, $3, $4, $5)",
		n.ID, n.UserID, n.Message, n.Read, n.CreatedAt)
	return err
}

// SaveNotifications bulk-inserts notification rows in a single statement
func (s *PostgresStore) SaveNotifications(ns []models.Notification) error {
	if len(ns) == 0 {
		return nil
	}
	var sb strings.Builder
	sb.WriteString("INSERT INTO notifications (id, user_id, message, read, created_at) VALUES ")
	args := make([]interface{}, 0, len(ns)*5)
	for i, n := range ns {
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * 5
		sb.WriteString(fmt.Sprintf("($%d, $%d, $%d, $%d, $%d)", base+1, base+2, base+3, base+4, base+5))
		args = append(args, n.ID, n.UserID, n.Message, n.Read, n.CreatedAt)
	}
	_, err := s.db.Exec(sb.String(), args...)
	if err != nil {
		return fmt.Errorf("bulk insert %d notifications: %w", len(ns), err)
	}
	return nil
}

func (s *PostgresStore) SaveTask(t models.Task) error {
	_, err := s.db.Exec(`INSERT INTO tasks (id, title, description, status, priority, due_date, related_lead_id, assigned_to, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		t.ID, t.Title, t.Description, t.Status, t.Priority, t.DueDate, t.RelatedLeadID, t.AssignedTo, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("save task: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListActiveUsers() ([]models.User, error) {
	users := []models.User{}
	err := s.db.Select(&users, "SELECT * FROM users WHERE status = $1 ORDER BY id", models.ActiveUserStatus)
	if err != nil {
		return nil, err
	}
	return users, nil
}

func noRowsToNotFound(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// normalizeRawActions keeps the stored column valid JSON even when the
// caller provides plain text (jsonb rejects it otherwise). Plain text is
// stored as a JSON string, which DecodeActions unwraps on read.
func normalizeRawActions(raw []byte) []byte {
	if len(raw) == 0 {
		return []byte("[]")
	}
	if json.Valid(raw) {
		return raw
	}
	quoted, err := json.Marshal(string(raw))
	if err != nil {
		return []byte("[]")
	}
	return quoted
}
