package models

import "time"

type ExecutionStatus string

const (
	SuccessExecutionStatus ExecutionStatus = "Success"
	FailedExecutionStatus  ExecutionStatus = "Failed"
)

// ExecutionLog is an append-only audit row, one per workflow execution
// attempt. WorkflowName is denormalized so the row survives workflow
// deletion.
type ExecutionLog struct {
	ID              string          `json:"id" db:"id"`
	WorkflowID      string          `json:"workflow_id" db:"workflow_id"`
	WorkflowName    string          `json:"workflow_name" db:"workflow_name"`
	Status          ExecutionStatus `json:"status" db:"status"`
	EntityID        string          `json:"entity_id" db:"entity_id"`
	EntityName      string          `json:"entity_name" db:"entity_name"`
	EntityType      string          `json:"entity_type" db:"entity_type"`
	ActionExecuted  string          `json:"action_executed" db:"action_executed"` // type of the last command attempted
	Actor           string          `json:"actor" db:"actor"`                     // "AI" for engine-originated runs
	ExecutionTimeMS int64           `json:"execution_time_ms" db:"execution_time_ms"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
}
