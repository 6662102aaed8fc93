package models

import (
	"encoding/json"
	"time"
)

type TriggerType string

const (
	LeadCreatedTrigger  TriggerType = "Lead Created"
	LeadAssignedTrigger TriggerType = "Lead Assigned"
	LeadInactiveTrigger TriggerType = "Lead Inactive"
	TaskOverdueTrigger  TriggerType = "Task Overdue"
	TimeElapsedTrigger  TriggerType = "Time Elapsed"
	CallLoggedTrigger   TriggerType = "Call Logged"
)

// ValidTrigger reports whether t is one of the known trigger types.
func ValidTrigger(t TriggerType) bool {
	switch t {
	case LeadCreatedTrigger, LeadAssignedTrigger, LeadInactiveTrigger,
		TaskOverdueTrigger, TimeElapsedTrigger, CallLoggedTrigger:
		return true
	}
	return false
}

// Workflow is a stored automation rule pairing a trigger with an ordered
// list of actions. The engine reads workflows but never mutates them.
type Workflow struct {
	ID          string             `json:"id" db:"id"`
	Name        string             `json:"name" db:"name"`
	Description string             `json:"description" db:"description"`
	TriggerType TriggerType        `json:"trigger_type" db:"trigger_type"`
	RawActions  json.RawMessage    `json:"-" db:"actions"`           // as stored; decoded once on read
	Actions     []ActionDescriptor `json:"actions" db:"-"`           // normalized form used by the engine
	IsActive    bool               `json:"is_active" db:"is_active"` // only active workflows are matched
	RiskLevel   string             `json:"risk_level" db:"risk_level"`
	Source      string             `json:"source" db:"source"`
	CreatedAt   time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at" db:"updated_at"`
}

// TriggerEntity is the subject of a domain event (typically a lead, or a
// synthetic placeholder for scheduler-originated runs). Read-only to the engine.
type TriggerEntity struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email,omitempty"`
	OwnerID string `json:"owner_id,omitempty"`
}
