package models

import "time"

const (
	UpcomingTaskStatus = "Upcoming"

	// DefaultTaskPriority is assigned to every engine-created task.
	DefaultTaskPriority = 5
)

// Task is a follow-up item created by a CREATE_TASK action, linked to the
// triggering lead.
type Task struct {
	ID            string     `json:"id" db:"id"`
	Title         string     `json:"title" db:"title"`
	Description   string     `json:"description" db:"description"`
	Status        string     `json:"status" db:"status"`
	Priority      int        `json:"priority" db:"priority"`
	DueDate       *time.Time `json:"due_date,omitempty" db:"due_date"`
	RelatedLeadID string     `json:"related_lead_id" db:"related_lead_id"`
	AssignedTo    string     `json:"assigned_to" db:"assigned_to"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
}
