package models

const (
	ActiveUserStatus   = "Active"
	InactiveUserStatus = "Inactive"
)

// User is a CRM user, the target of notifications and task assignments.
type User struct {
	ID     string `json:"id" db:"id"`
	Name   string `json:"name" db:"name"`
	Email  string `json:"email" db:"email"`
	Status string `json:"status" db:"status"`
}
