package service

import "time"

// Command is the resolved, strongly-typed instruction produced by the
// interpreter from a stored action descriptor. It is a closed union:
// downstream code switches exhaustively on the concrete type.
type Command interface {
	// CommandType returns the tag recorded in execution logs.
	CommandType() string
}

type SendEmailCommand struct {
	Recipient string
	Subject   string
	Body      string
}

type SendNotificationCommand struct {
	UserID  string
	Message string
}

type CreateTaskCommand struct {
	Title       string
	Description string
	DueDate     time.Time
	AssignedTo  string
}

// UnknownCommand carries text that matched no known action. It is skipped
// with a warning, never executed.
type UnknownCommand struct {
	Text string
}

func (SendEmailCommand) CommandType() string        { return "SEND_EMAIL" }
func (SendNotificationCommand) CommandType() string { return "SEND_NOTIFICATION" }
func (CreateTaskCommand) CommandType() string       { return "CREATE_TASK" }
func (UnknownCommand) CommandType() string          { return "UNKNOWN" }
