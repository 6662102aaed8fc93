package service

import (
	"strings"
	"time"

	"github.com/apexcrm/leadflow/pkg/models"
)

// Interpret turns a stored action descriptor into a concrete command.
// Pure function: no side effects, no errors. Descriptors that cannot be
// classified resolve to UnknownCommand rather than being dropped.
func Interpret(d models.ActionDescriptor, entity models.TriggerEntity, now time.Time) Command {
	switch d.Type {
	case models.ActionSendEmail:
		return SendEmailCommand{
			Recipient: firstNonEmpty(d.Recipient, entity.Email),
			Subject:   firstNonEmpty(d.Subject, d.Title, d.Summary),
			Body:      firstNonEmpty(d.Body, d.Description, d.Summary),
		}
	case models.ActionSendNotification:
		return SendNotificationCommand{
			UserID:  defaultUserID(d.UserID, entity),
			Message: firstNonEmpty(d.Message, d.Summary, d.Description),
		}
	case models.ActionCreateTask:
		return CreateTaskCommand{
			Title:       firstNonEmpty(d.Title, d.Summary, "Follow up with "+entity.Name),
			Description: d.Description,
			DueDate:     taskDueDate(now),
			AssignedTo:  defaultUserID(d.UserID, entity),
		}
	}
	return classify(d, entity, now)
}

// classify resolves untyped descriptors by case-insensitive substring
// search over the free text, in fixed priority order.
func classify(d models.ActionDescriptor, entity models.TriggerEntity, now time.Time) Command {
	text := d.Text()
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "email") || strings.Contains(lower, "mail"):
		return SendEmailCommand{
			Recipient: entity.Email,
			Subject:   text,
			Body:      text,
		}
	case strings.Contains(lower, "notification") || strings.Contains(lower, "notify"):
		return SendNotificationCommand{
			UserID:  defaultUserID(d.UserID, entity),
			Message: text,
		}
	case strings.Contains(lower, "task"):
		return CreateTaskCommand{
			Title:       "Follow up with " + entity.Name,
			Description: text,
			DueDate:     taskDueDate(now),
			AssignedTo:  defaultUserID(d.UserID, entity),
		}
	}
	return UnknownCommand{Text: text}
}

// taskDueDate: engine-created tasks fall due one day out.
func taskDueDate(now time.Time) time.Time {
	return now.Add(24 * time.Hour)
}

func defaultUserID(userID string, entity models.TriggerEntity) string {
	if userID != "" {
		return userID
	}
	if entity.OwnerID != "" {
		return entity.OwnerID
	}
	return "system"
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
