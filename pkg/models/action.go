package models

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Known action descriptor types. An empty Type means the descriptor is
// free text and must be classified heuristically.
const (
	ActionSendEmail        = "SEND_EMAIL"
	ActionSendNotification = "SEND_NOTIFICATION"
	ActionCreateTask       = "CREATE_TASK"
)

// ActionDescriptor is one stored workflow step. Every field is optional;
// descriptors written by the admin UI carry a Type, AI-generated ones
// often carry only a Summary.
type ActionDescriptor struct {
	Type        string `json:"type,omitempty"`
	UserID      string `json:"userId,omitempty"`
	Recipient   string `json:"recipient,omitempty"`
	Summary     string `json:"summary,omitempty"`
	Description string `json:"description,omitempty"`
	Title       string `json:"title,omitempty"`
	Message     string `json:"message,omitempty"`
	Subject     string `json:"subject,omitempty"`
	Body        string `json:"body,omitempty"`
}

// Text resolves the descriptor's free text: summary wins over description,
// with a fixed placeholder when neither is set.
func (d ActionDescriptor) Text() string {
	if strings.TrimSpace(d.Summary) != "" {
		return d.Summary
	}
	if strings.TrimSpace(d.Description) != "" {
		return d.Description
	}
	return "Unknown Action"
}

// DecodeActions normalizes the stored actions column into descriptors.
// The column may hold a JSON array, a JSON string that itself encodes an
// array, or arbitrary text; anything unparseable collapses into a single
// free-text descriptor so a malformed workflow still leaves a trace when
// executed. Never fails.
func DecodeActions(raw []byte) []ActionDescriptor {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil
	}

	var actions []ActionDescriptor
	if err := json.Unmarshal(raw, &actions); err == nil {
		return actions
	}

	// Double-encoded: a JSON string containing the array.
	var inner string
	if err := json.Unmarshal(raw, &inner); err == nil {
		if err := json.Unmarshal([]byte(inner), &actions); err == nil {
			return actions
		}
		return []ActionDescriptor{{Summary: inner}}
	}

	return []ActionDescriptor{{Summary: string(raw)}}
}
