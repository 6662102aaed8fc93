package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeActions(t *testing.T) {
	t.Run("decodes a JSON array", func(t *testing.T) {
		actions := DecodeActions([]byte(`[{"type":"CREATE_TASK","title":"Call back"},{"summary":"send an email"}]`))
		assert.Len(t, actions, 2)
		assert.Equal(t, ActionCreateTask, actions[0].Type)
		assert.Equal(t, "Call back", actions[0].Title)
		assert.Equal(t, "send an email", actions[1].Summary)
	})

	t.Run("decodes a JSON-encoded string containing an array", func(t *testing.T) {
		actions := DecodeActions([]byte(`"[{\"type\":\"CREATE_TASK\",\"title\":\"Parsed Task\"}]"`))
		assert.Len(t, actions, 1)
		assert.Equal(t, ActionCreateTask, actions[0].Type)
		assert.Equal(t, "Parsed Task", actions[0].Title)
	})

	t.Run("wraps an unparseable string as a single free-text descriptor", func(t *testing.T) {
		actions := DecodeActions([]byte("not json"))
		assert.Len(t, actions, 1)
		assert.Empty(t, actions[0].Type)
		assert.Equal(t, "not json", actions[0].Summary)
	})

	t.Run("wraps a JSON string that is not an array", func(t *testing.T) {
		actions := DecodeActions([]byte(`"send a notification to everyone"`))
		assert.Len(t, actions, 1)
		assert.Equal(t, "send a notification to everyone", actions[0].Summary)
	})

	t.Run("empty input yields no actions", func(t *testing.T) {
		assert.Empty(t, DecodeActions(nil))
		assert.Empty(t, DecodeActions([]byte("  ")))
	})
}

func TestActionDescriptorText(t *testing.T) {
	assert.Equal(t, "s", ActionDescriptor{Summary: "s", Description: "d"}.Text())
	assert.Equal(t, "d", ActionDescriptor{Description: "d"}.Text())
	assert.Equal(t, "Unknown Action", ActionDescriptor{}.Text())
}

func TestValidTrigger(t *testing.T) {
	assert.True(t, ValidTrigger(LeadCreatedTrigger))
	assert.True(t, ValidTrigger(TimeElapsedTrigger))
	assert.False(t, ValidTrigger(TriggerType("Lead Exploded")))
}
