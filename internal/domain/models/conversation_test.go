package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConversationState_Merge(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("a present value overwrites the previous one", func(t *testing.T) {
		state := NewConversationState("s1", now)
		state.Merge(Extraction{DatasetName: "viejo"})
		state.Merge(Extraction{DatasetName: "nuevo"})

		assert.Equal(t, "nuevo", state.Entities[FieldDatasetName])
	})

	t.Run("an absent value never erases a collected field", func(t *testing.T) {
		state := NewConversationState("s1", now)
		state.Merge(Extraction{DatasetName: "ventas", Location: "EU"})
		state.Merge(Extraction{Labels: "env:prod"})

		assert.Equal(t, "ventas", state.Entities[FieldDatasetName])
		assert.Equal(t, "EU", state.Entities[FieldLocation])
		assert.Equal(t, "env:prod", state.Entities[FieldLabels])
	})

	t.Run("merging twice equals merging once", func(t *testing.T) {
		extraction := Extraction{DatasetName: "ventas", ServiceAccount: "sa@x.com"}

		once := NewConversationState("s1", now)
		once.Merge(extraction)
		twice := NewConversationState("s1", now)
		twice.Merge(extraction)
		twice.Merge(extraction)

		assert.Equal(t, once.Entities, twice.Entities)
	})

	t.Run("whitespace-only values count as absent", func(t *testing.T) {
		state := NewConversationState("s1", now)
		state.Merge(Extraction{DatasetName: "ventas"})
		state.Merge(Extraction{DatasetName: "   "})

		assert.Equal(t, "ventas", state.Entities[FieldDatasetName])
	})
}

func TestConversationState_MissingFields(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("all fields missing, in the fixed priority order", func(t *testing.T) {
		state := NewConversationState("s1", now)

		assert.Equal(t, []string{FieldDatasetName, FieldLocation, FieldLabels, FieldServiceAccount},
			state.MissingFields())
		assert.False(t, state.IsComplete())
	})

	t.Run("collected fields drop out but keep the order", func(t *testing.T) {
		state := NewConversationState("s1", now)
		state.Merge(Extraction{Location: "EU", ServiceAccount: "sa@x.com"})

		assert.Equal(t, []string{FieldDatasetName, FieldLabels}, state.MissingFields())
		assert.Equal(t, []string{FieldLocation, FieldServiceAccount}, state.CollectedFields())
	})

	t.Run("complete when the four fields are present", func(t *testing.T) {
		state := NewConversationState("s1", now)
		state.Merge(Extraction{
			DatasetName:    "ventas",
			Location:       "EU",
			Labels:         "env:prod",
			ServiceAccount: "sa@x.com",
		})

		assert.True(t, state.IsComplete())
		assert.Empty(t, state.MissingFields())
	})
}

func TestConversationState_Reset(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	state := NewConversationState("s1", now)
	state.Merge(Extraction{DatasetName: "ventas"})
	state.Status = ConversationDispatched
	state.RequestID = "req-123"
	state.AppendMessage("user", "hola", now)

	later := now.Add(time.Hour)
	state.Reset(later)

	assert.Equal(t, ConversationCollecting, state.Status)
	assert.Empty(t, state.Entities)
	assert.Empty(t, state.RequestID)
	assert.Equal(t, later, state.UpdatedAt)
	// el historial de mensajes se conserva, es la misma sesión
	assert.Len(t, state.Messages, 1)
}

func TestParseLabels(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want map[string]string
	}{
		{"colon pairs", "env:prod,team:data", map[string]string{"env": "prod", "team": "data"}},
		{"equals pairs", "env=prod, team=data", map[string]string{"env": "prod", "team": "data"}},
		{"mixed separators and spaces", " env:prod , team=data ", map[string]string{"env": "prod", "team": "data"}},
		{"pairs without separator are ignored", "env:prod,suelto", map[string]string{"env": "prod"}},
		{"empty value is kept", "env:", map[string]string{"env": ""}},
		{"empty input", "", map[string]string{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ParseLabels(tc.raw))
		})
	}
}
