package models

import (
	"strings"
	"time"
)

type ConversationStatus string

const (
	ConversationCollecting ConversationStatus = "collecting"
	ConversationReady      ConversationStatus = "ready"
	ConversationDispatched ConversationStatus = "dispatched"
)

// Campos requeridos para despachar un pedido de dataset, en orden de prioridad
// para las preguntas de seguimiento.
const (
	FieldDatasetName    = "dataset_name"
	FieldLocation       = "location"
	FieldLabels         = "labels"
	FieldServiceAccount = "service_account"
)

var RequiredFields = []string{
	FieldDatasetName,
	FieldLocation,
	FieldLabels,
	FieldServiceAccount,
}

type ChatMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// ConversationState es el estado acumulado de una sesión de chat. Solo el
// state machine de conversación lo modifica; Version habilita el CAS
// optimista en el store.
type ConversationState struct {
	SessionID string
	Status    ConversationStatus
	Entities  map[string]string
	Messages  []ChatMessage
	RequestID string
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewConversationState(sessionID string, now time.Time) *ConversationState {
	return &ConversationState{
		SessionID: sessionID,
		Status:    ConversationCollecting,
		Entities:  make(map[string]string),
		Messages:  make([]ChatMessage, 0),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Extraction es el resultado ya validado del extractor de entidades. Un campo
// vacío significa "no mencionado", nunca "borrar lo acumulado".
type Extraction struct {
	DatasetName    string
	Location       string
	Labels         string
	ServiceAccount string
}

func (e Extraction) Field(name string) string {
	switch name {
	case FieldDatasetName:
		return e.DatasetName
	case FieldLocation:
		return e.Location
	case FieldLabels:
		return e.Labels
	case FieldServiceAccount:
		return e.ServiceAccount
	}
	return ""
}

// Merge incorpora una extracción al estado. Un valor presente y no vacío pisa
// al anterior; un valor ausente jamás borra un campo ya juntado. Aplicar dos
// veces la misma extracción da el mismo resultado que aplicarla una vez.
func (s *ConversationState) Merge(e Extraction) {
	if s.Entities == nil {
		s.Entities = make(map[string]string)
	}
	for _, field := range RequiredFields {
		if value := strings.TrimSpace(e.Field(field)); value != "" {
			s.Entities[field] = value
		}
	}
}

// MissingFields devuelve los campos que faltan, en el orden fijo de prioridad.
func (s *ConversationState) MissingFields() []string {
	missing := make([]string, 0, len(RequiredFields))
	for _, field := range RequiredFields {
		if strings.TrimSpace(s.Entities[field]) == "" {
			missing = append(missing, field)
		}
	}
	return missing
}

// CollectedFields devuelve los campos ya presentes, en el mismo orden fijo.
func (s *ConversationState) CollectedFields() []string {
	collected := make([]string, 0, len(RequiredFields))
	for _, field := range RequiredFields {
		if strings.TrimSpace(s.Entities[field]) != "" {
			collected = append(collected, field)
		}
	}
	return collected
}

func (s *ConversationState) IsComplete() bool {
	return len(s.MissingFields()) == 0
}

func (s *ConversationState) AppendMessage(role, content string, now time.Time) {
	s.Messages = append(s.Messages, ChatMessage{
		Role:      role,
		Content:   content,
		Timestamp: now,
	})
}

// Reset arranca una conversación nueva sobre la misma sesión, una vez que el
// pedido anterior ya fue despachado.
func (s *ConversationState) Reset(now time.Time) {
	s.Status = ConversationCollecting
	s.Entities = make(map[string]string)
	s.RequestID = ""
	s.UpdatedAt = now
}

// ParseLabels interpreta la forma libre "k:v,k2:v2" (también acepta "k=v").
// Los pares sin separador se ignoran.
func ParseLabels(raw string) map[string]string {
	labels := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		var key, value string
		if idx := strings.Index(pair, ":"); idx >= 0 {
			key, value = pair[:idx], pair[idx+1:]
		} else if idx := strings.Index(pair, "="); idx >= 0 {
			key, value = pair[:idx], pair[idx+1:]
		} else {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if key != "" {
			labels[key] = value
		}
	}
	return labels
}
