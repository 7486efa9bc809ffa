package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Tomas-vilte/MateDataset/internal/domain/models"
	"gorm.io/datatypes"
)

// ConversationRecord es la fila gorm detrás de models.ConversationState.
// Entities y Messages van como columnas JSON.
type ConversationRecord struct {
	SessionID string `gorm:"primaryKey"`
	Status    string
	Entities  datatypes.JSON
	Messages  datatypes.JSON
	RequestID string
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (ConversationRecord) TableName() string { return "conversations" }

func (r *ConversationRecord) ToState() (*models.ConversationState, error) {
	state := &models.ConversationState{
		SessionID: r.SessionID,
		Status:    models.ConversationStatus(r.Status),
		Entities:  make(map[string]string),
		Messages:  make([]models.ChatMessage, 0),
		RequestID: r.RequestID,
		Version:   r.Version,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if len(r.Entities) > 0 {
		if err := json.Unmarshal(r.Entities, &state.Entities); err != nil {
			return nil, fmt.Errorf("error al decodificar entities de la sesión %s: %w", r.SessionID, err)
		}
	}
	if len(r.Messages) > 0 {
		if err := json.Unmarshal(r.Messages, &state.Messages); err != nil {
			return nil, fmt.Errorf("error al decodificar messages de la sesión %s: %w", r.SessionID, err)
		}
	}
	return state, nil
}

func recordFromState(state *models.ConversationState) (*ConversationRecord, error) {
	entities, err := json.Marshal(state.Entities)
	if err != nil {
		return nil, fmt.Errorf("error al codificar entities: %w", err)
	}
	messages, err := json.Marshal(state.Messages)
	if err != nil {
		return nil, fmt.Errorf("error al codificar messages: %w", err)
	}
	return &ConversationRecord{
		SessionID: state.SessionID,
		Status:    string(state.Status),
		Entities:  entities,
		Messages:  messages,
		RequestID: state.RequestID,
		Version:   state.Version,
		CreatedAt: state.CreatedAt,
		UpdatedAt: state.UpdatedAt,
	}, nil
}

// RequestRecord es la fila gorm detrás de models.DatasetRequest.
type RequestRecord struct {
	RequestID string `gorm:"primaryKey"`
	SessionID string `gorm:"index"`
	Payload   datatypes.JSON
	Status    string
	// el nombre derivado por gorm para PRURL sería "prurl"
	PRURL     string `gorm:"column:pr_url"`
	Error     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (RequestRecord) TableName() string { return "pr_requests" }

func (r *RequestRecord) ToRequest() (*models.DatasetRequest, error) {
	req := &models.DatasetRequest{
		RequestID: r.RequestID,
		SessionID: r.SessionID,
		Status:    models.RequestStatus(r.Status),
		PRURL:     r.PRURL,
		Error:     r.Error,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if len(r.Payload) > 0 {
		if err := json.Unmarshal(r.Payload, &req.Payload); err != nil {
			return nil, fmt.Errorf("error al decodificar el payload del pedido %s: %w", r.RequestID, err)
		}
	}
	return req, nil
}
