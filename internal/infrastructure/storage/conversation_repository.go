package storage

import (
	"context"
	"errors"
	"time"

	"github.com/Tomas-vilte/MateDataset/internal/domain/models"
	"github.com/Tomas-vilte/MateDataset/internal/domain/ports"
	"gorm.io/gorm"
)

var _ ports.ConversationStore = (*ConversationRepository)(nil)

type ConversationRepository struct {
	db  *gorm.DB
	now func() time.Time
}

func NewConversationRepository(db *gorm.DB) *ConversationRepository {
	return &ConversationRepository{db: db, now: time.Now}
}

// Get devuelve el estado de la sesión, creándolo si todavía no existe.
func (r *ConversationRepository) Get(ctx context.Context, sessionID string) (*models.ConversationState, error) {
	var record ConversationRecord
	res := r.db.WithContext(ctx).Take(&record, "session_id = ?", sessionID)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return r.create(ctx, sessionID)
		}
		return nil, res.Error
	}
	return record.ToState()
}

func (r *ConversationRepository) create(ctx context.Context, sessionID string) (*models.ConversationState, error) {
	state := models.NewConversationState(sessionID, r.now().UTC())
	record, err := recordFromState(state)
	if err != nil {
		return nil, err
	}
	res := r.db.WithContext(ctx).Create(record)
	if res.Error != nil {
		// Otro proceso pudo habernos ganado la creación; releer.
		var existing ConversationRecord
		if takeErr := r.db.WithContext(ctx).Take(&existing, "session_id = ?", sessionID).Error; takeErr == nil {
			return existing.ToState()
		}
		return nil, res.Error
	}
	return state, nil
}

// Save persiste el estado con compare-and-set sobre la columna version. La
// actualización solo pega si nadie más escribió desde que leímos; si no
// pegó, devolvemos ErrStaleConversation para que el caller reintente.
func (r *ConversationRepository) Save(ctx context.Context, state *models.ConversationState) error {
	previous := state.Version
	state.Version = previous + 1
	state.UpdatedAt = r.now().UTC()

	record, err := recordFromState(state)
	if err != nil {
		state.Version = previous
		return err
	}

	res := r.db.WithContext(ctx).
		Model(&ConversationRecord{}).
		Where("session_id = ? AND version = ?", state.SessionID, previous).
		Updates(map[string]interface{}{
			"status":     record.Status,
			"entities":   record.Entities,
			"messages":   record.Messages,
			"request_id": record.RequestID,
			"version":    record.Version,
			"updated_at": record.UpdatedAt,
		})
	if res.Error != nil {
		state.Version = previous
		return res.Error
	}
	if res.RowsAffected == 0 {
		state.Version = previous
		return ports.ErrStaleConversation
	}
	return nil
}
