package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Tomas-vilte/MateDataset/internal/domain/models"
	"github.com/Tomas-vilte/MateDataset/internal/domain/ports"
	"gorm.io/gorm"
)

var _ ports.RequestStore = (*RequestRepository)(nil)

type RequestRepository struct {
	db  *gorm.DB
	now func() time.Time
}

func NewRequestRepository(db *gorm.DB) *RequestRepository {
	return &RequestRepository{db: db, now: time.Now}
}

func (r *RequestRepository) Create(ctx context.Context, req *models.DatasetRequest) error {
	payload, err := json.Marshal(req.Payload)
	if err != nil {
		return fmt.Errorf("error al codificar el payload: %w", err)
	}

	now := r.now().UTC()
	req.CreatedAt = now
	req.UpdatedAt = now

	record := &RequestRecord{
		RequestID: req.RequestID,
		SessionID: req.SessionID,
		Payload:   payload,
		Status:    string(req.Status),
		CreatedAt: req.CreatedAt,
		UpdatedAt: req.UpdatedAt,
	}
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *RequestRepository) Get(ctx context.Context, requestID string) (*models.DatasetRequest, error) {
	var record RequestRecord
	res := r.db.WithContext(ctx).Take(&record, "request_id = ?", requestID)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return nil, ports.ErrRequestNotFound
		}
		return nil, res.Error
	}
	return record.ToRequest()
}

// SetStatus actualiza el estado del pedido. Un registro ya terminal no se
// toca: bajo redelivery el worker puede volver a pasar por acá y el primer
// estado terminal escrito es el que vale.
func (r *RequestRepository) SetStatus(ctx context.Context, requestID string, status models.RequestStatus, prURL, errMsg string) error {
	updates := map[string]interface{}{
		"status":     string(status),
		"updated_at": r.now().UTC(),
	}
	if prURL != "" {
		updates["pr_url"] = prURL
	}
	if errMsg != "" {
		updates["error"] = errMsg
	}

	res := r.db.WithContext(ctx).
		Model(&RequestRecord{}).
		Where("request_id = ? AND status NOT IN ?", requestID,
			[]string{string(models.RequestCompleted), string(models.RequestFailed)}).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		// O no existe, o ya está terminal. Distinguir para no tragarnos
		// un id inexistente.
		var count int64
		if err := r.db.WithContext(ctx).Model(&RequestRecord{}).
			Where("request_id = ?", requestID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ports.ErrRequestNotFound
		}
	}
	return nil
}
