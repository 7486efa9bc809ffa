package services

import (
	"context"
	"errors"
	"time"

	"github.com/Tomas-vilte/MateDataset/internal/domain/models"
	"github.com/Tomas-vilte/MateDataset/internal/domain/ports"
	"github.com/Tomas-vilte/MateDataset/internal/logger"
	"github.com/google/uuid"
)

// triggerTimeout acota el disparo best-effort del job del worker para que
// una API lenta no frene la respuesta del chat.
const triggerTimeout = 5 * time.Second

// DispatcherService convierte una conversación completa en exactamente un
// DatasetRequest: crea el registro en pending, publica el mensaje en la cola
// y dispara el worker. El orden importa: el registro existe antes de que el
// mensaje pueda ser consumido.
type DispatcherService struct {
	requests    ports.RequestStore
	publisher   ports.Publisher
	trigger     ports.JobTrigger
	callTimeout time.Duration
	newID       func() string
}

func NewDispatcherService(requests ports.RequestStore, publisher ports.Publisher, trigger ports.JobTrigger, callTimeout time.Duration) *DispatcherService {
	return &DispatcherService{
		requests:    requests,
		publisher:   publisher,
		trigger:     trigger,
		callTimeout: callTimeout,
		newID:       uuid.NewString,
	}
}

// NewRequestID genera el id con el que la conversación reclama su pedido
// antes de despacharlo.
func (d *DispatcherService) NewRequestID() string {
	return d.newID()
}

// Dispatch crea y publica el pedido identificado por requestID. Es
// idempotente por id: si el registro ya existe (un despacho anterior que no
// llegó a confirmarse) se reutiliza y solo se vuelve a asegurar el mensaje
// en la cola. Nunca se crea un segundo pedido para la misma conversación
// completa.
func (d *DispatcherService) Dispatch(ctx context.Context, sessionID, requestID string, entities map[string]string) (*models.DatasetRequest, error) {
	req, err := d.requests.Get(ctx, requestID)
	switch {
	case err == nil:
		// reintento: el registro quedó de un despacho que no se confirmó
	case errors.Is(err, ports.ErrRequestNotFound):
		req = &models.DatasetRequest{
			RequestID: requestID,
			SessionID: sessionID,
			Payload: models.RequestPayload{
				DatasetName:    entities[models.FieldDatasetName],
				Location:       entities[models.FieldLocation],
				Labels:         models.ParseLabels(entities[models.FieldLabels]),
				ServiceAccount: entities[models.FieldServiceAccount],
			},
			Status: models.RequestPending,
		}
		if err := d.requests.Create(ctx, req); err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	publishCtx, cancelPublish := context.WithTimeout(ctx, d.callTimeout)
	defer cancelPublish()
	msgID, err := d.publisher.Publish(publishCtx, models.NewQueueMessage(req))
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "pedido despachado",
		"request_id", req.RequestID,
		"session_id", sessionID,
		"message_id", msgID,
	)

	triggerCtx, cancel := context.WithTimeout(ctx, triggerTimeout)
	defer cancel()
	if err := d.trigger.TriggerNow(triggerCtx); err != nil {
		logger.Warn(ctx, "no se pudo disparar el worker, el scheduler lo va a levantar",
			"request_id", req.RequestID, "error", err)
	}

	return req, nil
}
