package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Tomas-vilte/MateDataset/internal/domain/models"
	"github.com/Tomas-vilte/MateDataset/internal/domain/ports"
	"github.com/Tomas-vilte/MateDataset/internal/logger"
)

// ReconcilerService drena la suscripción de dead-letter: cada mensaje que
// agotó sus entregas se traduce a un estado failed en el registro del
// pedido, para que el usuario que pregunta por su request no quede mirando
// un "processing" eterno.
type ReconcilerService struct {
	requests   ports.RequestStore
	deadLetter ports.Consumer
}

func NewReconcilerService(requests ports.RequestStore, deadLetter ports.Consumer) *ReconcilerService {
	return &ReconcilerService{
		requests:   requests,
		deadLetter: deadLetter,
	}
}

// Run consume la dead-letter hasta que el contexto se cancele.
func (r *ReconcilerService) Run(ctx context.Context) error {
	return r.deadLetter.Receive(ctx, r.HandleDelivery)
}

func (r *ReconcilerService) HandleDelivery(ctx context.Context, d ports.Delivery) {
	var msg models.QueueMessage
	if err := json.Unmarshal(d.Body(), &msg); err != nil || msg.RequestID == "" {
		logger.Error(ctx, "mensaje ilegible en la dead-letter, se descarta", err)
		d.Ack()
		return
	}
	ctx = logger.With(ctx, "request_id", msg.RequestID)

	// SetStatus no pisa estados terminales: si el pedido se completó por
	// otro camino mientras el mensaje esperaba acá, esto es un no-op.
	err := r.requests.SetStatus(ctx, msg.RequestID, models.RequestFailed, "",
		fmt.Sprintf("el mensaje agotó sus entregas (dataset '%s')", msg.DatasetName))
	if err != nil && !errors.Is(err, ports.ErrRequestNotFound) {
		logger.Error(ctx, "no se pudo marcar el pedido como fallado", err)
		d.Nack()
		return
	}
	logger.Info(ctx, "pedido reconciliado desde la dead-letter")
	d.Ack()
}
