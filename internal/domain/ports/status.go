package ports

import (
	"context"
	"time"

	"github.com/Tomas-vilte/MateDataset/internal/domain/models"
)

// CancelHandle cancela una suscripción de estado. Se invoca al llegar a un
// estado terminal o cuando una suscripción nueva para el mismo id la
// reemplaza. Cancel es idempotente.
type CancelHandle interface {
	Cancel()
}

// StatusWatcher propaga actualizaciones del registro de pedido por dos
// canales equivalentes en el estado terminal: push por suscripción y poll
// con intervalo fijo.
type StatusWatcher interface {
	// Subscribe registra onUpdate para cada cambio del registro. A lo sumo
	// una suscripción activa por id: suscribirse de nuevo cancela la
	// anterior. La suscripción se autocancela al entregar un estado
	// terminal, y nunca entrega dos veces el mismo terminal.
	Subscribe(id string, onUpdate func(models.DatasetRequest)) (CancelHandle, error)
	// Poll lee el estado a intervalo fijo hasta verlo terminal o agotar
	// maxAttempts. Devuelve el último estado leído.
	Poll(ctx context.Context, id string, interval time.Duration, maxAttempts int) (*models.DatasetRequest, error)
}
