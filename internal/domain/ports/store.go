package ports

import (
	"context"
	"errors"

	"github.com/Tomas-vilte/MateDataset/internal/domain/models"
)

// ErrStaleConversation indica que otro escritor actualizó la sesión entre
// la lectura y el Save. El caller relee y reintenta.
var ErrStaleConversation = errors.New("la conversación fue modificada por otro escritor")

// ErrRequestNotFound indica que no existe un pedido con ese id.
var ErrRequestNotFound = errors.New("pedido no encontrado")

// ConversationStore da acceso read-modify-write al registro de conversación.
// No hay transacciones entre registros: cada mutación tiene que ser segura
// de reintentar.
type ConversationStore interface {
	// Get devuelve el estado de la sesión, inicializándolo si no existe.
	Get(ctx context.Context, sessionID string) (*models.ConversationState, error)
	// Save persiste el estado con compare-and-set sobre Version. Si otro
	// escritor ganó la carrera devuelve ErrStaleConversation y el caller
	// tiene que releer y reintentar.
	Save(ctx context.Context, state *models.ConversationState) error
}

// RequestStore da acceso al registro de pedidos. Los estados terminales son
// inmutables una vez escritos.
type RequestStore interface {
	Create(ctx context.Context, req *models.DatasetRequest) error
	Get(ctx context.Context, requestID string) (*models.DatasetRequest, error)
	// SetStatus actualiza el estado del pedido. Sobre un registro ya
	// terminal es un no-op sin error, para que el pipeline sea idempotente
	// bajo redelivery.
	SetStatus(ctx context.Context, requestID string, status models.RequestStatus, prURL, errMsg string) error
}
