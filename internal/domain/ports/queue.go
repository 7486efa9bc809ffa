package ports

import (
	"context"

	"github.com/Tomas-vilte/MateDataset/internal/domain/models"
)

// Delivery es una entrega individual de la cola. La entrega es
// at-least-once: si nadie llama a Ack antes del deadline, el mensaje se
// vuelve a entregar; pasado el máximo de intentos la infraestructura lo
// rutea al destino de dead-letter.
type Delivery interface {
	Body() []byte
	// Attempt es el número de intento de entrega, arrancando en 1. Puede
	// ser 0 si el transporte no lo informa.
	Attempt() int
	Ack()
	Nack()
}

// Publisher publica mensajes de pedido en la cola de trabajo.
type Publisher interface {
	// Publish confirma la publicación antes de devolver. Un error acá
	// significa que el mensaje NO está en la cola.
	Publish(ctx context.Context, msg models.QueueMessage) (string, error)
}

// Consumer entrega mensajes al handler hasta que el contexto se cancele.
// Las entregas pueden ser concurrentes hasta el límite configurado del
// transporte.
type Consumer interface {
	Receive(ctx context.Context, handler func(ctx context.Context, d Delivery)) error
}
