package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/Tomas-vilte/MateDataset/internal/domain/models"
	"github.com/Tomas-vilte/MateDataset/internal/domain/ports"
	"golang.org/x/sync/semaphore"
)

// MemoryQueue implementa los contratos de publish/pull con semántica
// at-least-once: deadline de ack por mensaje, redelivery si nadie ackeó a
// tiempo, y ruteo a dead-letter después del máximo de intentos de entrega.
// Se usa en modo local y en los tests; en despliegue el transporte es
// Pub/Sub con la misma semántica.
type MemoryQueue struct {
	mu          sync.Mutex
	ready       []*memoryMessage
	dead        []*memoryMessage
	notify      chan struct{}
	nextID      int
	ackDeadline time.Duration
	maxAttempts int
	maxInFlight int
}

type memoryMessage struct {
	id       string
	body     []byte
	attempts int
}

func NewMemoryQueue(ackDeadline time.Duration, maxAttempts, maxInFlight int) *MemoryQueue {
	if maxInFlight <= 0 {
		maxInFlight = 1
	}
	return &MemoryQueue{
		notify:      make(chan struct{}, 1),
		ackDeadline: ackDeadline,
		maxAttempts: maxAttempts,
		maxInFlight: maxInFlight,
	}
}

var _ ports.Publisher = (*MemoryQueue)(nil)
var _ ports.Consumer = (*MemoryQueue)(nil)

func (q *MemoryQueue) Publish(_ context.Context, msg models.QueueMessage) (string, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("error al codificar el mensaje: %w", err)
	}
	q.mu.Lock()
	q.nextID++
	id := fmt.Sprintf("m%d", q.nextID)
	q.ready = append(q.ready, &memoryMessage{id: id, body: body})
	q.mu.Unlock()
	q.wake()
	return id, nil
}

func (q *MemoryQueue) wake() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Receive entrega mensajes al handler hasta que el contexto se cancele,
// con a lo sumo maxInFlight entregas concurrentes. Antes de volver espera
// a que terminen las entregas en vuelo.
func (q *MemoryQueue) Receive(ctx context.Context, handler func(ctx context.Context, d ports.Delivery)) error {
	sem := semaphore.NewWeighted(int64(q.maxInFlight))
	for {
		msg := q.take(ctx)
		if msg == nil {
			break
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			q.requeue(msg)
			break
		}
		go func(m *memoryMessage) {
			defer sem.Release(1)
			q.deliver(ctx, m, handler)
		}(msg)
	}
	// Drenar las entregas en vuelo antes de cerrar el batch.
	_ = sem.Acquire(context.Background(), int64(q.maxInFlight))
	return nil
}

// take bloquea hasta que haya un mensaje elegible o se cancele el contexto.
// Un mensaje que ya agotó su máximo de intentos no se vuelve a entregar:
// se rutea a dead-letter acá mismo.
func (q *MemoryQueue) take(ctx context.Context) *memoryMessage {
	for {
		q.mu.Lock()
		for len(q.ready) > 0 {
			msg := q.ready[0]
			q.ready = q.ready[1:]
			if msg.attempts >= q.maxAttempts {
				q.dead = append(q.dead, msg)
				continue
			}
			msg.attempts++
			q.mu.Unlock()
			return msg
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil
		case <-q.notify:
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func (q *MemoryQueue) deliver(ctx context.Context, msg *memoryMessage, handler func(ctx context.Context, d ports.Delivery)) {
	d := &memoryDelivery{queue: q, msg: msg}
	d.timer = time.AfterFunc(q.ackDeadline, func() {
		// Deadline vencido sin ack: redelivery.
		if d.settle() {
			q.requeue(msg)
		}
	})
	handler(ctx, d)
}

func (q *MemoryQueue) requeue(msg *memoryMessage) {
	q.mu.Lock()
	q.ready = append(q.ready, msg)
	q.mu.Unlock()
	q.wake()
}

// DeadLetter devuelve el consumidor del destino de dead-letter.
func (q *MemoryQueue) DeadLetter() ports.Consumer {
	return &deadLetterConsumer{queue: q}
}

// Counts expone el tamaño de las colas para tests y diagnóstico.
func (q *MemoryQueue) Counts() (ready, dead int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ready), len(q.dead)
}

type memoryDelivery struct {
	queue   *MemoryQueue
	msg     *memoryMessage
	timer   *time.Timer
	mu      sync.Mutex
	settled bool
}

var _ ports.Delivery = (*memoryDelivery)(nil)

func (d *memoryDelivery) Body() []byte { return d.msg.body }

func (d *memoryDelivery) Attempt() int { return d.msg.attempts }

// settle marca la entrega como resuelta. Devuelve true solo la primera vez.
func (d *memoryDelivery) settle() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.settled {
		return false
	}
	d.settled = true
	return true
}

func (d *memoryDelivery) Ack() {
	if d.settle() {
		d.timer.Stop()
	}
}

func (d *memoryDelivery) Nack() {
	if d.settle() {
		d.timer.Stop()
		d.queue.requeue(d.msg)
	}
}

// deadLetterConsumer drena los mensajes que agotaron sus intentos. Acá ya
// no hay máximo: un nack simplemente deja el mensaje en el destino.
type deadLetterConsumer struct {
	queue *MemoryQueue
}

var _ ports.Consumer = (*deadLetterConsumer)(nil)

func (c *deadLetterConsumer) Receive(ctx context.Context, handler func(ctx context.Context, d ports.Delivery)) error {
	for {
		c.queue.mu.Lock()
		var msg *memoryMessage
		if len(c.queue.dead) > 0 {
			msg = c.queue.dead[0]
			c.queue.dead = c.queue.dead[1:]
		}
		c.queue.mu.Unlock()

		if msg == nil {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(10 * time.Millisecond):
				continue
			}
		}

		d := &deadLetterDelivery{queue: c.queue, msg: msg}
		d.timer = time.AfterFunc(c.queue.ackDeadline, func() {
			if d.settle() {
				c.queue.requeueDead(msg)
			}
		})
		handler(ctx, d)
	}
}

func (q *MemoryQueue) requeueDead(msg *memoryMessage) {
	q.mu.Lock()
	q.dead = append(q.dead, msg)
	q.mu.Unlock()
}

type deadLetterDelivery struct {
	queue   *MemoryQueue
	msg     *memoryMessage
	timer   *time.Timer
	mu      sync.Mutex
	settled bool
}

var _ ports.Delivery = (*deadLetterDelivery)(nil)

func (d *deadLetterDelivery) Body() []byte { return d.msg.body }

func (d *deadLetterDelivery) Attempt() int { return d.msg.attempts }

func (d *deadLetterDelivery) settle() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.settled {
		return false
	}
	d.settled = true
	return true
}

func (d *deadLetterDelivery) Ack() {
	if d.settle() {
		d.timer.Stop()
	}
}

func (d *deadLetterDelivery) Nack() {
	if d.settle() {
		d.timer.Stop()
		d.queue.requeueDead(d.msg)
	}
}
