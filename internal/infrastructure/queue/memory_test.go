package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Tomas-vilte/MateDataset/internal/domain/models"
	"github.com/Tomas-vilte/MateDataset/internal/domain/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMessage() models.QueueMessage {
	return models.QueueMessage{
		RequestID:   "req-123",
		SessionID:   "s1",
		DatasetName: "ventas",
	}
}

// recorder junta las entregas que ve el handler, de forma segura para las
// entregas concurrentes de la cola.
type recorder struct {
	mu       sync.Mutex
	attempts []int
}

func (r *recorder) add(attempt int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts = append(r.attempts, attempt)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.attempts)
}

func TestMemoryQueue(t *testing.T) {
	t.Run("acked message is delivered once", func(t *testing.T) {
		q := NewMemoryQueue(time.Second, 5, 1)
		_, err := q.Publish(context.Background(), testMessage())
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		rec := &recorder{}
		go func() {
			time.Sleep(100 * time.Millisecond)
			cancel()
		}()
		err = q.Receive(ctx, func(_ context.Context, d ports.Delivery) {
			rec.add(d.Attempt())
			d.Ack()
		})
		require.NoError(t, err)

		assert.Equal(t, []int{1}, rec.attempts)
		ready, dead := q.Counts()
		assert.Zero(t, ready)
		assert.Zero(t, dead)
	})

	t.Run("nack triggers a redelivery with the next attempt", func(t *testing.T) {
		q := NewMemoryQueue(time.Second, 5, 1)
		_, err := q.Publish(context.Background(), testMessage())
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		rec := &recorder{}
		err = q.Receive(ctx, func(_ context.Context, d ports.Delivery) {
			rec.add(d.Attempt())
			if d.Attempt() == 1 {
				d.Nack()
				return
			}
			d.Ack()
			cancel()
		})
		require.NoError(t, err)

		assert.Equal(t, []int{1, 2}, rec.attempts)
	})

	t.Run("missed ack deadline triggers a redelivery", func(t *testing.T) {
		q := NewMemoryQueue(20*time.Millisecond, 5, 1)
		_, err := q.Publish(context.Background(), testMessage())
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		rec := &recorder{}
		err = q.Receive(ctx, func(_ context.Context, d ports.Delivery) {
			rec.add(d.Attempt())
			if d.Attempt() == 1 {
				// ni ack ni nack: la cola tiene que reentregar sola
				return
			}
			d.Ack()
			cancel()
		})
		require.NoError(t, err)

		assert.Equal(t, []int{1, 2}, rec.attempts)
	})

	t.Run("message goes to dead-letter after exactly the max attempts", func(t *testing.T) {
		const maxAttempts = 3
		q := NewMemoryQueue(time.Second, maxAttempts, 1)
		_, err := q.Publish(context.Background(), testMessage())
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		rec := &recorder{}
		go func() {
			// esperar a que las entregas se agoten y el ruteo a dead-letter
			// ocurra en el take siguiente
			for rec.count() < maxAttempts {
				time.Sleep(5 * time.Millisecond)
			}
			time.Sleep(50 * time.Millisecond)
			cancel()
		}()
		err = q.Receive(ctx, func(_ context.Context, d ports.Delivery) {
			rec.add(d.Attempt())
			d.Nack()
		})
		require.NoError(t, err)

		// ni una entrega más que el máximo
		assert.Equal(t, []int{1, 2, 3}, rec.attempts)
		ready, dead := q.Counts()
		assert.Zero(t, ready)
		assert.Equal(t, 1, dead)
	})

	t.Run("dead-letter consumer drains the dead messages", func(t *testing.T) {
		q := NewMemoryQueue(time.Second, 1, 1)
		_, err := q.Publish(context.Background(), testMessage())
		require.NoError(t, err)

		// agotar la única entrega permitida
		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(100 * time.Millisecond)
			cancel()
		}()
		err = q.Receive(ctx, func(_ context.Context, d ports.Delivery) {
			d.Nack()
		})
		require.NoError(t, err)
		_, dead := q.Counts()
		require.Equal(t, 1, dead)

		dlCtx, dlCancel := context.WithCancel(context.Background())
		var got []byte
		err = q.DeadLetter().Receive(dlCtx, func(_ context.Context, d ports.Delivery) {
			got = d.Body()
			d.Ack()
			dlCancel()
		})
		require.NoError(t, err)

		assert.Contains(t, string(got), "req-123")
		_, dead = q.Counts()
		assert.Zero(t, dead)
	})

	t.Run("concurrent deliveries are bounded", func(t *testing.T) {
		const maxInFlight = 2
		q := NewMemoryQueue(time.Second, 5, maxInFlight)
		for i := 0; i < 6; i++ {
			_, err := q.Publish(context.Background(), testMessage())
			require.NoError(t, err)
		}

		var mu sync.Mutex
		inFlight, peak, total := 0, 0, 0
		ctx, cancel := context.WithCancel(context.Background())
		err := q.Receive(ctx, func(_ context.Context, d ports.Delivery) {
			mu.Lock()
			inFlight++
			if inFlight > peak {
				peak = inFlight
			}
			mu.Unlock()

			time.Sleep(10 * time.Millisecond)
			d.Ack()

			mu.Lock()
			inFlight--
			total++
			if total == 6 {
				cancel()
			}
			mu.Unlock()
		})
		require.NoError(t, err)

		assert.Equal(t, 6, total)
		assert.LessOrEqual(t, peak, maxInFlight)
	})
}
