package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/Tomas-vilte/MateDataset/internal/domain/models"
	"github.com/Tomas-vilte/MateDataset/internal/domain/ports"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestReconcilerService_HandleDelivery(t *testing.T) {
	t.Run("marks the stranded request as failed and acks", func(t *testing.T) {
		mockRequests := new(MockRequestStore)
		service := NewReconcilerService(mockRequests, new(MockConsumer))

		body, err := json.Marshal(queueMessage())
		require.NoError(t, err)
		mockRequests.On("SetStatus", mock.Anything, "req-123", models.RequestFailed, "",
			mock.Anything).Return(nil).Once()

		delivery := new(MockDelivery)
		delivery.On("Body").Return(body)
		delivery.On("Ack").Return()

		service.HandleDelivery(context.Background(), delivery)

		mockRequests.AssertExpectations(t)
		delivery.AssertCalled(t, "Ack")
	})

	t.Run("already terminal request is still acked", func(t *testing.T) {
		mockRequests := new(MockRequestStore)
		service := NewReconcilerService(mockRequests, new(MockConsumer))

		body, err := json.Marshal(queueMessage())
		require.NoError(t, err)
		// SetStatus sobre un terminal es un no-op sin error
		mockRequests.On("SetStatus", mock.Anything, "req-123", models.RequestFailed, "",
			mock.Anything).Return(nil)

		delivery := new(MockDelivery)
		delivery.On("Body").Return(body)
		delivery.On("Ack").Return()

		service.HandleDelivery(context.Background(), delivery)

		delivery.AssertCalled(t, "Ack")
	})

	t.Run("unknown request id is dropped", func(t *testing.T) {
		mockRequests := new(MockRequestStore)
		service := NewReconcilerService(mockRequests, new(MockConsumer))

		body, err := json.Marshal(queueMessage())
		require.NoError(t, err)
		mockRequests.On("SetStatus", mock.Anything, "req-123", models.RequestFailed, "",
			mock.Anything).Return(ports.ErrRequestNotFound)

		delivery := new(MockDelivery)
		delivery.On("Body").Return(body)
		delivery.On("Ack").Return()

		service.HandleDelivery(context.Background(), delivery)

		delivery.AssertCalled(t, "Ack")
		delivery.AssertNotCalled(t, "Nack")
	})

	t.Run("store failure nacks for another pass", func(t *testing.T) {
		mockRequests := new(MockRequestStore)
		service := NewReconcilerService(mockRequests, new(MockConsumer))

		body, err := json.Marshal(queueMessage())
		require.NoError(t, err)
		mockRequests.On("SetStatus", mock.Anything, "req-123", models.RequestFailed, "",
			mock.Anything).Return(errors.New("base caída"))

		delivery := new(MockDelivery)
		delivery.On("Body").Return(body)
		delivery.On("Nack").Return()

		service.HandleDelivery(context.Background(), delivery)

		delivery.AssertCalled(t, "Nack")
		delivery.AssertNotCalled(t, "Ack")
	})

	t.Run("malformed body is dropped", func(t *testing.T) {
		mockRequests := new(MockRequestStore)
		service := NewReconcilerService(mockRequests, new(MockConsumer))

		delivery := new(MockDelivery)
		delivery.On("Body").Return([]byte("{sin request_id}"))
		delivery.On("Ack").Return()

		service.HandleDelivery(context.Background(), delivery)

		mockRequests.AssertNotCalled(t, "SetStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		delivery.AssertCalled(t, "Ack")
	})
}
