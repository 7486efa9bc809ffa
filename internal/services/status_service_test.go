package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Tomas-vilte/MateDataset/internal/domain/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestStatusService_Subscribe(t *testing.T) {
	t.Run("delivers each change and the terminal state exactly once", func(t *testing.T) {
		mockRequests := new(MockRequestStore)
		service := NewStatusService(mockRequests, 5*time.Millisecond)

		processing := &models.DatasetRequest{RequestID: "req-123", Status: models.RequestProcessing}
		completed := &models.DatasetRequest{
			RequestID: "req-123",
			Status:    models.RequestCompleted,
			PRURL:     "https://github.com/org/repo/pull/7",
		}
		mockRequests.On("Get", mock.Anything, "req-123").Return(processing, nil).Twice()
		mockRequests.On("Get", mock.Anything, "req-123").Return(completed, nil)

		updates := make(chan models.DatasetRequest, 10)
		handle, err := service.Subscribe("req-123", func(req models.DatasetRequest) {
			updates <- req
		})
		require.NoError(t, err)
		defer handle.Cancel()

		// primero el estado en curso, después el terminal, y nada más
		first := <-updates
		assert.Equal(t, models.RequestProcessing, first.Status)
		second := <-updates
		assert.Equal(t, models.RequestCompleted, second.Status)
		assert.Equal(t, "https://github.com/org/repo/pull/7", second.PRURL)

		select {
		case extra := <-updates:
			t.Fatalf("llegó una actualización de más: %+v", extra)
		case <-time.After(50 * time.Millisecond):
		}
	})

	t.Run("a new subscription replaces the previous one", func(t *testing.T) {
		mockRequests := new(MockRequestStore)
		service := NewStatusService(mockRequests, 5*time.Millisecond)

		pending := &models.DatasetRequest{RequestID: "req-123", Status: models.RequestPending}
		mockRequests.On("Get", mock.Anything, "req-123").Return(pending, nil)

		firstUpdates := make(chan models.DatasetRequest, 10)
		_, err := service.Subscribe("req-123", func(req models.DatasetRequest) {
			firstUpdates <- req
		})
		require.NoError(t, err)
		<-firstUpdates

		secondUpdates := make(chan models.DatasetRequest, 10)
		handle, err := service.Subscribe("req-123", func(req models.DatasetRequest) {
			secondUpdates <- req
		})
		require.NoError(t, err)
		defer handle.Cancel()

		<-secondUpdates

		service.mu.Lock()
		active := len(service.subs)
		service.mu.Unlock()
		assert.Equal(t, 1, active)
	})

	t.Run("empty id is rejected", func(t *testing.T) {
		service := NewStatusService(new(MockRequestStore), time.Second)

		handle, err := service.Subscribe("", func(models.DatasetRequest) {})

		assert.Error(t, err)
		assert.Nil(t, handle)
	})

	t.Run("cancel is idempotent", func(t *testing.T) {
		mockRequests := new(MockRequestStore)
		service := NewStatusService(mockRequests, time.Hour)
		mockRequests.On("Get", mock.Anything, "req-123").
			Return(&models.DatasetRequest{RequestID: "req-123", Status: models.RequestPending}, nil)

		handle, err := service.Subscribe("req-123", func(models.DatasetRequest) {})
		require.NoError(t, err)

		handle.Cancel()
		handle.Cancel()
	})
}

func TestStatusService_Poll(t *testing.T) {
	t.Run("returns as soon as the state is terminal", func(t *testing.T) {
		mockRequests := new(MockRequestStore)
		service := NewStatusService(mockRequests, time.Second)

		mockRequests.On("Get", mock.Anything, "req-123").
			Return(&models.DatasetRequest{RequestID: "req-123", Status: models.RequestProcessing}, nil).Once()
		mockRequests.On("Get", mock.Anything, "req-123").
			Return(&models.DatasetRequest{RequestID: "req-123", Status: models.RequestFailed, Error: "sin permisos"}, nil).Once()

		req, err := service.Poll(context.Background(), "req-123", time.Millisecond, 5)

		require.NoError(t, err)
		assert.Equal(t, models.RequestFailed, req.Status)
		mockRequests.AssertNumberOfCalls(t, "Get", 2)
	})

	t.Run("a flaky read does not abort the poll", func(t *testing.T) {
		mockRequests := new(MockRequestStore)
		service := NewStatusService(mockRequests, time.Second)

		mockRequests.On("Get", mock.Anything, "req-123").
			Return(nil, errors.New("la base está ocupada")).Once()
		mockRequests.On("Get", mock.Anything, "req-123").
			Return(&models.DatasetRequest{RequestID: "req-123", Status: models.RequestCompleted}, nil).Once()

		req, err := service.Poll(context.Background(), "req-123", time.Millisecond, 5)

		require.NoError(t, err)
		assert.Equal(t, models.RequestCompleted, req.Status)
	})

	t.Run("returns the last error when every read fails", func(t *testing.T) {
		mockRequests := new(MockRequestStore)
		service := NewStatusService(mockRequests, time.Second)

		mockRequests.On("Get", mock.Anything, "req-123").
			Return(nil, errors.New("la base está caída"))

		req, err := service.Poll(context.Background(), "req-123", time.Millisecond, 3)

		assert.Error(t, err)
		assert.Nil(t, req)
		mockRequests.AssertNumberOfCalls(t, "Get", 3)
	})

	t.Run("returns the last state when the attempts run out", func(t *testing.T) {
		mockRequests := new(MockRequestStore)
		service := NewStatusService(mockRequests, time.Second)

		mockRequests.On("Get", mock.Anything, "req-123").
			Return(&models.DatasetRequest{RequestID: "req-123", Status: models.RequestProcessing}, nil)

		req, err := service.Poll(context.Background(), "req-123", time.Millisecond, 3)

		require.NoError(t, err)
		assert.Equal(t, models.RequestProcessing, req.Status)
		mockRequests.AssertNumberOfCalls(t, "Get", 3)
	})
}
