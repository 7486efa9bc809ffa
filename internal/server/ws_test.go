package server

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Tomas-vilte/MateDataset/internal/domain/models"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type noopCancel struct{}

func (noopCancel) Cancel() {}

func dialStatusSocket(t *testing.T, srv *Server, requestID string) *websocket.Conn {
	t.Helper()
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/status/" + requestID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestServer_HandleStatusSocket(t *testing.T) {
	t.Run("pushes updates and closes on the terminal state", func(t *testing.T) {
		_, _, mockWatcher, srv := setupServerTest(t)

		var onUpdate func(models.DatasetRequest)
		mockWatcher.On("Subscribe", "req-123", mock.Anything).
			Run(func(args mock.Arguments) {
				onUpdate = args.Get(1).(func(models.DatasetRequest))
			}).
			Return(noopCancel{}, nil)

		conn := dialStatusSocket(t, srv, "req-123")
		require.Eventually(t, func() bool { return onUpdate != nil }, time.Second, 5*time.Millisecond)

		onUpdate(models.DatasetRequest{RequestID: "req-123", Status: models.RequestProcessing})
		var first StatusResponse
		require.NoError(t, conn.ReadJSON(&first))
		assert.Equal(t, "processing", first.Status)

		onUpdate(models.DatasetRequest{
			RequestID: "req-123",
			Status:    models.RequestCompleted,
			PRURL:     "https://github.com/org/repo/pull/7",
		})
		var second StatusResponse
		require.NoError(t, conn.ReadJSON(&second))
		assert.Equal(t, "completed", second.Status)
		assert.Equal(t, "https://github.com/org/repo/pull/7", second.PRURL)

		// después del terminal el server cierra la conexión
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
		var extra StatusResponse
		assert.Error(t, conn.ReadJSON(&extra))
	})

	t.Run("falls back to polling when the subscription fails", func(t *testing.T) {
		_, _, mockWatcher, srv := setupServerTest(t)

		mockWatcher.On("Subscribe", "req-123", mock.Anything).
			Return(nil, assert.AnError)
		mockWatcher.On("Poll", mock.Anything, "req-123", 10*time.Millisecond, 3).
			Return(&models.DatasetRequest{RequestID: "req-123", Status: models.RequestFailed, Error: "sin permisos"}, nil)

		conn := dialStatusSocket(t, srv, "req-123")

		var resp StatusResponse
		require.NoError(t, conn.ReadJSON(&resp))
		assert.Equal(t, "failed", resp.Status)
		assert.Equal(t, "sin permisos", resp.Error)
		mockWatcher.AssertExpectations(t)
	})
}
