package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/Tomas-vilte/MateDataset/internal/domain/models"
	"github.com/Tomas-vilte/MateDataset/internal/domain/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := Init(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	return db
}

func TestConversationRepository(t *testing.T) {
	t.Run("get initializes a missing session", func(t *testing.T) {
		repo := NewConversationRepository(setupDB(t))

		state, err := repo.Get(context.Background(), "s1")

		require.NoError(t, err)
		assert.Equal(t, "s1", state.SessionID)
		assert.Equal(t, models.ConversationCollecting, state.Status)
		assert.Empty(t, state.Entities)
		assert.Equal(t, int64(0), state.Version)
	})

	t.Run("save persists and bumps the version", func(t *testing.T) {
		repo := NewConversationRepository(setupDB(t))
		ctx := context.Background()

		state, err := repo.Get(ctx, "s1")
		require.NoError(t, err)

		state.Entities[models.FieldDatasetName] = "ventas"
		state.AppendMessage("user", "el dataset ventas", state.CreatedAt)
		require.NoError(t, err)
		require.NoError(t, repo.Save(ctx, state))
		assert.Equal(t, int64(1), state.Version)

		reloaded, err := repo.Get(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, "ventas", reloaded.Entities[models.FieldDatasetName])
		assert.Len(t, reloaded.Messages, 1)
		assert.Equal(t, int64(1), reloaded.Version)
	})

	t.Run("stale save loses the race and keeps its version", func(t *testing.T) {
		repo := NewConversationRepository(setupDB(t))
		ctx := context.Background()

		first, err := repo.Get(ctx, "s1")
		require.NoError(t, err)
		second, err := repo.Get(ctx, "s1")
		require.NoError(t, err)

		first.Entities[models.FieldDatasetName] = "ganador"
		require.NoError(t, repo.Save(ctx, first))

		second.Entities[models.FieldDatasetName] = "perdedor"
		err = repo.Save(ctx, second)

		assert.ErrorIs(t, err, ports.ErrStaleConversation)
		// la versión local no queda incrementada, así el reintento relee bien
		assert.Equal(t, int64(0), second.Version)

		reloaded, err := repo.Get(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, "ganador", reloaded.Entities[models.FieldDatasetName])
	})
}

func TestRequestRepository(t *testing.T) {
	newRequest := func() *models.DatasetRequest {
		return &models.DatasetRequest{
			RequestID: "req-123",
			SessionID: "s1",
			Payload: models.RequestPayload{
				DatasetName:    "ventas",
				Location:       "us-central1",
				Labels:         map[string]string{"env": "prod"},
				ServiceAccount: "sa@proj.iam.gserviceaccount.com",
			},
			Status: models.RequestPending,
		}
	}

	t.Run("create and get round-trip", func(t *testing.T) {
		repo := NewRequestRepository(setupDB(t))
		ctx := context.Background()

		require.NoError(t, repo.Create(ctx, newRequest()))

		got, err := repo.Get(ctx, "req-123")
		require.NoError(t, err)
		assert.Equal(t, models.RequestPending, got.Status)
		assert.Equal(t, "ventas", got.Payload.DatasetName)
		assert.Equal(t, map[string]string{"env": "prod"}, got.Payload.Labels)
	})

	t.Run("get of an unknown id", func(t *testing.T) {
		repo := NewRequestRepository(setupDB(t))

		_, err := repo.Get(context.Background(), "nope")

		assert.ErrorIs(t, err, ports.ErrRequestNotFound)
	})

	t.Run("status transitions up to the terminal state", func(t *testing.T) {
		repo := NewRequestRepository(setupDB(t))
		ctx := context.Background()
		require.NoError(t, repo.Create(ctx, newRequest()))

		require.NoError(t, repo.SetStatus(ctx, "req-123", models.RequestProcessing, "", ""))
		require.NoError(t, repo.SetStatus(ctx, "req-123", models.RequestCompleted, "https://github.com/org/repo/pull/7", ""))

		got, err := repo.Get(ctx, "req-123")
		require.NoError(t, err)
		assert.Equal(t, models.RequestCompleted, got.Status)
		assert.Equal(t, "https://github.com/org/repo/pull/7", got.PRURL)
	})

	t.Run("a terminal status is immutable", func(t *testing.T) {
		repo := NewRequestRepository(setupDB(t))
		ctx := context.Background()
		require.NoError(t, repo.Create(ctx, newRequest()))
		require.NoError(t, repo.SetStatus(ctx, "req-123", models.RequestCompleted, "https://github.com/org/repo/pull/7", ""))

		// la redelivery intenta pisar el terminal: no-op sin error
		require.NoError(t, repo.SetStatus(ctx, "req-123", models.RequestFailed, "", "tarde"))

		got, err := repo.Get(ctx, "req-123")
		require.NoError(t, err)
		assert.Equal(t, models.RequestCompleted, got.Status)
		assert.Empty(t, got.Error)
	})

	t.Run("set status on an unknown id", func(t *testing.T) {
		repo := NewRequestRepository(setupDB(t))

		err := repo.SetStatus(context.Background(), "nope", models.RequestFailed, "", "x")

		assert.ErrorIs(t, err, ports.ErrRequestNotFound)
	})
}
