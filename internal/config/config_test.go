package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	t.Run("creates a default config when the file does not exist", func(t *testing.T) {
		dir := t.TempDir()

		cfg, err := LoadConfig(dir)

		require.NoError(t, err)
		assert.Equal(t, "en", cfg.Language)
		assert.Equal(t, 8080, cfg.Port)
		assert.Equal(t, "matedataset.db", cfg.DatabasePath)
		assert.Equal(t, 10, cfg.MaxMessages)
		assert.Equal(t, 5, cfg.MaxDeliveryCount)
		assert.Equal(t, 30, cfg.ExternalTimeoutSecs)
		assert.True(t, cfg.IsLocalMode())
		assert.FileExists(t, filepath.Join(dir, ".mate-dataset", "config.json"))
	})

	t.Run("loads an existing file and fills the gaps with defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"language":"es","port":9090}`), 0644))

		cfg, err := LoadConfig(path)

		require.NoError(t, err)
		assert.Equal(t, "es", cfg.Language)
		assert.Equal(t, 9090, cfg.Port)
		// lo no especificado sale de los defaults
		assert.Equal(t, "gemini-2.5-pro", cfg.GeminiModel)
		assert.Equal(t, "datasets", cfg.TerraformDir)
	})

	t.Run("environment variables override the file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"project_id":"del-archivo","pubsub_topic":"t","pubsub_subscription":"s"}`), 0644))

		t.Setenv("PROJECT_ID", "del-entorno")
		t.Setenv("GITHUB_TOKEN", "tok-123")
		t.Setenv("PORT", "3000")

		cfg, err := LoadConfig(path)

		require.NoError(t, err)
		assert.Equal(t, "del-entorno", cfg.ProjectID)
		assert.Equal(t, "tok-123", cfg.GitHubConfig.Token)
		assert.Equal(t, 3000, cfg.Port)
		assert.False(t, cfg.IsLocalMode())
	})

	t.Run("a GCP project without queue config is invalid", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"project_id":"mi-proyecto"}`), 0644))

		_, err := LoadConfig(path)

		assert.Error(t, err)
	})
}

func TestSaveConfig(t *testing.T) {
	t.Run("round-trips through the file", func(t *testing.T) {
		dir := t.TempDir()
		cfg, err := LoadConfig(dir)
		require.NoError(t, err)

		cfg.Language = "es"
		cfg.GitHubConfig.Owner = "Tomas-vilte"
		require.NoError(t, SaveConfig(cfg))

		reloaded, err := LoadConfig(dir)
		require.NoError(t, err)
		assert.Equal(t, "es", reloaded.Language)
		assert.Equal(t, "Tomas-vilte", reloaded.GitHubConfig.Owner)
	})

	t.Run("rejects an invalid config", func(t *testing.T) {
		cfg := &Config{Language: "en", Port: 0}

		assert.Error(t, SaveConfig(cfg))
	})
}
