package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scorezilla/scorezilla/internal/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	t.Run("missing file is an error", func(t *testing.T) {
		_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})

	t.Run("values override defaults", func(t *testing.T) {
		path := writeConfig(t, `
server:
  port: 9090
auth:
  secret: super-secret
  token_ttl: 30m
ledger:
  capacity: 25
storage:
  backend: file
file:
  path: /tmp/scores.json
`)
		cfg, err := config.Load(path)
		require.NoError(t, err)

		assert.Equal(t, 9090, cfg.Server.Port)
		assert.Equal(t, "super-secret", cfg.Auth.Secret)
		assert.Equal(t, 30*time.Minute, cfg.Auth.TokenTTL)
		assert.Equal(t, 25, cfg.Ledger.Capacity)
		assert.Equal(t, config.BackendFile, cfg.Storage.Backend)
		assert.Equal(t, "/tmp/scores.json", cfg.File.Path)

		// Untouched sections still get defaults
		assert.Equal(t, 2*time.Hour, cfg.Auth.AnonTokenTTL)
		assert.Equal(t, 10, cfg.Ledger.DefaultLimit)
		assert.Equal(t, 3, cfg.Ledger.WriteRetries)
	})

	t.Run("expands environment variables", func(t *testing.T) {
		t.Setenv("SCOREZILLA_SECRET", "from-env")
		path := writeConfig(t, `
auth:
  secret: ${SCOREZILLA_SECRET}
`)
		cfg, err := config.Load(path)
		require.NoError(t, err)
		assert.Equal(t, "from-env", cfg.Auth.Secret)
	})
}

func TestDefaultConfig(t *testing.T) {
	cfg := config.DefaultConfig()

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, 2*time.Hour, cfg.Auth.AnonTokenTTL)
	assert.Equal(t, 100, cfg.Ledger.Capacity)
	assert.Equal(t, 100, cfg.Ledger.MaxLimit)
	assert.Equal(t, config.BackendMemory, cfg.Storage.Backend)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "scorezilla-scores", cfg.Kafka.Topic)
}
