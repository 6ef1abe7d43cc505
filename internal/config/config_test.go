package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Heartbeat.Interval)
	assert.Equal(t, 3*time.Second, cfg.Matchmaking.StartDelay)
	assert.Equal(t, 5*time.Minute, cfg.Matchmaking.StaleAfter)
	assert.Equal(t, 30*time.Second, cfg.Session.FinishedGrace)
	assert.Equal(t, []string{"number-memory"}, cfg.Session.TurnBasedGames)
	assert.Equal(t, 5, cfg.Settlement.Retry.MaxAttempts)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.False(t, cfg.Redis.Enabled)
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := []byte(`
server:
  port: "9090"
  mode: release
matchmaking:
  startDelay: 1500ms
session:
  finishedGrace: 10s
  turnBasedGames: [number-memory, word-scramble]
settlement:
  enabled: true
  baseURL: http://oracle.local
  retry:
    maxAttempts: 3
`)
	require.NoError(t, os.WriteFile(path, body, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "release", cfg.Server.Mode)
	assert.Equal(t, 1500*time.Millisecond, cfg.Matchmaking.StartDelay)
	assert.Equal(t, 10*time.Second, cfg.Session.FinishedGrace)
	assert.Equal(t, []string{"number-memory", "word-scramble"}, cfg.Session.TurnBasedGames)
	assert.True(t, cfg.Settlement.Enabled)
	assert.Equal(t, "http://oracle.local", cfg.Settlement.BaseURL)
	assert.Equal(t, 3, cfg.Settlement.Retry.MaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.Settlement.Retry.InitialDelay)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("SURGE_SERVER_PORT", "7070")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "7070", cfg.Server.Port)
}
