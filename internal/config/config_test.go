package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	require.NotNil(t, cfg)
	assert.Equal(t, "auto", cfg.Format)
	assert.False(t, cfg.Quiet)
	assert.False(t, cfg.Verbose)
	assert.Equal(t, "ws://localhost:9001", cfg.Defaults.Server)
	assert.Equal(t, "30s", cfg.Defaults.Timeout)
	assert.Equal(t, "1s", cfg.Defaults.Retry)
}

func TestLoad(t *testing.T) {
	t.Run("returns defaults when no config file exists", func(t *testing.T) {
		// Create temp dir with no config
		tmpDir := t.TempDir()
		origDir, _ := os.Getwd()
		os.Chdir(tmpDir)
		defer os.Chdir(origDir)

		cfg, err := Load()
		require.NoError(t, err)
		require.NotNil(t, cfg)

		assert.Equal(t, "auto", cfg.Format)
		assert.Equal(t, "ws://localhost:9001", cfg.Defaults.Server)
	})

	t.Run("loads config from file", func(t *testing.T) {
		tmpDir := t.TempDir()

		configContent := `
format: ndjson
quiet: true
defaults:
  server: "wss://debug.internal:9001"
  node: "/app"
  timeout: "5s"
`
		configPath := filepath.Join(tmpDir, "dedbg.yaml")
		err := os.WriteFile(configPath, []byte(configContent), 0644)
		require.NoError(t, err)

		cfg, err := LoadFromFile(configPath)
		require.NoError(t, err)
		require.NotNil(t, cfg)

		assert.Equal(t, "ndjson", cfg.Format)
		assert.True(t, cfg.Quiet)
		assert.Equal(t, "wss://debug.internal:9001", cfg.Defaults.Server)
		assert.Equal(t, "/app", cfg.Defaults.Node)
		assert.Equal(t, 5*time.Second, cfg.ReplyTimeout())
	})

	t.Run("environment variables override defaults", func(t *testing.T) {
		tmpDir := t.TempDir()
		origDir, _ := os.Getwd()
		os.Chdir(tmpDir)
		defer os.Chdir(origDir)

		t.Setenv("DEDBG_SERVER", "ws://env-host:1234")
		t.Setenv("DEDBG_FORMAT", "table")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "ws://env-host:1234", cfg.Defaults.Server)
		assert.Equal(t, "table", cfg.Format)
	})
}

func TestLoadFromFileErrors(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestReplyTimeoutFallback(t *testing.T) {
	cfg := Default()
	cfg.Defaults.Timeout = "not a duration"
	assert.Equal(t, 30*time.Second, cfg.ReplyTimeout())

	cfg.Defaults.Timeout = "100ms"
	assert.Equal(t, 100*time.Millisecond, cfg.ReplyTimeout())
}
