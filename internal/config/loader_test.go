package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoader(t *testing.T) {
	loader := NewLoader("/path/to/config.json")
	assert.NotNil(t, loader)
	assert.Equal(t, "/path/to/config.json", loader.GetConfigPath())
}

func TestLoaderLoad(t *testing.T) {
	t.Run("defaults when file doesn't exist", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "nonexistent.json")

		cfg, err := NewLoader(configPath).Load()

		require.NoError(t, err)
		assert.Equal(t, "file", cfg.Credentials.Backend)
		assert.Equal(t, tmpDir, cfg.DataDir)
		assert.Equal(t, filepath.Join(tmpDir, "credentials.json"), cfg.Credentials.Path)
		assert.Equal(t, filepath.Join(tmpDir, "erigo.log"), cfg.Logging.File)
		assert.Equal(t, filepath.Join(tmpDir, "audit.log"), cfg.Logging.AuditFile)
	})

	t.Run("load config from file", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.json")

		testConfig := `{
			"api": {"url": "https://my.erigones.com/api/", "task_timeout": 60},
			"telegram": {
				"bot_token": "123:test-token",
				"admins": [11, 22]
			},
			"credentials": {"backend": "sqlite"}
		}`
		require.NoError(t, os.WriteFile(configPath, []byte(testConfig), 0644))

		cfg, err := NewLoader(configPath).Load()

		require.NoError(t, err)
		assert.Equal(t, "https://my.erigones.com/api", cfg.API.URL)
		assert.Equal(t, 60, cfg.API.TaskTimeout)
		assert.Equal(t, 30, cfg.API.Timeout)
		assert.Equal(t, "123:test-token", cfg.Telegram.BotToken)
		assert.Equal(t, []int64{11, 22}, cfg.Telegram.Admins)
		assert.Equal(t, filepath.Join(tmpDir, "credentials.db"), cfg.Credentials.Path)
	})

	t.Run("environment overrides", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.json")
		require.NoError(t, os.WriteFile(configPath, []byte(`{"api": {"url": "http://file"}}`), 0644))

		t.Setenv("ERIGO_API_URL", "http://env")
		t.Setenv("ERIGO_LOGGING_LEVEL", "debug")

		cfg, err := NewLoader(configPath).Load()

		require.NoError(t, err)
		assert.Equal(t, "http://env", cfg.API.URL)
		assert.Equal(t, "debug", cfg.Logging.Level)
	})

	t.Run("environment without file", func(t *testing.T) {
		t.Setenv("ERIGO_API_URL", "http://env")

		cfg, err := NewLoader(filepath.Join(t.TempDir(), "missing.json")).Load()

		require.NoError(t, err)
		assert.Equal(t, "http://env", cfg.API.URL)
	})

	t.Run("invalid JSON", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "invalid.json")
		require.NoError(t, os.WriteFile(configPath, []byte("invalid json"), 0644))

		_, err := NewLoader(configPath).Load()
		assert.Error(t, err)
	})
}

func TestLoaderSave(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "sub", "erigo.json")
	loader := NewLoader(configPath)

	cfg := DefaultConfig()
	cfg.API.URL = "https://my.erigones.com/api"
	cfg.Telegram.BotToken = "123:abc"
	cfg.Telegram.Admins = []int64{7}

	require.NoError(t, loader.Save(cfg))

	info, err := os.Stat(configPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, cfg.API.URL, loaded.API.URL)
	assert.Equal(t, cfg.Telegram.BotToken, loaded.Telegram.BotToken)
	assert.Equal(t, []int64{7}, loaded.Telegram.Admins)
}

func TestLoad(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "none.json"))
	require.NoError(t, err)
	assert.NotNil(t, cfg)
}
