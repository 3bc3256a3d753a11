package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("console output", func(t *testing.T) {
		logger, err := New(Config{Level: "info", Console: true})
		require.NoError(t, err)
		assert.Nil(t, logger.closer)
		assert.NoError(t, logger.Close())
	})

	t.Run("plain file output", func(t *testing.T) {
		logFile := filepath.Join(t.TempDir(), "erigo.log")

		logger, err := New(Config{Level: "debug", File: logFile})
		require.NoError(t, err)
		assert.IsType(t, &os.File{}, logger.closer)

		logger.Info().Msg("test message")
		require.NoError(t, logger.Close())

		data, err := os.ReadFile(logFile)
		require.NoError(t, err)
		assert.Contains(t, string(data), "test message")
	})

	t.Run("rotating file output", func(t *testing.T) {
		logFile := filepath.Join(t.TempDir(), "erigo.log")

		logger, err := New(Config{Level: "info", File: logFile, MaxSize: 1})
		require.NoError(t, err)
		assert.IsType(t, &RotatingWriter{}, logger.closer)
		require.NoError(t, logger.Close())
	})

	t.Run("redaction masks credentials", func(t *testing.T) {
		logFile := filepath.Join(t.TempDir(), "erigo.log")

		logger, err := New(Config{Level: "info", File: logFile, Redaction: true})
		require.NoError(t, err)
		require.NotNil(t, logger.redactor)

		logger.Info().Str("secret", "hunter2").Str("api_key", "abc123").Msg("signing in")
		require.NoError(t, logger.Close())

		data, err := os.ReadFile(logFile)
		require.NoError(t, err)
		assert.NotContains(t, string(data), "hunter2")
		assert.NotContains(t, string(data), "abc123")
		assert.Contains(t, string(data), "signing in")
	})

	t.Run("invalid level falls back to info", func(t *testing.T) {
		logger, err := New(Config{Level: "verbose"})
		require.NoError(t, err)
		assert.Equal(t, zerolog.InfoLevel, logger.GetZerolog().GetLevel())
	})
}

func TestLoggerMethods(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "erigo.log")

	logger, err := New(Config{Level: "debug", File: logFile})
	require.NoError(t, err)
	defer logger.Close()

	logger.Debug().Msg("debug message")
	logger.Info().Msg("info message")
	logger.Warn().Msg("warn message")
	logger.Error().Msg("error message")

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	for _, msg := range []string{"debug message", "info message", "warn message", "error message"} {
		assert.Contains(t, string(data), msg)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "info", cfg.Level)
	assert.True(t, cfg.Console)
	assert.True(t, cfg.Pretty)
	assert.True(t, cfg.Redaction)
	assert.Equal(t, 100, cfg.MaxSize)
	assert.Equal(t, 7, cfg.MaxAge)
	assert.True(t, cfg.Compress)
}

func TestLoggerWith(t *testing.T) {
	logger := Nop()
	child := logger.With().Str("component", "test").Logger()
	assert.Equal(t, zerolog.Disabled, child.GetLevel())
	assert.NoError(t, logger.Close())
}
