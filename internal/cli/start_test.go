package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartCommand(t *testing.T) {
	t.Run("help text", func(t *testing.T) {
		cmd := GetRootCmd()
		cmd.SetArgs([]string{"start", "--help"})

		output := &bytes.Buffer{}
		cmd.SetOut(output)

		err := cmd.Execute()
		require.NoError(t, err)

		assert.Contains(t, output.String(), "Start the erigo Telegram bot")
	})

	t.Run("missing bot token", func(t *testing.T) {
		withConfigFile(t, `{"api": {"url": "https://my.example.com/api"}}`)

		err := runStart(startCmd, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "telegram.bot_token")
	})

	t.Run("missing api url", func(t *testing.T) {
		withConfigFile(t, `{"telegram": {"bot_token": "123:abc"}}`)

		err := runStart(startCmd, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "api.url")
	})

	t.Run("already running", func(t *testing.T) {
		dir := withConfigFile(t, `{"api": {"url": "https://my.example.com/api"}, "telegram": {"bot_token": "123:abc"}}`)
		require.NoError(t, writePIDFile(filepath.Join(dir, "erigo.pid")))

		err := runStart(startCmd, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "already running")
	})
}

func TestGetPIDFilePath(t *testing.T) {
	assert.Equal(t, filepath.Join("/var/lib/erigo", "erigo.pid"), getPIDFilePath("/var/lib/erigo"))

	path := getPIDFilePath("")
	assert.NotEmpty(t, path)
	assert.Contains(t, path, "erigo.pid")
}

func TestIsRunning(t *testing.T) {
	t.Run("no pid file", func(t *testing.T) {
		tmpDir := t.TempDir()
		pidFile := filepath.Join(tmpDir, "nonexistent.pid")

		assert.False(t, isRunning(pidFile))
	})

	t.Run("invalid pid file", func(t *testing.T) {
		tmpDir := t.TempDir()
		pidFile := filepath.Join(tmpDir, "invalid.pid")

		err := os.WriteFile(pidFile, []byte("invalid"), 0644)
		require.NoError(t, err)

		assert.False(t, isRunning(pidFile))
	})

	t.Run("current process", func(t *testing.T) {
		pidFile := filepath.Join(t.TempDir(), "erigo.pid")
		require.NoError(t, writePIDFile(pidFile))

		assert.True(t, isRunning(pidFile))

		pid, err := readPID(pidFile)
		require.NoError(t, err)
		assert.Equal(t, os.Getpid(), pid)
	})
}

func TestWritePIDFile(t *testing.T) {
	pidFile := filepath.Join(t.TempDir(), "nested", "erigo.pid")
	require.NoError(t, writePIDFile(pidFile))

	data, err := os.ReadFile(pidFile)
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid()), string(data))

	info, err := os.Stat(pidFile)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}
