package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	t.Run("version flag", func(t *testing.T) {
		cmd := GetRootCmd()
		cmd.SetArgs([]string{"--version"})

		output := &bytes.Buffer{}
		cmd.SetOut(output)

		err := cmd.Execute()
		require.NoError(t, err)

		assert.Contains(t, output.String(), "erigo version")
		assert.Contains(t, output.String(), GetVersion())
	})

	t.Run("help flag", func(t *testing.T) {
		cmd := GetRootCmd()
		cmd.SetArgs([]string{"--help"})

		output := &bytes.Buffer{}
		cmd.SetOut(output)

		err := cmd.Execute()
		require.NoError(t, err)

		helpText := output.String()
		assert.Contains(t, helpText, "erigo")
		assert.Contains(t, helpText, "Erigones SDDC API")
	})

	t.Run("global flags", func(t *testing.T) {
		cmd := GetRootCmd()

		configFlag := cmd.PersistentFlags().Lookup("config")
		require.NotNil(t, configFlag)
		assert.Equal(t, "", configFlag.DefValue)

		logLevelFlag := cmd.PersistentFlags().Lookup("log-level")
		require.NotNil(t, logLevelFlag)
		assert.Equal(t, "", logLevelFlag.DefValue)
	})

	t.Run("subcommands", func(t *testing.T) {
		names := map[string]bool{}
		for _, c := range GetRootCmd().Commands() {
			names[c.Name()] = true
		}
		for _, name := range []string{"start", "stop", "status", "configure", "es", "vm"} {
			assert.True(t, names[name], "%s command should exist", name)
		}
	})
}

func TestGetVersion(t *testing.T) {
	version := GetVersion()
	assert.NotEmpty(t, version)
	assert.True(t, strings.HasPrefix(version, "0."))
}

// withConfigFile points the global --config flag at a temporary config file
func withConfigFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "erigo.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	prevFile, prevLevel := cfgFile, logLevel
	cfgFile, logLevel = path, ""
	t.Cleanup(func() { cfgFile, logLevel = prevFile, prevLevel })
	return dir
}

func TestLoadConfig(t *testing.T) {
	t.Run("file values", func(t *testing.T) {
		dir := withConfigFile(t, `{"api": {"url": "https://my.example.com/api/"}}`)

		cfg, err := loadConfig()
		require.NoError(t, err)
		assert.Equal(t, "https://my.example.com/api", cfg.API.URL)
		assert.Equal(t, dir, cfg.DataDir)
		assert.Equal(t, "info", cfg.Logging.Level)
	})

	t.Run("log level override", func(t *testing.T) {
		withConfigFile(t, `{"api": {"url": "https://my.example.com/api"}}`)
		logLevel = "debug"

		cfg, err := loadConfig()
		require.NoError(t, err)
		assert.Equal(t, "debug", cfg.Logging.Level)
	})

	t.Run("invalid log level override", func(t *testing.T) {
		withConfigFile(t, `{}`)
		logLevel = "verbose"

		_, err := loadConfig()
		assert.Error(t, err)
	})
}
