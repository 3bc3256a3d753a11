package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/harun/erigo/internal/config"
	"github.com/harun/erigo/pkg/credentials"
	"github.com/harun/erigo/pkg/esapi"
	"github.com/harun/erigo/pkg/session"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reply(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// newTestConfig starts a fake API accepting api_key "key" and returns a config pointing at it
func newTestConfig(t *testing.T) *config.Config {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(esapi.APIKeyHeader) != "key" {
			reply(w, http.StatusForbidden, map[string]interface{}{"detail": esapi.DetailNoCredentials})
			return
		}
		switch r.URL.Path {
		case "/dc":
			reply(w, http.StatusOK, map[string]interface{}{"status": "SUCCESS", "result": []string{"main"}})
		case "/vm":
			reply(w, http.StatusOK, map[string]interface{}{
				"status": "SUCCESS",
				"dc":     "main",
				"result": []map[string]interface{}{
					{"hostname": "web01.example.com", "alias": "web01", "status": "running"},
				},
			})
		default:
			reply(w, http.StatusNotFound, map[string]interface{}{"detail": "Not found"})
		}
	}))
	t.Cleanup(srv.Close)

	cfg := config.DefaultConfig()
	cfg.API.URL = srv.URL
	cfg.API.TaskPollIntervalMs = 5
	cfg.API.TaskTimeout = 1
	cfg.DataDir = t.TempDir()
	return cfg
}

func TestCallOnce(t *testing.T) {
	ctx := context.Background()

	t.Run("api key", func(t *testing.T) {
		cfg := newTestConfig(t)
		out, err := callOnce(ctx, cfg, zerolog.Nop(), callOptions{apiKey: "key"}, "es", []string{"get", "/dc"}, &bytes.Buffer{})
		require.NoError(t, err)

		var got map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(out), &got))
		assert.Equal(t, "get", got["action"])
		assert.Equal(t, "/dc", got["resource"])
		assert.Equal(t, float64(200), got["status"])
		assert.Equal(t, []interface{}{"main"}, got["result"])
	})

	t.Run("vm", func(t *testing.T) {
		cfg := newTestConfig(t)
		out, err := callOnce(ctx, cfg, zerolog.Nop(), callOptions{apiKey: "key"}, "vm", nil, &bytes.Buffer{})
		require.NoError(t, err)
		assert.Equal(t, "web01.example.com (web01)\trunning\n\n1 servers are shown in main datacenter.", out)
	})

	t.Run("rejected credentials", func(t *testing.T) {
		cfg := newTestConfig(t)
		_, err := callOnce(ctx, cfg, zerolog.Nop(), callOptions{apiKey: "wrong"}, "es", []string{"get", "/dc"}, &bytes.Buffer{})
		var authErr *session.AuthenticationError
		require.ErrorAs(t, err, &authErr)
		assert.Equal(t, cliUser, authErr.User)
	})

	t.Run("no credentials", func(t *testing.T) {
		cfg := newTestConfig(t)
		_, err := callOnce(ctx, cfg, zerolog.Nop(), callOptions{}, "es", []string{"get", "/dc"}, &bytes.Buffer{})
		assert.ErrorContains(t, err, "credentials required")
	})

	t.Run("stored credentials", func(t *testing.T) {
		cfg := newTestConfig(t)
		cfg.Credentials.Backend = credentials.BackendFile
		cfg.Credentials.Path = filepath.Join(cfg.DataDir, "credentials.json")

		backend, err := credentials.NewFileBackend(cfg.Credentials.Path)
		require.NoError(t, err)
		require.NoError(t, backend.Save(map[string]credentials.Credential{
			"tg:42": credentials.NewAPIKey("key"),
		}))

		out, err := callOnce(ctx, cfg, zerolog.Nop(), callOptions{as: "tg:42"}, "es", []string{"get", "/dc"}, &bytes.Buffer{})
		require.NoError(t, err)
		assert.Contains(t, out, `"main"`)

		_, err = callOnce(ctx, cfg, zerolog.Nop(), callOptions{as: "tg:7"}, "es", []string{"get", "/dc"}, &bytes.Buffer{})
		assert.ErrorIs(t, err, session.ErrSessionUnavailable)
	})
}

func TestInlineCredential(t *testing.T) {
	cred, err := inlineCredential(callOptions{apiKey: "key"})
	require.NoError(t, err)
	assert.Equal(t, credentials.NewAPIKey("key"), cred)

	cred, err = inlineCredential(callOptions{username: "admin", password: "pw"})
	require.NoError(t, err)
	assert.True(t, cred.IsPassword())

	_, err = inlineCredential(callOptions{})
	assert.Error(t, err)
}
