package command

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/harun/erigo/pkg/credentials"
	"github.com/harun/erigo/pkg/esapi"
	"github.com/harun/erigo/pkg/params"
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

// newTestHandler starts a fake API accepting api_key "key" and returns a handler bound to it
func newTestHandler(t *testing.T, api http.HandlerFunc) *Handler {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(esapi.APIKeyHeader) != "key" {
			reply(w, http.StatusForbidden, map[string]interface{}{"detail": esapi.DetailNoCredentials})
			return
		}
		if r.URL.Path == "/dc" {
			reply(w, http.StatusOK, map[string]interface{}{"status": "SUCCESS", "result": []string{"main"}})
			return
		}
		api(w, r)
	}))
	t.Cleanup(srv.Close)

	store, err := credentials.NewStore(credentials.NewMemoryBackend(), zerolog.Nop())
	require.NoError(t, err)
	m, err := session.NewManager(session.Options{
		Store:   store,
		Factory: session.NewClientFactory(srv.URL, esapi.WithTaskPolling(5*time.Millisecond, time.Second)),
		Logger:  zerolog.Nop(),
		APIURL:  srv.URL,
	})
	require.NoError(t, err)

	return New(m, zerolog.Nop())
}

func TestSpecs(t *testing.T) {
	h := newTestHandler(t, func(w http.ResponseWriter, r *http.Request) {})

	var names []string
	admin := map[string]bool{}
	for _, s := range h.Specs() {
		names = append(names, s.Name)
		admin[s.Name] = s.Admin
		assert.NotNil(t, s.Run)
	}
	assert.Equal(t, []string{ES, Login, Logout, VM}, names)
	assert.True(t, admin[ES])
	assert.True(t, admin[VM])
	assert.False(t, admin[Login])
}

func TestLoginLogout(t *testing.T) {
	ctx := context.Background()
	h := newTestHandler(t, func(w http.ResponseWriter, r *http.Request) {})

	_, err := h.Login(ctx, Call{User: "tg:1"})
	var usage *UsageError
	assert.True(t, errors.As(err, &usage))

	out, err := h.Login(ctx, Call{User: "tg:1", Args: []string{"key"}})
	require.NoError(t, err)
	assert.Contains(t, out, "Successfully signed in")
	assert.Contains(t, out, "(tg:1)")

	out, err = h.Logout(ctx, Call{User: "tg:1"})
	require.NoError(t, err)
	assert.Contains(t, out, "Successfully signed out")

	_, err = h.Logout(ctx, Call{User: "tg:1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "user was never logged in")
}

func TestLoginRejected(t *testing.T) {
	h := newTestHandler(t, func(w http.ResponseWriter, r *http.Request) {})

	_, err := h.Login(context.Background(), Call{User: "tg:1", Args: []string{"wrong"}})
	require.Error(t, err)
	assert.Contains(t, Message(err, h.manager.APIURL()), "User tg:1 authentication against Erigones SDDC API")
}

func TestES(t *testing.T) {
	ctx := context.Background()

	t.Run("argument errors before network", func(t *testing.T) {
		h := newTestHandler(t, func(w http.ResponseWriter, r *http.Request) {
			t.Fatalf("unexpected request %s", r.URL.Path)
		})

		_, err := h.ES(ctx, Call{User: "tg:1", Args: []string{"get"}})
		var usage *UsageError
		assert.True(t, errors.As(err, &usage))

		_, err = h.ES(ctx, Call{User: "tg:1", Args: []string{"fetch", "/vm"}})
		var actionErr *InvalidActionError
		require.True(t, errors.As(err, &actionErr))
		assert.Equal(t, "Invalid action or method: fetch", err.Error())

		_, err = h.ES(ctx, Call{User: "tg:1", Args: []string{"get", "vm"}})
		var resourceErr *InvalidResourceError
		require.True(t, errors.As(err, &resourceErr))

		_, err = h.ES(ctx, Call{User: "tg:1", Args: []string{"get", "/vm", "-a", "json::{bad"}})
		var paramErr *params.ParameterError
		assert.True(t, errors.As(err, &paramErr))
	})

	t.Run("not logged in", func(t *testing.T) {
		h := newTestHandler(t, func(w http.ResponseWriter, r *http.Request) {})
		_, err := h.ES(ctx, Call{User: "tg:1", Args: []string{"get", "/vm"}})
		assert.ErrorIs(t, err, session.ErrSessionUnavailable)
	})

	t.Run("renders result", func(t *testing.T) {
		h := newTestHandler(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPut, r.Method)
			var body map[string]interface{}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, map[string]interface{}{"alias": "web", "ram": []interface{}{1.0}, "dns": false}, body)
			reply(w, http.StatusOK, map[string]interface{}{"status": "SUCCESS", "result": map[string]interface{}{"alias": "web"}, "dc": "main"})
		})
		_, err := h.Login(ctx, Call{User: "tg:1", Args: []string{"key"}})
		require.NoError(t, err)

		out, err := h.ES(ctx, Call{User: "tg:1", Args: []string{"SET", "/vm/web01", "-alias", "web", "-ram", "json::[1]", "-dns", "False"}})
		require.NoError(t, err)
		assert.Equal(t, `{
    "action": "SET",
    "resource": "/vm/web01",
    "dc": "main",
    "task_id": null,
    "status": 200,
    "result": {
        "alias": "web"
    }
}`, out)
	})

	t.Run("pending task notifies", func(t *testing.T) {
		h := newTestHandler(t, func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/vm/web01/status/start":
				reply(w, http.StatusCreated, map[string]interface{}{"task_id": "1e1-6f8", "status": "PENDING"})
			case "/task/1e1-6f8/status/":
				reply(w, http.StatusOK, map[string]interface{}{"status": "SUCCESS", "result": "started"})
			}
		})
		_, err := h.Login(ctx, Call{User: "tg:1", Args: []string{"key"}})
		require.NoError(t, err)

		var notes []string
		out, err := h.ES(ctx, Call{
			User:   "tg:1",
			Args:   []string{"set", "/vm/web01/status/start"},
			Notify: func(text string) { notes = append(notes, text) },
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"Waiting for pending task 1e1-6f8 ..."}, notes)
		assert.Contains(t, out, `"task_id": "1e1-6f8"`)
		assert.Contains(t, out, `"result": "started"`)
	})

	t.Run("api error", func(t *testing.T) {
		h := newTestHandler(t, func(w http.ResponseWriter, r *http.Request) {
			reply(w, http.StatusNotFound, map[string]interface{}{"detail": "Not found"})
		})
		_, err := h.Login(ctx, Call{User: "tg:1", Args: []string{"key"}})
		require.NoError(t, err)

		_, err = h.ES(ctx, Call{User: "tg:1", Args: []string{"get", "/nope"}})
		require.Error(t, err)
		assert.Equal(t, "APIError 404: Not found", Message(err, ""))
	})
}

func TestVM(t *testing.T) {
	ctx := context.Background()
	h := newTestHandler(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/vm", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("full"))
		assert.Equal(t, "admin", r.URL.Query().Get("dc"))
		reply(w, http.StatusOK, map[string]interface{}{
			"status": "SUCCESS",
			"dc":     "admin",
			"result": []map[string]interface{}{
				{"hostname": "web01.example.com", "alias": "web01", "status": "running"},
				{"hostname": "db01.example.com", "alias": "db01", "status": "stopped"},
			},
		})
	})
	_, err := h.Login(ctx, Call{User: "tg:1", Args: []string{"key"}})
	require.NoError(t, err)

	out, err := h.VM(ctx, Call{User: "tg:1", Args: []string{"admin"}})
	require.NoError(t, err)
	assert.Equal(t, "web01.example.com (web01)\trunning\ndb01.example.com (db01)\tstopped\n\n2 servers are shown in admin datacenter.", out)

	_, err = h.VM(ctx, Call{User: "tg:1", Args: []string{"a", "b"}})
	var usage *UsageError
	assert.True(t, errors.As(err, &usage))
}
