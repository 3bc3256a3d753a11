package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/harun/erigo/internal/metrics"
	"github.com/harun/erigo/internal/tracing"
	"github.com/harun/erigo/pkg/credentials"
	"github.com/harun/erigo/pkg/esapi"
	"github.com/rs/zerolog"
)

// maxAttempts bounds a request to the original call plus one retry after re-login
const maxAttempts = 2

// Request describes a single API call
type Request struct {
	Method   string
	Resource string
	Params   map[string]interface{}

	// OnPending is called with the task ID when the API answers with a pending
	// task, before the final result is awaited. It must not block.
	OnPending func(taskID string)
}

// Options configures a Manager
type Options struct {
	Store   *credentials.Store
	Factory ClientFactory
	Logger  zerolog.Logger
	Metrics *metrics.Metrics
	APIURL  string
}

// Manager executes API calls on behalf of users, owning their sessions
type Manager struct {
	store    *credentials.Store
	registry *Registry
	logger   zerolog.Logger
	metrics  *metrics.Metrics
	apiURL   string

	requestID atomic.Uint64
}

// NewManager creates a manager
func NewManager(opts Options) (*Manager, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("credential store is required")
	}
	if opts.Factory == nil {
		return nil, fmt.Errorf("client factory is required")
	}

	logger := opts.Logger.With().Str("component", "api").Logger()

	return &Manager{
		store:    opts.Store,
		registry: NewRegistry(opts.Store, opts.Factory, opts.Logger, opts.Metrics),
		logger:   logger,
		metrics:  opts.Metrics,
		apiURL:   opts.APIURL,
	}, nil
}

// Registry returns the session registry
func (m *Manager) Registry() *Registry {
	return m.registry
}

// APIURL returns the API base URL used in user-facing messages
func (m *Manager) APIURL() string {
	return m.apiURL
}

// Execute performs req for user. The response content is resolved before
// returning, so a nil error means the call succeeded. Failures are *APIError,
// or ErrSessionUnavailable when the user never logged in.
func (m *Manager) Execute(ctx context.Context, user string, req Request) (*esapi.Response, error) {
	if err := validateUser(user); err != nil {
		return nil, err
	}
	ctx = tracing.WithUser(ctx, user)
	logger := tracing.LoggerFromContext(ctx, m.logger)

	if _, ok := m.store.Get(user); !ok {
		logger.Error().Msg("API is not available for user")
		return nil, unavailable(user)
	}

	unlock := m.registry.lock(user)
	defer unlock()

	authenticated := false
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		cred, ok := m.store.Get(user)
		if !ok {
			return nil, unavailable(user)
		}

		sess, created, err := m.registry.getOrCreateLocked(ctx, user)
		if err != nil {
			return nil, err
		}
		if created {
			authenticated = true
		}

		resp, err := m.call(ctx, sess, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		var remote *esapi.APIError
		if errors.As(err, &remote) && remote.NoCredentials() && cred.IsPassword() && !authenticated {
			authenticated = true
			logger.Warn().Str("session_id", sess.ID).Msg("Performing user re-login to API")

			_, loginErr := sess.Client.Login(ctx, cred.Username, cred.Secret)
			m.metrics.RecordRelogin(loginErr == nil)
			if loginErr == nil {
				continue
			}
			logger.Error().Err(loginErr).Msg("User re-login failed")
		}

		return nil, toAPIError(err)
	}

	return nil, toAPIError(lastErr)
}

// call issues one API request and resolves its content
func (m *Manager) call(ctx context.Context, sess *Session, req Request) (*esapi.Response, error) {
	id := m.requestID.Add(1)
	ctx = tracing.WithRequestID(ctx, fmt.Sprintf("%05d", id))
	ctx = tracing.WithSessionID(ctx, sess.ID)
	logger := tracing.LoggerFromContext(ctx, m.logger)

	method := strings.ToUpper(req.Method)
	start := time.Now()
	status := 0

	logger.Info().
		Str("method", method).
		Str("resource", req.Resource).
		Msg("User is calling API function")

	defer func() {
		elapsed := time.Since(start)
		m.metrics.RecordRequest(method, status, elapsed)
		logger.Info().
			Str("method", method).
			Str("resource", req.Resource).
			Int("status", status).
			Dur("elapsed", elapsed).
			Msg("API function finished")
	}()

	resp, err := sess.Client.Request(ctx, method, req.Resource, req.Params)
	if err != nil {
		return nil, err
	}
	status = resp.StatusCode

	if resp.Stream {
		m.metrics.RecordPendingTask()
		logger.Info().Str("task_id", resp.TaskID).Msg("Waiting for pending task")
		if req.OnPending != nil {
			req.OnPending(resp.TaskID)
		}
	}

	if _, err := resp.Content(ctx); err != nil {
		var remote *esapi.APIError
		if errors.As(err, &remote) {
			status = remote.StatusCode
		}
		return nil, err
	}

	return resp, nil
}

// Login verifies cred against the API and, on success, stores it and replaces
// the user's session.
func (m *Manager) Login(ctx context.Context, user string, cred credentials.Credential) error {
	if err := validateUser(user); err != nil {
		return err
	}
	if err := cred.Validate(); err != nil {
		return &AuthenticationError{User: user, URL: m.apiURL, Err: err}
	}
	ctx = tracing.WithUser(ctx, user)

	unlock := m.registry.lock(user)
	defer unlock()

	sess := m.registry.newSession(ctx, user, cred)

	resp, err := sess.Client.Request(ctx, http.MethodGet, "/dc", nil)
	if err == nil && !resp.OK() {
		_, err = resp.Content(ctx)
		if err == nil {
			err = fmt.Errorf("unexpected status %d", resp.StatusCode)
		}
	}
	if err != nil {
		return &AuthenticationError{User: user, URL: m.apiURL, Err: err}
	}

	m.registry.put(user, sess)
	m.store.Put(user, cred)

	logger := tracing.LoggerFromContext(ctx, m.logger)
	logger.Info().Str("credential", cred.String()).Msg("User signed in and credentials saved")
	return nil
}

// Logout removes the user's credential and session. For password credentials
// with a live session the API logout is attempted; its failure is only logged.
// The boolean reports whether the API logout was attempted.
func (m *Manager) Logout(ctx context.Context, user string) (bool, error) {
	if err := validateUser(user); err != nil {
		return false, err
	}
	ctx = tracing.WithUser(ctx, user)
	logger := tracing.LoggerFromContext(ctx, m.logger)

	unlock := m.registry.lock(user)
	defer unlock()

	if _, ok := m.store.Get(user); !ok {
		return false, unavailable(user)
	}

	sess, hadSession := m.registry.remove(user)
	cred, _ := m.store.Remove(user)

	logger.Debug().Msg("Signing user out of API")

	if !hadSession || !cred.IsPassword() {
		logger.Info().Msg("User is using api_key or was never logged in - skipping logout")
		return false, nil
	}

	if _, err := sess.Client.Logout(ctx); err != nil {
		logger.Warn().Err(err).Msg("User logout problem")
	} else {
		logger.Info().Msg("User logout successful")
	}
	return true, nil
}

func toAPIError(err error) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return err
	}
	var remote *esapi.APIError
	if errors.As(err, &remote) {
		return &APIError{Status: remote.StatusCode, Detail: remote.Detail, Err: err}
	}
	return &APIError{Detail: err.Error(), Err: err}
}
