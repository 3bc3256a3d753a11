package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/harun/erigo/internal/metrics"
	"github.com/harun/erigo/internal/tracing"
	"github.com/harun/erigo/pkg/credentials"
	"github.com/harun/erigo/pkg/esapi"
	"github.com/rs/zerolog"
)

// Client is the per-session API handle
type Client interface {
	Login(ctx context.Context, username, password string) (*esapi.Response, error)
	Logout(ctx context.Context) (*esapi.Response, error)
	Request(ctx context.Context, method, resource string, params map[string]interface{}) (*esapi.Response, error)
	IsAuthenticated() bool
}

// ClientFactory builds an unauthenticated client for a credential. API key
// credentials must be bound to the client here.
type ClientFactory func(cred credentials.Credential) Client

// NewClientFactory returns a factory creating esapi clients for apiURL
func NewClientFactory(apiURL string, opts ...esapi.Option) ClientFactory {
	return func(cred credentials.Credential) Client {
		clientOpts := append([]esapi.Option{}, opts...)
		if !cred.IsPassword() {
			clientOpts = append(clientOpts, esapi.WithAPIKey(cred.APIKey))
		}
		return esapi.New(apiURL, clientOpts...)
	}
}

// Session is a user's live API handle
type Session struct {
	ID        string
	User      string
	Client    Client
	CreatedAt time.Time
}

// Authenticated reports whether the client holds valid-looking credentials
func (s *Session) Authenticated() bool {
	return s.Client.IsAuthenticated()
}

// Registry caches one Session per user and creates them lazily from stored credentials
type Registry struct {
	store   *credentials.Store
	factory ClientFactory
	logger  zerolog.Logger
	metrics *metrics.Metrics

	mu       sync.Mutex
	sessions map[string]*Session
	locks    map[string]*userLock
}

// userLock is a per-user mutex counted by its holders and waiters
type userLock struct {
	mu   sync.Mutex
	refs int
}

// NewRegistry creates an empty registry
func NewRegistry(store *credentials.Store, factory ClientFactory, logger zerolog.Logger, m *metrics.Metrics) *Registry {
	return &Registry{
		store:    store,
		factory:  factory,
		logger:   logger.With().Str("component", "session").Logger(),
		metrics:  m,
		sessions: make(map[string]*Session),
		locks:    make(map[string]*userLock),
	}
}

// validateUser rejects identities that cannot be stored or logged safely
func validateUser(user string) error {
	if strings.TrimSpace(user) == "" {
		return fmt.Errorf("user identity cannot be empty")
	}
	if strings.Contains(user, "\x00") {
		return fmt.Errorf("user identity cannot contain null bytes")
	}
	return nil
}

// lock acquires the user's lock and returns its release function. The entry is
// dropped once no caller holds or waits for it, so the map only tracks busy users.
func (r *Registry) lock(user string) func() {
	r.mu.Lock()
	l, exists := r.locks[user]
	if !exists {
		l = &userLock{}
		r.locks[user] = l
	}
	l.refs++
	r.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()

		r.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(r.locks, user)
		}
		r.mu.Unlock()
	}
}

// lockCount returns how many users currently have a lock entry
func (r *Registry) lockCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.locks)
}

// GetOrCreate returns the user's session, creating it from the stored credential if needed
func (r *Registry) GetOrCreate(ctx context.Context, user string) (*Session, error) {
	if err := validateUser(user); err != nil {
		return nil, err
	}

	unlock := r.lock(user)
	defer unlock()

	s, _, err := r.getOrCreateLocked(ctx, user)
	return s, err
}

// Get returns the cached session without creating one
func (r *Registry) Get(user string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[user]
	return s, ok
}

// Len returns the number of cached sessions
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// getOrCreateLocked must be called with the user's lock held. The boolean
// reports whether the session was created, and thus authenticated, by this call.
func (r *Registry) getOrCreateLocked(ctx context.Context, user string) (*Session, bool, error) {
	if s, ok := r.Get(user); ok {
		return s, false, nil
	}

	cred, ok := r.store.Get(user)
	if !ok {
		return nil, false, unavailable(user)
	}

	s := r.newSession(ctx, user, cred)
	r.put(user, s)
	return s, true, nil
}

// newSession builds a client for cred and signs in when it is a password credential.
// A failed login still yields a session so the first request reports the real error.
func (r *Registry) newSession(ctx context.Context, user string, cred credentials.Credential) *Session {
	client := r.factory(cred)
	s := &Session{
		ID:        uuid.New().String(),
		User:      user,
		Client:    client,
		CreatedAt: time.Now(),
	}

	logger := tracing.LoggerFromContext(tracing.WithSessionID(ctx, s.ID), r.logger).With().Str("user", user).Logger()

	var loginErr error
	if cred.IsPassword() {
		logger.Debug().Msg("Signing in to API using user credentials")
		_, loginErr = client.Login(ctx, cred.Username, cred.Secret)
	} else {
		logger.Debug().Msg("Using user api_key - skipping API login")
	}

	if s.Authenticated() {
		logger.Info().Str("api", fmt.Sprint(client)).Msg("User login successful")
	} else {
		logger.Error().Err(loginErr).Str("api", fmt.Sprint(client)).Msg("User login problem")
	}

	return s
}

// put caches s for user, replacing any previous session
func (r *Registry) put(user string, s *Session) {
	r.mu.Lock()
	r.sessions[user] = s
	active := len(r.sessions)
	r.mu.Unlock()

	r.metrics.RecordSessionCreated(active)
}

// remove drops the user's session
func (r *Registry) remove(user string) (*Session, bool) {
	r.mu.Lock()
	s, ok := r.sessions[user]
	delete(r.sessions, user)
	active := len(r.sessions)
	r.mu.Unlock()

	r.metrics.SetSessionsActive(active)
	return s, ok
}
