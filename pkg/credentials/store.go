package credentials

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Credential is either an api_key or a username/secret pair
type Credential struct {
	Username string `json:"username,omitempty"`
	Secret   string `json:"secret,omitempty"`
	APIKey   string `json:"api_key,omitempty"`
}

// NewAPIKey returns an api_key credential
func NewAPIKey(apiKey string) Credential {
	return Credential{APIKey: apiKey}
}

// NewPassword returns a username/secret credential
func NewPassword(username, secret string) Credential {
	return Credential{Username: username, Secret: secret}
}

// IsPassword reports whether the credential is a username/secret pair
func (c Credential) IsPassword() bool {
	return c.Secret != ""
}

// Validate checks that exactly one credential shape is set
func (c Credential) Validate() error {
	if c.IsPassword() {
		if strings.TrimSpace(c.Username) == "" {
			return fmt.Errorf("username is required")
		}
		if c.APIKey != "" {
			return fmt.Errorf("credential cannot have both api_key and secret")
		}
		return nil
	}
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("api_key or username/secret is required")
	}
	return nil
}

// String never prints secrets
func (c Credential) String() string {
	if c.IsPassword() {
		return fmt.Sprintf("password(%s)", c.Username)
	}
	return "api_key"
}

// Backend persists the full credential map
type Backend interface {
	Save(creds map[string]Credential) error
	Load() (map[string]Credential, error)
}

// Store keeps one credential per user and persists every mutation through a Backend
type Store struct {
	// saveMu orders snapshot+Save pairs so the last mutation is the last write
	saveMu  sync.Mutex
	mu      sync.RWMutex
	creds   map[string]Credential
	backend Backend
	logger  zerolog.Logger
}

// NewStore loads the persisted credentials once and returns the store
func NewStore(backend Backend, logger zerolog.Logger) (*Store, error) {
	if backend == nil {
		return nil, fmt.Errorf("credential backend is required")
	}

	creds, err := backend.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load credentials: %w", err)
	}
	if creds == nil {
		creds = make(map[string]Credential)
	}

	s := &Store{
		creds:   creds,
		backend: backend,
		logger:  logger.With().Str("component", "credentials").Logger(),
	}

	s.logger.Info().Int("users", len(creds)).Msg("Credentials loaded")

	return s, nil
}

// Put stores the credential for user and persists the change
func (s *Store) Put(user string, cred Credential) {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.Lock()
	s.creds[user] = cred
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	s.persist(snapshot)
}

// Get returns the credential for user
func (s *Store) Get(user string) (Credential, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cred, ok := s.creds[user]
	return cred, ok
}

// Remove deletes the credential for user, persists the change and returns what was removed
func (s *Store) Remove(user string) (Credential, bool) {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.Lock()
	cred, ok := s.creds[user]
	if !ok {
		s.mu.Unlock()
		return Credential{}, false
	}
	delete(s.creds, user)
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	s.persist(snapshot)
	return cred, true
}

// Users returns the users with stored credentials in sorted order
func (s *Store) Users() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	users := make([]string, 0, len(s.creds))
	for u := range s.creds {
		users = append(users, u)
	}
	sort.Strings(users)
	return users
}

func (s *Store) snapshotLocked() map[string]Credential {
	out := make(map[string]Credential, len(s.creds))
	for k, v := range s.creds {
		out[k] = v
	}
	return out
}

// persist saves a snapshot; failures are logged and never reach the caller
func (s *Store) persist(snapshot map[string]Credential) {
	if err := s.backend.Save(snapshot); err != nil {
		s.logger.Error().Err(err).Int("users", len(snapshot)).Msg("Failed to persist credentials")
		return
	}
	s.logger.Debug().Int("users", len(snapshot)).Msg("Credentials persisted")
}

// MemoryBackend keeps the credential map in process memory
type MemoryBackend struct {
	mu    sync.Mutex
	creds map[string]Credential
	saves int
}

// NewMemoryBackend creates an empty in-memory backend
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{creds: make(map[string]Credential)}
}

// Save replaces the stored map
func (b *MemoryBackend) Save(creds map[string]Credential) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.creds = copyMap(creds)
	b.saves++
	return nil
}

// Load returns a copy of the stored map
func (b *MemoryBackend) Load() (map[string]Credential, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return copyMap(b.creds), nil
}

// Saves returns how many times Save was called
func (b *MemoryBackend) Saves() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.saves
}

func copyMap(in map[string]Credential) map[string]Credential {
	out := make(map[string]Credential, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
