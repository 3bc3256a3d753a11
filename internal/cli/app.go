package cli

import (
	"fmt"
	"io"
	"net/http"

	"github.com/harun/erigo/internal/config"
	"github.com/harun/erigo/internal/metrics"
	"github.com/harun/erigo/pkg/command"
	"github.com/harun/erigo/pkg/credentials"
	"github.com/harun/erigo/pkg/esapi"
	"github.com/harun/erigo/pkg/session"
	"github.com/rs/zerolog"
)

// app wires the credential store, session manager and command handlers
type app struct {
	cfg      *config.Config
	metrics  *metrics.Metrics
	backend  credentials.Backend
	store    *credentials.Store
	manager  *session.Manager
	commands *command.Handler
}

// newApp builds the application on the given credentials backend
func newApp(cfg *config.Config, backend credentials.Backend, logger zerolog.Logger) (*app, error) {
	m := metrics.NewMetrics()

	store, err := credentials.NewStore(backend, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to load credentials: %w", err)
	}

	factory := session.NewClientFactory(cfg.API.URL,
		esapi.WithHTTPClient(&http.Client{Timeout: cfg.API.RequestTimeout()}),
		esapi.WithTaskPolling(cfg.API.TaskPollInterval(), cfg.API.TaskWait()),
	)

	manager, err := session.NewManager(session.Options{
		Store:   store,
		Factory: factory,
		Logger:  logger,
		Metrics: m,
		APIURL:  cfg.API.URL,
	})
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:      cfg,
		metrics:  m,
		backend:  backend,
		store:    store,
		manager:  manager,
		commands: command.New(manager, logger),
	}, nil
}

// openApp builds the application on the configured credentials backend
func openApp(cfg *config.Config, logger zerolog.Logger) (*app, error) {
	backend, err := credentials.OpenBackend(cfg.Credentials.Backend, cfg.Credentials.Path)
	if err != nil {
		return nil, err
	}

	a, err := newApp(cfg, backend, logger)
	if err != nil {
		closeBackend(backend)
		return nil, err
	}
	return a, nil
}

// Close releases the credentials backend
func (a *app) Close() {
	closeBackend(a.backend)
}

func closeBackend(b credentials.Backend) {
	if c, ok := b.(io.Closer); ok {
		_ = c.Close()
	}
}
