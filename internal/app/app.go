// Package app wires the token store, transport, refresh coordinator and
// session manager into one App.
package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/felixgeelhaar/devquote/internal/api"
	"github.com/felixgeelhaar/devquote/internal/config"
	"github.com/felixgeelhaar/devquote/internal/errors"
	"github.com/felixgeelhaar/devquote/internal/log"
	"github.com/felixgeelhaar/devquote/internal/metrics"
	"github.com/felixgeelhaar/devquote/internal/session"
	"github.com/felixgeelhaar/devquote/internal/tokenstore"
)

// Options configures New.
type Options struct {
	Config  *config.Config
	Logger  *log.Logger
	Metrics *metrics.Metrics

	// Backend replaces the configured storage backend.
	Backend tokenstore.Backend

	// HTTPClient replaces the default HTTP client.
	HTTPClient *http.Client

	// UserAgent overrides api.user_agent, e.g. to add the build version.
	UserAgent string
}

// App is the composed client.
type App struct {
	Config      *config.Config
	Logger      *log.Logger
	Store       *tokenstore.Store
	Client      *api.Client
	Coordinator *session.Coordinator
	Auth        *api.AuthService
	Session     *session.Manager
	Projects    *api.ProjectService
	Tasks       *api.TaskService
	Requesters  *api.RequesterService
	Deliveries  *api.DeliveryService
}

// New validates the configuration and builds the App. The session is not
// restored; call Session.LoadStoredAuth when needed.
func New(ctx context.Context, opts Options) (*App, error) {
	cfg := opts.Config
	if cfg == nil {
		return nil, errors.NewConfigInvalidError("no configuration loaded")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := log.OrDefault(opts.Logger)

	backend := opts.Backend
	if backend == nil {
		var err error
		backend, err = OpenBackend(ctx, cfg.Storage, logger)
		if err != nil {
			return nil, err
		}
	}
	store := tokenstore.New(backend, logger, opts.Metrics)

	ua := opts.UserAgent
	if ua == "" {
		ua = cfg.API.UserAgent
	}
	client, err := api.NewClient(api.Config{
		BaseURL:    cfg.API.BaseURL,
		Timeout:    cfg.API.Timeout,
		UserAgent:  ua,
		HTTPClient: opts.HTTPClient,
		Tokens:     store,
		Logger:     logger,
		Metrics:    opts.Metrics,
	})
	if err != nil {
		_ = backend.Close()
		return nil, err
	}

	coord := session.NewCoordinator(session.CoordinatorConfig{
		Transport:      client,
		Refresher:      api.NewAuthService(client, client),
		Store:          store,
		RefreshTimeout: cfg.API.RefreshTimeout,
		Logger:         logger,
		Metrics:        opts.Metrics,
	})
	auth := api.NewAuthService(client, coord)

	return &App{
		Config:      cfg,
		Logger:      logger,
		Store:       store,
		Client:      client,
		Coordinator: coord,
		Auth:        auth,
		Session: session.NewManager(session.ManagerConfig{
			Auth:        auth,
			Coordinator: coord,
			Store:       store,
			Logger:      logger,
			Metrics:     opts.Metrics,
		}),
		Projects:   api.NewProjectService(coord),
		Tasks:      api.NewTaskService(coord),
		Requesters: api.NewRequesterService(coord),
		Deliveries: api.NewDeliveryService(coord),
	}, nil
}

// Doer returns the authenticated transport for raw calls.
func (a *App) Doer() api.Doer {
	return a.Coordinator
}

// Close releases the token store backend.
func (a *App) Close() error {
	return a.Store.Close()
}

// OpenBackend opens the storage backend named in cfg.
func OpenBackend(ctx context.Context, cfg config.StorageConfig, logger *log.Logger) (tokenstore.Backend, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return tokenstore.NewMemoryBackend(), nil
	case config.BackendFile:
		return tokenstore.NewFileBackend(tokenstore.FileConfig{
			Path:       cfg.Path,
			Passphrase: cfg.Passphrase,
			Logger:     logger,
		})
	case config.BackendRedis:
		backend, err := tokenstore.DialRedis(ctx, cfg.RedisURL, cfg.RedisPrefix)
		if err != nil {
			return nil, errors.NewStorageReadError("redis", err).
				WithSuggestion("Check storage.redis_url and that redis is running")
		}
		return backend, nil
	}
	return nil, errors.NewConfigInvalidError(fmt.Sprintf("unknown storage backend %q", cfg.Backend))
}
