// Package app wires the client core together.
package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/hongminglow/all-in-dash/internal/account"
	"github.com/hongminglow/all-in-dash/internal/api"
	"github.com/hongminglow/all-in-dash/internal/auth"
	"github.com/hongminglow/all-in-dash/internal/cache"
	"github.com/hongminglow/all-in-dash/internal/config"
	"github.com/hongminglow/all-in-dash/internal/dashboard"
	"github.com/hongminglow/all-in-dash/internal/events"
	"github.com/hongminglow/all-in-dash/internal/middleware"
	"github.com/hongminglow/all-in-dash/internal/session"
	"github.com/hongminglow/all-in-dash/internal/storage/file"
)

// Options override the production collaborators. Zero values mean the real thing.
type Options struct {
	Fs        afero.Fs
	Clock     clockwork.Clock
	Logger    *zap.Logger
	Transport http.RoundTripper
	Navigate  func(route string)
}

// App holds the constructed components.
type App struct {
	Config    config.Config
	Store     *file.Store
	Codec     *auth.Codec
	Pipeline  *middleware.Pipeline
	API       *api.Client
	Cache     *cache.Dashboard
	Session   *session.Manager
	Dashboard *dashboard.Controller
	Account   *account.Service

	bus    *events.Bus
	logger *zap.Logger
}

// New wires every component. Call Start before use and Close when done.
func New(cfg config.Config, opts Options) *App {
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	logger := opts.Logger

	store := file.NewStore(opts.Fs, cfg.CredentialPath, logger.Named("store"))
	codec := auth.NewCodec(opts.Clock, logger.Named("auth"))
	bus := events.NewBus(logger.Named("events"))

	pipeline := middleware.NewPipeline(store, codec, bus, middleware.Logging(logger.Named("http"), opts.Transport), logger.Named("pipeline"))
	client := api.New(cfg.BackendURL, &http.Client{Transport: pipeline, Timeout: cfg.HTTPTimeout})
	dashboards := cache.NewDashboard(opts.Clock, cfg.CacheTTL)

	a := &App{
		Config:   cfg,
		Store:    store,
		Codec:    codec,
		Pipeline: pipeline,
		API:      client,
		Cache:    dashboards,
		bus:      bus,
		logger:   logger,
	}

	sessionOpts := []session.Option{
		session.WithPollInterval(cfg.PollInterval),
		session.WithStoreWatch(cfg.WatchCredential),
		session.WithLogoutHook(func() { a.Dashboard.Invalidate() }),
	}
	if opts.Navigate != nil {
		sessionOpts = append(sessionOpts, session.WithNavigator(opts.Navigate))
	}
	a.Session = session.NewManager(session.Dependencies{
		Store:    store,
		Codec:    codec,
		Profiles: client,
		Headers:  pipeline,
		Expiry:   bus,
		Clock:    opts.Clock,
		Logger:   logger.Named("session"),
	}, sessionOpts...)

	a.Dashboard = dashboard.NewController(client, a.Session, dashboards, logger.Named("dashboard"))
	a.Account = account.NewService(client, a.Session, a.Dashboard, logger.Named("account"))
	return a
}

// Start restores the stored session.
func (a *App) Start(ctx context.Context) error {
	if err := a.Session.Start(ctx); err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	return nil
}

// Close stops background work. The stored credential survives.
func (a *App) Close() error {
	a.Session.Close()
	if err := a.bus.Close(); err != nil {
		return fmt.Errorf("close event bus: %w", err)
	}
	return nil
}
