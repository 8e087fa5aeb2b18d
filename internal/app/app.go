// Package app provides the main application setup and dependency injection.
package app

import (
	"context"
	"fmt"
	"time"

	"media-source-go/pkg/appctx"
	"media-source-go/pkg/challenge"
	"media-source-go/pkg/config"
	"media-source-go/pkg/flaresolverr"
	"media-source-go/pkg/handlers/api"
	"media-source-go/pkg/httpclient"
	"media-source-go/pkg/interfaces"
	"media-source-go/pkg/logging"
	"media-source-go/pkg/registry"
	"media-source-go/pkg/server"
	"media-source-go/pkg/services"
	"media-source-go/pkg/sources"
)

// sourceFactory builds one source from the shared options.
type sourceFactory struct {
	id  string
	new func(sources.Options) interfaces.Source
}

// sourceFactories lists every available source in registration order.
// Add new sources here by:
// 1. Creating a new adapter in pkg/sources/
// 2. Appending its constructor below
var sourceFactories = []sourceFactory{
	{"czzy", func(o sources.Options) interfaces.Source { return sources.NewCzzy(o) }},
	{"ntdm", func(o sources.Options) interfaces.Source { return sources.NewNtdm(o) }},
	{"girigiri", func(o sources.Options) interfaces.Source { return sources.NewGirigiri(o) }},
	{"novip", func(o sources.Options) interfaces.Source { return sources.NewNovip(o) }},
	{"mxdm", func(o sources.Options) interfaces.Source { return sources.NewMxdm(o) }},
	{"libvio", func(o sources.Options) interfaces.Source { return sources.NewLibvio(o) }},
	{"lzzy", func(o sources.Options) interfaces.Source { return sources.NewLzzy(o) }},
	{"dm84", func(o sources.Options) interfaces.Source { return sources.NewDm84(o) }},
	{"anime1", func(o sources.Options) interfaces.Source { return sources.NewAnime1(o) }},
	{"yhdm", func(o sources.Options) interfaces.Source { return sources.NewYhdm(o) }},
	{"bimi", func(o sources.Options) interfaces.Source { return sources.NewBimi(o) }},
}

// App is the main application container.
type App struct {
	Ctx        *appctx.Context
	Server     *server.Server
	HTTPClient *httpclient.Client
	Sources    *registry.SourceRegistry
}

// New creates and initializes the application from the environment.
func New() (*App, error) {
	cfg := config.Load()
	log := logging.New(cfg.LogLevel, cfg.LogJSON, nil)
	return NewWithConfig(cfg, log)
}

// NewWithConfig creates and initializes the application.
func NewWithConfig(cfg *config.Config, log *logging.Logger) (*App, error) {
	log.Info("initializing media-source", "port", cfg.Port, "log_level", cfg.LogLevel)

	ctx := appctx.New(cfg, log)

	httpClient := httpclient.New(cfg, log)

	reg, err := NewRegistry(cfg, log, httpClient)
	if err != nil {
		return nil, err
	}
	ctx.WithCatalog(services.NewCatalog(reg, log))

	srv := server.New(cfg, log)
	api.NewHandlers(ctx).RegisterRoutes(srv.Router())

	return &App{
		Ctx:        ctx,
		Server:     srv,
		HTTPClient: httpClient,
		Sources:    reg,
	}, nil
}

// NewRegistry builds the enabled sources around one shared HTTP client and
// challenge solver chain.
func NewRegistry(cfg *config.Config, log *logging.Logger, client *httpclient.Client) (*registry.SourceRegistry, error) {
	solver := newSolver(cfg, log, client)
	reg := registry.NewSourceRegistry(log)

	for _, f := range sourceFactories {
		if !cfg.SourceEnabled(f.id) {
			log.Debug("source disabled", "source", f.id)
			continue
		}
		src := f.new(sources.Options{
			Client:    client,
			Log:       log,
			Solver:    solver,
			BaseURL:   cfg.SourceHosts[f.id],
			Hosts:     cfg.SourceExtraHosts[f.id],
			UserAgent: cfg.UserAgent,
		})
		if err := reg.Register(src); err != nil {
			return nil, fmt.Errorf("registering sources: %w", err)
		}
	}

	log.Info("registered sources", "count", len(reg.All()))
	return reg, nil
}

// newSolver chains the configured challenge solvers: FlareSolverr first,
// then the local browser. It returns nil when neither is configured.
func newSolver(cfg *config.Config, log *logging.Logger, client *httpclient.Client) challenge.Solver {
	var chain challenge.Chain
	if cfg.FlareSolverrURL != "" {
		chain = append(chain, flaresolverr.NewClient(cfg.FlareSolverrURL, cfg.FlareSolverrTimeout, client.Jar(), log))
		log.Info("FlareSolverr solver enabled", "url", cfg.FlareSolverrURL)
	}
	if cfg.BrowserSolver {
		chain = append(chain, challenge.NewBrowserSolver(client.Jar(), challenge.BrowserOptions{
			ExecPath: cfg.BrowserPath,
			Headless: cfg.BrowserHeadless,
		}, log))
		log.Info("browser solver enabled", "headless", cfg.BrowserHeadless)
	}
	if len(chain) == 0 {
		return nil
	}
	return chain
}

// Run starts the application.
func (a *App) Run() error {
	a.Ctx.Log.Info("starting media-source server", "port", a.Ctx.Config.Port)
	return a.Server.Start()
}

// Shutdown gracefully shuts down the application.
func (a *App) Shutdown() {
	a.Ctx.Log.Info("shutting down application")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.Server.Shutdown(ctx); err != nil {
		a.Ctx.Log.Warn("server shutdown", "error", err)
	}
}
