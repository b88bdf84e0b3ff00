// Package app wires the license server together: configuration, logging,
// metrics, the SQLite store, services, and the chi router, plus the run
// loop with graceful shutdown.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/bitlifehost4tvegesdgames/flux-keyauth/internal/config"
	"github.com/bitlifehost4tvegesdgames/flux-keyauth/internal/infrastructure"
	"github.com/bitlifehost4tvegesdgames/flux-keyauth/internal/license"
	custommw "github.com/bitlifehost4tvegesdgames/flux-keyauth/internal/middleware"
	"github.com/bitlifehost4tvegesdgames/flux-keyauth/internal/security"
	"github.com/bitlifehost4tvegesdgames/flux-keyauth/internal/services"
	"github.com/bitlifehost4tvegesdgames/flux-keyauth/internal/store"
	handlers "github.com/bitlifehost4tvegesdgames/flux-keyauth/internal/transport/http"
	"github.com/bitlifehost4tvegesdgames/flux-keyauth/internal/websocket"
)

const Version = "1.0.0"

// Application is the assembled license server.
type Application struct {
	Config   *config.Config
	Logger   *slog.Logger
	Store    *store.Store
	Engine   *license.Engine
	Hub      *websocket.Hub
	Sessions *security.SessionManager
	Router   *chi.Mux
	Server   *http.Server
	OTel     *infrastructure.OTelProviders
}

// New loads configuration and builds the application with all
// dependencies injected.
func New() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("app: loading configuration: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("app: initializing logger: %w", err)
	}

	logger.Info("application starting",
		slog.String("service", infrastructure.ServiceName),
		slog.String("version", Version))

	otelProviders, err := infrastructure.InitializeOTel(logger)
	if err != nil {
		return nil, fmt.Errorf("app: initializing opentelemetry: %w", err)
	}

	st, err := store.Open(store.Config{
		Path:     cfg.Storage.Path,
		PoolSize: cfg.Storage.PoolSize,
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("app: opening store: %w", err)
	}

	metrics, err := license.NewMetrics(otelProviders.Meter)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("app: creating license metrics: %w", err)
	}

	checker, err := security.NewCredentialChecker(cfg.Admin.Username, cfg.Admin.Password)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("app: preparing admin credentials: %w", err)
	}

	app := &Application{
		Config:   cfg,
		Logger:   logger,
		Store:    st,
		Engine:   license.NewEngine(st, logger, metrics),
		Hub:      websocket.NewHub(logger),
		Sessions: security.NewSessionManager(checker, cfg.Admin.SessionTTL),
		OTel:     otelProviders,
	}

	app.Router = app.buildRouter()
	app.Server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      app.Router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return app, nil
}

// buildRouter assembles the middleware chain and mounts all handlers.
func (a *Application) buildRouter() *chi.Mux {
	logger := a.Logger

	licenseService := services.NewLicenseService(a.Store, a.Hub, logger)
	settingsService := services.NewSettingsService(a.Store, logger)
	healthService := services.NewHealthService(Version, a.Store, logger)

	validateHandler := handlers.NewValidateHandler(a.Engine, a.Hub, logger)
	licenseHandler := handlers.NewLicenseHandler(licenseService, logger)
	authHandler := handlers.NewAuthHandler(a.Sessions, a.Config.Admin.SessionTTL, logger)
	settingsHandler := handlers.NewSettingsHandler(settingsService, logger)
	healthHandler := handlers.NewHealthHandler(healthService, logger)
	eventsHandler := handlers.NewEventsHandler(a.Hub, logger)

	r := chi.NewRouter()
	r.Use(custommw.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(custommw.StructuredLogger(logger))
	r.Use(custommw.Recoverer(logger))

	// Public surface.
	r.Group(func(r chi.Router) {
		if a.Config.RateLimit.Enabled {
			limiter := custommw.NewRateLimiter(a.Config.RateLimit.RPS, a.Config.RateLimit.Burst, logger)
			r.Use(limiter.Handler)
		}
		r.Post("/api/validate", validateHandler.Validate)
	})

	r.Get("/api/health", healthHandler.Health)
	r.Handle("/metrics", a.OTel.PrometheusHTTP)

	r.Post("/api/login", authHandler.Login)
	r.Post("/api/logout", authHandler.Logout)

	// Admin surface behind session auth.
	r.Group(func(r chi.Router) {
		r.Use(custommw.AdminAuth(a.Sessions, logger))
		r.Mount("/api/licenses", licenseHandler.Routes())
		r.Get("/api/settings", settingsHandler.Get)
		r.Put("/api/settings", settingsHandler.Update)
		r.Get("/api/events", eventsHandler.Events)
	})

	return r
}

// Run starts the HTTP server and blocks until the context is cancelled or
// the server fails. Shutdown drains in-flight requests within the
// configured timeout, then closes the store and flushes metrics.
func (a *Application) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		a.Logger.Info("http server listening", slog.String("addr", a.Server.Addr))
		if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("app: http server: %w", err)
		}
		return nil
	})

	group.Go(func() error {
		<-ctx.Done()
		a.Logger.Info("shutdown requested")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
		defer cancel()

		if err := a.Server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("app: shutting down http server: %w", err)
		}
		return nil
	})

	err := group.Wait()

	if closeErr := a.Store.Close(); closeErr != nil {
		a.Logger.Error("store close failed", slog.String("error", closeErr.Error()))
	}

	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if otelErr := a.OTel.Shutdown(flushCtx); otelErr != nil {
		a.Logger.Error("otel shutdown failed", slog.String("error", otelErr.Error()))
	}

	a.Logger.Info("application stopped")
	return err
}
