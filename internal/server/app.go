// Package server assembles the catalog service from configuration and runs it.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/adhesive-catalog/internal/analytics"
	"github.com/JakeFAU/adhesive-catalog/internal/api"
	"github.com/JakeFAU/adhesive-catalog/internal/catalog"
	"github.com/JakeFAU/adhesive-catalog/internal/clock/system"
	"github.com/JakeFAU/adhesive-catalog/internal/config"
	"github.com/JakeFAU/adhesive-catalog/internal/id/uuid"
	"github.com/JakeFAU/adhesive-catalog/internal/logging"
	"github.com/JakeFAU/adhesive-catalog/internal/policy/ratelimit"
	"github.com/JakeFAU/adhesive-catalog/internal/telemetry"
)

// App contains the application's dependencies.
type App struct {
	cfg            *config.Config
	logger         *zap.Logger
	infra          *Infra
	apiServer      *api.Server
	holder         *catalog.Holder
	loader         *catalog.Loader
	hub            *analytics.Hub
	tracerShutdown func(context.Context) error
	metricShutdown func(context.Context) error
}

// Build creates the application's dependencies and loads the first catalog
// snapshot. A failing catalog source never fails Build; the loader degrades
// to the bundled datasheet.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	base, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	logger := logging.ForService(base, cfg.Application.ServiceName, cfg.Application.Version)
	zap.ReplaceGlobals(logger)
	logger.Info("building application",
		zap.Int("port", cfg.Server.Port),
		zap.String("catalog_source", cfg.Catalog.Source),
		zap.String("storage_backend", cfg.Storage.Backend),
	)

	app := &App{cfg: cfg, logger: logger, infra: NewInfra(cfg, logger), holder: catalog.NewHolder()}

	tp, mp, err := telemetry.InitTelemetry(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("telemetry init failed: %w", err)
	}
	app.tracerShutdown = tp.Shutdown
	app.metricShutdown = mp.Shutdown

	if err := app.setupCatalog(ctx); err != nil {
		app.infra.Close()
		return nil, err
	}
	if app.hub, err = app.infra.AnalyticsHub(ctx); err != nil {
		app.infra.Close()
		return nil, err
	}

	deps := api.Deps{
		Catalog: app.holder,
		IDs:     uuid.New(),
		Clock:   system.New(),
	}
	if app.hub != nil {
		deps.Analytics = app.hub
	}
	prober, err := app.infra.Prober()
	if err != nil {
		app.infra.Close()
		return nil, err
	}
	if prober != nil {
		deps.Products = prober
	} else {
		logger.Warn("no upstream configured; /api/products serves the loaded catalog")
	}
	if cfg.RateLimit.Enabled {
		limiter := ratelimit.New(ratelimit.Config{RPS: cfg.RateLimit.RPS, Burst: cfg.RateLimit.Burst})
		deps.Limiter = limiter.Middleware
		logger.Info("rate limiter enabled",
			zap.Float64("rps", cfg.RateLimit.RPS),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
	}
	app.apiServer = api.NewServer(deps, cfg.RequestTimeout(), logger.Named("api"))
	return app, nil
}

func (a *App) setupCatalog(ctx context.Context) error {
	loader, err := a.infra.Loader(ctx)
	if err != nil {
		return err
	}
	loader.OnLoad(func(snap *catalog.Snapshot, err error) {
		if err != nil {
			telemetry.ObserveCatalogRefresh(err)
			return
		}
		telemetry.ObserveCatalogRefresh(nil)
		telemetry.ObserveCatalogSnapshot(snap.Meta().Source, snap.Len())
	})
	a.loader = loader
	a.holder.Store(loader.Load(ctx))
	return nil
}

// Handler exposes the HTTP handler, mainly for tests.
func (a *App) Handler() http.Handler {
	return a.apiServer.Handler()
}

// Catalog returns the current catalog snapshot.
func (a *App) Catalog() *catalog.Snapshot {
	return a.holder.Current()
}

// Run starts the catalog refresher and the HTTP server and blocks until ctx
// is canceled or a termination signal arrives.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if interval := a.cfg.RefreshInterval(); interval > 0 && a.cfg.Catalog.Source != config.SourceBundled {
		go func() {
			a.logger.Info("catalog refresher started", zap.Duration("interval", interval))
			a.loader.Run(ctx, a.holder, interval)
		}()
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}
	closeErr := a.Close(shutdownCtx)

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	default:
		return closeErr
	}
}

// Close flushes analytics, releases clients and stops telemetry.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.hub != nil {
		if err := a.hub.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.infra.Close()
	if a.tracerShutdown != nil {
		if err := a.tracerShutdown(ctx); err != nil {
			a.logger.Warn("tracer shutdown failed", zap.Error(err))
		}
	}
	if a.metricShutdown != nil {
		if err := a.metricShutdown(ctx); err != nil {
			a.logger.Warn("metric shutdown failed", zap.Error(err))
		}
	}
	a.logger.Info("shutdown complete")
	_ = a.logger.Sync()
	return errors.Join(errs...)
}
