package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	internalrepo "CtxWeights/internal/repository"
	"CtxWeights/internal/snapshot"
	pkgcache "CtxWeights/pkg/cache"
	pkgch "CtxWeights/pkg/clickhouse"
	"CtxWeights/pkg/config"
	xhttp "CtxWeights/pkg/http"
	applogger "CtxWeights/pkg/logger"
)

// App encapsulates the entire application lifecycle. Startup blocks on
// the first snapshot build: the HTTP server never comes up with nothing
// to serve.
type App struct {
	cfg      *config.Config
	manager  *snapshot.Manager
	handler  xhttp.Handler
	chClient *pkgch.Client
	alerting *internalrepo.Alerting
	cache    pkgcache.Service
	l        *applogger.Logger

	httpServer *xhttp.Server
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	manager *snapshot.Manager,
	handler xhttp.Handler,
	chClient *pkgch.Client,
	alerting *internalrepo.Alerting,
	cache pkgcache.Service,
	l *applogger.Logger,
) *App {
	return &App{
		cfg:      cfg,
		manager:  manager,
		handler:  handler,
		chClient: chClient,
		alerting: alerting,
		cache:    cache,
		l:        l,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// First build is synchronous; a failure here is fatal.
	if err := a.manager.Start(ctx); err != nil {
		a.l.Error("startup build failed", applogger.Error(err))
		return err
	}
	a.l.Info("snapshot ready, starting http server",
		applogger.Int("port", a.cfg.Server.Port))

	a.httpServer = xhttp.NewServer(a.handler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithRequestMetrics(a.l, time.Second),
	)
	if err := a.httpServer.Start(); err != nil {
		a.l.Error("http server start error", applogger.Error(err))
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.l.Info("shutdown signal received")
	cancel() // stops the refresh loop
	return a.shutdown(context.Background())
}

// shutdown gracefully stops all services.
func (a *App) shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.l.Error("http shutdown error", applogger.Error(err))
	}

	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.l.Warn("clickhouse close error", applogger.Error(err))
		}
	}
	if a.alerting != nil {
		if err := a.alerting.Close(); err != nil {
			a.l.Warn("alert producer close error", applogger.Error(err))
		}
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.l.Warn("cache close error", applogger.Error(err))
		}
	}

	a.l.Info("shutdown complete")
	return nil
}
