package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sandeepkv93/tenant-session-core/internal/config"
	"github.com/sandeepkv93/tenant-session-core/internal/health"
	"github.com/sandeepkv93/tenant-session-core/internal/notify"
	"github.com/sandeepkv93/tenant-session-core/internal/observability"
)

type App struct {
	Config          *config.Config
	Logger          *slog.Logger
	Server          *http.Server
	Observability   *observability.Runtime
	Dispatcher      *notify.Dispatcher
	Readiness       *health.ProbeRunner
	ShutdownTimeout time.Duration
}

func New(cfg *config.Config, logger *slog.Logger, server *http.Server, runtime *observability.Runtime, dispatcher *notify.Dispatcher, readiness *health.ProbeRunner) *App {
	return &App{
		Config:          cfg,
		Logger:          logger,
		Server:          server,
		Observability:   runtime,
		Dispatcher:      dispatcher,
		Readiness:       readiness,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}
}

// Run serves HTTP until ctx is cancelled, then drains in-flight requests and
// pending side effects before flushing telemetry.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.Logger.Info("http server listening", "addr", a.Server.Addr)
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		return a.Shutdown(context.WithoutCancel(ctx))
	})
	return g.Wait()
}

func (a *App) Shutdown(ctx context.Context) error {
	timeout := a.ShutdownTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	a.Logger.Info("shutting down")
	var errs []error
	if err := a.Server.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if a.Dispatcher != nil {
		done := make(chan struct{})
		go func() {
			a.Dispatcher.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			a.Logger.Warn("side effects still pending at shutdown")
		}
	}
	if err := a.Observability.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
