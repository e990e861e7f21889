package server

import (
	"context"
	"time"

	"FinCast/internal/domain/models"
	domsvc "FinCast/internal/domain/service"
	"FinCast/pkg/config"
	xhttp "FinCast/pkg/http"
	applogger "FinCast/pkg/logger"
)

// App encapsulates the application lifecycle in both CLI and serve mode.
type App struct {
	cfg        *config.Config
	l          *applogger.Logger
	forecaster domsvc.PortfolioForecaster
	handler    xhttp.Handler
}

// New creates a new App instance with all dependencies.
func New(cfg *config.Config, l *applogger.Logger, forecaster domsvc.PortfolioForecaster, handler xhttp.Handler) *App {
	return &App{cfg: cfg, l: applogger.OrNop(l), forecaster: forecaster, handler: handler}
}

// Logger returns the application logger.
func (a *App) Logger() *applogger.Logger { return a.l }

// Forecast runs one portfolio forecast.
func (a *App) Forecast(ctx context.Context, req domsvc.PortfolioRequest) (*models.PortfolioResult, error) {
	return a.forecaster.Run(ctx, req)
}

// Serve runs the HTTP API until ctx is cancelled or the listener fails.
func (a *App) Serve(ctx context.Context) error {
	metricsPath := ""
	if a.cfg.Metrics.Enabled {
		metricsPath = a.cfg.Metrics.Path
	}
	srv := xhttp.NewServer(a.handler, a.l,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithMetricsPath(metricsPath),
	)
	errc := srv.Start()

	select {
	case err := <-errc:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		a.l.Info("shutdown signal received")
	}

	// shutdown gets its own deadline; ctx is already done here
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout+time.Second)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		a.l.Error("http shutdown error", applogger.Error(err))
		return err
	}
	return nil
}
