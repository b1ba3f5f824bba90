package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"bizbalance/internal/config"
	apphttp "bizbalance/internal/http"
	applog "bizbalance/internal/log"
	"bizbalance/internal/middleware/ratelimit"
)

// ShutdownTimeout bounds the graceful stop of the server and the worker.
const ShutdownTimeout = 30 * time.Second

// NewHTTPServer wires the dashboard server around app.
func NewHTTPServer(app *App) *apphttp.Server {
	cfg := app.Config
	opts := []apphttp.Option{
		apphttp.WithLogger(app.Logger),
		apphttp.WithIdentity(apphttp.Identity{
			Header:         cfg.AuthUserHeader,
			DefaultOwnerID: cfg.DefaultOwnerID,
		}),
		apphttp.WithRateLimit(ratelimit.Config{
			Requests:        cfg.RateLimit,
			Window:          cfg.RateLimitWindow,
			CleanupInterval: 5 * cfg.RateLimitWindow,
		}),
		apphttp.WithCacheStats(app.CacheStats),
	}
	if len(cfg.TrustedProxies) > 0 {
		opts = append(opts, apphttp.WithTrustedProxies(cfg.TrustedProxies...))
	}

	var assistant apphttp.Assistant
	if app.Assistant != nil {
		assistant = app.Assistant
	}
	return apphttp.NewServer(":"+cfg.Port, app.Ledger, assistant, opts...)
}

// Serve builds the application, serves HTTP until ctx is cancelled and then
// shuts down gracefully.
func Serve(ctx context.Context, cfg *config.Config, logger *applog.Logger) error {
	app, err := Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Error("Failed to release resources", applog.FieldError, err)
		}
	}()
	app.StartCacheCleanup()

	srv := NewHTTPServer(app)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting bizbalance server",
			"port", cfg.Port,
			applog.FieldBackend, cfg.DataBackend,
			"ai_backend", cfg.AIBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	logger.Info("Server stopped gracefully")
	return nil
}
