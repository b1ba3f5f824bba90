package cli

import (
	"context"
	"errors"
	"fmt"

	"bizbalance/internal/assistant"
	"bizbalance/internal/backend"
	"bizbalance/internal/cache"
	"bizbalance/internal/config"
	"bizbalance/internal/core"
	applog "bizbalance/internal/log"
	"bizbalance/internal/records"
	"bizbalance/internal/services"
)

// App is the wired application shared by the serve, import, export, seed
// and summary commands.
type App struct {
	Config    *config.Config
	Logger    *applog.Logger
	Store     records.Store
	Ledger    *services.Ledger
	Assistant *assistant.Gateway

	txCache *cache.LRUCache[[]core.Transaction]
	caches  *cache.Manager
	cleanup backend.CleanupFunc
}

// BuildOption adjusts how Build wires the application.
type BuildOption func(*buildOptions)

type buildOptions struct {
	factory backend.Factory
	noAI    bool
}

// WithFactory replaces the backend factory.
func WithFactory(f backend.Factory) BuildOption {
	return func(o *buildOptions) { o.factory = f }
}

// WithoutAssistant skips the text-generation backend. Batch commands use
// it so a missing API key does not stop them.
func WithoutAssistant() BuildOption {
	return func(o *buildOptions) { o.noAI = true }
}

// Build opens the store selected by cfg and wires the ledger, the list cache
// and the assistant gateway around it.
func Build(ctx context.Context, cfg *config.Config, logger *applog.Logger, opts ...BuildOption) (*App, error) {
	if logger == nil {
		logger = applog.Discard()
	}
	o := buildOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.factory == nil {
		o.factory = backend.NewFactory(logger)
	}

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	res, err := o.factory.CreateBackend(ctx, bcfg)
	if err != nil {
		return nil, fmt.Errorf("create backend: %w", err)
	}

	app := &App{
		Config:  cfg,
		Logger:  logger,
		Store:   res.Backend,
		cleanup: res.Cleanup,
		caches:  cache.NewManager(logger),
	}

	ledgerOpts := []services.LedgerOption{
		services.WithCategories(records.LoadCategories(cfg.DataDir)),
	}
	if res.Publisher != nil {
		ledgerOpts = append(ledgerOpts, services.WithPublisher(res.Publisher))
	}
	if cfg.CacheSize > 0 {
		app.txCache = cache.NewLRUCache[[]core.Transaction](cfg.CacheSize, cfg.CacheTTL)
		app.caches.Register(app.txCache)
		ledgerOpts = append(ledgerOpts, services.WithTransactionCache(app.txCache))
	}

	seeder := services.NewSeeder(res.Backend, logger, cfg.SeedTimeout)
	app.Ledger = services.NewLedger(res.Backend, seeder, logger, ledgerOpts...)

	if !o.noAI {
		gen, err := assistant.NewGenerator(assistant.Settings{
			Backend:   cfg.AIBackend,
			APIKey:    cfg.AIAPIKey,
			BaseURL:   cfg.AIBaseURL,
			Model:     cfg.AIModel,
			OllamaURL: cfg.OllamaURL,
			Timeout:   cfg.AITimeout,
		})
		if err != nil {
			// The dashboard still works; the gateway answers with its
			// fallbacks.
			logger.Warn("Assistant disabled", applog.FieldError, err)
			gen = assistant.Disabled{}
		}
		app.Assistant = assistant.NewGateway(gen, cfg.AITimeout, logger)
	}
	return app, nil
}

// StartCacheCleanup sweeps expired list-cache entries every TTL.
func (a *App) StartCacheCleanup() {
	if a.txCache == nil || a.Config.CacheTTL <= 0 {
		return
	}
	a.caches.StartCleanup(a.Config.CacheTTL)
}

// CacheStats reports the list cache counters; zero when caching is off.
func (a *App) CacheStats() cache.Stats {
	if a.txCache == nil {
		return cache.Stats{}
	}
	return a.txCache.Stats()
}

// Close stops the cache sweeper and releases the store and publisher.
func (a *App) Close() error {
	a.caches.Stop()
	var errs []error
	if err := a.Ledger.Close(); err != nil {
		errs = append(errs, err)
	}
	if a.cleanup != nil {
		if err := a.cleanup(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
