package backend

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"bizbalance/internal/amqp"
	applog "bizbalance/internal/log"
	"bizbalance/internal/records"
	"bizbalance/internal/records/boltdb"
	"bizbalance/internal/records/memory"
	"bizbalance/internal/services"
	"bizbalance/internal/storage"
)

// PublisherDialer opens the event publisher. Tests replace it to avoid a
// broker.
type PublisherDialer func(url, exchange, queue string) (Publisher, error)

// Publisher is a services.Publisher that holds a connection.
type Publisher interface {
	services.Publisher
	Close() error
}

func dialAMQP(url, exchange, queue string) (Publisher, error) {
	c, err := amqp.NewClient(url, exchange, queue)
	if err != nil {
		return nil, err
	}
	return c, nil
}

var _ Factory = (*DefaultFactory)(nil)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *applog.Logger
	dial   PublisherDialer
}

type FactoryOption func(*DefaultFactory)

// WithPublisherDialer overrides how the AMQP publisher is opened.
func WithPublisherDialer(d PublisherDialer) FactoryOption {
	return func(f *DefaultFactory) { f.dial = d }
}

// NewFactory creates a new backend factory
func NewFactory(logger *applog.Logger, opts ...FactoryOption) *DefaultFactory {
	if logger == nil {
		logger = applog.Discard()
	}
	f := &DefaultFactory{
		logger: logger.WithComponent(applog.ComponentBackend),
		dial:   dialAMQP,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CreateBackend opens the configured store and, when an AMQP URL is set,
// the publisher. A publisher that cannot connect is logged and skipped; the
// worker's polling fallback picks up the unannounced rows.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		store  records.Store
		closer func() error
		err    error
	)
	switch config.Type {
	case SQLiteBackend:
		store, closer, err = f.createSQLiteBackend(config)
	case BoltBackend:
		store, closer, err = f.createBoltBackend(config)
	case MemoryBackend:
		store = f.createMemoryBackend()
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}

	result := &BackendResult{Backend: store}
	var pub Publisher
	if config.AMQPURL != "" {
		pub, err = f.dial(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.WarnContext(ctx, "Failed to initialize AMQP client, continuing without events",
				applog.FieldError, err)
			pub = nil
		} else {
			f.logger.InfoContext(ctx, "Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
			result.Publisher = pub
		}
	}

	result.Cleanup = func() error {
		var errs []error
		if pub != nil {
			if err := pub.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close publisher: %w", err))
			}
		}
		if closer != nil {
			if err := closer(); err != nil {
				errs = append(errs, fmt.Errorf("close store: %w", err))
			}
		}
		return errors.Join(errs...)
	}
	return result, nil
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (records.Store, func() error, error) {
	if err := ensureDir(config.SQLiteDBPath); err != nil {
		return nil, nil, err
	}
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}
	f.logger.Info("Initialized SQLite backend", applog.FieldPath, config.SQLiteDBPath)
	return repo, repo.Close, nil
}

func (f *DefaultFactory) createBoltBackend(config Config) (records.Store, func() error, error) {
	if err := ensureDir(config.BoltPath); err != nil {
		return nil, nil, err
	}
	store, err := boltdb.Open(config.BoltPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open bolt store: %w", err)
	}
	f.logger.Info("Initialized bolt backend", applog.FieldPath, config.BoltPath)
	return store, store.Close, nil
}

func (f *DefaultFactory) createMemoryBackend() records.Store {
	f.logger.Info("Initialized memory backend")
	return memory.New()
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create data dir %s: %w", dir, err)
	}
	return nil
}
