package cli

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"bizbalance/internal/amqp"
	"bizbalance/internal/config"
	applog "bizbalance/internal/log"
	"bizbalance/internal/sheets"
	gsheet "bizbalance/internal/sheets/google"
	"bizbalance/internal/storage"
	"bizbalance/internal/worker"
)

// Consumer delivers transaction.recorded messages until ctx ends.
type Consumer interface {
	Consume(ctx context.Context, handler amqp.Handler) error
}

// RunSyncWorker mirrors new transactions to the spreadsheet: it catches up
// on rows missed while offline, then consumes events and polls for pending
// rows until ctx is cancelled.
func RunSyncWorker(ctx context.Context, store worker.SyncStore, mirror sheets.Mirror, consumer Consumer, cfg worker.Config, logger *applog.Logger) error {
	w := worker.NewSyncWorker(store, mirror, cfg, logger)

	logger.InfoContext(ctx, "Performing startup sync check...")
	if err := w.StartupSyncCheck(ctx); err != nil {
		// Polling retries what the check could not finish.
		logger.ErrorContext(ctx, "Failed startup sync check", applog.FieldError, err)
	}

	if err := w.Start(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := consumer.Consume(gctx, w.HandleMessage)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	<-gctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	stopErr := w.Stop(stopCtx)

	if err := g.Wait(); err != nil {
		return fmt.Errorf("message consumption: %w", err)
	}
	if stopErr != nil {
		return fmt.Errorf("stop sync worker: %w", stopErr)
	}
	logger.Info("Worker shutdown complete")
	return nil
}

// Worker opens the SQLite store, the spreadsheet and the broker named by cfg
// and runs the sync worker until ctx is cancelled.
func Worker(ctx context.Context, cfg *config.Config, logger *applog.Logger) error {
	if err := cfg.ValidateWorker(); err != nil {
		return err
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		return fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}
	defer repo.Close()

	mirror, err := gsheet.Connect(ctx, gsheet.Config{
		SpreadsheetID: cfg.GoogleSpreadsheetID,
		SheetName:     cfg.GoogleSheetName,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}
	logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		return fmt.Errorf("failed to initialize AMQP client: %w", err)
	}
	defer client.Close()

	logger.Info("Starting bizbalance worker",
		"queue", cfg.AMQPQueue,
		"interval", cfg.SyncInterval,
		"batch_size", cfg.SyncBatchSize)
	return RunSyncWorker(ctx, repo, mirror, client, worker.Config{
		BatchSize: cfg.SyncBatchSize,
		Interval:  cfg.SyncInterval,
	}, logger)
}
