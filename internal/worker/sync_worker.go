// Package worker mirrors recorded transactions to the spreadsheet.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"bizbalance/internal/amqp"
	"bizbalance/internal/core"
	applog "bizbalance/internal/log"
	"bizbalance/internal/records"
	"bizbalance/internal/sheets"
)

// reconciledRef marks rows found in the sheet without a stored reference.
const reconciledRef = "reconciled"

// SyncStore is the part of the SQLite repository the worker needs.
type SyncStore interface {
	records.TransactionGetter
	PendingSync(ctx context.Context, limit int) ([]core.Transaction, error)
	IsSynced(ctx context.Context, id string) (bool, error)
	MarkSynced(ctx context.Context, id, ref string) error
}

// Config controls the polling fallback used when messages are lost.
type Config struct {
	// BatchSize is the max number of pending transactions per poll (default: 10)
	BatchSize int

	// Interval is how often pending transactions are polled (default: 1m)
	Interval time.Duration
}

func DefaultConfig() Config {
	return Config{BatchSize: 10, Interval: time.Minute}
}

// SyncWorker appends transactions to the sheet exactly once per id, driven
// by transaction.recorded messages and a periodic scan of pending rows.
type SyncWorker struct {
	store  SyncStore
	mirror sheets.Mirror
	config Config
	logger *applog.Logger

	// serialises appends so a message and a poll never write the same row
	syncMu sync.Mutex

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewSyncWorker(store SyncStore, mirror sheets.Mirror, config Config, logger *applog.Logger) *SyncWorker {
	def := DefaultConfig()
	if config.BatchSize <= 0 {
		config.BatchSize = def.BatchSize
	}
	if config.Interval <= 0 {
		config.Interval = def.Interval
	}
	if logger == nil {
		logger = applog.Discard()
	}
	return &SyncWorker{
		store:  store,
		mirror: mirror,
		config: config,
		logger: logger.WithComponent(applog.ComponentWorker),
	}
}

// HandleMessage processes one transaction.recorded message.
func (w *SyncWorker) HandleMessage(ctx context.Context, msg *amqp.TransactionRecordedMessage) error {
	w.logger.DebugContext(ctx, "Processing transaction message",
		applog.FieldOwnerID, msg.OwnerID,
		applog.FieldTransactionID, msg.TransactionID)

	t, err := w.store.GetTransaction(ctx, msg.OwnerID, msg.TransactionID)
	if errors.Is(err, records.ErrNotFound) {
		// Nothing to retry: the message points at a row that does not exist.
		w.logger.WarnContext(ctx, "Dropping message for unknown transaction",
			applog.FieldOwnerID, msg.OwnerID,
			applog.FieldTransactionID, msg.TransactionID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get transaction: %w", err)
	}
	return w.sync(ctx, t)
}

// ProcessPending mirrors up to limit unsynced transactions and returns how
// many were written. Individual failures are logged and left pending.
func (w *SyncWorker) ProcessPending(ctx context.Context, limit int) (int, error) {
	pending, err := w.store.PendingSync(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("get pending transactions: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	w.logger.InfoContext(ctx, "Processing pending transactions", "count", len(pending))

	synced := 0
	for _, t := range pending {
		if err := ctx.Err(); err != nil {
			return synced, err
		}
		if err := w.sync(ctx, t); err != nil {
			w.logger.ErrorContext(ctx, "Failed to sync transaction",
				applog.FieldTransactionID, t.ID, applog.FieldError, err)
			continue
		}
		synced++
	}
	return synced, nil
}

// StartupSyncCheck marks rows that reached the sheet before a crash as
// synced, then processes a larger pending batch than a regular poll.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	marked, err := w.reconcile(ctx)
	if err != nil {
		return err
	}
	synced, err := w.ProcessPending(ctx, w.config.BatchSize*5)
	if err != nil {
		return fmt.Errorf("startup sync: %w", err)
	}
	w.logger.InfoContext(ctx, "Startup sync completed", "reconciled", marked, "synced", synced)
	return nil
}

func (w *SyncWorker) reconcile(ctx context.Context) (int, error) {
	ids, err := w.mirror.ListTransactionIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("list sheet ids: %w", err)
	}
	marked := 0
	for _, id := range ids {
		ok, err := w.store.IsSynced(ctx, id)
		if err != nil {
			return marked, err
		}
		if ok {
			continue
		}
		if err := w.store.MarkSynced(ctx, id, reconciledRef); err != nil {
			// Rows of transactions this store does not know are ignored.
			w.logger.DebugContext(ctx, "Skipping sheet row", applog.FieldTransactionID, id, applog.FieldError, err)
			continue
		}
		marked++
	}
	return marked, nil
}

func (w *SyncWorker) sync(ctx context.Context, t core.Transaction) error {
	w.syncMu.Lock()
	defer w.syncMu.Unlock()

	done, err := w.store.IsSynced(ctx, t.ID)
	if err != nil {
		return err
	}
	if done {
		w.logger.DebugContext(ctx, "Transaction already synced", applog.FieldTransactionID, t.ID)
		return nil
	}

	ref, err := w.mirror.AppendTransaction(ctx, t)
	if err != nil {
		return fmt.Errorf("append to sheets: %w", err)
	}

	if err := w.store.MarkSynced(ctx, t.ID, ref); err != nil {
		// The row exists; the next startup reconciliation records it.
		w.logger.ErrorContext(ctx, "Failed to mark as synced",
			applog.FieldTransactionID, t.ID, applog.FieldError, err)
	}

	w.logger.InfoContext(ctx, "Successfully synced transaction",
		applog.FieldTransactionID, t.ID,
		applog.FieldSheetsRef, ref,
		applog.FieldAmount, t.Amount.String())
	return nil
}

// Start runs the polling loop until Stop or ctx cancellation.
func (w *SyncWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return errors.New("sync worker is already running")
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	stopCh, doneCh := w.stopCh, w.doneCh
	w.mu.Unlock()

	go w.runLoop(ctx, stopCh, doneCh)

	w.logger.InfoContext(ctx, "Sync worker started",
		"interval", w.config.Interval,
		"batch_size", w.config.BatchSize)
	return nil
}

// Stop signals the loop and waits for the current batch to finish.
func (w *SyncWorker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	stopCh, doneCh := w.stopCh, w.doneCh
	w.running = false
	w.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		return nil
	case <-ctx.Done():
		w.logger.WarnContext(ctx, "Sync worker stop timed out")
		return ctx.Err()
	}
}

func (w *SyncWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *SyncWorker) runLoop(ctx context.Context, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.ProcessPending(ctx, w.config.BatchSize); err != nil && ctx.Err() == nil {
				w.logger.ErrorContext(ctx, "Periodic sync failed", applog.FieldError, err)
			}
		}
	}
}
