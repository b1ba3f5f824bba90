package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"bizbalance/internal/cache"
	"bizbalance/internal/core"
	"bizbalance/internal/csvio"
	applog "bizbalance/internal/log"
	"bizbalance/internal/records"
)

// Publisher announces stored transactions to the sync worker.
type Publisher interface {
	PublishTransactionRecorded(ctx context.Context, ownerID, transactionID string) error
}

// Ledger orchestrates record operations: seeding on first read, validation,
// storage, the per-owner list cache and event publishing.
type Ledger struct {
	store      records.Store
	seeder     *Seeder
	publisher  Publisher
	txCache    *cache.LRUCache[[]core.Transaction]
	cacheMu    sync.Mutex
	gens       map[string]uint64 // per-owner write generation, guarded by cacheMu
	categories []string
	logger     *applog.Logger
	events     *applog.StructuredLogger
	closers    []io.Closer
}

type LedgerOption func(*Ledger)

// WithPublisher enables transaction.recorded events.
func WithPublisher(p Publisher) LedgerOption {
	return func(l *Ledger) { l.publisher = p }
}

// WithTransactionCache caches transaction lists per owner.
func WithTransactionCache(c *cache.LRUCache[[]core.Transaction]) LedgerOption {
	return func(l *Ledger) { l.txCache = c }
}

// WithCategories replaces the base category list.
func WithCategories(categories []string) LedgerOption {
	return func(l *Ledger) { l.categories = records.Dedupe(categories) }
}

// WithClosers registers resources released by Close, in order.
func WithClosers(closers ...io.Closer) LedgerOption {
	return func(l *Ledger) { l.closers = append(l.closers, closers...) }
}

func NewLedger(store records.Store, seeder *Seeder, logger *applog.Logger, opts ...LedgerOption) *Ledger {
	if logger == nil {
		logger = applog.Discard()
	}
	l := &Ledger{
		store:      store,
		seeder:     seeder,
		categories: append([]string(nil), core.DefaultCategories...),
		gens:       make(map[string]uint64),
		logger:     logger.WithComponent(applog.ComponentLedger),
	}
	l.events = applog.NewStructuredLogger(l.logger)
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Ledger) ensureSeeded(ctx context.Context, ownerID string) {
	if l.seeder == nil {
		return
	}
	if l.seeder.Ensure(ctx, ownerID) {
		l.invalidate(ownerID)
	}
}

// invalidate drops the cached list and moves the owner to a new generation,
// so a read that started before the write cannot cache its older snapshot.
func (l *Ledger) invalidate(ownerID string) {
	if l.txCache == nil {
		return
	}
	l.cacheMu.Lock()
	defer l.cacheMu.Unlock()
	l.gens[ownerID]++
	l.txCache.Delete(ownerID)
}

func (l *Ledger) generation(ownerID string) uint64 {
	l.cacheMu.Lock()
	defer l.cacheMu.Unlock()
	return l.gens[ownerID]
}

// cacheList stores txs unless a write landed after the read began at gen.
func (l *Ledger) cacheList(ownerID string, gen uint64, txs []core.Transaction) {
	l.cacheMu.Lock()
	defer l.cacheMu.Unlock()
	if l.gens[ownerID] != gen {
		return
	}
	l.txCache.Set(ownerID, append([]core.Transaction(nil), txs...))
}

// Transactions returns every transaction of the owner, newest first. The
// owner is seeded before the first read.
func (l *Ledger) Transactions(ctx context.Context, ownerID string) ([]core.Transaction, error) {
	if ownerID == "" {
		return nil, core.ErrMissingOwner
	}
	l.ensureSeeded(ctx, ownerID)

	if l.txCache != nil {
		if cached, ok := l.txCache.Get(ownerID); ok {
			return append([]core.Transaction(nil), cached...), nil
		}
	}
	// An owner whose seeding is still in flight is never cached: the
	// sample records may land after this read.
	cacheable := l.txCache != nil && (l.seeder == nil || l.seeder.Seeded(ownerID))
	var gen uint64
	if cacheable {
		gen = l.generation(ownerID)
	}
	txs, err := l.store.ListTransactions(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	if cacheable {
		l.cacheList(ownerID, gen, txs)
	}
	return txs, nil
}

// Appointments returns every appointment of the owner, newest first.
func (l *Ledger) Appointments(ctx context.Context, ownerID string) ([]core.Appointment, error) {
	if ownerID == "" {
		return nil, core.ErrMissingOwner
	}
	l.ensureSeeded(ctx, ownerID)

	appts, err := l.store.ListAppointments(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return appts, nil
}

// RecordTransaction validates and stores t, then publishes an event. A
// publish failure is logged and does not fail the call.
func (l *Ledger) RecordTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	stored, err := l.store.InsertTransaction(ctx, t)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("save transaction: %w", err)
	}
	l.invalidate(stored.OwnerID)
	l.events.LogTransactionRecorded(ctx, stored.OwnerID, stored.ID, string(stored.Kind),
		stored.Description, stored.Amount.String(), stored.Category)

	l.publish(ctx, stored)
	return stored, nil
}

func (l *Ledger) publish(ctx context.Context, t core.Transaction) {
	if l.publisher == nil {
		return
	}
	if err := l.publisher.PublishTransactionRecorded(ctx, t.OwnerID, t.ID); err != nil {
		l.logger.ErrorContext(ctx, "Failed to publish transaction recorded message",
			applog.NewFields().
				WithOwner(t.OwnerID).
				WithOperation(applog.OpPublish).
				WithError(err).
				ToSlice()...)
	}
}

// RecordAppointment validates and stores a.
func (l *Ledger) RecordAppointment(ctx context.Context, a core.Appointment) (core.Appointment, error) {
	if err := a.Validate(); err != nil {
		return core.Appointment{}, err
	}
	stored, err := l.store.InsertAppointment(ctx, a)
	if err != nil {
		return core.Appointment{}, fmt.Errorf("save appointment: %w", err)
	}
	l.logger.InfoContext(ctx, "Appointment recorded",
		applog.FieldOwnerID, stored.OwnerID,
		"appointment_id", stored.ID,
		applog.FieldDate, core.FormatDate(stored.Date))
	return stored, nil
}

// Categories returns the suggested categories followed by any other category
// the owner already used. Store failures fall back to the base list.
func (l *Ledger) Categories(ctx context.Context, ownerID string) []string {
	txs, err := l.Transactions(ctx, ownerID)
	if err != nil {
		l.logger.WarnContext(ctx, "Using base categories", applog.FieldOwnerID, ownerID, applog.FieldError, err)
		return append([]string(nil), l.categories...)
	}
	return records.MergeCategories(l.categories, txs)
}

// Summary computes totals over every transaction of the owner.
func (l *Ledger) Summary(ctx context.Context, ownerID string) (core.Summary, error) {
	txs, err := l.Transactions(ctx, ownerID)
	if err != nil {
		return core.Summary{}, err
	}
	return core.Summarize(txs), nil
}

// ImportReport is the outcome of a CSV import.
type ImportReport struct {
	Imported int
	Errors   []csvio.LineError
	Duration time.Duration
}

// Import parses r and records every valid row for ownerID. Invalid rows and
// rows the store rejects are reported per line; the rest are kept.
func (l *Ledger) Import(ctx context.Context, ownerID string, r io.Reader) (ImportReport, error) {
	if ownerID == "" {
		return ImportReport{}, core.ErrMissingOwner
	}
	start := time.Now()
	parsed, err := csvio.Parse(r, ownerID)
	if err != nil {
		return ImportReport{}, fmt.Errorf("parse import: %w", err)
	}

	report := ImportReport{Errors: parsed.Errors}
	for _, row := range parsed.Rows {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if _, err := l.RecordTransaction(ctx, row.Transaction); err != nil {
			report.Errors = append(report.Errors, csvio.LineError{Line: row.Line, Err: err})
			continue
		}
		report.Imported++
	}
	report.Duration = time.Since(start)

	l.logger.InfoContext(ctx, "CSV import finished",
		applog.FieldOwnerID, ownerID,
		applog.FieldOperation, applog.OpImport,
		"imported", report.Imported,
		"rejected", len(report.Errors),
		applog.FieldDuration, report.Duration.Milliseconds())
	return report, nil
}

// Export writes every transaction of the owner as CSV.
func (l *Ledger) Export(ctx context.Context, ownerID string, w io.Writer, loc csvio.Locale) error {
	txs, err := l.Transactions(ctx, ownerID)
	if err != nil {
		return err
	}
	if err := csvio.Export(w, txs, loc); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

// Ready reports whether the backing store answers.
func (l *Ledger) Ready(ctx context.Context) error {
	if p, ok := l.store.(interface{ Ping(context.Context) error }); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Close releases the registered resources.
func (l *Ledger) Close() error {
	var errs []error
	for _, c := range l.closers {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("close ledger: %w", err)
	}
	return nil
}
