package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"bizbalance/internal/core"
	"bizbalance/internal/records"

	_ "modernc.org/sqlite"
)

// timestampLayout is fixed width so that text ordering in SQL matches time
// ordering. Values are always written in UTC.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

var _ records.Store = (*SQLiteRepository)(nil)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	// Run migrations before the main pool opens the file.
	if err := RunMigrations(dbPath); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(on)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable. Used by readiness checks.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

const selectTransactions = `SELECT id, owner_id, kind, description, amount, occurred_at, category FROM transactions`

func (r *SQLiteRepository) ListTransactions(ctx context.Context, ownerID string) ([]core.Transaction, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, core.ErrMissingOwner
	}
	rows, err := r.db.QueryContext(ctx,
		selectTransactions+` WHERE owner_id = ? ORDER BY occurred_at DESC, seq ASC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	out := make([]core.Transaction, 0)
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) ListAppointments(ctx context.Context, ownerID string) ([]core.Appointment, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, core.ErrMissingOwner
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, owner_id, title, occurred_at, start_time, end_time FROM appointments
		 WHERE owner_id = ? ORDER BY occurred_at DESC, seq ASC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("query appointments: %w", err)
	}
	defer rows.Close()

	out := make([]core.Appointment, 0)
	for rows.Next() {
		var (
			a    core.Appointment
			date string
		)
		if err := rows.Scan(&a.ID, &a.OwnerID, &a.Title, &date, &a.StartTime, &a.EndTime); err != nil {
			return nil, fmt.Errorf("scan appointment: %w", err)
		}
		if a.Date, err = parseTimestamp(date); err != nil {
			return nil, fmt.Errorf("appointment %s: %w", a.ID, err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate appointments: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) InsertTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	stored, err := insertTransaction(ctx, r.db, t)
	if err != nil {
		return core.Transaction{}, err
	}

	slog.InfoContext(ctx, "Transaction saved to SQLite",
		"id", stored.ID,
		"owner_id", stored.OwnerID,
		"type", stored.Kind,
		"amount", stored.Amount.String(),
		"date", core.FormatDate(stored.Date))

	return stored, nil
}

func (r *SQLiteRepository) InsertAppointment(ctx context.Context, a core.Appointment) (core.Appointment, error) {
	if err := a.Validate(); err != nil {
		return core.Appointment{}, err
	}
	return insertAppointment(ctx, r.db, a)
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, ownerID, id string) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx, selectTransactions+` WHERE owner_id = ? AND id = ?`, ownerID, id)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", id, records.ErrNotFound)
	}
	return t, err
}

func (r *SQLiteRepository) CountTransactions(ctx context.Context, ownerID string) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions WHERE owner_id = ?`, ownerID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count transactions: %w", err)
	}
	return n, nil
}

func (r *SQLiteRepository) CountAppointments(ctx context.Context, ownerID string) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM appointments WHERE owner_id = ?`, ownerID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count appointments: %w", err)
	}
	return n, nil
}

// SeedBatch inserts the batch in a single SQL transaction.
func (r *SQLiteRepository) SeedBatch(ctx context.Context, b records.Batch) (records.Batch, error) {
	if err := b.Validate(); err != nil {
		return records.Batch{}, fmt.Errorf("seed batch: %w", err)
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return records.Batch{}, fmt.Errorf("begin seed batch: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var out records.Batch
	for _, t := range b.Transactions {
		stored, err := insertTransaction(ctx, tx, t)
		if err != nil {
			return records.Batch{}, err
		}
		out.Transactions = append(out.Transactions, stored)
	}
	for _, a := range b.Appointments {
		stored, err := insertAppointment(ctx, tx, a)
		if err != nil {
			return records.Batch{}, err
		}
		out.Appointments = append(out.Appointments, stored)
	}
	if err := tx.Commit(); err != nil {
		return records.Batch{}, fmt.Errorf("commit seed batch: %w", err)
	}
	return out, nil
}

// PendingSync returns transactions not yet mirrored to the spreadsheet,
// oldest first.
func (r *SQLiteRepository) PendingSync(ctx context.Context, limit int) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT t.id, t.owner_id, t.kind, t.description, t.amount, t.occurred_at, t.category
		 FROM transactions t LEFT JOIN sheet_sync s ON s.transaction_id = t.id
		 WHERE s.transaction_id IS NULL
		 ORDER BY t.seq ASC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query pending sync: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// IsSynced reports whether the transaction already has a spreadsheet row.
func (r *SQLiteRepository) IsSynced(ctx context.Context, id string) (bool, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sheet_sync WHERE transaction_id = ?`, id).Scan(&n); err != nil {
		return false, fmt.Errorf("check sync state: %w", err)
	}
	return n > 0, nil
}

// MarkSynced records the spreadsheet reference for a transaction.
func (r *SQLiteRepository) MarkSynced(ctx context.Context, id, ref string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sheet_sync (transaction_id, sheets_ref) VALUES (?, ?)
		 ON CONFLICT (transaction_id) DO UPDATE SET sheets_ref = excluded.sheets_ref`, id, ref)
	if err != nil {
		return fmt.Errorf("mark synced: %w", err)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type scanner interface {
	Scan(dest ...any) error
}

func insertTransaction(ctx context.Context, db execer, t core.Transaction) (core.Transaction, error) {
	t.ID = uuid.NewString()
	t.Date = records.NormalizeTime(t.Date)
	_, err := db.ExecContext(ctx,
		`INSERT INTO transactions (id, owner_id, kind, description, amount, occurred_at, category)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.OwnerID, string(t.Kind), t.Description, t.Amount.String(), t.Date.Format(timestampLayout), t.Category)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}
	return t, nil
}

func insertAppointment(ctx context.Context, db execer, a core.Appointment) (core.Appointment, error) {
	a.ID = uuid.NewString()
	a.Date = records.NormalizeTime(a.Date)
	_, err := db.ExecContext(ctx,
		`INSERT INTO appointments (id, owner_id, title, occurred_at, start_time, end_time)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		a.ID, a.OwnerID, a.Title, a.Date.Format(timestampLayout), a.StartTime, a.EndTime)
	if err != nil {
		return core.Appointment{}, fmt.Errorf("insert appointment: %w", err)
	}
	return a, nil
}

func scanTransaction(row scanner) (core.Transaction, error) {
	var (
		t            core.Transaction
		kind, amount string
		date         string
	)
	if err := row.Scan(&t.ID, &t.OwnerID, &kind, &t.Description, &amount, &date, &t.Category); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Transaction{}, err
		}
		return core.Transaction{}, fmt.Errorf("scan transaction: %w", err)
	}
	t.Kind = core.Kind(kind)
	if !t.Kind.Valid() {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", t.ID, core.ErrInvalidKind)
	}
	m, err := core.ParseMoney(amount)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %s amount %q: %w", t.ID, amount, err)
	}
	t.Amount = m
	if t.Date, err = parseTimestamp(date); err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", t.ID, err)
	}
	return t, nil
}

func parseTimestamp(s string) (time.Time, error) {
	ts, err := time.Parse(timestampLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return ts.UTC(), nil
}
