package worker

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"bizbalance/internal/amqp"
	"bizbalance/internal/core"
	"bizbalance/internal/records"
)

type fakeStore struct {
	mu      sync.Mutex
	txs     []core.Transaction
	synced  map[string]string
	markErr error
}

func newFakeStore(txs ...core.Transaction) *fakeStore {
	return &fakeStore{txs: txs, synced: map[string]string{}}
}

func (s *fakeStore) GetTransaction(_ context.Context, ownerID, id string) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.txs {
		if t.ID == id && t.OwnerID == ownerID {
			return t, nil
		}
	}
	return core.Transaction{}, records.ErrNotFound
}

func (s *fakeStore) PendingSync(_ context.Context, limit int) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Transaction
	for _, t := range s.txs {
		if _, ok := s.synced[t.ID]; !ok && len(out) < limit {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *fakeStore) IsSynced(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.synced[id]
	return ok, nil
}

func (s *fakeStore) MarkSynced(_ context.Context, id, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.markErr != nil {
		return s.markErr
	}
	s.synced[id] = ref
	return nil
}

type fakeMirror struct {
	mu       sync.Mutex
	appended []string
	existing []string
	failIDs  map[string]bool
}

func (m *fakeMirror) AppendTransaction(_ context.Context, t core.Transaction) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failIDs[t.ID] {
		return "", errors.New("quota exceeded")
	}
	m.appended = append(m.appended, t.ID)
	return "Transactions!A" + t.ID, nil
}

func (m *fakeMirror) ListTransactionIDs(context.Context) ([]string, error) {
	return m.existing, nil
}

func (m *fakeMirror) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.appended)
}

func tx(id string) core.Transaction {
	return core.Transaction{
		ID: id, OwnerID: "u1", Kind: core.Expense, Description: "Item " + id,
		Amount: core.MustMoney("10"), Date: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), Category: "Other",
	}
}

func TestHandleMessage(t *testing.T) {
	store := newFakeStore(tx("1"))
	mirror := &fakeMirror{}
	w := NewSyncWorker(store, mirror, Config{}, nil)
	ctx := context.Background()

	msg := amqp.NewTransactionRecordedMessage("u1", "1")
	if err := w.HandleMessage(ctx, msg); err != nil {
		t.Fatalf("handle: %v", err)
	}
	// Redelivery must not duplicate the row.
	if err := w.HandleMessage(ctx, msg); err != nil {
		t.Fatalf("handle again: %v", err)
	}
	if mirror.count() != 1 {
		t.Fatalf("expected one append, got %d", mirror.count())
	}
	if store.synced["1"] != "Transactions!A1" {
		t.Fatalf("unexpected ref %q", store.synced["1"])
	}

	// Unknown transactions are acknowledged and dropped.
	if err := w.HandleMessage(ctx, amqp.NewTransactionRecordedMessage("u1", "missing")); err != nil {
		t.Fatalf("unknown transaction should not fail: %v", err)
	}
	// Wrong owner reads as unknown as well.
	if err := w.HandleMessage(ctx, amqp.NewTransactionRecordedMessage("u2", "1")); err != nil {
		t.Fatalf("foreign owner should not fail: %v", err)
	}
}

func TestHandleMessageAppendFailureIsRetryable(t *testing.T) {
	store := newFakeStore(tx("1"))
	mirror := &fakeMirror{failIDs: map[string]bool{"1": true}}
	w := NewSyncWorker(store, mirror, Config{}, nil)

	if err := w.HandleMessage(context.Background(), amqp.NewTransactionRecordedMessage("u1", "1")); err == nil {
		t.Fatal("expected append error")
	}
	if ok, _ := store.IsSynced(context.Background(), "1"); ok {
		t.Fatal("failed append must stay pending")
	}
}

func TestProcessPending(t *testing.T) {
	store := newFakeStore(tx("1"), tx("2"), tx("3"))
	mirror := &fakeMirror{failIDs: map[string]bool{"2": true}}
	w := NewSyncWorker(store, mirror, Config{BatchSize: 10}, nil)

	n, err := w.ProcessPending(context.Background(), 10)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 synced, got %d", n)
	}
	pending, _ := store.PendingSync(context.Background(), 10)
	if len(pending) != 1 || pending[0].ID != "2" {
		t.Fatalf("expected only 2 pending, got %v", pending)
	}

	n, err = w.ProcessPending(context.Background(), 1)
	if err != nil || n != 0 {
		t.Fatalf("still failing row: n=%d err=%v", n, err)
	}
}

func TestStartupSyncCheckReconcilesExistingRows(t *testing.T) {
	store := newFakeStore(tx("1"), tx("2"), tx("3"))
	mirror := &fakeMirror{existing: []string{"1", "3"}}
	w := NewSyncWorker(store, mirror, Config{BatchSize: 1}, nil)

	if err := w.StartupSyncCheck(context.Background()); err != nil {
		t.Fatalf("startup: %v", err)
	}
	if mirror.count() != 1 || mirror.appended[0] != "2" {
		t.Fatalf("only the missing row should be appended, got %v", mirror.appended)
	}
	ids := make([]string, 0, len(store.synced))
	for id := range store.synced {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	if len(ids) != 3 {
		t.Fatalf("expected all rows synced, got %v", ids)
	}
	if store.synced["1"] != reconciledRef {
		t.Fatalf("reconciled row ref = %q", store.synced["1"])
	}
}

func TestMarkFailureStillCountsAsSynced(t *testing.T) {
	store := newFakeStore(tx("1"))
	store.markErr = errors.New("disk full")
	mirror := &fakeMirror{}
	w := NewSyncWorker(store, mirror, Config{}, nil)

	if err := w.HandleMessage(context.Background(), amqp.NewTransactionRecordedMessage("u1", "1")); err != nil {
		t.Fatalf("mark failure should be logged only: %v", err)
	}
	if mirror.count() != 1 {
		t.Fatalf("expected the row to be appended")
	}
}

func TestStartStop(t *testing.T) {
	store := newFakeStore(tx("1"))
	mirror := &fakeMirror{}
	w := NewSyncWorker(store, mirror, Config{Interval: 10 * time.Millisecond}, nil)
	ctx := context.Background()

	if w.IsRunning() {
		t.Fatal("worker should not be running initially")
	}
	if err := w.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := w.Start(ctx); err == nil {
		t.Fatal("expected error when starting twice")
	}

	deadline := time.Now().Add(2 * time.Second)
	for mirror.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if mirror.count() != 1 {
		t.Fatalf("poll loop did not sync pending row")
	}

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := w.Stop(stopCtx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if w.IsRunning() {
		t.Fatal("worker should be stopped")
	}
	if err := w.Stop(stopCtx); err != nil {
		t.Fatalf("second stop: %v", err)
	}
}
