package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"bizbalance/internal/amqp"
	"bizbalance/internal/core"
	applog "bizbalance/internal/log"
	"bizbalance/internal/storage"
	"bizbalance/internal/worker"
)

type fakeMirror struct {
	mu  sync.Mutex
	ids []string
}

func (m *fakeMirror) AppendTransaction(_ context.Context, t core.Transaction) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ids = append(m.ids, t.ID)
	return fmt.Sprintf("Transactions!A%d:G%d", len(m.ids)+1, len(m.ids)+1), nil
}

func (m *fakeMirror) ListTransactionIDs(context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.ids...), nil
}

type consumerFunc func(ctx context.Context, handler amqp.Handler) error

func (f consumerFunc) Consume(ctx context.Context, handler amqp.Handler) error {
	return f(ctx, handler)
}

func newTransaction(desc string) core.Transaction {
	return core.Transaction{
		OwnerID:     "owner-1",
		Kind:        core.Expense,
		Description: desc,
		Amount:      core.MustMoney("10"),
		Date:        time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC),
		Category:    "Office",
	}
}

func TestRunSyncWorker(t *testing.T) {
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "worker.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository() error = %v", err)
	}
	defer repo.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	offline, err := repo.InsertTransaction(ctx, newTransaction("recorded while offline"))
	if err != nil {
		t.Fatal(err)
	}

	var live core.Transaction
	consumer := consumerFunc(func(ctx context.Context, handler amqp.Handler) error {
		var err error
		live, err = repo.InsertTransaction(ctx, newTransaction("recorded live"))
		if err != nil {
			return err
		}
		if err := handler(ctx, amqp.NewTransactionRecordedMessage(live.OwnerID, live.ID)); err != nil {
			return err
		}
		cancel()
		<-ctx.Done()
		return ctx.Err()
	})

	mirror := &fakeMirror{}
	cfg := worker.Config{BatchSize: 10, Interval: time.Hour}
	if err := RunSyncWorker(ctx, repo, mirror, consumer, cfg, applog.Discard()); err != nil {
		t.Fatalf("RunSyncWorker() error = %v", err)
	}

	if len(mirror.ids) != 2 || mirror.ids[0] != offline.ID || mirror.ids[1] != live.ID {
		t.Errorf("mirrored ids = %v, want [%s %s]", mirror.ids, offline.ID, live.ID)
	}
	for _, id := range []string{offline.ID, live.ID} {
		ok, err := repo.IsSynced(context.Background(), id)
		if err != nil || !ok {
			t.Errorf("IsSynced(%s) = %v, %v", id, ok, err)
		}
	}
}

func TestRunSyncWorker_ConsumerFailure(t *testing.T) {
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "worker.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository() error = %v", err)
	}
	defer repo.Close()

	boom := errors.New("channel closed")
	consumer := consumerFunc(func(context.Context, amqp.Handler) error { return boom })

	err = RunSyncWorker(context.Background(), repo, &fakeMirror{}, consumer,
		worker.Config{BatchSize: 1, Interval: time.Hour}, applog.Discard())
	if !errors.Is(err, boom) {
		t.Fatalf("RunSyncWorker() error = %v, want %v", err, boom)
	}
}
