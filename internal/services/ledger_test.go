package services

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"bizbalance/internal/cache"
	"bizbalance/internal/core"
	"bizbalance/internal/csvio"
)

func newTestLedger(store *countingStore, opts ...LedgerOption) *Ledger {
	return NewLedger(store, NewSeeder(store, nil, time.Second), nil, opts...)
}

func expense(owner, desc, amount string, date time.Time, category string) core.Transaction {
	return core.Transaction{
		OwnerID: owner, Kind: core.Expense, Description: desc,
		Amount: core.MustMoney(amount), Date: date, Category: category,
	}
}

func TestLedgerTransactionsSeedsThenLists(t *testing.T) {
	store := newCountingStore()
	l := newTestLedger(store)

	txs, err := l.Transactions(context.Background(), "u1")
	if err != nil {
		t.Fatalf("transactions: %v", err)
	}
	if len(txs) != 1 || txs[0].Description != "Desenvolvimento de site" {
		t.Fatalf("expected the sample transaction, got %+v", txs)
	}
}

func TestLedgerRecordTransaction(t *testing.T) {
	store := newCountingStore()
	pub := &fakePublisher{}
	l := newTestLedger(store, WithPublisher(pub))
	ctx := context.Background()

	t.Run("validation error is returned", func(t *testing.T) {
		_, err := l.RecordTransaction(ctx, expense("u1", "", "10", time.Now(), "Other"))
		if !errors.Is(err, core.ErrEmptyDescription) {
			t.Fatalf("expected ErrEmptyDescription, got %v", err)
		}
	})

	t.Run("stored and published", func(t *testing.T) {
		stored, err := l.RecordTransaction(ctx, expense("u1", "Paper", "12.5", time.Now(), "Office Supplies"))
		if err != nil {
			t.Fatalf("record: %v", err)
		}
		if stored.ID == "" {
			t.Fatal("expected an id")
		}
		if len(pub.events) != 1 || pub.events[0] != "u1/"+stored.ID {
			t.Fatalf("unexpected events %v", pub.events)
		}
	})

	t.Run("publish failure does not fail the insert", func(t *testing.T) {
		pub.err = errBoom
		if _, err := l.RecordTransaction(ctx, expense("u1", "Ink", "3", time.Now(), "Office Supplies")); err != nil {
			t.Fatalf("publish failure leaked: %v", err)
		}
	})
}

func TestLedgerCacheInvalidatedOnInsert(t *testing.T) {
	store := newCountingStore()
	l := newTestLedger(store, WithTransactionCache(cache.NewLRUCache[[]core.Transaction](10, time.Minute)))
	ctx := context.Background()

	if _, err := l.Transactions(ctx, "u1"); err != nil {
		t.Fatal(err)
	}
	if _, err := l.Transactions(ctx, "u1"); err != nil {
		t.Fatal(err)
	}
	if store.lists.Load() != 1 {
		t.Fatalf("second read should hit the cache, store listed %d times", store.lists.Load())
	}

	if _, err := l.RecordTransaction(ctx, expense("u1", "Fuel", "40", time.Now().Add(time.Hour), "Transportation")); err != nil {
		t.Fatal(err)
	}
	txs, err := l.Transactions(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(txs) != 2 || txs[0].Description != "Fuel" {
		t.Fatalf("expected fresh list with newest first, got %+v", txs)
	}
}

func TestLedgerCacheIgnoresListOverlappingInsert(t *testing.T) {
	store := newCountingStore()
	l := newTestLedger(store, WithTransactionCache(cache.NewLRUCache[[]core.Transaction](10, time.Minute)))
	ctx := context.Background()

	if _, err := l.Transactions(ctx, "u1"); err != nil {
		t.Fatal(err)
	}

	// Drop the cached list, then hold the next read after its snapshot
	// while an insert lands.
	if _, err := l.RecordTransaction(ctx, expense("u1", "Fuel", "40", time.Now(), "Transportation")); err != nil {
		t.Fatal(err)
	}
	listed := make(chan struct{})
	release := make(chan struct{})
	store.afterList = func() {
		close(listed)
		<-release
	}
	done := make(chan error, 1)
	go func() {
		_, err := l.Transactions(ctx, "u1")
		done <- err
	}()

	<-listed
	if _, err := l.RecordTransaction(ctx, expense("u1", "Toll", "8", time.Now(), "Transportation")); err != nil {
		t.Fatal(err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	store.afterList = nil

	txs, err := l.Transactions(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(txs) != 3 {
		t.Fatalf("insert hidden by an older cached list: got %d transactions", len(txs))
	}
}

func TestLedgerDoesNotCacheWhileSeeding(t *testing.T) {
	store := newCountingStore()
	store.gate = make(chan struct{})
	seeder := NewSeeder(store, nil, time.Second)
	l := NewLedger(store, seeder, nil, WithTransactionCache(cache.NewLRUCache[[]core.Transaction](10, time.Minute)))

	// The caller gives up while the shared seed is blocked on the store.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	txs, err := l.Transactions(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(txs) != 0 {
		t.Fatalf("expected no records before the seed commits, got %d", len(txs))
	}

	close(store.gate)
	deadline := time.Now().Add(2 * time.Second)
	for !seeder.Seeded("u1") {
		if time.Now().After(deadline) {
			t.Fatal("seed did not finish")
		}
		time.Sleep(5 * time.Millisecond)
	}

	txs, err = l.Transactions(context.Background(), "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(txs) != 1 {
		t.Fatalf("empty list cached before seeding finished: got %d transactions", len(txs))
	}
}

func TestLedgerSummaryAndCategories(t *testing.T) {
	store := newCountingStore()
	l := newTestLedger(store)
	ctx := context.Background()

	if _, err := l.RecordTransaction(ctx, expense("u1", "Domain", "30.25", time.Now(), "Hosting")); err != nil {
		t.Fatal(err)
	}
	sum, err := l.Summary(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	// Sample revenue of 120 plus one expense.
	if sum.Revenue.String() != "120" || sum.Expenses.String() != "30.25" || sum.Profit.String() != "89.75" {
		t.Fatalf("unexpected summary %+v", sum)
	}

	cats := l.Categories(ctx, "u1")
	if cats[0] != "Salary" || cats[len(cats)-1] != "Hosting" {
		t.Fatalf("expected defaults followed by used categories, got %v", cats)
	}
}

func TestLedgerImportKeepsValidRows(t *testing.T) {
	store := newCountingStore()
	l := newTestLedger(store)
	in := strings.Join([]string{
		"ID,Tipo,Descricao,Valor,Data,Categoria",
		`9,Despesa,"Aluguel",900,2024-03-01,"Rent"`,
		`10,Receita,"Consultoria",0,2024-03-02,"Freelance"`,
		`11,Receita,"Projeto ""X""",1500.5,2024-03-03,"Freelance"`,
	}, "\n")

	report, err := l.Import(context.Background(), "u1", strings.NewReader(in))
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if report.Imported != 2 || len(report.Errors) != 1 || report.Errors[0].Line != 3 {
		t.Fatalf("unexpected report %+v", report)
	}

	var buf bytes.Buffer
	if err := l.Export(context.Background(), "u1", &buf, csvio.English); err != nil {
		t.Fatalf("export: %v", err)
	}
	if !strings.Contains(buf.String(), `,Revenue,"Projeto ""X""",1500.5,2024-03-03,"Freelance"`) {
		t.Fatalf("imported row missing from export:\n%s", buf.String())
	}
}

func TestLedgerRequiresOwner(t *testing.T) {
	l := newTestLedger(newCountingStore())
	if _, err := l.Transactions(context.Background(), ""); !errors.Is(err, core.ErrMissingOwner) {
		t.Fatalf("expected ErrMissingOwner, got %v", err)
	}
	if _, err := l.Import(context.Background(), "", strings.NewReader("")); !errors.Is(err, core.ErrMissingOwner) {
		t.Fatalf("expected ErrMissingOwner, got %v", err)
	}
}

func TestLedgerClose(t *testing.T) {
	t.Run("nil components", func(t *testing.T) {
		if err := NewLedger(nil, nil, nil).Close(); err != nil {
			t.Fatalf("Close should not fail without resources: %v", err)
		}
	})

	t.Run("aggregates errors", func(t *testing.T) {
		calls := 0
		l := NewLedger(nil, nil, nil, WithClosers(
			closerFunc(func() error { calls++; return errBoom }),
			closerFunc(func() error { calls++; return nil }),
		))
		err := l.Close()
		if !errors.Is(err, errBoom) || calls != 2 {
			t.Fatalf("expected both closers called and error joined, got %v after %d calls", err, calls)
		}
	})
}
