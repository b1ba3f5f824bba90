package boltdb

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"bizbalance/internal/core"
	"bizbalance/internal/records"
	"bizbalance/internal/records/recordstest"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "data", "bizbalance.bolt"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStoreContract(t *testing.T) {
	recordstest.Run(t, func(t *testing.T) records.Store { return openTemp(t) })
}

func TestRecordsSurviveReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bizbalance.bolt")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	ctx := context.Background()
	in, err := s.InsertTransaction(ctx, core.Transaction{
		OwnerID: "u1", Kind: core.Revenue, Description: "Invoice 12",
		Amount: core.MustMoney("1500.25"), Date: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), Category: "Freelance",
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	s, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	got, err := s.GetTransaction(ctx, "u1", in.ID)
	if err != nil {
		t.Fatalf("get after reopen: %v", err)
	}
	if !got.Amount.Equal(in.Amount) || got.Description != in.Description {
		t.Fatalf("unexpected record after reopen: %+v", got)
	}
}
