// Package recordstest holds the behaviour every records.Store must share.
// Store packages call Run from their own tests.
package recordstest

import (
	"context"
	"errors"
	"testing"
	"time"

	"bizbalance/internal/core"
	"bizbalance/internal/records"
)

// Run exercises store against the common contract. newStore must return an
// empty store.
func Run(t *testing.T, newStore func(t *testing.T) records.Store) {
	t.Helper()

	t.Run("insert then list round trip", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		loc := time.FixedZone("BRT", -3*60*60)
		in := core.Transaction{
			OwnerID:     "owner-1",
			Kind:        core.Expense,
			Description: `Coffee "break"`,
			Amount:      core.MustMoney("75.50"),
			Date:        time.Date(2024, 5, 10, 9, 30, 0, 123456789, loc),
			Category:    "Office",
		}
		got, err := s.InsertTransaction(ctx, in)
		if err != nil {
			t.Fatalf("insert: %v", err)
		}
		if got.ID == "" {
			t.Fatal("insert should assign an id")
		}

		list, err := s.ListTransactions(ctx, "owner-1")
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(list) != 1 {
			t.Fatalf("expected 1 transaction, got %d", len(list))
		}
		out := list[0]
		if out.ID != got.ID || out.Description != in.Description || out.Category != in.Category || out.Kind != in.Kind {
			t.Fatalf("round trip mismatch: %+v vs %+v", out, in)
		}
		if !out.Amount.Equal(in.Amount) {
			t.Fatalf("amount mismatch: %s vs %s", out.Amount, in.Amount)
		}
		if !out.Date.Equal(in.Date) {
			t.Fatalf("date mismatch: %v vs %v", out.Date, in.Date)
		}
		if out.Date.Location() != time.UTC {
			t.Fatalf("expected UTC timestamp, got %v", out.Date.Location())
		}

		byID, err := s.GetTransaction(ctx, "owner-1", got.ID)
		if err != nil || byID.ID != got.ID {
			t.Fatalf("get: %+v %v", byID, err)
		}
		if _, err := s.GetTransaction(ctx, "owner-2", got.ID); !errors.Is(err, records.ErrNotFound) {
			t.Fatalf("expected ErrNotFound for other owner, got %v", err)
		}
	})

	t.Run("lists newest first and scoped by owner", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		dates := []time.Time{
			time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
			time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
		}
		for i, d := range dates {
			_, err := s.InsertTransaction(ctx, core.Transaction{
				OwnerID: "owner-1", Kind: core.Revenue, Description: "t",
				Amount: core.MustMoney("1"), Date: d, Category: "Other",
			})
			if err != nil {
				t.Fatalf("insert %d: %v", i, err)
			}
			_, err = s.InsertAppointment(ctx, core.Appointment{
				OwnerID: "owner-1", Title: "a", Date: d, StartTime: "09:00", EndTime: "10:00",
			})
			if err != nil {
				t.Fatalf("insert appointment %d: %v", i, err)
			}
		}
		_, err := s.InsertTransaction(ctx, core.Transaction{
			OwnerID: "owner-2", Kind: core.Revenue, Description: "other",
			Amount: core.MustMoney("1"), Date: dates[0], Category: "Other",
		})
		if err != nil {
			t.Fatalf("insert other owner: %v", err)
		}

		txs, err := s.ListTransactions(ctx, "owner-1")
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(txs) != len(dates) {
			t.Fatalf("expected %d, got %d", len(dates), len(txs))
		}
		for i := 1; i < len(txs); i++ {
			if txs[i].Date.After(txs[i-1].Date) {
				t.Fatalf("transactions not sorted by date desc at %d", i)
			}
		}
		aps, err := s.ListAppointments(ctx, "owner-1")
		if err != nil {
			t.Fatalf("list appointments: %v", err)
		}
		if len(aps) != len(dates) {
			t.Fatalf("expected %d appointments, got %d", len(dates), len(aps))
		}
		for i := 1; i < len(aps); i++ {
			if aps[i].Date.After(aps[i-1].Date) {
				t.Fatalf("appointments not sorted by date desc at %d", i)
			}
		}

		n, err := s.CountTransactions(ctx, "owner-1")
		if err != nil || n != len(dates) {
			t.Fatalf("count owner-1 = %d, %v", n, err)
		}
		n, err = s.CountTransactions(ctx, "owner-2")
		if err != nil || n != 1 {
			t.Fatalf("count owner-2 = %d, %v", n, err)
		}
		n, err = s.CountAppointments(ctx, "owner-2")
		if err != nil || n != 0 {
			t.Fatalf("count appointments owner-2 = %d, %v", n, err)
		}
	})

	t.Run("equal dates keep insertion order", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		d := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
		var ids []string
		for i := 0; i < 3; i++ {
			tx, err := s.InsertTransaction(ctx, core.Transaction{
				OwnerID: "owner-1", Kind: core.Expense, Description: "same day",
				Amount: core.MustMoney("2"), Date: d, Category: "Other",
			})
			if err != nil {
				t.Fatalf("insert: %v", err)
			}
			ids = append(ids, tx.ID)
		}
		txs, err := s.ListTransactions(ctx, "owner-1")
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		for i := range ids {
			if txs[i].ID != ids[i] {
				t.Fatalf("expected insertion order %v, got %s at %d", ids, txs[i].ID, i)
			}
		}
	})

	t.Run("rejects invalid records and missing owner", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		_, err := s.InsertTransaction(ctx, core.Transaction{OwnerID: "owner-1", Kind: core.Expense})
		if err == nil {
			t.Fatal("expected validation error")
		}
		if _, err := s.ListTransactions(ctx, ""); !errors.Is(err, core.ErrMissingOwner) {
			t.Fatalf("expected ErrMissingOwner, got %v", err)
		}
		if _, err := s.ListAppointments(ctx, ""); !errors.Is(err, core.ErrMissingOwner) {
			t.Fatalf("expected ErrMissingOwner, got %v", err)
		}
	})

	t.Run("seed batch is all or nothing", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		now := time.Now()

		bad := records.Batch{
			Transactions: []core.Transaction{core.SampleTransaction("owner-1", now)},
			Appointments: []core.Appointment{{OwnerID: "owner-1", Date: now}},
		}
		if _, err := s.SeedBatch(ctx, bad); err == nil {
			t.Fatal("expected error for invalid batch")
		}
		if n, _ := s.CountTransactions(ctx, "owner-1"); n != 0 {
			t.Fatalf("failed batch must not write, found %d transactions", n)
		}

		good := records.Batch{
			Transactions: []core.Transaction{core.SampleTransaction("owner-1", now)},
			Appointments: []core.Appointment{core.SampleAppointment("owner-1", now)},
		}
		out, err := s.SeedBatch(ctx, good)
		if err != nil {
			t.Fatalf("seed: %v", err)
		}
		if len(out.Transactions) != 1 || out.Transactions[0].ID == "" {
			t.Fatalf("seed should return stored transaction with id: %+v", out)
		}
		if len(out.Appointments) != 1 || out.Appointments[0].ID == "" {
			t.Fatalf("seed should return stored appointment with id: %+v", out)
		}
		if n, _ := s.CountTransactions(ctx, "owner-1"); n != 1 {
			t.Fatalf("expected 1 transaction, got %d", n)
		}
		if n, _ := s.CountAppointments(ctx, "owner-1"); n != 1 {
			t.Fatalf("expected 1 appointment, got %d", n)
		}
	})
}
