package core

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func validTransaction() Transaction {
	return Transaction{
		OwnerID:     "u1",
		Kind:        Expense,
		Description: "ok",
		Amount:      MustMoney("1.00"),
		Date:        time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Category:    "Other",
	}
}

func TestTransactionValidate(t *testing.T) {
	if err := validTransaction().Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Transaction)
		want   error
	}{
		{"missing owner", func(tx *Transaction) { tx.OwnerID = " " }, ErrMissingOwner},
		{"bad kind", func(tx *Transaction) { tx.Kind = "transfer" }, ErrInvalidKind},
		{"empty description", func(tx *Transaction) { tx.Description = "" }, ErrEmptyDescription},
		{"zero amount", func(tx *Transaction) { tx.Amount = Money{} }, ErrNonPositiveAmount},
		{"negative amount", func(tx *Transaction) { tx.Amount = MustMoney("1").Sub(MustMoney("2")) }, ErrNonPositiveAmount},
		{"zero date", func(tx *Transaction) { tx.Date = time.Time{} }, ErrMissingDate},
		{"empty category", func(tx *Transaction) { tx.Category = "" }, ErrEmptyCategory},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tx := validTransaction()
			tc.mutate(&tx)
			if err := tx.Validate(); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestTransactionValidate_LongDescription(t *testing.T) {
	tx := validTransaction()
	tx.Description = strings.Repeat("ç", 150) + strings.Repeat("Manutenção mensal do servidor ", 20)
	if err := tx.Validate(); err != nil {
		t.Fatalf("free-text description rejected: %v", err)
	}
}

func TestAppointmentValidate(t *testing.T) {
	base := Appointment{
		OwnerID:   "u1",
		Title:     "Call",
		Date:      time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		StartTime: "10:00",
		EndTime:   "11:00",
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	// End before start is accepted.
	reversed := base
	reversed.StartTime, reversed.EndTime = "15:00", "09:00"
	if err := reversed.Validate(); err != nil {
		t.Fatalf("expected reversed times to be accepted, got %v", err)
	}

	bads := []struct {
		name string
		a    Appointment
		want error
	}{
		{"empty title", func() Appointment { a := base; a.Title = ""; return a }(), ErrEmptyTitle},
		{"missing end", func() Appointment { a := base; a.EndTime = ""; return a }(), ErrMissingTime},
		{"garbage time", func() Appointment { a := base; a.StartTime = "10h"; return a }(), ErrInvalidTime},
		{"zero date", func() Appointment { a := base; a.Date = time.Time{}; return a }(), ErrMissingDate},
	}
	for _, tc := range bads {
		if err := tc.a.Validate(); !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
}

func TestParseKind(t *testing.T) {
	cases := map[string]Kind{
		"revenue": Revenue,
		"Revenue": Revenue,
		"Receita": Revenue,
		"expense": Expense,
		"Despesa": Expense,
	}
	for in, want := range cases {
		got, err := ParseKind(in)
		if err != nil || got != want {
			t.Fatalf("ParseKind(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseKind("transfer"); !errors.Is(err, ErrInvalidKind) {
		t.Fatalf("expected ErrInvalidKind, got %v", err)
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-05-10")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if FormatDate(d) != "2024-05-10" {
		t.Fatalf("round trip mismatch: %s", FormatDate(d))
	}
	if _, err := ParseDate(""); !errors.Is(err, ErrMissingDate) {
		t.Fatalf("expected ErrMissingDate, got %v", err)
	}
	if _, err := ParseDate("10/05/2024"); err == nil {
		t.Fatalf("expected error for wrong layout")
	}
}

func TestSummarize(t *testing.T) {
	txs := []Transaction{
		{Kind: Revenue, Amount: MustMoney("120"), Category: "Freelance"},
		{Kind: Expense, Amount: MustMoney("75.50"), Category: "Office"},
		{Kind: Expense, Amount: MustMoney("60"), Category: "Rent"},
		{Kind: Expense, Amount: MustMoney("4.50"), Category: "Office"},
	}
	s := Summarize(txs)
	if s.Revenue.String() != "120" || s.Expenses.String() != "140" || s.Profit.String() != "-20" {
		t.Fatalf("unexpected summary: revenue=%s expenses=%s profit=%s", s.Revenue, s.Expenses, s.Profit)
	}
	if s.Count != 4 {
		t.Fatalf("expected count 4, got %d", s.Count)
	}

	byCat := ExpensesByCategory(txs)
	if len(byCat) != 2 || byCat[0].Name != "Office" || byCat[0].Amount.String() != "80" {
		t.Fatalf("unexpected breakdown: %+v", byCat)
	}
}

func TestSamples(t *testing.T) {
	now := time.Date(2025, 3, 4, 12, 0, 0, 0, time.UTC)
	tx := SampleTransaction("u1", now)
	if err := tx.Validate(); err != nil {
		t.Fatalf("sample transaction invalid: %v", err)
	}
	if tx.Kind != Revenue || tx.Amount.String() != "120" {
		t.Fatalf("unexpected sample transaction: %+v", tx)
	}
	ap := SampleAppointment("u1", now)
	if err := ap.Validate(); err != nil {
		t.Fatalf("sample appointment invalid: %v", err)
	}
}
