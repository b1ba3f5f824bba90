package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"bizbalance/internal/core"
	"bizbalance/internal/records"
)

var _ records.Store = (*Store)(nil)

// Store keeps records in process memory. Slices are kept in insertion order;
// list calls sort a copy.
type Store struct {
	mu           sync.Mutex
	transactions []core.Transaction
	appointments []core.Appointment
}

func New() *Store {
	return &Store{}
}

func (s *Store) ListTransactions(_ context.Context, ownerID string) ([]core.Transaction, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, core.ErrMissingOwner
	}
	s.mu.Lock()
	out := make([]core.Transaction, 0)
	for _, t := range s.transactions {
		if t.OwnerID == ownerID {
			out = append(out, t)
		}
	}
	s.mu.Unlock()
	records.SortTransactions(out)
	return out, nil
}

func (s *Store) ListAppointments(_ context.Context, ownerID string) ([]core.Appointment, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, core.ErrMissingOwner
	}
	s.mu.Lock()
	out := make([]core.Appointment, 0)
	for _, a := range s.appointments {
		if a.OwnerID == ownerID {
			out = append(out, a)
		}
	}
	s.mu.Unlock()
	records.SortAppointments(out)
	return out, nil
}

// InsertTransaction stores the transaction and returns it with a new id.
func (s *Store) InsertTransaction(_ context.Context, t core.Transaction) (core.Transaction, error) {
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	t = prepareTransaction(t)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transactions = append(s.transactions, t)
	return t, nil
}

func (s *Store) InsertAppointment(_ context.Context, a core.Appointment) (core.Appointment, error) {
	if err := a.Validate(); err != nil {
		return core.Appointment{}, err
	}
	a = prepareAppointment(a)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appointments = append(s.appointments, a)
	return a, nil
}

func (s *Store) GetTransaction(_ context.Context, ownerID, id string) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.transactions {
		if t.OwnerID == ownerID && t.ID == id {
			return t, nil
		}
	}
	return core.Transaction{}, fmt.Errorf("transaction %s: %w", id, records.ErrNotFound)
}

func (s *Store) CountTransactions(_ context.Context, ownerID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.transactions {
		if t.OwnerID == ownerID {
			n++
		}
	}
	return n, nil
}

func (s *Store) CountAppointments(_ context.Context, ownerID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, a := range s.appointments {
		if a.OwnerID == ownerID {
			n++
		}
	}
	return n, nil
}

// SeedBatch validates the whole batch before taking the lock, so a batch is
// either fully visible or not at all.
func (s *Store) SeedBatch(_ context.Context, b records.Batch) (records.Batch, error) {
	if err := b.Validate(); err != nil {
		return records.Batch{}, fmt.Errorf("seed batch: %w", err)
	}
	var out records.Batch
	for _, t := range b.Transactions {
		out.Transactions = append(out.Transactions, prepareTransaction(t))
	}
	for _, a := range b.Appointments {
		out.Appointments = append(out.Appointments, prepareAppointment(a))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transactions = append(s.transactions, out.Transactions...)
	s.appointments = append(s.appointments, out.Appointments...)
	return out, nil
}

func prepareTransaction(t core.Transaction) core.Transaction {
	t.ID = uuid.NewString()
	t.Date = records.NormalizeTime(t.Date)
	return t
}

func prepareAppointment(a core.Appointment) core.Appointment {
	a.ID = uuid.NewString()
	a.Date = records.NormalizeTime(a.Date)
	return a
}
