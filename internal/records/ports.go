// Package records defines the ports implemented by the record store adapters.
//
// Every store scopes records by owner id, returns lists sorted by date
// descending (ties keep insertion order) and assigns ids on insert.
package records

import (
	"context"
	"errors"

	"bizbalance/internal/core"
)

// ErrNotFound is returned when a record id does not exist for the owner.
var ErrNotFound = errors.New("record not found")

// Ports for outbound adapters.
type (
	TransactionStore interface {
		ListTransactions(ctx context.Context, ownerID string) ([]core.Transaction, error)
		InsertTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error)
	}

	AppointmentStore interface {
		ListAppointments(ctx context.Context, ownerID string) ([]core.Appointment, error)
		InsertAppointment(ctx context.Context, a core.Appointment) (core.Appointment, error)
	}

	// TransactionGetter resolves a single transaction, used by the sync worker.
	TransactionGetter interface {
		GetTransaction(ctx context.Context, ownerID, id string) (core.Transaction, error)
	}

	// Counter answers count-only queries so seeding never loads full lists.
	Counter interface {
		CountTransactions(ctx context.Context, ownerID string) (int, error)
		CountAppointments(ctx context.Context, ownerID string) (int, error)
	}

	// SeedWriter commits a batch atomically: either every record is stored or
	// none is.
	SeedWriter interface {
		SeedBatch(ctx context.Context, batch Batch) (Batch, error)
	}

	// Store is the full set of operations a backend provides.
	Store interface {
		TransactionStore
		AppointmentStore
		TransactionGetter
		Counter
		SeedWriter
	}
)

// Batch groups records written together by SeedBatch.
type Batch struct {
	Transactions []core.Transaction
	Appointments []core.Appointment
}

func (b Batch) Empty() bool {
	return len(b.Transactions) == 0 && len(b.Appointments) == 0
}

// Validate checks every record in the batch before anything is written.
func (b Batch) Validate() error {
	for _, t := range b.Transactions {
		if err := t.Validate(); err != nil {
			return err
		}
	}
	for _, a := range b.Appointments {
		if err := a.Validate(); err != nil {
			return err
		}
	}
	return nil
}
