// Package sheets defines the ports of the spreadsheet mirror.
package sheets

import (
	"context"

	"bizbalance/internal/core"
)

// Ports for outbound adapters.
type (
	// TransactionWriter appends one transaction as a spreadsheet row and
	// returns the written range.
	TransactionWriter interface {
		AppendTransaction(ctx context.Context, t core.Transaction) (rowRef string, err error)
	}

	// TransactionIDLister returns the ids already present in the sheet, used
	// to reconcile rows written before a crash.
	TransactionIDLister interface {
		ListTransactionIDs(ctx context.Context) ([]string, error)
	}

	Mirror interface {
		TransactionWriter
		TransactionIDLister
	}
)

// Header is the first row of the transactions sheet.
var Header = []string{"ID", "Owner", "Type", "Description", "Amount", "Date", "Category"}

// Row renders a transaction in Header order.
func Row(t core.Transaction) []any {
	return []any{
		t.ID,
		t.OwnerID,
		string(t.Kind),
		t.Description,
		t.Amount.String(),
		core.FormatDate(t.Date),
		t.Category,
	}
}
