package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultCategories is the suggested category list. It is not enforced.
var DefaultCategories = []string{
	"Salary",
	"Freelance",
	"Investment",
	"Rent",
	"Groceries",
	"Utilities",
	"Transportation",
	"Entertainment",
	"Healthcare",
	"Software",
	"Marketing",
	"Office Supplies",
	"Other",
}

// SampleTransaction is the example transaction written for a new owner.
func SampleTransaction(ownerID string, now time.Time) Transaction {
	return Transaction{
		OwnerID:     ownerID,
		Kind:        Revenue,
		Description: "Desenvolvimento de site",
		Amount:      Money{Amount: decimal.NewFromInt(120)},
		Date:        now,
		Category:    "Freelance",
	}
}

// SampleAppointment is the example appointment written for a new owner.
func SampleAppointment(ownerID string, now time.Time) Appointment {
	return Appointment{
		OwnerID:   ownerID,
		Title:     "Reunião de Alinhamento",
		Date:      now,
		StartTime: "10:00",
		EndTime:   "11:00",
	}
}
