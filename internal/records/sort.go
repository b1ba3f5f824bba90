package records

import (
	"sort"
	"time"

	"bizbalance/internal/core"
)

// SortTransactions orders newest date first. The sort is stable, so records
// passed in insertion order keep it on equal dates.
func SortTransactions(txs []core.Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		return txs[i].Date.After(txs[j].Date)
	})
}

// SortAppointments orders newest date first, stable on ties.
func SortAppointments(aps []core.Appointment) {
	sort.SliceStable(aps, func(i, j int) bool {
		return aps[i].Date.After(aps[j].Date)
	})
}

// NormalizeTime is the timestamp representation every store persists:
// UTC with the monotonic clock reading stripped.
func NormalizeTime(t time.Time) time.Time {
	return t.UTC().Round(0)
}
