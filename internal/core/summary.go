package core

// Summary holds the dashboard totals of a transaction list.
type Summary struct {
	Revenue  Money
	Expenses Money
	Profit   Money
	Count    int
}

// Summarize computes revenue, expenses and profit (revenue minus expenses).
// Profit may be negative.
func Summarize(txs []Transaction) Summary {
	var s Summary
	for _, t := range txs {
		switch t.Kind {
		case Revenue:
			s.Revenue = s.Revenue.Add(t.Amount)
		case Expense:
			s.Expenses = s.Expenses.Add(t.Amount)
		}
		s.Count++
	}
	s.Profit = s.Revenue.Sub(s.Expenses)
	return s
}

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string
	Amount Money
}

// ExpensesByCategory aggregates expense amounts by category, keeping the
// order in which categories first appear.
func ExpensesByCategory(txs []Transaction) []CategoryAmount {
	idx := map[string]int{}
	var out []CategoryAmount
	for _, t := range txs {
		if t.Kind != Expense {
			continue
		}
		i, ok := idx[t.Category]
		if !ok {
			i = len(out)
			idx[t.Category] = i
			out = append(out, CategoryAmount{Name: t.Category})
		}
		out[i].Amount = out[i].Amount.Add(t.Amount)
	}
	return out
}
