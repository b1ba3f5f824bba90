// Package csvio reads and writes the transaction CSV format.
//
// Export writes a fixed header and one row per transaction. Description and
// category are always double-quoted with inner quotes doubled; the other
// fields are never quoted. Import accepts files produced by Export in either
// language.
package csvio

import (
	"bufio"
	"io"
	"strings"

	"bizbalance/internal/core"
)

// Locale selects header and kind labels.
type Locale string

const (
	English    Locale = "en"
	Portuguese Locale = "pt"
)

type labels struct {
	header   []string
	revenue  string
	expense  string
	fileName string
}

var localeLabels = map[Locale]labels{
	English: {
		header:   []string{"ID", "Type", "Description", "Amount", "Date", "Category"},
		revenue:  "Revenue",
		expense:  "Expense",
		fileName: "transactions.csv",
	},
	Portuguese: {
		header:   []string{"ID", "Tipo", "Descricao", "Valor", "Data", "Categoria"},
		revenue:  "Receita",
		expense:  "Despesa",
		fileName: "transacoes.csv",
	},
}

// ParseLocale maps a lang query value to a Locale; anything unknown is English.
func ParseLocale(s string) Locale {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "pt" || strings.HasPrefix(s, "pt-") || strings.HasPrefix(s, "pt_") {
		return Portuguese
	}
	return English
}

func (l Locale) labels() labels {
	if lb, ok := localeLabels[l]; ok {
		return lb
	}
	return localeLabels[English]
}

// FileName is the suggested download name.
func (l Locale) FileName() string { return l.labels().fileName }

// Header returns the header columns for the locale.
func (l Locale) Header() []string {
	return append([]string(nil), l.labels().header...)
}

// KindLabel returns the label written for k.
func (l Locale) KindLabel(k core.Kind) string {
	lb := l.labels()
	if k == core.Revenue {
		return lb.revenue
	}
	return lb.expense
}

// Export writes txs in the given locale.
func Export(w io.Writer, txs []core.Transaction, loc Locale) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(strings.Join(loc.labels().header, ",") + "\n"); err != nil {
		return err
	}
	for _, t := range txs {
		if _, err := bw.WriteString(FormatRow(t, loc) + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// FormatRow renders one transaction without the trailing newline.
func FormatRow(t core.Transaction, loc Locale) string {
	return strings.Join([]string{
		t.ID,
		loc.KindLabel(t.Kind),
		quote(t.Description),
		t.Amount.String(),
		core.FormatDate(t.Date),
		quote(t.Category),
	}, ",")
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
