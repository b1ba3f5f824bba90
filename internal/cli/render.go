package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"bizbalance/internal/core"
)

var (
	ColorBorder = lipgloss.Color("#575653")
	ColorText   = lipgloss.Color("#FFFCF0")
	ColorAccent = lipgloss.Color("#3AA99F")
	ColorGreen  = lipgloss.Color("#879A39")
	ColorRed    = lipgloss.Color("#D14D41")
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorText).
			Align(lipgloss.Center)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorAccent)

	valueStyle   = lipgloss.NewStyle().Foreground(ColorText)
	revenueStyle = lipgloss.NewStyle().Foreground(ColorGreen)
	expenseStyle = lipgloss.NewStyle().Foreground(ColorRed)
	dimStyle     = lipgloss.NewStyle().Foreground(ColorBorder)
)

// Table is a bordered text table. The first column is left aligned, the
// others right aligned.
type Table struct {
	Title   string
	Headers []string
	Rows    [][]string
}

// RenderTitle renders a centered title in a rounded box.
func RenderTitle(title string) string {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorBorder).
		Width(48).
		Align(lipgloss.Center).
		Padding(0, 1).
		Render(titleStyle.Render(title))
}

// RenderTable renders t with box-drawing borders.
func RenderTable(t Table) string {
	numCols := len(t.Headers)
	if numCols == 0 && len(t.Rows) > 0 {
		numCols = len(t.Rows[0])
	}
	if numCols == 0 {
		return ""
	}

	widths := make([]int, numCols)
	for i, h := range t.Headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range t.Rows {
		for i := 0; i < numCols && i < len(row); i++ {
			if w := lipgloss.Width(row[i]); w > widths[i] {
				widths[i] = w
			}
		}
	}

	var b strings.Builder
	if t.Title != "" {
		b.WriteString("  " + headerStyle.Render(t.Title) + "\n")
	}

	rule := func(left, mid, right string) {
		b.WriteString(dimStyle.Render(left))
		for i, w := range widths {
			b.WriteString(dimStyle.Render(strings.Repeat("─", w+2)))
			if i < numCols-1 {
				b.WriteString(dimStyle.Render(mid))
			}
		}
		b.WriteString(dimStyle.Render(right) + "\n")
	}
	line := func(cells []string, style lipgloss.Style) {
		b.WriteString(dimStyle.Render("│"))
		for i := 0; i < numCols; i++ {
			cell := ""
			if i < len(cells) {
				cell = cells[i]
			}
			pad := strings.Repeat(" ", widths[i]-lipgloss.Width(cell))
			if i == 0 {
				b.WriteString(style.Render(" " + cell + pad + " "))
			} else {
				b.WriteString(style.Render(" " + pad + cell + " "))
			}
			if i < numCols-1 {
				b.WriteString(dimStyle.Render("│"))
			}
		}
		b.WriteString(dimStyle.Render("│") + "\n")
	}

	rule("╭", "┬", "╮")
	if len(t.Headers) > 0 {
		line(t.Headers, headerStyle)
		rule("├", "┼", "┤")
	}
	for _, row := range t.Rows {
		line(row, valueStyle)
	}
	rule("╰", "┴", "╯")
	return b.String()
}

// RenderSummary renders the dashboard totals and the expense breakdown.
func RenderSummary(owner string, txs []core.Transaction) string {
	s := core.Summarize(txs)

	profit := revenueStyle
	if s.Profit.IsNegative() {
		profit = expenseStyle
	}

	var b strings.Builder
	b.WriteString(RenderTitle("BizBalance · " + owner))
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "  %-10s %s\n", "Receita", revenueStyle.Render(s.Revenue.Currency(core.DisplayLanguage)))
	fmt.Fprintf(&b, "  %-10s %s\n", "Despesas", expenseStyle.Render(s.Expenses.Currency(core.DisplayLanguage)))
	fmt.Fprintf(&b, "  %-10s %s\n", "Lucro", profit.Render(s.Profit.Currency(core.DisplayLanguage)))
	fmt.Fprintf(&b, "  %-10s %d\n\n", "Transações", s.Count)

	byCat := core.ExpensesByCategory(txs)
	if len(byCat) > 0 {
		rows := make([][]string, 0, len(byCat))
		for _, c := range byCat {
			rows = append(rows, []string{c.Name, c.Amount.Currency(core.DisplayLanguage)})
		}
		b.WriteString(RenderTable(Table{
			Title:   "Despesas por categoria",
			Headers: []string{"Categoria", "Valor"},
			Rows:    rows,
		}))
	}
	return b.String()
}

// RenderTransactions renders up to limit transactions as a table; limit <= 0
// renders all of them.
func RenderTransactions(txs []core.Transaction, limit int) string {
	if limit > 0 && len(txs) > limit {
		txs = txs[:limit]
	}
	rows := make([][]string, 0, len(txs))
	for _, t := range txs {
		amount := t.Amount.Currency(core.DisplayLanguage)
		if t.Kind == core.Expense {
			amount = "-" + amount
		}
		rows = append(rows, []string{
			core.FormatDate(t.Date),
			t.Description,
			t.Category,
			amount,
		})
	}
	return RenderTable(Table{
		Title:   "Transações",
		Headers: []string{"Data", "Descrição", "Categoria", "Valor"},
		Rows:    rows,
	})
}
