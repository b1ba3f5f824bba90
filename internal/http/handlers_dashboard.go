package http

import (
	"net/http"
	"time"

	"bizbalance/internal/core"
	applog "bizbalance/internal/log"
)

// recentLimit caps the dashboard transaction table.
const recentLimit = 10

type dashboardData struct {
	Summary      core.Summary
	Transactions []core.Transaction
	Appointments []core.Appointment
	Categories   []string
	ByCategory   []core.CategoryAmount
	Today        string
	Greeting     string
	Owner        string
	LoadError    bool
}

// handleIndex renders the dashboard: summary cards, recent transactions,
// appointments and the chat widget. A failing store still renders the
// page with an error banner.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request, ownerID string) {
	if resp := RequireMethod(r, http.MethodGet, http.MethodHead); resp != nil {
		resp.Write(w)
		return
	}
	ctx := r.Context()
	logger := applog.FromContext(ctx)

	data := dashboardData{
		Today:    core.FormatDate(time.Now()),
		Greeting: core.Greeting,
		Owner:    ownerID,
	}

	txs, err := s.ledger.Transactions(ctx, ownerID)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to load transactions",
			applog.FieldError, err,
			applog.FieldOwnerID, ownerID,
			"error_type", applog.ErrorTypeDatabase)
		data.LoadError = true
	}
	data.Summary = core.Summarize(txs)
	data.ByCategory = core.ExpensesByCategory(txs)
	if len(txs) > recentLimit {
		txs = txs[:recentLimit]
	}
	data.Transactions = txs

	appts, err := s.ledger.Appointments(ctx, ownerID)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to load appointments",
			applog.FieldError, err,
			applog.FieldOwnerID, ownerID,
			"error_type", applog.ErrorTypeDatabase)
		data.LoadError = true
	}
	data.Appointments = appts
	data.Categories = s.ledger.Categories(ctx, ownerID)

	s.render(w, r, http.StatusOK, "index.html", data)
}

type summaryResponse struct {
	Revenue  core.Money `json:"revenue"`
	Expenses core.Money `json:"expenses"`
	Profit   core.Money `json:"profit"`
	Count    int        `json:"count"`
}

// handleSummary answers JSON totals, or the summary cards partial for HTMX.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request, ownerID string) {
	if resp := RequireMethod(r, http.MethodGet); resp != nil {
		resp.Write(w)
		return
	}
	txs, err := s.ledger.Transactions(r.Context(), ownerID)
	if err != nil {
		s.storeFailure(w, r, "Failed to compute summary", err, ownerID)
		return
	}
	sum := core.Summarize(txs)

	if r.Header.Get("HX-Request") == "true" {
		s.render(w, r, http.StatusOK, "summary_cards", dashboardData{
			Summary:    sum,
			ByCategory: core.ExpensesByCategory(txs),
		})
		return
	}
	writeJSON(w, http.StatusOK, summaryResponse{
		Revenue:  sum.Revenue,
		Expenses: sum.Expenses,
		Profit:   sum.Profit,
		Count:    sum.Count,
	})
}

// storeFailure logs err and answers 500 in the representation the client
// asked for.
func (s *Server) storeFailure(w http.ResponseWriter, r *http.Request, msg string, err error, ownerID string) {
	applog.FromContext(r.Context()).ErrorContext(r.Context(), msg,
		applog.FieldError, err,
		applog.FieldOwnerID, ownerID,
		applog.FieldPath, r.URL.Path,
		"error_type", applog.ErrorTypeDatabase)
	if wantsJSON(r) {
		writeJSONError(w, http.StatusInternalServerError, "internal error")
		return
	}
	InternalServerError("Erro ao acessar os dados. Tente novamente.").Write(w)
}
