package http

import (
	"bytes"
	"errors"
	"html/template"
	"net/http"
	"strconv"

	"bizbalance/internal/core"
	"bizbalance/internal/csvio"
	applog "bizbalance/internal/log"
)

// maxImportBytes bounds uploaded CSV files.
const maxImportBytes = 5 << 20

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request, ownerID string) {
	switch r.Method {
	case http.MethodGet:
		s.handleListTransactions(w, r, ownerID)
	case http.MethodPost:
		s.handleCreateTransaction(w, r, ownerID)
	default:
		MethodNotAllowedError("GET, POST").Write(w)
	}
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request, ownerID string) {
	txs, err := s.ledger.Transactions(r.Context(), ownerID)
	if err != nil {
		s.storeFailure(w, r, "Failed to list transactions", err, ownerID)
		return
	}
	if wantsJSON(r) {
		if txs == nil {
			txs = []core.Transaction{}
		}
		writeJSON(w, http.StatusOK, txs)
		return
	}
	s.render(w, r, http.StatusOK, "transactions_list", dashboardData{Transactions: txs})
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request, ownerID string) {
	ctx := r.Context()
	logger := applog.FromContext(ctx)

	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		logger.WarnContext(ctx, "Unreadable transaction body", applog.FieldError, err)
		s.rejectInput(w, r, http.StatusBadRequest, "Formato de requisição inválido", err)
		return
	}

	t, err := ParseTransaction(p, ownerID)
	if err == nil {
		err = t.Validate()
	}
	if err != nil {
		logger.InfoContext(ctx, "Transaction rejected",
			applog.FieldError, err,
			applog.FieldOwnerID, ownerID,
			"error_type", applog.ErrorTypeValidation)
		s.rejectInput(w, r, http.StatusUnprocessableEntity, validationMessage(err), err)
		return
	}

	saved, err := s.ledger.RecordTransaction(ctx, t)
	if err != nil {
		if isValidationError(err) {
			s.rejectInput(w, r, http.StatusUnprocessableEntity, validationMessage(err), err)
			return
		}
		s.storeFailure(w, r, "Failed to save transaction", err, ownerID)
		return
	}
	s.appMetrics.transactionsCreated.Add(1)

	if wantsJSON(r) {
		writeJSON(w, http.StatusCreated, saved)
		return
	}
	NewHTMXResponse().
		Status(http.StatusCreated).
		TriggerTransactionCreated(string(saved.Kind)).
		TriggerFormReset().
		TriggerSuccessNotification("Transação registrada").
		BodyHTML(`<div class="success">Transação registrada: ` +
			template.HTMLEscapeString(saved.Description) + ` (` +
			template.HTMLEscapeString(saved.Amount.Currency(core.DisplayLanguage)) + `)</div>`).
		Write(w)
}

// rejectInput answers a 4xx with the message shown next to the form, or a
// JSON error for API clients.
func (s *Server) rejectInput(w http.ResponseWriter, r *http.Request, status int, msg string, err error) {
	if wantsJSON(r) {
		writeJSONError(w, status, err.Error())
		return
	}
	ErrorResponse(status, msg).Write(w)
}

// handleExport streams every transaction of the owner as CSV. The body is
// buffered so a store failure can still produce a 500.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request, ownerID string) {
	if resp := RequireMethod(r, http.MethodGet); resp != nil {
		resp.Write(w)
		return
	}
	loc := csvio.ParseLocale(r.URL.Query().Get("lang"))

	var buf bytes.Buffer
	if err := s.ledger.Export(r.Context(), ownerID, &buf, loc); err != nil {
		s.storeFailure(w, r, "Failed to export transactions", err, ownerID)
		return
	}

	applog.FromContext(r.Context()).InfoContext(r.Context(), "Transactions exported",
		applog.FieldOwnerID, ownerID,
		applog.FieldOperation, applog.OpExport,
		"locale", string(loc),
		"bytes", buf.Len())

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+loc.FileName()+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

type importLineError struct {
	Line  int    `json:"line"`
	Error string `json:"error"`
}

type importResponse struct {
	Imported int               `json:"imported"`
	Errors   []importLineError `json:"errors"`
}

// handleImport records the rows of an uploaded CSV file. Valid rows are kept
// even when others are rejected.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request, ownerID string) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	ctx := r.Context()

	r.Body = http.MaxBytesReader(w, r.Body, maxImportBytes)
	if err := r.ParseMultipartForm(maxImportBytes); err != nil {
		s.rejectInput(w, r, http.StatusBadRequest, "Envie um arquivo CSV", err)
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		s.rejectInput(w, r, http.StatusBadRequest, "Envie um arquivo CSV", err)
		return
	}
	defer file.Close()

	report, err := s.ledger.Import(ctx, ownerID, file)
	if err != nil {
		if errors.Is(err, csvio.ErrEmptyFile) || errors.Is(err, csvio.ErrUnknownHeader) {
			s.rejectInput(w, r, http.StatusUnprocessableEntity, "Arquivo CSV inválido: "+err.Error(), err)
			return
		}
		s.storeFailure(w, r, "Failed to import transactions", err, ownerID)
		return
	}
	s.appMetrics.rowsImported.Add(int64(report.Imported))

	resp := importResponse{Imported: report.Imported, Errors: []importLineError{}}
	for _, le := range report.Errors {
		resp.Errors = append(resp.Errors, importLineError{Line: le.Line, Error: le.Err.Error()})
	}

	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, resp)
		return
	}
	b := NewHTMXResponse()
	if report.Imported > 0 {
		b.TriggerTransactionsImported(report.Imported)
	}
	if n := len(report.Errors); n > 0 {
		b.TriggerNotification(NotificationWarning, strconv.Itoa(n)+" linha(s) ignorada(s) no CSV", 5000)
	}
	fallback := `<div class="success">` + strconv.Itoa(report.Imported) + ` transações importadas</div>`
	if s.templates == nil {
		b.BodyHTML(fallback).Write(w)
		return
	}
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, "import_result", resp); err != nil {
		s.logger.ErrorContext(ctx, "Template execution failed", applog.FieldError, err, "template", "import_result")
		b.BodyHTML(fallback)
	} else {
		b.BodyHTML(buf.String())
	}
	b.Write(w)
}
