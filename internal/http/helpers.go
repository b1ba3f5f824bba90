package http

import (
	"context"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"strings"
	"time"

	"bizbalance/internal/core"
	applog "bizbalance/internal/log"
)

type ownerKey struct{}

// owned resolves the owner id before calling next. Requests without an
// identity get 401.
func (s *Server) owned(next func(http.ResponseWriter, *http.Request, string)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ownerID := s.resolveOwner(r)
		if ownerID == "" {
			applog.FromContext(r.Context()).WarnContext(r.Context(), "Request without identity",
				applog.FieldPath, r.URL.Path,
				"error_type", applog.ErrorTypeAuth)
			if wantsJSON(r) {
				writeJSONError(w, http.StatusUnauthorized, "unauthenticated")
				return
			}
			ErrorResponse(http.StatusUnauthorized, "Sessão não autenticada").Write(w)
			return
		}
		ctx := context.WithValue(r.Context(), ownerKey{}, ownerID)
		next(w, r.WithContext(ctx), ownerID)
	})
}

func (s *Server) resolveOwner(r *http.Request) string {
	if v := sanitizeInput(r.Header.Get(s.identity.Header)); v != "" {
		return v
	}
	return s.identity.DefaultOwnerID
}

// OwnerFromContext returns the owner resolved for the request, if any.
func OwnerFromContext(ctx context.Context) string {
	id, _ := ctx.Value(ownerKey{}).(string)
	return id
}

// isValidationError reports whether err stems from rejected input rather
// than a failing dependency.
func isValidationError(err error) bool {
	for _, target := range []error{
		core.ErrMissingOwner,
		core.ErrInvalidKind,
		core.ErrEmptyDescription,
		core.ErrNonPositiveAmount,
		core.ErrMissingDate,
		core.ErrEmptyCategory,
		core.ErrEmptyTitle,
		core.ErrMissingTime,
		core.ErrInvalidTime,
		core.ErrInvalidRole,
		errBadInput,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// validationMessage maps a rejected field to the text shown on the form.
func validationMessage(err error) string {
	switch {
	case errors.Is(err, core.ErrInvalidKind):
		return "Selecione receita ou despesa"
	case errors.Is(err, core.ErrEmptyDescription):
		return "Informe uma descrição"
	case errors.Is(err, core.ErrNonPositiveAmount):
		return "O valor deve ser positivo"
	case errors.Is(err, core.ErrMissingDate):
		return "Informe uma data válida"
	case errors.Is(err, core.ErrEmptyCategory):
		return "Informe uma categoria"
	case errors.Is(err, core.ErrEmptyTitle):
		return "Informe um título"
	case errors.Is(err, core.ErrMissingTime), errors.Is(err, core.ErrInvalidTime):
		return "Informe início e fim no formato HH:MM"
	default:
		return "Dados inválidos: " + err.Error()
	}
}

// wantsJSON is true for API clients; HTMX and plain form posts get HTML.
func wantsJSON(r *http.Request) bool {
	if r.Header.Get("HX-Request") == "true" {
		return false
	}
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// sanitizeInput removes control characters except tab and newlines and
// trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

var templateFuncs = template.FuncMap{
	"brl": func(m core.Money) string { return m.Currency(core.DisplayLanguage) },
	"date": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Format("02/01/2006")
	},
	"isRevenue": func(k core.Kind) bool { return k == core.Revenue },
	"negative":  func(m core.Money) bool { return m.IsNegative() },
}
