package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"bizbalance/internal/core"
)

func newParser(t *testing.T, contentType, body string) *RequestBodyParser {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set("Content-Type", contentType)
	p := NewRequestBodyParser(httptest.NewRecorder(), req)
	if err := p.Parse(); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return p
}

func TestRequestBodyParser(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		key         string
		want        string
		wantJSON    bool
	}{
		{"form value", "application/x-www-form-urlencoded", "description=Caf%C3%A9&amount=10", "description", "Café", false},
		{"json string", "application/json", `{"description":"  Rent  "}`, "description", "Rent", true},
		{"json number keeps digits", "application/json", `{"amount":75.50}`, "amount", "75.50", true},
		{"control characters stripped", "application/x-www-form-urlencoded", "description=a%00b", "description", "ab", false},
		{"missing key", "application/json", `{"a":"b"}`, "description", "", true},
		{"empty body", "application/x-www-form-urlencoded", "", "description", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newParser(t, tt.contentType, tt.body)
			if got := p.Get(tt.key); got != tt.want {
				t.Errorf("Get(%q) = %q, want %q", tt.key, got, tt.want)
			}
			if p.IsJSON() != tt.wantJSON {
				t.Errorf("IsJSON() = %v, want %v", p.IsJSON(), tt.wantJSON)
			}
		})
	}
}

func TestRequestBodyParser_InvalidJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"description":`))
	p := NewRequestBodyParser(httptest.NewRecorder(), req)
	if err := p.Parse(); err == nil {
		t.Fatal("expected error for truncated JSON")
	}
	if p.IsJSON() {
		t.Error("failed JSON must not report IsJSON")
	}
}

func TestParseTransaction(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr error
		check   func(t *testing.T, tx core.Transaction)
	}{
		{
			name: "valid form",
			body: "type=expense&description=Coffee&amount=75.5&date=2024-05-10&category=Office",
			check: func(t *testing.T, tx core.Transaction) {
				if tx.Kind != core.Expense || tx.Amount.String() != "75.5" || core.FormatDate(tx.Date) != "2024-05-10" {
					t.Errorf("unexpected transaction %+v", tx)
				}
				if tx.OwnerID != "owner-1" {
					t.Errorf("OwnerID = %q", tx.OwnerID)
				}
			},
		},
		{
			name: "comma decimal separator",
			body: "type=revenue&description=Job&amount=1200%2C50&date=2024-05-10&category=Freelance",
			check: func(t *testing.T, tx core.Transaction) {
				if tx.Amount.String() != "1200.5" {
					t.Errorf("Amount = %s", tx.Amount)
				}
			},
		},
		{name: "unknown kind", body: "type=gift&description=x&amount=1&date=2024-05-10&category=c", wantErr: core.ErrInvalidKind},
		{name: "zero amount", body: "type=expense&description=x&amount=0&date=2024-05-10&category=c", wantErr: core.ErrNonPositiveAmount},
		{name: "negative amount", body: "type=expense&description=x&amount=-3&date=2024-05-10&category=c", wantErr: core.ErrNonPositiveAmount},
		{name: "garbage amount", body: "type=expense&description=x&amount=abc&date=2024-05-10&category=c", wantErr: core.ErrNonPositiveAmount},
		{name: "missing date", body: "type=expense&description=x&amount=1&category=c", wantErr: core.ErrMissingDate},
		{name: "malformed date", body: "type=expense&description=x&amount=1&date=10/05/2024&category=c", wantErr: core.ErrMissingDate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newParser(t, "application/x-www-form-urlencoded", tt.body)
			tx, err := ParseTransaction(p, "owner-1")
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				if !isValidationError(err) {
					t.Errorf("%v should count as a validation error", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			tt.check(t, tx)
		})
	}
}

func TestParseAppointment_EndBeforeStartAccepted(t *testing.T) {
	p := newParser(t, "application/json", `{"title":"Review","date":"2024-06-01","start_time":"15:00","end_time":"09:00"}`)
	a, err := ParseAppointment(p, "owner-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := a.Validate(); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}
}

func TestParseConverse(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		p := newParser(t, "application/json", `{"history":[{"role":"model","text":"Olá"},{"role":"assistant","text":"x"}],"message":" How much? "}`)
		req, err := ParseConverse(p)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if req.Message != "How much?" || len(req.History) != 2 || req.History[1].Role != core.RoleModel {
			t.Errorf("unexpected request %+v", req)
		}
	})

	t.Run("form with history field", func(t *testing.T) {
		p := newParser(t, "application/x-www-form-urlencoded",
			"message=Oi&history="+`%5B%7B%22role%22%3A%22user%22%2C%22text%22%3A%22a%22%7D%5D`)
		req, err := ParseConverse(p)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(req.History) != 1 || req.History[0].Role != core.RoleUser {
			t.Errorf("unexpected history %+v", req.History)
		}
	})

	t.Run("unknown role", func(t *testing.T) {
		p := newParser(t, "application/json", `{"history":[{"role":"system","text":"x"}],"message":"hi"}`)
		if _, err := ParseConverse(p); !errors.Is(err, core.ErrInvalidRole) {
			t.Fatalf("error = %v, want ErrInvalidRole", err)
		}
	})
}

func TestRequireMethod(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if resp := RequireMethod(req, http.MethodGet, http.MethodHead); resp != nil {
		t.Error("GET should be allowed")
	}

	resp := RequirePOST(req)
	if resp == nil {
		t.Fatal("GET should be rejected by RequirePOST")
	}
	w := httptest.NewRecorder()
	resp.Write(w)
	if w.Code != http.StatusMethodNotAllowed || w.Header().Get("Allow") != "POST" {
		t.Errorf("got %d Allow=%q", w.Code, w.Header().Get("Allow"))
	}
}

func TestSanitizeInput(t *testing.T) {
	tests := map[string]string{
		"  hello  ":      "hello",
		"a\x00b\x07c":    "abc",
		"line1\nline2":   "line1\nline2",
		"tab\tseparated": "tab\tseparated",
	}
	for in, want := range tests {
		if got := sanitizeInput(in); got != want {
			t.Errorf("sanitizeInput(%q) = %q, want %q", in, got, want)
		}
	}
}
