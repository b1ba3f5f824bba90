package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func decodeTriggers(t *testing.T, rr *httptest.ResponseRecorder) map[string]json.RawMessage {
	t.Helper()
	raw := rr.Header().Get("HX-Trigger")
	if raw == "" {
		return nil
	}
	var out map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		t.Fatalf("HX-Trigger is not JSON: %v (%s)", err, raw)
	}
	return out
}

func TestHTMXResponseBuilder_Triggers(t *testing.T) {
	tests := []struct {
		name  string
		build func(*HTMXResponseBuilder) *HTMXResponseBuilder
		want  map[string]string
	}{
		{
			name: "transaction created",
			build: func(b *HTMXResponseBuilder) *HTMXResponseBuilder {
				return b.TriggerTransactionCreated("expense").TriggerFormReset()
			},
			want: map[string]string{
				"transaction:created": `{"type":"expense"}`,
				"form:reset":          `{}`,
			},
		},
		{
			name: "appointment created",
			build: func(b *HTMXResponseBuilder) *HTMXResponseBuilder {
				return b.TriggerAppointmentCreated("2024-06-01")
			},
			want: map[string]string{"appointment:created": `{"date":"2024-06-01"}`},
		},
		{
			name: "import with skipped rows",
			build: func(b *HTMXResponseBuilder) *HTMXResponseBuilder {
				return b.TriggerTransactionsImported(3).TriggerNotification(NotificationWarning, "1 linha", 5000)
			},
			want: map[string]string{
				"transactions:imported": `{"count":3}`,
				"show-notification":     `{"duration":5000,"message":"1 linha","type":"warning"}`,
			},
		},
		{
			name: "success toast",
			build: func(b *HTMXResponseBuilder) *HTMXResponseBuilder {
				return b.TriggerSuccessNotification("Salvo")
			},
			want: map[string]string{"show-notification": `{"duration":3000,"message":"Salvo","type":"success"}`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			tt.build(NewHTMXResponse()).Write(rr)

			got := decodeTriggers(t, rr)
			if len(got) != len(tt.want) {
				t.Fatalf("triggers = %v, want %d entries", got, len(tt.want))
			}
			for name, payload := range tt.want {
				if string(got[name]) != payload {
					t.Errorf("%s = %s, want %s", name, got[name], payload)
				}
			}
		})
	}
}

func TestHTMXResponseBuilder_NoTriggers(t *testing.T) {
	rr := httptest.NewRecorder()
	NewHTMXResponse().Status(http.StatusCreated).Header("HX-Reswap", "none").Write(rr)

	if rr.Code != http.StatusCreated {
		t.Errorf("status = %d", rr.Code)
	}
	if rr.Header().Get("HX-Trigger") != "" {
		t.Error("HX-Trigger should be absent")
	}
	if rr.Header().Get("HX-Reswap") != "none" {
		t.Error("custom header lost")
	}
	if rr.Body.Len() != 0 {
		t.Errorf("body = %q, want empty", rr.Body.String())
	}
}

func TestErrorResponse(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusUnprocessableEntity, http.StatusTooManyRequests} {
		rr := httptest.NewRecorder()
		ErrorResponse(status, `Valor <b>inválido</b> & "negativo"`).Write(rr)

		if rr.Code != status {
			t.Errorf("status = %d, want %d", rr.Code, status)
		}
		if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
			t.Errorf("Content-Type = %q", ct)
		}
		body := rr.Body.String()
		if strings.Contains(body, "<b>") {
			t.Errorf("message not escaped: %s", body)
		}
		if !strings.HasPrefix(body, `<div class="error">`) || !strings.Contains(body, "&lt;b&gt;") {
			t.Errorf("unexpected fragment %s", body)
		}
	}

	rr := httptest.NewRecorder()
	InternalServerError("Erro").Write(rr)
	if rr.Code != http.StatusInternalServerError {
		t.Errorf("InternalServerError status = %d", rr.Code)
	}
}

func TestMethodNotAllowedError(t *testing.T) {
	rr := httptest.NewRecorder()
	MethodNotAllowedError("GET, POST").Write(rr)

	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d", rr.Code)
	}
	if got := rr.Header().Get("Allow"); got != "GET, POST" {
		t.Errorf("Allow = %q", got)
	}
}
