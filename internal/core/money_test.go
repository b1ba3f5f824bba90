package core

import (
	"encoding/json"
	"testing"

	"golang.org/x/text/language"
)

func TestParseMoney(t *testing.T) {
	cases := []struct {
		in  string
		out string
		ok  bool
	}{
		{"1", "1", true},
		{"1.0", "1", true},
		{"1.23", "1.23", true},
		{"1,23", "1.23", true},
		{"0.01", "0.01", true},
		{"75.50", "75.5", true},
		{" 2.50 ", "2.5", true},
		{"-1", "", false},
		{"+1", "", false},
		{"0", "", false},
		{"abc", "", false},
		{"1.2.3", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := ParseMoney(tc.in)
		if tc.ok {
			if err != nil || got.String() != tc.out {
				t.Fatalf("%q expected %s, got %s (err=%v)", tc.in, tc.out, got, err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error", tc.in)
		}
	}
}

func TestMoneyJSON(t *testing.T) {
	b, err := json.Marshal(struct {
		Amount Money `json:"amount"`
	}{MustMoney("75.50")})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `{"amount":75.5}` {
		t.Fatalf("unexpected json: %s", b)
	}

	for _, in := range []string{`{"amount":75.5}`, `{"amount":"75.50"}`} {
		var v struct {
			Amount Money `json:"amount"`
		}
		if err := json.Unmarshal([]byte(in), &v); err != nil {
			t.Fatalf("unmarshal %s: %v", in, err)
		}
		if !v.Amount.Equal(MustMoney("75.5")) {
			t.Fatalf("unexpected amount from %s: %s", in, v.Amount)
		}
	}
}

func TestMoneyFixed(t *testing.T) {
	if got := MustMoney("3").Fixed(); got != "3.00" {
		t.Fatalf("expected 3.00, got %s", got)
	}
}

func TestMoneyLocalized(t *testing.T) {
	tests := []struct {
		in   string
		tag  language.Tag
		want string
	}{
		{"1234.5", language.BrazilianPortuguese, "1.234,50"},
		{"1234.5", language.English, "1,234.50"},
		{"0.1", language.BrazilianPortuguese, "0,10"},
	}
	for _, tt := range tests {
		if got := MustMoney(tt.in).Localized(tt.tag); got != tt.want {
			t.Errorf("Localized(%s, %v) = %q, want %q", tt.in, tt.tag, got, tt.want)
		}
	}
	neg := MustMoney("10").Sub(MustMoney("30.25"))
	if got := neg.Currency(language.BrazilianPortuguese); got != "-R$ 20,25" {
		t.Errorf("Currency() = %q", got)
	}
}
