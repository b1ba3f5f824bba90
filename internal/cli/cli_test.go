package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"bizbalance/internal/config"
	"bizbalance/internal/core"
)

func testConfig(t *testing.T, backend string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Defaults()
	cfg.DataBackend = backend
	cfg.DataDir = dir
	cfg.SQLiteDBPath = filepath.Join(dir, "bizbalance.db")
	cfg.BoltPath = filepath.Join(dir, "bizbalance.bolt")
	cfg.AIBackend = "none"
	return cfg
}

func TestSetupLogger(t *testing.T) {
	cfg := config.Defaults()
	cfg.LogFormat = "json"
	cfg.LogLevel = "warn"

	var buf bytes.Buffer
	logger, err := SetupLogger(cfg, &buf)
	if err != nil {
		t.Fatalf("SetupLogger() error = %v", err)
	}
	logger.Info("hidden")
	logger.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info record should be filtered at warn level")
	}
	if !strings.Contains(out, `"msg":"shown"`) {
		t.Errorf("expected JSON warn record, got %q", out)
	}

	cfg.LogLevel = "loud"
	if _, err := SetupLogger(cfg, &buf); err == nil {
		t.Error("unknown level should fail")
	}
}

func TestBuild(t *testing.T) {
	for _, backend := range []string{"memory", "bolt", "sqlite"} {
		t.Run(backend, func(t *testing.T) {
			ctx := context.Background()
			app, err := Build(ctx, testConfig(t, backend), nil)
			if err != nil {
				t.Fatalf("Build() error = %v", err)
			}
			defer func() {
				if err := app.Close(); err != nil {
					t.Errorf("Close() error = %v", err)
				}
			}()

			// First read seeds the owner.
			txs, err := app.Ledger.Transactions(ctx, "owner-1")
			if err != nil {
				t.Fatalf("Transactions() error = %v", err)
			}
			if len(txs) != 1 {
				t.Errorf("expected the seed transaction, got %d", len(txs))
			}
			if app.Assistant == nil {
				t.Error("assistant gateway should be wired")
			}
			if err := app.Ledger.Ready(ctx); err != nil {
				t.Errorf("Ready() error = %v", err)
			}
		})
	}
}

func TestBuild_WithoutAssistantAndCache(t *testing.T) {
	cfg := testConfig(t, "memory")
	cfg.CacheSize = 0
	app, err := Build(context.Background(), cfg, nil, WithoutAssistant())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	defer app.Close()

	if app.Assistant != nil {
		t.Error("assistant should be skipped")
	}
	app.StartCacheCleanup()
	if got := app.CacheStats(); got.Size != 0 || got.Hits != 0 {
		t.Errorf("CacheStats() = %+v, want zero", got)
	}
}

func TestBuild_MissingAPIKeyFallsBack(t *testing.T) {
	cfg := testConfig(t, "memory")
	cfg.AIBackend = "openai"
	cfg.AIAPIKey = ""
	app, err := Build(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	defer app.Close()

	if got := app.Assistant.Suggest(context.Background(), "Aluguel", []string{"Rent"}); got != "" {
		t.Errorf("Suggest() = %q, want empty fallback", got)
	}
}

func TestNewHTTPServer(t *testing.T) {
	cfg := testConfig(t, "memory")
	cfg.AuthUserHeader = "X-Forwarded-User"
	app, err := Build(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	defer app.Close()

	srv := NewHTTPServer(app)
	defer srv.Shutdown(context.Background())

	req := httptest.NewRequest(http.MethodGet, "/transactions", nil)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Forwarded-User", "owner-1")
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	var txs []core.Transaction
	if err := json.Unmarshal(rr.Body.Bytes(), &txs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(txs) != 1 || txs[0].OwnerID != "owner-1" {
		t.Errorf("unexpected transactions %+v", txs)
	}
}

func sampleTransactions() []core.Transaction {
	day := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)
	return []core.Transaction{
		{Kind: core.Revenue, Description: "Website project", Amount: core.MustMoney("1000"), Date: day, Category: "Services"},
		{Kind: core.Expense, Description: "Coffee", Amount: core.MustMoney("75.5"), Date: day, Category: "Office"},
		{Kind: core.Expense, Description: "Paper", Amount: core.MustMoney("24.5"), Date: day, Category: "Office"},
	}
}

func TestRenderSummary(t *testing.T) {
	out := RenderSummary("owner-1", sampleTransactions())
	for _, want := range []string{"owner-1", "R$ 1.000,00", "R$ 100,00", "R$ 900,00", "Office"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}

func TestRenderTransactions(t *testing.T) {
	out := RenderTransactions(sampleTransactions(), 2)
	if !strings.Contains(out, "Website project") || !strings.Contains(out, "-R$ 75,50") {
		t.Errorf("unexpected table:\n%s", out)
	}
	if strings.Contains(out, "Paper") {
		t.Error("limit should drop the third row")
	}
}

func TestRenderTable_Empty(t *testing.T) {
	if got := RenderTable(Table{}); got != "" {
		t.Errorf("RenderTable(empty) = %q", got)
	}
}
