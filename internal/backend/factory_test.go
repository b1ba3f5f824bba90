package backend

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"bizbalance/internal/config"
	"bizbalance/internal/core"
)

type fakePublisher struct {
	published []string
	closed    bool
}

func (p *fakePublisher) PublishTransactionRecorded(_ context.Context, _, id string) error {
	p.published = append(p.published, id)
	return nil
}

func (p *fakePublisher) Close() error {
	p.closed = true
	return nil
}

func TestFromAppConfig(t *testing.T) {
	cfg := config.Defaults()
	cfg.DataBackend = "bolt"
	cfg.BoltPath = "/tmp/x.bolt"
	cfg.AMQPURL = "amqp://localhost"

	got, err := FromAppConfig(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Type != BoltBackend || got.BoltPath != "/tmp/x.bolt" || got.AMQPQueue != cfg.AMQPQueue {
		t.Errorf("unexpected config %+v", got)
	}

	if _, err := FromAppConfig(nil); err == nil {
		t.Error("nil config should fail")
	}
	cfg.DataBackend = "sheets"
	if _, err := FromAppConfig(cfg); err == nil {
		t.Error("unknown backend should fail")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"memory", Config{Type: MemoryBackend}, false},
		{"sqlite without path", Config{Type: SQLiteBackend}, true},
		{"bolt without path", Config{Type: BoltBackend}, true},
		{"bolt", Config{Type: BoltBackend, BoltPath: "x.bolt"}, false},
		{"amqp without queue", Config{Type: MemoryBackend, AMQPURL: "amqp://h", AMQPExchange: "e"}, true},
		{"unknown", Config{Type: "csv"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCreateBackend_Stores(t *testing.T) {
	dir := t.TempDir()
	configs := []Config{
		{Type: MemoryBackend},
		{Type: BoltBackend, BoltPath: filepath.Join(dir, "nested", "b.bolt")},
		{Type: SQLiteBackend, SQLiteDBPath: filepath.Join(dir, "nested", "s.db")},
	}

	for _, cfg := range configs {
		t.Run(cfg.Type.String(), func(t *testing.T) {
			res, err := NewFactory(nil).CreateBackend(context.Background(), cfg)
			if err != nil {
				t.Fatalf("CreateBackend() error = %v", err)
			}
			defer func() {
				if err := res.Cleanup(); err != nil {
					t.Errorf("Cleanup() error = %v", err)
				}
			}()
			if res.Publisher != nil {
				t.Error("no publisher expected without AMQP URL")
			}

			tx := core.Transaction{
				OwnerID:     "owner-1",
				Kind:        core.Revenue,
				Description: "Consulting",
				Amount:      core.MustMoney("100"),
				Date:        time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
				Category:    "Services",
			}
			if _, err := res.Backend.InsertTransaction(context.Background(), tx); err != nil {
				t.Fatalf("InsertTransaction() error = %v", err)
			}
			n, err := res.Backend.CountTransactions(context.Background(), "owner-1")
			if err != nil || n != 1 {
				t.Errorf("CountTransactions() = %d, %v", n, err)
			}
		})
	}
}

func TestCreateBackend_Publisher(t *testing.T) {
	pub := &fakePublisher{}
	f := NewFactory(nil, WithPublisherDialer(func(url, exchange, queue string) (Publisher, error) {
		if url != "amqp://broker" || exchange != "ex" || queue != "q" {
			t.Errorf("dial(%q, %q, %q)", url, exchange, queue)
		}
		return pub, nil
	}))

	res, err := f.CreateBackend(context.Background(), Config{
		Type: MemoryBackend, AMQPURL: "amqp://broker", AMQPExchange: "ex", AMQPQueue: "q",
	})
	if err != nil {
		t.Fatalf("CreateBackend() error = %v", err)
	}
	if res.Publisher == nil {
		t.Fatal("expected publisher")
	}
	if err := res.Cleanup(); err != nil {
		t.Fatalf("Cleanup() error = %v", err)
	}
	if !pub.closed {
		t.Error("Cleanup should close the publisher")
	}
}

func TestCreateBackend_PublisherUnavailable(t *testing.T) {
	f := NewFactory(nil, WithPublisherDialer(func(string, string, string) (Publisher, error) {
		return nil, errors.New("connection refused")
	}))

	res, err := f.CreateBackend(context.Background(), Config{
		Type: MemoryBackend, AMQPURL: "amqp://broker", AMQPExchange: "ex", AMQPQueue: "q",
	})
	if err != nil {
		t.Fatalf("broker failure must not fail the backend: %v", err)
	}
	if res.Publisher != nil {
		t.Error("publisher should be nil when the broker is unreachable")
	}
	if err := res.Cleanup(); err != nil {
		t.Errorf("Cleanup() error = %v", err)
	}
}
