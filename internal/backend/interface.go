// Package backend builds the record store and the optional event publisher
// selected by configuration.
package backend

import (
	"context"

	"bizbalance/internal/records"
	"bizbalance/internal/services"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the store, the publisher (nil when AMQP is not
// configured) and a cleanup function releasing both.
type BackendResult struct {
	Backend   records.Store
	Publisher services.Publisher
	Cleanup   CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// Bolt specific
	BoltPath string

	// Event publishing, optional for every store
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

// BackendType represents the type of backend
type BackendType string

const (
	MemoryBackend BackendType = "memory"
	BoltBackend   BackendType = "bolt"
	SQLiteBackend BackendType = "sqlite"
)

func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case MemoryBackend, BoltBackend, SQLiteBackend:
		return true
	default:
		return false
	}
}

// Durable reports whether records survive a restart.
func (bt BackendType) Durable() bool {
	return bt == BoltBackend || bt == SQLiteBackend
}
