package backend

import (
	"context"

	"expensetracker/internal/services"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// ReadyFunc reports whether the store behind a backend is reachable.
type ReadyFunc func(ctx context.Context) error

// BackendResult contains the ledger and the hooks the server needs around it.
type BackendResult struct {
	Ledger  *services.Ledger
	Ready   ReadyFunc
	Cleanup CleanupFunc
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

	// Postgres specific
	ConnectionString string

	// Optional change events
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

// BackendType names the store driver.
type BackendType string

const (
	SQLiteBackend   BackendType = "sqlite"
	PostgresBackend BackendType = "postgres"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, PostgresBackend:
		return true
	default:
		return false
	}
}
