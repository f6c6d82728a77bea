package backend

import (
	"context"

	"budgetapp/internal/amqp"
	"budgetapp/internal/ledger"
	"budgetapp/internal/services"
	"budgetapp/internal/sheets"
)

// CleanupFunc releases the resources held by a Result.
type CleanupFunc func() error

// Result bundles the ledger store with its optional collaborators.
type Result struct {
	Store ledger.Store
	// AMQP is nil when no broker is configured or reachable.
	AMQP    *amqp.Client
	Mirror  sheets.ReportMirror
	Cleanup CleanupFunc
}

// Publisher returns the AMQP client as a services.Publisher, or a nil
// interface when messaging is disabled.
func (r *Result) Publisher() services.Publisher {
	if r.AMQP == nil {
		return nil
	}
	return r.AMQP
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*Result, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// Optional messaging
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Optional report mirror
	GoogleSpreadsheetID string
	GoogleReportsSheet  string
}

type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
