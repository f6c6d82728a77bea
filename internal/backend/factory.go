package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"budgetapp/internal/amqp"
	"budgetapp/internal/ledger"
	"budgetapp/internal/ledger/memory"
	"budgetapp/internal/sheets"
	gsheet "budgetapp/internal/sheets/google"
	"budgetapp/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{logger: logger}
}

// CreateBackend opens the store and, when configured, the AMQP client and
// the Sheets mirror. Messaging and mirror failures are logged and the
// backend continues without them; store failures are fatal.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	store, err := f.createStore(config)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Store:  store,
		AMQP:   f.createAMQP(config),
		Mirror: f.createMirror(ctx, config),
	}
	res.Cleanup = func() error {
		var errs []error
		if res.AMQP != nil {
			errs = append(errs, res.AMQP.Close())
		}
		errs = append(errs, res.Store.Close())
		return errors.Join(errs...)
	}

	f.logger.Info("Initialized backend",
		"type", config.Type,
		"amqp_enabled", res.AMQP != nil,
		"sheets_mirror", config.GoogleSpreadsheetID != "")
	return res, nil
}

func (f *DefaultFactory) createStore(config Config) (ledger.Store, error) {
	switch config.Type {
	case SQLiteBackend:
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		f.logger.Info("Initialized SQLite store", "db_path", config.SQLiteDBPath)
		return repo, nil
	case MemoryBackend:
		f.logger.Warn("Using in-memory store, data is lost on restart")
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createAMQP(config Config) *amqp.Client {
	if config.AMQPURL == "" {
		return nil
	}
	client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
	if err != nil {
		f.logger.Warn("Failed to initialize AMQP client, continuing without report events", "error", err)
		return nil
	}
	f.logger.Info("Initialized AMQP client",
		"exchange", config.AMQPExchange,
		"queue", config.AMQPQueue)
	return client
}

func (f *DefaultFactory) createMirror(ctx context.Context, config Config) sheets.ReportMirror {
	if config.GoogleSpreadsheetID == "" {
		return sheets.NopMirror{}
	}
	client, err := gsheet.New(ctx, config.GoogleSpreadsheetID, config.GoogleReportsSheet)
	if err != nil {
		f.logger.Warn("Failed to initialize Google Sheets mirror, reports stay local", "error", err)
		return sheets.NopMirror{}
	}
	return client
}
