package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"budgetapp/internal/core"
	"budgetapp/internal/fingerprint"
	"budgetapp/internal/importer"
	"budgetapp/internal/ledger"
)

// ImportService moves CSV files in and out of the ledger.
type ImportService struct {
	store ledger.Store
	notifier
	newBatchID func() string
}

func NewImportService(store ledger.Store, publisher Publisher, cache Invalidator) *ImportService {
	return &ImportService{
		store:      store,
		notifier:   notifier{publisher: publisher, cache: cache},
		newBatchID: uuid.NewString,
	}
}

// Import parses r and commits every row or none of them.
func (s *ImportService) Import(ctx context.Context, owner int64, r io.Reader) (ledger.ImportResult, error) {
	rows, err := importer.ParseCSV(r)
	if err != nil {
		return ledger.ImportResult{}, err
	}

	batchID := s.newBatchID()
	res, err := s.store.ImportBatch(ctx, owner, batchID, rows)
	if err != nil {
		return ledger.ImportResult{}, fmt.Errorf("import batch: %w", err)
	}

	slog.InfoContext(ctx, "CSV import completed",
		"owner_id", owner,
		"batch_id", res.BatchID,
		"imported", res.Imported,
		"created_categories", res.CreatedCategories,
		"possible_duplicates", len(res.PossibleDuplicates))

	s.changed(ctx, owner, "import", res.Periods...)
	return res, nil
}

// Export writes the owner's live transactions, newest first.
func (s *ImportService) Export(ctx context.Context, owner int64, w io.Writer) error {
	entries, err := s.store.TransactionsFor(ctx, owner, ledger.Query{})
	if err != nil {
		return fmt.Errorf("load transactions: %w", err)
	}
	return importer.Export(w, entries)
}

// DuplicateGroup is a set of live transactions sharing one fingerprint.
type DuplicateGroup struct {
	Fingerprint  string  `json:"hash"`
	Transactions []int64 `json:"transactions"`
}

// Duplicates reports fingerprints held by more than one live transaction.
func (s *ImportService) Duplicates(ctx context.Context, owner int64) ([]DuplicateGroup, error) {
	entries, err := s.store.TransactionsFor(ctx, owner, ledger.Query{})
	if err != nil {
		return nil, fmt.Errorf("load transactions: %w", err)
	}
	txs := make([]core.Transaction, len(entries))
	for i, e := range entries {
		txs[i] = e.Transaction
	}

	groups := fingerprint.Duplicates(txs)
	out := make([]DuplicateGroup, 0, len(groups))
	for _, h := range sortedKeys(groups) {
		out = append(out, DuplicateGroup{Fingerprint: h, Transactions: groups[h]})
	}
	return out, nil
}
