package importer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"budgetapp/internal/core"
	"budgetapp/internal/fingerprint"
	"budgetapp/internal/ledger"
)

// CategoryResolver is the part of a category store reconciliation needs.
// Stores pass a resolver bound to their import transaction.
type CategoryResolver interface {
	FindCategory(ctx context.Context, name string, typ core.CategoryType) (core.Category, error)
	CreateCategory(ctx context.Context, c core.Category) (core.Category, error)
}

type Reconciled struct {
	Transactions      []core.Transaction
	CreatedCategories []string
}

// Reconcile resolves each row's category by case-insensitive name and type,
// creating missing categories once per batch, and builds fingerprinted
// transactions. Duplicates are not rejected.
func Reconcile(ctx context.Context, owner int64, batchID string, rows []ledger.ImportRow, resolver CategoryResolver) (Reconciled, error) {
	var out Reconciled
	resolved := make(map[string]int64)

	for _, row := range rows {
		key := strings.ToLower(row.CategoryName) + "|" + string(row.CategoryType)
		catID, ok := resolved[key]
		if !ok {
			cat, err := resolver.FindCategory(ctx, row.CategoryName, row.CategoryType)
			switch {
			case core.IsNotFound(err):
				cat, err = resolver.CreateCategory(ctx, core.Category{Name: row.CategoryName, Type: row.CategoryType})
				if err != nil {
					return Reconciled{}, fmt.Errorf("create category %q: %w", row.CategoryName, err)
				}
				out.CreatedCategories = append(out.CreatedCategories, cat.Name)
			case err != nil:
				return Reconciled{}, fmt.Errorf("find category %q: %w", row.CategoryName, err)
			}
			catID = cat.ID
			resolved[key] = catID
		}

		t := core.Transaction{
			OwnerID:     owner,
			CategoryID:  catID,
			Date:        row.Date,
			Amount:      row.Amount,
			Description: row.Description,
			Tags:        row.Tags,
			ImportBatch: batchID,
		}
		fingerprint.Stamp(&t)
		if err := t.Validate(); err != nil {
			var ve *core.ValidationError
			if errors.As(err, &ve) {
				ve.Line = row.Line
			}
			return Reconciled{}, err
		}
		out.Transactions = append(out.Transactions, t)
	}
	return out, nil
}

// PossibleDuplicates lists fingerprints of txs that already exist or repeat
// within txs, each once, in first-seen order.
func PossibleDuplicates(existing map[string]struct{}, txs []core.Transaction) []string {
	seen := make(map[string]struct{}, len(txs))
	flagged := make(map[string]struct{})
	out := make([]string, 0)
	for _, t := range txs {
		_, inLedger := existing[t.Fingerprint]
		_, inBatch := seen[t.Fingerprint]
		seen[t.Fingerprint] = struct{}{}
		if !inLedger && !inBatch {
			continue
		}
		if _, ok := flagged[t.Fingerprint]; ok {
			continue
		}
		flagged[t.Fingerprint] = struct{}{}
		out = append(out, t.Fingerprint)
	}
	return out
}

// Periods lists the distinct months touched by txs, in first-seen order.
func Periods(txs []core.Transaction) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, t := range txs {
		p := t.Date.Period().String()
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}
