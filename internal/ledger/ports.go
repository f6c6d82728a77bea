// Package ledger defines the store the engine reads transactions, categories,
// budgets and reports from.
package ledger

import (
	"context"

	"budgetapp/internal/core"
)

// Query filters TransactionsFor. Zero From/To leave the range open.
type Query struct {
	IncludeDeleted bool
	From           core.Date
	To             core.Date
}

// ImportRow is a validated candidate transaction with its category still
// referenced by name and type.
type ImportRow struct {
	Line         int
	Date         core.Date
	Description  string
	Amount       core.Money
	CategoryName string
	CategoryType core.CategoryType
	Tags         string
}

// ImportResult describes a committed import batch.
type ImportResult struct {
	BatchID           string   `json:"batch_id"`
	Imported          int      `json:"imported"`
	CreatedCategories []string `json:"created_categories"`
	// PossibleDuplicates are fingerprints seen more than once, either within
	// the batch or against the existing ledger. Advisory only.
	PossibleDuplicates []string `json:"possible_duplicates"`
	Periods            []string `json:"periods"`
}

// Ports for outbound adapters.
type (
	TransactionReader interface {
		// TransactionsFor returns the owner's ledger ordered by date desc, id desc.
		TransactionsFor(ctx context.Context, owner int64, q Query) ([]core.LedgerEntry, error)
		GetTransaction(ctx context.Context, owner, id int64) (core.LedgerEntry, error)
	}

	TransactionWriter interface {
		CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error)
		UpdateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error)
		SoftDeleteTransaction(ctx context.Context, owner, id int64) error
	}

	CategoryStore interface {
		CategoriesAll(ctx context.Context) ([]core.Category, error)
		// FindCategory matches name case-insensitively together with type.
		FindCategory(ctx context.Context, name string, typ core.CategoryType) (core.Category, error)
		CreateCategory(ctx context.Context, c core.Category) (core.Category, error)
		// DeleteCategory removes the category together with its transactions
		// and budgets.
		DeleteCategory(ctx context.Context, id int64) error
	}

	BudgetStore interface {
		// BudgetsFor returns the owner's budgets for the period with category names resolved.
		BudgetsFor(ctx context.Context, owner int64, period core.Period) ([]core.BudgetLine, error)
		ListBudgets(ctx context.Context, owner int64, period core.Period) ([]core.Budget, error)
		UpsertBudget(ctx context.Context, owner, categoryID int64, period core.Period, amount core.Money) (core.Budget, error)
		DeleteBudget(ctx context.Context, owner, id int64) error
	}

	ReportStore interface {
		UpsertReport(ctx context.Context, owner int64, period string, summary core.Summary) (core.Report, error)
		GetReport(ctx context.Context, owner int64, period string) (core.Report, error)
		ListReports(ctx context.Context, owner int64) ([]core.Report, error)
	}

	UserStore interface {
		FindUserByEmail(ctx context.Context, email string) (core.User, error)
		GetUser(ctx context.Context, id int64) (core.User, error)
		CreateUser(ctx context.Context, u core.User) (core.User, error)
		ListUsers(ctx context.Context) ([]core.User, error)
	}

	// Importer commits a whole batch or nothing.
	Importer interface {
		ImportBatch(ctx context.Context, owner int64, batchID string, rows []ImportRow) (ImportResult, error)
	}

	Store interface {
		TransactionReader
		TransactionWriter
		CategoryStore
		BudgetStore
		ReportStore
		UserStore
		Importer
		Close() error
	}
)
