package services

import (
	"context"
	"fmt"
	"strings"

	"budgetapp/internal/core"
	"budgetapp/internal/ledger"
)

// BudgetView is a budget with its category name resolved.
type BudgetView struct {
	ID         int64      `json:"id"`
	CategoryID int64      `json:"category_id"`
	Category   string     `json:"category"`
	Period     string     `json:"period"`
	Amount     core.Money `json:"amount"`
}

// LedgerService handles manual edits of transactions, categories and budgets.
type LedgerService struct {
	store ledger.Store
	notifier
}

func NewLedgerService(store ledger.Store, publisher Publisher, cache Invalidator) *LedgerService {
	return &LedgerService{store: store, notifier: notifier{publisher: publisher, cache: cache}}
}

// Owner returns the user whose ledger id addresses.
func (s *LedgerService) Owner(ctx context.Context, id int64) (core.User, error) {
	return s.store.GetUser(ctx, id)
}

func (s *LedgerService) ListTransactions(ctx context.Context, owner int64, q ledger.Query) ([]core.LedgerEntry, error) {
	return s.store.TransactionsFor(ctx, owner, q)
}

func (s *LedgerService) GetTransaction(ctx context.Context, owner, id int64) (core.LedgerEntry, error) {
	return s.store.GetTransaction(ctx, owner, id)
}

// CreateTransaction validates t, stores it for owner and returns it with its
// category resolved.
func (s *LedgerService) CreateTransaction(ctx context.Context, owner int64, t core.Transaction) (core.LedgerEntry, error) {
	t.OwnerID = owner
	t.ID = 0
	t.ImportBatch = ""
	if err := t.Validate(); err != nil {
		return core.LedgerEntry{}, err
	}

	created, err := s.store.CreateTransaction(ctx, t)
	if err != nil {
		return core.LedgerEntry{}, fmt.Errorf("save transaction: %w", err)
	}

	s.changed(ctx, owner, "transaction", created.Date.Period().String())
	return s.store.GetTransaction(ctx, owner, created.ID)
}

// UpdateTransaction replaces the editable fields of an existing transaction.
// Both the old and the new month are refreshed.
func (s *LedgerService) UpdateTransaction(ctx context.Context, owner int64, t core.Transaction) (core.LedgerEntry, error) {
	t.OwnerID = owner
	if err := t.Validate(); err != nil {
		return core.LedgerEntry{}, err
	}

	prev, err := s.store.GetTransaction(ctx, owner, t.ID)
	if err != nil {
		return core.LedgerEntry{}, err
	}
	updated, err := s.store.UpdateTransaction(ctx, t)
	if err != nil {
		return core.LedgerEntry{}, fmt.Errorf("update transaction: %w", err)
	}

	s.changed(ctx, owner, "transaction", prev.Date.Period().String(), updated.Date.Period().String())
	return s.store.GetTransaction(ctx, owner, updated.ID)
}

func (s *LedgerService) DeleteTransaction(ctx context.Context, owner, id int64) error {
	prev, err := s.store.GetTransaction(ctx, owner, id)
	if err != nil {
		return err
	}
	if err := s.store.SoftDeleteTransaction(ctx, owner, id); err != nil {
		return err
	}
	s.changed(ctx, owner, "transaction", prev.Date.Period().String())
	return nil
}

func (s *LedgerService) Categories(ctx context.Context) ([]core.Category, error) {
	return s.store.CategoriesAll(ctx)
}

func (s *LedgerService) CreateCategory(ctx context.Context, name string, typ core.CategoryType) (core.Category, error) {
	c := core.Category{Name: strings.TrimSpace(name), Type: typ}
	if err := c.Validate(); err != nil {
		return core.Category{}, &core.ValidationError{Field: "category", Reason: err.Error()}
	}
	return s.store.CreateCategory(ctx, c)
}

// DeleteCategory removes the category with every transaction and budget that
// references it, for all owners.
func (s *LedgerService) DeleteCategory(ctx context.Context, id int64) error {
	if err := s.store.DeleteCategory(ctx, id); err != nil {
		return err
	}
	if s.cache != nil {
		s.cache.InvalidateAll()
	}
	return nil
}

func (s *LedgerService) Budgets(ctx context.Context, owner int64, period core.Period) ([]BudgetView, error) {
	budgets, err := s.store.ListBudgets(ctx, owner, period)
	if err != nil {
		return nil, err
	}
	cats, err := s.store.CategoriesAll(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[int64]string, len(cats))
	for _, c := range cats {
		names[c.ID] = c.Name
	}

	out := make([]BudgetView, len(budgets))
	for i, b := range budgets {
		out[i] = BudgetView{
			ID:         b.ID,
			CategoryID: b.CategoryID,
			Category:   names[b.CategoryID],
			Period:     b.Period.String(),
			Amount:     b.Amount,
		}
	}
	return out, nil
}

// SetBudget creates or replaces the owner's budget for a category and month.
func (s *LedgerService) SetBudget(ctx context.Context, owner, categoryID int64, period core.Period, amount core.Money) (core.Budget, error) {
	b := core.Budget{OwnerID: owner, CategoryID: categoryID, Period: period, Amount: amount}
	if err := b.Validate(); err != nil {
		return core.Budget{}, err
	}
	saved, err := s.store.UpsertBudget(ctx, owner, categoryID, period, amount)
	if err != nil {
		return core.Budget{}, err
	}
	s.changed(ctx, owner, "budget", period.String())
	return saved, nil
}

func (s *LedgerService) DeleteBudget(ctx context.Context, owner, id int64) error {
	if err := s.store.DeleteBudget(ctx, owner, id); err != nil {
		return err
	}
	if s.cache != nil {
		s.cache.Invalidate(owner)
	}
	return nil
}
