// Package ledgertest holds the behaviour every ledger.Store must show. Store
// implementations call Run from their own tests.
package ledgertest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budgetapp/internal/core"
	"budgetapp/internal/fingerprint"
	"budgetapp/internal/ledger"
)

// Run exercises a fresh store returned by newStore for each subtest.
func Run(t *testing.T, newStore func(t *testing.T) ledger.Store) {
	t.Run("transactions", func(t *testing.T) { testTransactions(t, newStore(t)) })
	t.Run("categories cascade", func(t *testing.T) { testCategoryCascade(t, newStore(t)) })
	t.Run("budget upsert", func(t *testing.T) { testBudgetUpsert(t, newStore(t)) })
	t.Run("report upsert", func(t *testing.T) { testReportUpsert(t, newStore(t)) })
	t.Run("users", func(t *testing.T) { testUsers(t, newStore(t)) })
	t.Run("import commits", func(t *testing.T) { testImportCommits(t, newStore(t)) })
	t.Run("import is atomic", func(t *testing.T) { testImportAtomic(t, newStore(t)) })
	t.Run("unknown owner", func(t *testing.T) { testUnknownOwner(t, newStore(t)) })
}

func mustCategory(t *testing.T, s ledger.Store, name string, typ core.CategoryType) core.Category {
	t.Helper()
	c, err := s.CreateCategory(context.Background(), core.Category{Name: name, Type: typ})
	require.NoError(t, err)
	return c
}

func mustUser(t *testing.T, s ledger.Store, email string) core.User {
	t.Helper()
	u, err := s.CreateUser(context.Background(), core.User{Email: email, PasswordHash: "x"})
	require.NoError(t, err)
	return u
}

func testTransactions(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	owner := mustUser(t, s, "a@example.com")
	other := mustUser(t, s, "b@example.com")
	rent := mustCategory(t, s, "Rent", core.Expense)
	salary := mustCategory(t, s, "Salary", core.Income)

	first, err := s.CreateTransaction(ctx, core.Transaction{OwnerID: owner.ID, CategoryID: rent.ID, Date: core.NewDate(2024, 3, 1), Amount: core.Cents(10000), Description: "Rent"})
	require.NoError(t, err)
	assert.NotZero(t, first.ID)
	assert.Equal(t, fingerprint.Of(first.Date, first.Amount, "rent"), first.Fingerprint)

	second, err := s.CreateTransaction(ctx, core.Transaction{OwnerID: owner.ID, CategoryID: salary.ID, Date: core.NewDate(2024, 3, 1), Amount: core.Cents(50000), Description: "Pay"})
	require.NoError(t, err)
	_, err = s.CreateTransaction(ctx, core.Transaction{OwnerID: owner.ID, CategoryID: rent.ID, Date: core.NewDate(2024, 2, 1), Amount: core.Cents(9000), Description: "Old rent"})
	require.NoError(t, err)
	_, err = s.CreateTransaction(ctx, core.Transaction{OwnerID: other.ID, CategoryID: rent.ID, Date: core.NewDate(2024, 3, 2), Amount: core.Cents(1), Description: "Not mine"})
	require.NoError(t, err)

	entries, err := s.TransactionsFor(ctx, owner.ID, ledger.Query{})
	require.NoError(t, err)
	require.Len(t, entries, 3)
	// date desc, id desc
	assert.Equal(t, second.ID, entries[0].ID)
	assert.Equal(t, first.ID, entries[1].ID)
	assert.Equal(t, "Salary", entries[0].CategoryName)
	assert.Equal(t, core.Income, entries[0].CategoryType)

	march, err := s.TransactionsFor(ctx, owner.ID, ledger.Query{From: core.NewDate(2024, 3, 1), To: core.NewDate(2024, 3, 31)})
	require.NoError(t, err)
	assert.Len(t, march, 2)

	first.Description = "RENT march"
	first.Amount = core.Cents(11000)
	updated, err := s.UpdateTransaction(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, fingerprint.Of(first.Date, core.Cents(11000), "rent march"), updated.Fingerprint)

	require.NoError(t, s.SoftDeleteTransaction(ctx, owner.ID, first.ID))
	live, err := s.TransactionsFor(ctx, owner.ID, ledger.Query{})
	require.NoError(t, err)
	assert.Len(t, live, 2)
	all, err := s.TransactionsFor(ctx, owner.ID, ledger.Query{IncludeDeleted: true})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	err = s.SoftDeleteTransaction(ctx, other.ID, second.ID)
	assert.True(t, core.IsNotFound(err), "other owners cannot delete: %v", err)
	_, err = s.GetTransaction(ctx, owner.ID, 99999)
	assert.True(t, core.IsNotFound(err))
}

func testCategoryCascade(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	owner := mustUser(t, s, "a@example.com")
	misc := mustCategory(t, s, "Misc", core.Expense)
	keep := mustCategory(t, s, "Rent", core.Expense)

	_, err := s.CreateTransaction(ctx, core.Transaction{OwnerID: owner.ID, CategoryID: misc.ID, Date: core.NewDate(2024, 3, 1), Amount: core.Cents(100)})
	require.NoError(t, err)
	_, err = s.CreateTransaction(ctx, core.Transaction{OwnerID: owner.ID, CategoryID: keep.ID, Date: core.NewDate(2024, 3, 1), Amount: core.Cents(100)})
	require.NoError(t, err)
	_, err = s.UpsertBudget(ctx, owner.ID, misc.ID, core.Period{Year: 2024, Month: 3}, core.Cents(500))
	require.NoError(t, err)

	found, err := s.FindCategory(ctx, "  mIsC ", core.Expense)
	require.NoError(t, err)
	assert.Equal(t, misc.ID, found.ID)
	_, err = s.FindCategory(ctx, "misc", core.Income)
	assert.True(t, core.IsNotFound(err))

	_, err = s.CreateCategory(ctx, core.Category{Name: "MISC", Type: core.Expense})
	assert.True(t, core.IsConflict(err), "duplicate name+type: %v", err)

	require.NoError(t, s.DeleteCategory(ctx, misc.ID))

	entries, err := s.TransactionsFor(ctx, owner.ID, ledger.Query{IncludeDeleted: true})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Rent", entries[0].CategoryName)

	budgets, err := s.BudgetsFor(ctx, owner.ID, core.Period{Year: 2024, Month: 3})
	require.NoError(t, err)
	assert.Empty(t, budgets)

	assert.True(t, core.IsNotFound(s.DeleteCategory(ctx, misc.ID)))
}

func testBudgetUpsert(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	owner := mustUser(t, s, "a@example.com")
	rent := mustCategory(t, s, "Rent", core.Expense)
	dining := mustCategory(t, s, "Dining", core.Expense)
	march := core.Period{Year: 2024, Month: 3}

	b1, err := s.UpsertBudget(ctx, owner.ID, rent.ID, march, core.Cents(10000))
	require.NoError(t, err)
	b2, err := s.UpsertBudget(ctx, owner.ID, rent.ID, march, core.Cents(12000))
	require.NoError(t, err)
	assert.Equal(t, b1.ID, b2.ID, "same key must update in place")
	_, err = s.UpsertBudget(ctx, owner.ID, dining.ID, march, core.Cents(3000))
	require.NoError(t, err)
	_, err = s.UpsertBudget(ctx, owner.ID, dining.ID, core.Period{Year: 2024, Month: 4}, core.Cents(3000))
	require.NoError(t, err)

	lines, err := s.BudgetsFor(ctx, owner.ID, march)
	require.NoError(t, err)
	assert.Equal(t, []core.BudgetLine{
		{Category: "Rent", Amount: core.Cents(12000)},
		{Category: "Dining", Amount: core.Cents(3000)},
	}, lines)

	list, err := s.ListBudgets(ctx, owner.ID, march)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, march, list[0].Period)

	require.NoError(t, s.DeleteBudget(ctx, owner.ID, b1.ID))
	assert.True(t, core.IsNotFound(s.DeleteBudget(ctx, owner.ID, b1.ID)))

	_, err = s.UpsertBudget(ctx, owner.ID, 424242, march, core.Cents(1))
	assert.True(t, core.IsNotFound(err))
}

func testReportUpsert(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	owner := mustUser(t, s, "a@example.com")

	_, err := s.GetReport(ctx, owner.ID, "2024-03")
	assert.True(t, core.IsNotFound(err))

	first, err := s.UpsertReport(ctx, owner.ID, "2024-03", core.Summary{Period: "2024-03", Income: core.Cents(100)})
	require.NoError(t, err)
	second, err := s.UpsertReport(ctx, owner.ID, "2024-03", core.Summary{
		Period:      "2024-03",
		Income:      core.Cents(200),
		Balance:     core.Cents(-50),
		TopExpenses: []core.CategoryAmount{{Category: "Rent", Amount: core.Cents(250)}},
		Variance:    []core.Variance{{Category: "Rent", Spent: core.Cents(250), Budget: core.Cents(200), Delta: core.Cents(50)}},
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	got, err := s.GetReport(ctx, owner.ID, "2024-03")
	require.NoError(t, err)
	assert.Equal(t, core.Cents(200), got.Summary.Income)
	assert.Equal(t, core.Cents(-50), got.Summary.Balance)
	assert.Equal(t, core.Cents(50), got.Summary.Variance[0].Delta)
	assert.False(t, got.GeneratedAt.IsZero())

	_, err = s.UpsertReport(ctx, owner.ID, "2024-Q1", core.Summary{Period: "2024-Q1"})
	require.NoError(t, err)
	reports, err := s.ListReports(ctx, owner.ID)
	require.NoError(t, err)
	assert.Len(t, reports, 2)
}

func testUsers(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	u := mustUser(t, s, "Admin@Example.com")

	found, err := s.FindUserByEmail(ctx, "admin@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, found.ID)

	_, err = s.CreateUser(ctx, core.User{Email: "admin@example.com"})
	assert.True(t, core.IsConflict(err))

	byID, err := s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, u.Email, byID.Email)

	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func importRows() []ledger.ImportRow {
	return []ledger.ImportRow{
		{Line: 2, Date: core.NewDate(2024, 3, 1), Description: "Rent", Amount: core.Cents(10000), CategoryName: "rent", CategoryType: core.Expense},
		{Line: 3, Date: core.NewDate(2024, 3, 15), Description: "Coop", Amount: core.Cents(5000), CategoryName: "Groceries", CategoryType: core.Expense},
		{Line: 4, Date: core.NewDate(2024, 4, 1), Description: "Pay", Amount: core.Cents(50000), CategoryName: "Salary", CategoryType: core.Income},
		{Line: 5, Date: core.NewDate(2024, 3, 15), Description: "COOP", Amount: core.Cents(5000), CategoryName: "groceries", CategoryType: core.Expense},
	}
}

func testImportCommits(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	owner := mustUser(t, s, "a@example.com")
	mustCategory(t, s, "Rent", core.Expense)

	res, err := s.ImportBatch(ctx, owner.ID, "batch-1", importRows())
	require.NoError(t, err)
	assert.Equal(t, "batch-1", res.BatchID)
	assert.Equal(t, 4, res.Imported)
	assert.ElementsMatch(t, []string{"Groceries", "Salary"}, res.CreatedCategories)
	assert.Len(t, res.PossibleDuplicates, 1)
	assert.ElementsMatch(t, []string{"2024-03", "2024-04"}, res.Periods)

	cats, err := s.CategoriesAll(ctx)
	require.NoError(t, err)
	assert.Len(t, cats, 3)

	entries, err := s.TransactionsFor(ctx, owner.ID, ledger.Query{})
	require.NoError(t, err)
	require.Len(t, entries, 4)
	for _, e := range entries {
		assert.Equal(t, "batch-1", e.ImportBatch)
		assert.Equal(t, fingerprint.Of(e.Date, e.Amount, e.Description), e.Fingerprint)
	}

	again, err := s.ImportBatch(ctx, owner.ID, "batch-2", importRows()[:1])
	require.NoError(t, err)
	assert.Len(t, again.PossibleDuplicates, 1, "re-import flags the existing row")
	assert.Empty(t, again.CreatedCategories)
}

func testImportAtomic(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	owner := mustUser(t, s, "a@example.com")

	rows := importRows()
	rows = append(rows, ledger.ImportRow{Line: 6, Date: core.NewDate(2024, 3, 20), Description: "Broken", CategoryName: "Misc", CategoryType: core.Expense})

	_, err := s.ImportBatch(ctx, owner.ID, "batch-bad", rows)
	require.Error(t, err)
	assert.True(t, core.IsValidation(err), "got %v", err)

	entries, err := s.TransactionsFor(ctx, owner.ID, ledger.Query{IncludeDeleted: true})
	require.NoError(t, err)
	assert.Empty(t, entries, "zero rows committed")

	cats, err := s.CategoriesAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, cats, "categories created during the failed batch are rolled back")
}

func testUnknownOwner(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	const ghost = int64(999)
	rent := mustCategory(t, s, "Rent", core.Expense)

	_, err := s.CreateTransaction(ctx, core.Transaction{OwnerID: ghost, CategoryID: rent.ID, Date: core.NewDate(2024, 3, 1), Amount: core.Cents(100)})
	assert.True(t, core.IsNotFound(err), "create transaction: %v", err)

	_, err = s.UpsertBudget(ctx, ghost, rent.ID, core.Period{Year: 2024, Month: 3}, core.Cents(500))
	assert.True(t, core.IsNotFound(err), "upsert budget: %v", err)

	_, err = s.UpsertReport(ctx, ghost, "2024-03", core.Summary{Period: "2024-03"})
	assert.True(t, core.IsNotFound(err), "upsert report: %v", err)

	_, err = s.ImportBatch(ctx, ghost, "batch-ghost", importRows())
	assert.True(t, core.IsNotFound(err), "import: %v", err)

	entries, err := s.TransactionsFor(ctx, ghost, ledger.Query{IncludeDeleted: true})
	require.NoError(t, err)
	assert.Empty(t, entries)

	cats, err := s.CategoriesAll(ctx)
	require.NoError(t, err)
	assert.Len(t, cats, 1, "a rejected import creates no categories")
}
