package dashboard

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budgetapp/internal/core"
)

var today = time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC)

func entry(id int64, date string, cents int64, typ core.CategoryType, cat string) core.LedgerEntry {
	d, err := core.ParseDate(date)
	if err != nil {
		panic(err)
	}
	e := core.LedgerEntry{CategoryName: cat, CategoryType: typ}
	e.ID = id
	e.Date = d
	e.Amount = core.Cents(cents)
	return e
}

func ledger() []core.LedgerEntry {
	return []core.LedgerEntry{
		entry(1, "2024-02-10", 100000, core.Income, "Salary"),
		entry(2, "2024-02-11", 20000, core.Expense, "Rent"),
		entry(3, "2024-03-01", 100000, core.Income, "Salary"),
		entry(4, "2024-03-02", 30000, core.Expense, "Rent"),
		entry(5, "2024-03-05", 8000, core.Expense, "Groceries"),
		entry(6, "2024-03-05", 1000, core.Expense, "Groceries"),
	}
}

func TestBuildOverview(t *testing.T) {
	entries := ledger()
	deleted := entry(7, "2024-03-19", 99999, core.Expense, "Rent")
	deleted.Deleted = true
	entries = append(entries, deleted)

	budgets := []core.BudgetLine{{Category: "Rent", Amount: core.Cents(30000)}, {Category: "Groceries", Amount: core.Cents(50000)}}
	ov := BuildOverview(entries, budgets, today, 0.9)

	assert.Equal(t, "2024-03", ov.Period)
	assert.Equal(t, core.Cents(200000), ov.Totals.Income)
	assert.Equal(t, core.Cents(59000), ov.Totals.Expense)
	assert.Equal(t, core.Cents(141000), ov.Totals.Balance)
	require.Len(t, ov.Alerts, 1)
	assert.Equal(t, "Rent", ov.Alerts[0].Category)

	require.Len(t, ov.Recent, 6)
	assert.Equal(t, int64(6), ov.Recent[0].ID, "same day sorts by id desc")
	assert.Equal(t, int64(5), ov.Recent[1].ID)
	assert.Equal(t, int64(1), ov.Recent[5].ID)
}

func TestBuildOverview_RecentLimit(t *testing.T) {
	var entries []core.LedgerEntry
	for i := int64(1); i <= 15; i++ {
		entries = append(entries, entry(i, "2024-03-01", 100, core.Expense, "Misc"))
	}
	ov := BuildOverview(entries, nil, today, 0.9)
	assert.Len(t, ov.Recent, RecentLimit)
	assert.Equal(t, int64(15), ov.Recent[0].ID)
}

func TestBuildSummary(t *testing.T) {
	budgets := []core.BudgetLine{{Category: "Rent", Amount: core.Cents(31000)}, {Category: "Groceries", Amount: core.Cents(31000)}}
	s := BuildSummary(ledger(), budgets, today)

	require.Len(t, s.Timeseries, 2)
	assert.Equal(t, NetPoint{Month: "2024-02", Net: core.Cents(80000)}, s.Timeseries[0])
	assert.Equal(t, IncomePoint{Month: "2024-03", Income: core.Cents(100000)}, s.IncomeTS[1])
	assert.Equal(t, ExpensePoint{Month: "2024-03", Expense: core.Cents(39000)}, s.ExpenseTS[1])

	assert.Equal(t, []core.CategoryAmount{{Category: "Rent", Amount: core.Cents(50000)}, {Category: "Groceries", Amount: core.Cents(9000)}}, s.Categories)
	assert.Equal(t, core.Cents(30000), s.CMCategories[0].Amount)

	// 620.00 over 31 days is 20.00 a day.
	require.Len(t, s.DailyCum, 2)
	assert.Equal(t, DailyView{Day: 2, SpentCum: core.Cents(30000), BudgetLine: core.Cents(4000)}, s.DailyCum[0])
	assert.Equal(t, DailyView{Day: 5, SpentCum: core.Cents(39000), BudgetLine: core.Cents(10000)}, s.DailyCum[1])

	assert.Equal(t, core.Cents(62000), s.BudgetTotal)
	assert.Equal(t, core.Cents(39000), s.SpentTotal)
	require.Len(t, s.BudgetProgress, 2)
	assert.Equal(t, "Rent", s.BudgetProgress[0].Category)
	assert.Equal(t, 96.8, s.BudgetProgress[0].Pct)
	assert.Equal(t, 29.0, s.BudgetProgress[1].Pct)
}

func TestBuildSummary_EmptyLedgerSerialisesEmptyLists(t *testing.T) {
	s := BuildSummary(nil, nil, today)
	b, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"timeseries": [], "income_ts": [], "expense_ts": [],
		"categories": [], "cm_categories": [], "daily_cum": [],
		"budget_total": 0.00, "spent_total": 0.00, "budget_progress": []
	}`, string(b))
}

func TestBuildSummary_BudgetsWithoutEntriesStayEmpty(t *testing.T) {
	budgets := []core.BudgetLine{{Category: "Rent", Amount: core.Cents(31000)}}
	deleted := entry(1, "2024-03-02", 500, core.Expense, "Rent")
	deleted.Deleted = true

	for name, entries := range map[string][]core.LedgerEntry{"none": nil, "only deleted": {deleted}} {
		t.Run(name, func(t *testing.T) {
			s := BuildSummary(entries, budgets, today)
			assert.True(t, s.BudgetTotal.IsZero())
			assert.True(t, s.SpentTotal.IsZero())
			assert.NotNil(t, s.BudgetProgress)
			assert.Empty(t, s.BudgetProgress)
			assert.Empty(t, s.DailyCum)
		})
	}
}

func TestBuildReportView(t *testing.T) {
	at := time.Date(2024, 4, 1, 8, 0, 0, 0, time.UTC)
	v := BuildReportView(core.Report{Period: "2024-03", Summary: core.Summary{Income: core.Cents(100), Expense: core.Cents(350)}, GeneratedAt: at})

	b, err := json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"period": "2024-03", "income": 1.00, "expense": 3.50, "balance": 0.00,
		"top": [], "variance": [], "generated_at": "2024-04-01T08:00:00Z"
	}`, string(b))
}
