// Package report composes aggregation and budget evaluation into the summary
// snapshot stored per owner and period.
package report

import (
	"budgetapp/internal/aggregate"
	"budgetapp/internal/budget"
	"budgetapp/internal/core"
)

// DefaultTopN is how many expense categories a summary lists.
const DefaultTopN = 3

// Generate builds the summary for period from the entries and budgets that
// belong to it. Callers pass entries already restricted to the period.
func Generate(period string, entries []core.LedgerEntry, budgets []core.BudgetLine) core.Summary {
	return GenerateTop(period, entries, budgets, DefaultTopN)
}

// GenerateTop is Generate with a custom number of top expense categories.
func GenerateTop(period string, entries []core.LedgerEntry, budgets []core.BudgetLine, n int) core.Summary {
	totals := aggregate.Totals(entries)

	top := aggregate.CategoryBreakdown(entries, core.Expense)
	if n >= 0 && len(top) > n {
		top = top[:n]
	}

	return core.Summary{
		Period:      period,
		Income:      totals.Income,
		Expense:     totals.Expense,
		Balance:     totals.Balance,
		TopExpenses: top,
		Variance:    budget.Variance(budgets, spentByCategory(entries)),
	}
}

// spentByCategory sums expenses over every entry given, whatever its month,
// so quarter summaries fold three months together.
func spentByCategory(entries []core.LedgerEntry) map[string]core.Money {
	spent := make(map[string]core.Money)
	for _, c := range aggregate.CategoryBreakdown(entries, core.Expense) {
		spent[c.Category] = c.Amount
	}
	return spent
}
