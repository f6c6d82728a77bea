// Package budget compares spend against monthly budget targets.
package budget

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"budgetapp/internal/core"
)

// DefaultAlertThreshold is the share of a budget that raises an alert.
const DefaultAlertThreshold = 0.9

var hundred = decimal.NewFromInt(100)

// Progress reports spent, budget and percent used per budget line, sorted by
// percent used descending. A zero budget yields 0%.
func Progress(budgets []core.BudgetLine, spent map[string]core.Money) []core.BudgetProgress {
	out := make([]core.BudgetProgress, 0, len(budgets))
	for _, b := range budgets {
		s := spent[b.Category]
		out = append(out, core.BudgetProgress{
			Category: b.Category,
			Spent:    s,
			Budget:   b.Amount,
			Pct:      PercentUsed(s, b.Amount),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Pct > out[j].Pct })
	return out
}

// PercentUsed is spent/budget*100 rounded to one decimal place, or 0 when the
// budget is not positive.
func PercentUsed(spent, budget core.Money) float64 {
	if budget.Cents <= 0 {
		return 0
	}
	pct := spent.Decimal().Div(budget.Decimal()).Mul(hundred).Round(1)
	f, _ := pct.Float64()
	return f
}

// Alerts returns the budget lines where budget > 0 and spent >= threshold*budget.
func Alerts(budgets []core.BudgetLine, spent map[string]core.Money, threshold float64) []core.Alert {
	limit := decimal.NewFromFloat(threshold)
	out := make([]core.Alert, 0)
	for _, b := range budgets {
		if b.Amount.Cents <= 0 {
			continue
		}
		s := spent[b.Category]
		if s.Decimal().GreaterThanOrEqual(b.Amount.Decimal().Mul(limit)) {
			out = append(out, core.Alert{Category: b.Category, Spent: s, Budget: b.Amount})
		}
	}
	return out
}

// PaceLine returns the linear expected cumulative spend for a day index:
// total/daysInMonth*day. A non-positive day count gives a flat zero line.
func PaceLine(total core.Money, daysInMonth int) func(day int) decimal.Decimal {
	if daysInMonth <= 0 {
		return func(int) decimal.Decimal { return decimal.Zero }
	}
	perDay := total.Decimal().Div(decimal.NewFromInt(int64(daysInMonth)))
	return func(day int) decimal.Decimal {
		return perDay.Mul(decimal.NewFromInt(int64(day)))
	}
}

// PaceLineAt is PaceLine evaluated at day and rounded to cents.
func PaceLineAt(total core.Money, daysInMonth, day int) core.Money {
	return core.FromDecimal(PaceLine(total, daysInMonth)(day))
}

// DaysInMonth accounts for leap years.
func DaysInMonth(year int, month time.Month) int {
	return core.Period{Year: year, Month: int(month)}.DaysInMonth()
}

// Variance reports spent - budget per budget line, in budget order.
func Variance(budgets []core.BudgetLine, spent map[string]core.Money) []core.Variance {
	out := make([]core.Variance, 0, len(budgets))
	for _, b := range budgets {
		s := spent[b.Category]
		out = append(out, core.Variance{
			Category: b.Category,
			Spent:    s,
			Budget:   b.Amount,
			Delta:    s.Sub(b.Amount),
		})
	}
	return out
}

// Total sums every budget line.
func Total(budgets []core.BudgetLine) core.Money {
	var t core.Money
	for _, b := range budgets {
		t = t.Add(b.Amount)
	}
	return t
}

// Merge sums budget lines that share a category, keeping first-seen order.
// Quarter reports use it to fold three months of budgets together.
func Merge(lines ...[]core.BudgetLine) []core.BudgetLine {
	index := make(map[string]int)
	out := make([]core.BudgetLine, 0)
	for _, ls := range lines {
		for _, l := range ls {
			if i, ok := index[l.Category]; ok {
				out[i].Amount = out[i].Amount.Add(l.Amount)
				continue
			}
			index[l.Category] = len(out)
			out = append(out, l)
		}
	}
	return out
}
