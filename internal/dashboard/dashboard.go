// Package dashboard shapes aggregation and budget results into the JSON
// documents the API serves.
package dashboard

import (
	"sort"
	"time"

	"budgetapp/internal/aggregate"
	"budgetapp/internal/budget"
	"budgetapp/internal/core"
)

// RecentLimit is how many transactions the overview lists.
const RecentLimit = 10

type (
	TransactionView struct {
		ID          int64             `json:"id"`
		Date        string            `json:"date"`
		Description string            `json:"description"`
		Amount      core.Money        `json:"amount"`
		Category    string            `json:"category"`
		CategoryID  int64             `json:"category_id"`
		Type        core.CategoryType `json:"type"`
		Tags        string            `json:"tags"`
		Deleted     bool              `json:"deleted,omitempty"`
		Fingerprint string            `json:"hash"`
	}

	Overview struct {
		Period string            `json:"period"`
		Totals core.Totals       `json:"totals"`
		Alerts []core.Alert      `json:"alerts"`
		Recent []TransactionView `json:"recent"`
	}

	NetPoint struct {
		Month string     `json:"month"`
		Net   core.Money `json:"net"`
	}

	IncomePoint struct {
		Month  string     `json:"month"`
		Income core.Money `json:"income"`
	}

	ExpensePoint struct {
		Month   string     `json:"month"`
		Expense core.Money `json:"expense"`
	}

	DailyView struct {
		Day        int        `json:"day"`
		SpentCum   core.Money `json:"spent_cum"`
		BudgetLine core.Money `json:"budget_line"`
	}

	SummaryData struct {
		Timeseries     []NetPoint            `json:"timeseries"`
		IncomeTS       []IncomePoint         `json:"income_ts"`
		ExpenseTS      []ExpensePoint        `json:"expense_ts"`
		Categories     []core.CategoryAmount `json:"categories"`
		CMCategories   []core.CategoryAmount `json:"cm_categories"`
		DailyCum       []DailyView           `json:"daily_cum"`
		BudgetTotal    core.Money            `json:"budget_total"`
		SpentTotal     core.Money            `json:"spent_total"`
		BudgetProgress []core.BudgetProgress `json:"budget_progress"`
	}

	ReportView struct {
		Period      string                `json:"period"`
		Income      core.Money            `json:"income"`
		Expense     core.Money            `json:"expense"`
		Balance     core.Money            `json:"balance"`
		Top         []core.CategoryAmount `json:"top"`
		Variance    []core.Variance       `json:"variance"`
		GeneratedAt time.Time             `json:"generated_at"`
	}
)

func Transaction(e core.LedgerEntry) TransactionView {
	return TransactionView{
		ID:          e.ID,
		Date:        e.Date.ISO(),
		Description: e.Description,
		Amount:      e.Amount,
		Category:    e.CategoryName,
		CategoryID:  e.CategoryID,
		Type:        e.CategoryType,
		Tags:        e.Tags,
		Deleted:     e.Deleted,
		Fingerprint: e.Fingerprint,
	}
}

func Transactions(entries []core.LedgerEntry) []TransactionView {
	out := make([]TransactionView, len(entries))
	for i, e := range entries {
		out[i] = Transaction(e)
	}
	return out
}

// BuildOverview computes all-time totals, the current month's budget alerts
// and the latest transactions.
func BuildOverview(entries []core.LedgerEntry, budgets []core.BudgetLine, today time.Time, threshold float64) Overview {
	period := core.PeriodOf(today)
	spent := aggregate.SpentByCategory(entries, period)

	recent := make([]core.LedgerEntry, 0, len(entries))
	for _, e := range entries {
		if !e.Deleted {
			recent = append(recent, e)
		}
	}
	sort.SliceStable(recent, func(i, j int) bool {
		if !recent[i].Date.Equal(recent[j].Date.Time) {
			return recent[i].Date.After(recent[j].Date.Time)
		}
		return recent[i].ID > recent[j].ID
	})
	if len(recent) > RecentLimit {
		recent = recent[:RecentLimit]
	}

	return Overview{
		Period: period.String(),
		Totals: aggregate.Totals(entries),
		Alerts: budget.Alerts(budgets, spent, threshold),
		Recent: Transactions(recent),
	}
}

// BuildSummary produces the chart data set. budgets are the current month's.
// A ledger without live entries yields empty lists and zero totals, budgets
// included.
func BuildSummary(entries []core.LedgerEntry, budgets []core.BudgetLine, today time.Time) SummaryData {
	if !hasLive(entries) {
		return emptySummary()
	}
	period := core.PeriodOf(today)
	series := aggregate.MonthlySeries(entries)

	data := SummaryData{
		Timeseries:   make([]NetPoint, len(series)),
		IncomeTS:     make([]IncomePoint, len(series)),
		ExpenseTS:    make([]ExpensePoint, len(series)),
		Categories:   aggregate.CategoryBreakdown(entries, core.Expense),
		CMCategories: aggregate.CategoryBreakdown(aggregate.InPeriod(entries, period), core.Expense),
		BudgetTotal:  budget.Total(budgets),
	}
	for i, mp := range series {
		data.Timeseries[i] = NetPoint{Month: mp.Month, Net: mp.Net}
		data.IncomeTS[i] = IncomePoint{Month: mp.Month, Income: mp.Income}
		data.ExpenseTS[i] = ExpensePoint{Month: mp.Month, Expense: mp.Expense}
	}

	days := period.DaysInMonth()
	pace := budget.PaceLine(data.BudgetTotal, days)
	cum := aggregate.CurrentMonthDailyCumulative(entries, today)
	data.DailyCum = make([]DailyView, len(cum))
	for i, p := range cum {
		data.DailyCum[i] = DailyView{Day: p.Day, SpentCum: p.SpentCum, BudgetLine: core.FromDecimal(pace(p.Day))}
	}

	spent := aggregate.SpentByCategory(entries, period)
	for _, c := range data.CMCategories {
		data.SpentTotal = data.SpentTotal.Add(c.Amount)
	}
	data.BudgetProgress = budget.Progress(budgets, spent)
	return data
}

func hasLive(entries []core.LedgerEntry) bool {
	for _, e := range entries {
		if !e.Deleted {
			return true
		}
	}
	return false
}

func emptySummary() SummaryData {
	return SummaryData{
		Timeseries:     []NetPoint{},
		IncomeTS:       []IncomePoint{},
		ExpenseTS:      []ExpensePoint{},
		Categories:     []core.CategoryAmount{},
		CMCategories:   []core.CategoryAmount{},
		DailyCum:       []DailyView{},
		BudgetProgress: []core.BudgetProgress{},
	}
}

func BuildReportView(r core.Report) ReportView {
	v := ReportView{
		Period:      r.Period,
		Income:      r.Summary.Income,
		Expense:     r.Summary.Expense,
		Balance:     r.Summary.Balance,
		Top:         r.Summary.TopExpenses,
		Variance:    r.Summary.Variance,
		GeneratedAt: r.GeneratedAt,
	}
	if v.Top == nil {
		v.Top = []core.CategoryAmount{}
	}
	if v.Variance == nil {
		v.Variance = []core.Variance{}
	}
	return v
}
