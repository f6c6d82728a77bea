// Package aggregate turns a ledger snapshot into totals, monthly series,
// category breakdowns and the current month's cumulative spend curve.
//
// Every function is pure and total: an empty or nil input yields zero totals
// and empty (non-nil) slices. Soft-deleted entries are always skipped.
package aggregate

import (
	"sort"
	"time"

	"budgetapp/internal/core"
)

// Totals sums amounts by category type.
func Totals(entries []core.LedgerEntry) core.Totals {
	var t core.Totals
	for _, e := range live(entries) {
		switch e.CategoryType {
		case core.Income:
			t.Income = t.Income.Add(e.Amount)
		case core.Expense:
			t.Expense = t.Expense.Add(e.Amount)
		}
	}
	t.Balance = t.Income.Sub(t.Expense)
	return t
}

// MonthlySeries buckets entries by calendar month, ascending. A month that
// only has expenses still appears with zero income, and vice versa.
func MonthlySeries(entries []core.LedgerEntry) []core.MonthPoint {
	buckets := make(map[core.Period]*core.MonthPoint)
	for _, e := range live(entries) {
		p := e.Date.Period()
		mp, ok := buckets[p]
		if !ok {
			mp = &core.MonthPoint{Month: p.String()}
			buckets[p] = mp
		}
		switch e.CategoryType {
		case core.Income:
			mp.Income = mp.Income.Add(e.Amount)
		case core.Expense:
			mp.Expense = mp.Expense.Add(e.Amount)
		}
	}

	out := make([]core.MonthPoint, 0, len(buckets))
	for _, mp := range buckets {
		mp.Net = mp.Income.Sub(mp.Expense)
		out = append(out, *mp)
	}
	// YYYY-MM sorts lexically in calendar order.
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out
}

// CategoryBreakdown sums entries of one type per category name, descending
// by amount. Ties keep the order in which categories were first seen.
func CategoryBreakdown(entries []core.LedgerEntry, typ core.CategoryType) []core.CategoryAmount {
	index := make(map[string]int)
	out := make([]core.CategoryAmount, 0)
	for _, e := range live(entries) {
		if e.CategoryType != typ {
			continue
		}
		i, ok := index[e.CategoryName]
		if !ok {
			i = len(out)
			index[e.CategoryName] = i
			out = append(out, core.CategoryAmount{Category: e.CategoryName})
		}
		out[i].Amount = out[i].Amount.Add(e.Amount)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Amount.Cents > out[j].Amount.Cents })
	return out
}

// SpentByCategory is the expense total per category name within period.
func SpentByCategory(entries []core.LedgerEntry, period core.Period) map[string]core.Money {
	spent := make(map[string]core.Money)
	for _, e := range live(entries) {
		if e.CategoryType != core.Expense || !period.Contains(e.Date) {
			continue
		}
		spent[e.CategoryName] = spent[e.CategoryName].Add(e.Amount)
	}
	return spent
}

// CurrentMonthDailyCumulative restricts to expenses in today's month and
// returns the running total per day that has activity. Days without
// transactions are absent, not zero-filled.
func CurrentMonthDailyCumulative(entries []core.LedgerEntry, today time.Time) []core.DailyPoint {
	period := core.PeriodOf(today)
	perDay := make(map[int]core.Money)
	for _, e := range live(entries) {
		if e.CategoryType != core.Expense || !period.Contains(e.Date) {
			continue
		}
		perDay[e.Date.Day()] = perDay[e.Date.Day()].Add(e.Amount)
	}

	days := make([]int, 0, len(perDay))
	for d := range perDay {
		days = append(days, d)
	}
	sort.Ints(days)

	out := make([]core.DailyPoint, 0, len(days))
	var running core.Money
	for _, d := range days {
		running = running.Add(perDay[d])
		out = append(out, core.DailyPoint{Day: d, SpentCum: running})
	}
	return out
}

// Periods lists the distinct YYYY-MM months present, most recent first.
func Periods(entries []core.LedgerEntry) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, e := range live(entries) {
		p := e.Date.Period().String()
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(out)))
	return out
}

// Between keeps entries dated within [from, to], inclusive.
func Between(entries []core.LedgerEntry, from, to core.Date) []core.LedgerEntry {
	out := make([]core.LedgerEntry, 0, len(entries))
	for _, e := range entries {
		if e.Date.Before(from.Time) || e.Date.After(to.Time) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// InPeriod keeps entries whose date falls in the given month.
func InPeriod(entries []core.LedgerEntry, period core.Period) []core.LedgerEntry {
	return Between(entries, period.Start(), period.End())
}

func live(entries []core.LedgerEntry) []core.LedgerEntry {
	out := entries[:0:0]
	for _, e := range entries {
		if !e.Deleted {
			out = append(out, e)
		}
	}
	return out
}
