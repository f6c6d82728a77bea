package core

// Totals is the income/expense/balance triple of a set of transactions.
type Totals struct {
	Income  Money `json:"income"`
	Expense Money `json:"expense"`
	Balance Money `json:"balance"`
}

// MonthPoint is one bucket of the monthly series.
type MonthPoint struct {
	Month   string `json:"month"` // YYYY-MM
	Income  Money  `json:"income"`
	Expense Money  `json:"expense"`
	Net     Money  `json:"net"`
}

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Category string `json:"category"`
	Amount   Money  `json:"amount"`
}

// DailyPoint is the cumulative expense at the end of a day of the month.
type DailyPoint struct {
	Day      int   `json:"day"`
	SpentCum Money `json:"spent_cum"`
}

type BudgetProgress struct {
	Category string  `json:"category"`
	Spent    Money   `json:"spent"`
	Budget   Money   `json:"budget"`
	Pct      float64 `json:"pct"`
}

type Alert struct {
	Category string `json:"category"`
	Spent    Money  `json:"spent"`
	Budget   Money  `json:"budget"`
}

// Variance is spent minus budget; positive means overspent.
type Variance struct {
	Category string `json:"category"`
	Spent    Money  `json:"spent"`
	Budget   Money  `json:"budget"`
	Delta    Money  `json:"delta"`
}

// Summary is the snapshot persisted for a report period.
type Summary struct {
	Period      string           `json:"period"`
	Income      Money            `json:"income"`
	Expense     Money            `json:"expense"`
	Balance     Money            `json:"balance"`
	TopExpenses []CategoryAmount `json:"top"`
	Variance    []Variance       `json:"variance"`
}
