package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Income  CategoryType = "income"
	Expense CategoryType = "expense"
)

type (
	CategoryType string

	Date struct {
		time.Time
	}

	User struct {
		ID           int64
		Email        string
		PasswordHash string
		IsAdmin      bool
		CreatedAt    time.Time
	}

	Category struct {
		ID       int64
		Name     string
		Type     CategoryType
		ParentID *int64 // reserved for hierarchy, ignored by aggregation
	}

	Transaction struct {
		ID          int64
		OwnerID     int64
		CategoryID  int64
		Date        Date
		Amount      Money
		Description string
		Tags        string
		Deleted     bool
		CreatedAt   time.Time
		Fingerprint string
		ImportBatch string
	}

	// LedgerEntry is a transaction with its category resolved, the unit the
	// aggregation functions work on.
	LedgerEntry struct {
		Transaction
		CategoryName string
		CategoryType CategoryType
	}

	Budget struct {
		ID         int64
		OwnerID    int64
		CategoryID int64
		Period     Period
		Amount     Money
	}

	// BudgetLine is a budget resolved to its category name.
	BudgetLine struct {
		Category string
		Amount   Money
	}

	Report struct {
		ID          int64
		OwnerID     int64
		Period      string
		Summary     Summary
		GeneratedAt time.Time
	}
)

const maxDescriptionLen = 500

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrEmptyCategory = errors.New("empty category name")
	ErrInvalidType   = errors.New("invalid category type")
	ErrInvalidPeriod = errors.New("invalid period")
)

// ParseCategoryType accepts "income" or "expense" in any case.
func ParseCategoryType(s string) (CategoryType, error) {
	switch CategoryType(strings.ToLower(strings.TrimSpace(s))) {
	case Income:
		return Income, nil
	case Expense:
		return Expense, nil
	}
	return "", ErrInvalidType
}

func (t CategoryType) Valid() bool {
	return t == Income || t == Expense
}

func (t CategoryType) String() string {
	return string(t)
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in UTC.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// ParseDate parses an ISO calendar date (YYYY-MM-DD).
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(s))
	if err != nil {
		return Date{}, err
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	return nil
}

// ISO formats the date as YYYY-MM-DD.
func (d Date) ISO() string {
	return d.Format(time.DateOnly)
}

// Period returns the calendar month the date falls in.
func (d Date) Period() Period {
	return Period{Year: d.Year(), Month: int(d.Month())}
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyCategory
	}
	if !c.Type.Valid() {
		return ErrInvalidType
	}
	return nil
}

func (t Transaction) Validate() error {
	if err := t.Date.Validate(); err != nil {
		return &ValidationError{Field: "date", Reason: err.Error()}
	}
	if err := t.Amount.Validate(); err != nil {
		return &ValidationError{Field: "amount", Reason: err.Error()}
	}
	if len(t.Description) > maxDescriptionLen {
		return &ValidationError{Field: "description", Reason: "too long (max 500 characters)"}
	}
	if t.CategoryID <= 0 {
		return &ValidationError{Field: "category", Reason: "category is required"}
	}
	return nil
}

func (b Budget) Validate() error {
	if b.CategoryID <= 0 {
		return &ValidationError{Field: "category", Reason: "category is required"}
	}
	if b.Period.IsZero() {
		return &ValidationError{Field: "period", Reason: ErrInvalidPeriod.Error()}
	}
	if b.Amount.Cents < 0 {
		return &ValidationError{Field: "amount", Reason: "budget cannot be negative"}
	}
	return nil
}
