package core

import (
	"errors"
	"testing"
	"time"
)

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2025, 1, 1), true},
		{NewDate(2024, 2, 29), true},
		{Date{Time: time.Time{}}, false}, // zero time
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate(" 2024-03-15 ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.ISO() != "2024-03-15" {
		t.Fatalf("got %s", d.ISO())
	}
	for _, bad := range []string{"", "2024-02-30", "15/03/2024", "2024-13-01"} {
		if _, err := ParseDate(bad); err == nil {
			t.Fatalf("%q expected error", bad)
		}
	}
}

func TestParseCategoryType(t *testing.T) {
	cases := map[string]CategoryType{"income": Income, " Expense ": Expense, "INCOME": Income}
	for in, want := range cases {
		got, err := ParseCategoryType(in)
		if err != nil || got != want {
			t.Fatalf("%q: got %q, %v", in, got, err)
		}
	}
	if _, err := ParseCategoryType("transfer"); !errors.Is(err, ErrInvalidType) {
		t.Fatalf("expected ErrInvalidType, got %v", err)
	}
}

func TestTransactionValidate(t *testing.T) {
	good := Transaction{
		CategoryID:  1,
		Date:        NewDate(2025, 1, 1),
		Description: "ok",
		Amount:      Money{Cents: 100},
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bad := good
	bad.Amount = Money{}
	if err := bad.Validate(); !IsValidation(err) {
		t.Fatalf("expected validation error for zero amount, got %v", err)
	}

	bad = good
	bad.CategoryID = 0
	if err := bad.Validate(); !IsValidation(err) {
		t.Fatalf("expected validation error for missing category, got %v", err)
	}

	// An empty description is allowed; imports require one, manual entry does not.
	empty := good
	empty.Description = ""
	if err := empty.Validate(); err != nil {
		t.Fatalf("expected ok for empty description, got %v", err)
	}
}

func TestBudgetValidate(t *testing.T) {
	b := Budget{CategoryID: 3, Period: Period{Year: 2024, Month: 3}, Amount: Money{}}
	if err := b.Validate(); err != nil {
		t.Fatalf("zero budget should be valid: %v", err)
	}
	b.Amount = Money{Cents: -1}
	if err := b.Validate(); !IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	b = Budget{CategoryID: 3, Amount: Money{Cents: 100}}
	if err := b.Validate(); !IsValidation(err) {
		t.Fatalf("expected validation error for missing period, got %v", err)
	}
}

func TestErrorKinds(t *testing.T) {
	wrapped := errors.Join(errors.New("ctx"), NotFound("report", "2024-03"))
	if !IsNotFound(wrapped) {
		t.Fatal("expected not found through wrapping")
	}
	if IsValidation(wrapped) || IsConflict(wrapped) {
		t.Fatal("unexpected kind match")
	}
	ve := &ValidationError{Field: "amount", Line: 3, Reason: "not a number"}
	if ve.Error() != "line 3: amount: not a number" {
		t.Fatalf("got %q", ve.Error())
	}
}
