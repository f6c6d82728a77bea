// Package http provides the JSON API server and its handlers.
//
// This file implements parsing and validation of request bodies, path
// values and query strings. Every failure is a *core.ValidationError so
// handlers map it to 422 without special cases.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"budgetapp/internal/core"
	"budgetapp/internal/ledger"
)

const maxBodyBytes = 1 << 20

// TransactionRequest is the body of POST and PUT /api/transactions.
type TransactionRequest struct {
	Date        string     `json:"date"`
	Description string     `json:"description"`
	Amount      core.Money `json:"amount"`
	CategoryID  int64      `json:"category_id"`
	Tags        string     `json:"tags"`
}

// ToTransaction converts the request into a domain transaction. Validation
// of amount and category is left to core.Transaction.Validate.
func (r TransactionRequest) ToTransaction() (core.Transaction, error) {
	d, err := core.ParseDate(r.Date)
	if err != nil {
		return core.Transaction{}, &core.ValidationError{Field: "date", Reason: "expected YYYY-MM-DD"}
	}
	return core.Transaction{
		Date:        d,
		Description: sanitizeInput(r.Description),
		Amount:      r.Amount,
		CategoryID:  r.CategoryID,
		Tags:        sanitizeInput(r.Tags),
	}, nil
}

type CategoryRequest struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

func (r CategoryRequest) Parse() (string, core.CategoryType, error) {
	typ, err := core.ParseCategoryType(r.Type)
	if err != nil {
		return "", "", &core.ValidationError{Field: "type", Reason: "must be income or expense"}
	}
	return sanitizeInput(r.Name), typ, nil
}

// BudgetRequest is the body of PUT /api/budgets.
type BudgetRequest struct {
	CategoryID int64      `json:"category_id"`
	Period     string     `json:"period"`
	Amount     core.Money `json:"amount"`
}

func (r BudgetRequest) Parse() (core.Period, error) {
	p, err := core.ParsePeriod(r.Period)
	if err != nil {
		return core.Period{}, &core.ValidationError{Field: "period", Reason: "expected YYYY-MM"}
	}
	return p, nil
}

// DecodeJSON reads a single JSON object from the request body into v.
// Unknown fields and trailing data are rejected.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return &core.ValidationError{Field: "body", Reason: "request body too large"}
		}
		if errors.Is(err, io.EOF) {
			return &core.ValidationError{Field: "body", Reason: "request body is empty"}
		}
		return &core.ValidationError{Field: "body", Reason: err.Error()}
	}
	if dec.More() {
		return &core.ValidationError{Field: "body", Reason: "unexpected data after JSON object"}
	}
	return nil
}

// PathID parses the named path value as a positive integer id.
func PathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, &core.ValidationError{Field: name, Reason: fmt.Sprintf("invalid id %q", r.PathValue(name))}
	}
	return id, nil
}

// ParsePeriodParam reads a YYYY-MM query value, defaulting to the month of today.
func ParsePeriodParam(query url.Values, key string, today time.Time) (core.Period, error) {
	v := strings.TrimSpace(query.Get(key))
	if v == "" {
		return core.PeriodOf(today), nil
	}
	p, err := core.ParsePeriod(v)
	if err != nil {
		return core.Period{}, &core.ValidationError{Field: key, Reason: "expected YYYY-MM"}
	}
	return p, nil
}

// ParseTransactionQuery reads include_deleted, from and to.
func ParseTransactionQuery(query url.Values) (ledger.Query, error) {
	var q ledger.Query
	switch strings.ToLower(strings.TrimSpace(query.Get("include_deleted"))) {
	case "", "0", "false", "no":
	case "1", "true", "yes":
		q.IncludeDeleted = true
	default:
		return ledger.Query{}, &core.ValidationError{Field: "include_deleted", Reason: "expected a boolean"}
	}

	for key, dst := range map[string]*core.Date{"from": &q.From, "to": &q.To} {
		v := strings.TrimSpace(query.Get(key))
		if v == "" {
			continue
		}
		d, err := core.ParseDate(v)
		if err != nil {
			return ledger.Query{}, &core.ValidationError{Field: key, Reason: "expected YYYY-MM-DD"}
		}
		*dst = d
	}
	if !q.From.IsZero() && !q.To.IsZero() && q.To.Before(q.From.Time) {
		return ledger.Query{}, &core.ValidationError{Field: "to", Reason: "must not be before from"}
	}
	return q, nil
}

// sanitizeInput removes control characters except tab, newline and
// carriage return, and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
