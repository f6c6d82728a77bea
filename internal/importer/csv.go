// Package importer is the CSV boundary of the ledger: it validates external
// rows into typed import rows, reconciles them against categories and
// exports the ledger back to CSV.
package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/gocarina/gocsv"

	"budgetapp/internal/core"
	"budgetapp/internal/ledger"
)

// RequiredColumns must all be present in the header, in any case and order.
var RequiredColumns = []string{"date", "description", "amount", "type", "category"}

type csvRow struct {
	Date        string `csv:"date"`
	Description string `csv:"description"`
	Amount      string `csv:"amount"`
	Type        string `csv:"type"`
	Category    string `csv:"category"`
	Tags        string `csv:"tags"`
}

// ParseCSV decodes and validates every row. The first malformed row fails
// the whole batch with a *core.ValidationError; nothing is returned partially.
func ParseCSV(r io.Reader) ([]ledger.ImportRow, error) {
	hr := newHeaderReader(r)

	var raw []csvRow
	if err := gocsv.UnmarshalCSV(hr, &raw); err != nil {
		if hr.err != nil {
			return nil, hr.err
		}
		if errors.Is(err, gocsv.ErrEmptyCSVFile) {
			return nil, &core.ValidationError{Reason: "empty csv file"}
		}
		return nil, &core.ValidationError{Reason: fmt.Sprintf("malformed csv: %v", err)}
	}
	if hr.err != nil {
		return nil, hr.err
	}
	if len(raw) == 0 {
		return nil, &core.ValidationError{Reason: "csv file has no rows"}
	}

	rows := make([]ledger.ImportRow, 0, len(raw))
	for i, rr := range raw {
		row, err := coerce(i+2, rr) // line 1 is the header
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func coerce(line int, rr csvRow) (ledger.ImportRow, error) {
	date, err := core.ParseDate(rr.Date)
	if err != nil {
		return ledger.ImportRow{}, &core.ValidationError{Line: line, Field: "date", Reason: fmt.Sprintf("unparseable date %q", rr.Date)}
	}
	amount, err := core.ParseMoney(rr.Amount)
	if err != nil || amount.Validate() != nil {
		return ledger.ImportRow{}, &core.ValidationError{Line: line, Field: "amount", Reason: fmt.Sprintf("invalid amount %q", rr.Amount)}
	}
	typ, err := core.ParseCategoryType(rr.Type)
	if err != nil {
		return ledger.ImportRow{}, &core.ValidationError{Line: line, Field: "type", Reason: fmt.Sprintf("type must be income or expense, got %q", rr.Type)}
	}
	category := strings.TrimSpace(rr.Category)
	if category == "" {
		return ledger.ImportRow{}, &core.ValidationError{Line: line, Field: "category", Reason: "category is required"}
	}
	return ledger.ImportRow{
		Line:         line,
		Date:         date,
		Description:  strings.TrimSpace(rr.Description),
		Amount:       amount,
		CategoryName: category,
		CategoryType: typ,
		Tags:         strings.TrimSpace(rr.Tags),
	}, nil
}

// headerReader lowercases the header record so columns match regardless of
// case, and rejects a header missing a required column.
type headerReader struct {
	r      *csv.Reader
	header bool
	err    error
}

func newHeaderReader(r io.Reader) *headerReader {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	return &headerReader{r: cr}
}

func (h *headerReader) Read() ([]string, error) {
	rec, err := h.r.Read()
	if err != nil {
		if err != io.EOF {
			h.err = parseError(err)
		}
		return nil, err
	}
	if !h.header {
		h.header = true
		if err := h.normalize(rec); err != nil {
			return nil, err
		}
	}
	return rec, nil
}

func (h *headerReader) ReadAll() ([][]string, error) {
	var out [][]string
	for {
		rec, err := h.Read()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
}

func (h *headerReader) normalize(rec []string) error {
	present := make(map[string]bool, len(rec))
	for i, col := range rec {
		col = strings.TrimPrefix(col, "\ufeff")
		rec[i] = strings.ToLower(strings.TrimSpace(col))
		present[rec[i]] = true
	}
	var missing []string
	for _, c := range RequiredColumns {
		if !present[c] {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		h.err = &core.ValidationError{Line: 1, Reason: "missing required columns: " + strings.Join(missing, ", ")}
		return h.err
	}
	return nil
}

func parseError(err error) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return &core.ValidationError{Line: pe.Line, Reason: pe.Err.Error()}
	}
	return &core.ValidationError{Reason: err.Error()}
}
