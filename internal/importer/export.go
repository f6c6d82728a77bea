package importer

import (
	"fmt"
	"io"

	"github.com/gocarina/gocsv"

	"budgetapp/internal/core"
)

type exportRow struct {
	Date        string `csv:"date"`
	Description string `csv:"description"`
	Amount      string `csv:"amount"`
	Category    string `csv:"category"`
	Type        string `csv:"type"`
	Tags        string `csv:"tags"`
}

// Export writes entries as CSV with ISO dates and two-digit amounts.
func Export(w io.Writer, entries []core.LedgerEntry) error {
	rows := make([]exportRow, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, exportRow{
			Date:        e.Date.ISO(),
			Description: e.Description,
			Amount:      e.Amount.String(),
			Category:    e.CategoryName,
			Type:        e.CategoryType.String(),
			Tags:        e.Tags,
		})
	}
	if err := gocsv.Marshal(&rows, w); err != nil {
		return fmt.Errorf("marshal csv: %w", err)
	}
	return nil
}
