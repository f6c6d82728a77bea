package report

import (
	"fmt"
	"io"
	"time"

	"github.com/phpdave11/gofpdf"

	"budgetapp/internal/core"
)

// latin1 maps UTF-8 text onto the cp1252 encoding of the core fonts.
var latin1 = gofpdf.New("P", "mm", "A4", "").UnicodeTranslatorFromDescriptor("")

// RenderPDF writes a one-page statement of an already generated report.
// Nothing is recomputed; the stored summary is rendered as is.
func RenderPDF(w io.Writer, owner string, r core.Report) error {
	s := r.Summary

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(14, 14, 14)
	pdf.SetTitle("Report "+r.Period, true)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.SetTextColor(20, 20, 20)
	pdf.Cell(0, 10, "Report "+r.Period)
	pdf.Ln(9)

	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(80, 80, 80)
	pdf.Cell(0, 6, latin1("Owner: "+owner))
	pdf.Ln(5)
	pdf.Cell(0, 6, "Generated: "+r.GeneratedAt.UTC().Format(time.RFC3339))
	pdf.Ln(10)

	pdf.SetDrawColor(200, 200, 200)
	pdf.SetFillColor(245, 245, 245)
	pdf.SetTextColor(20, 20, 20)

	sumW := []float64{60, 60, 60}
	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(sumW[0], 10, "Income", "1", 0, "C", true, 0, "")
	pdf.CellFormat(sumW[1], 10, "Expense", "1", 0, "C", true, 0, "")
	pdf.CellFormat(sumW[2], 10, "Balance", "1", 1, "C", true, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(sumW[0], 10, s.Income.String(), "1", 0, "C", false, 0, "")
	pdf.CellFormat(sumW[1], 10, s.Expense.String(), "1", 0, "C", false, 0, "")
	pdf.CellFormat(sumW[2], 10, s.Balance.String(), "1", 1, "C", false, 0, "")
	pdf.Ln(8)

	pdf.SetFont("Helvetica", "B", 13)
	pdf.Cell(0, 8, "Top expense categories")
	pdf.Ln(9)
	topW := []float64{120, 60}
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(topW[0], 8, "CATEGORY", "1", 0, "L", true, 0, "")
	pdf.CellFormat(topW[1], 8, "AMOUNT", "1", 1, "R", true, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	if len(s.TopExpenses) == 0 {
		pdf.CellFormat(topW[0]+topW[1], 8, "No expenses", "1", 1, "C", false, 0, "")
	}
	for _, c := range s.TopExpenses {
		pdf.CellFormat(topW[0], 8, latin1(trimTo(c.Category, 60)), "1", 0, "L", false, 0, "")
		pdf.CellFormat(topW[1], 8, c.Amount.String(), "1", 1, "R", false, 0, "")
	}
	pdf.Ln(8)

	pdf.SetFont("Helvetica", "B", 13)
	pdf.Cell(0, 8, "Budget variance")
	pdf.Ln(9)
	varW := []float64{75, 35, 35, 35}
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(varW[0], 8, "CATEGORY", "1", 0, "L", true, 0, "")
	pdf.CellFormat(varW[1], 8, "SPENT", "1", 0, "R", true, 0, "")
	pdf.CellFormat(varW[2], 8, "BUDGET", "1", 0, "R", true, 0, "")
	pdf.CellFormat(varW[3], 8, "DELTA", "1", 1, "R", true, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	if len(s.Variance) == 0 {
		pdf.CellFormat(varW[0]+varW[1]+varW[2]+varW[3], 8, "No budgets set", "1", 1, "C", false, 0, "")
	}
	for _, v := range s.Variance {
		if pdf.GetY() > 270 {
			pdf.AddPage()
		}
		pdf.CellFormat(varW[0], 8, latin1(trimTo(v.Category, 40)), "1", 0, "L", false, 0, "")
		pdf.CellFormat(varW[1], 8, v.Spent.String(), "1", 0, "R", false, 0, "")
		pdf.CellFormat(varW[2], 8, v.Budget.String(), "1", 0, "R", false, 0, "")
		if v.Delta.Cents > 0 {
			pdf.SetTextColor(180, 30, 30)
		}
		pdf.CellFormat(varW[3], 8, v.Delta.String(), "1", 1, "R", false, 0, "")
		pdf.SetTextColor(20, 20, 20)
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	return nil
}

func trimTo(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
