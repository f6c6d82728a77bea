package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func newImportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Import a CSV file as one batch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			res, err := a.imports.Import(cmd.Context(), a.owner, f)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "batch %s: imported %d transactions\n", res.BatchID, res.Imported)
			if len(res.CreatedCategories) > 0 {
				fmt.Fprintf(out, "created categories: %s\n", strings.Join(res.CreatedCategories, ", "))
			}
			if len(res.PossibleDuplicates) > 0 {
				fmt.Fprintf(out, "possible duplicates: %d\n", len(res.PossibleDuplicates))
			}
			return nil
		},
	}
}

func newExportCmd(a *app) *cobra.Command {
	var outPath string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export live transactions as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if outPath == "" {
				return a.imports.Export(cmd.Context(), a.owner, cmd.OutOrStdout())
			}
			f, err := os.Create(outPath)
			if err != nil {
				return err
			}
			if err := a.imports.Export(cmd.Context(), a.owner, f); err != nil {
				f.Close()
				return err
			}
			return f.Close()
		},
	}
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "output file (default: stdout)")
	return cmd
}

func newReportCmd(a *app) *cobra.Command {
	var pdfPath string
	cmd := &cobra.Command{
		Use:   "report <YYYY-MM|YYYY-Qn>",
		Short: "Generate and store the report for a period",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rep, err := a.reports.Refresh(cmd.Context(), a.owner, args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			s := rep.Summary
			fmt.Fprintf(out, "%s income %s expense %s balance %s\n", rep.Period, s.Income, s.Expense, s.Balance)
			for _, c := range s.TopExpenses {
				fmt.Fprintf(out, "  %-20s %12s\n", c.Category, c.Amount)
			}

			if pdfPath == "" {
				return nil
			}
			f, err := os.Create(pdfPath)
			if err != nil {
				return err
			}
			if err := a.reports.PDF(cmd.Context(), a.owner, rep.Period, f); err != nil {
				f.Close()
				return err
			}
			return f.Close()
		},
	}
	cmd.Flags().StringVar(&pdfPath, "pdf", "", "also render the report to this PDF file")
	return cmd
}

func newSummaryCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Print the dashboard overview as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ov, err := a.dash.Overview(cmd.Context(), a.owner)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(ov)
		},
	}
}

func newDuplicatesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "duplicates",
		Short: "List live transactions that share a fingerprint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			groups, err := a.imports.Duplicates(cmd.Context(), a.owner)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(groups) == 0 {
				fmt.Fprintln(out, "no duplicates")
				return nil
			}
			for _, g := range groups {
				fmt.Fprintf(out, "%s %v\n", g.Fingerprint, g.Transactions)
			}
			return nil
		},
	}
}

// newSeedCmd reports the bootstrap result; the seeding itself runs before
// every command.
func newSeedCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create the admin user and default categories if missing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cats, err := a.be.Store.CategoriesAll(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "admin %s (id %d), %d categories\n", a.admin.Email, a.admin.ID, len(cats))
			return nil
		},
	}
}
