package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"budgetapp/internal/backend"
	"budgetapp/internal/cli"
	"budgetapp/internal/config"
	"budgetapp/internal/core"
	"budgetapp/internal/services"
)

// app holds the services shared by every subcommand for one invocation.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	be      *backend.Result
	admin   core.User
	owner   int64
	imports *services.ImportService
	reports *services.ReportService
	dash    *services.DashboardService
}

func newRootCmd() *cobra.Command {
	a := &app{}
	var owner int64

	cmd := &cobra.Command{
		Use:           "budgetctl",
		Short:         "Operate on the budget ledger from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cli.LoadEnvFile()
			cfg := config.Load()
			if err := cfg.Validate(); err != nil {
				return err
			}
			a.cfg = cfg
			a.logger = cli.SetupLogger(cfg.LogLevel)

			be, err := cli.InitBackend(cmd.Context(), a.logger, cfg)
			if err != nil {
				return fmt.Errorf("init backend: %w", err)
			}
			a.be = be

			admin, err := cli.EnsureDefaults(cmd.Context(), be, cfg)
			if err != nil {
				return err
			}
			a.admin = admin
			a.owner = admin.ID
			if owner > 0 {
				a.owner = owner
			}

			a.dash = services.NewDashboardService(be.Store, cfg.AlertThreshold, 0)
			a.imports = services.NewImportService(be.Store, be.Publisher(), a.dash)
			a.reports = services.NewReportService(be.Store, be.Mirror, services.ReportPolicy(cfg.ReportPolicy))
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a.be == nil {
				return nil
			}
			return a.be.Cleanup()
		},
	}

	cmd.PersistentFlags().Int64Var(&owner, "owner", 0, "ledger owner id (default: the admin user)")

	cmd.AddCommand(
		newImportCmd(a),
		newExportCmd(a),
		newReportCmd(a),
		newSummaryCmd(a),
		newDuplicatesCmd(a),
		newSeedCmd(a),
	)
	return cmd
}
