package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"budgetapp/internal/cache"
	"budgetapp/internal/cli"
	apphttp "budgetapp/internal/http"
	"budgetapp/internal/services"
)

func main() {
	cli.LoadEnvFile()

	bootLogger := cli.SetupLogger("info")
	cfg := cli.LoadAndValidateConfig(bootLogger)
	logger := cli.SetupLogger(cfg.LogLevel)

	ctx := context.Background()
	be, err := cli.InitBackend(ctx, logger, cfg)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	admin, err := cli.EnsureDefaults(ctx, be, cfg)
	if err != nil {
		logger.Error("Failed to seed defaults", "error", err)
		_ = be.Cleanup()
		os.Exit(1)
	}

	dash := services.NewDashboardService(be.Store, cfg.AlertThreshold, cfg.CacheTTL)
	caches := cache.NewManager()
	dash.RegisterCaches(caches)
	if cfg.CacheTTL > 0 {
		caches.StartCleanup(cfg.CacheTTL)
	}

	svc := apphttp.Services{
		Ledger:    services.NewLedgerService(be.Store, be.Publisher(), dash),
		Imports:   services.NewImportService(be.Store, be.Publisher(), dash),
		Reports:   services.NewReportService(be.Store, be.Mirror, services.ReportPolicy(cfg.ReportPolicy)),
		Dashboard: dash,
	}

	opts := apphttp.Options{
		DefaultOwner:       admin.ID,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Logger:             logger,
	}
	if p, ok := be.Store.(apphttp.Pinger); ok {
		opts.Pinger = p
	}
	srv := apphttp.NewServer(":"+cfg.Port, svc, opts)

	shutdownCtx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		caches.Stop()
		if err := be.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", "error", err)
		}
	})

	logger.Info("Starting budgetapp server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"report_policy", cfg.ReportPolicy,
		"amqp", be.AMQP != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(shutdownCtx, done)
	logger.Info("Server stopped gracefully")
}
