package main

import (
	"context"
	"errors"
	"os"
	"time"

	"budgetapp/internal/cli"
	"budgetapp/internal/services"
	"budgetapp/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	bootLogger := cli.SetupLogger("info")
	cfg := cli.LoadAndValidateConfig(bootLogger)
	logger := cli.SetupLogger(cfg.LogLevel)

	logger.Info("Starting budgetapp-worker")

	be, err := cli.InitBackend(context.Background(), logger, cfg)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	reports := services.NewReportService(be.Store, be.Mirror, services.ReportPolicy(cfg.ReportPolicy))
	w := worker.NewReportWorker(reports, cfg.RefreshInterval)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		logger.Info("Shutting down worker...")
		if err := w.Stop(ctx); err != nil {
			logger.Error("Worker stop error", "error", err)
		}
		if err := be.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", "error", err)
		}
	})

	if err := w.Start(ctx); err != nil {
		logger.Error("Failed to start report worker", "error", err)
		_ = be.Cleanup()
		os.Exit(1)
	}

	if be.AMQP != nil {
		go func() {
			err := be.AMQP.ConsumeReportRefresh(ctx, w.HandleRefresh)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Message consumption failed", "error", err)
			}
		}()
		logger.Info("Consuming report refresh messages", "queue", cfg.AMQPQueue)
	} else {
		logger.Info("Skipping AMQP message consumption - no broker configured")
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped")
}
