package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"budgetapp/internal/amqp"
	"budgetapp/internal/core"
)

// Refresher regenerates stored reports. *services.ReportService satisfies it.
type Refresher interface {
	Refresh(ctx context.Context, owner int64, period string) (core.Report, error)
	RefreshAll(ctx context.Context, period string) (int, error)
}

// ReportWorker regenerates reports on request from the queue and, on a
// ticker, refreshes the current month for every user.
type ReportWorker struct {
	reports  Refresher
	interval time.Duration
	now      func() time.Time

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewReportWorker(reports Refresher, interval time.Duration) *ReportWorker {
	return &ReportWorker{
		reports:  reports,
		interval: interval,
		now:      time.Now,
	}
}

// HandleRefresh processes a single refresh message from AMQP.
func (w *ReportWorker) HandleRefresh(ctx context.Context, msg *amqp.ReportRefreshMessage) error {
	slog.InfoContext(ctx, "Processing report refresh",
		"owner_id", msg.OwnerID,
		"period", msg.Period,
		"reason", msg.Reason)

	rep, err := w.reports.Refresh(ctx, msg.OwnerID, msg.Period)
	if core.IsValidation(err) || core.IsNotFound(err) {
		// Requeueing a malformed period or a missing owner would loop forever.
		slog.WarnContext(ctx, "Dropping refresh that cannot succeed",
			"owner_id", msg.OwnerID,
			"period", msg.Period,
			"error", err)
		return nil
	}
	if err != nil {
		return fmt.Errorf("refresh report: %w", err)
	}

	slog.InfoContext(ctx, "Report refreshed",
		"owner_id", msg.OwnerID,
		"period", rep.Period,
		"queued_at", msg.Timestamp,
		"lag", time.Since(msg.Timestamp).Round(time.Millisecond))
	return nil
}

// RefreshCurrent regenerates the current month's report for every user.
func (w *ReportWorker) RefreshCurrent(ctx context.Context) error {
	period := core.PeriodOf(w.now()).String()
	n, err := w.reports.RefreshAll(ctx, period)
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "Periodic report refresh completed", "period", period, "users", n)
	return nil
}

// Start runs the periodic refresh loop. Returns an error if already running.
func (w *ReportWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("report worker is already running")
	}
	if w.interval <= 0 {
		w.mu.Unlock()
		return fmt.Errorf("invalid refresh interval %v", w.interval)
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.mu.Unlock()

	go w.runLoop(ctx)

	slog.InfoContext(ctx, "Report worker started", "refresh_interval", w.interval)
	return nil
}

// Stop signals the loop and waits for it or for ctx.
func (w *ReportWorker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	stopCh, doneCh := w.stopCh, w.doneCh
	w.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		slog.InfoContext(ctx, "Report worker stopped gracefully")
		return nil
	case <-ctx.Done():
		slog.WarnContext(ctx, "Report worker stop timed out")
		return ctx.Err()
	}
}

func (w *ReportWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *ReportWorker) runLoop(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.refreshLogged(ctx)

	for {
		select {
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.refreshLogged(ctx)
		}
	}
}

func (w *ReportWorker) refreshLogged(ctx context.Context) {
	if err := w.RefreshCurrent(ctx); err != nil {
		slog.ErrorContext(ctx, "Periodic report refresh failed", "error", err)
	}
}
