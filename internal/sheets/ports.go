package sheets

import (
	"context"
	"log/slog"

	"budgetapp/internal/core"
)

// ReportMirror copies generated report headlines to an external sheet.
type ReportMirror interface {
	MirrorReport(ctx context.Context, owner string, r core.Report) error
}

// NopMirror is used when no spreadsheet is configured.
type NopMirror struct{}

func (NopMirror) MirrorReport(ctx context.Context, owner string, r core.Report) error {
	slog.DebugContext(ctx, "Report mirror disabled, skipping", "owner", owner, "period", r.Period)
	return nil
}
