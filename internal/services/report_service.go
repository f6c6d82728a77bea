package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	"budgetapp/internal/aggregate"
	"budgetapp/internal/budget"
	"budgetapp/internal/core"
	"budgetapp/internal/ledger"
	"budgetapp/internal/report"
	"budgetapp/internal/sheets"
)

// ReportPolicy decides whether viewing a report regenerates it.
type ReportPolicy string

const (
	// PolicyOverwrite regenerates on every view.
	PolicyOverwrite ReportPolicy = "overwrite"
	// PolicyFreezeClosed keeps the stored snapshot once the period has ended.
	PolicyFreezeClosed ReportPolicy = "freeze-closed"
)

func (p ReportPolicy) Valid() bool {
	return p == PolicyOverwrite || p == PolicyFreezeClosed
}

type ReportService struct {
	store  ledger.Store
	mirror sheets.ReportMirror
	policy ReportPolicy
	now    func() time.Time
	group  singleflight.Group
}

func NewReportService(store ledger.Store, mirror sheets.ReportMirror, policy ReportPolicy) *ReportService {
	if mirror == nil {
		mirror = sheets.NopMirror{}
	}
	if !policy.Valid() {
		policy = PolicyOverwrite
	}
	return &ReportService{store: store, mirror: mirror, policy: policy, now: time.Now}
}

func parseReportPeriod(period string) (core.ReportPeriod, error) {
	rp, err := core.ParseReportPeriod(period)
	if err != nil {
		return core.ReportPeriod{}, &core.ValidationError{Field: "period", Reason: err.Error()}
	}
	return rp, nil
}

// Refresh regenerates and stores the owner's report for period (YYYY-MM or
// YYYY-Qn). Under PolicyFreezeClosed an existing report for a closed period
// is returned as is. Concurrent refreshes of the same key share one run.
func (s *ReportService) Refresh(ctx context.Context, owner int64, period string) (core.Report, error) {
	rp, err := parseReportPeriod(period)
	if err != nil {
		return core.Report{}, err
	}

	if s.policy == PolicyFreezeClosed && rp.Closed(s.now()) {
		existing, err := s.store.GetReport(ctx, owner, rp.Key)
		if err == nil {
			return existing, nil
		}
		if !core.IsNotFound(err) {
			return core.Report{}, err
		}
	}

	key := strconv.FormatInt(owner, 10) + "|" + rp.Key
	v, err, shared := s.group.Do(key, func() (any, error) {
		return s.generate(ctx, owner, rp)
	})
	if err != nil {
		return core.Report{}, err
	}
	if shared {
		slog.DebugContext(ctx, "Report refresh shared with concurrent caller", "owner_id", owner, "period", rp.Key)
	}
	return v.(core.Report), nil
}

func (s *ReportService) generate(ctx context.Context, owner int64, rp core.ReportPeriod) (core.Report, error) {
	entries, err := s.store.TransactionsFor(ctx, owner, ledger.Query{From: rp.From(), To: rp.To()})
	if err != nil {
		return core.Report{}, fmt.Errorf("load transactions: %w", err)
	}

	monthly := make([][]core.BudgetLine, 0, len(rp.Months))
	for _, m := range rp.Months {
		lines, err := s.store.BudgetsFor(ctx, owner, m)
		if err != nil {
			return core.Report{}, fmt.Errorf("load budgets %s: %w", m, err)
		}
		monthly = append(monthly, lines)
	}

	summary := report.Generate(rp.Key, entries, budget.Merge(monthly...))
	rep, err := s.store.UpsertReport(ctx, owner, rp.Key, summary)
	if err != nil {
		return core.Report{}, fmt.Errorf("store report: %w", err)
	}

	slog.InfoContext(ctx, "Report generated",
		"owner_id", owner,
		"period", rp.Key,
		"transactions", len(entries),
		"income_cents", summary.Income.Cents,
		"expense_cents", summary.Expense.Cents)

	s.mirrorReport(ctx, owner, rep)
	return rep, nil
}

func (s *ReportService) mirrorReport(ctx context.Context, owner int64, rep core.Report) {
	u, err := s.store.GetUser(ctx, owner)
	name := strconv.FormatInt(owner, 10)
	if err == nil {
		name = u.Email
	}
	if err := s.mirror.MirrorReport(ctx, name, rep); err != nil {
		slog.ErrorContext(ctx, "Failed to mirror report", "owner_id", owner, "period", rep.Period, "error", err)
	}
}

// Get returns the stored report without regenerating it.
func (s *ReportService) Get(ctx context.Context, owner int64, period string) (core.Report, error) {
	rp, err := parseReportPeriod(period)
	if err != nil {
		return core.Report{}, err
	}
	return s.store.GetReport(ctx, owner, rp.Key)
}

// Periods lists the months present in the owner's ledger, most recent first.
func (s *ReportService) Periods(ctx context.Context, owner int64) ([]string, error) {
	entries, err := s.store.TransactionsFor(ctx, owner, ledger.Query{})
	if err != nil {
		return nil, fmt.Errorf("load transactions: %w", err)
	}
	return aggregate.Periods(entries), nil
}

// Stored lists the owner's stored reports, most recent period first.
func (s *ReportService) Stored(ctx context.Context, owner int64) ([]core.Report, error) {
	reps, err := s.store.ListReports(ctx, owner)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(reps, func(i, j int) bool { return reps[i].Period > reps[j].Period })
	return reps, nil
}

// PDF renders the stored report for period. It does not generate one.
func (s *ReportService) PDF(ctx context.Context, owner int64, period string, w io.Writer) error {
	rep, err := s.Get(ctx, owner, period)
	if err != nil {
		return err
	}
	name := strconv.FormatInt(owner, 10)
	if u, err := s.store.GetUser(ctx, owner); err == nil {
		name = u.Email
	}
	return report.RenderPDF(w, name, rep)
}

// RefreshAll regenerates period for every user. Individual failures are
// logged and counted.
func (s *ReportService) RefreshAll(ctx context.Context, period string) (int, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return 0, fmt.Errorf("list users: %w", err)
	}
	failed := 0
	for _, u := range users {
		if _, err := s.Refresh(ctx, u.ID, period); err != nil {
			failed++
			slog.ErrorContext(ctx, "Failed to refresh report", "owner_id", u.ID, "period", period, "error", err)
		}
	}
	if failed > 0 {
		return len(users) - failed, fmt.Errorf("%d of %d report refreshes failed", failed, len(users))
	}
	return len(users), nil
}
