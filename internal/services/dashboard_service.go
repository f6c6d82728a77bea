package services

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"budgetapp/internal/budget"
	"budgetapp/internal/cache"
	"budgetapp/internal/core"
	"budgetapp/internal/dashboard"
	"budgetapp/internal/ledger"
)

const dashboardCacheSize = 256

// DashboardService serves the overview and chart projections, caching them
// per owner and day until the owner's ledger changes.
type DashboardService struct {
	store     ledger.Store
	threshold float64
	now       func() time.Time

	overviews *cache.LRUCache[dashboard.Overview]
	summaries *cache.LRUCache[dashboard.SummaryData]

	// mu orders invalidations against cache fills. A fill only lands when no
	// invalidation happened since its load started.
	mu     sync.Mutex
	epoch  uint64
	owners map[int64]uint64
}

var _ Invalidator = (*DashboardService)(nil)

func NewDashboardService(store ledger.Store, threshold float64, ttl time.Duration) *DashboardService {
	if threshold <= 0 {
		threshold = budget.DefaultAlertThreshold
	}
	return &DashboardService{
		store:     store,
		threshold: threshold,
		now:       time.Now,
		overviews: cache.NewLRUCache[dashboard.Overview](dashboardCacheSize, ttl),
		summaries: cache.NewLRUCache[dashboard.SummaryData](dashboardCacheSize, ttl),
		owners:    make(map[int64]uint64),
	}
}

// RegisterCaches hands the projection caches to m for periodic expiry.
func (s *DashboardService) RegisterCaches(m *cache.Manager) {
	m.Register(s.overviews)
	m.Register(s.summaries)
}

func ownerPrefix(owner int64) string {
	return strconv.FormatInt(owner, 10) + ":"
}

func (s *DashboardService) cacheKey(owner int64, today time.Time) string {
	return ownerPrefix(owner) + today.Format(time.DateOnly)
}

func (s *DashboardService) Invalidate(owner int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.owners[owner]++
	s.overviews.DeletePrefix(ownerPrefix(owner))
	s.summaries.DeletePrefix(ownerPrefix(owner))
}

func (s *DashboardService) InvalidateAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epoch++
	s.overviews.DeletePrefix("")
	s.summaries.DeletePrefix("")
}

type cacheGen struct{ epoch, owner uint64 }

func (s *DashboardService) generation(owner int64) cacheGen {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cacheGen{epoch: s.epoch, owner: s.owners[owner]}
}

// fill runs set unless owner was invalidated after gen was taken.
func (s *DashboardService) fill(owner int64, gen cacheGen, set func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != gen.epoch || s.owners[owner] != gen.owner {
		return
	}
	set()
}

// load fetches the whole ledger and the current month's budgets concurrently.
func (s *DashboardService) load(ctx context.Context, owner int64, today time.Time) ([]core.LedgerEntry, []core.BudgetLine, error) {
	var (
		entries []core.LedgerEntry
		budgets []core.BudgetLine
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		entries, err = s.store.TransactionsFor(gctx, owner, ledger.Query{})
		if err != nil {
			return fmt.Errorf("load transactions: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		budgets, err = s.store.BudgetsFor(gctx, owner, core.PeriodOf(today))
		if err != nil {
			return fmt.Errorf("load budgets: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return entries, budgets, nil
}

func (s *DashboardService) Overview(ctx context.Context, owner int64) (dashboard.Overview, error) {
	today := s.now()
	key := s.cacheKey(owner, today)
	if ov, ok := s.overviews.Get(key); ok {
		return ov, nil
	}

	gen := s.generation(owner)
	entries, budgets, err := s.load(ctx, owner, today)
	if err != nil {
		return dashboard.Overview{}, err
	}
	ov := dashboard.BuildOverview(entries, budgets, today, s.threshold)
	s.fill(owner, gen, func() { s.overviews.Set(key, ov) })
	return ov, nil
}

func (s *DashboardService) Summary(ctx context.Context, owner int64) (dashboard.SummaryData, error) {
	today := s.now()
	key := s.cacheKey(owner, today)
	if sd, ok := s.summaries.Get(key); ok {
		return sd, nil
	}

	gen := s.generation(owner)
	entries, budgets, err := s.load(ctx, owner, today)
	if err != nil {
		return dashboard.SummaryData{}, err
	}
	sd := dashboard.BuildSummary(entries, budgets, today)
	s.fill(owner, gen, func() { s.summaries.Set(key, sd) })
	return sd, nil
}
