package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"budgetapp/internal/core"
	"budgetapp/internal/fingerprint"
	"budgetapp/internal/importer"
	"budgetapp/internal/ledger"
)

var _ ledger.Store = (*Store)(nil)

type budgetKey struct {
	owner    int64
	category int64
	period   core.Period
}

type reportKey struct {
	owner  int64
	period string
}

// Store keeps the whole ledger in process memory. It backs the memory data
// backend and the service tests.
type Store struct {
	mu      sync.Mutex
	nextID  int64
	users   []core.User
	cats    []core.Category
	txs     []core.Transaction
	budgets map[budgetKey]core.Budget
	reports map[reportKey]core.Report
	now     func() time.Time
}

func New() *Store {
	return &Store{
		budgets: make(map[budgetKey]core.Budget),
		reports: make(map[reportKey]core.Report),
		now:     time.Now,
	}
}

func (s *Store) Close() error { return nil }

func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *Store) TransactionsFor(_ context.Context, owner int64, q ledger.Query) ([]core.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]core.LedgerEntry, 0)
	for _, t := range s.txs {
		if t.OwnerID != owner || (t.Deleted && !q.IncludeDeleted) {
			continue
		}
		if !q.From.IsZero() && t.Date.Before(q.From.Time) {
			continue
		}
		if !q.To.IsZero() && t.Date.After(q.To.Time) {
			continue
		}
		out = append(out, s.entry(t))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date.Time) {
			return out[i].Date.After(out[j].Date.Time)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *Store) GetTransaction(_ context.Context, owner, id int64) (core.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.txIndex(owner, id)
	if i < 0 {
		return core.LedgerEntry{}, core.NotFound("transaction", id)
	}
	return s.entry(s.txs[i]), nil
}

func (s *Store) CreateTransaction(_ context.Context, t core.Transaction) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertTx(t)
}

func (s *Store) UpdateTransaction(_ context.Context, t core.Transaction) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.txIndex(t.OwnerID, t.ID)
	if i < 0 {
		return core.Transaction{}, core.NotFound("transaction", t.ID)
	}
	if s.catIndex(t.CategoryID) < 0 {
		return core.Transaction{}, core.NotFound("category", t.CategoryID)
	}
	cur := s.txs[i]
	cur.CategoryID = t.CategoryID
	cur.Date = t.Date
	cur.Amount = t.Amount
	cur.Description = t.Description
	cur.Tags = t.Tags
	fingerprint.Stamp(&cur)
	s.txs[i] = cur
	return cur, nil
}

func (s *Store) SoftDeleteTransaction(_ context.Context, owner, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.txIndex(owner, id)
	if i < 0 {
		return core.NotFound("transaction", id)
	}
	s.txs[i].Deleted = true
	return nil
}

func (s *Store) CategoriesAll(_ context.Context) ([]core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]core.Category(nil), s.cats...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Type != out[j].Type {
			return out[i].Type < out[j].Type
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (s *Store) FindCategory(_ context.Context, name string, typ core.CategoryType) (core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findCategory(name, typ)
}

func (s *Store) CreateCategory(_ context.Context, c core.Category) (core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createCategory(c)
}

func (s *Store) DeleteCategory(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.catIndex(id)
	if i < 0 {
		return core.NotFound("category", id)
	}
	s.cats = append(s.cats[:i], s.cats[i+1:]...)

	kept := s.txs[:0]
	for _, t := range s.txs {
		if t.CategoryID != id {
			kept = append(kept, t)
		}
	}
	s.txs = kept
	for k := range s.budgets {
		if k.category == id {
			delete(s.budgets, k)
		}
	}
	return nil
}

func (s *Store) BudgetsFor(_ context.Context, owner int64, period core.Period) ([]core.BudgetLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.BudgetLine, 0)
	for _, b := range s.sortedBudgets(owner, period) {
		if i := s.catIndex(b.CategoryID); i >= 0 {
			out = append(out, core.BudgetLine{Category: s.cats[i].Name, Amount: b.Amount})
		}
	}
	return out, nil
}

func (s *Store) ListBudgets(_ context.Context, owner int64, period core.Period) ([]core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedBudgets(owner, period), nil
}

func (s *Store) UpsertBudget(_ context.Context, owner, categoryID int64, period core.Period, amount core.Money) (core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasUser(owner) {
		return core.Budget{}, core.NotFound("user", owner)
	}
	if s.catIndex(categoryID) < 0 {
		return core.Budget{}, core.NotFound("category", categoryID)
	}
	key := budgetKey{owner: owner, category: categoryID, period: period}
	b, ok := s.budgets[key]
	if !ok {
		b = core.Budget{ID: s.id(), OwnerID: owner, CategoryID: categoryID, Period: period}
	}
	b.Amount = amount
	s.budgets[key] = b
	return b, nil
}

func (s *Store) DeleteBudget(_ context.Context, owner, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, b := range s.budgets {
		if b.ID == id && b.OwnerID == owner {
			delete(s.budgets, k)
			return nil
		}
	}
	return core.NotFound("budget", id)
}

func (s *Store) UpsertReport(_ context.Context, owner int64, period string, summary core.Summary) (core.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasUser(owner) {
		return core.Report{}, core.NotFound("user", owner)
	}
	key := reportKey{owner: owner, period: period}
	r, ok := s.reports[key]
	if !ok {
		r = core.Report{ID: s.id(), OwnerID: owner, Period: period}
	}
	r.Summary = summary
	r.GeneratedAt = s.now().UTC()
	s.reports[key] = r
	return r, nil
}

func (s *Store) GetReport(_ context.Context, owner int64, period string) (core.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reports[reportKey{owner: owner, period: period}]
	if !ok {
		return core.Report{}, core.NotFound("report", period)
	}
	return r, nil
}

func (s *Store) ListReports(_ context.Context, owner int64) ([]core.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Report, 0)
	for k, r := range s.reports {
		if k.owner == owner {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Period > out[j].Period })
	return out, nil
}

func (s *Store) FindUserByEmail(_ context.Context, email string) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return core.User{}, core.NotFound("user", email)
}

func (s *Store) hasUser(id int64) bool {
	for _, u := range s.users {
		if u.ID == id {
			return true
		}
	}
	return false
}

func (s *Store) GetUser(_ context.Context, id int64) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.ID == id {
			return u, nil
		}
	}
	return core.User{}, core.NotFound("user", id)
}

func (s *Store) CreateUser(_ context.Context, u core.User) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return core.User{}, &core.ConflictError{Kind: "user", Key: u.Email}
		}
	}
	u.ID = s.id()
	u.CreatedAt = s.now().UTC()
	s.users = append(s.users, u)
	return u, nil
}

func (s *Store) ListUsers(_ context.Context) ([]core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.User(nil), s.users...), nil
}

// ImportBatch reconciles and inserts rows under a single lock. Categories and
// transactions created before a failure are rolled back.
func (s *Store) ImportBatch(ctx context.Context, owner int64, batchID string, rows []ledger.ImportRow) (ledger.ImportResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.hasUser(owner) {
		return ledger.ImportResult{}, core.NotFound("user", owner)
	}

	snapshotCats, snapshotTxs, snapshotID := len(s.cats), len(s.txs), s.nextID
	rollback := func() {
		s.cats = s.cats[:snapshotCats]
		s.txs = s.txs[:snapshotTxs]
		s.nextID = snapshotID
	}

	existing := make(map[string]struct{})
	for _, t := range s.txs {
		if t.OwnerID == owner && !t.Deleted {
			existing[t.Fingerprint] = struct{}{}
		}
	}

	rec, err := importer.Reconcile(ctx, owner, batchID, rows, lockedResolver{s})
	if err != nil {
		rollback()
		return ledger.ImportResult{}, err
	}
	for _, t := range rec.Transactions {
		if _, err := s.insertTx(t); err != nil {
			rollback()
			return ledger.ImportResult{}, err
		}
	}

	return ledger.ImportResult{
		BatchID:            batchID,
		Imported:           len(rec.Transactions),
		CreatedCategories:  nonNil(rec.CreatedCategories),
		PossibleDuplicates: importer.PossibleDuplicates(existing, rec.Transactions),
		Periods:            importer.Periods(rec.Transactions),
	}, nil
}

// lockedResolver is used while s.mu is already held.
type lockedResolver struct{ s *Store }

func (r lockedResolver) FindCategory(_ context.Context, name string, typ core.CategoryType) (core.Category, error) {
	return r.s.findCategory(name, typ)
}

func (r lockedResolver) CreateCategory(_ context.Context, c core.Category) (core.Category, error) {
	return r.s.createCategory(c)
}

func (s *Store) insertTx(t core.Transaction) (core.Transaction, error) {
	if !s.hasUser(t.OwnerID) {
		return core.Transaction{}, core.NotFound("user", t.OwnerID)
	}
	if s.catIndex(t.CategoryID) < 0 {
		return core.Transaction{}, core.NotFound("category", t.CategoryID)
	}
	t.ID = s.id()
	t.Deleted = false
	if t.CreatedAt.IsZero() {
		t.CreatedAt = s.now().UTC()
	}
	fingerprint.Stamp(&t)
	s.txs = append(s.txs, t)
	return t, nil
}

func (s *Store) findCategory(name string, typ core.CategoryType) (core.Category, error) {
	name = strings.TrimSpace(name)
	for _, c := range s.cats {
		if c.Type == typ && strings.EqualFold(c.Name, name) {
			return c, nil
		}
	}
	return core.Category{}, core.NotFound("category", name)
}

func (s *Store) createCategory(c core.Category) (core.Category, error) {
	c.Name = strings.TrimSpace(c.Name)
	if err := c.Validate(); err != nil {
		return core.Category{}, &core.ValidationError{Field: "category", Reason: err.Error()}
	}
	if _, err := s.findCategory(c.Name, c.Type); err == nil {
		return core.Category{}, &core.ConflictError{Kind: "category", Key: c.Name}
	}
	c.ID = s.id()
	s.cats = append(s.cats, c)
	return c, nil
}

func (s *Store) sortedBudgets(owner int64, period core.Period) []core.Budget {
	out := make([]core.Budget, 0)
	for k, b := range s.budgets {
		if k.owner == owner && k.period == period {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) entry(t core.Transaction) core.LedgerEntry {
	e := core.LedgerEntry{Transaction: t}
	if i := s.catIndex(t.CategoryID); i >= 0 {
		e.CategoryName = s.cats[i].Name
		e.CategoryType = s.cats[i].Type
	}
	return e
}

func (s *Store) txIndex(owner, id int64) int {
	for i, t := range s.txs {
		if t.ID == id && t.OwnerID == owner {
			return i
		}
	}
	return -1
}

func (s *Store) catIndex(id int64) int {
	for i, c := range s.cats {
		if c.ID == id {
			return i
		}
	}
	return -1
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
