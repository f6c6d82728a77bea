package services

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budgetapp/internal/core"
	"budgetapp/internal/ledger"
	"budgetapp/internal/ledger/memory"
)

type published struct {
	owner  int64
	period string
	reason string
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (f *fakePublisher) PublishReportRefresh(_ context.Context, owner int64, period, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, published{owner, period, reason})
	return f.err
}

func (f *fakePublisher) periods() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.msgs))
	for i, m := range f.msgs {
		out[i] = m.period
	}
	return out
}

type fakeMirror struct {
	mu      sync.Mutex
	reports []core.Report
	owners  []string
	err     error
}

func (f *fakeMirror) MirrorReport(_ context.Context, owner string, r core.Report) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.owners = append(f.owners, owner)
	f.reports = append(f.reports, r)
	return f.err
}

type fixture struct {
	store   *memory.Store
	owner   core.User
	rent    core.Category
	salary  core.Category
	pub     *fakePublisher
	dash    *DashboardService
	ledger  *LedgerService
	imports *ImportService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	f := &fixture{store: memory.New(), pub: &fakePublisher{}}

	var err error
	f.owner, err = f.store.CreateUser(ctx, core.User{Email: "owner@example.com"})
	require.NoError(t, err)
	f.rent, err = f.store.CreateCategory(ctx, core.Category{Name: "Rent", Type: core.Expense})
	require.NoError(t, err)
	f.salary, err = f.store.CreateCategory(ctx, core.Category{Name: "Salary", Type: core.Income})
	require.NoError(t, err)

	f.dash = NewDashboardService(f.store, 0.9, time.Hour)
	f.dash.now = func() time.Time { return time.Date(2024, 3, 20, 10, 0, 0, 0, time.UTC) }
	f.ledger = NewLedgerService(f.store, f.pub, f.dash)
	f.imports = NewImportService(f.store, f.pub, f.dash)
	f.imports.newBatchID = func() string { return "batch-fixed" }
	return f
}

func (f *fixture) tx(date string, cents int64, cat core.Category, desc string) core.Transaction {
	d, err := core.ParseDate(date)
	if err != nil {
		panic(err)
	}
	return core.Transaction{Date: d, Amount: core.Cents(cents), CategoryID: cat.ID, Description: desc}
}

func TestLedgerService_CreateUpdateDelete(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	e, err := f.ledger.CreateTransaction(ctx, f.owner.ID, f.tx("2024-03-01", 90000, f.rent, "March rent"))
	require.NoError(t, err)
	assert.Equal(t, "Rent", e.CategoryName)
	assert.Equal(t, f.owner.ID, e.OwnerID)
	assert.NotEmpty(t, e.Fingerprint)

	moved := e.Transaction
	moved.Date = core.NewDate(2024, 4, 1)
	updated, err := f.ledger.UpdateTransaction(ctx, f.owner.ID, moved)
	require.NoError(t, err)
	assert.NotEqual(t, e.Fingerprint, updated.Fingerprint)

	require.NoError(t, f.ledger.DeleteTransaction(ctx, f.owner.ID, e.ID))

	assert.Equal(t, []string{"2024-03", "2024-03", "2024-04", "2024-04"}, f.pub.periods())

	live, err := f.ledger.ListTransactions(ctx, f.owner.ID, ledger.Query{})
	require.NoError(t, err)
	assert.Empty(t, live)
}

func TestLedgerService_RejectsInvalidTransaction(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.ledger.CreateTransaction(ctx, f.owner.ID, f.tx("2024-03-01", 0, f.rent, "free"))
	assert.True(t, core.IsValidation(err))

	_, err = f.ledger.CreateTransaction(ctx, f.owner.ID, f.tx("2024-03-01", 100, core.Category{ID: 999}, "ghost"))
	assert.True(t, core.IsNotFound(err), "got %v", err)
	assert.Empty(t, f.pub.periods())
}

func TestLedgerService_PublishFailureDoesNotFailWrite(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.pub.err = errors.New("broker down")

	_, err := f.ledger.CreateTransaction(ctx, f.owner.ID, f.tx("2024-03-01", 100, f.rent, "x"))
	require.NoError(t, err)
}

func TestLedgerService_NilPublisher(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := NewLedgerService(f.store, nil, nil)

	_, err := svc.CreateTransaction(ctx, f.owner.ID, f.tx("2024-03-01", 100, f.rent, "x"))
	require.NoError(t, err)
}

func TestLedgerService_Budgets(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	march := core.Period{Year: 2024, Month: 3}

	b, err := f.ledger.SetBudget(ctx, f.owner.ID, f.rent.ID, march, core.Cents(100000))
	require.NoError(t, err)
	_, err = f.ledger.SetBudget(ctx, f.owner.ID, f.rent.ID, march, core.Cents(-1))
	assert.True(t, core.IsValidation(err))

	views, err := f.ledger.Budgets(ctx, f.owner.ID, march)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, BudgetView{ID: b.ID, CategoryID: f.rent.ID, Category: "Rent", Period: "2024-03", Amount: core.Cents(100000)}, views[0])

	require.NoError(t, f.ledger.DeleteBudget(ctx, f.owner.ID, b.ID))
	assert.True(t, core.IsNotFound(f.ledger.DeleteBudget(ctx, f.owner.ID, b.ID)))
}

func TestLedgerService_Categories(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.ledger.CreateCategory(ctx, "  ", core.Expense)
	assert.True(t, core.IsValidation(err))
	_, err = f.ledger.CreateCategory(ctx, "rent", core.Expense)
	assert.True(t, core.IsConflict(err))

	c, err := f.ledger.CreateCategory(ctx, " Dining ", core.Expense)
	require.NoError(t, err)
	assert.Equal(t, "Dining", c.Name)

	require.NoError(t, f.ledger.DeleteCategory(ctx, c.ID))
	cats, err := f.ledger.Categories(ctx)
	require.NoError(t, err)
	assert.Len(t, cats, 2)
}

const csvBody = `Date,Description,Amount,Category,Type,Tags
2024-03-01,Rent,900.00,Rent,expense,home
2024-03-02,Coop,45.50,Groceries,expense,
2024-02-28,Pay,2000,Salary,income,
2024-03-02,coop,45.5,groceries,expense,
`

func TestImportService_ImportPublishesTouchedPeriods(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	res, err := f.imports.Import(ctx, f.owner.ID, strings.NewReader(csvBody))
	require.NoError(t, err)
	assert.Equal(t, "batch-fixed", res.BatchID)
	assert.Equal(t, 4, res.Imported)
	assert.Equal(t, []string{"Groceries"}, res.CreatedCategories)
	assert.Len(t, res.PossibleDuplicates, 1)
	assert.Equal(t, []string{"2024-02", "2024-03"}, f.pub.periods())

	dups, err := f.imports.Duplicates(ctx, f.owner.ID)
	require.NoError(t, err)
	require.Len(t, dups, 1)
	assert.Len(t, dups[0].Transactions, 2)
}

func TestImportService_BadCSVCommitsNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	bad := csvBody + "2024-03-05,Broken,abc,Misc,expense,\n"
	_, err := f.imports.Import(ctx, f.owner.ID, strings.NewReader(bad))
	require.Error(t, err)
	assert.True(t, core.IsValidation(err))

	entries, err := f.store.TransactionsFor(ctx, f.owner.ID, ledger.Query{IncludeDeleted: true})
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Empty(t, f.pub.periods())
}

func TestImportService_Export(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.imports.Import(ctx, f.owner.ID, strings.NewReader(csvBody))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, f.imports.Export(ctx, f.owner.ID, &buf))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, "date,description,amount,category,type,tags", lines[0])
	assert.Len(t, lines, 5)
	assert.True(t, strings.HasPrefix(lines[len(lines)-1], "2024-02-28,Pay,2000.00,Salary,income"))
}

func TestReportService_RefreshStoresAndMirrors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	mirror := &fakeMirror{}
	svc := NewReportService(f.store, mirror, PolicyOverwrite)

	_, err := f.imports.Import(ctx, f.owner.ID, strings.NewReader(csvBody))
	require.NoError(t, err)
	_, err = f.store.UpsertBudget(ctx, f.owner.ID, f.rent.ID, core.Period{Year: 2024, Month: 3}, core.Cents(80000))
	require.NoError(t, err)

	rep, err := svc.Refresh(ctx, f.owner.ID, "2024-03")
	require.NoError(t, err)
	assert.Equal(t, "2024-03", rep.Period)
	assert.Equal(t, core.Cents(99100), rep.Summary.Expense)
	assert.True(t, rep.Summary.Income.IsZero())
	require.Len(t, rep.Summary.Variance, 1)
	assert.Equal(t, core.Cents(10000), rep.Summary.Variance[0].Delta)

	require.Len(t, mirror.reports, 1)
	assert.Equal(t, "owner@example.com", mirror.owners[0])

	q, err := svc.Refresh(ctx, f.owner.ID, "2024-q1")
	require.NoError(t, err)
	assert.Equal(t, "2024-Q1", q.Period)
	assert.Equal(t, core.Cents(200000), q.Summary.Income)

	stored, err := svc.Stored(ctx, f.owner.ID)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, "2024-Q1", stored[0].Period)

	periods, err := svc.Periods(ctx, f.owner.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-03", "2024-02"}, periods)
}

func TestReportService_MirrorFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	svc := NewReportService(f.store, &fakeMirror{err: errors.New("quota")}, PolicyOverwrite)

	_, err := svc.Refresh(context.Background(), f.owner.ID, "2024-03")
	require.NoError(t, err)
}

func TestReportService_FreezeClosed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := NewReportService(f.store, nil, PolicyFreezeClosed)
	svc.now = func() time.Time { return time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC) }

	_, err := f.ledger.CreateTransaction(ctx, f.owner.ID, f.tx("2024-03-01", 1000, f.rent, "a"))
	require.NoError(t, err)
	first, err := svc.Refresh(ctx, f.owner.ID, "2024-03")
	require.NoError(t, err)

	_, err = f.ledger.CreateTransaction(ctx, f.owner.ID, f.tx("2024-03-02", 500, f.rent, "b"))
	require.NoError(t, err)
	frozen, err := svc.Refresh(ctx, f.owner.ID, "2024-03")
	require.NoError(t, err)
	assert.Equal(t, first.Summary.Expense, frozen.Summary.Expense)

	overwrite := NewReportService(f.store, nil, PolicyOverwrite)
	fresh, err := overwrite.Refresh(ctx, f.owner.ID, "2024-03")
	require.NoError(t, err)
	assert.Equal(t, core.Cents(1500), fresh.Summary.Expense)
}

func TestReportService_PDFRequiresStoredReport(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := NewReportService(f.store, nil, "")

	var buf bytes.Buffer
	err := svc.PDF(ctx, f.owner.ID, "2024-03", &buf)
	assert.True(t, core.IsNotFound(err))

	_, err = svc.Refresh(ctx, f.owner.ID, "2024-03")
	require.NoError(t, err)
	require.NoError(t, svc.PDF(ctx, f.owner.ID, "2024-03", &buf))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF")))

	_, err = svc.Refresh(ctx, f.owner.ID, "March")
	assert.True(t, core.IsValidation(err))
}

func TestReportService_RefreshAll(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.store.CreateUser(ctx, core.User{Email: "second@example.com"})
	require.NoError(t, err)
	svc := NewReportService(f.store, nil, PolicyOverwrite)

	n, err := svc.RefreshAll(ctx, "2024-03")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestDashboardService_CachesUntilWrite(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.ledger.CreateTransaction(ctx, f.owner.ID, f.tx("2024-03-01", 90000, f.rent, "rent"))
	require.NoError(t, err)

	ov, err := f.dash.Overview(ctx, f.owner.ID)
	require.NoError(t, err)
	assert.Equal(t, core.Cents(90000), ov.Totals.Expense)

	// A write that bypasses the services is not seen while cached.
	_, err = f.store.CreateTransaction(ctx, core.Transaction{OwnerID: f.owner.ID, CategoryID: f.salary.ID, Date: core.NewDate(2024, 3, 2), Amount: core.Cents(100)})
	require.NoError(t, err)
	ov, err = f.dash.Overview(ctx, f.owner.ID)
	require.NoError(t, err)
	assert.True(t, ov.Totals.Income.IsZero())

	_, err = f.ledger.SetBudget(ctx, f.owner.ID, f.rent.ID, core.Period{Year: 2024, Month: 3}, core.Cents(90000))
	require.NoError(t, err)
	ov, err = f.dash.Overview(ctx, f.owner.ID)
	require.NoError(t, err)
	assert.Equal(t, core.Cents(100), ov.Totals.Income)
	require.Len(t, ov.Alerts, 1)

	sd, err := f.dash.Summary(ctx, f.owner.ID)
	require.NoError(t, err)
	assert.Equal(t, core.Cents(90000), sd.BudgetTotal)
	assert.Equal(t, core.Cents(90000), sd.SpentTotal)
}

// racingStore calls during once, after the first transaction load has read.
type racingStore struct {
	ledger.Store
	during func()
	loads  atomic.Int32
}

func (r *racingStore) TransactionsFor(ctx context.Context, owner int64, q ledger.Query) ([]core.LedgerEntry, error) {
	entries, err := r.Store.TransactionsFor(ctx, owner, q)
	if r.loads.Add(1) == 1 && r.during != nil {
		r.during()
	}
	return entries, err
}

func TestDashboardService_InvalidateDuringLoadIsNotCached(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	store := &racingStore{Store: f.store}
	dash := NewDashboardService(store, 0.9, time.Hour)
	dash.now = f.dash.now
	ledgerSvc := NewLedgerService(f.store, nil, dash)

	store.during = func() {
		_, err := ledgerSvc.CreateTransaction(ctx, f.owner.ID, f.tx("2024-03-02", 500, f.rent, "late write"))
		assert.NoError(t, err)
	}

	stale, err := dash.Overview(ctx, f.owner.ID)
	require.NoError(t, err)
	assert.True(t, stale.Totals.Expense.IsZero(), "the racing load read before the write")

	fresh, err := dash.Overview(ctx, f.owner.ID)
	require.NoError(t, err)
	assert.Equal(t, core.Cents(500), fresh.Totals.Expense)
	assert.Equal(t, int32(2), store.loads.Load())

	_, err = dash.Overview(ctx, f.owner.ID)
	require.NoError(t, err)
	assert.Equal(t, int32(2), store.loads.Load(), "an undisturbed load is cached")
}
