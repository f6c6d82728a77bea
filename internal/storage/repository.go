package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"budgetapp/internal/core"
	"budgetapp/internal/fingerprint"
	"budgetapp/internal/importer"
	"budgetapp/internal/ledger"
)

var _ ledger.Store = (*SQLiteRepository)(nil)

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	now     func() time.Time
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	// Foreign keys are per connection in SQLite; category deletes rely on the cascade.
	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
		now:     time.Now,
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping backs the readiness check.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	if se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
		return true
	}
	return se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(se.Error(), "UNIQUE")
}

func isForeignKeyViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code() == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY
}

func (r *SQLiteRepository) TransactionsFor(ctx context.Context, owner int64, q ledger.Query) ([]core.LedgerEntry, error) {
	entries, err := r.queries.ListEntries(ctx, owner, q)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return entries, nil
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, owner, id int64) (core.LedgerEntry, error) {
	e, err := r.queries.GetEntry(ctx, owner, id)
	if err != nil && !core.IsNotFound(err) {
		return core.LedgerEntry{}, fmt.Errorf("get transaction: %w", err)
	}
	return e, err
}

func (r *SQLiteRepository) CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	t, err := insertTransaction(ctx, r.queries, t, r.now())
	if err != nil {
		return core.Transaction{}, err
	}

	slog.InfoContext(ctx, "Transaction saved to SQLite",
		"id", t.ID,
		"owner_id", t.OwnerID,
		"category_id", t.CategoryID,
		"amount_cents", t.Amount.Cents,
		"date", t.Date.ISO())

	return t, nil
}

func insertTransaction(ctx context.Context, q *Queries, t core.Transaction, now time.Time) (core.Transaction, error) {
	if err := userExists(ctx, q, t.OwnerID); err != nil {
		return core.Transaction{}, err
	}
	if err := categoryExists(ctx, q, t.CategoryID); err != nil {
		return core.Transaction{}, err
	}
	t.Deleted = false
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now.UTC()
	}
	fingerprint.Stamp(&t)

	id, err := q.InsertTransaction(ctx, t)
	if isForeignKeyViolation(err) {
		return core.Transaction{}, core.NotFound("user", t.OwnerID)
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}
	t.ID = id
	return t, nil
}

func categoryExists(ctx context.Context, q *Queries, id int64) error {
	var one int
	err := q.db.QueryRowContext(ctx, `SELECT 1 FROM categories WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return core.NotFound("category", id)
	}
	if err != nil {
		return fmt.Errorf("check category: %w", err)
	}
	return nil
}

func userExists(ctx context.Context, q *Queries, id int64) error {
	var one int
	err := q.db.QueryRowContext(ctx, `SELECT 1 FROM users WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return core.NotFound("user", id)
	}
	if err != nil {
		return fmt.Errorf("check user: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) UpdateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	cur, err := r.GetTransaction(ctx, t.OwnerID, t.ID)
	if err != nil {
		return core.Transaction{}, err
	}
	if err := categoryExists(ctx, r.queries, t.CategoryID); err != nil {
		return core.Transaction{}, err
	}

	updated := cur.Transaction
	updated.CategoryID = t.CategoryID
	updated.Date = t.Date
	updated.Amount = t.Amount
	updated.Description = t.Description
	updated.Tags = t.Tags
	fingerprint.Stamp(&updated)

	if _, err := r.queries.UpdateTransaction(ctx, updated); err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction updated", "id", updated.ID, "owner_id", updated.OwnerID)
	return updated, nil
}

func (r *SQLiteRepository) SoftDeleteTransaction(ctx context.Context, owner, id int64) error {
	n, err := r.queries.SoftDeleteTransaction(ctx, owner, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if n == 0 {
		return core.NotFound("transaction", id)
	}
	slog.InfoContext(ctx, "Transaction soft-deleted", "id", id, "owner_id", owner)
	return nil
}

func (r *SQLiteRepository) CategoriesAll(ctx context.Context) ([]core.Category, error) {
	cats, err := r.queries.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return cats, nil
}

func (r *SQLiteRepository) FindCategory(ctx context.Context, name string, typ core.CategoryType) (core.Category, error) {
	c, err := r.queries.FindCategory(ctx, name, typ)
	if err != nil && !core.IsNotFound(err) {
		return core.Category{}, fmt.Errorf("find category: %w", err)
	}
	return c, err
}

func (r *SQLiteRepository) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	return createCategory(ctx, r.queries, c)
}

func createCategory(ctx context.Context, q *Queries, c core.Category) (core.Category, error) {
	c.Name = strings.TrimSpace(c.Name)
	if err := c.Validate(); err != nil {
		return core.Category{}, &core.ValidationError{Field: "category", Reason: err.Error()}
	}
	id, err := q.InsertCategory(ctx, c)
	if isUniqueViolation(err) {
		return core.Category{}, &core.ConflictError{Kind: "category", Key: c.Name}
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}
	c.ID = id
	return c, nil
}

func (r *SQLiteRepository) DeleteCategory(ctx context.Context, id int64) error {
	n, err := r.queries.DeleteCategory(ctx, id)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	if n == 0 {
		return core.NotFound("category", id)
	}
	slog.InfoContext(ctx, "Category deleted with its transactions and budgets", "id", id)
	return nil
}

func (r *SQLiteRepository) BudgetsFor(ctx context.Context, owner int64, period core.Period) ([]core.BudgetLine, error) {
	budgets, names, err := r.queries.ListBudgets(ctx, owner, period.String())
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	lines := make([]core.BudgetLine, len(budgets))
	for i, b := range budgets {
		lines[i] = core.BudgetLine{Category: names[i], Amount: b.Amount}
	}
	return lines, nil
}

func (r *SQLiteRepository) ListBudgets(ctx context.Context, owner int64, period core.Period) ([]core.Budget, error) {
	budgets, _, err := r.queries.ListBudgets(ctx, owner, period.String())
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	return budgets, nil
}

func (r *SQLiteRepository) UpsertBudget(ctx context.Context, owner, categoryID int64, period core.Period, amount core.Money) (core.Budget, error) {
	if err := userExists(ctx, r.queries, owner); err != nil {
		return core.Budget{}, err
	}
	if err := categoryExists(ctx, r.queries, categoryID); err != nil {
		return core.Budget{}, err
	}
	id, err := r.queries.UpsertBudget(ctx, owner, categoryID, period.String(), amount.Cents)
	if isForeignKeyViolation(err) {
		return core.Budget{}, core.NotFound("user", owner)
	}
	if err != nil {
		return core.Budget{}, fmt.Errorf("upsert budget: %w", err)
	}
	return core.Budget{ID: id, OwnerID: owner, CategoryID: categoryID, Period: period, Amount: amount}, nil
}

func (r *SQLiteRepository) DeleteBudget(ctx context.Context, owner, id int64) error {
	n, err := r.queries.DeleteBudget(ctx, owner, id)
	if err != nil {
		return fmt.Errorf("delete budget: %w", err)
	}
	if n == 0 {
		return core.NotFound("budget", id)
	}
	return nil
}

func (r *SQLiteRepository) UpsertReport(ctx context.Context, owner int64, period string, summary core.Summary) (core.Report, error) {
	if err := userExists(ctx, r.queries, owner); err != nil {
		return core.Report{}, err
	}
	rep, err := r.queries.UpsertReport(ctx, owner, period, summary, r.now())
	if isForeignKeyViolation(err) {
		return core.Report{}, core.NotFound("user", owner)
	}
	if err != nil {
		return core.Report{}, fmt.Errorf("upsert report: %w", err)
	}
	slog.InfoContext(ctx, "Report stored", "owner_id", owner, "period", period)
	return rep, nil
}

func (r *SQLiteRepository) GetReport(ctx context.Context, owner int64, period string) (core.Report, error) {
	rep, err := r.queries.GetReport(ctx, owner, period)
	if err != nil && !core.IsNotFound(err) {
		return core.Report{}, fmt.Errorf("get report: %w", err)
	}
	return rep, err
}

func (r *SQLiteRepository) ListReports(ctx context.Context, owner int64) ([]core.Report, error) {
	reps, err := r.queries.ListReports(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	return reps, nil
}

func (r *SQLiteRepository) FindUserByEmail(ctx context.Context, email string) (core.User, error) {
	u, err := r.queries.FindUserByEmail(ctx, email)
	if err != nil && !core.IsNotFound(err) {
		return core.User{}, fmt.Errorf("find user: %w", err)
	}
	return u, err
}

func (r *SQLiteRepository) GetUser(ctx context.Context, id int64) (core.User, error) {
	u, err := r.queries.GetUser(ctx, id)
	if err != nil && !core.IsNotFound(err) {
		return core.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, err
}

func (r *SQLiteRepository) CreateUser(ctx context.Context, u core.User) (core.User, error) {
	u.CreatedAt = r.now().UTC()
	id, err := r.queries.InsertUser(ctx, u)
	if isUniqueViolation(err) {
		return core.User{}, &core.ConflictError{Kind: "user", Key: u.Email}
	}
	if err != nil {
		return core.User{}, fmt.Errorf("create user: %w", err)
	}
	u.ID = id
	return u, nil
}

func (r *SQLiteRepository) ListUsers(ctx context.Context) ([]core.User, error) {
	users, err := r.queries.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// ImportBatch reconciles and inserts all rows inside one SQL transaction.
func (r *SQLiteRepository) ImportBatch(ctx context.Context, owner int64, batchID string, rows []ledger.ImportRow) (ledger.ImportResult, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return ledger.ImportResult{}, fmt.Errorf("begin import: %w", err)
	}
	defer tx.Rollback()

	qtx := r.queries.WithTx(tx)

	if err := userExists(ctx, qtx, owner); err != nil {
		return ledger.ImportResult{}, err
	}

	existing, err := qtx.FingerprintsFor(ctx, owner)
	if err != nil {
		return ledger.ImportResult{}, fmt.Errorf("load fingerprints: %w", err)
	}

	rec, err := importer.Reconcile(ctx, owner, batchID, rows, txResolver{q: qtx})
	if err != nil {
		return ledger.ImportResult{}, err
	}

	now := r.now()
	for _, t := range rec.Transactions {
		if _, err := insertTransaction(ctx, qtx, t, now); err != nil {
			return ledger.ImportResult{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return ledger.ImportResult{}, fmt.Errorf("commit import: %w", err)
	}

	created := rec.CreatedCategories
	if created == nil {
		created = []string{}
	}

	slog.InfoContext(ctx, "Import batch committed",
		"batch_id", batchID,
		"owner_id", owner,
		"rows", len(rec.Transactions),
		"created_categories", len(created))

	return ledger.ImportResult{
		BatchID:            batchID,
		Imported:           len(rec.Transactions),
		CreatedCategories:  created,
		PossibleDuplicates: importer.PossibleDuplicates(existing, rec.Transactions),
		Periods:            importer.Periods(rec.Transactions),
	}, nil
}

type txResolver struct{ q *Queries }

func (r txResolver) FindCategory(ctx context.Context, name string, typ core.CategoryType) (core.Category, error) {
	return r.q.FindCategory(ctx, name, typ)
}

func (r txResolver) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	return createCategory(ctx, r.q, c)
}
