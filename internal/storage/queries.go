package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"budgetapp/internal/core"
	"budgetapp/internal/ledger"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx so the same queries run
// inside and outside a transaction.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

const timeLayout = time.RFC3339

const selectEntry = `
SELECT t.id, t.owner_id, t.category_id, t.date, t.amount_cents, t.description, t.tags,
       t.is_deleted, t.created_at, t.hash, t.import_batch, c.name, c.type
FROM transactions t
JOIN categories c ON c.id = t.category_id`

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (core.LedgerEntry, error) {
	var (
		e         core.LedgerEntry
		date      string
		createdAt string
		typ       string
	)
	err := row.Scan(&e.ID, &e.OwnerID, &e.CategoryID, &date, &e.Amount.Cents, &e.Description, &e.Tags,
		&e.Deleted, &createdAt, &e.Fingerprint, &e.ImportBatch, &e.CategoryName, &typ)
	if err != nil {
		return core.LedgerEntry{}, err
	}
	if e.Date, err = core.ParseDate(date); err != nil {
		return core.LedgerEntry{}, fmt.Errorf("parse stored date %q: %w", date, err)
	}
	e.CreatedAt, _ = time.Parse(timeLayout, createdAt)
	e.CategoryType = core.CategoryType(typ)
	return e, nil
}

func (q *Queries) ListEntries(ctx context.Context, owner int64, f ledger.Query) ([]core.LedgerEntry, error) {
	var (
		where = []string{"t.owner_id = ?"}
		args  = []any{owner}
	)
	if !f.IncludeDeleted {
		where = append(where, "t.is_deleted = 0")
	}
	if !f.From.IsZero() {
		where = append(where, "t.date >= ?")
		args = append(args, f.From.ISO())
	}
	if !f.To.IsZero() {
		where = append(where, "t.date <= ?")
		args = append(args, f.To.ISO())
	}
	query := selectEntry + " WHERE " + strings.Join(where, " AND ") + " ORDER BY t.date DESC, t.id DESC"

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]core.LedgerEntry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (q *Queries) GetEntry(ctx context.Context, owner, id int64) (core.LedgerEntry, error) {
	row := q.db.QueryRowContext(ctx, selectEntry+" WHERE t.owner_id = ? AND t.id = ?", owner, id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.LedgerEntry{}, core.NotFound("transaction", id)
	}
	return e, err
}

func (q *Queries) InsertTransaction(ctx context.Context, t core.Transaction) (int64, error) {
	res, err := q.db.ExecContext(ctx, `
INSERT INTO transactions (owner_id, category_id, date, amount_cents, description, tags, created_at, hash, import_batch)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.OwnerID, t.CategoryID, t.Date.ISO(), t.Amount.Cents, t.Description, t.Tags,
		t.CreatedAt.UTC().Format(timeLayout), t.Fingerprint, t.ImportBatch)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (q *Queries) UpdateTransaction(ctx context.Context, t core.Transaction) (int64, error) {
	res, err := q.db.ExecContext(ctx, `
UPDATE transactions
SET category_id = ?, date = ?, amount_cents = ?, description = ?, tags = ?, hash = ?
WHERE id = ? AND owner_id = ?`,
		t.CategoryID, t.Date.ISO(), t.Amount.Cents, t.Description, t.Tags, t.Fingerprint, t.ID, t.OwnerID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (q *Queries) SoftDeleteTransaction(ctx context.Context, owner, id int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, `UPDATE transactions SET is_deleted = 1 WHERE id = ? AND owner_id = ?`, id, owner)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// FingerprintsFor returns the fingerprints of the owner's live transactions.
func (q *Queries) FingerprintsFor(ctx context.Context, owner int64) (map[string]struct{}, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT DISTINCT hash FROM transactions WHERE owner_id = ? AND is_deleted = 0`, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]struct{})
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, err
		}
		out[h] = struct{}{}
	}
	return out, rows.Err()
}

func scanCategory(row scanner) (core.Category, error) {
	var (
		c      core.Category
		typ    string
		parent sql.NullInt64
	)
	if err := row.Scan(&c.ID, &c.Name, &typ, &parent); err != nil {
		return core.Category{}, err
	}
	c.Type = core.CategoryType(typ)
	if parent.Valid {
		c.ParentID = &parent.Int64
	}
	return c, nil
}

func (q *Queries) ListCategories(ctx context.Context) ([]core.Category, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT id, name, type, parent_id FROM categories ORDER BY type, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]core.Category, 0)
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (q *Queries) FindCategory(ctx context.Context, name string, typ core.CategoryType) (core.Category, error) {
	name = strings.TrimSpace(name)
	row := q.db.QueryRowContext(ctx,
		`SELECT id, name, type, parent_id FROM categories WHERE lower(name) = lower(?) AND type = ?`, name, string(typ))
	c, err := scanCategory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, core.NotFound("category", name)
	}
	return c, err
}

func (q *Queries) InsertCategory(ctx context.Context, c core.Category) (int64, error) {
	var parent any
	if c.ParentID != nil {
		parent = *c.ParentID
	}
	res, err := q.db.ExecContext(ctx, `INSERT INTO categories (name, type, parent_id) VALUES (?, ?, ?)`,
		c.Name, string(c.Type), parent)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (q *Queries) DeleteCategory(ctx context.Context, id int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (q *Queries) ListBudgets(ctx context.Context, owner int64, period string) ([]core.Budget, []string, error) {
	rows, err := q.db.QueryContext(ctx, `
SELECT b.id, b.owner_id, b.category_id, b.period, b.amount_cents, c.name
FROM budgets b
JOIN categories c ON c.id = b.category_id
WHERE b.owner_id = ? AND b.period = ?
ORDER BY b.id`, owner, period)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	budgets := make([]core.Budget, 0)
	names := make([]string, 0)
	for rows.Next() {
		var (
			b      core.Budget
			period string
			name   string
		)
		if err := rows.Scan(&b.ID, &b.OwnerID, &b.CategoryID, &period, &b.Amount.Cents, &name); err != nil {
			return nil, nil, err
		}
		if b.Period, err = core.ParsePeriod(period); err != nil {
			return nil, nil, err
		}
		budgets = append(budgets, b)
		names = append(names, name)
	}
	return budgets, names, rows.Err()
}

func (q *Queries) UpsertBudget(ctx context.Context, owner, categoryID int64, period string, cents int64) (int64, error) {
	var id int64
	err := q.db.QueryRowContext(ctx, `
INSERT INTO budgets (owner_id, category_id, period, amount_cents)
VALUES (?, ?, ?, ?)
ON CONFLICT (owner_id, category_id, period) DO UPDATE SET amount_cents = excluded.amount_cents
RETURNING id`, owner, categoryID, period, cents).Scan(&id)
	return id, err
}

func (q *Queries) DeleteBudget(ctx context.Context, owner, id int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, `DELETE FROM budgets WHERE id = ? AND owner_id = ?`, id, owner)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanReport(row scanner) (core.Report, error) {
	var (
		r           core.Report
		summaryJSON string
		generatedAt string
	)
	if err := row.Scan(&r.ID, &r.OwnerID, &r.Period, &summaryJSON, &generatedAt); err != nil {
		return core.Report{}, err
	}
	if err := json.Unmarshal([]byte(summaryJSON), &r.Summary); err != nil {
		return core.Report{}, fmt.Errorf("decode summary: %w", err)
	}
	r.GeneratedAt, _ = time.Parse(timeLayout, generatedAt)
	return r, nil
}

func (q *Queries) UpsertReport(ctx context.Context, owner int64, period string, summary core.Summary, at time.Time) (core.Report, error) {
	body, err := json.Marshal(summary)
	if err != nil {
		return core.Report{}, fmt.Errorf("encode summary: %w", err)
	}
	row := q.db.QueryRowContext(ctx, `
INSERT INTO reports (owner_id, period, summary_json, generated_at)
VALUES (?, ?, ?, ?)
ON CONFLICT (owner_id, period) DO UPDATE SET summary_json = excluded.summary_json, generated_at = excluded.generated_at
RETURNING id, owner_id, period, summary_json, generated_at`,
		owner, period, string(body), at.UTC().Format(timeLayout))
	return scanReport(row)
}

func (q *Queries) GetReport(ctx context.Context, owner int64, period string) (core.Report, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT id, owner_id, period, summary_json, generated_at FROM reports WHERE owner_id = ? AND period = ?`, owner, period)
	r, err := scanReport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Report{}, core.NotFound("report", period)
	}
	return r, err
}

func (q *Queries) ListReports(ctx context.Context, owner int64) ([]core.Report, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, owner_id, period, summary_json, generated_at FROM reports WHERE owner_id = ? ORDER BY period DESC`, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]core.Report, 0)
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanUser(row scanner) (core.User, error) {
	var (
		u         core.User
		createdAt string
	)
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.IsAdmin, &createdAt); err != nil {
		return core.User{}, err
	}
	u.CreatedAt, _ = time.Parse(timeLayout, createdAt)
	return u, nil
}

const selectUser = `SELECT id, email, password_hash, is_admin, created_at FROM users`

func (q *Queries) FindUserByEmail(ctx context.Context, email string) (core.User, error) {
	u, err := scanUser(q.db.QueryRowContext(ctx, selectUser+` WHERE lower(email) = lower(?)`, email))
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, core.NotFound("user", email)
	}
	return u, err
}

func (q *Queries) GetUser(ctx context.Context, id int64) (core.User, error) {
	u, err := scanUser(q.db.QueryRowContext(ctx, selectUser+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, core.NotFound("user", id)
	}
	return u, err
}

func (q *Queries) InsertUser(ctx context.Context, u core.User) (int64, error) {
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO users (email, password_hash, is_admin, created_at) VALUES (?, ?, ?, ?)`,
		u.Email, u.PasswordHash, u.IsAdmin, u.CreatedAt.UTC().Format(timeLayout))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (q *Queries) ListUsers(ctx context.Context) ([]core.User, error) {
	rows, err := q.db.QueryContext(ctx, selectUser+` ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]core.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}
