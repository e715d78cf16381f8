// Package storage persists the ledger in SQLite. Every mutating operation
// writes the transaction row and its audit entry inside a single database
// transaction: either both commit or neither does.
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

	"incomeledger/internal/core"

	_ "modernc.org/sqlite"
)

const (
	dateLayout      = "2006-01-02"
	timestampLayout = time.RFC3339
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// withTx runs fn inside a database transaction, rolling back on any error.
func (r *SQLiteRepository) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			slog.ErrorContext(ctx, "Rollback failed", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// --- Categories ---

func (r *SQLiteRepository) CreateCategory(ctx context.Context, c core.Category) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO categories (id, name, color, is_default, owner_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.Color, boolToInt(c.IsDefault), c.OwnerID, c.CreatedAt.UTC().Format(timestampLayout))
	if err != nil {
		return fmt.Errorf("insert category: %w", err)
	}

	slog.InfoContext(ctx, "Category created", "id", c.ID, "name", c.Name, "is_default", c.IsDefault)
	return nil
}

// GetVisibleCategory loads a category only if it exists and is usable by
// the actor (default, or owned by them). Returns core.ErrInvalidCategory
// otherwise.
func (r *SQLiteRepository) GetVisibleCategory(ctx context.Context, id, actorID string) (core.Category, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, color, is_default, owner_id, created_at
		FROM categories
		WHERE id = ? AND (is_default = 1 OR owner_id = ?)`,
		id, actorID)

	c, err := scanCategory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, core.ErrInvalidCategory
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("get category: %w", err)
	}
	return c, nil
}

// ListCategories returns the default categories plus the actor's own,
// defaults first, then by name.
func (r *SQLiteRepository) ListCategories(ctx context.Context, actorID string) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, color, is_default, owner_id, created_at
		FROM categories
		WHERE is_default = 1 OR owner_id = ?
		ORDER BY is_default DESC, name ASC`,
		actorID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CategoryNameExists reports whether the actor already has a category with
// this name. Default category names are not reserved; an actor may shadow
// one with a personal category.
func (r *SQLiteRepository) CategoryNameExists(ctx context.Context, actorID, name string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM categories
		WHERE name = ? AND owner_id = ?`,
		name, actorID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check category name: %w", err)
	}
	return n > 0, nil
}

// --- Transactions ---

// CreateTransaction inserts the transaction row and its audit entry
// atomically.
func (r *SQLiteRepository) CreateTransaction(ctx context.Context, t core.Transaction, audit core.AuditEntry) error {
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO transactions
				(id, owner_id, category_id, amount_cents, source, transaction_date, notes, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			t.ID, t.OwnerID, t.CategoryID, t.Amount.Cents, t.Source,
			t.TransactionDate.Format(dateLayout), t.Notes,
			t.CreatedAt.UTC().Format(timestampLayout), t.UpdatedAt.UTC().Format(timestampLayout))
		if err != nil {
			return fmt.Errorf("insert transaction: %w", err)
		}
		return insertAudit(ctx, tx, audit)
	})
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Transaction created",
		"id", t.ID, "owner_id", t.OwnerID, "amount_cents", t.Amount.Cents, "source", t.Source)
	return nil
}

// UpdateTransaction rewrites the mutable fields of a live transaction and
// records its audit entry atomically. Returns core.ErrNotFound when the
// row is absent, owned by someone else, or already soft-deleted.
func (r *SQLiteRepository) UpdateTransaction(ctx context.Context, t core.Transaction, audit core.AuditEntry) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE transactions
			SET category_id = ?, amount_cents = ?, source = ?, transaction_date = ?, notes = ?, updated_at = ?
			WHERE id = ? AND owner_id = ? AND deleted_at IS NULL`,
			t.CategoryID, t.Amount.Cents, t.Source, t.TransactionDate.Format(dateLayout), t.Notes,
			t.UpdatedAt.UTC().Format(timestampLayout),
			t.ID, t.OwnerID)
		if err != nil {
			return fmt.Errorf("update transaction: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if n == 0 {
			return core.ErrNotFound
		}
		return insertAudit(ctx, tx, audit)
	})
}

// SoftDeleteTransaction marks a live transaction deleted and records its
// audit entry atomically. The row itself is never removed.
func (r *SQLiteRepository) SoftDeleteTransaction(ctx context.Context, id, ownerID string, deletedAt time.Time, audit core.AuditEntry) error {
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE transactions
			SET deleted_at = ?, updated_at = ?
			WHERE id = ? AND owner_id = ? AND deleted_at IS NULL`,
			deletedAt.UTC().Format(timestampLayout), deletedAt.UTC().Format(timestampLayout),
			id, ownerID)
		if err != nil {
			return fmt.Errorf("soft delete transaction: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if n == 0 {
			return core.ErrNotFound
		}
		return insertAudit(ctx, tx, audit)
	})
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Transaction soft-deleted", "id", id, "owner_id", ownerID)
	return nil
}

const transactionColumns = `
	t.id, t.owner_id, t.category_id, t.amount_cents, t.source, t.transaction_date,
	t.notes, t.deleted_at, t.created_at, t.updated_at,
	c.id, c.name, c.color, c.is_default, c.owner_id, c.created_at`

// GetTransaction loads a single live transaction scoped to its owner,
// joined with its category. Soft-deleted rows are invisible here.
func (r *SQLiteRepository) GetTransaction(ctx context.Context, id, ownerID string) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions t
		JOIN categories c ON c.id = t.category_id
		WHERE t.id = ? AND t.owner_id = ? AND t.deleted_at IS NULL`,
		id, ownerID)

	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, core.ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return t, nil
}

// ListTransactions returns one page of the owner's live transactions plus
// the total count for the same filters. Ordering is transaction_date
// descending with id descending as the deterministic tie-break.
func (r *SQLiteRepository) ListTransactions(ctx context.Context, ownerID string, f core.TransactionFilters) ([]core.Transaction, int64, error) {
	f = f.Normalize()

	where := []string{"t.owner_id = ?", "t.deleted_at IS NULL"}
	args := []any{ownerID}

	if f.StartDate != nil {
		where = append(where, "t.transaction_date >= ?")
		args = append(args, f.StartDate.Format(dateLayout))
	}
	if f.EndDate != nil {
		where = append(where, "t.transaction_date <= ?")
		args = append(args, f.EndDate.Format(dateLayout))
	}
	if f.CategoryID != "" {
		where = append(where, "t.category_id = ?")
		args = append(args, f.CategoryID)
	}
	if f.Search != "" {
		// instr on lowered text: case-insensitive substring without LIKE
		// wildcard escaping concerns.
		where = append(where, "(instr(lower(t.source), ?) > 0 OR instr(lower(t.notes), ?) > 0)")
		needle := strings.ToLower(f.Search)
		args = append(args, needle, needle)
	}

	cond := strings.Join(where, " AND ")

	var total int64
	if err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM transactions t WHERE "+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", err)
	}

	query := `
		SELECT ` + transactionColumns + `
		FROM transactions t
		JOIN categories c ON c.id = t.category_id
		WHERE ` + cond + `
		ORDER BY t.transaction_date DESC, t.id DESC
		LIMIT ? OFFSET ?`
	args = append(args, f.Limit, (f.Page-1)*f.Limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, total, rows.Err()
}

// --- Audit log ---

func insertAudit(ctx context.Context, tx *sql.Tx, a core.AuditEntry) error {
	var oldVal, newVal any
	if a.OldValue != nil {
		oldVal = string(a.OldValue)
	}
	if a.NewValue != nil {
		newVal = string(a.NewValue)
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO audit_log
			(id, actor_id, transaction_id, action, old_value, new_value, ip_address, user_agent, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.ActorID, a.TransactionID, string(a.Action), oldVal, newVal,
		a.IPAddress, a.UserAgent, a.CreatedAt.UTC().Format(timestampLayout))
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// ListAuditEntries returns the append-only trail for one transaction in
// write order. This is an inspection path: it is never routed through the
// public API.
func (r *SQLiteRepository) ListAuditEntries(ctx context.Context, transactionID string) ([]core.AuditEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, actor_id, transaction_id, action, old_value, new_value, ip_address, user_agent, created_at
		FROM audit_log
		WHERE transaction_id = ?
		ORDER BY rowid ASC`,
		transactionID)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	var out []core.AuditEntry
	for rows.Next() {
		var (
			a              core.AuditEntry
			action         string
			oldVal, newVal sql.NullString
			createdAt      string
		)
		if err := rows.Scan(&a.ID, &a.ActorID, &a.TransactionID, &action, &oldVal, &newVal,
			&a.IPAddress, &a.UserAgent, &createdAt); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		a.Action = core.AuditAction(action)
		if oldVal.Valid {
			a.OldValue = []byte(oldVal.String)
		}
		if newVal.Valid {
			a.NewValue = []byte(newVal.String)
		}
		if a.CreatedAt, err = time.Parse(timestampLayout, createdAt); err != nil {
			return nil, fmt.Errorf("parse audit timestamp: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// --- scanning helpers ---

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCategory(row rowScanner) (core.Category, error) {
	var (
		c         core.Category
		isDefault int
		ownerID   sql.NullString
		createdAt string
	)
	if err := row.Scan(&c.ID, &c.Name, &c.Color, &isDefault, &ownerID, &createdAt); err != nil {
		return core.Category{}, err
	}
	c.IsDefault = isDefault != 0
	if ownerID.Valid {
		c.OwnerID = &ownerID.String
	}
	var err error
	if c.CreatedAt, err = time.Parse(timestampLayout, createdAt); err != nil {
		return core.Category{}, fmt.Errorf("parse category timestamp: %w", err)
	}
	return c, nil
}

func scanTransaction(row rowScanner) (core.Transaction, error) {
	var (
		t            core.Transaction
		amountCents  int64
		txDate       string
		deletedAt    sql.NullString
		createdAt    string
		updatedAt    string
		c            core.Category
		catIsDefault int
		catOwnerID   sql.NullString
		catCreatedAt string
	)
	if err := row.Scan(
		&t.ID, &t.OwnerID, &t.CategoryID, &amountCents, &t.Source, &txDate,
		&t.Notes, &deletedAt, &createdAt, &updatedAt,
		&c.ID, &c.Name, &c.Color, &catIsDefault, &catOwnerID, &catCreatedAt,
	); err != nil {
		return core.Transaction{}, err
	}

	t.Amount = core.FromCents(amountCents)

	var err error
	if t.TransactionDate, err = time.Parse(dateLayout, txDate); err != nil {
		return core.Transaction{}, fmt.Errorf("parse transaction date: %w", err)
	}
	if deletedAt.Valid {
		ts, err := time.Parse(timestampLayout, deletedAt.String)
		if err != nil {
			return core.Transaction{}, fmt.Errorf("parse deleted_at: %w", err)
		}
		t.DeletedAt = &ts
	}
	if t.CreatedAt, err = time.Parse(timestampLayout, createdAt); err != nil {
		return core.Transaction{}, fmt.Errorf("parse created_at: %w", err)
	}
	if t.UpdatedAt, err = time.Parse(timestampLayout, updatedAt); err != nil {
		return core.Transaction{}, fmt.Errorf("parse updated_at: %w", err)
	}

	c.IsDefault = catIsDefault != 0
	if catOwnerID.Valid {
		c.OwnerID = &catOwnerID.String
	}
	if c.CreatedAt, err = time.Parse(timestampLayout, catCreatedAt); err != nil {
		return core.Transaction{}, fmt.Errorf("parse category created_at: %w", err)
	}
	t.Category = &c

	return t, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
