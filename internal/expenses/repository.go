package expenses

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tuftline-erp/tuftline-erp/internal/accounting/journals"
)

// TxRepository exposes expense persistence inside one transaction together
// with a transaction-scoped ledger view, so the expense row and its posting
// commit together.
type TxRepository interface {
	InsertExpense(ctx context.Context, e Expense) (Expense, error)
	SetEntryID(ctx context.Context, expenseID, entryID int64) error
	Journals() journals.TxStore
}

// Repository persists expenses in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	wrapper := &txRepository{tx: tx}
	if err := fn(ctx, wrapper); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

const expenseColumns = `id, reference, description, amount, expense_account_id, paid_from_id, entry_id, incurred_at, created_at`

// Get returns one expense.
func (r *Repository) Get(ctx context.Context, id int64) (Expense, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+expenseColumns+` FROM expenses WHERE id = $1`, id)
	return scanExpense(row)
}

// List returns recent expenses.
func (r *Repository) List(ctx context.Context, limit int) ([]Expense, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `SELECT `+expenseColumns+` FROM expenses ORDER BY id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanExpense(row pgx.Row) (Expense, error) {
	var e Expense
	err := row.Scan(&e.ID, &e.Reference, &e.Description, &e.Amount, &e.ExpenseAcctID, &e.PaidFromID, &e.EntryID, &e.IncurredAt, &e.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Expense{}, ErrNotFound
	}
	if err != nil {
		return Expense{}, err
	}
	return e, nil
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) InsertExpense(ctx context.Context, e Expense) (Expense, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO expenses (reference, description, amount, expense_account_id, paid_from_id, entry_id, incurred_at)
VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING id, created_at`,
		e.Reference, e.Description, e.Amount, e.ExpenseAcctID, e.PaidFromID, e.EntryID, e.IncurredAt).
		Scan(&e.ID, &e.CreatedAt)
	return e, err
}

func (r *txRepository) SetEntryID(ctx context.Context, expenseID, entryID int64) error {
	_, err := r.tx.Exec(ctx, `UPDATE expenses SET entry_id = $2 WHERE id = $1`, expenseID, entryID)
	return err
}

func (r *txRepository) Journals() journals.TxStore {
	return journals.NewTxStore(r.tx)
}
