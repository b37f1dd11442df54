package accounts

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	accshared "github.com/tuftline-erp/tuftline-erp/internal/accounting/shared"
)

// Repository persists the chart of accounts.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const accountColumns = `id, code, name, type, category, parent_id, balance, active, created_at, updated_at`

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.Code, &a.Name, &a.Type, &a.Category, &a.ParentID, &a.Balance, &a.Active, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, accshared.ErrAccountNotFound
		}
		return Account{}, err
	}
	return a, nil
}

// Create inserts an account.
func (r *Repository) Create(ctx context.Context, a Account) (Account, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO accounts (code, name, type, category, parent_id, balance, active)
VALUES ($1,$2,$3,$4,$5,0,true) RETURNING `+accountColumns,
		a.Code, a.Name, a.Type, a.Category, a.ParentID)
	created, err := scanAccount(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Account{}, accshared.ErrDuplicateCode
		}
		return Account{}, err
	}
	return created, nil
}

// Update changes name, category, parent and active flag. Type and balance are
// immutable through this path.
func (r *Repository) Update(ctx context.Context, a Account) (Account, error) {
	row := r.pool.QueryRow(ctx, `UPDATE accounts SET name=$2, category=$3, parent_id=$4, active=$5, updated_at=NOW()
WHERE id=$1 RETURNING `+accountColumns,
		a.ID, a.Name, a.Category, a.ParentID, a.Active)
	return scanAccount(row)
}

// Get fetches one account by id.
func (r *Repository) Get(ctx context.Context, id int64) (Account, error) {
	return scanAccount(r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id=$1`, id))
}

// GetByCode fetches one account by code.
func (r *Repository) GetByCode(ctx context.Context, code string) (Account, error) {
	return scanAccount(r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE code=$1`, code))
}

// List returns the chart ordered by code.
func (r *Repository) List(ctx context.Context) ([]Account, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY code ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// CountChildren returns the number of accounts whose parent is id.
func (r *Repository) CountChildren(ctx context.Context, id int64) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM accounts WHERE parent_id=$1`, id).Scan(&n)
	return n, err
}

// CountJournalLines returns the number of journal lines referencing id.
func (r *Repository) CountJournalLines(ctx context.Context, id int64) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM journal_lines WHERE account_id=$1`, id).Scan(&n)
	return n, err
}

// Delete removes an account row. Guards run in the service.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM accounts WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return accshared.ErrAccountNotFound
	}
	return nil
}
