package orders

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/tuftline-erp/tuftline-erp/internal/accounting/journals"
	"github.com/tuftline-erp/tuftline-erp/internal/production"
	"github.com/tuftline-erp/tuftline-erp/internal/shared"
)

// TxRepository exposes every order operation available inside one
// transaction, plus transaction-scoped views of the ledger and production
// stores so a payment posting or job creation commits atomically with the
// order's state.
type TxRepository interface {
	InsertOrder(ctx context.Context, o Order) (Order, error)
	InsertItems(ctx context.Context, orderID int64, items []OrderItem) ([]OrderItem, error)
	DeleteItems(ctx context.Context, orderID int64) error
	GetOrderForUpdate(ctx context.Context, orderID int64) (Order, error)
	UpdateOrderStatus(ctx context.Context, orderID int64, status Status) error
	UpdateOrderTotal(ctx context.Context, orderID int64, total decimal.Decimal) error
	ListItems(ctx context.Context, orderID int64) ([]OrderItem, error)
	InsertPayment(ctx context.Context, p Payment) (Payment, error)
	SumPayments(ctx context.Context, orderID int64) (decimal.Decimal, error)
	CountUnfinishedJobs(ctx context.Context, orderID int64) (int, error)

	Journals() journals.TxStore
	Production() production.TxStore
}

// Repository persists orders in PostgreSQL.
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

const orderColumns = `id, reference, client_id, status, deposit_percent, total_amount, created_at, updated_at`

// Get returns one order with its items and derived balance due.
func (r *Repository) Get(ctx context.Context, orderID int64) (Order, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, orderID)
	o, err := scanOrder(row)
	if err != nil {
		return Order{}, err
	}
	items, err := listItems(ctx, r.pool, orderID)
	if err != nil {
		return Order{}, err
	}
	o.Items = items
	paid, err := sumPayments(ctx, r.pool, orderID)
	if err != nil {
		return Order{}, err
	}
	o.BalanceDue = o.TotalAmount.Sub(paid)
	return o, nil
}

// List returns recent orders without items.
func (r *Repository) List(ctx context.Context, limit int) ([]Order, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// ListPayments returns the payments of one order, oldest first.
func (r *Repository) ListPayments(ctx context.Context, orderID int64) ([]Payment, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, order_id, amount, method, entry_id, received_at
FROM order_payments WHERE order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Payment
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.ID, &p.OrderID, &p.Amount, &p.Method, &p.EntryID, &p.ReceivedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.Reference, &o.ClientID, &o.Status, &o.DepositPercent, &o.TotalAmount, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrNotFound
	}
	if err != nil {
		return Order{}, err
	}
	return o, nil
}

func listItems(ctx context.Context, q querier, orderID int64) ([]OrderItem, error) {
	rows, err := q.Query(ctx, `SELECT id, order_id, description, qty, unit_price, amount, requires_production
FROM order_items WHERE order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []OrderItem
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.Description, &it.Qty, &it.UnitPrice, &it.Amount, &it.RequiresProduction); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func sumPayments(ctx context.Context, q querier, orderID int64) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := q.QueryRow(ctx, `SELECT COALESCE(SUM(amount), 0) FROM order_payments WHERE order_id = $1`, orderID).Scan(&total)
	return total, err
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) InsertOrder(ctx context.Context, o Order) (Order, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO orders (reference, client_id, status, deposit_percent, total_amount)
VALUES ($1,$2,$3,$4,$5) RETURNING id, created_at, updated_at`,
		o.Reference, o.ClientID, o.Status, o.DepositPercent, o.TotalAmount).
		Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}

func (r *txRepository) InsertItems(ctx context.Context, orderID int64, items []OrderItem) ([]OrderItem, error) {
	out := make([]OrderItem, 0, len(items))
	for _, it := range items {
		it.OrderID = orderID
		err := r.tx.QueryRow(ctx, `INSERT INTO order_items (order_id, description, qty, unit_price, amount, requires_production)
VALUES ($1,$2,$3,$4,$5,$6) RETURNING id`,
			orderID, it.Description, it.Qty, it.UnitPrice, it.Amount, it.RequiresProduction).Scan(&it.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, nil
}

func (r *txRepository) DeleteItems(ctx context.Context, orderID int64) error {
	_, err := r.tx.Exec(ctx, `DELETE FROM order_items WHERE order_id = $1`, orderID)
	return err
}

func (r *txRepository) GetOrderForUpdate(ctx context.Context, orderID int64) (Order, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE NOWAIT`, orderID)
	o, err := scanOrder(row)
	if err != nil {
		return Order{}, shared.MapLockError(err)
	}
	return o, nil
}

func (r *txRepository) UpdateOrderStatus(ctx context.Context, orderID int64, status Status) error {
	_, err := r.tx.Exec(ctx, `UPDATE orders SET status = $2, updated_at = now() WHERE id = $1`, orderID, status)
	return err
}

func (r *txRepository) UpdateOrderTotal(ctx context.Context, orderID int64, total decimal.Decimal) error {
	_, err := r.tx.Exec(ctx, `UPDATE orders SET total_amount = $2, updated_at = now() WHERE id = $1`, orderID, total)
	return err
}

func (r *txRepository) ListItems(ctx context.Context, orderID int64) ([]OrderItem, error) {
	return listItems(ctx, r.tx, orderID)
}

func (r *txRepository) InsertPayment(ctx context.Context, p Payment) (Payment, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO order_payments (order_id, amount, method, entry_id)
VALUES ($1,$2,$3,$4) RETURNING id, received_at`,
		p.OrderID, p.Amount, p.Method, p.EntryID).Scan(&p.ID, &p.ReceivedAt)
	return p, err
}

func (r *txRepository) SumPayments(ctx context.Context, orderID int64) (decimal.Decimal, error) {
	return sumPayments(ctx, r.tx, orderID)
}

func (r *txRepository) CountUnfinishedJobs(ctx context.Context, orderID int64) (int, error) {
	var n int
	err := r.tx.QueryRow(ctx, `SELECT COUNT(*) FROM production_jobs j
JOIN order_items oi ON oi.id = j.order_item_id
WHERE oi.order_id = $1 AND j.status NOT IN ('COMPLETED', 'CANCELLED')`, orderID).Scan(&n)
	return n, err
}

func (r *txRepository) Journals() journals.TxStore {
	return journals.NewTxStore(r.tx)
}

func (r *txRepository) Production() production.TxStore {
	return production.NewTxStore(r.tx)
}
