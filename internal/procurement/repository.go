package procurement

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/tuftline-erp/tuftline-erp/internal/accounting/journals"
	"github.com/tuftline-erp/tuftline-erp/internal/inventory"
	"github.com/tuftline-erp/tuftline-erp/internal/shared"
)

// TxRepository exposes every procurement operation available inside one
// transaction, plus transaction-scoped views of the ledger and inventory
// stores so goods receipts commit stock, posting and PO state together.
type TxRepository interface {
	InsertPO(ctx context.Context, po PurchaseOrder) (PurchaseOrder, error)
	InsertLines(ctx context.Context, poID int64, lines []Line) ([]Line, error)
	GetPOForUpdate(ctx context.Context, poID int64) (PurchaseOrder, error)
	UpdatePOStatus(ctx context.Context, poID int64, status Status) error
	AddReceivedQty(ctx context.Context, lineID int64, qty decimal.Decimal) error

	Journals() journals.TxStore
	Inventory() inventory.TxStore
}

// Repository persists purchase orders in PostgreSQL.
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

const poColumns = `id, reference, supplier_id, status, created_at, updated_at`

// Get returns one purchase order with its lines.
func (r *Repository) Get(ctx context.Context, poID int64) (PurchaseOrder, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+poColumns+` FROM purchase_orders WHERE id = $1`, poID)
	po, err := scanPO(row)
	if err != nil {
		return PurchaseOrder{}, err
	}
	po.Lines, err = listLines(ctx, r.pool, poID)
	if err != nil {
		return PurchaseOrder{}, err
	}
	return po, nil
}

// List returns recent purchase orders without lines.
func (r *Repository) List(ctx context.Context, limit int) ([]PurchaseOrder, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `SELECT `+poColumns+` FROM purchase_orders ORDER BY id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []PurchaseOrder
	for rows.Next() {
		po, err := scanPO(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, po)
	}
	return out, rows.Err()
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func scanPO(row pgx.Row) (PurchaseOrder, error) {
	var po PurchaseOrder
	err := row.Scan(&po.ID, &po.Reference, &po.SupplierID, &po.Status, &po.CreatedAt, &po.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return PurchaseOrder{}, ErrNotFound
	}
	if err != nil {
		return PurchaseOrder{}, err
	}
	return po, nil
}

func listLines(ctx context.Context, q querier, poID int64) ([]Line, error) {
	rows, err := q.Query(ctx, `SELECT id, po_id, item_id, ordered_qty, received_qty, unit_cost
FROM purchase_order_lines WHERE po_id = $1 ORDER BY id`, poID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Line
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.POID, &l.ItemID, &l.OrderedQty, &l.ReceivedQty, &l.UnitCost); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) InsertPO(ctx context.Context, po PurchaseOrder) (PurchaseOrder, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO purchase_orders (reference, supplier_id, status)
VALUES ($1,$2,$3) RETURNING id, created_at, updated_at`,
		po.Reference, po.SupplierID, po.Status).Scan(&po.ID, &po.CreatedAt, &po.UpdatedAt)
	return po, err
}

func (r *txRepository) InsertLines(ctx context.Context, poID int64, lines []Line) ([]Line, error) {
	out := make([]Line, 0, len(lines))
	for _, l := range lines {
		l.POID = poID
		err := r.tx.QueryRow(ctx, `INSERT INTO purchase_order_lines (po_id, item_id, ordered_qty, received_qty, unit_cost)
VALUES ($1,$2,$3,0,$4) RETURNING id`,
			poID, l.ItemID, l.OrderedQty, l.UnitCost).Scan(&l.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, nil
}

// GetPOForUpdate locks the purchase order row and returns it with lines. A
// concurrent receipt on the same PO fails fast for caller retry.
func (r *txRepository) GetPOForUpdate(ctx context.Context, poID int64) (PurchaseOrder, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+poColumns+` FROM purchase_orders WHERE id = $1 FOR UPDATE NOWAIT`, poID)
	po, err := scanPO(row)
	if err != nil {
		return PurchaseOrder{}, shared.MapLockError(err)
	}
	po.Lines, err = listLines(ctx, r.tx, poID)
	if err != nil {
		return PurchaseOrder{}, err
	}
	return po, nil
}

func (r *txRepository) UpdatePOStatus(ctx context.Context, poID int64, status Status) error {
	_, err := r.tx.Exec(ctx, `UPDATE purchase_orders SET status = $2, updated_at = now() WHERE id = $1`, poID, status)
	return err
}

func (r *txRepository) AddReceivedQty(ctx context.Context, lineID int64, qty decimal.Decimal) error {
	_, err := r.tx.Exec(ctx, `UPDATE purchase_order_lines SET received_qty = received_qty + $2 WHERE id = $1`, lineID, qty)
	return err
}

func (r *txRepository) Journals() journals.TxStore {
	return journals.NewTxStore(r.tx)
}

func (r *txRepository) Inventory() inventory.TxStore {
	return inventory.NewTxStore(r.tx)
}
