package inventory

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/tuftline-erp/tuftline-erp/internal/shared"
)

// Repository persists inventory data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxStore) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	if err := fn(ctx, NewTxStore(tx)); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

const itemColumns = `id, sku, name, type, unit, current_stock, average_cost, reorder_point, created_at, updated_at`

func scanItem(row pgx.Row) (Item, error) {
	var it Item
	err := row.Scan(&it.ID, &it.SKU, &it.Name, &it.Type, &it.Unit, &it.CurrentStock, &it.AverageCost, &it.ReorderPoint, &it.CreatedAt, &it.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Item{}, ErrItemNotFound
		}
		return Item{}, err
	}
	return it, nil
}

// CreateItem inserts a new item with zero stock.
func (r *Repository) CreateItem(ctx context.Context, it Item) (Item, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO inventory_items (sku, name, type, unit, current_stock, average_cost, reorder_point)
VALUES ($1,$2,$3,$4,0,0,$5) RETURNING `+itemColumns,
		it.SKU, it.Name, it.Type, it.Unit, it.ReorderPoint)
	created, err := scanItem(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Item{}, ErrDuplicateSKU
		}
		return Item{}, err
	}
	return created, nil
}

// GetItem fetches one item without locking.
func (r *Repository) GetItem(ctx context.Context, id int64) (Item, error) {
	return scanItem(r.pool.QueryRow(ctx, `SELECT `+itemColumns+` FROM inventory_items WHERE id=$1`, id))
}

// GetItemBySKU fetches one item by SKU.
func (r *Repository) GetItemBySKU(ctx context.Context, sku string) (Item, error) {
	return scanItem(r.pool.QueryRow(ctx, `SELECT `+itemColumns+` FROM inventory_items WHERE sku=$1`, sku))
}

// ListItems returns items ordered by SKU.
func (r *Repository) ListItems(ctx context.Context) ([]Item, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+itemColumns+` FROM inventory_items ORDER BY sku ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// ListMovements returns the movement history of one item, newest first.
func (r *Repository) ListMovements(ctx context.Context, itemID int64, limit int) ([]Movement, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.pool.Query(ctx, `SELECT id, item_id, type, qty, unit_cost, resulting_stock, resulting_cost, ref_kind, ref_id, note, occurred_at
FROM inventory_movements WHERE item_id=$1 ORDER BY id DESC LIMIT $2`, itemID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var movements []Movement
	for rows.Next() {
		var m Movement
		if err := rows.Scan(&m.ID, &m.ItemID, &m.Type, &m.Qty, &m.UnitCost, &m.ResultingStock, &m.ResultingCost, &m.RefKind, &m.RefID, &m.Note, &m.OccurredAt); err != nil {
			return nil, err
		}
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

// ListBelowReorder returns items at or below their reorder point.
func (r *Repository) ListBelowReorder(ctx context.Context) ([]Item, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+itemColumns+` FROM inventory_items WHERE reorder_point > 0 AND current_stock <= reorder_point ORDER BY sku ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// txStore implements TxStore over a pgx transaction.
type txStore struct {
	tx pgx.Tx
}

// NewTxStore wraps an open transaction so state machines can compose stock
// movements into their own atomic unit of work.
func NewTxStore(tx pgx.Tx) TxStore {
	return &txStore{tx: tx}
}

func (s *txStore) GetItemForUpdate(ctx context.Context, itemID int64) (Item, error) {
	it, err := scanItem(s.tx.QueryRow(ctx, `SELECT `+itemColumns+` FROM inventory_items WHERE id=$1 FOR UPDATE NOWAIT`, itemID))
	if err != nil {
		return Item{}, shared.MapLockError(err)
	}
	return it, nil
}

func (s *txStore) UpdateItemStock(ctx context.Context, itemID int64, stock, avgCost decimal.Decimal) error {
	cmd, err := s.tx.Exec(ctx, `UPDATE inventory_items SET current_stock=$2, average_cost=$3, updated_at=NOW() WHERE id=$1`, itemID, stock, avgCost)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrItemNotFound
	}
	return nil
}

func (s *txStore) InsertMovement(ctx context.Context, m Movement) (Movement, error) {
	row := s.tx.QueryRow(ctx, `INSERT INTO inventory_movements (item_id, type, qty, unit_cost, resulting_stock, resulting_cost, ref_kind, ref_id, note)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9) RETURNING id, occurred_at`,
		m.ItemID, m.Type, m.Qty, m.UnitCost, m.ResultingStock, m.ResultingCost, m.RefKind, m.RefID, m.Note)
	if err := row.Scan(&m.ID, &m.OccurredAt); err != nil {
		return Movement{}, err
	}
	return m, nil
}
