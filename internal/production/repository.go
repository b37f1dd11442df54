package production

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

// TxStore is the slice of production persistence other modules may compose
// into their own transaction (orders creates PLANNED jobs when an order
// enters production).
type TxStore interface {
	InsertJob(ctx context.Context, job Job) (Job, error)
	InsertBOMLine(ctx context.Context, line BOMLine) (BOMLine, error)
}

// TxRepository exposes every production operation available inside one
// transaction, together with transaction-scoped views of the two shared
// engines so consumption postings commit atomically with job state.
type TxRepository interface {
	TxStore
	GetJobForUpdate(ctx context.Context, jobID int64) (Job, error)
	UpdateJobStatus(ctx context.Context, jobID int64, status Status) error
	SetActualEnd(ctx context.Context, jobID int64) error
	ListBOMLines(ctx context.Context, jobID int64) ([]BOMLine, error)
	InsertConsumption(ctx context.Context, c Consumption) (Consumption, error)
	GetConsumption(ctx context.Context, id int64) (Consumption, error)
	UpdateConsumption(ctx context.Context, c Consumption) error
	DeleteConsumption(ctx context.Context, id int64) error
	SumConsumptionCost(ctx context.Context, jobID int64) (decimal.Decimal, error)
	InsertFinishedProduct(ctx context.Context, fp FinishedProduct) (FinishedProduct, error)

	Journals() journals.TxStore
	Inventory() inventory.TxStore
}

// Repository persists production data in PostgreSQL.
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

const jobColumns = `id, reference, order_item_id, status, assignee_id, planned_end, actual_end, created_at, updated_at`

func scanJob(row pgx.Row) (Job, error) {
	var j Job
	err := row.Scan(&j.ID, &j.Reference, &j.OrderItemID, &j.Status, &j.AssigneeID, &j.PlannedEnd, &j.ActualEnd, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Job{}, ErrNotFound
		}
		return Job{}, err
	}
	return j, nil
}

// Get fetches one job with its BOM lines, without locking.
func (r *Repository) Get(ctx context.Context, jobID int64) (Job, error) {
	job, err := scanJob(r.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM production_jobs WHERE id=$1`, jobID))
	if err != nil {
		return Job{}, err
	}
	rows, err := r.pool.Query(ctx, `SELECT id, job_id, item_id, planned_qty, note FROM bom_lines WHERE job_id=$1 ORDER BY id ASC`, jobID)
	if err != nil {
		return Job{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var line BOMLine
		if err := rows.Scan(&line.ID, &line.JobID, &line.ItemID, &line.PlannedQty, &line.Note); err != nil {
			return Job{}, err
		}
		job.BOMLines = append(job.BOMLines, line)
	}
	return job, rows.Err()
}

// List returns jobs newest first.
func (r *Repository) List(ctx context.Context, limit int) ([]Job, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `SELECT `+jobColumns+` FROM production_jobs ORDER BY id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var jobs []Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// ListConsumptions returns the recorded consumption of one job.
func (r *Repository) ListConsumptions(ctx context.Context, jobID int64) ([]Consumption, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, job_id, item_id, qty, unit_cost, cost, entry_id, recorded_at
FROM material_consumptions WHERE job_id=$1 ORDER BY id ASC`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Consumption
	for rows.Next() {
		var c Consumption
		if err := rows.Scan(&c.ID, &c.JobID, &c.ItemID, &c.Qty, &c.UnitCost, &c.Cost, &c.EntryID, &c.RecordedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// NewTxStore wraps an open transaction with the composable slice of the
// production store.
func NewTxStore(tx pgx.Tx) TxStore {
	return &txRepository{tx: tx}
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) InsertJob(ctx context.Context, job Job) (Job, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO production_jobs (reference, order_item_id, status, assignee_id, planned_end)
VALUES ($1,$2,$3,$4,$5) RETURNING id, created_at, updated_at`,
		job.Reference, job.OrderItemID, job.Status, job.AssigneeID, job.PlannedEnd)
	if err := row.Scan(&job.ID, &job.CreatedAt, &job.UpdatedAt); err != nil {
		return Job{}, err
	}
	return job, nil
}

func (r *txRepository) InsertBOMLine(ctx context.Context, line BOMLine) (BOMLine, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO bom_lines (job_id, item_id, planned_qty, note)
VALUES ($1,$2,$3,$4) RETURNING id`, line.JobID, line.ItemID, line.PlannedQty, line.Note)
	if err := row.Scan(&line.ID); err != nil {
		return BOMLine{}, err
	}
	return line, nil
}

func (r *txRepository) GetJobForUpdate(ctx context.Context, jobID int64) (Job, error) {
	job, err := scanJob(r.tx.QueryRow(ctx, `SELECT `+jobColumns+` FROM production_jobs WHERE id=$1 FOR UPDATE NOWAIT`, jobID))
	if err != nil {
		return Job{}, shared.MapLockError(err)
	}
	return job, nil
}

func (r *txRepository) UpdateJobStatus(ctx context.Context, jobID int64, status Status) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE production_jobs SET status=$2, updated_at=NOW() WHERE id=$1`, jobID, status)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *txRepository) SetActualEnd(ctx context.Context, jobID int64) error {
	_, err := r.tx.Exec(ctx, `UPDATE production_jobs SET actual_end=NOW(), updated_at=NOW() WHERE id=$1`, jobID)
	return err
}

func (r *txRepository) ListBOMLines(ctx context.Context, jobID int64) ([]BOMLine, error) {
	rows, err := r.tx.Query(ctx, `SELECT id, job_id, item_id, planned_qty, note FROM bom_lines WHERE job_id=$1 ORDER BY id ASC`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []BOMLine
	for rows.Next() {
		var line BOMLine
		if err := rows.Scan(&line.ID, &line.JobID, &line.ItemID, &line.PlannedQty, &line.Note); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

func (r *txRepository) InsertConsumption(ctx context.Context, c Consumption) (Consumption, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO material_consumptions (job_id, item_id, qty, unit_cost, cost, entry_id)
VALUES ($1,$2,$3,$4,$5,$6) RETURNING id, recorded_at`,
		c.JobID, c.ItemID, c.Qty, c.UnitCost, c.Cost, c.EntryID)
	if err := row.Scan(&c.ID, &c.RecordedAt); err != nil {
		return Consumption{}, err
	}
	return c, nil
}

func (r *txRepository) GetConsumption(ctx context.Context, id int64) (Consumption, error) {
	var c Consumption
	err := r.tx.QueryRow(ctx, `SELECT id, job_id, item_id, qty, unit_cost, cost, entry_id, recorded_at
FROM material_consumptions WHERE id=$1 FOR UPDATE`, id).
		Scan(&c.ID, &c.JobID, &c.ItemID, &c.Qty, &c.UnitCost, &c.Cost, &c.EntryID, &c.RecordedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Consumption{}, ErrNotFound
		}
		return Consumption{}, err
	}
	return c, nil
}

func (r *txRepository) UpdateConsumption(ctx context.Context, c Consumption) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE material_consumptions SET item_id=$2, qty=$3, unit_cost=$4, cost=$5, entry_id=$6 WHERE id=$1`,
		c.ID, c.ItemID, c.Qty, c.UnitCost, c.Cost, c.EntryID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *txRepository) DeleteConsumption(ctx context.Context, id int64) error {
	cmd, err := r.tx.Exec(ctx, `DELETE FROM material_consumptions WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *txRepository) SumConsumptionCost(ctx context.Context, jobID int64) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.tx.QueryRow(ctx, `SELECT COALESCE(SUM(cost), 0) FROM material_consumptions WHERE job_id=$1`, jobID).Scan(&total)
	return total, err
}

func (r *txRepository) InsertFinishedProduct(ctx context.Context, fp FinishedProduct) (FinishedProduct, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO finished_products (job_id, order_item_id, production_cost)
VALUES ($1,$2,$3) RETURNING id, completed_at`, fp.JobID, fp.OrderItemID, fp.ProductionCost)
	if err := row.Scan(&fp.ID, &fp.CompletedAt); err != nil {
		return FinishedProduct{}, err
	}
	return fp, nil
}

func (r *txRepository) Journals() journals.TxStore {
	return journals.NewTxStore(r.tx)
}

func (r *txRepository) Inventory() inventory.TxStore {
	return inventory.NewTxStore(r.tx)
}
