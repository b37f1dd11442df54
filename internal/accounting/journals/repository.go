package journals

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/tuftline-erp/tuftline-erp/internal/accounting/accounts"
	accshared "github.com/tuftline-erp/tuftline-erp/internal/accounting/shared"
	"github.com/tuftline-erp/tuftline-erp/internal/shared"
)

// Repository encapsulates DB access for journals.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx executes fn inside a RepeatableRead transaction, handing it a
// TxStore bound to that transaction.
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

const entryColumns = `id, reference, type, status, date, description, source_kind, source_id, created_at, updated_at`

func scanEntry(row pgx.Row) (JournalEntry, error) {
	var e JournalEntry
	var kind string
	err := row.Scan(&e.ID, &e.Reference, &e.Type, &e.Status, &e.Date, &e.Description, &kind, &e.Source.ID, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return JournalEntry{}, accshared.ErrJournalNotFound
		}
		return JournalEntry{}, err
	}
	e.Source.Kind = SourceKind(kind)
	return e, nil
}

// List returns entries newest first, without lines.
func (r *Repository) List(ctx context.Context, limit int) ([]JournalEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `SELECT `+entryColumns+` FROM journal_entries ORDER BY id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []JournalEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Get fetches one entry with its lines outside any transaction.
func (r *Repository) Get(ctx context.Context, entryID int64) (JournalEntry, error) {
	var entry JournalEntry
	err := r.WithTx(ctx, func(ctx context.Context, store TxStore) error {
		var err error
		entry, err = store.GetEntryWithLines(ctx, entryID)
		return err
	})
	return entry, err
}

// ListBySource returns entries originated by one business object.
func (r *Repository) ListBySource(ctx context.Context, source SourceRef) ([]JournalEntry, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+entryColumns+` FROM journal_entries WHERE source_kind=$1 AND source_id=$2 ORDER BY id ASC`, string(source.Kind), source.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []JournalEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// txStore implements TxStore over a pgx transaction.
type txStore struct {
	tx pgx.Tx
}

// NewTxStore wraps an open transaction so other modules can compose journal
// posting into their own atomic unit of work.
func NewTxStore(tx pgx.Tx) TxStore {
	return &txStore{tx: tx}
}

func (s *txStore) InsertEntry(ctx context.Context, entry JournalEntry) (JournalEntry, error) {
	row := s.tx.QueryRow(ctx, `INSERT INTO journal_entries (reference, type, status, date, description, source_kind, source_id)
VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING id, created_at, updated_at`,
		entry.Reference, entry.Type, entry.Status, entry.Date, entry.Description, string(entry.Source.Kind), entry.Source.ID)
	if err := row.Scan(&entry.ID, &entry.CreatedAt, &entry.UpdatedAt); err != nil {
		return JournalEntry{}, err
	}
	return entry, nil
}

func (s *txStore) InsertLines(ctx context.Context, entryID int64, lines []JournalLine) error {
	for _, line := range lines {
		if _, err := s.tx.Exec(ctx, `INSERT INTO journal_lines (entry_id, account_id, side, amount, memo)
VALUES ($1,$2,$3,$4,$5)`, entryID, line.AccountID, line.Side, line.Amount, line.Memo); err != nil {
			return err
		}
	}
	return nil
}

func (s *txStore) GetEntryWithLines(ctx context.Context, entryID int64) (JournalEntry, error) {
	entry, err := scanEntry(s.tx.QueryRow(ctx, `SELECT `+entryColumns+` FROM journal_entries WHERE id=$1 FOR UPDATE`, entryID))
	if err != nil {
		return JournalEntry{}, shared.MapLockError(err)
	}
	rows, err := s.tx.Query(ctx, `SELECT id, entry_id, account_id, side, amount, memo FROM journal_lines WHERE entry_id=$1 ORDER BY id ASC`, entryID)
	if err != nil {
		return JournalEntry{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var line JournalLine
		if err := rows.Scan(&line.ID, &line.EntryID, &line.AccountID, &line.Side, &line.Amount, &line.Memo); err != nil {
			return JournalEntry{}, err
		}
		entry.Lines = append(entry.Lines, line)
	}
	return entry, rows.Err()
}

func (s *txStore) UpdateEntryStatus(ctx context.Context, entryID int64, status EntryStatus) error {
	cmd, err := s.tx.Exec(ctx, `UPDATE journal_entries SET status=$2, updated_at=NOW() WHERE id=$1`, entryID, status)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return accshared.ErrJournalNotFound
	}
	return nil
}

func (s *txStore) GetAccountForUpdate(ctx context.Context, accountID int64) (accounts.Account, error) {
	var a accounts.Account
	err := s.tx.QueryRow(ctx, `SELECT id, code, name, type, category, parent_id, balance, active, created_at, updated_at
FROM accounts WHERE id=$1 FOR UPDATE NOWAIT`, accountID).
		Scan(&a.ID, &a.Code, &a.Name, &a.Type, &a.Category, &a.ParentID, &a.Balance, &a.Active, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return accounts.Account{}, accshared.ErrAccountNotFound
		}
		return accounts.Account{}, shared.MapLockError(err)
	}
	return a, nil
}

func (s *txStore) AddAccountBalance(ctx context.Context, accountID int64, delta decimal.Decimal) error {
	cmd, err := s.tx.Exec(ctx, `UPDATE accounts SET balance = balance + $2, updated_at=NOW() WHERE id=$1`, accountID, delta)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return accshared.ErrAccountNotFound
	}
	return nil
}
