package journals

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/tuftline-erp/tuftline-erp/internal/accounting/accounts"
	accshared "github.com/tuftline-erp/tuftline-erp/internal/accounting/shared"
	"github.com/tuftline-erp/tuftline-erp/internal/shared"
)

// TxStore exposes the ledger operations available inside one transaction.
// Callers that need posting as part of a larger unit of work (goods receipt,
// consumption, payment) obtain a TxStore over their own transaction via
// NewTxStore and pass it to the Engine, so the entry, its lines and every
// account balance update commit or roll back together.
type TxStore interface {
	InsertEntry(ctx context.Context, entry JournalEntry) (JournalEntry, error)
	InsertLines(ctx context.Context, entryID int64, lines []JournalLine) error
	GetEntryWithLines(ctx context.Context, entryID int64) (JournalEntry, error)
	UpdateEntryStatus(ctx context.Context, entryID int64, status EntryStatus) error
	GetAccountForUpdate(ctx context.Context, accountID int64) (accounts.Account, error)
	AddAccountBalance(ctx context.Context, accountID int64, delta decimal.Decimal) error
}

// Engine implements the journal lifecycle. It carries no connection state;
// every method operates on the TxStore it is given.
type Engine struct {
	refs shared.ReferenceGenerator
}

// NewEngine builds an Engine.
func NewEngine(refs shared.ReferenceGenerator) *Engine {
	return &Engine{refs: refs}
}

// CreateEntry validates input and inserts a DRAFT entry with its lines.
// Nothing touches account balances until Post.
func (e *Engine) CreateEntry(ctx context.Context, store TxStore, in CreateEntryInput) (JournalEntry, error) {
	if err := in.Validate(); err != nil {
		return JournalEntry{}, err
	}
	reference := in.Reference
	if reference == "" {
		reference = e.refs.Next("JE")
	}
	date := in.Date
	if date.IsZero() {
		date = e.refs.Now()
	}
	entry, err := store.InsertEntry(ctx, JournalEntry{
		Reference:   reference,
		Type:        in.Type,
		Status:      StatusDraft,
		Date:        date,
		Description: in.Description,
		Source:      in.Source,
	})
	if err != nil {
		return JournalEntry{}, err
	}
	lines := make([]JournalLine, 0, len(in.Lines))
	for _, l := range in.Lines {
		lines = append(lines, JournalLine{
			EntryID:   entry.ID,
			AccountID: l.AccountID,
			Side:      l.Side,
			Amount:    l.Amount,
			Memo:      l.Memo,
		})
	}
	if err := store.InsertLines(ctx, entry.ID, lines); err != nil {
		return JournalEntry{}, err
	}
	entry.Lines = lines
	return entry, nil
}

// Post transitions DRAFT to POSTED and applies each line's signed effect to
// its account balance. The caller's transaction makes the status flip and all
// balance updates one atomic unit.
func (e *Engine) Post(ctx context.Context, store TxStore, entryID int64) (JournalEntry, error) {
	entry, err := store.GetEntryWithLines(ctx, entryID)
	if err != nil {
		return JournalEntry{}, err
	}
	switch entry.Status {
	case StatusPosted:
		return JournalEntry{}, accshared.ErrAlreadyPosted
	case StatusVoid:
		return JournalEntry{}, accshared.ErrAlreadyVoid
	}
	if err := e.applyEffects(ctx, store, entry.Lines, false); err != nil {
		return JournalEntry{}, err
	}
	if err := store.UpdateEntryStatus(ctx, entryID, StatusPosted); err != nil {
		return JournalEntry{}, err
	}
	entry.Status = StatusPosted
	return entry, nil
}

// Void transitions POSTED to VOID and applies the exact negation of every
// line's original effect, restoring each account to the balance it would have
// had without the entry. The entry itself is retained for audit.
func (e *Engine) Void(ctx context.Context, store TxStore, entryID int64) (JournalEntry, error) {
	entry, err := store.GetEntryWithLines(ctx, entryID)
	if err != nil {
		return JournalEntry{}, err
	}
	if entry.Status != StatusPosted {
		return JournalEntry{}, accshared.ErrInvalidVoidTarget
	}
	if err := e.applyEffects(ctx, store, entry.Lines, true); err != nil {
		return JournalEntry{}, err
	}
	if err := store.UpdateEntryStatus(ctx, entryID, StatusVoid); err != nil {
		return JournalEntry{}, err
	}
	entry.Status = StatusVoid
	return entry, nil
}

// applyEffects locks the touched accounts in ascending id order and applies
// the aggregated debit/credit effect of lines to each. Ascending order keeps
// concurrent posts from deadlocking on overlapping account sets.
func (e *Engine) applyEffects(ctx context.Context, store TxStore, lines []JournalLine, negate bool) error {
	type totals struct{ debit, credit decimal.Decimal }
	byAccount := make(map[int64]totals, len(lines))
	for _, line := range lines {
		t := byAccount[line.AccountID]
		t.debit = t.debit.Add(line.Debit())
		t.credit = t.credit.Add(line.Credit())
		byAccount[line.AccountID] = t
	}
	ids := make([]int64, 0, len(byAccount))
	for id := range byAccount {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		account, err := store.GetAccountForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !account.Active && !negate {
			return accshared.ErrAccountInactive
		}
		t := byAccount[id]
		delta := account.SignedEffect(t.debit, t.credit)
		if negate {
			delta = delta.Neg()
		}
		if err := store.AddAccountBalance(ctx, id, delta); err != nil {
			return err
		}
	}
	return nil
}
