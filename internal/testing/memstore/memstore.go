// Package memstore provides in-memory ledger and inventory stores for
// exercising the engines and state machines without PostgreSQL.
package memstore

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tuftline-erp/tuftline-erp/internal/accounting/accounts"
	"github.com/tuftline-erp/tuftline-erp/internal/accounting/journals"
	accshared "github.com/tuftline-erp/tuftline-erp/internal/accounting/shared"
	"github.com/tuftline-erp/tuftline-erp/internal/inventory"
)

// Ledger implements journals.TxStore in memory.
type Ledger struct {
	Accounts map[int64]*accounts.Account
	Entries  map[int64]*journals.JournalEntry
	nextID   int64
	nextLine int64
}

// NewLedger constructs an empty in-memory ledger.
func NewLedger() *Ledger {
	return &Ledger{
		Accounts: make(map[int64]*accounts.Account),
		Entries:  make(map[int64]*journals.JournalEntry),
	}
}

// AddAccount seeds one account and returns it.
func (l *Ledger) AddAccount(id int64, typ accounts.AccountType) *accounts.Account {
	a := &accounts.Account{ID: id, Code: decimal.NewFromInt(id).String(), Name: "acct", Type: typ, Active: true}
	l.Accounts[id] = a
	return a
}

func (l *Ledger) InsertEntry(_ context.Context, entry journals.JournalEntry) (journals.JournalEntry, error) {
	l.nextID++
	entry.ID = l.nextID
	entry.CreatedAt = time.Now()
	entry.UpdatedAt = entry.CreatedAt
	stored := entry
	l.Entries[entry.ID] = &stored
	return entry, nil
}

func (l *Ledger) InsertLines(_ context.Context, entryID int64, lines []journals.JournalLine) error {
	entry, ok := l.Entries[entryID]
	if !ok {
		return accshared.ErrJournalNotFound
	}
	for _, line := range lines {
		l.nextLine++
		line.ID = l.nextLine
		line.EntryID = entryID
		entry.Lines = append(entry.Lines, line)
	}
	return nil
}

func (l *Ledger) GetEntryWithLines(_ context.Context, entryID int64) (journals.JournalEntry, error) {
	entry, ok := l.Entries[entryID]
	if !ok {
		return journals.JournalEntry{}, accshared.ErrJournalNotFound
	}
	return *entry, nil
}

func (l *Ledger) UpdateEntryStatus(_ context.Context, entryID int64, status journals.EntryStatus) error {
	entry, ok := l.Entries[entryID]
	if !ok {
		return accshared.ErrJournalNotFound
	}
	entry.Status = status
	entry.UpdatedAt = time.Now()
	return nil
}

func (l *Ledger) GetAccountForUpdate(_ context.Context, accountID int64) (accounts.Account, error) {
	a, ok := l.Accounts[accountID]
	if !ok {
		return accounts.Account{}, accshared.ErrAccountNotFound
	}
	return *a, nil
}

func (l *Ledger) AddAccountBalance(_ context.Context, accountID int64, delta decimal.Decimal) error {
	a, ok := l.Accounts[accountID]
	if !ok {
		return accshared.ErrAccountNotFound
	}
	a.Balance = a.Balance.Add(delta)
	return nil
}

// Balance returns the current balance of one account.
func (l *Ledger) Balance(accountID int64) decimal.Decimal {
	if a, ok := l.Accounts[accountID]; ok {
		return a.Balance
	}
	return decimal.Zero
}

// Inventory implements inventory.TxStore in memory.
type Inventory struct {
	Items     map[int64]*inventory.Item
	Movements []inventory.Movement
	nextID    int64
}

// NewInventory constructs an empty in-memory inventory.
func NewInventory() *Inventory {
	return &Inventory{Items: make(map[int64]*inventory.Item)}
}

// AddItem seeds one item with the given stock and average cost.
func (s *Inventory) AddItem(id int64, stock, avgCost decimal.Decimal) *inventory.Item {
	item := &inventory.Item{ID: id, SKU: decimal.NewFromInt(id).String(), CurrentStock: stock, AverageCost: avgCost}
	s.Items[id] = item
	return item
}

func (s *Inventory) GetItemForUpdate(_ context.Context, itemID int64) (inventory.Item, error) {
	item, ok := s.Items[itemID]
	if !ok {
		return inventory.Item{}, inventory.ErrItemNotFound
	}
	return *item, nil
}

func (s *Inventory) UpdateItemStock(_ context.Context, itemID int64, stock, avgCost decimal.Decimal) error {
	item, ok := s.Items[itemID]
	if !ok {
		return inventory.ErrItemNotFound
	}
	item.CurrentStock = stock
	item.AverageCost = avgCost
	item.UpdatedAt = time.Now()
	return nil
}

func (s *Inventory) InsertMovement(_ context.Context, m inventory.Movement) (inventory.Movement, error) {
	s.nextID++
	m.ID = s.nextID
	m.OccurredAt = time.Now()
	s.Movements = append(s.Movements, m)
	return m, nil
}
