package expenses

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Expense is a recorded business expense. EntryID points at the posted
// EXPENSE journal entry carrying its ledger effect.
type Expense struct {
	ID            int64
	Reference     string
	Description   string
	Amount        decimal.Decimal
	ExpenseAcctID int64
	PaidFromID    int64
	EntryID       int64
	IncurredAt    time.Time
	CreatedAt     time.Time
}

var (
	ErrNotFound   = errors.New("expense not found")
	ErrValidation = errors.New("expense validation failed")
)
