package journals

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	accshared "github.com/tuftline-erp/tuftline-erp/internal/accounting/shared"
)

// BalanceTolerance absorbs rounding drift between debit and credit totals.
var BalanceTolerance = decimal.NewFromFloat(0.01)

// LineInput describes one requested journal line.
type LineInput struct {
	AccountID int64
	Side      LineSide
	Amount    decimal.Decimal
	Memo      string
}

// CreateEntryInput groups fields required to create a journal entry.
type CreateEntryInput struct {
	Type        EntryType
	Date        time.Time
	Description string
	Source      SourceRef
	Reference   string
	Lines       []LineInput
}

// Validate enforces the entry invariants before any mutation: at least two
// lines, strictly positive amounts, and debit/credit totals equal within
// BalanceTolerance.
func (in CreateEntryInput) Validate() error {
	if !in.Type.Valid() {
		return fmt.Errorf("accounting: unknown entry type %q", in.Type)
	}
	if len(in.Lines) < 2 {
		return accshared.ErrTooFewLines
	}
	var debit, credit decimal.Decimal
	for idx, line := range in.Lines {
		if line.AccountID == 0 {
			return fmt.Errorf("accounting: line %d missing account", idx)
		}
		if line.Side != SideDebit && line.Side != SideCredit {
			return fmt.Errorf("accounting: line %d has unknown side %q", idx, line.Side)
		}
		if !line.Amount.IsPositive() {
			return accshared.ErrNonPositiveAmount
		}
		if line.Side == SideDebit {
			debit = debit.Add(line.Amount)
		} else {
			credit = credit.Add(line.Amount)
		}
	}
	if debit.Sub(credit).Abs().GreaterThan(BalanceTolerance) {
		return accshared.ErrUnbalanced
	}
	return nil
}
