package accounts

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountType classifies accounts by accounting sign convention.
type AccountType string

const (
	TypeAsset     AccountType = "ASSET"
	TypeLiability AccountType = "LIABILITY"
	TypeEquity    AccountType = "EQUITY"
	TypeRevenue   AccountType = "REVENUE"
	TypeExpense   AccountType = "EXPENSE"
	TypeCOGS      AccountType = "COGS"
)

// DebitNormal reports whether debits increase the balance of this type.
func (t AccountType) DebitNormal() bool {
	switch t {
	case TypeAsset, TypeExpense, TypeCOGS:
		return true
	default:
		return false
	}
}

// Valid reports whether t is a known account type.
func (t AccountType) Valid() bool {
	switch t {
	case TypeAsset, TypeLiability, TypeEquity, TypeRevenue, TypeExpense, TypeCOGS:
		return true
	}
	return false
}

// Account is a node in the chart of accounts. Balance is maintained solely by
// journal posting and voiding; it always equals the net signed sum of posted
// lines against the account.
type Account struct {
	ID        int64
	Code      string
	Name      string
	Type      AccountType
	Category  string
	ParentID  *int64
	Balance   decimal.Decimal
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SignedEffect returns the balance delta a debit/credit pair causes on an
// account of this type.
func (a Account) SignedEffect(debit, credit decimal.Decimal) decimal.Decimal {
	if a.Type.DebitNormal() {
		return debit.Sub(credit)
	}
	return credit.Sub(debit)
}
