package journals

import (
	"time"

	"github.com/shopspring/decimal"
)

// EntryType classifies journal entries by originating activity.
type EntryType string

const (
	TypeGeneral      EntryType = "GENERAL"
	TypeSales        EntryType = "SALES"
	TypePurchase     EntryType = "PURCHASE"
	TypePayment      EntryType = "PAYMENT"
	TypeReceipt      EntryType = "RECEIPT"
	TypeExpense      EntryType = "EXPENSE"
	TypeAdjustment   EntryType = "ADJUSTMENT"
	TypeDepreciation EntryType = "DEPRECIATION"
	TypeInventory    EntryType = "INVENTORY"
)

// Valid reports whether t is a known entry type.
func (t EntryType) Valid() bool {
	switch t {
	case TypeGeneral, TypeSales, TypePurchase, TypePayment, TypeReceipt,
		TypeExpense, TypeAdjustment, TypeDepreciation, TypeInventory:
		return true
	}
	return false
}

// EntryStatus enumerates the journal lifecycle.
type EntryStatus string

const (
	StatusDraft  EntryStatus = "DRAFT"
	StatusPosted EntryStatus = "POSTED"
	StatusVoid   EntryStatus = "VOID"
)

// LineSide is the debit/credit marker of a journal line.
type LineSide string

const (
	SideDebit  LineSide = "DEBIT"
	SideCredit LineSide = "CREDIT"
)

// SourceKind enumerates the business objects that may originate an entry.
type SourceKind string

const (
	SourceNone          SourceKind = ""
	SourceOrder         SourceKind = "order"
	SourcePurchaseOrder SourceKind = "purchase_order"
	SourceProductionJob SourceKind = "production_job"
	SourceExpense       SourceKind = "expense"
)

// SourceRef is a weak, lookup-only back-reference to the triggering business
// object. The zero value means the entry was created manually.
type SourceRef struct {
	Kind SourceKind
	ID   int64
}

// IsZero reports whether the reference is unset.
func (s SourceRef) IsZero() bool {
	return s.Kind == SourceNone && s.ID == 0
}

// JournalEntry captures posting metadata. Entries are never physically
// deleted once posted; reversal happens through Void.
type JournalEntry struct {
	ID          int64
	Reference   string
	Type        EntryType
	Status      EntryStatus
	Date        time.Time
	Description string
	Source      SourceRef
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Lines       []JournalLine
}

// JournalLine stores a single debit or credit amount against an account.
type JournalLine struct {
	ID        int64
	EntryID   int64
	AccountID int64
	Side      LineSide
	Amount    decimal.Decimal
	Memo      string
}

// Debit returns the line amount when the line is a debit, zero otherwise.
func (l JournalLine) Debit() decimal.Decimal {
	if l.Side == SideDebit {
		return l.Amount
	}
	return decimal.Zero
}

// Credit returns the line amount when the line is a credit, zero otherwise.
func (l JournalLine) Credit() decimal.Decimal {
	if l.Side == SideCredit {
		return l.Amount
	}
	return decimal.Zero
}
