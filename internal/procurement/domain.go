package procurement

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Status enumerates the purchase order lifecycle.
type Status string

const (
	StatusDraft             Status = "DRAFT"
	StatusSent              Status = "SENT"
	StatusPartiallyReceived Status = "PARTIALLY_RECEIVED"
	StatusFullyReceived     Status = "FULLY_RECEIVED"
	StatusClosed            Status = "CLOSED"
)

// transitions is the explicit legal-move table. CLOSED is reachable from
// FULLY_RECEIVED or as an explicit early close of a partial delivery.
var transitions = map[Status][]Status{
	StatusDraft:             {StatusSent},
	StatusSent:              {StatusPartiallyReceived, StatusFullyReceived},
	StatusPartiallyReceived: {StatusPartiallyReceived, StatusFullyReceived, StatusClosed},
	StatusFullyReceived:     {StatusClosed},
	StatusClosed:            {},
}

// CanTransition reports whether from → to is a legal move.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// PurchaseOrder is a replenishment order placed with a supplier.
type PurchaseOrder struct {
	ID         int64
	Reference  string
	SupplierID int64
	Status     Status
	Lines      []Line
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// FullyReceived reports whether every line's received quantity has reached
// its ordered quantity.
func (po PurchaseOrder) FullyReceived() bool {
	for _, l := range po.Lines {
		if l.ReceivedQty.LessThan(l.OrderedQty) {
			return false
		}
	}
	return len(po.Lines) > 0
}

// Line is one ordered item. ReceivedQty accumulates across partial receipts
// and may never exceed OrderedQty.
type Line struct {
	ID          int64
	POID        int64
	ItemID      int64
	OrderedQty  decimal.Decimal
	ReceivedQty decimal.Decimal
	UnitCost    decimal.Decimal
}

var (
	ErrNotFound          = errors.New("purchase order not found")
	ErrInvalidTransition = errors.New("purchase order transition not allowed")
	ErrNoLines           = errors.New("purchase order has no lines")
	ErrLineNotFound      = errors.New("purchase order line not found")
	ErrOverReceipt       = errors.New("received quantity exceeds ordered quantity")
	ErrEmptyReceipt      = errors.New("receipt has no lines")
	ErrValidation        = errors.New("purchase order validation failed")
)
