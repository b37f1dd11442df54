package orders

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Status enumerates the order lifecycle.
type Status string

const (
	StatusDraft            Status = "DRAFT"
	StatusPendingDeposit   Status = "PENDING_DEPOSIT"
	StatusDepositPaid      Status = "DEPOSIT_PAID"
	StatusInProduction     Status = "IN_PRODUCTION"
	StatusReadyForDispatch Status = "READY_FOR_DISPATCH"
	StatusDispatched       Status = "DISPATCHED"
	StatusClosed           Status = "CLOSED"
	StatusArchived         Status = "ARCHIVED"
)

// transitions is the explicit legal-move table. The chain is linear; there
// is no cancellation path, an unwanted order simply never leaves DRAFT.
var transitions = map[Status][]Status{
	StatusDraft:            {StatusPendingDeposit},
	StatusPendingDeposit:   {StatusDepositPaid},
	StatusDepositPaid:      {StatusInProduction},
	StatusInProduction:     {StatusReadyForDispatch},
	StatusReadyForDispatch: {StatusDispatched},
	StatusDispatched:       {StatusClosed},
	StatusClosed:           {StatusArchived},
	StatusArchived:         {},
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

// ItemsLocked reports whether order items may still be edited. Once
// production has started the item list is frozen.
func ItemsLocked(s Status) bool {
	switch s {
	case StatusInProduction, StatusReadyForDispatch, StatusDispatched, StatusClosed, StatusArchived:
		return true
	}
	return false
}

// Order is a client order. BalanceDue is derived from payments, never stored
// authoritatively.
type Order struct {
	ID             int64
	Reference      string
	ClientID       int64
	Status         Status
	DepositPercent decimal.Decimal
	TotalAmount    decimal.Decimal
	BalanceDue     decimal.Decimal
	Items          []OrderItem
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// RequiredDeposit is the minimum payment before the order may enter
// production.
func (o Order) RequiredDeposit() decimal.Decimal {
	return o.TotalAmount.Mul(o.DepositPercent).Div(decimal.NewFromInt(100))
}

// OrderItem is one line of an order. Items with RequiresProduction set get a
// production job when the order enters production; stock-only items (e.g.
// ready-made accessories) do not.
type OrderItem struct {
	ID                 int64
	OrderID            int64
	Description        string
	Qty                decimal.Decimal
	UnitPrice          decimal.Decimal
	Amount             decimal.Decimal
	RequiresProduction bool
}

// Payment is a received client payment. EntryID points at the RECEIPT entry
// the payment posted.
type Payment struct {
	ID         int64
	OrderID    int64
	Amount     decimal.Decimal
	Method     string
	EntryID    int64
	ReceivedAt time.Time
}

var (
	ErrNotFound          = errors.New("order not found")
	ErrInvalidTransition = errors.New("order transition not allowed")
	ErrNoItems           = errors.New("order has no items")
	ErrItemsLocked       = errors.New("order items can no longer be edited")
	ErrDepositNotMet     = errors.New("deposit requirement not met")
	ErrJobsNotDone       = errors.New("production jobs not all completed")
	ErrValidation        = errors.New("order validation failed")
)
