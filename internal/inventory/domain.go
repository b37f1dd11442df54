package inventory

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// MovementType enumerates supported stock movements.
type MovementType string

const (
	// MovementReceipt is an inbound movement that re-blends average cost.
	MovementReceipt MovementType = "RECEIPT"
	// MovementConsumption is an outbound movement valued at average cost.
	MovementConsumption MovementType = "CONSUMPTION"
	// MovementAdjustment is a manual stock correction; it never touches cost.
	MovementAdjustment MovementType = "ADJUSTMENT"
)

// Item is a stocked material or component. CurrentStock and AverageCost are
// mutated only by the valuation engine; they are caches of the movement
// history, invariant-checked by the integrity job.
type Item struct {
	ID           int64
	SKU          string
	Name         string
	Type         string
	Unit         string
	CurrentStock decimal.Decimal
	AverageCost  decimal.Decimal
	ReorderPoint decimal.Decimal
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Movement records one applied stock delta. Qty is signed: positive for
// receipts and upward adjustments, negative for consumption.
type Movement struct {
	ID             int64
	ItemID         int64
	Type           MovementType
	Qty            decimal.Decimal
	UnitCost       decimal.Decimal
	ResultingStock decimal.Decimal
	ResultingCost  decimal.Decimal
	RefKind        string
	RefID          int64
	Note           string
	OccurredAt     time.Time
}

var (
	// ErrItemNotFound indicates a missing inventory item.
	ErrItemNotFound = errors.New("inventory: item not found")
	// ErrInsufficientStock rejects consumption beyond available stock. Stock
	// is never clamped; the operation fails with no effect.
	ErrInsufficientStock = errors.New("inventory: insufficient stock")
	// ErrInvalidQuantity indicates a non-positive or zero quantity.
	ErrInvalidQuantity = errors.New("inventory: quantity must be positive")
	// ErrInvalidUnitCost indicates a negative unit cost.
	ErrInvalidUnitCost = errors.New("inventory: unit cost must be >= 0")
	// ErrDuplicateSKU indicates the SKU is taken.
	ErrDuplicateSKU = errors.New("inventory: sku already exists")
)
