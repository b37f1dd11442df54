package inventory

import (
	"context"

	"github.com/shopspring/decimal"
)

// TxStore exposes the valuation operations available inside one transaction.
// State machines obtain a TxStore over their own transaction via NewTxStore so
// stock updates commit atomically with their state change and ledger posting.
type TxStore interface {
	GetItemForUpdate(ctx context.Context, itemID int64) (Item, error)
	UpdateItemStock(ctx context.Context, itemID int64, stock, avgCost decimal.Decimal) error
	InsertMovement(ctx context.Context, m Movement) (Movement, error)
}

// Engine implements weighted-average inventory valuation. Stateless; every
// method operates on the TxStore it is given and relies on the row lock taken
// by GetItemForUpdate for mutual exclusion per item.
type Engine struct{}

// NewEngine builds an Engine.
func NewEngine() *Engine {
	return &Engine{}
}

// ReceiveInput describes an inbound receipt.
type ReceiveInput struct {
	ItemID   int64
	Qty      decimal.Decimal
	UnitCost decimal.Decimal
	RefKind  string
	RefID    int64
	Note     string
}

// Receive blends the receipt cost into the running average and increases
// stock:
//
//	avg' = (stock*avg + qty*cost) / (stock + qty)
//
// Consumption never changes the average; only receipts at a different cost
// shift it.
func (e *Engine) Receive(ctx context.Context, store TxStore, in ReceiveInput) (Movement, error) {
	if !in.Qty.IsPositive() {
		return Movement{}, ErrInvalidQuantity
	}
	if in.UnitCost.IsNegative() {
		return Movement{}, ErrInvalidUnitCost
	}
	item, err := store.GetItemForUpdate(ctx, in.ItemID)
	if err != nil {
		return Movement{}, err
	}
	newStock := item.CurrentStock.Add(in.Qty)
	newAvg := item.AverageCost
	if newStock.IsZero() {
		newAvg = decimal.Zero
	} else {
		totalCost := item.CurrentStock.Mul(item.AverageCost).Add(in.Qty.Mul(in.UnitCost))
		newAvg = totalCost.Div(newStock)
	}
	if err := store.UpdateItemStock(ctx, in.ItemID, newStock, newAvg); err != nil {
		return Movement{}, err
	}
	return store.InsertMovement(ctx, Movement{
		ItemID:         in.ItemID,
		Type:           MovementReceipt,
		Qty:            in.Qty,
		UnitCost:       in.UnitCost,
		ResultingStock: newStock,
		ResultingCost:  newAvg,
		RefKind:        in.RefKind,
		RefID:          in.RefID,
		Note:           in.Note,
	})
}

// ConsumeInput describes an outbound consumption.
type ConsumeInput struct {
	ItemID  int64
	Qty     decimal.Decimal
	RefKind string
	RefID   int64
	Note    string
}

// Consume decreases stock and returns the cost of the consumed quantity at
// the current average. Fails with ErrInsufficientStock when the resulting
// stock would go negative; no backorder path exists.
func (e *Engine) Consume(ctx context.Context, store TxStore, in ConsumeInput) (Movement, decimal.Decimal, error) {
	if !in.Qty.IsPositive() {
		return Movement{}, decimal.Zero, ErrInvalidQuantity
	}
	item, err := store.GetItemForUpdate(ctx, in.ItemID)
	if err != nil {
		return Movement{}, decimal.Zero, err
	}
	newStock := item.CurrentStock.Sub(in.Qty)
	if newStock.IsNegative() {
		return Movement{}, decimal.Zero, ErrInsufficientStock
	}
	cost := in.Qty.Mul(item.AverageCost)
	if err := store.UpdateItemStock(ctx, in.ItemID, newStock, item.AverageCost); err != nil {
		return Movement{}, decimal.Zero, err
	}
	movement, err := store.InsertMovement(ctx, Movement{
		ItemID:         in.ItemID,
		Type:           MovementConsumption,
		Qty:            in.Qty.Neg(),
		UnitCost:       item.AverageCost,
		ResultingStock: newStock,
		ResultingCost:  item.AverageCost,
		RefKind:        in.RefKind,
		RefID:          in.RefID,
		Note:           in.Note,
	})
	if err != nil {
		return Movement{}, decimal.Zero, err
	}
	return movement, cost, nil
}

// AdjustInput describes a signed manual correction.
type AdjustInput struct {
	ItemID  int64
	Delta   decimal.Decimal
	RefKind string
	RefID   int64
	Note    string
}

// Adjust applies a signed stock correction without touching average cost.
// Used for stock counts, not for receipts or consumption.
func (e *Engine) Adjust(ctx context.Context, store TxStore, in AdjustInput) (Movement, error) {
	if in.Delta.IsZero() {
		return Movement{}, ErrInvalidQuantity
	}
	item, err := store.GetItemForUpdate(ctx, in.ItemID)
	if err != nil {
		return Movement{}, err
	}
	newStock := item.CurrentStock.Add(in.Delta)
	if newStock.IsNegative() {
		return Movement{}, ErrInsufficientStock
	}
	if err := store.UpdateItemStock(ctx, in.ItemID, newStock, item.AverageCost); err != nil {
		return Movement{}, err
	}
	return store.InsertMovement(ctx, Movement{
		ItemID:         in.ItemID,
		Type:           MovementAdjustment,
		Qty:            in.Delta,
		UnitCost:       item.AverageCost,
		ResultingStock: newStock,
		ResultingCost:  item.AverageCost,
		RefKind:        in.RefKind,
		RefID:          in.RefID,
		Note:           in.Note,
	})
}
