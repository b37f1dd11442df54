package inventory_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/tuftline-erp/tuftline-erp/internal/inventory"
	"github.com/tuftline-erp/tuftline-erp/internal/testing/memstore"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestReceiveBlendsAverageCost(t *testing.T) {
	store := memstore.NewInventory()
	store.AddItem(1, decimal.Zero, decimal.Zero)
	engine := inventory.NewEngine()
	ctx := context.Background()

	m, err := engine.Receive(ctx, store, inventory.ReceiveInput{ItemID: 1, Qty: dec("10"), UnitCost: dec("5.00")})
	require.NoError(t, err)
	require.True(t, m.ResultingStock.Equal(dec("10")))
	require.True(t, m.ResultingCost.Equal(dec("5.00")))

	m, err = engine.Receive(ctx, store, inventory.ReceiveInput{ItemID: 1, Qty: dec("10"), UnitCost: dec("7.00")})
	require.NoError(t, err)
	require.True(t, m.ResultingStock.Equal(dec("20")))
	// (10*5 + 10*7) / 20 = 6
	require.True(t, m.ResultingCost.Equal(dec("6")))

	item := store.Items[1]
	require.True(t, item.CurrentStock.Equal(dec("20")))
	require.True(t, item.AverageCost.Equal(dec("6")))
}

func TestConsumeAtAverageCost(t *testing.T) {
	store := memstore.NewInventory()
	store.AddItem(1, dec("20"), dec("6"))
	engine := inventory.NewEngine()

	m, cost, err := engine.Consume(context.Background(), store, inventory.ConsumeInput{ItemID: 1, Qty: dec("8")})
	require.NoError(t, err)
	require.True(t, cost.Equal(dec("48")))
	require.True(t, m.Qty.Equal(dec("-8")))
	require.True(t, m.ResultingStock.Equal(dec("12")))

	// consumption never moves the average
	require.True(t, store.Items[1].AverageCost.Equal(dec("6")))
}

func TestConsumeInsufficientStock(t *testing.T) {
	store := memstore.NewInventory()
	store.AddItem(1, dec("5"), dec("2.00"))
	engine := inventory.NewEngine()

	_, _, err := engine.Consume(context.Background(), store, inventory.ConsumeInput{ItemID: 1, Qty: dec("6")})
	require.ErrorIs(t, err, inventory.ErrInsufficientStock)

	// a rejected consumption leaves the item untouched
	require.True(t, store.Items[1].CurrentStock.Equal(dec("5")))
	require.Empty(t, store.Movements)
}

func TestConsumeToZeroThenReceiveResetsAverage(t *testing.T) {
	store := memstore.NewInventory()
	store.AddItem(1, dec("10"), dec("4.00"))
	engine := inventory.NewEngine()
	ctx := context.Background()

	_, _, err := engine.Consume(ctx, store, inventory.ConsumeInput{ItemID: 1, Qty: dec("10")})
	require.NoError(t, err)
	require.True(t, store.Items[1].CurrentStock.IsZero())

	// with no stock on hand the next receipt fully dictates the average
	m, err := engine.Receive(ctx, store, inventory.ReceiveInput{ItemID: 1, Qty: dec("3"), UnitCost: dec("9.00")})
	require.NoError(t, err)
	require.True(t, m.ResultingCost.Equal(dec("9.00")))
}

func TestReceiveValidation(t *testing.T) {
	store := memstore.NewInventory()
	store.AddItem(1, decimal.Zero, decimal.Zero)
	engine := inventory.NewEngine()
	ctx := context.Background()

	_, err := engine.Receive(ctx, store, inventory.ReceiveInput{ItemID: 1, Qty: decimal.Zero, UnitCost: dec("1")})
	require.ErrorIs(t, err, inventory.ErrInvalidQuantity)

	_, err = engine.Receive(ctx, store, inventory.ReceiveInput{ItemID: 1, Qty: dec("1"), UnitCost: dec("-1")})
	require.ErrorIs(t, err, inventory.ErrInvalidUnitCost)

	_, err = engine.Receive(ctx, store, inventory.ReceiveInput{ItemID: 99, Qty: dec("1"), UnitCost: dec("1")})
	require.ErrorIs(t, err, inventory.ErrItemNotFound)

	// zero-cost receipts are legal (samples, found stock)
	_, err = engine.Receive(ctx, store, inventory.ReceiveInput{ItemID: 1, Qty: dec("1"), UnitCost: decimal.Zero})
	require.NoError(t, err)
}

func TestAdjustKeepsAverageCost(t *testing.T) {
	store := memstore.NewInventory()
	store.AddItem(1, dec("10"), dec("3.50"))
	engine := inventory.NewEngine()
	ctx := context.Background()

	m, err := engine.Adjust(ctx, store, inventory.AdjustInput{ItemID: 1, Delta: dec("-2"), Note: "stock count"})
	require.NoError(t, err)
	require.True(t, m.ResultingStock.Equal(dec("8")))
	require.True(t, store.Items[1].AverageCost.Equal(dec("3.50")))

	m, err = engine.Adjust(ctx, store, inventory.AdjustInput{ItemID: 1, Delta: dec("5")})
	require.NoError(t, err)
	require.True(t, m.ResultingStock.Equal(dec("13")))
	require.True(t, store.Items[1].AverageCost.Equal(dec("3.50")))

	_, err = engine.Adjust(ctx, store, inventory.AdjustInput{ItemID: 1, Delta: decimal.Zero})
	require.ErrorIs(t, err, inventory.ErrInvalidQuantity)

	_, err = engine.Adjust(ctx, store, inventory.AdjustInput{ItemID: 1, Delta: dec("-20")})
	require.ErrorIs(t, err, inventory.ErrInsufficientStock)
}

func TestMovementTrailCarriesReference(t *testing.T) {
	store := memstore.NewInventory()
	store.AddItem(1, decimal.Zero, decimal.Zero)
	engine := inventory.NewEngine()

	_, err := engine.Receive(context.Background(), store, inventory.ReceiveInput{
		ItemID: 1, Qty: dec("4"), UnitCost: dec("2.50"), RefKind: "purchase_order", RefID: 7,
	})
	require.NoError(t, err)
	require.Len(t, store.Movements, 1)
	require.Equal(t, "purchase_order", store.Movements[0].RefKind)
	require.EqualValues(t, 7, store.Movements[0].RefID)
}
