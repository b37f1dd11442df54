package inventory_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/tuftline-erp/tuftline-erp/internal/inventory"
)

func newTestCache(t *testing.T) (*inventory.StockCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return inventory.NewStockCache(client, time.Minute), mr
}

func TestStockCacheFillsOnce(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	calls := 0
	fill := func(context.Context) (inventory.StockSnapshot, error) {
		calls++
		return inventory.StockSnapshot{ItemID: 1, SKU: "WOOL-RED", CurrentStock: dec("42"), AverageCost: dec("3.10")}, nil
	}

	snap, err := cache.Get(ctx, 1, fill)
	require.NoError(t, err)
	require.Equal(t, "WOOL-RED", snap.SKU)
	require.Equal(t, 1, calls)

	snap, err = cache.Get(ctx, 1, fill)
	require.NoError(t, err)
	require.True(t, snap.CurrentStock.Equal(dec("42")))
	require.Equal(t, 1, calls)
}

func TestStockCacheInvalidate(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	calls := 0
	fill := func(context.Context) (inventory.StockSnapshot, error) {
		calls++
		return inventory.StockSnapshot{ItemID: 1, CurrentStock: dec("10")}, nil
	}

	_, err := cache.Get(ctx, 1, fill)
	require.NoError(t, err)

	cache.Invalidate(ctx, 1)

	_, err = cache.Get(ctx, 1, fill)
	require.NoError(t, err)
	require.Equal(t, 2, calls)
}

func TestStockCacheNilClientDelegates(t *testing.T) {
	cache := inventory.NewStockCache(nil, time.Minute)

	calls := 0
	fill := func(context.Context) (inventory.StockSnapshot, error) {
		calls++
		return inventory.StockSnapshot{ItemID: 2}, nil
	}

	for i := 0; i < 3; i++ {
		_, err := cache.Get(context.Background(), 2, fill)
		require.NoError(t, err)
	}
	require.Equal(t, 3, calls)
}
