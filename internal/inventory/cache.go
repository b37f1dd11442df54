package inventory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

// StockSnapshot is the cached read-model for stock level queries.
type StockSnapshot struct {
	ItemID       int64           `json:"item_id"`
	SKU          string          `json:"sku"`
	CurrentStock decimal.Decimal `json:"current_stock"`
	AverageCost  decimal.Decimal `json:"average_cost"`
	AsOf         time.Time       `json:"as_of"`
}

// StockCache caches per-item stock snapshots in Redis. Lookups on a cold key
// are collapsed through singleflight so a burst of readers causes one DB hit.
type StockCache struct {
	client *redis.Client
	ttl    time.Duration
	group  singleflight.Group
}

// NewStockCache builds a StockCache. A nil client disables caching.
func NewStockCache(client *redis.Client, ttl time.Duration) *StockCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &StockCache{client: client, ttl: ttl}
}

func stockKey(itemID int64) string {
	return fmt.Sprintf("inventory:stock:%d", itemID)
}

// Get returns the cached snapshot, loading through fill on miss.
func (c *StockCache) Get(ctx context.Context, itemID int64, fill func(context.Context) (StockSnapshot, error)) (StockSnapshot, error) {
	if c == nil || c.client == nil {
		return fill(ctx)
	}
	key := stockKey(itemID)
	raw, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var snap StockSnapshot
		if err := json.Unmarshal(raw, &snap); err == nil {
			return snap, nil
		}
	}
	v, err, _ := c.group.Do(key, func() (any, error) {
		snap, err := fill(ctx)
		if err != nil {
			return StockSnapshot{}, err
		}
		if data, err := json.Marshal(snap); err == nil {
			_ = c.client.Set(ctx, key, data, c.ttl).Err()
		}
		return snap, nil
	})
	if err != nil {
		return StockSnapshot{}, err
	}
	return v.(StockSnapshot), nil
}

// Invalidate drops the snapshot after a movement is applied.
func (c *StockCache) Invalidate(ctx context.Context, itemID int64) {
	if c == nil || c.client == nil {
		return
	}
	_ = c.client.Del(ctx, stockKey(itemID)).Err()
}
