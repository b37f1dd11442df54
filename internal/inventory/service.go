package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/tuftline-erp/tuftline-erp/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxStore) error) error
	CreateItem(ctx context.Context, it Item) (Item, error)
	GetItem(ctx context.Context, id int64) (Item, error)
	GetItemBySKU(ctx context.Context, sku string) (Item, error)
	ListItems(ctx context.Context) ([]Item, error)
	ListMovements(ctx context.Context, itemID int64, limit int) ([]Movement, error)
	ListBelowReorder(ctx context.Context) ([]Item, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service is the valuation engine's external surface: each mutation runs as
// its own transaction and invalidates the stock snapshot. State machines use
// the Engine with their own TxStore instead.
type Service struct {
	repo   RepositoryPort
	engine *Engine
	cache  *StockCache
	audit  AuditPort
}

// NewService builds Service.
func NewService(repo RepositoryPort, engine *Engine, cache *StockCache, audit AuditPort) *Service {
	return &Service{repo: repo, engine: engine, cache: cache, audit: audit}
}

// Engine exposes the transaction-scoped valuation core.
func (s *Service) Engine() *Engine {
	return s.engine
}

// CreateItemInput describes a new stocked item.
type CreateItemInput struct {
	SKU          string
	Name         string
	Type         string
	Unit         string
	ReorderPoint decimal.Decimal
}

// CreateItem registers a new item with zero stock and cost.
func (s *Service) CreateItem(ctx context.Context, in CreateItemInput) (Item, error) {
	if in.SKU == "" || in.Name == "" {
		return Item{}, errors.New("inventory: sku and name required")
	}
	if in.ReorderPoint.IsNegative() {
		return Item{}, ErrInvalidQuantity
	}
	return s.repo.CreateItem(ctx, Item{SKU: in.SKU, Name: in.Name, Type: in.Type, Unit: in.Unit, ReorderPoint: in.ReorderPoint})
}

// Receive applies an inbound receipt in its own transaction.
func (s *Service) Receive(ctx context.Context, in ReceiveInput) (Movement, error) {
	var movement Movement
	err := s.repo.WithTx(ctx, func(ctx context.Context, store TxStore) error {
		var err error
		movement, err = s.engine.Receive(ctx, store, in)
		return err
	})
	if err != nil {
		return Movement{}, err
	}
	s.afterMovement(ctx, movement)
	return movement, nil
}

// Consume applies an outbound consumption in its own transaction and returns
// the cost of the consumed quantity.
func (s *Service) Consume(ctx context.Context, in ConsumeInput) (Movement, decimal.Decimal, error) {
	var movement Movement
	var cost decimal.Decimal
	err := s.repo.WithTx(ctx, func(ctx context.Context, store TxStore) error {
		var err error
		movement, cost, err = s.engine.Consume(ctx, store, in)
		return err
	})
	if err != nil {
		return Movement{}, decimal.Zero, err
	}
	s.afterMovement(ctx, movement)
	return movement, cost, nil
}

// Adjust applies a signed manual correction in its own transaction.
func (s *Service) Adjust(ctx context.Context, in AdjustInput) (Movement, error) {
	var movement Movement
	err := s.repo.WithTx(ctx, func(ctx context.Context, store TxStore) error {
		var err error
		movement, err = s.engine.Adjust(ctx, store, in)
		return err
	})
	if err != nil {
		return Movement{}, err
	}
	s.afterMovement(ctx, movement)
	return movement, nil
}

// GetStockLevel returns the current stock snapshot for one item, served from
// cache when warm.
func (s *Service) GetStockLevel(ctx context.Context, itemID int64) (StockSnapshot, error) {
	return s.cache.Get(ctx, itemID, func(ctx context.Context) (StockSnapshot, error) {
		item, err := s.repo.GetItem(ctx, itemID)
		if err != nil {
			return StockSnapshot{}, err
		}
		return StockSnapshot{
			ItemID:       item.ID,
			SKU:          item.SKU,
			CurrentStock: item.CurrentStock,
			AverageCost:  item.AverageCost,
			AsOf:         item.UpdatedAt,
		}, nil
	})
}

// InvalidateStock drops the cached snapshot; state machines call this after
// committing transactions that moved stock through their own TxStore.
func (s *Service) InvalidateStock(ctx context.Context, itemID int64) {
	s.cache.Invalidate(ctx, itemID)
}

// GetItem returns one item.
func (s *Service) GetItem(ctx context.Context, id int64) (Item, error) {
	return s.repo.GetItem(ctx, id)
}

// ListItems returns all items.
func (s *Service) ListItems(ctx context.Context) ([]Item, error) {
	return s.repo.ListItems(ctx)
}

// ListMovements returns the movement history of one item.
func (s *Service) ListMovements(ctx context.Context, itemID int64, limit int) ([]Movement, error) {
	return s.repo.ListMovements(ctx, itemID, limit)
}

// ListBelowReorder returns items at or below their reorder point.
func (s *Service) ListBelowReorder(ctx context.Context) ([]Item, error) {
	return s.repo.ListBelowReorder(ctx)
}

func (s *Service) afterMovement(ctx context.Context, m Movement) {
	s.cache.Invalidate(ctx, m.ItemID)
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		Action:   fmt.Sprintf("inventory.%s", m.Type),
		Entity:   "inventory_item",
		EntityID: fmt.Sprintf("%d", m.ItemID),
		Meta: map[string]any{
			"qty":             m.Qty.String(),
			"resulting_stock": m.ResultingStock.String(),
		},
	})
}
