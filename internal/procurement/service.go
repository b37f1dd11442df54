package procurement

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tuftline-erp/tuftline-erp/internal/accounting/journals"
	"github.com/tuftline-erp/tuftline-erp/internal/inventory"
	"github.com/tuftline-erp/tuftline-erp/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, poID int64) (PurchaseOrder, error)
	List(ctx context.Context, limit int) ([]PurchaseOrder, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// IdempotencyPort guards retried receipt submissions.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// StockCachePort drops cached stock snapshots after committed receipts.
type StockCachePort interface {
	InvalidateStock(ctx context.Context, itemID int64)
}

// ServiceConfig wires the ledger accounts goods receipts move value between.
type ServiceConfig struct {
	InventoryAccountID int64
	PayablesAccountID  int64
}

// Service drives the purchase order lifecycle. A goods receipt moves stock,
// posts the PURCHASE entry and advances the PO state in one transaction.
type Service struct {
	repo   RepositoryPort
	ledger *journals.Engine
	stock  *inventory.Engine
	refs   shared.ReferenceGenerator
	audit  AuditPort
	idem   IdempotencyPort
	cache  StockCachePort
	cfg    ServiceConfig
}

// NewService constructs the procurement service.
func NewService(repo RepositoryPort, ledger *journals.Engine, stock *inventory.Engine, refs shared.ReferenceGenerator, audit AuditPort, idem IdempotencyPort, cache StockCachePort, cfg ServiceConfig) *Service {
	return &Service{repo: repo, ledger: ledger, stock: stock, refs: refs, audit: audit, idem: idem, cache: cache, cfg: cfg}
}

// LineInput is one requested purchase line.
type LineInput struct {
	ItemID     int64
	OrderedQty decimal.Decimal
	UnitCost   decimal.Decimal
}

// CreateInput describes a new draft purchase order.
type CreateInput struct {
	SupplierID int64
	Lines      []LineInput
}

// Create opens a DRAFT purchase order.
func (s *Service) Create(ctx context.Context, in CreateInput) (PurchaseOrder, error) {
	if in.SupplierID == 0 {
		return PurchaseOrder{}, ErrValidation
	}
	if len(in.Lines) == 0 {
		return PurchaseOrder{}, ErrNoLines
	}
	lines := make([]Line, 0, len(in.Lines))
	for _, l := range in.Lines {
		if l.ItemID == 0 || !l.OrderedQty.IsPositive() || l.UnitCost.IsNegative() {
			return PurchaseOrder{}, ErrValidation
		}
		lines = append(lines, Line{ItemID: l.ItemID, OrderedQty: l.OrderedQty, UnitCost: l.UnitCost})
	}
	var created PurchaseOrder
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		po, err := tx.InsertPO(ctx, PurchaseOrder{
			Reference:  s.refs.Next("PO"),
			SupplierID: in.SupplierID,
			Status:     StatusDraft,
		})
		if err != nil {
			return err
		}
		po.Lines, err = tx.InsertLines(ctx, po.ID, lines)
		if err != nil {
			return err
		}
		created = po
		return nil
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	s.recordAudit(ctx, "purchase.create", created.ID, map[string]any{"reference": created.Reference})
	return created, nil
}

// Send moves DRAFT → SENT. No stock or ledger effect; the order is now a
// commitment to the supplier.
func (s *Service) Send(ctx context.Context, poID int64) (PurchaseOrder, error) {
	return s.transition(ctx, poID, StatusSent)
}

// Close ends the purchase order, either after full receipt or as an explicit
// early close of a partial delivery.
func (s *Service) Close(ctx context.Context, poID int64) (PurchaseOrder, error) {
	return s.transition(ctx, poID, StatusClosed)
}

// ReceiptLine is one delivered quantity against a purchase order line.
type ReceiptLine struct {
	LineID int64
	Qty    decimal.Decimal
}

// ReceiveInput describes one delivery. IdempotencyKey makes a retried
// submission a conflict instead of a double receipt; when empty, a key is
// derived from the delivery content.
type ReceiveInput struct {
	POID           int64
	Lines          []ReceiptLine
	IdempotencyKey string
}

// ReceiveGoods records a delivery: per line it increases stock through the
// valuation engine (re-blending average cost at the line's unit cost) and
// accumulates received quantity, rejecting any over-receipt. One PURCHASE
// entry debiting Inventory and crediting Accounts Payable covers the whole
// delivery. The PO lands on PARTIALLY_RECEIVED or FULLY_RECEIVED by
// comparing received to ordered across all lines. Everything commits in one
// transaction.
func (s *Service) ReceiveGoods(ctx context.Context, in ReceiveInput) (PurchaseOrder, error) {
	if len(in.Lines) == 0 {
		return PurchaseOrder{}, ErrEmptyReceipt
	}
	if in.IdempotencyKey == "" {
		in.IdempotencyKey = deriveReceiptKey(in)
	}
	if s.idem != nil {
		if err := s.idem.CheckAndInsert(ctx, in.IdempotencyKey, "procurement.receive"); err != nil {
			return PurchaseOrder{}, err
		}
	}
	var result PurchaseOrder
	var touched []int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		po, err := tx.GetPOForUpdate(ctx, in.POID)
		if err != nil {
			return err
		}
		if po.Status != StatusSent && po.Status != StatusPartiallyReceived {
			return ErrInvalidTransition
		}
		index := make(map[int64]int, len(po.Lines))
		for i, l := range po.Lines {
			index[l.ID] = i
		}
		total := decimal.Zero
		for _, rcpt := range in.Lines {
			i, ok := index[rcpt.LineID]
			if !ok {
				return ErrLineNotFound
			}
			line := &po.Lines[i]
			if !rcpt.Qty.IsPositive() {
				return ErrValidation
			}
			if line.ReceivedQty.Add(rcpt.Qty).GreaterThan(line.OrderedQty) {
				return ErrOverReceipt
			}
			if _, err := s.stock.Receive(ctx, tx.Inventory(), inventory.ReceiveInput{
				ItemID:   line.ItemID,
				Qty:      rcpt.Qty,
				UnitCost: line.UnitCost,
				RefKind:  "purchase_order",
				RefID:    po.ID,
				Note:     fmt.Sprintf("receipt against %s", po.Reference),
			}); err != nil {
				return err
			}
			if err := tx.AddReceivedQty(ctx, rcpt.LineID, rcpt.Qty); err != nil {
				return err
			}
			line.ReceivedQty = line.ReceivedQty.Add(rcpt.Qty)
			total = total.Add(rcpt.Qty.Mul(line.UnitCost))
			touched = append(touched, line.ItemID)
		}
		if total.IsPositive() {
			entry, err := s.ledger.CreateEntry(ctx, tx.Journals(), journals.CreateEntryInput{
				Type:        journals.TypePurchase,
				Description: fmt.Sprintf("Goods received against %s", po.Reference),
				Source:      journals.SourceRef{Kind: journals.SourcePurchaseOrder, ID: po.ID},
				Lines: []journals.LineInput{
					{AccountID: s.cfg.InventoryAccountID, Side: journals.SideDebit, Amount: total, Memo: "inventory in"},
					{AccountID: s.cfg.PayablesAccountID, Side: journals.SideCredit, Amount: total, Memo: "owed to supplier"},
				},
			})
			if err != nil {
				return err
			}
			if _, err := s.ledger.Post(ctx, tx.Journals(), entry.ID); err != nil {
				return err
			}
		}
		next := StatusPartiallyReceived
		if po.FullyReceived() {
			next = StatusFullyReceived
		}
		if err := tx.UpdatePOStatus(ctx, po.ID, next); err != nil {
			return err
		}
		po.Status = next
		result = po
		return nil
	})
	if err != nil {
		if s.idem != nil && in.IdempotencyKey != "" {
			// the receipt never happened; let the caller retry with the same key
			_ = s.idem.Delete(ctx, in.IdempotencyKey)
		}
		return PurchaseOrder{}, err
	}
	for _, itemID := range touched {
		s.invalidate(ctx, itemID)
	}
	s.recordAudit(ctx, "purchase.receive", in.POID, map[string]any{"lines": len(in.Lines)})
	return result, nil
}

// deriveReceiptKey builds a deterministic key from the delivery content so
// that an identical resubmission without an explicit Idempotency-Key still
// dedupes. Distinct deliveries against the same PO produce distinct keys.
func deriveReceiptKey(in ReceiveInput) string {
	seed := fmt.Sprintf("PO:%d", in.POID)
	for _, l := range in.Lines {
		seed += fmt.Sprintf("|%d:%s", l.LineID, l.Qty.String())
	}
	return uuid.NewSHA1(uuid.Nil, []byte(seed)).String()
}

// Get returns one purchase order with lines.
func (s *Service) Get(ctx context.Context, poID int64) (PurchaseOrder, error) {
	return s.repo.Get(ctx, poID)
}

// List returns recent purchase orders.
func (s *Service) List(ctx context.Context, limit int) ([]PurchaseOrder, error) {
	return s.repo.List(ctx, limit)
}

func (s *Service) transition(ctx context.Context, poID int64, to Status) (PurchaseOrder, error) {
	var result PurchaseOrder
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		po, err := tx.GetPOForUpdate(ctx, poID)
		if err != nil {
			return err
		}
		if !CanTransition(po.Status, to) {
			return ErrInvalidTransition
		}
		if err := tx.UpdatePOStatus(ctx, poID, to); err != nil {
			return err
		}
		result = po
		result.Status = to
		return nil
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	s.recordAudit(ctx, "purchase.transition", poID, map[string]any{"to": string(to)})
	return result, nil
}

func (s *Service) invalidate(ctx context.Context, itemID int64) {
	if s.cache == nil || itemID == 0 {
		return
	}
	s.cache.InvalidateStock(ctx, itemID)
}

func (s *Service) recordAudit(ctx context.Context, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{Action: action, Entity: "purchase_order", EntityID: fmt.Sprintf("%d", id), Meta: meta})
}
