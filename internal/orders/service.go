package orders

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/tuftline-erp/tuftline-erp/internal/accounting/journals"
	"github.com/tuftline-erp/tuftline-erp/internal/production"
	"github.com/tuftline-erp/tuftline-erp/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, orderID int64) (Order, error)
	List(ctx context.Context, limit int) ([]Order, error)
	ListPayments(ctx context.Context, orderID int64) ([]Payment, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// ServiceConfig wires the ledger accounts payment postings move value
// between.
type ServiceConfig struct {
	CashAccountID             int64
	DepositLiabilityAccountID int64
}

// Service drives the order lifecycle. Payment recording and the transition
// into production each run their ledger or production side effects in the
// same transaction as the order's own state change.
type Service struct {
	repo   RepositoryPort
	ledger *journals.Engine
	refs   shared.ReferenceGenerator
	audit  AuditPort
	cfg    ServiceConfig
}

// NewService constructs the orders service.
func NewService(repo RepositoryPort, ledger *journals.Engine, refs shared.ReferenceGenerator, audit AuditPort, cfg ServiceConfig) *Service {
	return &Service{repo: repo, ledger: ledger, refs: refs, audit: audit, cfg: cfg}
}

// ItemInput is one requested order line.
type ItemInput struct {
	Description        string
	Qty                decimal.Decimal
	UnitPrice          decimal.Decimal
	RequiresProduction bool
}

// CreateInput describes a new draft order.
type CreateInput struct {
	ClientID       int64
	DepositPercent decimal.Decimal
	Items          []ItemInput
}

// Create opens a DRAFT order. The total is the sum of line amounts.
func (s *Service) Create(ctx context.Context, in CreateInput) (Order, error) {
	if in.ClientID == 0 {
		return Order{}, ErrValidation
	}
	if in.DepositPercent.IsNegative() || in.DepositPercent.GreaterThan(decimal.NewFromInt(100)) {
		return Order{}, ErrValidation
	}
	items, total, err := buildItems(in.Items)
	if err != nil {
		return Order{}, err
	}
	var created Order
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		o, err := tx.InsertOrder(ctx, Order{
			Reference:      s.refs.Next("ORD"),
			ClientID:       in.ClientID,
			Status:         StatusDraft,
			DepositPercent: in.DepositPercent,
			TotalAmount:    total,
		})
		if err != nil {
			return err
		}
		o.Items, err = tx.InsertItems(ctx, o.ID, items)
		if err != nil {
			return err
		}
		o.BalanceDue = o.TotalAmount
		created = o
		return nil
	})
	if err != nil {
		return Order{}, err
	}
	s.recordAudit(ctx, "order.create", created.ID, map[string]any{"reference": created.Reference})
	return created, nil
}

// UpdateItems replaces the item list of an order whose items are not yet
// frozen and recomputes the total.
func (s *Service) UpdateItems(ctx context.Context, orderID int64, inputs []ItemInput) (Order, error) {
	items, total, err := buildItems(inputs)
	if err != nil {
		return Order{}, err
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		o, err := tx.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if ItemsLocked(o.Status) {
			return ErrItemsLocked
		}
		if err := tx.DeleteItems(ctx, orderID); err != nil {
			return err
		}
		if _, err := tx.InsertItems(ctx, orderID, items); err != nil {
			return err
		}
		return tx.UpdateOrderTotal(ctx, orderID, total)
	})
	if err != nil {
		return Order{}, err
	}
	s.recordAudit(ctx, "order.items.update", orderID, nil)
	return s.repo.Get(ctx, orderID)
}

// Submit moves DRAFT → PENDING_DEPOSIT.
func (s *Service) Submit(ctx context.Context, orderID int64) (Order, error) {
	return s.transition(ctx, orderID, StatusPendingDeposit, func(ctx context.Context, tx TxRepository, o Order) error {
		items, err := tx.ListItems(ctx, orderID)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return ErrNoItems
		}
		return nil
	})
}

// PaymentInput describes one received client payment.
type PaymentInput struct {
	OrderID int64
	Amount  decimal.Decimal
	Method  string
}

// RecordPayment posts a RECEIPT entry debiting Cash and crediting the
// deposit liability, stores the payment, and advances PENDING_DEPOSIT →
// DEPOSIT_PAID once cumulative payments reach the required deposit. The
// entry, the payment row and any status change commit together.
func (s *Service) RecordPayment(ctx context.Context, in PaymentInput) (Payment, error) {
	if !in.Amount.IsPositive() {
		return Payment{}, ErrValidation
	}
	var recorded Payment
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		o, err := tx.GetOrderForUpdate(ctx, in.OrderID)
		if err != nil {
			return err
		}
		if o.Status == StatusDraft || o.Status == StatusArchived {
			return ErrInvalidTransition
		}
		entry, err := s.ledger.CreateEntry(ctx, tx.Journals(), journals.CreateEntryInput{
			Type:        journals.TypeReceipt,
			Description: fmt.Sprintf("Payment on order %s", o.Reference),
			Source:      journals.SourceRef{Kind: journals.SourceOrder, ID: o.ID},
			Lines: []journals.LineInput{
				{AccountID: s.cfg.CashAccountID, Side: journals.SideDebit, Amount: in.Amount, Memo: "cash in"},
				{AccountID: s.cfg.DepositLiabilityAccountID, Side: journals.SideCredit, Amount: in.Amount, Memo: "client deposit"},
			},
		})
		if err != nil {
			return err
		}
		if _, err := s.ledger.Post(ctx, tx.Journals(), entry.ID); err != nil {
			return err
		}
		recorded, err = tx.InsertPayment(ctx, Payment{OrderID: o.ID, Amount: in.Amount, Method: in.Method, EntryID: entry.ID})
		if err != nil {
			return err
		}
		if o.Status != StatusPendingDeposit {
			return nil
		}
		paid, err := tx.SumPayments(ctx, o.ID)
		if err != nil {
			return err
		}
		if paid.GreaterThanOrEqual(o.RequiredDeposit()) {
			return tx.UpdateOrderStatus(ctx, o.ID, StatusDepositPaid)
		}
		return nil
	})
	if err != nil {
		return Payment{}, err
	}
	s.recordAudit(ctx, "order.payment", in.OrderID, map[string]any{"amount": in.Amount.String()})
	return recorded, nil
}

// StartProduction moves DEPOSIT_PAID → IN_PRODUCTION and creates one PLANNED
// production job per item that requires one, all in the same transaction.
func (s *Service) StartProduction(ctx context.Context, orderID int64) (Order, error) {
	return s.transition(ctx, orderID, StatusInProduction, func(ctx context.Context, tx TxRepository, o Order) error {
		paid, err := tx.SumPayments(ctx, o.ID)
		if err != nil {
			return err
		}
		if paid.LessThan(o.RequiredDeposit()) {
			return ErrDepositNotMet
		}
		items, err := tx.ListItems(ctx, o.ID)
		if err != nil {
			return err
		}
		for _, it := range items {
			if !it.RequiresProduction {
				continue
			}
			_, err := tx.Production().InsertJob(ctx, production.Job{
				Reference:   s.refs.Next("JOB"),
				OrderItemID: it.ID,
				Status:      production.StatusPlanned,
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// MarkReady moves IN_PRODUCTION → READY_FOR_DISPATCH once every linked
// production job is COMPLETED or CANCELLED.
func (s *Service) MarkReady(ctx context.Context, orderID int64) (Order, error) {
	return s.transition(ctx, orderID, StatusReadyForDispatch, func(ctx context.Context, tx TxRepository, o Order) error {
		open, err := tx.CountUnfinishedJobs(ctx, o.ID)
		if err != nil {
			return err
		}
		if open > 0 {
			return ErrJobsNotDone
		}
		return nil
	})
}

// Dispatch moves READY_FOR_DISPATCH → DISPATCHED.
func (s *Service) Dispatch(ctx context.Context, orderID int64) (Order, error) {
	return s.transition(ctx, orderID, StatusDispatched, nil)
}

// Close moves DISPATCHED → CLOSED.
func (s *Service) Close(ctx context.Context, orderID int64) (Order, error) {
	return s.transition(ctx, orderID, StatusClosed, nil)
}

// Archive moves CLOSED → ARCHIVED.
func (s *Service) Archive(ctx context.Context, orderID int64) (Order, error) {
	return s.transition(ctx, orderID, StatusArchived, nil)
}

// Get returns one order with items and derived balance due.
func (s *Service) Get(ctx context.Context, orderID int64) (Order, error) {
	return s.repo.Get(ctx, orderID)
}

// List returns recent orders.
func (s *Service) List(ctx context.Context, limit int) ([]Order, error) {
	return s.repo.List(ctx, limit)
}

// ListPayments returns the payments of one order.
func (s *Service) ListPayments(ctx context.Context, orderID int64) ([]Payment, error) {
	return s.repo.ListPayments(ctx, orderID)
}

func (s *Service) transition(ctx context.Context, orderID int64, to Status, guard func(context.Context, TxRepository, Order) error) (Order, error) {
	var result Order
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		o, err := tx.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if !CanTransition(o.Status, to) {
			return ErrInvalidTransition
		}
		if guard != nil {
			if err := guard(ctx, tx, o); err != nil {
				return err
			}
		}
		if err := tx.UpdateOrderStatus(ctx, orderID, to); err != nil {
			return err
		}
		result = o
		result.Status = to
		return nil
	})
	if err != nil {
		return Order{}, err
	}
	s.recordAudit(ctx, "order.transition", orderID, map[string]any{"to": string(to)})
	return result, nil
}

func buildItems(inputs []ItemInput) ([]OrderItem, decimal.Decimal, error) {
	if len(inputs) == 0 {
		return nil, decimal.Zero, ErrNoItems
	}
	items := make([]OrderItem, 0, len(inputs))
	total := decimal.Zero
	for _, in := range inputs {
		if in.Description == "" || !in.Qty.IsPositive() || in.UnitPrice.IsNegative() {
			return nil, decimal.Zero, ErrValidation
		}
		amount := in.Qty.Mul(in.UnitPrice)
		total = total.Add(amount)
		items = append(items, OrderItem{
			Description:        in.Description,
			Qty:                in.Qty,
			UnitPrice:          in.UnitPrice,
			Amount:             amount,
			RequiresProduction: in.RequiresProduction,
		})
	}
	return items, total, nil
}

func (s *Service) recordAudit(ctx context.Context, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{Action: action, Entity: "order", EntityID: fmt.Sprintf("%d", id), Meta: meta})
}
