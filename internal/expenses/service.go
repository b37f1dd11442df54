package expenses

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tuftline-erp/tuftline-erp/internal/accounting/journals"
	"github.com/tuftline-erp/tuftline-erp/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (Expense, error)
	List(ctx context.Context, limit int) ([]Expense, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service records expenses. Each expense is a posted EXPENSE entry debiting
// the chosen expense account and crediting the account it was paid from; the
// expense row and the entry commit together.
type Service struct {
	repo   RepositoryPort
	ledger *journals.Engine
	refs   shared.ReferenceGenerator
	audit  AuditPort
}

// NewService constructs the expenses service.
func NewService(repo RepositoryPort, ledger *journals.Engine, refs shared.ReferenceGenerator, audit AuditPort) *Service {
	return &Service{repo: repo, ledger: ledger, refs: refs, audit: audit}
}

// RecordInput describes one expense.
type RecordInput struct {
	Description   string
	Amount        decimal.Decimal
	ExpenseAcctID int64
	PaidFromID    int64
	IncurredAt    time.Time
}

// Record stores the expense and posts its ledger entry atomically.
func (s *Service) Record(ctx context.Context, in RecordInput) (Expense, error) {
	if in.Description == "" || !in.Amount.IsPositive() || in.ExpenseAcctID == 0 || in.PaidFromID == 0 {
		return Expense{}, ErrValidation
	}
	incurred := in.IncurredAt
	if incurred.IsZero() {
		incurred = s.refs.Now()
	}
	var recorded Expense
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		e, err := tx.InsertExpense(ctx, Expense{
			Reference:     s.refs.Next("EXP"),
			Description:   in.Description,
			Amount:        in.Amount,
			ExpenseAcctID: in.ExpenseAcctID,
			PaidFromID:    in.PaidFromID,
			IncurredAt:    incurred,
		})
		if err != nil {
			return err
		}
		entry, err := s.ledger.CreateEntry(ctx, tx.Journals(), journals.CreateEntryInput{
			Type:        journals.TypeExpense,
			Date:        incurred,
			Description: e.Description,
			Source:      journals.SourceRef{Kind: journals.SourceExpense, ID: e.ID},
			Lines: []journals.LineInput{
				{AccountID: e.ExpenseAcctID, Side: journals.SideDebit, Amount: e.Amount, Memo: "expense"},
				{AccountID: e.PaidFromID, Side: journals.SideCredit, Amount: e.Amount, Memo: "paid from"},
			},
		})
		if err != nil {
			return err
		}
		if _, err := s.ledger.Post(ctx, tx.Journals(), entry.ID); err != nil {
			return err
		}
		if err := tx.SetEntryID(ctx, e.ID, entry.ID); err != nil {
			return err
		}
		e.EntryID = entry.ID
		recorded = e
		return nil
	})
	if err != nil {
		return Expense{}, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			Action:   "expense.record",
			Entity:   "expense",
			EntityID: fmt.Sprintf("%d", recorded.ID),
			Meta:     map[string]any{"amount": recorded.Amount.String()},
		})
	}
	return recorded, nil
}

// Get returns one expense.
func (s *Service) Get(ctx context.Context, id int64) (Expense, error) {
	return s.repo.Get(ctx, id)
}

// List returns recent expenses.
func (s *Service) List(ctx context.Context, limit int) ([]Expense, error) {
	return s.repo.List(ctx, limit)
}
