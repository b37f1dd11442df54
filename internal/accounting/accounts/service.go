package accounts

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	accshared "github.com/tuftline-erp/tuftline-erp/internal/accounting/shared"
	"github.com/tuftline-erp/tuftline-erp/internal/shared"
)

// RepositoryPort abstracts persistence for the service.
type RepositoryPort interface {
	Create(ctx context.Context, a Account) (Account, error)
	Update(ctx context.Context, a Account) (Account, error)
	Get(ctx context.Context, id int64) (Account, error)
	GetByCode(ctx context.Context, code string) (Account, error)
	List(ctx context.Context) ([]Account, error)
	CountChildren(ctx context.Context, id int64) (int64, error)
	CountJournalLines(ctx context.Context, id int64) (int64, error)
	Delete(ctx context.Context, id int64) error
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service manages the chart of accounts.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

// CreateInput carries fields for a new account.
type CreateInput struct {
	Code     string
	Name     string
	Type     AccountType
	Category string
	ParentID *int64
}

// Create validates and inserts a new account with a zero balance.
func (s *Service) Create(ctx context.Context, input CreateInput) (Account, error) {
	if input.Code == "" || input.Name == "" {
		return Account{}, errors.New("accounts: code and name required")
	}
	if !input.Type.Valid() {
		return Account{}, fmt.Errorf("accounts: unknown account type %q", input.Type)
	}
	if input.ParentID != nil {
		parent, err := s.repo.Get(ctx, *input.ParentID)
		if err != nil {
			return Account{}, err
		}
		if parent.Type != input.Type {
			return Account{}, errors.New("accounts: parent must share the account type")
		}
	}
	created, err := s.repo.Create(ctx, Account{
		Code:     input.Code,
		Name:     input.Name,
		Type:     input.Type,
		Category: input.Category,
		ParentID: input.ParentID,
	})
	if err != nil {
		return Account{}, err
	}
	s.recordAudit(ctx, "account.create", created.ID, map[string]any{"code": created.Code})
	return created, nil
}

// UpdateInput carries mutable account fields.
type UpdateInput struct {
	Name     string
	Category string
	ParentID *int64
	Active   bool
}

// Update applies mutable fields. Type and balance never change here.
func (s *Service) Update(ctx context.Context, id int64, input UpdateInput) (Account, error) {
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return Account{}, err
	}
	if input.ParentID != nil && *input.ParentID == id {
		return Account{}, errors.New("accounts: account cannot parent itself")
	}
	current.Name = input.Name
	current.Category = input.Category
	current.ParentID = input.ParentID
	current.Active = input.Active
	updated, err := s.repo.Update(ctx, current)
	if err != nil {
		return Account{}, err
	}
	s.recordAudit(ctx, "account.update", id, map[string]any{"code": updated.Code})
	return updated, nil
}

// Get returns one account.
func (s *Service) Get(ctx context.Context, id int64) (Account, error) {
	return s.repo.Get(ctx, id)
}

// GetByCode returns one account by its code.
func (s *Service) GetByCode(ctx context.Context, code string) (Account, error) {
	return s.repo.GetByCode(ctx, code)
}

// List returns the chart ordered by code.
func (s *Service) List(ctx context.Context) ([]Account, error) {
	return s.repo.List(ctx)
}

// GetBalance returns the running balance of an account.
func (s *Service) GetBalance(ctx context.Context, id int64) (decimal.Decimal, error) {
	a, err := s.repo.Get(ctx, id)
	if err != nil {
		return decimal.Zero, err
	}
	return a.Balance, nil
}

// Delete removes an account without history. Accounts with children or
// journal lines are kept forever; deactivate them instead.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return err
	}
	children, err := s.repo.CountChildren(ctx, id)
	if err != nil {
		return err
	}
	if children > 0 {
		return accshared.ErrHasChildren
	}
	lines, err := s.repo.CountJournalLines(ctx, id)
	if err != nil {
		return err
	}
	if lines > 0 {
		return accshared.ErrHasJournalLines
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.recordAudit(ctx, "account.delete", id, nil)
	return nil
}

func (s *Service) recordAudit(ctx context.Context, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{Action: action, Entity: "account", EntityID: fmt.Sprintf("%d", id), Meta: meta})
}
