package journals

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/tuftline-erp/tuftline-erp/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxStore) error) error
	List(ctx context.Context, limit int) ([]JournalEntry, error)
	Get(ctx context.Context, entryID int64) (JournalEntry, error)
	ListBySource(ctx context.Context, source SourceRef) ([]JournalEntry, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service is the ledger engine's external surface: each operation runs as its
// own transaction. State machines that must post as part of a bigger unit use
// the Engine with their own TxStore instead.
type Service struct {
	repo   RepositoryPort
	engine *Engine
	audit  AuditPort
}

// NewService builds Service.
func NewService(repo RepositoryPort, engine *Engine, audit AuditPort) *Service {
	return &Service{repo: repo, engine: engine, audit: audit}
}

// Engine exposes the transaction-scoped posting core.
func (s *Service) Engine() *Engine {
	return s.engine
}

// CreateEntry creates a DRAFT entry.
func (s *Service) CreateEntry(ctx context.Context, input CreateEntryInput) (JournalEntry, error) {
	var entry JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, store TxStore) error {
		var err error
		entry, err = s.engine.CreateEntry(ctx, store, input)
		return err
	})
	if err != nil {
		return JournalEntry{}, err
	}
	s.recordAudit(ctx, "journal.create", entry.ID, map[string]any{"reference": entry.Reference, "type": string(entry.Type)})
	return entry, nil
}

// Post makes a DRAFT entry durable against account balances.
func (s *Service) Post(ctx context.Context, entryID int64) (JournalEntry, error) {
	var entry JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, store TxStore) error {
		var err error
		entry, err = s.engine.Post(ctx, store, entryID)
		return err
	})
	if err != nil {
		return JournalEntry{}, err
	}
	s.recordAudit(ctx, "journal.post", entry.ID, map[string]any{"reference": entry.Reference})
	return entry, nil
}

// Void reverses a POSTED entry exactly.
func (s *Service) Void(ctx context.Context, entryID int64) (JournalEntry, error) {
	var entry JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, store TxStore) error {
		var err error
		entry, err = s.engine.Void(ctx, store, entryID)
		return err
	})
	if err != nil {
		return JournalEntry{}, err
	}
	s.recordAudit(ctx, "journal.void", entry.ID, map[string]any{"reference": entry.Reference})
	return entry, nil
}

// CreateAndPost is a convenience for flows that post immediately (expenses,
// manual adjustments) while still passing through the DRAFT validations.
func (s *Service) CreateAndPost(ctx context.Context, input CreateEntryInput) (JournalEntry, error) {
	var entry JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, store TxStore) error {
		created, err := s.engine.CreateEntry(ctx, store, input)
		if err != nil {
			return err
		}
		entry, err = s.engine.Post(ctx, store, created.ID)
		return err
	})
	if err != nil {
		return JournalEntry{}, err
	}
	s.recordAudit(ctx, "journal.post", entry.ID, map[string]any{"reference": entry.Reference})
	return entry, nil
}

// List returns recent entries.
func (s *Service) List(ctx context.Context, limit int) ([]JournalEntry, error) {
	return s.repo.List(ctx, limit)
}

// Get returns one entry with lines.
func (s *Service) Get(ctx context.Context, entryID int64) (JournalEntry, error) {
	return s.repo.Get(ctx, entryID)
}

// ListBySource returns entries originated by one business object.
func (s *Service) ListBySource(ctx context.Context, source SourceRef) ([]JournalEntry, error) {
	return s.repo.ListBySource(ctx, source)
}

// SumPostedDebits recomputes an account balance independently of the running
// field; used by the integrity job and property tests.
func SumPostedDebits(entries []JournalEntry, accountID int64) (debit, credit decimal.Decimal) {
	for _, e := range entries {
		if e.Status != StatusPosted {
			continue
		}
		for _, l := range e.Lines {
			if l.AccountID != accountID {
				continue
			}
			debit = debit.Add(l.Debit())
			credit = credit.Add(l.Credit())
		}
	}
	return debit, credit
}

func (s *Service) recordAudit(ctx context.Context, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{Action: action, Entity: "journal_entry", EntityID: fmt.Sprintf("%d", id), Meta: meta})
}
