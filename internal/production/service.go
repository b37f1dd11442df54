package production

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/tuftline-erp/tuftline-erp/internal/accounting/journals"
	"github.com/tuftline-erp/tuftline-erp/internal/inventory"
	"github.com/tuftline-erp/tuftline-erp/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, jobID int64) (Job, error)
	List(ctx context.Context, limit int) ([]Job, error)
	ListConsumptions(ctx context.Context, jobID int64) ([]Consumption, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// StockCachePort lets the service drop cached stock snapshots after a
// committed transaction moved stock through its own TxStore.
type StockCachePort interface {
	InvalidateStock(ctx context.Context, itemID int64)
}

// ServiceConfig wires the ledger accounts consumption postings move value
// between.
type ServiceConfig struct {
	WIPAccountID           int64
	InventoryAccountID     int64
	FinishedGoodsAccountID int64
}

// Service orchestrates the production job lifecycle. Every transition that
// carries a financial or material side effect runs the job update, the stock
// movement and the journal posting inside one transaction.
type Service struct {
	repo   RepositoryPort
	ledger *journals.Engine
	stock  *inventory.Engine
	audit  AuditPort
	cache  StockCachePort
	cfg    ServiceConfig
}

// NewService constructs the production service.
func NewService(repo RepositoryPort, ledger *journals.Engine, stock *inventory.Engine, audit AuditPort, cache StockCachePort, cfg ServiceConfig) *Service {
	return &Service{repo: repo, ledger: ledger, stock: stock, audit: audit, cache: cache, cfg: cfg}
}

// BOMLineInput describes one planned material requirement.
type BOMLineInput struct {
	ItemID     int64
	PlannedQty decimal.Decimal
	Note       string
}

// AddBOMLines attaches planned material requirements to a PLANNED job.
func (s *Service) AddBOMLines(ctx context.Context, jobID int64, lines []BOMLineInput) (Job, error) {
	if len(lines) == 0 {
		return Job{}, ErrValidation
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		job, err := tx.GetJobForUpdate(ctx, jobID)
		if err != nil {
			return err
		}
		if job.Status != StatusPlanned {
			return ErrInvalidTransition
		}
		for _, line := range lines {
			if line.ItemID == 0 || !line.PlannedQty.IsPositive() {
				return ErrValidation
			}
			if _, err := tx.InsertBOMLine(ctx, BOMLine{JobID: jobID, ItemID: line.ItemID, PlannedQty: line.PlannedQty, Note: line.Note}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Job{}, err
	}
	return s.repo.Get(ctx, jobID)
}

// AllocateMaterials transitions PLANNED → MATERIALS_ALLOCATED. The
// reservation is a planning step only; stock does not move until consumption
// is recorded.
func (s *Service) AllocateMaterials(ctx context.Context, jobID int64) (Job, error) {
	return s.transition(ctx, jobID, StatusMaterialsAllocated, func(ctx context.Context, tx TxRepository, job Job) error {
		lines, err := tx.ListBOMLines(ctx, jobID)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			return ErrNoBOMLines
		}
		return nil
	})
}

// Start transitions MATERIALS_ALLOCATED → IN_PROGRESS.
func (s *Service) Start(ctx context.Context, jobID int64) (Job, error) {
	return s.transition(ctx, jobID, StatusInProgress, nil)
}

// SubmitQualityCheck transitions IN_PROGRESS → QUALITY_CHECK.
func (s *Service) SubmitQualityCheck(ctx context.Context, jobID int64) (Job, error) {
	return s.transition(ctx, jobID, StatusQualityCheck, nil)
}

// Cancel moves any non-terminal job to CANCELLED and releases its planning
// reservations.
func (s *Service) Cancel(ctx context.Context, jobID int64) (Job, error) {
	return s.transition(ctx, jobID, StatusCancelled, nil)
}

// Complete transitions QUALITY_CHECK → COMPLETED: the accumulated consumption
// cost becomes the finished product's production cost, and a GENERAL entry
// moves that cost from WIP into Finished Goods.
func (s *Service) Complete(ctx context.Context, jobID int64) (Job, FinishedProduct, error) {
	var finished FinishedProduct
	job, err := s.transition(ctx, jobID, StatusCompleted, func(ctx context.Context, tx TxRepository, job Job) error {
		total, err := tx.SumConsumptionCost(ctx, jobID)
		if err != nil {
			return err
		}
		finished, err = tx.InsertFinishedProduct(ctx, FinishedProduct{
			JobID:          jobID,
			OrderItemID:    job.OrderItemID,
			ProductionCost: total,
		})
		if err != nil {
			return err
		}
		if err := tx.SetActualEnd(ctx, jobID); err != nil {
			return err
		}
		if !total.IsPositive() {
			return nil
		}
		entry, err := s.ledger.CreateEntry(ctx, tx.Journals(), journals.CreateEntryInput{
			Type:        journals.TypeGeneral,
			Description: fmt.Sprintf("Production %s completed", job.Reference),
			Source:      journals.SourceRef{Kind: journals.SourceProductionJob, ID: jobID},
			Lines: []journals.LineInput{
				{AccountID: s.cfg.FinishedGoodsAccountID, Side: journals.SideDebit, Amount: total, Memo: "finished goods in"},
				{AccountID: s.cfg.WIPAccountID, Side: journals.SideCredit, Amount: total, Memo: "wip relieved"},
			},
		})
		if err != nil {
			return err
		}
		_, err = s.ledger.Post(ctx, tx.Journals(), entry.ID)
		return err
	})
	if err != nil {
		return Job{}, FinishedProduct{}, err
	}
	return job, finished, nil
}

// ConsumptionInput describes a material draw against a job.
type ConsumptionInput struct {
	JobID  int64
	ItemID int64
	Qty    decimal.Decimal
}

// RecordConsumption draws material out of stock at the current average cost
// and posts an INVENTORY entry debiting WIP and crediting Inventory, all in
// one transaction with the consumption row itself.
func (s *Service) RecordConsumption(ctx context.Context, in ConsumptionInput) (Consumption, error) {
	if in.JobID == 0 || in.ItemID == 0 {
		return Consumption{}, ErrValidation
	}
	var recorded Consumption
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		job, err := tx.GetJobForUpdate(ctx, in.JobID)
		if err != nil {
			return err
		}
		if err := consumable(job.Status); err != nil {
			return err
		}
		movement, cost, err := s.stock.Consume(ctx, tx.Inventory(), inventory.ConsumeInput{
			ItemID:  in.ItemID,
			Qty:     in.Qty,
			RefKind: "production_job",
			RefID:   in.JobID,
			Note:    fmt.Sprintf("consumed by %s", job.Reference),
		})
		if err != nil {
			return err
		}
		entryID, err := s.postConsumption(ctx, tx, job, cost)
		if err != nil {
			return err
		}
		recorded, err = tx.InsertConsumption(ctx, Consumption{
			JobID:    in.JobID,
			ItemID:   in.ItemID,
			Qty:      in.Qty,
			UnitCost: movement.UnitCost,
			Cost:     cost,
			EntryID:  entryID,
		})
		return err
	})
	if err != nil {
		return Consumption{}, err
	}
	s.invalidate(ctx, in.ItemID)
	s.recordAudit(ctx, "production.consume", in.JobID, map[string]any{"item_id": in.ItemID, "qty": in.Qty.String()})
	return recorded, nil
}

// UpdateConsumption replaces a recorded draw: the prior stock and ledger
// effect is reversed (void plus stock return), then the new quantity is
// consumed and posted. History is never edited in place.
func (s *Service) UpdateConsumption(ctx context.Context, consumptionID int64, newQty decimal.Decimal) (Consumption, error) {
	var updated Consumption
	var touchedItem int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetConsumption(ctx, consumptionID)
		if err != nil {
			return err
		}
		job, err := tx.GetJobForUpdate(ctx, current.JobID)
		if err != nil {
			return err
		}
		if err := consumable(job.Status); err != nil {
			return err
		}
		if err := s.reverseConsumption(ctx, tx, job, current); err != nil {
			return err
		}
		movement, cost, err := s.stock.Consume(ctx, tx.Inventory(), inventory.ConsumeInput{
			ItemID:  current.ItemID,
			Qty:     newQty,
			RefKind: "production_job",
			RefID:   current.JobID,
			Note:    fmt.Sprintf("consumption corrected for %s", job.Reference),
		})
		if err != nil {
			return err
		}
		entryID, err := s.postConsumption(ctx, tx, job, cost)
		if err != nil {
			return err
		}
		updated = current
		updated.Qty = newQty
		updated.UnitCost = movement.UnitCost
		updated.Cost = cost
		updated.EntryID = entryID
		touchedItem = current.ItemID
		return tx.UpdateConsumption(ctx, updated)
	})
	if err != nil {
		return Consumption{}, err
	}
	s.invalidate(ctx, touchedItem)
	s.recordAudit(ctx, "production.consume.update", updated.JobID, map[string]any{"consumption_id": consumptionID})
	return updated, nil
}

// DeleteConsumption reverses a recorded draw entirely: the journal entry is
// voided, the stock returned, and the row removed.
func (s *Service) DeleteConsumption(ctx context.Context, consumptionID int64) error {
	var touchedItem, jobID int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetConsumption(ctx, consumptionID)
		if err != nil {
			return err
		}
		job, err := tx.GetJobForUpdate(ctx, current.JobID)
		if err != nil {
			return err
		}
		if err := consumable(job.Status); err != nil {
			return err
		}
		if err := s.reverseConsumption(ctx, tx, job, current); err != nil {
			return err
		}
		touchedItem = current.ItemID
		jobID = current.JobID
		return tx.DeleteConsumption(ctx, consumptionID)
	})
	if err != nil {
		return err
	}
	s.invalidate(ctx, touchedItem)
	s.recordAudit(ctx, "production.consume.delete", jobID, map[string]any{"consumption_id": consumptionID})
	return nil
}

// Get returns one job with BOM lines.
func (s *Service) Get(ctx context.Context, jobID int64) (Job, error) {
	return s.repo.Get(ctx, jobID)
}

// List returns recent jobs.
func (s *Service) List(ctx context.Context, limit int) ([]Job, error) {
	return s.repo.List(ctx, limit)
}

// ListConsumptions returns the recorded consumption of one job.
func (s *Service) ListConsumptions(ctx context.Context, jobID int64) ([]Consumption, error) {
	return s.repo.ListConsumptions(ctx, jobID)
}

// reverseConsumption undoes one consumption's ledger and stock effect inside
// the caller's transaction: void the entry, then return the quantity via an
// adjustment (consumption never moved the average, so the return is exact).
func (s *Service) reverseConsumption(ctx context.Context, tx TxRepository, job Job, c Consumption) error {
	if c.EntryID != 0 {
		if _, err := s.ledger.Void(ctx, tx.Journals(), c.EntryID); err != nil {
			return err
		}
	}
	_, err := s.stock.Adjust(ctx, tx.Inventory(), inventory.AdjustInput{
		ItemID:  c.ItemID,
		Delta:   c.Qty,
		RefKind: "production_job",
		RefID:   c.JobID,
		Note:    fmt.Sprintf("consumption reversed for %s", job.Reference),
	})
	return err
}

// postConsumption creates and posts the INVENTORY entry carrying cost into
// WIP. Zero-cost draws (items never received at a cost) post nothing.
func (s *Service) postConsumption(ctx context.Context, tx TxRepository, job Job, cost decimal.Decimal) (int64, error) {
	if !cost.IsPositive() {
		return 0, nil
	}
	entry, err := s.ledger.CreateEntry(ctx, tx.Journals(), journals.CreateEntryInput{
		Type:        journals.TypeInventory,
		Description: fmt.Sprintf("Materials consumed by %s", job.Reference),
		Source:      journals.SourceRef{Kind: journals.SourceProductionJob, ID: job.ID},
		Lines: []journals.LineInput{
			{AccountID: s.cfg.WIPAccountID, Side: journals.SideDebit, Amount: cost, Memo: "materials to wip"},
			{AccountID: s.cfg.InventoryAccountID, Side: journals.SideCredit, Amount: cost, Memo: "inventory out"},
		},
	})
	if err != nil {
		return 0, err
	}
	if _, err := s.ledger.Post(ctx, tx.Journals(), entry.ID); err != nil {
		return 0, err
	}
	return entry.ID, nil
}

func (s *Service) transition(ctx context.Context, jobID int64, to Status, guard func(context.Context, TxRepository, Job) error) (Job, error) {
	var result Job
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		job, err := tx.GetJobForUpdate(ctx, jobID)
		if err != nil {
			return err
		}
		if !CanTransition(job.Status, to) {
			return ErrInvalidTransition
		}
		if guard != nil {
			if err := guard(ctx, tx, job); err != nil {
				return err
			}
		}
		if err := tx.UpdateJobStatus(ctx, jobID, to); err != nil {
			return err
		}
		result = job
		result.Status = to
		return nil
	})
	if err != nil {
		return Job{}, err
	}
	s.recordAudit(ctx, "production.transition", jobID, map[string]any{"to": string(to)})
	return result, nil
}

func consumable(status Status) error {
	switch status {
	case StatusMaterialsAllocated, StatusInProgress, StatusQualityCheck:
		return nil
	case StatusCompleted, StatusCancelled:
		return ErrJobClosed
	default:
		return ErrInvalidTransition
	}
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
	_ = s.audit.Record(ctx, shared.AuditLog{Action: action, Entity: "production_job", EntityID: fmt.Sprintf("%d", id), Meta: meta})
}
