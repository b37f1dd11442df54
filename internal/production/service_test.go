package production

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/tuftline-erp/tuftline-erp/internal/accounting/accounts"
	"github.com/tuftline-erp/tuftline-erp/internal/accounting/journals"
	"github.com/tuftline-erp/tuftline-erp/internal/inventory"
	"github.com/tuftline-erp/tuftline-erp/internal/shared"
	"github.com/tuftline-erp/tuftline-erp/internal/testing/memstore"
)

type memoryRepo struct {
	jobs         map[int64]*Job
	bom          map[int64][]BOMLine
	consumptions map[int64]*Consumption
	finished     []FinishedProduct
	ledger       *memstore.Ledger
	inventory    *memstore.Inventory
	nextID       int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		jobs:         make(map[int64]*Job),
		bom:          make(map[int64][]BOMLine),
		consumptions: make(map[int64]*Consumption),
		ledger:       memstore.NewLedger(),
		inventory:    memstore.NewInventory(),
	}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) Get(ctx context.Context, jobID int64) (Job, error) {
	job, ok := r.jobs[jobID]
	if !ok {
		return Job{}, ErrNotFound
	}
	copied := *job
	copied.BOMLines = append([]BOMLine(nil), r.bom[jobID]...)
	return copied, nil
}

func (r *memoryRepo) List(ctx context.Context, limit int) ([]Job, error) {
	out := make([]Job, 0, len(r.jobs))
	for _, j := range r.jobs {
		out = append(out, *j)
	}
	return out, nil
}

func (r *memoryRepo) ListConsumptions(ctx context.Context, jobID int64) ([]Consumption, error) {
	var out []Consumption
	for _, c := range r.consumptions {
		if c.JobID == jobID {
			out = append(out, *c)
		}
	}
	return out, nil
}

// addJob seeds a job directly in the given status.
func (r *memoryRepo) addJob(status Status) *Job {
	r.nextID++
	job := &Job{ID: r.nextID, Reference: "JOB-TEST", OrderItemID: 1, Status: status}
	r.jobs[job.ID] = job
	return job
}

type memoryTx struct {
	repo *memoryRepo
}

func (t *memoryTx) InsertJob(ctx context.Context, job Job) (Job, error) {
	t.repo.nextID++
	job.ID = t.repo.nextID
	stored := job
	t.repo.jobs[job.ID] = &stored
	return job, nil
}

func (t *memoryTx) InsertBOMLine(ctx context.Context, line BOMLine) (BOMLine, error) {
	t.repo.nextID++
	line.ID = t.repo.nextID
	t.repo.bom[line.JobID] = append(t.repo.bom[line.JobID], line)
	return line, nil
}

func (t *memoryTx) GetJobForUpdate(ctx context.Context, jobID int64) (Job, error) {
	job, ok := t.repo.jobs[jobID]
	if !ok {
		return Job{}, ErrNotFound
	}
	return *job, nil
}

func (t *memoryTx) UpdateJobStatus(ctx context.Context, jobID int64, status Status) error {
	job, ok := t.repo.jobs[jobID]
	if !ok {
		return ErrNotFound
	}
	job.Status = status
	return nil
}

func (t *memoryTx) SetActualEnd(ctx context.Context, jobID int64) error {
	job, ok := t.repo.jobs[jobID]
	if !ok {
		return ErrNotFound
	}
	now := time.Now()
	job.ActualEnd = &now
	return nil
}

func (t *memoryTx) ListBOMLines(ctx context.Context, jobID int64) ([]BOMLine, error) {
	return append([]BOMLine(nil), t.repo.bom[jobID]...), nil
}

func (t *memoryTx) InsertConsumption(ctx context.Context, c Consumption) (Consumption, error) {
	t.repo.nextID++
	c.ID = t.repo.nextID
	c.RecordedAt = time.Now()
	stored := c
	t.repo.consumptions[c.ID] = &stored
	return c, nil
}

func (t *memoryTx) GetConsumption(ctx context.Context, id int64) (Consumption, error) {
	c, ok := t.repo.consumptions[id]
	if !ok {
		return Consumption{}, ErrNotFound
	}
	return *c, nil
}

func (t *memoryTx) UpdateConsumption(ctx context.Context, c Consumption) error {
	if _, ok := t.repo.consumptions[c.ID]; !ok {
		return ErrNotFound
	}
	stored := c
	t.repo.consumptions[c.ID] = &stored
	return nil
}

func (t *memoryTx) DeleteConsumption(ctx context.Context, id int64) error {
	if _, ok := t.repo.consumptions[id]; !ok {
		return ErrNotFound
	}
	delete(t.repo.consumptions, id)
	return nil
}

func (t *memoryTx) SumConsumptionCost(ctx context.Context, jobID int64) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, c := range t.repo.consumptions {
		if c.JobID == jobID {
			total = total.Add(c.Cost)
		}
	}
	return total, nil
}

func (t *memoryTx) InsertFinishedProduct(ctx context.Context, fp FinishedProduct) (FinishedProduct, error) {
	t.repo.nextID++
	fp.ID = t.repo.nextID
	fp.CompletedAt = time.Now()
	t.repo.finished = append(t.repo.finished, fp)
	return fp, nil
}

func (t *memoryTx) Journals() journals.TxStore   { return t.repo.ledger }
func (t *memoryTx) Inventory() inventory.TxStore { return t.repo.inventory }

const (
	wipAcct      = int64(5)
	stockAcct    = int64(3)
	finishedAcct = int64(6)
)

func newTestService(t *testing.T) (*Service, *memoryRepo) {
	t.Helper()
	repo := newMemoryRepo()
	repo.ledger.AddAccount(stockAcct, accounts.TypeAsset)
	repo.ledger.AddAccount(wipAcct, accounts.TypeAsset)
	repo.ledger.AddAccount(finishedAcct, accounts.TypeAsset)
	refs := shared.NewReferenceGenerator(func() time.Time { return time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC) })
	svc := NewService(repo, journals.NewEngine(refs), inventory.NewEngine(), nil, nil, ServiceConfig{
		WIPAccountID:           wipAcct,
		InventoryAccountID:     stockAcct,
		FinishedGoodsAccountID: finishedAcct,
	})
	return svc, repo
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestLifecycleTransitions(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	job := repo.addJob(StatusPlanned)

	// allocation requires a BOM
	_, err := svc.AllocateMaterials(ctx, job.ID)
	require.ErrorIs(t, err, ErrNoBOMLines)

	_, err = svc.AddBOMLines(ctx, job.ID, []BOMLineInput{{ItemID: 1, PlannedQty: dec("10")}})
	require.NoError(t, err)

	got, err := svc.AllocateMaterials(ctx, job.ID)
	require.NoError(t, err)
	require.Equal(t, StatusMaterialsAllocated, got.Status)

	got, err = svc.Start(ctx, job.ID)
	require.NoError(t, err)
	require.Equal(t, StatusInProgress, got.Status)

	// no skipping quality check
	_, _, err = svc.Complete(ctx, job.ID)
	require.ErrorIs(t, err, ErrInvalidTransition)

	got, err = svc.SubmitQualityCheck(ctx, job.ID)
	require.NoError(t, err)
	require.Equal(t, StatusQualityCheck, got.Status)
}

func TestAddBOMLinesOnlyWhilePlanned(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	job := repo.addJob(StatusInProgress)

	_, err := svc.AddBOMLines(ctx, job.ID, []BOMLineInput{{ItemID: 1, PlannedQty: dec("5")}})
	require.ErrorIs(t, err, ErrInvalidTransition)

	_, err = svc.AddBOMLines(ctx, job.ID, nil)
	require.ErrorIs(t, err, ErrValidation)
}

func TestCancelReleasesJob(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	job := repo.addJob(StatusInProgress)

	got, err := svc.Cancel(ctx, job.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, got.Status)

	// terminal states admit nothing further
	_, err = svc.Start(ctx, job.ID)
	require.ErrorIs(t, err, ErrInvalidTransition)
	_, err = svc.RecordConsumption(ctx, ConsumptionInput{JobID: job.ID, ItemID: 1, Qty: dec("1")})
	require.ErrorIs(t, err, ErrJobClosed)
}

func TestRecordConsumptionMovesStockAndPosts(t *testing.T) {
	svc, repo := newTestService(t)
	repo.inventory.AddItem(1, dec("50"), dec("2.00"))
	ctx := context.Background()
	job := repo.addJob(StatusInProgress)

	c, err := svc.RecordConsumption(ctx, ConsumptionInput{JobID: job.ID, ItemID: 1, Qty: dec("10")})
	require.NoError(t, err)
	require.True(t, c.Cost.Equal(dec("20.00")))
	require.True(t, c.UnitCost.Equal(dec("2.00")))
	require.NotZero(t, c.EntryID)

	require.True(t, repo.inventory.Items[1].CurrentStock.Equal(dec("40")))
	require.True(t, repo.ledger.Balance(wipAcct).Equal(dec("20.00")))
	require.True(t, repo.ledger.Balance(stockAcct).Equal(dec("-20.00")))

	entry, err := repo.ledger.GetEntryWithLines(ctx, c.EntryID)
	require.NoError(t, err)
	require.Equal(t, journals.StatusPosted, entry.Status)
	require.Equal(t, journals.SourceProductionJob, entry.Source.Kind)
}

func TestRecordConsumptionInsufficientStock(t *testing.T) {
	svc, repo := newTestService(t)
	repo.inventory.AddItem(1, dec("5"), dec("2.00"))
	ctx := context.Background()
	job := repo.addJob(StatusInProgress)

	_, err := svc.RecordConsumption(ctx, ConsumptionInput{JobID: job.ID, ItemID: 1, Qty: dec("6")})
	require.ErrorIs(t, err, inventory.ErrInsufficientStock)
	require.Empty(t, repo.consumptions)
	require.True(t, repo.ledger.Balance(wipAcct).IsZero())
}

func TestUpdateConsumptionReversesThenReposts(t *testing.T) {
	svc, repo := newTestService(t)
	repo.inventory.AddItem(1, dec("50"), dec("2.00"))
	ctx := context.Background()
	job := repo.addJob(StatusInProgress)

	c, err := svc.RecordConsumption(ctx, ConsumptionInput{JobID: job.ID, ItemID: 1, Qty: dec("10")})
	require.NoError(t, err)
	firstEntry := c.EntryID

	updated, err := svc.UpdateConsumption(ctx, c.ID, dec("4"))
	require.NoError(t, err)
	require.True(t, updated.Qty.Equal(dec("4")))
	require.True(t, updated.Cost.Equal(dec("8.00")))
	require.NotEqual(t, firstEntry, updated.EntryID)

	// stock reflects only the corrected draw
	require.True(t, repo.inventory.Items[1].CurrentStock.Equal(dec("46")))
	require.True(t, repo.ledger.Balance(wipAcct).Equal(dec("8.00")))

	// the original entry is voided, not edited
	old, err := repo.ledger.GetEntryWithLines(ctx, firstEntry)
	require.NoError(t, err)
	require.Equal(t, journals.StatusVoid, old.Status)
}

func TestDeleteConsumptionRestoresStock(t *testing.T) {
	svc, repo := newTestService(t)
	repo.inventory.AddItem(1, dec("50"), dec("2.00"))
	ctx := context.Background()
	job := repo.addJob(StatusInProgress)

	c, err := svc.RecordConsumption(ctx, ConsumptionInput{JobID: job.ID, ItemID: 1, Qty: dec("10")})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteConsumption(ctx, c.ID))
	require.Empty(t, repo.consumptions)
	require.True(t, repo.inventory.Items[1].CurrentStock.Equal(dec("50")))
	require.True(t, repo.ledger.Balance(wipAcct).IsZero())
	require.True(t, repo.ledger.Balance(stockAcct).IsZero())
}

func TestCompleteRollsUpCost(t *testing.T) {
	svc, repo := newTestService(t)
	repo.inventory.AddItem(1, dec("50"), dec("2.00"))
	repo.inventory.AddItem(2, dec("20"), dec("5.00"))
	ctx := context.Background()
	job := repo.addJob(StatusInProgress)

	_, err := svc.RecordConsumption(ctx, ConsumptionInput{JobID: job.ID, ItemID: 1, Qty: dec("10")})
	require.NoError(t, err)
	_, err = svc.RecordConsumption(ctx, ConsumptionInput{JobID: job.ID, ItemID: 2, Qty: dec("2")})
	require.NoError(t, err)

	_, err = svc.SubmitQualityCheck(ctx, job.ID)
	require.NoError(t, err)

	done, fp, err := svc.Complete(ctx, job.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, done.Status)
	// 10*2.00 + 2*5.00
	require.True(t, fp.ProductionCost.Equal(dec("30.00")))
	require.NotNil(t, repo.jobs[job.ID].ActualEnd)

	// completion relieves WIP into Finished Goods
	require.True(t, repo.ledger.Balance(wipAcct).IsZero())
	require.True(t, repo.ledger.Balance(finishedAcct).Equal(dec("30.00")))
}

func TestCompleteWithoutConsumptionPostsNothing(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	job := repo.addJob(StatusQualityCheck)

	_, fp, err := svc.Complete(ctx, job.ID)
	require.NoError(t, err)
	require.True(t, fp.ProductionCost.IsZero())
	require.Empty(t, repo.ledger.Entries)
}
