package orders

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/tuftline-erp/tuftline-erp/internal/accounting/accounts"
	"github.com/tuftline-erp/tuftline-erp/internal/accounting/journals"
	"github.com/tuftline-erp/tuftline-erp/internal/production"
	"github.com/tuftline-erp/tuftline-erp/internal/shared"
	"github.com/tuftline-erp/tuftline-erp/internal/testing/memstore"
)

type memoryJobs struct {
	jobs   []production.Job
	nextID int64
}

func (m *memoryJobs) InsertJob(ctx context.Context, job production.Job) (production.Job, error) {
	m.nextID++
	job.ID = m.nextID
	m.jobs = append(m.jobs, job)
	return job, nil
}

func (m *memoryJobs) InsertBOMLine(ctx context.Context, line production.BOMLine) (production.BOMLine, error) {
	m.nextID++
	line.ID = m.nextID
	return line, nil
}

func (m *memoryJobs) unfinished(orderItemIDs map[int64]bool) int {
	n := 0
	for _, j := range m.jobs {
		if orderItemIDs[j.OrderItemID] && j.Status != production.StatusCompleted && j.Status != production.StatusCancelled {
			n++
		}
	}
	return n
}

type memoryOrderRepo struct {
	orders   map[int64]*Order
	items    map[int64][]OrderItem
	payments map[int64][]Payment
	jobs     *memoryJobs
	ledger   *memstore.Ledger
	nextID   int64
}

func newMemoryOrderRepo() *memoryOrderRepo {
	return &memoryOrderRepo{
		orders:   make(map[int64]*Order),
		items:    make(map[int64][]OrderItem),
		payments: make(map[int64][]Payment),
		jobs:     &memoryJobs{},
		ledger:   memstore.NewLedger(),
	}
}

func (r *memoryOrderRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryOrderTx{repo: r})
}

func (r *memoryOrderRepo) Get(ctx context.Context, orderID int64) (Order, error) {
	o, ok := r.orders[orderID]
	if !ok {
		return Order{}, ErrNotFound
	}
	copied := *o
	copied.Items = append([]OrderItem(nil), r.items[orderID]...)
	paid := decimal.Zero
	for _, p := range r.payments[orderID] {
		paid = paid.Add(p.Amount)
	}
	copied.BalanceDue = copied.TotalAmount.Sub(paid)
	return copied, nil
}

func (r *memoryOrderRepo) List(ctx context.Context, limit int) ([]Order, error) {
	out := make([]Order, 0, len(r.orders))
	for id := range r.orders {
		o, _ := r.Get(ctx, id)
		out = append(out, o)
	}
	return out, nil
}

func (r *memoryOrderRepo) ListPayments(ctx context.Context, orderID int64) ([]Payment, error) {
	return append([]Payment(nil), r.payments[orderID]...), nil
}

type memoryOrderTx struct {
	repo *memoryOrderRepo
}

func (t *memoryOrderTx) InsertOrder(ctx context.Context, o Order) (Order, error) {
	t.repo.nextID++
	o.ID = t.repo.nextID
	o.CreatedAt = time.Now()
	stored := o
	t.repo.orders[o.ID] = &stored
	return o, nil
}

func (t *memoryOrderTx) InsertItems(ctx context.Context, orderID int64, items []OrderItem) ([]OrderItem, error) {
	for i := range items {
		t.repo.nextID++
		items[i].ID = t.repo.nextID
		items[i].OrderID = orderID
	}
	t.repo.items[orderID] = append(t.repo.items[orderID], items...)
	return items, nil
}

func (t *memoryOrderTx) DeleteItems(ctx context.Context, orderID int64) error {
	t.repo.items[orderID] = nil
	return nil
}

func (t *memoryOrderTx) GetOrderForUpdate(ctx context.Context, orderID int64) (Order, error) {
	o, ok := t.repo.orders[orderID]
	if !ok {
		return Order{}, ErrNotFound
	}
	copied := *o
	copied.Items = append([]OrderItem(nil), t.repo.items[orderID]...)
	return copied, nil
}

func (t *memoryOrderTx) UpdateOrderStatus(ctx context.Context, orderID int64, status Status) error {
	o, ok := t.repo.orders[orderID]
	if !ok {
		return ErrNotFound
	}
	o.Status = status
	return nil
}

func (t *memoryOrderTx) UpdateOrderTotal(ctx context.Context, orderID int64, total decimal.Decimal) error {
	o, ok := t.repo.orders[orderID]
	if !ok {
		return ErrNotFound
	}
	o.TotalAmount = total
	return nil
}

func (t *memoryOrderTx) ListItems(ctx context.Context, orderID int64) ([]OrderItem, error) {
	return append([]OrderItem(nil), t.repo.items[orderID]...), nil
}

func (t *memoryOrderTx) InsertPayment(ctx context.Context, p Payment) (Payment, error) {
	t.repo.nextID++
	p.ID = t.repo.nextID
	p.ReceivedAt = time.Now()
	t.repo.payments[p.OrderID] = append(t.repo.payments[p.OrderID], p)
	return p, nil
}

func (t *memoryOrderTx) SumPayments(ctx context.Context, orderID int64) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, p := range t.repo.payments[orderID] {
		total = total.Add(p.Amount)
	}
	return total, nil
}

func (t *memoryOrderTx) CountUnfinishedJobs(ctx context.Context, orderID int64) (int, error) {
	itemIDs := make(map[int64]bool)
	for _, it := range t.repo.items[orderID] {
		itemIDs[it.ID] = true
	}
	return t.repo.jobs.unfinished(itemIDs), nil
}

func (t *memoryOrderTx) Journals() journals.TxStore     { return t.repo.ledger }
func (t *memoryOrderTx) Production() production.TxStore { return t.repo.jobs }

const (
	cashAcct    = int64(1)
	depositAcct = int64(2)
)

func newTestService(t *testing.T) (*Service, *memoryOrderRepo) {
	t.Helper()
	repo := newMemoryOrderRepo()
	repo.ledger.AddAccount(cashAcct, accounts.TypeAsset)
	repo.ledger.AddAccount(depositAcct, accounts.TypeLiability)
	refs := shared.NewReferenceGenerator(func() time.Time { return time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC) })
	svc := NewService(repo, journals.NewEngine(refs), refs, nil, ServiceConfig{
		CashAccountID:             cashAcct,
		DepositLiabilityAccountID: depositAcct,
	})
	return svc, repo
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func createSubmitted(t *testing.T, svc *Service) Order {
	t.Helper()
	ctx := context.Background()
	o, err := svc.Create(ctx, CreateInput{
		ClientID:       5,
		DepositPercent: dec("50"),
		Items: []ItemInput{
			{Description: "hand-tufted rug 2x3", Qty: dec("1"), UnitPrice: dec("400.00"), RequiresProduction: true},
			{Description: "care kit", Qty: dec("2"), UnitPrice: dec("25.00")},
		},
	})
	require.NoError(t, err)
	require.Equal(t, StatusDraft, o.Status)
	require.True(t, o.TotalAmount.Equal(dec("450.00")))

	o, err = svc.Submit(ctx, o.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPendingDeposit, o.Status)
	return o
}

func TestCreateValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateInput{ClientID: 0, Items: []ItemInput{{Description: "x", Qty: dec("1"), UnitPrice: dec("1")}}})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.Create(ctx, CreateInput{ClientID: 5, DepositPercent: dec("120"), Items: []ItemInput{{Description: "x", Qty: dec("1"), UnitPrice: dec("1")}}})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.Create(ctx, CreateInput{ClientID: 5})
	require.ErrorIs(t, err, ErrNoItems)
}

func TestSubmitRequiresItems(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	o, err := svc.Create(ctx, CreateInput{
		ClientID: 5,
		Items:    []ItemInput{{Description: "rug", Qty: dec("1"), UnitPrice: dec("100")}},
	})
	require.NoError(t, err)

	repo.items[o.ID] = nil
	_, err = svc.Submit(ctx, o.ID)
	require.ErrorIs(t, err, ErrNoItems)
}

func TestRecordPaymentPostsAndAdvances(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	o := createSubmitted(t, svc)

	// half of the 225.00 required deposit: stays pending
	p, err := svc.RecordPayment(ctx, PaymentInput{OrderID: o.ID, Amount: dec("100.00"), Method: "transfer"})
	require.NoError(t, err)
	require.NotZero(t, p.EntryID)

	got, err := svc.Get(ctx, o.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPendingDeposit, got.Status)
	require.True(t, got.BalanceDue.Equal(dec("350.00")))
	require.True(t, repo.ledger.Balance(cashAcct).Equal(dec("100.00")))
	require.True(t, repo.ledger.Balance(depositAcct).Equal(dec("100.00")))

	// cumulative 225.00 reaches the deposit threshold
	_, err = svc.RecordPayment(ctx, PaymentInput{OrderID: o.ID, Amount: dec("125.00"), Method: "transfer"})
	require.NoError(t, err)

	got, err = svc.Get(ctx, o.ID)
	require.NoError(t, err)
	require.Equal(t, StatusDepositPaid, got.Status)

	entry, err := repo.ledger.GetEntryWithLines(ctx, p.EntryID)
	require.NoError(t, err)
	require.Equal(t, journals.StatusPosted, entry.Status)
	require.Equal(t, journals.SourceOrder, entry.Source.Kind)
}

func TestRecordPaymentGuards(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	o, err := svc.Create(ctx, CreateInput{
		ClientID: 5,
		Items:    []ItemInput{{Description: "rug", Qty: dec("1"), UnitPrice: dec("100")}},
	})
	require.NoError(t, err)

	_, err = svc.RecordPayment(ctx, PaymentInput{OrderID: o.ID, Amount: dec("10")})
	require.ErrorIs(t, err, ErrInvalidTransition)

	_, err = svc.RecordPayment(ctx, PaymentInput{OrderID: o.ID, Amount: dec("-10")})
	require.ErrorIs(t, err, ErrValidation)
}

func TestStartProductionCreatesJobs(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	o := createSubmitted(t, svc)

	_, err := svc.RecordPayment(ctx, PaymentInput{OrderID: o.ID, Amount: dec("225.00"), Method: "cash"})
	require.NoError(t, err)

	started, err := svc.StartProduction(ctx, o.ID)
	require.NoError(t, err)
	require.Equal(t, StatusInProduction, started.Status)

	// one job per item flagged for production, none for stock items
	require.Len(t, repo.jobs.jobs, 1)
	require.Equal(t, production.StatusPlanned, repo.jobs.jobs[0].Status)
	require.Equal(t, o.Items[0].ID, repo.jobs.jobs[0].OrderItemID)
}

func TestStartProductionDepositGuard(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	o := createSubmitted(t, svc)

	_, err := svc.RecordPayment(ctx, PaymentInput{OrderID: o.ID, Amount: dec("225.00"), Method: "cash"})
	require.NoError(t, err)

	// simulate a voided payment by clearing the ledger trail
	repo.payments[o.ID] = nil
	_, err = svc.StartProduction(ctx, o.ID)
	require.ErrorIs(t, err, ErrDepositNotMet)
	require.Empty(t, repo.jobs.jobs)
}

func TestUpdateItemsLockedInProduction(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	o := createSubmitted(t, svc)

	_, err := svc.RecordPayment(ctx, PaymentInput{OrderID: o.ID, Amount: dec("225.00"), Method: "cash"})
	require.NoError(t, err)
	_, err = svc.StartProduction(ctx, o.ID)
	require.NoError(t, err)

	_, err = svc.UpdateItems(ctx, o.ID, []ItemInput{{Description: "bigger rug", Qty: dec("1"), UnitPrice: dec("600")}})
	require.ErrorIs(t, err, ErrItemsLocked)

	// items were not replaced
	got, err := svc.Get(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 2)
}

func TestMarkReadyWaitsForJobs(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	o := createSubmitted(t, svc)

	_, err := svc.RecordPayment(ctx, PaymentInput{OrderID: o.ID, Amount: dec("225.00"), Method: "cash"})
	require.NoError(t, err)
	_, err = svc.StartProduction(ctx, o.ID)
	require.NoError(t, err)

	_, err = svc.MarkReady(ctx, o.ID)
	require.ErrorIs(t, err, ErrJobsNotDone)

	repo.jobs.jobs[0].Status = production.StatusCompleted
	ready, err := svc.MarkReady(ctx, o.ID)
	require.NoError(t, err)
	require.Equal(t, StatusReadyForDispatch, ready.Status)
}

func TestLifecycleToArchive(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	o := createSubmitted(t, svc)

	_, err := svc.RecordPayment(ctx, PaymentInput{OrderID: o.ID, Amount: dec("450.00"), Method: "cash"})
	require.NoError(t, err)
	_, err = svc.StartProduction(ctx, o.ID)
	require.NoError(t, err)
	repo.jobs.jobs[0].Status = production.StatusCompleted

	_, err = svc.MarkReady(ctx, o.ID)
	require.NoError(t, err)
	_, err = svc.Dispatch(ctx, o.ID)
	require.NoError(t, err)
	closed, err := svc.Close(ctx, o.ID)
	require.NoError(t, err)
	require.Equal(t, StatusClosed, closed.Status)
	archived, err := svc.Archive(ctx, o.ID)
	require.NoError(t, err)
	require.Equal(t, StatusArchived, archived.Status)

	// archived orders accept no further payments
	_, err = svc.RecordPayment(ctx, PaymentInput{OrderID: o.ID, Amount: dec("1")})
	require.ErrorIs(t, err, ErrInvalidTransition)

	// and no backward moves
	_, err = svc.Dispatch(ctx, o.ID)
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestRequiredDeposit(t *testing.T) {
	o := Order{TotalAmount: dec("450.00"), DepositPercent: dec("50")}
	require.True(t, o.RequiredDeposit().Equal(dec("225.00")))

	o.DepositPercent = decimal.Zero
	require.True(t, o.RequiredDeposit().IsZero())
}
