package procurement

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
	pos       map[int64]*PurchaseOrder
	nextID    int64
	ledger    *memstore.Ledger
	inventory *memstore.Inventory
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		pos:       make(map[int64]*PurchaseOrder),
		ledger:    memstore.NewLedger(),
		inventory: memstore.NewInventory(),
	}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) Get(ctx context.Context, poID int64) (PurchaseOrder, error) {
	po, ok := r.pos[poID]
	if !ok {
		return PurchaseOrder{}, ErrNotFound
	}
	return *po, nil
}

func (r *memoryRepo) List(ctx context.Context, limit int) ([]PurchaseOrder, error) {
	out := make([]PurchaseOrder, 0, len(r.pos))
	for _, po := range r.pos {
		out = append(out, *po)
	}
	return out, nil
}

type memoryTx struct {
	repo *memoryRepo
}

func (t *memoryTx) InsertPO(ctx context.Context, po PurchaseOrder) (PurchaseOrder, error) {
	t.repo.nextID++
	po.ID = t.repo.nextID
	po.CreatedAt = time.Now()
	stored := po
	t.repo.pos[po.ID] = &stored
	return po, nil
}

func (t *memoryTx) InsertLines(ctx context.Context, poID int64, lines []Line) ([]Line, error) {
	po, ok := t.repo.pos[poID]
	if !ok {
		return nil, ErrNotFound
	}
	for i := range lines {
		t.repo.nextID++
		lines[i].ID = t.repo.nextID
		lines[i].POID = poID
		lines[i].ReceivedQty = decimal.Zero
	}
	po.Lines = append(po.Lines, lines...)
	return lines, nil
}

func (t *memoryTx) GetPOForUpdate(ctx context.Context, poID int64) (PurchaseOrder, error) {
	po, ok := t.repo.pos[poID]
	if !ok {
		return PurchaseOrder{}, ErrNotFound
	}
	copied := *po
	copied.Lines = append([]Line(nil), po.Lines...)
	return copied, nil
}

func (t *memoryTx) UpdatePOStatus(ctx context.Context, poID int64, status Status) error {
	po, ok := t.repo.pos[poID]
	if !ok {
		return ErrNotFound
	}
	po.Status = status
	return nil
}

func (t *memoryTx) AddReceivedQty(ctx context.Context, lineID int64, qty decimal.Decimal) error {
	for _, po := range t.repo.pos {
		for i := range po.Lines {
			if po.Lines[i].ID == lineID {
				po.Lines[i].ReceivedQty = po.Lines[i].ReceivedQty.Add(qty)
				return nil
			}
		}
	}
	return ErrLineNotFound
}

func (t *memoryTx) Journals() journals.TxStore   { return t.repo.ledger }
func (t *memoryTx) Inventory() inventory.TxStore { return t.repo.inventory }

type memoryIdem struct {
	keys map[string]bool
}

func (m *memoryIdem) CheckAndInsert(ctx context.Context, key, module string) error {
	if m.keys == nil {
		m.keys = make(map[string]bool)
	}
	if m.keys[key] {
		return shared.ErrIdempotencyConflict
	}
	m.keys[key] = true
	return nil
}

func (m *memoryIdem) Delete(ctx context.Context, key string) error {
	delete(m.keys, key)
	return nil
}

const (
	inventoryAcct = int64(3)
	payablesAcct  = int64(4)
)

func newTestService(t *testing.T) (*Service, *memoryRepo, *memoryIdem) {
	t.Helper()
	repo := newMemoryRepo()
	repo.ledger.AddAccount(inventoryAcct, accounts.TypeAsset)
	repo.ledger.AddAccount(payablesAcct, accounts.TypeLiability)
	idem := &memoryIdem{}
	refs := shared.NewReferenceGenerator(func() time.Time { return time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC) })
	svc := NewService(repo, journals.NewEngine(refs), inventory.NewEngine(), refs, nil, idem, nil, ServiceConfig{
		InventoryAccountID: inventoryAcct,
		PayablesAccountID:  payablesAcct,
	})
	return svc, repo, idem
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func createSentPO(t *testing.T, svc *Service) PurchaseOrder {
	t.Helper()
	ctx := context.Background()
	po, err := svc.Create(ctx, CreateInput{
		SupplierID: 10,
		Lines:      []LineInput{{ItemID: 1, OrderedQty: dec("100"), UnitCost: dec("2.00")}},
	})
	require.NoError(t, err)
	require.Equal(t, StatusDraft, po.Status)

	po, err = svc.Send(ctx, po.ID)
	require.NoError(t, err)
	require.Equal(t, StatusSent, po.Status)
	return po
}

func TestCreateValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateInput{SupplierID: 0, Lines: []LineInput{{ItemID: 1, OrderedQty: dec("1"), UnitCost: dec("1")}}})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.Create(ctx, CreateInput{SupplierID: 10})
	require.ErrorIs(t, err, ErrNoLines)

	_, err = svc.Create(ctx, CreateInput{SupplierID: 10, Lines: []LineInput{{ItemID: 1, OrderedQty: dec("0"), UnitCost: dec("1")}}})
	require.ErrorIs(t, err, ErrValidation)
}

func TestReceiveGoodsPartialThenFull(t *testing.T) {
	svc, repo, _ := newTestService(t)
	repo.inventory.AddItem(1, decimal.Zero, decimal.Zero)
	ctx := context.Background()
	po := createSentPO(t, svc)
	lineID := po.Lines[0].ID

	got, err := svc.ReceiveGoods(ctx, ReceiveInput{
		POID:           po.ID,
		Lines:          []ReceiptLine{{LineID: lineID, Qty: dec("60")}},
		IdempotencyKey: "recv-1",
	})
	require.NoError(t, err)
	require.Equal(t, StatusPartiallyReceived, got.Status)
	require.True(t, got.Lines[0].ReceivedQty.Equal(dec("60")))

	item := repo.inventory.Items[1]
	require.True(t, item.CurrentStock.Equal(dec("60")))
	require.True(t, item.AverageCost.Equal(dec("2.00")))
	require.True(t, repo.ledger.Balance(inventoryAcct).Equal(dec("120.00")))
	require.True(t, repo.ledger.Balance(payablesAcct).Equal(dec("120.00")))

	got, err = svc.ReceiveGoods(ctx, ReceiveInput{
		POID:           po.ID,
		Lines:          []ReceiptLine{{LineID: lineID, Qty: dec("40")}},
		IdempotencyKey: "recv-2",
	})
	require.NoError(t, err)
	require.Equal(t, StatusFullyReceived, got.Status)

	require.True(t, repo.inventory.Items[1].CurrentStock.Equal(dec("100")))
	require.True(t, repo.ledger.Balance(payablesAcct).Equal(dec("200.00")))

	// one POSTED entry per delivery, both attributed to the PO
	entries, err := repo.ledger.GetEntryWithLines(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, journals.StatusPosted, entries.Status)
	require.Equal(t, journals.SourcePurchaseOrder, entries.Source.Kind)
	require.Equal(t, po.ID, entries.Source.ID)
	require.Len(t, repo.ledger.Entries, 2)
}

func TestReceiveGoodsOverReceipt(t *testing.T) {
	svc, repo, _ := newTestService(t)
	repo.inventory.AddItem(1, decimal.Zero, decimal.Zero)
	ctx := context.Background()
	po := createSentPO(t, svc)

	_, err := svc.ReceiveGoods(ctx, ReceiveInput{
		POID:           po.ID,
		Lines:          []ReceiptLine{{LineID: po.Lines[0].ID, Qty: dec("101")}},
		IdempotencyKey: "recv-over",
	})
	require.ErrorIs(t, err, ErrOverReceipt)

	// nothing moved
	got, err := svc.Get(ctx, po.ID)
	require.NoError(t, err)
	require.Equal(t, StatusSent, got.Status)
	require.True(t, got.Lines[0].ReceivedQty.IsZero())
	require.True(t, repo.ledger.Balance(payablesAcct).IsZero())
}

func TestReceiveGoodsGuards(t *testing.T) {
	svc, repo, _ := newTestService(t)
	repo.inventory.AddItem(1, decimal.Zero, decimal.Zero)
	ctx := context.Background()

	po, err := svc.Create(ctx, CreateInput{
		SupplierID: 10,
		Lines:      []LineInput{{ItemID: 1, OrderedQty: dec("5"), UnitCost: dec("1.00")}},
	})
	require.NoError(t, err)

	// a DRAFT order cannot receive
	_, err = svc.ReceiveGoods(ctx, ReceiveInput{
		POID:           po.ID,
		Lines:          []ReceiptLine{{LineID: po.Lines[0].ID, Qty: dec("1")}},
		IdempotencyKey: "recv-draft",
	})
	require.ErrorIs(t, err, ErrInvalidTransition)

	_, err = svc.ReceiveGoods(ctx, ReceiveInput{POID: po.ID, IdempotencyKey: "recv-empty"})
	require.ErrorIs(t, err, ErrEmptyReceipt)

	_, err = svc.ReceiveGoods(ctx, ReceiveInput{
		POID:           po.ID,
		Lines:          []ReceiptLine{{LineID: 9999, Qty: dec("1")}},
		IdempotencyKey: "recv-badline",
	})
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestReceiveGoodsIdempotency(t *testing.T) {
	svc, repo, idem := newTestService(t)
	repo.inventory.AddItem(1, decimal.Zero, decimal.Zero)
	ctx := context.Background()
	po := createSentPO(t, svc)

	in := ReceiveInput{
		POID:           po.ID,
		Lines:          []ReceiptLine{{LineID: po.Lines[0].ID, Qty: dec("10")}},
		IdempotencyKey: "recv-dup",
	}
	_, err := svc.ReceiveGoods(ctx, in)
	require.NoError(t, err)

	_, err = svc.ReceiveGoods(ctx, in)
	require.ErrorIs(t, err, shared.ErrIdempotencyConflict)

	// a failed receipt releases its key so the caller can retry
	failed := ReceiveInput{
		POID:           po.ID,
		Lines:          []ReceiptLine{{LineID: po.Lines[0].ID, Qty: dec("1000")}},
		IdempotencyKey: "recv-retry",
	}
	_, err = svc.ReceiveGoods(ctx, failed)
	require.ErrorIs(t, err, ErrOverReceipt)
	require.False(t, idem.keys["recv-retry"])

	failed.Lines[0].Qty = dec("5")
	_, err = svc.ReceiveGoods(ctx, failed)
	require.NoError(t, err)
}

func TestReceiveGoodsDerivesKey(t *testing.T) {
	svc, repo, _ := newTestService(t)
	repo.inventory.AddItem(1, decimal.Zero, decimal.Zero)
	ctx := context.Background()
	po := createSentPO(t, svc)

	in := ReceiveInput{
		POID:  po.ID,
		Lines: []ReceiptLine{{LineID: po.Lines[0].ID, Qty: dec("10")}},
	}
	_, err := svc.ReceiveGoods(ctx, in)
	require.NoError(t, err)

	// same content without an explicit key dedupes
	in.IdempotencyKey = ""
	_, err = svc.ReceiveGoods(ctx, in)
	require.ErrorIs(t, err, shared.ErrIdempotencyConflict)
}

func TestCloseEarlyFromPartial(t *testing.T) {
	svc, repo, _ := newTestService(t)
	repo.inventory.AddItem(1, decimal.Zero, decimal.Zero)
	ctx := context.Background()
	po := createSentPO(t, svc)

	_, err := svc.ReceiveGoods(ctx, ReceiveInput{
		POID:           po.ID,
		Lines:          []ReceiptLine{{LineID: po.Lines[0].ID, Qty: dec("30")}},
		IdempotencyKey: "recv-partial",
	})
	require.NoError(t, err)

	closed, err := svc.Close(ctx, po.ID)
	require.NoError(t, err)
	require.Equal(t, StatusClosed, closed.Status)

	// closed is terminal
	_, err = svc.Send(ctx, po.ID)
	require.ErrorIs(t, err, ErrInvalidTransition)
}
