package accounts

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	accshared "github.com/tuftline-erp/tuftline-erp/internal/accounting/shared"
)

type memoryRepo struct {
	accounts map[int64]Account
	byCode   map[string]int64
	lines    map[int64]int64
	nextID   int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		accounts: make(map[int64]Account),
		byCode:   make(map[string]int64),
		lines:    make(map[int64]int64),
	}
}

func (r *memoryRepo) Create(ctx context.Context, a Account) (Account, error) {
	if _, taken := r.byCode[a.Code]; taken {
		return Account{}, accshared.ErrDuplicateCode
	}
	r.nextID++
	a.ID = r.nextID
	a.Active = true
	r.accounts[a.ID] = a
	r.byCode[a.Code] = a.ID
	return a, nil
}

func (r *memoryRepo) Update(ctx context.Context, a Account) (Account, error) {
	if _, ok := r.accounts[a.ID]; !ok {
		return Account{}, accshared.ErrAccountNotFound
	}
	r.accounts[a.ID] = a
	return a, nil
}

func (r *memoryRepo) Get(ctx context.Context, id int64) (Account, error) {
	a, ok := r.accounts[id]
	if !ok {
		return Account{}, accshared.ErrAccountNotFound
	}
	return a, nil
}

func (r *memoryRepo) GetByCode(ctx context.Context, code string) (Account, error) {
	id, ok := r.byCode[code]
	if !ok {
		return Account{}, accshared.ErrAccountNotFound
	}
	return r.accounts[id], nil
}

func (r *memoryRepo) List(ctx context.Context) ([]Account, error) {
	out := make([]Account, 0, len(r.accounts))
	for _, a := range r.accounts {
		out = append(out, a)
	}
	return out, nil
}

func (r *memoryRepo) CountChildren(ctx context.Context, id int64) (int64, error) {
	var n int64
	for _, a := range r.accounts {
		if a.ParentID != nil && *a.ParentID == id {
			n++
		}
	}
	return n, nil
}

func (r *memoryRepo) CountJournalLines(ctx context.Context, id int64) (int64, error) {
	return r.lines[id], nil
}

func (r *memoryRepo) Delete(ctx context.Context, id int64) error {
	a, ok := r.accounts[id]
	if !ok {
		return accshared.ErrAccountNotFound
	}
	delete(r.accounts, id)
	delete(r.byCode, a.Code)
	return nil
}

func TestCreateRejectsDuplicateCode(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateInput{Code: "1000", Name: "Cash", Type: TypeAsset})
	require.NoError(t, err)

	_, err = svc.Create(ctx, CreateInput{Code: "1000", Name: "Cash again", Type: TypeAsset})
	require.ErrorIs(t, err, accshared.ErrDuplicateCode)
}

func TestCreateParentTypeMustMatch(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil)
	ctx := context.Background()

	parent, err := svc.Create(ctx, CreateInput{Code: "1000", Name: "Current Assets", Type: TypeAsset})
	require.NoError(t, err)

	_, err = svc.Create(ctx, CreateInput{Code: "2000", Name: "Payables", Type: TypeLiability, ParentID: &parent.ID})
	require.Error(t, err)

	_, err = svc.Create(ctx, CreateInput{Code: "1100", Name: "Cash", Type: TypeAsset, ParentID: &parent.ID})
	require.NoError(t, err)
}

func TestDeleteGuards(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	parent, err := svc.Create(ctx, CreateInput{Code: "1000", Name: "Assets", Type: TypeAsset})
	require.NoError(t, err)
	child, err := svc.Create(ctx, CreateInput{Code: "1100", Name: "Cash", Type: TypeAsset, ParentID: &parent.ID})
	require.NoError(t, err)

	require.ErrorIs(t, svc.Delete(ctx, parent.ID), accshared.ErrHasChildren)

	repo.lines[child.ID] = 3
	require.ErrorIs(t, svc.Delete(ctx, child.ID), accshared.ErrHasJournalLines)

	repo.lines[child.ID] = 0
	require.NoError(t, svc.Delete(ctx, child.ID))
	require.NoError(t, svc.Delete(ctx, parent.ID))

	require.ErrorIs(t, svc.Delete(ctx, parent.ID), accshared.ErrAccountNotFound)
}

func TestSignedEffect(t *testing.T) {
	debit := decimal.NewFromInt(100)
	credit := decimal.NewFromInt(40)

	cases := []struct {
		typ  AccountType
		want string
	}{
		{TypeAsset, "60"},
		{TypeExpense, "60"},
		{TypeCOGS, "60"},
		{TypeLiability, "-60"},
		{TypeEquity, "-60"},
		{TypeRevenue, "-60"},
	}
	for _, tc := range cases {
		a := Account{Type: tc.typ}
		require.True(t, a.SignedEffect(debit, credit).Equal(decimal.RequireFromString(tc.want)), string(tc.typ))
	}
}

func TestUpdateCannotParentItself(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil)
	ctx := context.Background()

	a, err := svc.Create(ctx, CreateInput{Code: "1000", Name: "Cash", Type: TypeAsset})
	require.NoError(t, err)

	_, err = svc.Update(ctx, a.ID, UpdateInput{Name: "Cash", ParentID: &a.ID, Active: true})
	require.Error(t, err)
}
