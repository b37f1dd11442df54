package journals_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/tuftline-erp/tuftline-erp/internal/accounting/accounts"
	"github.com/tuftline-erp/tuftline-erp/internal/accounting/journals"
	accshared "github.com/tuftline-erp/tuftline-erp/internal/accounting/shared"
	"github.com/tuftline-erp/tuftline-erp/internal/shared"
	"github.com/tuftline-erp/tuftline-erp/internal/testing/memstore"
)

func newEngine() *journals.Engine {
	clock := func() time.Time { return time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC) }
	return journals.NewEngine(shared.NewReferenceGenerator(clock))
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func balancedInput(cashID, liabilityID int64, amount string) journals.CreateEntryInput {
	return journals.CreateEntryInput{
		Type:        journals.TypeGeneral,
		Description: "deposit received",
		Lines: []journals.LineInput{
			{AccountID: cashID, Side: journals.SideDebit, Amount: dec(amount)},
			{AccountID: liabilityID, Side: journals.SideCredit, Amount: dec(amount)},
		},
	}
}

func TestCreateEntryDraft(t *testing.T) {
	store := memstore.NewLedger()
	store.AddAccount(1, accounts.TypeAsset)
	store.AddAccount(2, accounts.TypeLiability)
	engine := newEngine()

	entry, err := engine.CreateEntry(context.Background(), store, balancedInput(1, 2, "150.00"))
	require.NoError(t, err)
	require.Equal(t, journals.StatusDraft, entry.Status)
	require.NotEmpty(t, entry.Reference)
	require.Len(t, entry.Lines, 2)

	// creation alone must not move balances
	require.True(t, store.Balance(1).IsZero())
	require.True(t, store.Balance(2).IsZero())
}

func TestCreateEntryValidation(t *testing.T) {
	store := memstore.NewLedger()
	store.AddAccount(1, accounts.TypeAsset)
	store.AddAccount(2, accounts.TypeLiability)
	engine := newEngine()
	ctx := context.Background()

	_, err := engine.CreateEntry(ctx, store, journals.CreateEntryInput{
		Type: journals.TypeGeneral,
		Lines: []journals.LineInput{
			{AccountID: 1, Side: journals.SideDebit, Amount: dec("10")},
		},
	})
	require.ErrorIs(t, err, accshared.ErrTooFewLines)

	_, err = engine.CreateEntry(ctx, store, journals.CreateEntryInput{
		Type: journals.TypeGeneral,
		Lines: []journals.LineInput{
			{AccountID: 1, Side: journals.SideDebit, Amount: dec("10")},
			{AccountID: 2, Side: journals.SideCredit, Amount: dec("-10")},
		},
	})
	require.ErrorIs(t, err, accshared.ErrNonPositiveAmount)

	_, err = engine.CreateEntry(ctx, store, journals.CreateEntryInput{
		Type: journals.TypeGeneral,
		Lines: []journals.LineInput{
			{AccountID: 1, Side: journals.SideDebit, Amount: dec("100.00")},
			{AccountID: 2, Side: journals.SideCredit, Amount: dec("99.50")},
		},
	})
	require.ErrorIs(t, err, accshared.ErrUnbalanced)
}

func TestCreateEntryRoundingTolerance(t *testing.T) {
	store := memstore.NewLedger()
	store.AddAccount(1, accounts.TypeAsset)
	store.AddAccount(2, accounts.TypeLiability)
	engine := newEngine()

	// a one-cent drift is accepted, anything beyond is not
	_, err := engine.CreateEntry(context.Background(), store, journals.CreateEntryInput{
		Type: journals.TypeGeneral,
		Lines: []journals.LineInput{
			{AccountID: 1, Side: journals.SideDebit, Amount: dec("100.01")},
			{AccountID: 2, Side: journals.SideCredit, Amount: dec("100.00")},
		},
	})
	require.NoError(t, err)

	_, err = engine.CreateEntry(context.Background(), store, journals.CreateEntryInput{
		Type: journals.TypeGeneral,
		Lines: []journals.LineInput{
			{AccountID: 1, Side: journals.SideDebit, Amount: dec("100.02")},
			{AccountID: 2, Side: journals.SideCredit, Amount: dec("100.00")},
		},
	})
	require.ErrorIs(t, err, accshared.ErrUnbalanced)
}

func TestPostAppliesSignConventions(t *testing.T) {
	store := memstore.NewLedger()
	store.AddAccount(1, accounts.TypeAsset)
	store.AddAccount(2, accounts.TypeLiability)
	engine := newEngine()
	ctx := context.Background()

	entry, err := engine.CreateEntry(ctx, store, balancedInput(1, 2, "150.00"))
	require.NoError(t, err)

	posted, err := engine.Post(ctx, store, entry.ID)
	require.NoError(t, err)
	require.Equal(t, journals.StatusPosted, posted.Status)

	// debit increases the asset, credit increases the liability
	require.True(t, store.Balance(1).Equal(dec("150.00")))
	require.True(t, store.Balance(2).Equal(dec("150.00")))
}

func TestPostGuards(t *testing.T) {
	store := memstore.NewLedger()
	store.AddAccount(1, accounts.TypeAsset)
	store.AddAccount(2, accounts.TypeLiability)
	engine := newEngine()
	ctx := context.Background()

	entry, err := engine.CreateEntry(ctx, store, balancedInput(1, 2, "10.00"))
	require.NoError(t, err)

	_, err = engine.Post(ctx, store, entry.ID)
	require.NoError(t, err)

	_, err = engine.Post(ctx, store, entry.ID)
	require.ErrorIs(t, err, accshared.ErrAlreadyPosted)

	_, err = engine.Post(ctx, store, 999)
	require.ErrorIs(t, err, accshared.ErrJournalNotFound)
}

func TestPostInactiveAccount(t *testing.T) {
	store := memstore.NewLedger()
	store.AddAccount(1, accounts.TypeAsset)
	closed := store.AddAccount(2, accounts.TypeLiability)
	closed.Active = false
	engine := newEngine()
	ctx := context.Background()

	entry, err := engine.CreateEntry(ctx, store, balancedInput(1, 2, "10.00"))
	require.NoError(t, err)

	_, err = engine.Post(ctx, store, entry.ID)
	require.ErrorIs(t, err, accshared.ErrAccountInactive)
}

func TestVoidRestoresBalances(t *testing.T) {
	store := memstore.NewLedger()
	store.AddAccount(1, accounts.TypeAsset)
	store.AddAccount(2, accounts.TypeLiability)
	engine := newEngine()
	ctx := context.Background()

	entry, err := engine.CreateEntry(ctx, store, balancedInput(1, 2, "75.25"))
	require.NoError(t, err)
	_, err = engine.Post(ctx, store, entry.ID)
	require.NoError(t, err)

	voided, err := engine.Void(ctx, store, entry.ID)
	require.NoError(t, err)
	require.Equal(t, journals.StatusVoid, voided.Status)

	require.True(t, store.Balance(1).IsZero())
	require.True(t, store.Balance(2).IsZero())

	// the entry survives for audit; it is not deleted
	kept, err := store.GetEntryWithLines(ctx, entry.ID)
	require.NoError(t, err)
	require.Equal(t, journals.StatusVoid, kept.Status)
}

func TestVoidGuards(t *testing.T) {
	store := memstore.NewLedger()
	store.AddAccount(1, accounts.TypeAsset)
	store.AddAccount(2, accounts.TypeLiability)
	engine := newEngine()
	ctx := context.Background()

	draft, err := engine.CreateEntry(ctx, store, balancedInput(1, 2, "10.00"))
	require.NoError(t, err)

	_, err = engine.Void(ctx, store, draft.ID)
	require.ErrorIs(t, err, accshared.ErrInvalidVoidTarget)

	_, err = engine.Post(ctx, store, draft.ID)
	require.NoError(t, err)
	_, err = engine.Void(ctx, store, draft.ID)
	require.NoError(t, err)

	_, err = engine.Void(ctx, store, draft.ID)
	require.ErrorIs(t, err, accshared.ErrInvalidVoidTarget)

	// a voided entry cannot be re-posted either
	_, err = engine.Post(ctx, store, draft.ID)
	require.ErrorIs(t, err, accshared.ErrAlreadyVoid)
}

func TestVoidInactiveAccountAllowed(t *testing.T) {
	store := memstore.NewLedger()
	store.AddAccount(1, accounts.TypeAsset)
	liability := store.AddAccount(2, accounts.TypeLiability)
	engine := newEngine()
	ctx := context.Background()

	entry, err := engine.CreateEntry(ctx, store, balancedInput(1, 2, "30.00"))
	require.NoError(t, err)
	_, err = engine.Post(ctx, store, entry.ID)
	require.NoError(t, err)

	// deactivating an account must not trap its posted entries
	liability.Active = false
	_, err = engine.Void(ctx, store, entry.ID)
	require.NoError(t, err)
	require.True(t, store.Balance(2).IsZero())
}
