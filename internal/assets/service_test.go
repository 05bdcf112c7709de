package assets

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightbooks-erp/brightbooks/internal/accounts"
	"github.com/brightbooks-erp/brightbooks/internal/entitystore"
	"github.com/brightbooks-erp/brightbooks/internal/ledger"
	"github.com/brightbooks-erp/brightbooks/internal/shared"
)

var actor = shared.Session{ID: "sess-1", UserID: "u1", UserName: "Alice"}

type fixture struct {
	service *Service
	store   *entitystore.MemoryStore

	assetAcctID string
	equityID    string
	expenseID   string
	accumDepID  string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := entitystore.NewMemoryStore()
	engine := ledger.NewEngine(store, ledger.NewIntentLog(store), nil, nil)
	resolver := accounts.NewResolver(store)
	service := NewService(store, engine, resolver, nil)

	f := &fixture{service: service, store: store}
	f.assetAcctID = seedAccount(t, store, "1500", "Machinery", ledger.AccountTypeAsset, "fixed_asset")
	f.equityID = seedAccount(t, store, "3000", "Owner Capital", ledger.AccountTypeEquity, "capital")
	f.expenseID = seedAccount(t, store, "5100", "Depreciation Expense", ledger.AccountTypeExpense, "depreciation_expense")
	f.accumDepID = seedAccount(t, store, "1590", "Accumulated Depreciation", ledger.AccountTypeAsset, "accumulated_depreciation")
	return f
}

func seedAccount(t *testing.T, store *entitystore.MemoryStore, code, name string, accountType ledger.AccountType, category string) string {
	t.Helper()
	rec, err := store.Create(context.Background(), ledger.EntityAccounts, entitystore.MustDoc(ledger.Account{
		CompanyID:       "co-1",
		AccountCode:     code,
		AccountName:     name,
		AccountType:     accountType,
		AccountCategory: category,
		IsActive:        true,
	}))
	require.NoError(t, err)
	return rec.ID
}

func balanceOf(t *testing.T, store *entitystore.MemoryStore, id string) float64 {
	t.Helper()
	rec, err := store.Get(context.Background(), ledger.EntityAccounts, id)
	require.NoError(t, err)
	var acc ledger.Account
	require.NoError(t, rec.Decode(&acc))
	return acc.Balance
}

func (f *fixture) createAsset(t *testing.T, cost, salvage float64, years int) *FixedAsset {
	t.Helper()
	asset, err := f.service.Create(context.Background(), CreateAssetInput{
		CompanyID:                 "co-1",
		AssetCode:                 "FA-001",
		AssetName:                 "Lathe",
		AcquisitionDate:           "2026-01-15",
		AcquisitionCost:           cost,
		SalvageValue:              salvage,
		UsefulLifeYears:           years,
		AssetAccountID:            f.assetAcctID,
		DepreciationExpenseAcctID: f.expenseID,
		AccumulatedDepAcctID:      f.accumDepID,
	})
	require.NoError(t, err)
	return asset
}

func TestAcquirePostsCostExactlyOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	asset := f.createAsset(t, 6200, 200, 5)

	entry, err := f.service.Acquire(ctx, asset.ID, actor)
	require.NoError(t, err)
	assert.Equal(t, ledger.SourceAssetAcquisition, entry.SourceType)
	assert.Equal(t, asset.ID, entry.SourceID)

	// The balance moves by the cost once, not twice.
	assert.Equal(t, float64(6200), balanceOf(t, f.store, f.assetAcctID))
	assert.Equal(t, float64(6200), balanceOf(t, f.store, f.equityID))

	got, err := f.service.Get(ctx, asset.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, got.Status)

	// A second acquisition is refused and changes nothing.
	_, err = f.service.Acquire(ctx, asset.ID, actor)
	assert.ErrorIs(t, err, shared.ErrInvalidState)
	assert.Equal(t, float64(6200), balanceOf(t, f.store, f.assetAcctID))
}

func TestRunDepreciationPostsMonthlyCharge(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	asset := f.createAsset(t, 6200, 200, 5)
	_, err := f.service.Acquire(ctx, asset.ID, actor)
	require.NoError(t, err)

	period := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	results, err := f.service.RunDepreciation(ctx, "co-1", period, actor)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.False(t, results[0].Skipped)
	assert.InDelta(t, 100, results[0].AmountPosted, 0.001)

	assert.InDelta(t, 100, balanceOf(t, f.store, f.expenseID), 0.001)
	// The contra account is credit-side in the entry; as a debit-normal
	// asset account its balance goes negative.
	assert.InDelta(t, -100, balanceOf(t, f.store, f.accumDepID), 0.001)

	got, err := f.service.Get(ctx, asset.ID)
	require.NoError(t, err)
	assert.InDelta(t, 100, got.AccumulatedDepreciation, 0.001)
	assert.InDelta(t, 6100, got.BookValue, 0.001)
}

func TestRunDepreciationIsIdempotentPerPeriod(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	asset := f.createAsset(t, 6200, 200, 5)
	_, err := f.service.Acquire(ctx, asset.ID, actor)
	require.NoError(t, err)

	period := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	_, err = f.service.RunDepreciation(ctx, "co-1", period, actor)
	require.NoError(t, err)

	results, err := f.service.RunDepreciation(ctx, "co-1", period, actor)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Skipped)
	assert.Zero(t, results[0].AmountPosted)

	// No double posting.
	assert.InDelta(t, 100, balanceOf(t, f.store, f.expenseID), 0.001)

	// The next period posts again.
	march := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	results, err = f.service.RunDepreciation(ctx, "co-1", march, actor)
	require.NoError(t, err)
	assert.False(t, results[0].Skipped)
	assert.InDelta(t, 200, balanceOf(t, f.store, f.expenseID), 0.001)
}

func TestRunDepreciationStopsAtDepreciableBase(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	// 1 year of life, base 120: 10/month. Pre-set accumulated near the cap.
	asset := f.createAsset(t, 220, 100, 1)
	_, err := f.service.Acquire(ctx, asset.ID, actor)
	require.NoError(t, err)
	_, err = f.store.Update(ctx, EntityFixedAssets, asset.ID, map[string]any{
		"accumulated_depreciation": 115.0,
	})
	require.NoError(t, err)

	period := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)
	results, err := f.service.RunDepreciation(ctx, "co-1", period, actor)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.InDelta(t, 5, results[0].AmountPosted, 0.001, "final charge is clamped to the remaining base")

	got, err := f.service.Get(ctx, asset.ID)
	require.NoError(t, err)
	assert.InDelta(t, 120, got.AccumulatedDepreciation, 0.001)
	assert.InDelta(t, 100, got.BookValue, 0.001)

	// Fully depreciated assets are skipped afterwards.
	results, err = f.service.RunDepreciation(ctx, "co-1", time.Date(2027, 2, 1, 0, 0, 0, 0, time.UTC), actor)
	require.NoError(t, err)
	assert.True(t, results[0].Skipped)
	assert.Equal(t, "fully depreciated", results[0].Reason)
}

func TestRunDepreciationSkipsUnconfiguredAssets(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	asset, err := f.service.Create(ctx, CreateAssetInput{
		CompanyID:       "co-1",
		AssetName:       "Unlinked Press",
		AcquisitionCost: 1000,
		UsefulLifeYears: 5,
		AssetAccountID:  f.assetAcctID,
	})
	require.NoError(t, err)
	_, err = f.service.Acquire(ctx, asset.ID, actor)
	require.NoError(t, err)

	results, err := f.service.RunDepreciation(ctx, "co-1", time.Now().UTC(), actor)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Skipped)
	assert.Equal(t, "not depreciable", results[0].Reason)
}

func TestCreateValidatesInput(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.service.Create(ctx, CreateAssetInput{CompanyID: "co-1", AssetName: "X", AcquisitionCost: 0})
	assert.ErrorIs(t, err, shared.ErrValidation)

	_, err = f.service.Create(ctx, CreateAssetInput{CompanyID: "co-1", AssetName: "X", AcquisitionCost: 100, SalvageValue: 200})
	assert.ErrorIs(t, err, shared.ErrValidation)

	_, err = f.service.Create(ctx, CreateAssetInput{CompanyID: "co-1", AssetName: "X", AcquisitionCost: 100, AcquisitionDate: "15/01/2026"})
	assert.ErrorIs(t, err, shared.ErrValidation)
}
