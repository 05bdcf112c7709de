package sales

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightbooks-erp/brightbooks/internal/accounts"
	"github.com/brightbooks-erp/brightbooks/internal/entitystore"
	"github.com/brightbooks-erp/brightbooks/internal/inventory"
	"github.com/brightbooks-erp/brightbooks/internal/ledger"
	"github.com/brightbooks-erp/brightbooks/internal/shared"
)

var actor = shared.Session{ID: "sess-1", UserID: "u1", UserName: "Alice"}

type fixture struct {
	service *Service
	store   *entitystore.MemoryStore

	revenueID    string
	receivableID string
	inventoryID  string
	cogsID       string
	productID    string
}

func newFixture(t *testing.T, withCOGSAccounts bool) *fixture {
	t.Helper()
	store := entitystore.NewMemoryStore()
	engine := ledger.NewEngine(store, ledger.NewIntentLog(store), nil, nil)
	resolver := accounts.NewResolver(store)
	f := &fixture{
		service: NewService(store, engine, resolver, inventory.NewService(store, nil), nil),
		store:   store,
	}
	f.revenueID = seedAccount(t, store, "4000", "Sales Revenue", ledger.AccountTypeRevenue, "sales")
	f.receivableID = seedAccount(t, store, "1100", "Accounts Receivable", ledger.AccountTypeAsset, "accounts_receivable")
	if withCOGSAccounts {
		f.inventoryID = seedAccount(t, store, "1200", "Inventory", ledger.AccountTypeAsset, "inventory")
		f.cogsID = seedAccount(t, store, "5000", "Cost of Goods Sold", ledger.AccountTypeCOGS, "cost_of_goods_sold")
	}
	f.productID = seedProduct(t, store)
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

func seedProduct(t *testing.T, store *entitystore.MemoryStore) string {
	t.Helper()
	rec, err := store.Create(context.Background(), inventory.EntityProducts, entitystore.MustDoc(inventory.Product{
		CompanyID:      "co-1",
		SKU:            "WID-1",
		ProductName:    "Widget",
		CostPrice:      30,
		UnitPrice:      50,
		QuantityOnHand: 7,
		IsActive:       true,
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

func TestReturnPostsBothEntries(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)

	// 2 units at 50, product cost 30.
	result, err := f.service.Return(ctx, "co-1", "INV-042", []ReturnLine{
		{ProductID: f.productID, Quantity: 2, UnitPrice: 50},
	}, actor)
	require.NoError(t, err)

	assert.Equal(t, float64(100), result.Subtotal)
	assert.Equal(t, float64(60), result.COGSTotal)
	require.NotNil(t, result.COGSEntry)

	// Entry a: DR revenue 100 / CR AR 100. Revenue is credit-normal so the
	// debit reduces it; AR is debit-normal so the credit reduces it.
	assert.Equal(t, float64(-100), balanceOf(t, f.store, f.revenueID))
	assert.Equal(t, float64(-100), balanceOf(t, f.store, f.receivableID))

	// Entry b: DR inventory 60 / CR COGS 60.
	assert.Equal(t, float64(60), balanceOf(t, f.store, f.inventoryID))
	assert.Equal(t, float64(-60), balanceOf(t, f.store, f.cogsID))

	// Restock.
	productRec, err := f.store.Get(ctx, inventory.EntityProducts, f.productID)
	require.NoError(t, err)
	var product inventory.Product
	require.NoError(t, productRec.Decode(&product))
	assert.Equal(t, float64(9), product.QuantityOnHand)

	txs, err := f.store.Filter(ctx, inventory.EntityInventoryTransactions,
		entitystore.Query{"reference_id": result.ReturnID})
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, inventory.TxSalesReturn, txs[0].Data["transaction_type"])
}

func TestReturnSkipsCOGSEntryWhenAccountsMissing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)

	result, err := f.service.Return(ctx, "co-1", "", []ReturnLine{
		{ProductID: f.productID, Quantity: 2, UnitPrice: 50},
	}, actor)
	require.NoError(t, err)

	assert.Nil(t, result.COGSEntry)
	assert.Equal(t, float64(60), result.COGSTotal)
	assert.Equal(t, float64(-100), balanceOf(t, f.store, f.revenueID))

	// Goods still return to stock without the restock entry.
	productRec, err := f.store.Get(ctx, inventory.EntityProducts, f.productID)
	require.NoError(t, err)
	var product inventory.Product
	require.NoError(t, productRec.Decode(&product))
	assert.Equal(t, float64(9), product.QuantityOnHand)
}

func TestReturnWithoutProductsSkipsRestock(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)

	result, err := f.service.Return(ctx, "co-1", "", []ReturnLine{
		{Quantity: 1, UnitPrice: 80},
	}, actor)
	require.NoError(t, err)
	assert.Nil(t, result.COGSEntry)
	assert.Zero(t, result.COGSTotal)
	assert.Equal(t, float64(0), balanceOf(t, f.store, f.inventoryID))
}

func TestReturnValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)

	_, err := f.service.Return(ctx, "", "", []ReturnLine{{Quantity: 1, UnitPrice: 1}}, actor)
	assert.ErrorIs(t, err, shared.ErrValidation)

	_, err = f.service.Return(ctx, "co-1", "", nil, actor)
	assert.ErrorIs(t, err, shared.ErrValidation)

	_, err = f.service.Return(ctx, "co-1", "", []ReturnLine{{Quantity: 0, UnitPrice: 1}}, actor)
	assert.ErrorIs(t, err, shared.ErrValidation)

	_, err = f.service.Return(ctx, "co-1", "", []ReturnLine{{Quantity: 1, UnitPrice: 0}}, actor)
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestReturnRequiresRevenueAndReceivable(t *testing.T) {
	ctx := context.Background()
	store := entitystore.NewMemoryStore()
	engine := ledger.NewEngine(store, ledger.NewIntentLog(store), nil, nil)
	service := NewService(store, engine, accounts.NewResolver(store), inventory.NewService(store, nil), nil)

	_, err := service.Return(ctx, "co-1", "", []ReturnLine{{Quantity: 1, UnitPrice: 10}}, actor)
	assert.ErrorIs(t, err, accounts.ErrRoleUnresolved)
}
