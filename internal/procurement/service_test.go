package procurement

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

	inventoryID string
	payableID   string
	vendorID    string
	productAID  string
	productBID  string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := entitystore.NewMemoryStore()
	engine := ledger.NewEngine(store, ledger.NewIntentLog(store), nil, nil)
	resolver := accounts.NewResolver(store)
	stock := inventory.NewService(store, nil)
	f := &fixture{
		service: NewService(store, engine, resolver, stock, nil),
		store:   store,
	}
	f.inventoryID = seedAccount(t, store, "1200", "Inventory", ledger.AccountTypeAsset, "inventory")
	f.payableID = seedAccount(t, store, "2100", "Accounts Payable", ledger.AccountTypeLiability, "accounts_payable")
	f.vendorID = seedVendor(t, store)
	f.productAID = seedProduct(t, store, "WID-A", 0)
	f.productBID = seedProduct(t, store, "WID-B", 0)
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

func seedVendor(t *testing.T, store *entitystore.MemoryStore) string {
	t.Helper()
	rec, err := store.Create(context.Background(), EntityVendors, entitystore.MustDoc(Vendor{
		CompanyID:  "co-1",
		VendorName: "Acme Supply",
		IsActive:   true,
	}))
	require.NoError(t, err)
	return rec.ID
}

func seedProduct(t *testing.T, store *entitystore.MemoryStore, sku string, qty float64) string {
	t.Helper()
	rec, err := store.Create(context.Background(), inventory.EntityProducts, entitystore.MustDoc(inventory.Product{
		CompanyID:      "co-1",
		SKU:            sku,
		ProductName:    sku,
		CostPrice:      8,
		UnitPrice:      12,
		QuantityOnHand: qty,
		IsActive:       true,
	}))
	require.NoError(t, err)
	return rec.ID
}

func (f *fixture) seedOrder(t *testing.T, lines []POLine) string {
	t.Helper()
	var subtotal float64
	for _, l := range lines {
		subtotal += l.QuantityOrdered * l.UnitPrice
	}
	rec, err := f.store.Create(context.Background(), EntityPurchaseOrders, entitystore.MustDoc(PurchaseOrder{
		CompanyID: "co-1",
		PONumber:  "PO-001",
		VendorID:  f.vendorID,
		OrderDate: "2026-02-01",
		Status:    StatusSent,
		Lines:     lines,
		Subtotal:  subtotal,
		TaxAmount: subtotal * 0.1,
		Total:     subtotal * 1.1,
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

func TestNextStatus(t *testing.T) {
	lines := []POLine{
		{QuantityOrdered: 10},
		{QuantityOrdered: 5},
	}
	assert.Equal(t, StatusSent, NextStatus(StatusSent, lines))

	lines[0].QuantityReceived = 10
	lines[1].QuantityReceived = 2
	assert.Equal(t, StatusPartiallyReceived, NextStatus(StatusSent, lines))

	lines[1].QuantityReceived = 5
	assert.Equal(t, StatusFullyReceived, NextStatus(StatusPartiallyReceived, lines))

	// Over-receipt still counts as fully received.
	lines[0].QuantityReceived = 12
	assert.Equal(t, StatusFullyReceived, NextStatus(StatusPartiallyReceived, lines))

	assert.Equal(t, StatusAcknowledged, NextStatus(StatusAcknowledged, nil))
}

func TestReceiveFullFlow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	poID := f.seedOrder(t, []POLine{
		{ProductID: f.productAID, QuantityOrdered: 10, UnitPrice: 12},
		{ProductID: f.productBID, QuantityOrdered: 5, UnitPrice: 20},
	})

	// First receipt: [10, 2].
	result, err := f.service.Receive(ctx, poID, []ReceiptLine{
		{LineIndex: 0, Quantity: 10},
		{LineIndex: 1, Quantity: 2},
	}, actor)
	require.NoError(t, err)

	// Subtotal 10*12 + 2*20 = 160, tax excluded from the journal.
	assert.Equal(t, float64(160), result.Subtotal)
	assert.Equal(t, StatusPartiallyReceived, result.POStatus)
	assert.Equal(t, float64(160), balanceOf(t, f.store, f.inventoryID))
	assert.Equal(t, float64(160), balanceOf(t, f.store, f.payableID))
	assert.Equal(t, ledger.SourceInventoryReceipt, result.Entry.SourceType)

	po, err := f.service.GetOrder(ctx, poID)
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 2}, []float64{po.Lines[0].QuantityReceived, po.Lines[1].QuantityReceived})

	// Vendor outstanding and payable document.
	vendorRec, err := f.store.Get(ctx, EntityVendors, f.vendorID)
	require.NoError(t, err)
	var vendor Vendor
	require.NoError(t, vendorRec.Decode(&vendor))
	assert.Equal(t, float64(160), vendor.OutstandingBalance)

	payables, err := f.store.Filter(ctx, EntityPayables, entitystore.Query{"po_id": poID})
	require.NoError(t, err)
	require.Len(t, payables, 1)
	var payable Payable
	require.NoError(t, payables[0].Decode(&payable))
	assert.Equal(t, float64(160), payable.Amount)
	assert.Equal(t, PayableOpen, payable.Status)

	// Stock moved and left an audit trail.
	txs, err := f.store.Filter(ctx, inventory.EntityInventoryTransactions, entitystore.Query{"reference_id": poID})
	require.NoError(t, err)
	assert.Len(t, txs, 2)

	// Second receipt completes the order: [0, 3].
	result, err = f.service.Receive(ctx, poID, []ReceiptLine{
		{LineIndex: 1, Quantity: 3},
	}, actor)
	require.NoError(t, err)
	assert.Equal(t, StatusFullyReceived, result.POStatus)
	assert.Equal(t, float64(60), result.Subtotal)

	// A third receipt against a completed order is refused.
	_, err = f.service.Receive(ctx, poID, []ReceiptLine{{LineIndex: 0, Quantity: 1}}, actor)
	assert.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestReceiveValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	poID := f.seedOrder(t, []POLine{{ProductID: f.productAID, QuantityOrdered: 10, UnitPrice: 12}})

	_, err := f.service.Receive(ctx, poID, []ReceiptLine{{LineIndex: 3, Quantity: 1}}, actor)
	assert.ErrorIs(t, err, shared.ErrValidation)

	_, err = f.service.Receive(ctx, poID, []ReceiptLine{{LineIndex: 0, Quantity: -1}}, actor)
	assert.ErrorIs(t, err, shared.ErrValidation)

	_, err = f.service.Receive(ctx, poID, []ReceiptLine{{LineIndex: 0, Quantity: 0}}, actor)
	assert.ErrorIs(t, err, shared.ErrValidation)

	// A repeated line index would double-count quantity and subtotal.
	_, err = f.service.Receive(ctx, poID, []ReceiptLine{
		{LineIndex: 0, Quantity: 2},
		{LineIndex: 0, Quantity: 3},
	}, actor)
	assert.ErrorIs(t, err, shared.ErrValidation)

	_, err = f.service.Receive(ctx, "missing", []ReceiptLine{{LineIndex: 0, Quantity: 1}}, actor)
	assert.ErrorIs(t, err, entitystore.ErrNotFound)

	// Nothing above may have moved the order.
	po, err := f.service.GetOrder(ctx, poID)
	require.NoError(t, err)
	assert.Equal(t, 0.0, po.Lines[0].QuantityReceived)
	assert.Equal(t, StatusSent, po.Status)
}

func TestReceiveWithoutResolvableAccounts(t *testing.T) {
	ctx := context.Background()
	store := entitystore.NewMemoryStore()
	engine := ledger.NewEngine(store, ledger.NewIntentLog(store), nil, nil)
	resolver := accounts.NewResolver(store)
	service := NewService(store, engine, resolver, inventory.NewService(store, nil), nil)

	rec, err := store.Create(ctx, EntityPurchaseOrders, entitystore.MustDoc(PurchaseOrder{
		CompanyID: "co-1",
		PONumber:  "PO-002",
		Status:    StatusSent,
		Lines:     []POLine{{QuantityOrdered: 1, UnitPrice: 10}},
	}))
	require.NoError(t, err)

	_, err = service.Receive(ctx, rec.ID, []ReceiptLine{{LineIndex: 0, Quantity: 1}}, actor)
	assert.ErrorIs(t, err, accounts.ErrRoleUnresolved)
}
