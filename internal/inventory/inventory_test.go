package inventory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightbooks-erp/brightbooks/internal/entitystore"
	"github.com/brightbooks-erp/brightbooks/internal/shared"
)

var actor = shared.Session{ID: "sess-1", UserID: "u1", UserName: "Alice"}

func seedProduct(t *testing.T, store *entitystore.MemoryStore, qty float64) string {
	t.Helper()
	rec, err := store.Create(context.Background(), EntityProducts, entitystore.MustDoc(Product{
		CompanyID:      "co-1",
		SKU:            "WIDGET-1",
		ProductName:    "Widget",
		CostPrice:      30,
		UnitPrice:      50,
		QuantityOnHand: qty,
		IsActive:       true,
	}))
	require.NoError(t, err)
	return rec.ID
}

func TestAdjustMovesQuantityAndWritesStockCard(t *testing.T) {
	ctx := context.Background()
	store := entitystore.NewMemoryStore()
	service := NewService(store, nil)
	current := time.Now()
	service.WithNow(func() time.Time {
		current = current.Add(time.Second)
		return current
	})
	productID := seedProduct(t, store, 10)

	after, err := service.Adjust(ctx, productID, 5, TxReceipt, "purchase_order", "po-1", actor)
	require.NoError(t, err)
	assert.Equal(t, float64(15), after)

	after, err = service.Adjust(ctx, productID, -3, TxAdjustment, "", "", actor)
	require.NoError(t, err)
	assert.Equal(t, float64(12), after)

	product, err := service.GetProduct(ctx, productID)
	require.NoError(t, err)
	assert.Equal(t, float64(12), product.QuantityOnHand)

	txs, err := service.Transactions(ctx, productID)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, TxReceipt, txs[0].TransactionType)
	assert.Equal(t, float64(5), txs[0].Quantity)
	assert.Equal(t, float64(15), txs[0].QuantityAfter)
	assert.Equal(t, "po-1", txs[0].ReferenceID)
	assert.Equal(t, float64(-3), txs[1].Quantity)
	assert.Equal(t, "u1", txs[1].CreatedBy)
}

func TestAdjustUnknownProduct(t *testing.T) {
	store := entitystore.NewMemoryStore()
	service := NewService(store, nil)

	_, err := service.Adjust(context.Background(), "missing", 1, TxReceipt, "", "", actor)
	assert.ErrorIs(t, err, entitystore.ErrNotFound)
}

func TestAdjustSurvivesStockCardWriteFailure(t *testing.T) {
	ctx := context.Background()
	store := entitystore.NewMemoryStore()
	service := NewService(store, nil)
	productID := seedProduct(t, store, 10)

	store.FailNext("create", EntityInventoryTransactions, "", assert.AnError)
	after, err := service.Adjust(ctx, productID, 5, TxReceipt, "", "", actor)
	require.NoError(t, err, "quantity change sticks even when the audit row fails")
	assert.Equal(t, float64(15), after)

	txs, err := service.Transactions(ctx, productID)
	require.NoError(t, err)
	assert.Empty(t, txs)
}
