package entitystore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreCRUD(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	rec, err := store.Create(ctx, "accounts", map[string]any{"account_code": "1000", "balance": 0.0})
	require.NoError(t, err)
	require.NotEmpty(t, rec.ID)
	assert.Equal(t, rec.ID, rec.Data["id"])

	got, err := store.Get(ctx, "accounts", rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "1000", got.Data["account_code"])

	updated, err := store.Update(ctx, "accounts", rec.ID, map[string]any{"balance": 150.25})
	require.NoError(t, err)
	assert.Equal(t, 150.25, updated.Data["balance"])
	assert.Equal(t, "1000", updated.Data["account_code"], "patch must not clobber untouched fields")

	require.NoError(t, store.Delete(ctx, "accounts", rec.ID))
	_, err = store.Get(ctx, "accounts", rec.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreExplicitIDConflict(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, err := store.Create(ctx, "counters", map[string]any{"id": "co-1", "value": 1})
	require.NoError(t, err)
	_, err = store.Create(ctx, "counters", map[string]any{"id": "co-1", "value": 2})
	assert.ErrorIs(t, err, ErrDuplicateID)
}

func TestMemoryStoreFilter(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	for _, doc := range []map[string]any{
		{"company_id": "co-1", "account_type": "asset", "balance": 50.0},
		{"company_id": "co-1", "account_type": "liability", "balance": 20.0},
		{"company_id": "co-2", "account_type": "asset", "balance": 70.0},
	} {
		_, err := store.Create(ctx, "accounts", doc)
		require.NoError(t, err)
	}

	records, err := store.Filter(ctx, "accounts", Query{"company_id": "co-1"})
	require.NoError(t, err)
	assert.Len(t, records, 2)

	records, err = store.Filter(ctx, "accounts", Query{"company_id": "co-1", "account_type": "asset"})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 50.0, records[0].Data["balance"])

	records, err = store.Filter(ctx, "accounts", Query{}, WithSort("balance", true), WithLimit(2))
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, 70.0, records[0].Data["balance"])
	assert.Equal(t, 50.0, records[1].Data["balance"])
}

func TestMemoryStoreFailNext(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	rec, err := store.Create(ctx, "accounts", map[string]any{"balance": 0.0})
	require.NoError(t, err)

	boom := errors.New("store down")
	store.FailNext("update", "accounts", rec.ID, boom)

	_, err = store.Update(ctx, "accounts", rec.ID, map[string]any{"balance": 10.0})
	assert.ErrorIs(t, err, boom)

	// The failure is one-shot.
	_, err = store.Update(ctx, "accounts", rec.ID, map[string]any{"balance": 10.0})
	assert.NoError(t, err)
}

func TestRecordDecode(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	rec, err := store.Create(ctx, "accounts", map[string]any{"account_code": "1000", "balance": 12.5, "is_active": true})
	require.NoError(t, err)

	var out struct {
		ID       string  `json:"id"`
		Code     string  `json:"account_code"`
		Balance  float64 `json:"balance"`
		IsActive bool    `json:"is_active"`
	}
	require.NoError(t, rec.Decode(&out))
	assert.Equal(t, rec.ID, out.ID)
	assert.Equal(t, "1000", out.Code)
	assert.Equal(t, 12.5, out.Balance)
	assert.True(t, out.IsActive)
}
