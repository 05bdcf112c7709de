package entitystore

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T) *RedisStore {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client)
}

func TestRedisStoreCRUD(t *testing.T) {
	ctx := context.Background()
	store := newRedisStore(t)

	rec, err := store.Create(ctx, "record_locks", map[string]any{"record_id": "acc-1", "is_active": true})
	require.NoError(t, err)
	require.NotEmpty(t, rec.ID)

	got, err := store.Get(ctx, "record_locks", rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "acc-1", got.Data["record_id"])

	updated, err := store.Update(ctx, "record_locks", rec.ID, map[string]any{"is_active": false})
	require.NoError(t, err)
	assert.Equal(t, false, updated.Data["is_active"])
	assert.Equal(t, "acc-1", updated.Data["record_id"])

	require.NoError(t, store.Delete(ctx, "record_locks", rec.ID))
	_, err = store.Get(ctx, "record_locks", rec.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, store.Delete(ctx, "record_locks", rec.ID), ErrNotFound)
}

func TestRedisStoreCreateDuplicate(t *testing.T) {
	ctx := context.Background()
	store := newRedisStore(t)

	_, err := store.Create(ctx, "depreciation_runs", map[string]any{"id": "asset-1:2026-09"})
	require.NoError(t, err)
	_, err = store.Create(ctx, "depreciation_runs", map[string]any{"id": "asset-1:2026-09"})
	assert.ErrorIs(t, err, ErrDuplicateID)
}

func TestRedisStoreFilter(t *testing.T) {
	ctx := context.Background()
	store := newRedisStore(t)

	for _, doc := range []map[string]any{
		{"entity_name": "accounts", "record_id": "a", "is_active": true},
		{"entity_name": "accounts", "record_id": "a", "is_active": false},
		{"entity_name": "journal_entries", "record_id": "j", "is_active": true},
	} {
		_, err := store.Create(ctx, "record_locks", doc)
		require.NoError(t, err)
	}

	records, err := store.Filter(ctx, "record_locks", Query{"entity_name": "accounts", "record_id": "a"})
	require.NoError(t, err)
	assert.Len(t, records, 2)

	records, err = store.Filter(ctx, "record_locks", Query{"is_active": true})
	require.NoError(t, err)
	assert.Len(t, records, 2)

	records, err = store.Filter(ctx, "record_locks", Query{"entity_name": "accounts"}, WithLimit(1))
	require.NoError(t, err)
	assert.Len(t, records, 1)
}
