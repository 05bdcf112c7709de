package entitystore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakyStore struct {
	*MemoryStore
	failures int
	calls    int
}

func (s *flakyStore) Get(ctx context.Context, entity, id string) (Record, error) {
	s.calls++
	if s.calls <= s.failures {
		return Record{}, errors.New("transient")
	}
	return s.MemoryStore.Get(ctx, entity, id)
}

func TestRetryingStoreRecoversFromTransientFailure(t *testing.T) {
	ctx := context.Background()
	inner := &flakyStore{MemoryStore: NewMemoryStore(), failures: 2}
	rec, err := inner.Create(ctx, "accounts", map[string]any{"balance": 1.0})
	require.NoError(t, err)

	store := NewRetryingStore(inner, 3, time.Millisecond)
	got, err := store.Get(ctx, "accounts", rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, 3, inner.calls)
}

func TestRetryingStoreGivesUpAfterMaxRetries(t *testing.T) {
	ctx := context.Background()
	inner := &flakyStore{MemoryStore: NewMemoryStore(), failures: 10}
	store := NewRetryingStore(inner, 2, time.Millisecond)

	_, err := store.Get(ctx, "accounts", "missing")
	require.Error(t, err)
	assert.Equal(t, 3, inner.calls, "initial attempt plus two retries")
}

func TestRetryingStoreDoesNotRetryNotFound(t *testing.T) {
	ctx := context.Background()
	inner := NewMemoryStore()
	store := NewRetryingStore(inner, 5, time.Millisecond)

	start := time.Now()
	_, err := store.Get(ctx, "accounts", "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Less(t, time.Since(start), 50*time.Millisecond, "not-found must fail immediately")
}
