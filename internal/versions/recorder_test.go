package versions

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightbooks-erp/brightbooks/internal/entitystore"
	"github.com/brightbooks-erp/brightbooks/internal/shared"
)

func TestRecordAssignsMonotonicVersions(t *testing.T) {
	ctx := context.Background()
	store := entitystore.NewMemoryStore()
	recorder := NewRecorder(store, nil)
	actor := shared.Session{ID: "sess-1", UserID: "u1", UserName: "Alice"}

	type doc struct {
		Name    string  `json:"name"`
		Balance float64 `json:"balance"`
	}

	require.NoError(t, recorder.Record(ctx, "accounts", "acc-1", doc{Name: "Cash", Balance: 100}, actor))
	require.NoError(t, recorder.Record(ctx, "accounts", "acc-1", doc{Name: "Cash", Balance: 250}, actor))
	// A different record gets its own counter.
	require.NoError(t, recorder.Record(ctx, "accounts", "acc-2", doc{Name: "AR", Balance: 0}, actor))

	history, err := recorder.History(ctx, "accounts", "acc-1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, 1, history[0].VersionNumber)
	assert.Equal(t, 2, history[1].VersionNumber)
	assert.Equal(t, float64(100), history[0].Snapshot["balance"])
	assert.Equal(t, float64(250), history[1].Snapshot["balance"])
	assert.Equal(t, "Alice", history[1].ChangedByName)
	assert.Equal(t, "sess-1", history[1].SessionID)

	other, err := recorder.History(ctx, "accounts", "acc-2")
	require.NoError(t, err)
	require.Len(t, other, 1)
	assert.Equal(t, 1, other[0].VersionNumber)
}

func TestRecordPropagatesStoreError(t *testing.T) {
	ctx := context.Background()
	store := entitystore.NewMemoryStore()
	recorder := NewRecorder(store, nil)

	store.FailNext("create", EntityRecordVersions, "", assert.AnError)
	err := recorder.Record(ctx, "accounts", "acc-1", map[string]any{"x": 1}, shared.Session{ID: "s"})
	assert.ErrorIs(t, err, assert.AnError)
}
