package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightbooks-erp/brightbooks/internal/entitystore"
)

func TestRecoverPendingCompletesStrandedPosting(t *testing.T) {
	ctx := context.Background()
	engine, store := newTestEngine(t)
	assetID := seedAccount(t, store, "co-1", "1000", "Cash", AccountTypeAsset, "cash", 0)
	equityID := seedAccount(t, store, "co-1", "3000", "Capital", AccountTypeEquity, "capital", 0)

	store.FailNext("update", EntityAccounts, equityID, errors.New("store down"))
	entry, err := engine.Post(ctx, Draft{
		CompanyID: "co-1",
		LineItems: []LineItem{{AccountID: assetID, Debit: 75}, {AccountID: equityID, Credit: 75}},
	})
	var partial *PartialPostingError
	require.ErrorAs(t, err, &partial)

	results, err := engine.RecoverPending(ctx, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, entry.ID, results[0].EntryID)
	assert.Equal(t, 1, results[0].Applied)
	assert.Equal(t, 0, results[0].Failed)

	assert.Equal(t, 75.0, accountBalance(t, store, assetID), "already-applied delta must not be doubled")
	assert.Equal(t, 75.0, accountBalance(t, store, equityID))

	intents, err := store.Filter(ctx, EntityPostingIntents, entitystore.Query{"status": IntentStatusPending})
	require.NoError(t, err)
	assert.Empty(t, intents)
}

func TestRecoverPendingSkipsRecentIntents(t *testing.T) {
	ctx := context.Background()
	engine, store := newTestEngine(t)
	assetID := seedAccount(t, store, "co-1", "1000", "Cash", AccountTypeAsset, "cash", 0)
	equityID := seedAccount(t, store, "co-1", "3000", "Capital", AccountTypeEquity, "capital", 0)

	store.FailNext("update", EntityAccounts, equityID, errors.New("store down"))
	_, err := engine.Post(ctx, Draft{
		CompanyID: "co-1",
		LineItems: []LineItem{{AccountID: assetID, Debit: 10}, {AccountID: equityID, Credit: 10}},
	})
	var partial *PartialPostingError
	require.ErrorAs(t, err, &partial)

	results, err := engine.RecoverPending(ctx, time.Hour)
	require.NoError(t, err)
	assert.Empty(t, results, "fresh intents may belong to in-flight postings")
}

func TestRecoverPendingReportsPersistentFailures(t *testing.T) {
	ctx := context.Background()
	engine, store := newTestEngine(t)
	assetID := seedAccount(t, store, "co-1", "1000", "Cash", AccountTypeAsset, "cash", 0)
	equityID := seedAccount(t, store, "co-1", "3000", "Capital", AccountTypeEquity, "capital", 0)

	store.FailNext("update", EntityAccounts, equityID, errors.New("store down"))
	_, err := engine.Post(ctx, Draft{
		CompanyID: "co-1",
		LineItems: []LineItem{{AccountID: assetID, Debit: 10}, {AccountID: equityID, Credit: 10}},
	})
	var partial *PartialPostingError
	require.ErrorAs(t, err, &partial)

	store.FailNext("update", EntityAccounts, equityID, errors.New("still down"))
	results, err := engine.RecoverPending(ctx, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 0, results[0].Applied)
	assert.Equal(t, 1, results[0].Failed)

	// Intent stays pending for the next sweep.
	intents, err := store.Filter(ctx, EntityPostingIntents, entitystore.Query{"status": IntentStatusPending})
	require.NoError(t, err)
	assert.Len(t, intents, 1)
}
