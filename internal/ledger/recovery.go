package ledger

import (
	"context"
	"log/slog"
	"time"
)

// RecoveryResult reports what the sweep did with one stranded intent.
type RecoveryResult struct {
	IntentID string `json:"intent_id"`
	EntryID  string `json:"entry_id"`
	Applied  int    `json:"applied"`
	Failed   int    `json:"failed"`
}

// RecoverPending completes postings whose intent is still pending after the
// given age: every delta not yet marked applied is applied now. Deltas are
// taken from the intent record itself, so recovery stays scoped to exactly
// the work the crashed posting left behind.
func (e *Engine) RecoverPending(ctx context.Context, olderThan time.Duration) ([]RecoveryResult, error) {
	if e.intents == nil {
		return nil, nil
	}
	pending, err := e.intents.ListPending(ctx, olderThan)
	if err != nil {
		return nil, err
	}
	var results []RecoveryResult
	for _, intent := range pending {
		intent := intent
		result := RecoveryResult{IntentID: intent.ID, EntryID: intent.EntryID}
		for idx, d := range intent.Deltas {
			if d.Applied {
				continue
			}
			if err := e.applyDelta(ctx, intent.CompanyID, d.AccountID, d.Delta); err != nil {
				result.Failed++
				e.logger.Error("recovery delta failed",
					slog.String("intent_id", intent.ID),
					slog.String("account_id", d.AccountID),
					slog.Any("error", err))
				continue
			}
			intent.Deltas[idx].Applied = true
			result.Applied++
			if err := e.intents.MarkApplied(ctx, &intent, d.AccountID); err != nil {
				e.logger.Warn("recovery intent mark failed",
					slog.String("intent_id", intent.ID), slog.Any("error", err))
			}
		}
		if result.Failed == 0 {
			if err := e.intents.Complete(ctx, &intent); err != nil {
				e.logger.Warn("recovery intent completion failed",
					slog.String("intent_id", intent.ID), slog.Any("error", err))
			}
		}
		results = append(results, result)
	}
	return results, nil
}
