package ledger

import (
	"context"
	"log/slog"
)

// Repost replaces the line items of an existing manual entry. Two phases:
// first the current lines are reversed best-effort (per-account failures are
// logged and do not abort the rewrite), then the new lines are validated,
// stored on the entry and applied. After both phases fully succeed, every
// balance equals what it would be had the entry always contained newLines.
func (e *Engine) Repost(ctx context.Context, entryID string, newLines []LineItem) (*JournalEntry, error) {
	entry, err := e.GetEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if !entry.Editable() {
		return nil, ErrNotEditable
	}
	if len(newLines) == 0 {
		return nil, ErrNoLines
	}
	for _, line := range newLines {
		if line.Debit < 0 || line.Credit < 0 {
			return nil, ErrNegativeAmount
		}
	}
	if err := ValidateBalanced(newLines); err != nil {
		return nil, err
	}

	// Resolve the new line accounts before mutating anything: an unknown
	// account must refuse the edit while the old posting is still intact.
	accounts := make(map[string]Account)
	accountTypes := make(map[string]AccountType)
	for _, line := range newLines {
		if _, ok := accounts[line.AccountID]; ok {
			continue
		}
		account, err := e.fetchAccount(ctx, entry.CompanyID, line.AccountID)
		if err != nil {
			return nil, err
		}
		accounts[line.AccountID] = account
		accountTypes[line.AccountID] = account.AccountType
	}

	// Phase 1: reverse the current lines. Failures leave stale balances on
	// the affected accounts; they are logged and recorded on the intent so
	// reconciliation can find them, but phase 2 still runs.
	e.reverseLines(ctx, entry, "repost-reverse")

	// Phase 2: rewrite the entry row and apply the new deltas.
	lines := snapshotLines(newLines, accounts)
	debits, credits := SumColumns(lines)
	patch := map[string]any{
		"line_items":    linesDoc(lines),
		"total_debits":  debits,
		"total_credits": credits,
	}
	if _, err := e.store.Update(ctx, EntityJournalEntries, entry.ID, patch); err != nil {
		return nil, &StoreError{Op: "update entry", Err: err}
	}
	entry.LineItems = lines
	entry.TotalDebits = debits
	entry.TotalCredits = credits

	if err := e.applyDeltas(ctx, entry, collectDeltas(lines, accountTypes), "repost-apply"); err != nil {
		return entry, err
	}
	e.logger.Info("journal entry reposted",
		slog.String("entry_id", entry.ID),
		slog.String("entry_number", entry.EntryNumber))
	return entry, nil
}

// ReverseAndDelete reverses an entry's balance effects and removes the row.
// Unlike repost, the row is only deleted once every reversal delta landed.
// A partial reversal leaves the entry visible and its intent blocked; a
// retried delete resumes from the deltas that intent still lists as
// unapplied, so accounts already reversed are never reversed twice.
func (e *Engine) ReverseAndDelete(ctx context.Context, entryID string) error {
	entry, err := e.GetEntry(ctx, entryID)
	if err != nil {
		return err
	}
	if !entry.Editable() {
		return ErrNotEditable
	}
	failed, err := e.reverseForDelete(ctx, entry)
	if err != nil {
		return err
	}
	if len(failed) > 0 {
		return &PartialPostingError{EntryID: entry.ID, FailedAccountIDs: failed}
	}
	if err := e.store.Delete(ctx, EntityJournalEntries, entry.ID); err != nil {
		return &StoreError{Op: "delete entry", Err: err}
	}
	e.logger.Info("journal entry deleted",
		slog.String("entry_id", entry.ID),
		slog.String("entry_number", entry.EntryNumber))
	return nil
}

// reverseForDelete picks the reversal path for a delete. When an earlier
// attempt already recorded a delete-reverse intent, the reversal resumes
// from that intent instead of reversing every line again; a complete intent
// means the balances are already clean and only the row removal is left.
func (e *Engine) reverseForDelete(ctx context.Context, entry *JournalEntry) ([]string, error) {
	if e.intents != nil {
		intent, err := e.intents.FindLatest(ctx, entry.ID, "delete-reverse")
		if err != nil {
			return nil, err
		}
		if intent != nil {
			if intent.Status == IntentStatusComplete {
				return nil, nil
			}
			return e.resumeIntent(ctx, intent), nil
		}
	}
	return e.reverseLines(ctx, entry, "delete-reverse"), nil
}

// resumeIntent applies the deltas an earlier attempt left unapplied and
// settles the intent status. Returns the account ids that failed again.
func (e *Engine) resumeIntent(ctx context.Context, intent *PostingIntent) []string {
	var failed []string
	for _, d := range intent.Deltas {
		if d.Applied {
			continue
		}
		if err := e.applyDelta(ctx, intent.CompanyID, d.AccountID, d.Delta); err != nil {
			e.metrics.observeBalanceUpdate("failed")
			e.logger.Error("reversal balance update failed",
				slog.String("entry_id", intent.EntryID),
				slog.String("account_id", d.AccountID),
				slog.Any("error", err))
			failed = append(failed, d.AccountID)
			continue
		}
		e.metrics.observeBalanceUpdate("applied")
		if err := e.intents.MarkApplied(ctx, intent, d.AccountID); err != nil {
			e.logger.Warn("intent mark failed", slog.String("entry_id", intent.EntryID), slog.Any("error", err))
		}
	}
	if len(failed) > 0 {
		if err := e.intents.Block(ctx, intent, "reversal left stale balances"); err != nil {
			e.logger.Warn("intent block failed", slog.String("entry_id", intent.EntryID), slog.Any("error", err))
		}
		return failed
	}
	if err := e.intents.Complete(ctx, intent); err != nil {
		e.logger.Warn("intent completion failed", slog.String("entry_id", intent.EntryID), slog.Any("error", err))
	}
	return nil
}

// reverseLines applies the inverse of the entry's current lines, best
// effort. Returns the account ids whose reversal failed.
func (e *Engine) reverseLines(ctx context.Context, entry *JournalEntry, operation string) []string {
	accountTypes := make(map[string]AccountType)
	for _, line := range entry.LineItems {
		if _, ok := accountTypes[line.AccountID]; ok {
			continue
		}
		account, err := e.fetchAccount(ctx, entry.CompanyID, line.AccountID)
		if err != nil {
			e.logger.Error("reversal account fetch failed",
				slog.String("entry_id", entry.ID),
				slog.String("account_id", line.AccountID),
				slog.Any("error", err))
			continue
		}
		accountTypes[line.AccountID] = account.AccountType
	}

	inverse := Inverse(entry.LineItems)
	deltas := collectDeltas(inverse, accountTypes)
	intentDeltas := make([]IntentDelta, 0, len(deltas))
	for _, d := range deltas {
		intentDeltas = append(intentDeltas, IntentDelta{AccountID: d.accountID, Delta: d.delta})
	}
	var intent PostingIntent
	var haveIntent bool
	if e.intents != nil {
		var err error
		intent, err = e.intents.Begin(ctx, entry.CompanyID, entry.ID, operation, intentDeltas)
		if err != nil {
			e.logger.Warn("reversal intent write failed", slog.String("entry_id", entry.ID), slog.Any("error", err))
		} else {
			haveIntent = true
		}
	}

	var failed []string
	for _, d := range deltas {
		if _, ok := accountTypes[d.accountID]; !ok {
			failed = append(failed, d.accountID)
			continue
		}
		if err := e.applyDelta(ctx, entry.CompanyID, d.accountID, d.delta); err != nil {
			e.metrics.observeBalanceUpdate("failed")
			e.logger.Error("reversal balance update failed",
				slog.String("entry_id", entry.ID),
				slog.String("account_id", d.accountID),
				slog.Any("error", err))
			failed = append(failed, d.accountID)
			continue
		}
		e.metrics.observeBalanceUpdate("applied")
		if haveIntent {
			if err := e.intents.MarkApplied(ctx, &intent, d.accountID); err != nil {
				e.logger.Warn("intent mark failed", slog.String("entry_id", entry.ID), slog.Any("error", err))
			}
		}
	}
	if haveIntent {
		if len(failed) > 0 {
			if err := e.intents.Block(ctx, &intent, "reversal left stale balances"); err != nil {
				e.logger.Warn("intent block failed", slog.String("entry_id", entry.ID), slog.Any("error", err))
			}
		} else if err := e.intents.Complete(ctx, &intent); err != nil {
			e.logger.Warn("intent completion failed", slog.String("entry_id", entry.ID), slog.Any("error", err))
		}
	}
	return failed
}

func linesDoc(lines []LineItem) []map[string]any {
	out := make([]map[string]any, 0, len(lines))
	for _, line := range lines {
		out = append(out, map[string]any{
			"account_id":   line.AccountID,
			"account_name": line.AccountName,
			"account_code": line.AccountCode,
			"description":  line.Description,
			"debit":        line.Debit,
			"credit":       line.Credit,
		})
	}
	return out
}
