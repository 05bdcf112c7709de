package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/brightbooks-erp/brightbooks/internal/entitystore"
)

// Engine posts balanced journal entries and applies their balance effects
// account by account. The entity store offers no multi-record transactions,
// so the engine writes a posting intent first and reports partial failure
// precisely instead of pretending to roll back.
type Engine struct {
	store   entitystore.Store
	intents *IntentLog
	logger  *slog.Logger
	metrics *Metrics
	now     func() time.Time
}

// NewEngine constructs the posting engine.
func NewEngine(store entitystore.Store, intents *IntentLog, logger *slog.Logger, metrics *Metrics) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{store: store, intents: intents, logger: logger, metrics: metrics, now: time.Now}
}

// WithNow overrides the clock, for tests.
func (e *Engine) WithNow(now func() time.Time) {
	if now != nil {
		e.now = now
	}
}

func validateDraft(draft Draft) error {
	if draft.CompanyID == "" {
		return ErrCompanyRequired
	}
	if len(draft.LineItems) == 0 {
		return ErrNoLines
	}
	for _, line := range draft.LineItems {
		if line.AccountID == "" {
			return fmt.Errorf("%w: line missing account id", ErrNoLines)
		}
		if line.Debit < 0 || line.Credit < 0 {
			return ErrNegativeAmount
		}
	}
	return ValidateBalanced(draft.LineItems)
}

// accountDelta pairs an account with its net delta across all lines of an
// entry, in first-appearance order. Applying per account (not per line)
// keeps PartialPostingError retries exactly scoped.
type accountDelta struct {
	accountID string
	delta     float64
	lines     []int
}

func collectDeltas(lines []LineItem, accountTypes map[string]AccountType) []accountDelta {
	index := make(map[string]int)
	var out []accountDelta
	for i, line := range lines {
		delta := BalanceDelta(accountTypes[line.AccountID], line.Debit, line.Credit)
		if pos, ok := index[line.AccountID]; ok {
			out[pos].delta += delta
			out[pos].lines = append(out[pos].lines, i)
			continue
		}
		index[line.AccountID] = len(out)
		out = append(out, accountDelta{accountID: line.AccountID, delta: delta, lines: []int{i}})
	}
	return out
}

// Post validates and persists the draft, then applies each account's balance
// delta sequentially. On success the returned entry is fully reflected in
// account balances. A *PartialPostingError means the entry row exists but the
// listed accounts still await their delta; retry with RetryPartial.
func (e *Engine) Post(ctx context.Context, draft Draft) (*JournalEntry, error) {
	start := e.now()
	if err := validateDraft(draft); err != nil {
		e.metrics.observePosting("rejected", start)
		return nil, err
	}

	// Resolve every referenced account up front: an unknown account must
	// fail the posting before the entry row is written.
	accounts := make(map[string]Account)
	accountTypes := make(map[string]AccountType)
	for _, line := range draft.LineItems {
		if _, ok := accounts[line.AccountID]; ok {
			continue
		}
		account, err := e.fetchAccount(ctx, draft.CompanyID, line.AccountID)
		if err != nil {
			e.metrics.observePosting("rejected", start)
			return nil, err
		}
		accounts[line.AccountID] = account
		accountTypes[line.AccountID] = account.AccountType
	}

	lines := snapshotLines(draft.LineItems, accounts)
	debits, credits := SumColumns(lines)
	sourceType := draft.SourceType
	if sourceType == "" {
		sourceType = SourceManual
	}
	entryNumber, err := e.nextEntryNumber(ctx, draft.CompanyID)
	if err != nil {
		e.metrics.observePosting("failed", start)
		return nil, err
	}

	entry := JournalEntry{
		CompanyID:    draft.CompanyID,
		EntryNumber:  entryNumber,
		EntryDate:    draft.EntryDate,
		Reference:    draft.Reference,
		Description:  draft.Description,
		SourceType:   sourceType,
		SourceID:     draft.SourceID,
		Status:       EntryStatusPosted,
		LineItems:    lines,
		TotalDebits:  debits,
		TotalCredits: credits,
		PostedBy:     draft.PostedBy,
		PostedDate:   e.now(),
	}
	doc, err := entitystore.Doc(entry)
	if err != nil {
		e.metrics.observePosting("failed", start)
		return nil, err
	}
	rec, err := e.store.Create(ctx, EntityJournalEntries, doc)
	if err != nil {
		e.metrics.observePosting("failed", start)
		return nil, &StoreError{Op: "create entry", Err: err}
	}
	entry.ID = rec.ID

	deltas := collectDeltas(lines, accountTypes)
	if err := e.applyDeltas(ctx, &entry, deltas, "post"); err != nil {
		e.metrics.observePosting("partial", start)
		return &entry, err
	}
	e.metrics.observePosting("posted", start)
	e.logger.Info("journal entry posted",
		slog.String("entry_id", entry.ID),
		slog.String("entry_number", entry.EntryNumber),
		slog.String("company_id", entry.CompanyID),
		slog.Float64("total", entry.TotalDebits))
	return &entry, nil
}

// applyDeltas writes an intent record, then applies each account's delta in
// order. Store failures are collected and surfaced as PartialPostingError;
// the intent stays pending so the recovery sweep can finish the job.
func (e *Engine) applyDeltas(ctx context.Context, entry *JournalEntry, deltas []accountDelta, operation string) error {
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
			// The intent log is a safety net, not a gate; posting proceeds
			// without it rather than refusing the user's action.
			e.logger.Warn("posting intent write failed", slog.String("entry_id", entry.ID), slog.Any("error", err))
		} else {
			haveIntent = true
		}
	}

	var failed []string
	for _, d := range deltas {
		if err := e.applyDelta(ctx, entry.CompanyID, d.accountID, d.delta); err != nil {
			e.metrics.observeBalanceUpdate("failed")
			e.logger.Error("balance update failed",
				slog.String("entry_id", entry.ID),
				slog.String("account_id", d.accountID),
				slog.Float64("delta", d.delta),
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
	if len(failed) > 0 {
		return &PartialPostingError{EntryID: entry.ID, FailedAccountIDs: failed}
	}
	if haveIntent {
		if err := e.intents.Complete(ctx, &intent); err != nil {
			e.logger.Warn("intent completion failed", slog.String("entry_id", entry.ID), slog.Any("error", err))
		}
	}
	return nil
}

// applyDelta is the single balance read-modify-write. There is no version
// guard on the account row: last write wins, per the store's contract.
func (e *Engine) applyDelta(ctx context.Context, companyID, accountID string, delta float64) error {
	account, err := e.fetchAccount(ctx, companyID, accountID)
	if err != nil {
		return err
	}
	_, err = e.store.Update(ctx, EntityAccounts, accountID, map[string]any{
		"balance": account.Balance + delta,
	})
	if err != nil {
		return &StoreError{Op: "update balance", Err: err}
	}
	return nil
}

func (e *Engine) fetchAccount(ctx context.Context, companyID, accountID string) (Account, error) {
	rec, err := e.store.Get(ctx, EntityAccounts, accountID)
	if err != nil {
		if errors.Is(err, entitystore.ErrNotFound) {
			return Account{}, &UnknownAccountError{AccountID: accountID, CompanyID: companyID}
		}
		return Account{}, &StoreError{Op: "get account", Err: err}
	}
	var account Account
	if err := rec.Decode(&account); err != nil {
		return Account{}, err
	}
	account.ID = rec.ID
	if account.CompanyID != companyID {
		return Account{}, &UnknownAccountError{AccountID: accountID, CompanyID: companyID}
	}
	return account, nil
}

// GetEntry loads a journal entry by id.
func (e *Engine) GetEntry(ctx context.Context, entryID string) (*JournalEntry, error) {
	rec, err := e.store.Get(ctx, EntityJournalEntries, entryID)
	if err != nil {
		if errors.Is(err, entitystore.ErrNotFound) {
			return nil, ErrEntryNotFound
		}
		return nil, &StoreError{Op: "get entry", Err: err}
	}
	var entry JournalEntry
	if err := rec.Decode(&entry); err != nil {
		return nil, err
	}
	entry.ID = rec.ID
	return &entry, nil
}

// RetryPartial re-applies the deltas of an entry for exactly the listed
// accounts. Accounts outside the list are untouched; retrying an account
// that already received its delta would double-apply it.
func (e *Engine) RetryPartial(ctx context.Context, entryID string, accountIDs []string) error {
	entry, err := e.GetEntry(ctx, entryID)
	if err != nil {
		return err
	}
	wanted := make(map[string]bool, len(accountIDs))
	for _, id := range accountIDs {
		wanted[id] = true
	}
	accountTypes := make(map[string]AccountType)
	for _, line := range entry.LineItems {
		if !wanted[line.AccountID] {
			continue
		}
		if _, ok := accountTypes[line.AccountID]; ok {
			continue
		}
		account, err := e.fetchAccount(ctx, entry.CompanyID, line.AccountID)
		if err != nil {
			return err
		}
		accountTypes[line.AccountID] = account.AccountType
	}
	var failed []string
	for _, d := range collectDeltas(entry.LineItems, accountTypes) {
		if !wanted[d.accountID] {
			continue
		}
		if err := e.applyDelta(ctx, entry.CompanyID, d.accountID, d.delta); err != nil {
			failed = append(failed, d.accountID)
		}
	}
	if len(failed) > 0 {
		return &PartialPostingError{EntryID: entryID, FailedAccountIDs: failed}
	}
	return nil
}

// nextEntryNumber increments the per-company journal counter. The counter
// update is not atomic with the entry write; a crash between the two burns a
// number, which is acceptable for a human-readable sequence.
func (e *Engine) nextEntryNumber(ctx context.Context, companyID string) (string, error) {
	counterID := "journal:" + companyID
	rec, err := e.store.Get(ctx, EntityCounters, counterID)
	if errors.Is(err, entitystore.ErrNotFound) {
		rec, err = e.store.Create(ctx, EntityCounters, map[string]any{"id": counterID, "value": 0.0})
		if errors.Is(err, entitystore.ErrDuplicateID) {
			rec, err = e.store.Get(ctx, EntityCounters, counterID)
		}
	}
	if err != nil {
		return "", &StoreError{Op: "entry counter", Err: err}
	}
	current, _ := rec.Data["value"].(float64)
	next := current + 1
	if _, err := e.store.Update(ctx, EntityCounters, counterID, map[string]any{"value": next}); err != nil {
		return "", &StoreError{Op: "entry counter", Err: err}
	}
	return fmt.Sprintf("JE-%06d", int64(next)), nil
}

func snapshotLines(lines []LineItem, accounts map[string]Account) []LineItem {
	out := make([]LineItem, len(lines))
	for i, line := range lines {
		snap := line
		if account, ok := accounts[line.AccountID]; ok {
			snap.AccountName = account.AccountName
			snap.AccountCode = account.AccountCode
		}
		out[i] = snap
	}
	return out
}
