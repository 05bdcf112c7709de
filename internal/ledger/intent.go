package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/brightbooks-erp/brightbooks/internal/entitystore"
)

// Intent statuses. Pending intents are picked up by the recovery sweep;
// blocked ones reference an account that cannot be resolved and need manual
// attention.
const (
	IntentStatusPending  = "pending"
	IntentStatusComplete = "complete"
	IntentStatusBlocked  = "blocked"
)

// IntentDelta is one account's share of a posting, with an applied marker
// flipped as soon as the balance write lands.
type IntentDelta struct {
	AccountID string  `json:"account_id"`
	Delta     float64 `json:"delta"`
	Applied   bool    `json:"applied"`
}

// PostingIntent is the write-ahead record of a posting operation. It is
// written before any balance is touched so a crashed posting can be resumed
// instead of silently left partial.
type PostingIntent struct {
	ID        string        `json:"id,omitempty"`
	CompanyID string        `json:"company_id"`
	EntryID   string        `json:"entry_id"`
	Operation string        `json:"operation"`
	Status    string        `json:"status"`
	Deltas    []IntentDelta `json:"deltas"`
	Note      string        `json:"note,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}

// PendingFor returns the account ids whose deltas have not been applied.
func (i PostingIntent) PendingFor() []string {
	var out []string
	for _, d := range i.Deltas {
		if !d.Applied {
			out = append(out, d.AccountID)
		}
	}
	return out
}

// IntentLog persists posting intents in the entity store.
type IntentLog struct {
	store entitystore.Store
	now   func() time.Time
}

// NewIntentLog constructs an IntentLog.
func NewIntentLog(store entitystore.Store) *IntentLog {
	return &IntentLog{store: store, now: time.Now}
}

// Begin writes a pending intent for the given entry and deltas.
func (l *IntentLog) Begin(ctx context.Context, companyID, entryID, operation string, deltas []IntentDelta) (PostingIntent, error) {
	intent := PostingIntent{
		CompanyID: companyID,
		EntryID:   entryID,
		Operation: operation,
		Status:    IntentStatusPending,
		Deltas:    deltas,
		CreatedAt: l.now(),
	}
	doc, err := entitystore.Doc(intent)
	if err != nil {
		return PostingIntent{}, err
	}
	rec, err := l.store.Create(ctx, EntityPostingIntents, doc)
	if err != nil {
		return PostingIntent{}, fmt.Errorf("ledger: write posting intent: %w", err)
	}
	intent.ID = rec.ID
	return intent, nil
}

// MarkApplied flips the applied flag for one account's delta. Failures are
// tolerable: the worst case is the recovery sweep re-surfacing an already
// applied delta for manual review, never a silent loss.
func (l *IntentLog) MarkApplied(ctx context.Context, intent *PostingIntent, accountID string) error {
	for idx := range intent.Deltas {
		if intent.Deltas[idx].AccountID == accountID {
			intent.Deltas[idx].Applied = true
		}
	}
	_, err := l.store.Update(ctx, EntityPostingIntents, intent.ID, map[string]any{
		"deltas": deltasDoc(intent.Deltas),
	})
	return err
}

// Complete marks the intent finished.
func (l *IntentLog) Complete(ctx context.Context, intent *PostingIntent) error {
	intent.Status = IntentStatusComplete
	_, err := l.store.Update(ctx, EntityPostingIntents, intent.ID, map[string]any{
		"status": IntentStatusComplete,
		"deltas": deltasDoc(intent.Deltas),
	})
	return err
}

// Block marks the intent as needing manual attention.
func (l *IntentLog) Block(ctx context.Context, intent *PostingIntent, note string) error {
	intent.Status = IntentStatusBlocked
	_, err := l.store.Update(ctx, EntityPostingIntents, intent.ID, map[string]any{
		"status": IntentStatusBlocked,
		"note":   note,
		"deltas": deltasDoc(intent.Deltas),
	})
	return err
}

// FindLatest returns the most recent intent recorded for the entry and
// operation, or nil when none exists.
func (l *IntentLog) FindLatest(ctx context.Context, entryID, operation string) (*PostingIntent, error) {
	records, err := l.store.Filter(ctx, EntityPostingIntents,
		entitystore.Query{"entry_id": entryID, "operation": operation},
		entitystore.WithSort("created_at", true),
		entitystore.WithLimit(1),
	)
	if err != nil {
		return nil, fmt.Errorf("ledger: find posting intent: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}
	var intent PostingIntent
	if err := records[0].Decode(&intent); err != nil {
		return nil, err
	}
	intent.ID = records[0].ID
	return &intent, nil
}

// ListPending returns pending intents created before the cutoff, oldest
// first. Recent intents are skipped so in-flight postings are not raced.
func (l *IntentLog) ListPending(ctx context.Context, olderThan time.Duration) ([]PostingIntent, error) {
	records, err := l.store.Filter(ctx, EntityPostingIntents,
		entitystore.Query{"status": IntentStatusPending},
		entitystore.WithSort("created_at", false),
	)
	if err != nil {
		return nil, fmt.Errorf("ledger: list pending intents: %w", err)
	}
	cutoff := l.now().Add(-olderThan)
	var out []PostingIntent
	for _, rec := range records {
		var intent PostingIntent
		if err := rec.Decode(&intent); err != nil {
			return nil, err
		}
		intent.ID = rec.ID
		if intent.CreatedAt.Before(cutoff) {
			out = append(out, intent)
		}
	}
	return out, nil
}

func deltasDoc(deltas []IntentDelta) []map[string]any {
	out := make([]map[string]any, 0, len(deltas))
	for _, d := range deltas {
		out = append(out, map[string]any{
			"account_id": d.AccountID,
			"delta":      d.Delta,
			"applied":    d.Applied,
		})
	}
	return out
}
