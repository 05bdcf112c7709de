package ledger

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrCompanyRequired indicates a draft without a company scope.
	ErrCompanyRequired = errors.New("ledger: company id required")
	// ErrNoLines indicates a draft with an empty line set.
	ErrNoLines = errors.New("ledger: at least one line item required")
	// ErrNegativeAmount indicates a line with a negative debit or credit.
	ErrNegativeAmount = errors.New("ledger: line amounts must not be negative")
	// ErrNotEditable indicates a repost/delete against a non-manual or void entry.
	ErrNotEditable = errors.New("ledger: entry is not editable")
	// ErrEntryNotFound indicates the journal entry does not exist.
	ErrEntryNotFound = errors.New("ledger: journal entry not found")
)

// ImbalanceError reports debit and credit columns that disagree beyond
// tolerance. The entry is never created when this is returned.
type ImbalanceError struct {
	SumDebits  float64
	SumCredits float64
}

func (e *ImbalanceError) Error() string {
	return fmt.Sprintf("ledger: entry is not balanced: debits %.2f, credits %.2f", e.SumDebits, e.SumCredits)
}

// UnknownAccountError reports a line referencing a missing or cross-company
// account. Balance updates applied before the bad line remain in place.
type UnknownAccountError struct {
	AccountID string
	CompanyID string
}

func (e *UnknownAccountError) Error() string {
	return fmt.Sprintf("ledger: account %s not found in company %s", e.AccountID, e.CompanyID)
}

// PartialPostingError reports that the entry row exists but some account
// balance updates failed. Retries must be scoped to exactly the listed
// accounts; re-applying a delta that already landed would double it.
type PartialPostingError struct {
	EntryID          string
	FailedAccountIDs []string
}

func (e *PartialPostingError) Error() string {
	return fmt.Sprintf("ledger: entry %s posted with failed balance updates for accounts [%s]",
		e.EntryID, strings.Join(e.FailedAccountIDs, ", "))
}

// StoreError wraps an entity store failure on the posting path. The engine
// does not retry these; retry policy lives in the store decorator and in the
// caller's hands via PartialPostingError.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("ledger: store failure during %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }
