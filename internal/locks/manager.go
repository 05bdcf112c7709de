package locks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/brightbooks-erp/brightbooks/internal/entitystore"
	"github.com/brightbooks-erp/brightbooks/internal/shared"
)

// EntityRecordLocks is the lock collection in the entity store.
const EntityRecordLocks = "record_locks"

// DefaultTTL is the lock lifetime without a refresh.
const DefaultTTL = 15 * time.Minute

// DefaultRefreshInterval is the cadence clients are told to refresh at. It
// sits well inside the TTL so a missed beat does not lose the lock.
const DefaultRefreshInterval = 5 * time.Minute

// ErrLockConflict indicates a foreign effective lock holds the record.
var ErrLockConflict = fmt.Errorf("record is locked by another session")

// RecordLock is an advisory, time-boxed claim on one record. Rows are never
// hard-deleted; release deactivates them so the history stays auditable.
type RecordLock struct {
	ID               string    `json:"id,omitempty"`
	CompanyID        string    `json:"company_id"`
	EntityName       string    `json:"entity_name"`
	RecordID         string    `json:"record_id"`
	LockedByUserID   string    `json:"locked_by_user_id"`
	LockedByUserName string    `json:"locked_by_user_name"`
	LockedAt         time.Time `json:"locked_at"`
	LockExpiresAt    time.Time `json:"lock_expires_at"`
	SessionID        string    `json:"session_id"`
	IsActive         bool      `json:"is_active"`
}

// Effective reports whether the lock blocks the given session right now.
// A session's own lock never blocks itself and expired locks are ignorable.
func (l RecordLock) Effective(now time.Time, sessionID string) bool {
	return l.IsActive && now.Before(l.LockExpiresAt) && l.SessionID != sessionID
}

// Status is the observable outcome of a lock check. CheckFailed makes the
// fail-open path explicit: the store errored, no lock state is known, and
// the caller may choose a stricter policy than the default proceed.
type Status struct {
	Locked      bool        `json:"locked"`
	Lock        *RecordLock `json:"lock,omitempty"`
	CheckFailed bool        `json:"check_failed"`
}

// AcquireResult reports an acquire attempt. Lock is nil exactly when a
// foreign effective lock blocked the caller.
type AcquireResult struct {
	Lock        *RecordLock `json:"lock,omitempty"`
	Conflict    *RecordLock `json:"conflict,omitempty"`
	CheckFailed bool        `json:"check_failed"`
}

// Manager implements cooperative record locking over the entity store.
// Every store failure is swallowed and treated as "no lock": blocking a
// user's edit because the lock backend is down is the worse trade.
type Manager struct {
	store        entitystore.Store
	ttl          time.Duration
	refreshEvery time.Duration
	logger       *slog.Logger
	now          func() time.Time
}

// NewManager constructs a Manager.
func NewManager(store entitystore.Store, ttl time.Duration, logger *slog.Logger) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{store: store, ttl: ttl, refreshEvery: DefaultRefreshInterval, logger: logger, now: time.Now}
}

// WithRefreshInterval overrides the advertised refresh cadence.
func (m *Manager) WithRefreshInterval(d time.Duration) {
	if d > 0 {
		m.refreshEvery = d
	}
}

// RefreshInterval is how often lock holders should call Refresh.
func (m *Manager) RefreshInterval() time.Duration {
	return m.refreshEvery
}

// WithNow overrides the clock, for tests.
func (m *Manager) WithNow(now func() time.Time) {
	if now != nil {
		m.now = now
	}
}

func (m *Manager) activeLocks(ctx context.Context, entityName, recordID string) ([]entitystore.Record, error) {
	return m.store.Filter(ctx, EntityRecordLocks, entitystore.Query{
		"entity_name": entityName,
		"record_id":   recordID,
		"is_active":   true,
	})
}

// Check reports whether a foreign effective lock holds the record. As a side
// effect it deactivates locks found expired or owned by the caller's own
// session, which keeps the collection tidy without a dedicated sweeper.
func (m *Manager) Check(ctx context.Context, sess shared.Session, entityName, recordID string) Status {
	records, err := m.activeLocks(ctx, entityName, recordID)
	if err != nil {
		m.logger.Warn("lock check failed open",
			slog.String("entity", entityName),
			slog.String("record_id", recordID),
			slog.Any("error", err))
		return Status{CheckFailed: true}
	}
	now := m.now()
	var blocking *RecordLock
	for _, rec := range records {
		var lock RecordLock
		if err := rec.Decode(&lock); err != nil {
			continue
		}
		lock.ID = rec.ID
		if lock.Effective(now, sess.ID) {
			if blocking == nil {
				l := lock
				blocking = &l
			}
			continue
		}
		// Expired, or our own stale claim: garbage-collect on read.
		m.deactivate(ctx, lock.ID)
	}
	if blocking != nil {
		return Status{Locked: true, Lock: blocking}
	}
	return Status{}
}

// Acquire claims the record for the session. A nil Lock in the result means
// a foreign effective lock exists and the caller must not proceed.
func (m *Manager) Acquire(ctx context.Context, sess shared.Session, companyID, entityName, recordID string) AcquireResult {
	status := m.Check(ctx, sess, entityName, recordID)
	if status.Locked {
		return AcquireResult{Conflict: status.Lock, CheckFailed: status.CheckFailed}
	}
	now := m.now()
	lock := RecordLock{
		CompanyID:        companyID,
		EntityName:       entityName,
		RecordID:         recordID,
		LockedByUserID:   sess.UserID,
		LockedByUserName: sess.UserName,
		LockedAt:         now,
		LockExpiresAt:    now.Add(m.ttl),
		SessionID:        sess.ID,
		IsActive:         true,
	}
	doc, err := entitystore.Doc(lock)
	if err != nil {
		return AcquireResult{CheckFailed: status.CheckFailed}
	}
	rec, err := m.store.Create(ctx, EntityRecordLocks, doc)
	if err != nil {
		// Fail open: the edit proceeds unlocked rather than being refused.
		m.logger.Warn("lock acquire failed open",
			slog.String("entity", entityName),
			slog.String("record_id", recordID),
			slog.Any("error", err))
		return AcquireResult{CheckFailed: true}
	}
	lock.ID = rec.ID
	return AcquireResult{Lock: &lock, CheckFailed: status.CheckFailed}
}

// Refresh extends the caller's own active locks on the record by one TTL
// from now. Intended to run on a fixed interval while the edit session is
// open.
func (m *Manager) Refresh(ctx context.Context, sess shared.Session, entityName, recordID string) {
	records, err := m.activeLocks(ctx, entityName, recordID)
	if err != nil {
		m.logger.Warn("lock refresh failed open", slog.Any("error", err))
		return
	}
	expires := m.now().Add(m.ttl)
	for _, rec := range records {
		var lock RecordLock
		if err := rec.Decode(&lock); err != nil {
			continue
		}
		if lock.SessionID != sess.ID {
			continue
		}
		if _, err := m.store.Update(ctx, EntityRecordLocks, rec.ID, map[string]any{
			"lock_expires_at": expires.Format(time.RFC3339Nano),
		}); err != nil {
			m.logger.Warn("lock refresh failed open", slog.String("lock_id", rec.ID), slog.Any("error", err))
		}
	}
}

// Release deactivates the caller's own active locks on the record. It must
// run on edit-session end; abnormal termination is covered by expiry.
func (m *Manager) Release(ctx context.Context, sess shared.Session, entityName, recordID string) {
	records, err := m.activeLocks(ctx, entityName, recordID)
	if err != nil {
		m.logger.Warn("lock release failed open", slog.Any("error", err))
		return
	}
	for _, rec := range records {
		var lock RecordLock
		if err := rec.Decode(&lock); err != nil {
			continue
		}
		if lock.SessionID != sess.ID {
			continue
		}
		m.deactivate(ctx, rec.ID)
	}
}

// EnsureEditable is the gate the ledger edit endpoints call before touching
// a record. Store failures pass (fail open).
func (m *Manager) EnsureEditable(ctx context.Context, sess shared.Session, entityName, recordID string) error {
	status := m.Check(ctx, sess, entityName, recordID)
	if status.Locked {
		return fmt.Errorf("%w: %s/%s held by %s", ErrLockConflict, entityName, recordID, status.Lock.LockedByUserName)
	}
	return nil
}

// SweepExpired deactivates every active lock past its expiry, across all
// records. The background sweeper calls this; Check covers the hot paths.
func (m *Manager) SweepExpired(ctx context.Context) (int, error) {
	records, err := m.store.Filter(ctx, EntityRecordLocks, entitystore.Query{"is_active": true})
	if err != nil {
		return 0, fmt.Errorf("locks: sweep: %w", err)
	}
	now := m.now()
	swept := 0
	for _, rec := range records {
		var lock RecordLock
		if err := rec.Decode(&lock); err != nil {
			continue
		}
		if now.Before(lock.LockExpiresAt) {
			continue
		}
		m.deactivate(ctx, rec.ID)
		swept++
	}
	return swept, nil
}

func (m *Manager) deactivate(ctx context.Context, lockID string) {
	if _, err := m.store.Update(ctx, EntityRecordLocks, lockID, map[string]any{"is_active": false}); err != nil {
		m.logger.Warn("lock deactivate failed", slog.String("lock_id", lockID), slog.Any("error", err))
	}
}
