package versions

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/brightbooks-erp/brightbooks/internal/entitystore"
	"github.com/brightbooks-erp/brightbooks/internal/shared"
)

// EntityRecordVersions is the store entity holding the append-only snapshot log.
const EntityRecordVersions = "record_versions"

// RecordVersion is one snapshot of a record taken before a lock-protected edit.
type RecordVersion struct {
	ID            string         `json:"id"`
	EntityName    string         `json:"entity_name"`
	RecordID      string         `json:"record_id"`
	VersionNumber int            `json:"version_number"`
	Snapshot      map[string]any `json:"snapshot"`
	ChangedByID   string         `json:"changed_by_id"`
	ChangedByName string         `json:"changed_by_name"`
	SessionID     string         `json:"session_id"`
	CreatedAt     time.Time      `json:"created_at"`
}

// Recorder appends record snapshots with a monotonic version number per
// (entity_name, record_id). It never updates or deletes existing versions.
type Recorder struct {
	store  entitystore.Store
	logger *slog.Logger
	now    func() time.Time
}

func NewRecorder(store entitystore.Store, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{store: store, logger: logger, now: time.Now}
}

// WithNow overrides the clock, for tests.
func (r *Recorder) WithNow(now func() time.Time) {
	r.now = now
}

// Record appends a snapshot of data for (entityName, recordID) attributed to
// actor. The version number is one past the highest existing version; two
// concurrent writers may mint the same number, which the log tolerates since
// versions are ordered by created_at within a number.
func (r *Recorder) Record(ctx context.Context, entityName, recordID string, data any, actor shared.Session) error {
	snapshot, err := entitystore.Doc(data)
	if err != nil {
		return fmt.Errorf("snapshot %s/%s: %w", entityName, recordID, err)
	}

	next, err := r.nextVersion(ctx, entityName, recordID)
	if err != nil {
		return err
	}

	doc := map[string]any{
		"entity_name":     entityName,
		"record_id":       recordID,
		"version_number":  next,
		"snapshot":        snapshot,
		"changed_by_id":   actor.UserID,
		"changed_by_name": actor.UserName,
		"session_id":      actor.ID,
		"created_at":      r.now().UTC().Format(time.RFC3339Nano),
	}
	if _, err := r.store.Create(ctx, EntityRecordVersions, doc); err != nil {
		return fmt.Errorf("record version %s/%s: %w", entityName, recordID, err)
	}
	return nil
}

// History returns all versions for (entityName, recordID), oldest first.
func (r *Recorder) History(ctx context.Context, entityName, recordID string) ([]RecordVersion, error) {
	records, err := r.store.Filter(ctx, EntityRecordVersions,
		entitystore.Query{"entity_name": entityName, "record_id": recordID},
		entitystore.WithSort("version_number", false))
	if err != nil {
		return nil, fmt.Errorf("list versions %s/%s: %w", entityName, recordID, err)
	}
	versions := make([]RecordVersion, 0, len(records))
	for _, rec := range records {
		var v RecordVersion
		if err := rec.Decode(&v); err != nil {
			r.logger.Warn("skipping undecodable version", slog.String("id", rec.ID), slog.Any("error", err))
			continue
		}
		v.ID = rec.ID
		versions = append(versions, v)
	}
	return versions, nil
}

func (r *Recorder) nextVersion(ctx context.Context, entityName, recordID string) (int, error) {
	records, err := r.store.Filter(ctx, EntityRecordVersions,
		entitystore.Query{"entity_name": entityName, "record_id": recordID},
		entitystore.WithSort("version_number", true), entitystore.WithLimit(1))
	if err != nil {
		return 0, fmt.Errorf("resolve next version %s/%s: %w", entityName, recordID, err)
	}
	if len(records) == 0 {
		return 1, nil
	}
	var latest RecordVersion
	if err := records[0].Decode(&latest); err != nil {
		return 0, fmt.Errorf("decode latest version %s/%s: %w", entityName, recordID, err)
	}
	return latest.VersionNumber + 1, nil
}
