package entitystore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps every entity in a single generic documents table. Each
// method issues exactly one statement and never opens a transaction, so the
// backend provides the same guarantee level as the remote service it stands
// in for: independent calls, no multi-record atomicity.
type PostgresStore struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewPostgresStore constructs a PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, now: time.Now}
}

// EnsureSchema creates the documents table when it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS records (
			entity     TEXT        NOT NULL,
			id         TEXT        NOT NULL,
			data       JSONB       NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (entity, id)
		)`)
	if err != nil {
		return fmt.Errorf("entitystore: ensure schema: %w", err)
	}
	_, err = s.pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS records_data_idx ON records USING GIN (data jsonb_path_ops)`)
	if err != nil {
		return fmt.Errorf("entitystore: ensure schema: %w", err)
	}
	return nil
}

// Create inserts a new document row.
func (s *PostgresStore) Create(ctx context.Context, entity string, doc map[string]any) (Record, error) {
	data := cloneData(doc)
	id, _ := data["id"].(string)
	if id == "" {
		id = NewID()
	}
	data["id"] = id
	payload, err := json.Marshal(data)
	if err != nil {
		return Record{}, fmt.Errorf("entitystore: encode %s/%s: %w", entity, id, err)
	}
	var created, updated time.Time
	err = s.pool.QueryRow(ctx,
		`INSERT INTO records (entity, id, data) VALUES ($1, $2, $3) RETURNING created_at, updated_at`,
		entity, id, payload,
	).Scan(&created, &updated)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Record{}, ErrDuplicateID
		}
		return Record{}, fmt.Errorf("entitystore: create %s/%s: %w", entity, id, err)
	}
	return Record{ID: id, Entity: entity, Data: data, CreatedAt: created, UpdatedAt: updated}, nil
}

// Get returns a record by id.
func (s *PostgresStore) Get(ctx context.Context, entity, id string) (Record, error) {
	rec := Record{ID: id, Entity: entity}
	var payload []byte
	err := s.pool.QueryRow(ctx,
		`SELECT data, created_at, updated_at FROM records WHERE entity=$1 AND id=$2`,
		entity, id,
	).Scan(&payload, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("entitystore: get %s/%s: %w", entity, id, err)
	}
	if err := json.Unmarshal(payload, &rec.Data); err != nil {
		return Record{}, fmt.Errorf("entitystore: decode %s/%s: %w", entity, id, err)
	}
	return rec, nil
}

// Update shallow-merges patch into the stored document.
func (s *PostgresStore) Update(ctx context.Context, entity, id string, patch map[string]any) (Record, error) {
	data := cloneData(patch)
	data["id"] = id
	payload, err := json.Marshal(data)
	if err != nil {
		return Record{}, fmt.Errorf("entitystore: encode %s/%s: %w", entity, id, err)
	}
	rec := Record{ID: id, Entity: entity}
	var merged []byte
	err = s.pool.QueryRow(ctx,
		`UPDATE records SET data = data || $3::jsonb, updated_at = NOW() WHERE entity=$1 AND id=$2 RETURNING data, created_at, updated_at`,
		entity, id, payload,
	).Scan(&merged, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("entitystore: update %s/%s: %w", entity, id, err)
	}
	if err := json.Unmarshal(merged, &rec.Data); err != nil {
		return Record{}, fmt.Errorf("entitystore: decode %s/%s: %w", entity, id, err)
	}
	return rec, nil
}

// Delete removes the document row.
func (s *PostgresStore) Delete(ctx context.Context, entity, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM records WHERE entity=$1 AND id=$2`, entity, id)
	if err != nil {
		return fmt.Errorf("entitystore: delete %s/%s: %w", entity, id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

var sortFieldPattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// Filter evaluates q as a jsonb containment query.
func (s *PostgresStore) Filter(ctx context.Context, entity string, q Query, opts ...FilterOption) ([]Record, error) {
	options := buildOptions(opts)
	match, err := json.Marshal(map[string]any(q))
	if err != nil {
		return nil, fmt.Errorf("entitystore: encode query for %s: %w", entity, err)
	}
	sql := `SELECT id, data, created_at, updated_at FROM records WHERE entity=$1 AND data @> $2::jsonb`
	if options.SortField != "" {
		if !sortFieldPattern.MatchString(options.SortField) {
			return nil, fmt.Errorf("entitystore: invalid sort field %q", options.SortField)
		}
		direction := "ASC"
		if options.SortDesc {
			direction = "DESC"
		}
		sql += fmt.Sprintf(` ORDER BY data->>'%s' %s`, options.SortField, direction)
	} else {
		sql += ` ORDER BY id ASC`
	}
	if options.Limit > 0 {
		sql += fmt.Sprintf(` LIMIT %d`, options.Limit)
	}
	rows, err := s.pool.Query(ctx, sql, entity, match)
	if err != nil {
		return nil, fmt.Errorf("entitystore: filter %s: %w", entity, err)
	}
	defer rows.Close()
	var out []Record
	for rows.Next() {
		rec := Record{Entity: entity}
		var payload []byte
		if err := rows.Scan(&rec.ID, &payload, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("entitystore: filter %s: %w", entity, err)
		}
		if err := json.Unmarshal(payload, &rec.Data); err != nil {
			return nil, fmt.Errorf("entitystore: decode %s/%s: %w", entity, rec.ID, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("entitystore: filter %s: %w", entity, err)
	}
	return out, nil
}
