package entitystore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps each record as a JSON value plus a per-entity id set.
// Filtering loads candidates and evaluates the query client side; the
// backend offers no query language and no transactions, which is exactly
// the guarantee level the rest of the system is written against.
type RedisStore struct {
	client *redis.Client
	now    func() time.Time
}

type redisDocument struct {
	ID        string         `json:"id"`
	Data      map[string]any `json:"data"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// NewRedisStore constructs a RedisStore on top of an existing client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, now: time.Now}
}

// WithNow overrides the clock, for tests.
func (s *RedisStore) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

func redisRecordKey(entity, id string) string {
	return fmt.Sprintf("es:%s:%s", entity, id)
}

func redisIndexKey(entity string) string {
	return fmt.Sprintf("es:%s:ids", entity)
}

// Create stores a new record and registers it in the entity index.
func (s *RedisStore) Create(ctx context.Context, entity string, doc map[string]any) (Record, error) {
	data := cloneData(doc)
	id, _ := data["id"].(string)
	if id == "" {
		id = NewID()
	}
	data["id"] = id

	now := s.now()
	payload, err := json.Marshal(redisDocument{ID: id, Data: data, CreatedAt: now, UpdatedAt: now})
	if err != nil {
		return Record{}, fmt.Errorf("entitystore: encode %s/%s: %w", entity, id, err)
	}
	ok, err := s.client.SetNX(ctx, redisRecordKey(entity, id), payload, 0).Result()
	if err != nil {
		return Record{}, fmt.Errorf("entitystore: create %s/%s: %w", entity, id, err)
	}
	if !ok {
		return Record{}, ErrDuplicateID
	}
	if err := s.client.SAdd(ctx, redisIndexKey(entity), id).Err(); err != nil {
		return Record{}, fmt.Errorf("entitystore: index %s/%s: %w", entity, id, err)
	}
	return Record{ID: id, Entity: entity, Data: data, CreatedAt: now, UpdatedAt: now}, nil
}

func (s *RedisStore) load(ctx context.Context, entity, id string) (redisDocument, error) {
	raw, err := s.client.Get(ctx, redisRecordKey(entity, id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return redisDocument{}, ErrNotFound
		}
		return redisDocument{}, fmt.Errorf("entitystore: get %s/%s: %w", entity, id, err)
	}
	var doc redisDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return redisDocument{}, fmt.Errorf("entitystore: decode %s/%s: %w", entity, id, err)
	}
	return doc, nil
}

// Get returns a record by id.
func (s *RedisStore) Get(ctx context.Context, entity, id string) (Record, error) {
	doc, err := s.load(ctx, entity, id)
	if err != nil {
		return Record{}, err
	}
	return Record{ID: doc.ID, Entity: entity, Data: doc.Data, CreatedAt: doc.CreatedAt, UpdatedAt: doc.UpdatedAt}, nil
}

// Update merges patch into the stored document. Read-modify-write without a
// guard: concurrent writers follow last-write-wins, as the contract states.
func (s *RedisStore) Update(ctx context.Context, entity, id string, patch map[string]any) (Record, error) {
	doc, err := s.load(ctx, entity, id)
	if err != nil {
		return Record{}, err
	}
	if doc.Data == nil {
		doc.Data = map[string]any{}
	}
	for k, v := range cloneData(patch) {
		doc.Data[k] = v
	}
	doc.Data["id"] = id
	doc.UpdatedAt = s.now()
	payload, err := json.Marshal(doc)
	if err != nil {
		return Record{}, fmt.Errorf("entitystore: encode %s/%s: %w", entity, id, err)
	}
	if err := s.client.Set(ctx, redisRecordKey(entity, id), payload, 0).Err(); err != nil {
		return Record{}, fmt.Errorf("entitystore: update %s/%s: %w", entity, id, err)
	}
	return Record{ID: id, Entity: entity, Data: doc.Data, CreatedAt: doc.CreatedAt, UpdatedAt: doc.UpdatedAt}, nil
}

// Delete removes the record and its index entry.
func (s *RedisStore) Delete(ctx context.Context, entity, id string) error {
	removed, err := s.client.Del(ctx, redisRecordKey(entity, id)).Result()
	if err != nil {
		return fmt.Errorf("entitystore: delete %s/%s: %w", entity, id, err)
	}
	if removed == 0 {
		return ErrNotFound
	}
	if err := s.client.SRem(ctx, redisIndexKey(entity), id).Err(); err != nil {
		return fmt.Errorf("entitystore: deindex %s/%s: %w", entity, id, err)
	}
	return nil
}

// Filter loads every record of the entity and evaluates q locally.
func (s *RedisStore) Filter(ctx context.Context, entity string, q Query, opts ...FilterOption) ([]Record, error) {
	options := buildOptions(opts)
	ids, err := s.client.SMembers(ctx, redisIndexKey(entity)).Result()
	if err != nil {
		return nil, fmt.Errorf("entitystore: list %s: %w", entity, err)
	}
	out := make([]Record, 0, len(ids))
	for _, id := range ids {
		doc, err := s.load(ctx, entity, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				// Index entry outlived the record; skip.
				continue
			}
			return nil, err
		}
		if matches(doc.Data, q) {
			out = append(out, Record{ID: doc.ID, Entity: entity, Data: doc.Data, CreatedAt: doc.CreatedAt, UpdatedAt: doc.UpdatedAt})
		}
	}
	sortRecords(out, options)
	return applyLimit(out, options), nil
}
