package entitystore

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// MemoryStore is an in-process Store used by tests and local development.
// It honours the same contract as the remote backends: every call stands
// alone and there is no cross-record isolation.
type MemoryStore struct {
	mu       sync.RWMutex
	entities map[string]map[string]Record
	now      func() time.Time

	// FailNext, when set, fails the next matching calls. Tests use it to
	// exercise partial-failure windows.
	failMu   sync.Mutex
	failures map[string]error
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entities: make(map[string]map[string]Record),
		now:      time.Now,
		failures: make(map[string]error),
	}
}

// WithNow overrides the clock, for tests.
func (s *MemoryStore) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// FailNext arranges for the next call of the given op ("create", "get",
// "update", "delete", "filter") against entity/id to return err. An empty id
// matches any record of the entity.
func (s *MemoryStore) FailNext(op, entity, id string, err error) {
	s.failMu.Lock()
	defer s.failMu.Unlock()
	s.failures[failKey(op, entity, id)] = err
}

func failKey(op, entity, id string) string {
	return op + "|" + entity + "|" + id
}

func (s *MemoryStore) takeFailure(op, entity, id string) error {
	s.failMu.Lock()
	defer s.failMu.Unlock()
	for _, key := range []string{failKey(op, entity, id), failKey(op, entity, "")} {
		if err, ok := s.failures[key]; ok {
			delete(s.failures, key)
			return err
		}
	}
	return nil
}

func cloneData(data map[string]any) map[string]any {
	if data == nil {
		return map[string]any{}
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return map[string]any{}
	}
	var out map[string]any
	_ = json.Unmarshal(raw, &out)
	return out
}

// Create stores a new record, minting an id unless the document carries one.
func (s *MemoryStore) Create(ctx context.Context, entity string, doc map[string]any) (Record, error) {
	if err := s.takeFailure("create", entity, ""); err != nil {
		return Record{}, err
	}
	data := cloneData(doc)
	id, _ := data["id"].(string)
	if id == "" {
		id = NewID()
	}
	data["id"] = id

	s.mu.Lock()
	defer s.mu.Unlock()
	records, ok := s.entities[entity]
	if !ok {
		records = make(map[string]Record)
		s.entities[entity] = records
	}
	if _, exists := records[id]; exists {
		return Record{}, ErrDuplicateID
	}
	now := s.now()
	rec := Record{ID: id, Entity: entity, Data: data, CreatedAt: now, UpdatedAt: now}
	records[id] = rec
	return Record{ID: id, Entity: entity, Data: cloneData(data), CreatedAt: now, UpdatedAt: now}, nil
}

// Get returns a record by id.
func (s *MemoryStore) Get(ctx context.Context, entity, id string) (Record, error) {
	if err := s.takeFailure("get", entity, id); err != nil {
		return Record{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.entities[entity][id]
	if !ok {
		return Record{}, ErrNotFound
	}
	rec.Data = cloneData(rec.Data)
	return rec, nil
}

// Update merges patch into the record's data.
func (s *MemoryStore) Update(ctx context.Context, entity, id string, patch map[string]any) (Record, error) {
	if err := s.takeFailure("update", entity, id); err != nil {
		return Record{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.entities[entity][id]
	if !ok {
		return Record{}, ErrNotFound
	}
	data := cloneData(rec.Data)
	for k, v := range cloneData(patch) {
		data[k] = v
	}
	data["id"] = id
	rec.Data = data
	rec.UpdatedAt = s.now()
	s.entities[entity][id] = rec
	rec.Data = cloneData(data)
	return rec, nil
}

// Delete removes the record.
func (s *MemoryStore) Delete(ctx context.Context, entity, id string) error {
	if err := s.takeFailure("delete", entity, id); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entities[entity][id]; !ok {
		return ErrNotFound
	}
	delete(s.entities[entity], id)
	return nil
}

// Filter returns records matching q, optionally sorted and limited.
func (s *MemoryStore) Filter(ctx context.Context, entity string, q Query, opts ...FilterOption) ([]Record, error) {
	if err := s.takeFailure("filter", entity, ""); err != nil {
		return nil, err
	}
	options := buildOptions(opts)
	s.mu.RLock()
	out := make([]Record, 0)
	for _, rec := range s.entities[entity] {
		if matches(rec.Data, q) {
			rec.Data = cloneData(rec.Data)
			out = append(out, rec)
		}
	}
	s.mu.RUnlock()
	sortRecords(out, options)
	return applyLimit(out, options), nil
}
