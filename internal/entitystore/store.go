package entitystore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Store is the remote entity service consumed by every domain package. Each
// call is an independent round trip: there is no batching and no transaction
// spanning multiple records. Callers that mutate several records own their
// own atomicity discipline.
type Store interface {
	Create(ctx context.Context, entity string, doc map[string]any) (Record, error)
	Get(ctx context.Context, entity, id string) (Record, error)
	Update(ctx context.Context, entity, id string, patch map[string]any) (Record, error)
	Delete(ctx context.Context, entity, id string) error
	Filter(ctx context.Context, entity string, q Query, opts ...FilterOption) ([]Record, error)
}

// Query matches records whose data fields equal every listed value.
type Query map[string]any

// Record is a stored document.
type Record struct {
	ID        string
	Entity    string
	Data      map[string]any
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ErrNotFound indicates the record does not exist.
var ErrNotFound = errors.New("entitystore: record not found")

// ErrDuplicateID indicates an explicit id collided with an existing record.
var ErrDuplicateID = errors.New("entitystore: duplicate record id")

// FilterOptions carries optional sort and limit parameters.
type FilterOptions struct {
	SortField string
	SortDesc  bool
	Limit     int
}

// FilterOption mutates FilterOptions.
type FilterOption func(*FilterOptions)

// WithSort orders results by a data field.
func WithSort(field string, desc bool) FilterOption {
	return func(o *FilterOptions) {
		o.SortField = field
		o.SortDesc = desc
	}
}

// WithLimit caps the number of returned records.
func WithLimit(n int) FilterOption {
	return func(o *FilterOptions) { o.Limit = n }
}

func buildOptions(opts []FilterOption) FilterOptions {
	var o FilterOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Decode unmarshals the record data into dst via a JSON round trip.
func (r Record) Decode(dst any) error {
	raw, err := json.Marshal(r.Data)
	if err != nil {
		return fmt.Errorf("entitystore: encode record %s/%s: %w", r.Entity, r.ID, err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("entitystore: decode record %s/%s: %w", r.Entity, r.ID, err)
	}
	return nil
}

// Doc converts a struct into the map form the store accepts.
func Doc(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("entitystore: encode document: %w", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("entitystore: encode document: %w", err)
	}
	return doc, nil
}

// MustDoc is Doc for values known to marshal cleanly (package-local models).
func MustDoc(v any) map[string]any {
	doc, err := Doc(v)
	if err != nil {
		panic(err)
	}
	return doc
}
