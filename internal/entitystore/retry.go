package entitystore

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryingStore retries individual store calls on transient failure. Retry
// granularity is strictly one call: a balance read-modify-write is never
// replayed as a unit, only the single round trip that failed.
type RetryingStore struct {
	inner       Store
	maxRetries  uint64
	baseBackoff time.Duration
}

// NewRetryingStore wraps inner with exponential backoff retries.
func NewRetryingStore(inner Store, maxRetries uint64, baseBackoff time.Duration) *RetryingStore {
	if baseBackoff <= 0 {
		baseBackoff = 100 * time.Millisecond
	}
	return &RetryingStore{inner: inner, maxRetries: maxRetries, baseBackoff: baseBackoff}
}

func (s *RetryingStore) policy(ctx context.Context) backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.baseBackoff
	return backoff.WithContext(backoff.WithMaxRetries(bo, s.maxRetries), ctx)
}

// permanent marks errors that retrying cannot fix.
func permanent(err error) error {
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrDuplicateID) {
		return backoff.Permanent(err)
	}
	return err
}

// Create retries the underlying Create.
func (s *RetryingStore) Create(ctx context.Context, entity string, doc map[string]any) (Record, error) {
	var rec Record
	err := backoff.Retry(func() error {
		var err error
		rec, err = s.inner.Create(ctx, entity, doc)
		return permanent(err)
	}, s.policy(ctx))
	return rec, err
}

// Get retries the underlying Get.
func (s *RetryingStore) Get(ctx context.Context, entity, id string) (Record, error) {
	var rec Record
	err := backoff.Retry(func() error {
		var err error
		rec, err = s.inner.Get(ctx, entity, id)
		return permanent(err)
	}, s.policy(ctx))
	return rec, err
}

// Update retries the underlying Update.
func (s *RetryingStore) Update(ctx context.Context, entity, id string, patch map[string]any) (Record, error) {
	var rec Record
	err := backoff.Retry(func() error {
		var err error
		rec, err = s.inner.Update(ctx, entity, id, patch)
		return permanent(err)
	}, s.policy(ctx))
	return rec, err
}

// Delete retries the underlying Delete.
func (s *RetryingStore) Delete(ctx context.Context, entity, id string) error {
	return backoff.Retry(func() error {
		return permanent(s.inner.Delete(ctx, entity, id))
	}, s.policy(ctx))
}

// Filter retries the underlying Filter.
func (s *RetryingStore) Filter(ctx context.Context, entity string, q Query, opts ...FilterOption) ([]Record, error) {
	var out []Record
	err := backoff.Retry(func() error {
		var err error
		out, err = s.inner.Filter(ctx, entity, q, opts...)
		return permanent(err)
	}, s.policy(ctx))
	return out, err
}
