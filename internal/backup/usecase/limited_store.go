package usecase

import (
	"context"

	"transit-console/internal/backup/domain/model"
	"transit-console/internal/backup/domain/repository"

	"golang.org/x/sync/semaphore"
)

// DefaultReadConcurrency caps in-flight document store calls when no limit is configured.
const DefaultReadConcurrency = 8

// limitedStore bounds the number of concurrent calls reaching the wrapped store.
type limitedStore struct {
	inner repository.DocumentStore
	sem   *semaphore.Weighted
}

// NewLimitedStore wraps store so that at most limit calls run at once.
func NewLimitedStore(store repository.DocumentStore, limit int) repository.DocumentStore {
	if limit <= 0 {
		limit = DefaultReadConcurrency
	}
	return &limitedStore{inner: store, sem: semaphore.NewWeighted(int64(limit))}
}

func (s *limitedStore) ListCollection(ctx context.Context, path string) ([]model.DocumentEntry, error) {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer s.sem.Release(1)
	return s.inner.ListCollection(ctx, path)
}

func (s *limitedStore) GetDocument(ctx context.Context, path string) (model.DocumentData, error) {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer s.sem.Release(1)
	return s.inner.GetDocument(ctx, path)
}

func (s *limitedStore) SetDocument(ctx context.Context, path string, data model.DocumentData) error {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer s.sem.Release(1)
	return s.inner.SetDocument(ctx, path, data)
}

func (s *limitedStore) DeleteDocument(ctx context.Context, path string) error {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer s.sem.Release(1)
	return s.inner.DeleteDocument(ctx, path)
}
