// Package memory holds process-local implementations of the backup ports.
// They back the memory backends and the usecase tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"transit-console/internal/backup/domain/model"
	"transit-console/internal/shared/docpath"
	"transit-console/internal/shared/errors"
)

// Operation names accepted by DocumentStore.FailOn.
const (
	OpList   = "list"
	OpGet    = "get"
	OpSet    = "set"
	OpDelete = "delete"
)

// DocumentStore keeps documents in a map keyed by full path.
type DocumentStore struct {
	mu       sync.RWMutex
	docs     map[string]model.DocumentData
	failures map[string]error
	writes   int
}

// NewDocumentStore creates an empty store.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		docs:     make(map[string]model.DocumentData),
		failures: make(map[string]error),
	}
}

// FailOn makes op on path return err until cleared with a nil err.
func (s *DocumentStore) FailOn(op, path string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := op + ":" + path
	if err == nil {
		delete(s.failures, key)
		return
	}
	s.failures[key] = err
}

func (s *DocumentStore) failure(op, path string) error {
	return s.failures[op+":"+path]
}

// ListCollection returns direct children of path ordered by id.
func (s *DocumentStore) ListCollection(ctx context.Context, path string) ([]model.DocumentEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.failure(OpList, path); err != nil {
		return nil, err
	}

	entries := []model.DocumentEntry{}
	for p, data := range s.docs {
		parent, err := docpath.Parent(p)
		if err != nil || parent != path {
			continue
		}
		entries = append(entries, model.DocumentEntry{ID: docpath.ID(p), Data: model.CloneDocument(data)})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
	return entries, nil
}

// GetDocument returns a copy of the document at path.
func (s *DocumentStore) GetDocument(ctx context.Context, path string) (model.DocumentData, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.failure(OpGet, path); err != nil {
		return nil, err
	}
	data, ok := s.docs[path]
	if !ok {
		return nil, errors.ErrDocumentNotFound
	}
	return model.CloneDocument(data), nil
}

// SetDocument replaces the document at path.
func (s *DocumentStore) SetDocument(ctx context.Context, path string, data model.DocumentData) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := docpath.ValidateDocumentPath(path); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure(OpSet, path); err != nil {
		return err
	}
	if data == nil {
		data = model.DocumentData{}
	}
	s.docs[path] = model.CloneDocument(data)
	s.writes++
	return nil
}

// DeleteDocument removes the document at path. Missing documents are ignored.
func (s *DocumentStore) DeleteDocument(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure(OpDelete, path); err != nil {
		return err
	}
	delete(s.docs, path)
	return nil
}

// Put seeds a document without counting it as a write.
func (s *DocumentStore) Put(path string, data model.DocumentData) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[path] = model.CloneDocument(data)
}

// Paths returns every stored path in lexical order.
func (s *DocumentStore) Paths() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	paths := make([]string, 0, len(s.docs))
	for p := range s.docs {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Writes returns how many SetDocument calls succeeded.
func (s *DocumentStore) Writes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writes
}
