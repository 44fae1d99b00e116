package usecase

import (
	"context"
	"fmt"

	"transit-console/internal/backup/domain/model"
	"transit-console/internal/backup/domain/repository"
	"transit-console/internal/shared/errors"
	"transit-console/internal/shared/logger"
)

// Walker captures one logical collection. Walkers only read.
type Walker interface {
	Collect(ctx context.Context, path string) (*model.CollectionSnapshot, error)
}

// TreeWalker captures flat collections with a single list call.
type TreeWalker struct {
	store repository.DocumentStore
	log   logger.Logger
}

// NewTreeWalker creates a walker over store.
func NewTreeWalker(store repository.DocumentStore, log logger.Logger) *TreeWalker {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &TreeWalker{store: store, log: log.WithComponent("tree_walker")}
}

// Collect lists path and returns its documents with timestamps encoded.
// A collection the store reports as missing is captured as empty.
func (w *TreeWalker) Collect(ctx context.Context, path string) (*model.CollectionSnapshot, error) {
	entries, err := listOrEmpty(ctx, w.store, path)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", path, err)
	}

	docs := make([]model.DocumentEntry, 0, len(entries))
	for _, e := range entries {
		docs = append(docs, model.DocumentEntry{ID: e.ID, Data: model.EncodeDocument(e.Data)})
	}
	w.log.WithContext(ctx).Debugf("Collected %d documents from %s", len(docs), path)
	return model.NewFlatSnapshot(path, docs), nil
}

// collectSet lists path into an id->data map with timestamps encoded.
func collectSet(ctx context.Context, store repository.DocumentStore, path string) (model.DocumentSet, error) {
	entries, err := listOrEmpty(ctx, store, path)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", path, err)
	}
	set := make(model.DocumentSet, len(entries))
	for _, e := range entries {
		set[e.ID] = model.EncodeDocument(e.Data)
	}
	return set, nil
}

func listOrEmpty(ctx context.Context, store repository.DocumentStore, path string) ([]model.DocumentEntry, error) {
	entries, err := store.ListCollection(ctx, path)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return entries, nil
}
