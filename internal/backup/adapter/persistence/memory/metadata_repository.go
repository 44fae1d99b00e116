package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"transit-console/internal/backup/domain/model"
	"transit-console/internal/shared/errors"
)

// MetadataRepository stores backup metadata in a map.
type MetadataRepository struct {
	mu      sync.RWMutex
	records map[string]model.BackupMetadata
	putErr  error
}

func NewMetadataRepository() *MetadataRepository {
	return &MetadataRepository{records: make(map[string]model.BackupMetadata)}
}

// FailPuts makes Put return err until cleared with nil.
func (r *MetadataRepository) FailPuts(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.putErr = err
}

func (r *MetadataRepository) Put(ctx context.Context, meta *model.BackupMetadata) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.putErr != nil {
		return r.putErr
	}
	record := *meta
	record.Collections = append([]string(nil), meta.Collections...)
	record.IsExpired = false
	r.records[meta.ID] = record
	return nil
}

func (r *MetadataRepository) Get(ctx context.Context, id string) (*model.BackupMetadata, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	record, ok := r.records[id]
	if !ok {
		return nil, errors.ErrBackupNotFound
	}
	return &record, nil
}

func (r *MetadataRepository) List(ctx context.Context) ([]*model.BackupMetadata, error) {
	return r.filter(func(model.BackupMetadata) bool { return true }), nil
}

func (r *MetadataRepository) ListExpired(ctx context.Context, now time.Time) ([]*model.BackupMetadata, error) {
	return r.filter(func(m model.BackupMetadata) bool { return m.DueForSweep(now) }), nil
}

func (r *MetadataRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.records, id)
	return nil
}

func (r *MetadataRepository) filter(keep func(model.BackupMetadata) bool) []*model.BackupMetadata {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*model.BackupMetadata, 0, len(r.records))
	for _, record := range r.records {
		if keep(record) {
			rec := record
			out = append(out, &rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}
