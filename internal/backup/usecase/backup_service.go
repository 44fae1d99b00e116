package usecase

import (
	"context"
	"fmt"
	"time"

	"transit-console/internal/backup/domain/model"
	"transit-console/internal/backup/domain/repository"
	"transit-console/internal/shared/contextkeys"
	"transit-console/internal/shared/logger"
)

// BackupService creates and manages backups for operators.
type BackupService struct {
	registry *model.CollectionRegistry
	builder  *SnapshotBuilder
	store    *SnapshotStore
	audit    repository.AuditSink
	log      logger.Logger
}

// NewBackupService combines snapshot building and storage.
func NewBackupService(registry *model.CollectionRegistry, builder *SnapshotBuilder, store *SnapshotStore, audit repository.AuditSink, log logger.Logger) *BackupService {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &BackupService{
		registry: registry,
		builder:  builder,
		store:    store,
		audit:    audit,
		log:      log.WithComponent("backup_service"),
	}
}

// Collections lists the logical collections available for backup.
func (s *BackupService) Collections() []model.LogicalCollection {
	return s.registry.All()
}

// CreateBackup snapshots keys and stores the result.
func (s *BackupService) CreateBackup(ctx context.Context, keys []string, onProgress model.BackupProgressFunc) (*model.BackupMetadata, error) {
	ctx = context.WithValue(ctx, contextkeys.OperationKey, "backup.create")
	snapshot, err := s.builder.Build(ctx, keys, onProgress)
	if err != nil {
		s.log.WithContext(ctx).WithError(err).Error("Snapshot build failed")
		if s.audit != nil {
			s.audit.LogActivity(ctx, model.Activity{
				Kind:        model.ActivityBackupFailed,
				Description: fmt.Sprintf("Backup failed: %v", err),
				Severity:    model.SeverityError,
				OperatorID:  contextkeys.OperatorID(ctx),
				Timestamp:   time.Now().UTC(),
				Metadata: map[string]interface{}{
					"error":       err.Error(),
					"collections": keys,
				},
			})
		}
		return nil, err
	}
	return s.store.Create(ctx, snapshot, onProgress)
}

func (s *BackupService) ListBackups(ctx context.Context) ([]*model.BackupMetadata, error) {
	return s.store.List(ctx)
}

func (s *BackupService) GetBackup(ctx context.Context, backupID string) (*model.BackupMetadata, error) {
	return s.store.Get(ctx, backupID)
}

func (s *BackupService) DeleteBackup(ctx context.Context, backupID string) error {
	return s.store.Delete(ctx, backupID)
}

func (s *BackupService) SweepExpired(ctx context.Context) (int, error) {
	return s.store.SweepExpired(ctx)
}

func (s *BackupService) Statistics(ctx context.Context) (*model.BackupStatistics, error) {
	return s.store.Statistics(ctx)
}
