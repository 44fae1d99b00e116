package usecase

import (
	"context"

	"transit-console/internal/backup/domain/model"
)

// BackupUsecase is the backup surface used by the HTTP and CLI adapters.
type BackupUsecase interface {
	Collections() []model.LogicalCollection
	CreateBackup(ctx context.Context, keys []string, onProgress model.BackupProgressFunc) (*model.BackupMetadata, error)
	ListBackups(ctx context.Context) ([]*model.BackupMetadata, error)
	GetBackup(ctx context.Context, backupID string) (*model.BackupMetadata, error)
	DeleteBackup(ctx context.Context, backupID string) error
	SweepExpired(ctx context.Context) (int, error)
	Statistics(ctx context.Context) (*model.BackupStatistics, error)
}

// RestoreUsecase is the asynchronous restore surface.
type RestoreUsecase interface {
	Start(ctx context.Context, backupID string, opts model.RestoreOptions) (string, error)
	Cancel(restoreID string) error
	Progress(ctx context.Context, restoreID string) (*model.RestoreProgress, error)
	Follow(ctx context.Context, restoreID string, fn func(model.RestoreProgress) bool) error
}

var (
	_ BackupUsecase  = (*BackupService)(nil)
	_ RestoreUsecase = (*RestoreRunner)(nil)
)
