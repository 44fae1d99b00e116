package http

import (
	"context"

	"transit-console/internal/backup/adapter/security"
	"transit-console/internal/backup/domain/model"
	"transit-console/internal/shared/errors"

	"github.com/stretchr/testify/mock"
)

type mockBackupUsecase struct {
	mock.Mock
}

func (m *mockBackupUsecase) Collections() []model.LogicalCollection {
	args := m.Called()
	return args.Get(0).([]model.LogicalCollection)
}

func (m *mockBackupUsecase) CreateBackup(ctx context.Context, keys []string, onProgress model.BackupProgressFunc) (*model.BackupMetadata, error) {
	args := m.Called(ctx, keys, onProgress)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.BackupMetadata), args.Error(1)
}

func (m *mockBackupUsecase) ListBackups(ctx context.Context) ([]*model.BackupMetadata, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.BackupMetadata), args.Error(1)
}

func (m *mockBackupUsecase) GetBackup(ctx context.Context, backupID string) (*model.BackupMetadata, error) {
	args := m.Called(ctx, backupID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.BackupMetadata), args.Error(1)
}

func (m *mockBackupUsecase) DeleteBackup(ctx context.Context, backupID string) error {
	return m.Called(ctx, backupID).Error(0)
}

func (m *mockBackupUsecase) SweepExpired(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *mockBackupUsecase) Statistics(ctx context.Context) (*model.BackupStatistics, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.BackupStatistics), args.Error(1)
}

type mockRestoreUsecase struct {
	mock.Mock
}

func (m *mockRestoreUsecase) Start(ctx context.Context, backupID string, opts model.RestoreOptions) (string, error) {
	args := m.Called(ctx, backupID, opts)
	return args.String(0), args.Error(1)
}

func (m *mockRestoreUsecase) Cancel(restoreID string) error {
	return m.Called(restoreID).Error(0)
}

func (m *mockRestoreUsecase) Progress(ctx context.Context, restoreID string) (*model.RestoreProgress, error) {
	args := m.Called(ctx, restoreID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.RestoreProgress), args.Error(1)
}

func (m *mockRestoreUsecase) Follow(ctx context.Context, restoreID string, fn func(model.RestoreProgress) bool) error {
	return m.Called(ctx, restoreID, fn).Error(0)
}

// staticTokens accepts "super" and "clerk" tokens.
type staticTokens struct{}

func (staticTokens) ValidateToken(ctx context.Context, token string) (*security.OperatorClaims, error) {
	switch token {
	case "super":
		claims := &security.OperatorClaims{Role: "super_operator"}
		claims.Subject = "op-1"
		return claims, nil
	case "clerk":
		claims := &security.OperatorClaims{Role: "operator"}
		claims.Subject = "op-2"
		return claims, nil
	}
	return nil, errors.ErrInvalidToken
}
