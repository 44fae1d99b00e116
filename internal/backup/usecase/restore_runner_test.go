package usecase

import (
	"context"
	"testing"
	"time"

	"transit-console/internal/backup/domain/model"
	"transit-console/internal/shared/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRestoreRunner_RunsAndPublishes(t *testing.T) {
	s := newTestStack(t)
	seedTransitData(s.docs)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	meta, err := s.service.CreateBackup(ctx, []string{"routes"}, nil)
	require.NoError(t, err)
	require.NoError(t, s.docs.DeleteDocument(ctx, "routes/r1"))

	s.runner.newID = func() string { return "run-1" }
	id, err := s.runner.Start(ctx, meta.ID, model.RestoreOptions{Mode: "overwrite"})
	require.NoError(t, err)
	assert.Equal(t, "run-1", id)

	result, err := s.runner.Wait(ctx, id)
	require.NoError(t, err)
	require.True(t, result.Success)
	assert.Equal(t, 2, result.DocumentsRestored)

	progress, err := s.runner.Progress(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.RestorePhaseCompleted, progress.Phase)
	assert.Equal(t, "run-1", progress.RestoreID)
	assert.Equal(t, meta.ID, progress.BackupID)
	assert.Equal(t, model.RestoreModeOverwrite, progress.Mode)
	assert.Equal(t, 2, progress.ProcessedDocuments)
}

func TestRestoreRunner_StartValidates(t *testing.T) {
	s := newTestStack(t)
	ctx := context.Background()

	_, err := s.runner.Start(ctx, "backup_1", model.RestoreOptions{Mode: "wipe"})
	assert.ErrorIs(t, err, errors.ErrInvalidRestoreMode)

	_, err = s.runner.Start(ctx, "backup_1", model.RestoreOptions{})
	assert.ErrorIs(t, err, errors.ErrBackupNotFound)

	assert.ErrorIs(t, s.runner.Cancel("missing"), errors.ErrRestoreNotFound)
	_, err = s.runner.Progress(ctx, "missing")
	assert.ErrorIs(t, err, errors.ErrRestoreNotFound)
}

func TestRestoreRunner_OutlivesRequestContext(t *testing.T) {
	s := newTestStack(t)
	seedTransitData(s.docs)
	meta, err := s.service.CreateBackup(context.Background(), []string{"routes"}, nil)
	require.NoError(t, err)

	reqCtx, cancelReq := context.WithCancel(context.Background())
	id, err := s.runner.Start(reqCtx, meta.ID, model.RestoreOptions{})
	require.NoError(t, err)
	cancelReq()

	waitCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	result, err := s.runner.Wait(waitCtx, id)
	require.NoError(t, err)
	assert.Equal(t, model.RestorePhaseCompleted, result.Phase)

	require.NoError(t, s.runner.Shutdown(waitCtx))
}

func TestRestoreRunner_FollowAfterCompletionReturnsTerminalPhase(t *testing.T) {
	s := newTestStack(t)
	seedTransitData(s.docs)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	meta, err := s.service.CreateBackup(ctx, []string{"routes"}, nil)
	require.NoError(t, err)
	id, err := s.runner.Start(ctx, meta.ID, model.RestoreOptions{})
	require.NoError(t, err)
	_, err = s.runner.Wait(ctx, id)
	require.NoError(t, err)

	var phases []model.RestorePhase
	require.NoError(t, s.runner.Follow(ctx, id, func(p model.RestoreProgress) bool {
		phases = append(phases, p.Phase)
		return true
	}))
	assert.Equal(t, []model.RestorePhase{model.RestorePhaseCompleted}, phases)
}

func TestRestoreRunner_ForgetsFinishedRuns(t *testing.T) {
	s := newTestStack(t)
	s.runner.retainFor = 20 * time.Millisecond
	seedTransitData(s.docs)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	meta, err := s.service.CreateBackup(ctx, []string{"routes"}, nil)
	require.NoError(t, err)
	id, err := s.runner.Start(ctx, meta.ID, model.RestoreOptions{})
	require.NoError(t, err)

	result, err := s.runner.Wait(ctx, id)
	require.NoError(t, err)
	assert.True(t, result.Success)

	require.Eventually(t, func() bool {
		s.runner.mu.Lock()
		defer s.runner.mu.Unlock()
		return len(s.runner.runs) == 0
	}, time.Second, 5*time.Millisecond)

	_, err = s.runner.Wait(ctx, id)
	assert.ErrorIs(t, err, errors.ErrRestoreNotFound)
	assert.ErrorIs(t, s.runner.Cancel(id), errors.ErrRestoreNotFound)

	progress, err := s.runner.Progress(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.RestorePhaseCompleted, progress.Phase)
}
