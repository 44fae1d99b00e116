package persistence

import (
	"context"
	"testing"
	"time"

	"transit-console/internal/backup/domain/model"
	"transit-console/internal/backup/domain/repository"
	"transit-console/internal/shared/errors"
	"transit-console/internal/shared/logger"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ repository.ProgressPublisher = (*RedisProgressStore)(nil)

func createTestRedisClient(t *testing.T) *redis.Client {
	t.Helper()
	client := redis.NewClient(&redis.Options{
		Addr:         "localhost:6379",
		DB:           15,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		t.Skip("Redis not available for testing:", err)
	}
	t.Cleanup(func() {
		cleanupCtx, cleanupCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cleanupCancel()
		client.FlushDB(cleanupCtx)
		client.Close()
	})
	return client
}

func progressAt(id string, phase model.RestorePhase, processed int) model.RestoreProgress {
	return model.RestoreProgress{
		RestoreID:          id,
		BackupID:           "backup_1",
		Mode:               model.RestoreModeMissingOnly,
		Phase:              phase,
		TotalDocuments:     10,
		ProcessedDocuments: processed,
		Errors:             []string{},
	}
}

func TestRedisProgressStore_LatestReturnsNewestEntry(t *testing.T) {
	client := createTestRedisClient(t)
	store := NewRedisProgressStore(client, 50, logger.NewNopLogger())
	ctx := context.Background()

	require.NoError(t, store.Publish(ctx, progressAt("r-latest", model.RestorePhaseAnalyzing, 0)))
	require.NoError(t, store.Publish(ctx, progressAt("r-latest", model.RestorePhaseRestoring, 4)))

	latest, err := store.Latest(ctx, "r-latest")
	require.NoError(t, err)
	assert.Equal(t, model.RestorePhaseRestoring, latest.Phase)
	assert.Equal(t, 4, latest.ProcessedDocuments)
	assert.Equal(t, "backup_1", latest.BackupID)
}

func TestRedisProgressStore_LatestUnknownRun(t *testing.T) {
	client := createTestRedisClient(t)
	store := NewRedisProgressStore(client, 50, nil)

	_, err := store.Latest(context.Background(), "missing")
	assert.ErrorIs(t, err, errors.ErrRestoreNotFound)
}

func TestRedisProgressStore_FollowStopsAtTerminalPhase(t *testing.T) {
	client := createTestRedisClient(t)
	store := NewRedisProgressStore(client, 50, nil)
	store.blockTime = 100 * time.Millisecond
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	require.NoError(t, store.Publish(ctx, progressAt("r-follow", model.RestorePhaseAnalyzing, 0)))

	received := make(chan []model.RestorePhase, 1)
	go func() {
		var phases []model.RestorePhase
		err := store.Follow(ctx, "r-follow", func(p model.RestoreProgress) bool {
			phases = append(phases, p.Phase)
			return true
		})
		assert.NoError(t, err)
		received <- phases
	}()

	time.Sleep(200 * time.Millisecond)
	require.NoError(t, store.Publish(ctx, progressAt("r-follow", model.RestorePhaseRestoring, 5)))
	require.NoError(t, store.Publish(ctx, progressAt("r-follow", model.RestorePhaseCompleted, 10)))

	select {
	case phases := <-received:
		assert.Equal(t, []model.RestorePhase{
			model.RestorePhaseAnalyzing,
			model.RestorePhaseRestoring,
			model.RestorePhaseCompleted,
		}, phases)
	case <-ctx.Done():
		t.Fatal("follow did not finish")
	}
}

func TestRedisProgressStore_FollowAfterTerminalPhaseReturns(t *testing.T) {
	client := createTestRedisClient(t)
	store := NewRedisProgressStore(client, 50, nil)
	store.blockTime = 100 * time.Millisecond
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, store.Publish(ctx, progressAt("r-done", model.RestorePhaseRestoring, 5)))
	require.NoError(t, store.Publish(ctx, progressAt("r-done", model.RestorePhaseCompleted, 10)))

	var phases []model.RestorePhase
	err := store.Follow(ctx, "r-done", func(p model.RestoreProgress) bool {
		phases = append(phases, p.Phase)
		return true
	})
	require.NoError(t, err)
	assert.Equal(t, []model.RestorePhase{model.RestorePhaseCompleted}, phases)
}

func TestRedisProgressStore_TrimsStream(t *testing.T) {
	client := createTestRedisClient(t)
	store := NewRedisProgressStore(client, 10, nil)
	ctx := context.Background()

	for i := 0; i < 500; i++ {
		require.NoError(t, store.Publish(ctx, progressAt("r-trim", model.RestorePhaseRestoring, i)))
	}

	length, err := client.XLen(ctx, streamKey("r-trim")).Result()
	require.NoError(t, err)
	assert.Less(t, length, int64(500))

	ttl, err := client.TTL(ctx, streamKey("r-trim")).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}
