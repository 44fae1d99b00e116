package persistence

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"transit-console/internal/backup/domain/model"
	"transit-console/internal/shared/errors"
	"transit-console/internal/shared/logger"

	"github.com/redis/go-redis/v9"
)

const (
	progressStreamPrefix  = "restore:progress:"
	progressField         = "progress"
	phaseField            = "phase"
	defaultStreamMaxLen   = 1000
	defaultStreamTTL      = 24 * time.Hour
	defaultFollowBlockFor = 2 * time.Second
)

// RedisProgressStore implements ProgressPublisher on Redis Streams so every
// API instance can observe restores started on any other instance.
type RedisProgressStore struct {
	client    *redis.Client
	logger    logger.Logger
	maxLen    int64
	ttl       time.Duration
	blockTime time.Duration
}

// NewRedisProgressStore creates a store that trims each stream to about maxLen entries.
func NewRedisProgressStore(client *redis.Client, maxLen int64, log logger.Logger) *RedisProgressStore {
	if log == nil {
		log = logger.NewNopLogger()
	}
	if maxLen <= 0 {
		maxLen = defaultStreamMaxLen
	}
	return &RedisProgressStore{
		client:    client,
		logger:    log.WithComponent("redis_progress_store"),
		maxLen:    maxLen,
		ttl:       defaultStreamTTL,
		blockTime: defaultFollowBlockFor,
	}
}

func streamKey(restoreID string) string {
	return progressStreamPrefix + restoreID
}

// Publish appends progress to the run's stream and refreshes its expiry.
func (r *RedisProgressStore) Publish(ctx context.Context, progress model.RestoreProgress) error {
	payload, err := json.Marshal(progress)
	if err != nil {
		return fmt.Errorf("encode progress: %w", err)
	}

	key := streamKey(progress.RestoreID)
	pipe := r.client.TxPipeline()
	pipe.XAdd(ctx, &redis.XAddArgs{
		Stream: key,
		MaxLen: r.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			phaseField:    string(progress.Phase),
			progressField: string(payload),
		},
	})
	pipe.Expire(ctx, key, r.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		r.logger.WithContext(ctx).WithError(err).Errorf("Failed to publish progress to %s", key)
		return err
	}
	return nil
}

// Latest returns the most recent progress entry of a run.
func (r *RedisProgressStore) Latest(ctx context.Context, restoreID string) (*model.RestoreProgress, error) {
	msgs, err := r.client.XRevRangeN(ctx, streamKey(restoreID), "+", "-", 1).Result()
	if err != nil {
		return nil, fmt.Errorf("read progress of %s: %w", restoreID, err)
	}
	if len(msgs) == 0 {
		return nil, fmt.Errorf("%s: %w", restoreID, errors.ErrRestoreNotFound)
	}
	return decodeProgress(msgs[0])
}

// Follow delivers the newest entry of the run, if any, and then every entry
// added after it until fn returns false, a terminal phase arrives or ctx ends.
func (r *RedisProgressStore) Follow(ctx context.Context, restoreID string, fn func(model.RestoreProgress) bool) error {
	key := streamKey(restoreID)

	lastID := "0"
	latest, err := r.client.XRevRangeN(ctx, key, "+", "-", 1).Result()
	if err != nil {
		return fmt.Errorf("read progress of %s: %w", restoreID, err)
	}
	if len(latest) > 0 {
		lastID = latest[0].ID
		progress, err := decodeProgress(latest[0])
		if err != nil {
			r.logger.Warnf("Skipping unreadable progress entry %s: %v", lastID, err)
		} else if !fn(*progress) || progress.Phase.Terminal() {
			return nil
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		res, err := r.client.XRead(ctx, &redis.XReadArgs{
			Streams: []string{key, lastID},
			Count:   100,
			Block:   r.blockTime,
		}).Result()
		if stderrors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("follow progress of %s: %w", restoreID, err)
		}

		for _, stream := range res {
			for _, msg := range stream.Messages {
				lastID = msg.ID
				progress, err := decodeProgress(msg)
				if err != nil {
					r.logger.Warnf("Skipping unreadable progress entry %s: %v", msg.ID, err)
					continue
				}
				if !fn(*progress) || progress.Phase.Terminal() {
					return nil
				}
			}
		}
	}
}

func decodeProgress(msg redis.XMessage) (*model.RestoreProgress, error) {
	raw, ok := msg.Values[progressField].(string)
	if !ok {
		return nil, fmt.Errorf("entry %s has no %s field", msg.ID, progressField)
	}
	var progress model.RestoreProgress
	if err := json.Unmarshal([]byte(raw), &progress); err != nil {
		return nil, fmt.Errorf("decode entry %s: %w", msg.ID, err)
	}
	return &progress, nil
}
