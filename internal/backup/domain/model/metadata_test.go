package model

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewBackupMetadata(t *testing.T) {
	created := time.Date(2024, 6, 1, 14, 5, 9, 0, time.UTC)
	meta := NewBackupMetadata(created, []string{"routes"})

	assert.Regexp(t, `^backup_1717250709000_[0-9a-f]{8}$`, meta.ID)
	suffix := strings.TrimPrefix(meta.ID, "backup_1717250709000_")
	assert.Equal(t, BackupID(created, suffix), meta.ID)
	assert.Equal(t, "backup_2024-06-01_14-05-09-000-"+suffix, meta.FileName)
	assert.Equal(t, created.Add(30*24*time.Hour), meta.ExpiresAt)
	assert.Equal(t, BackupStatusCompleted, meta.Status)
}

func TestBackupMetadata_ExpiryBoundary(t *testing.T) {
	now := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	meta := &BackupMetadata{ExpiresAt: now}

	assert.True(t, meta.DueForSweep(now), "expiresAt == now is swept")
	assert.False(t, meta.ExpiredAt(now), "expiresAt == now is not yet reported expired")
	assert.True(t, meta.ExpiredAt(now.Add(time.Nanosecond)))
	assert.False(t, meta.DueForSweep(now.Add(-time.Nanosecond)))
}

func TestNewBackupMetadata_SameMillisecondStaysUnique(t *testing.T) {
	created := time.Date(2024, 6, 1, 14, 5, 9, 0, time.UTC)
	first := NewBackupMetadata(created, []string{"routes"})
	second := NewBackupMetadata(created, []string{"routes"})

	assert.NotEqual(t, first.ID, second.ID)
	assert.NotEqual(t, first.FileName, second.FileName)
}
