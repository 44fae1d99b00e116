package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const backupSuffixLength = 8

// RetentionPeriod is how long a backup is kept before the sweeper removes it.
const RetentionPeriod = 30 * 24 * time.Hour

// BackupStatus is the lifecycle state recorded in backup metadata.
type BackupStatus string

const (
	BackupStatusCompleted BackupStatus = "completed"
	BackupStatusFailed    BackupStatus = "failed"
)

// BackupMetadata is the persisted record describing one stored snapshot.
type BackupMetadata struct {
	ID             string       `json:"id" bson:"_id"`
	FileName       string       `json:"fileName" bson:"fileName"`
	CreatedAt      time.Time    `json:"createdAt" bson:"createdAt"`
	ExpiresAt      time.Time    `json:"expiresAt" bson:"expiresAt"`
	Collections    []string     `json:"collections" bson:"collections"`
	TotalDocuments int          `json:"totalDocuments" bson:"totalDocuments"`
	FileSizeBytes  int64        `json:"fileSizeBytes" bson:"fileSizeBytes"`
	StoragePath    string       `json:"storagePath" bson:"storagePath"`
	DownloadURL    string       `json:"downloadUrl,omitempty" bson:"downloadUrl,omitempty"`
	Checksum       string       `json:"checksum,omitempty" bson:"checksum,omitempty"`
	Status         BackupStatus `json:"status" bson:"status"`
	CreatedBy      string       `json:"createdBy,omitempty" bson:"createdBy,omitempty"`

	// IsExpired is derived on read and never stored.
	IsExpired bool `json:"isExpired" bson:"-"`
}

// NewBackupMetadata prepares metadata for a backup taken at createdAt.
func NewBackupMetadata(createdAt time.Time, collections []string) *BackupMetadata {
	createdAt = createdAt.UTC()
	suffix := newBackupSuffix()
	return &BackupMetadata{
		ID: BackupID(createdAt, suffix),
		FileName: fmt.Sprintf("backup_%s-%03d-%s",
			createdAt.Format("2006-01-02_15-04-05"), createdAt.Nanosecond()/int(time.Millisecond), suffix),
		CreatedAt:   createdAt,
		ExpiresAt:   createdAt.Add(RetentionPeriod),
		Collections: append([]string(nil), collections...),
		Status:      BackupStatusCompleted,
	}
}

// BackupID derives the backup identifier from its creation time and a
// random suffix that keeps backups taken in the same millisecond apart.
func BackupID(createdAt time.Time, suffix string) string {
	return fmt.Sprintf("backup_%d_%s", createdAt.UnixMilli(), suffix)
}

func newBackupSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:backupSuffixLength]
}

// ExpiredAt reports whether the backup is past its expiry at now.
func (m *BackupMetadata) ExpiredAt(now time.Time) bool {
	return now.After(m.ExpiresAt)
}

// DueForSweep reports whether the sweeper should remove the backup at now.
// The boundary is inclusive: a backup expiring exactly at now is swept.
func (m *BackupMetadata) DueForSweep(now time.Time) bool {
	return !m.ExpiresAt.After(now)
}

// BackupStatistics aggregates the stored backups.
type BackupStatistics struct {
	Total          int    `json:"total"`
	Active         int    `json:"active"`
	Expired        int    `json:"expired"`
	TotalSizeBytes int64  `json:"totalSizeBytes"`
	TotalSizeKB    int64  `json:"totalSizeKB"`
	TotalSizeHuman string `json:"totalSizeHuman"`
}

// BackupProgress is reported while a snapshot is being created.
type BackupProgress struct {
	Percentage int    `json:"percentage"`
	Message    string `json:"message"`
}

// BackupProgressFunc receives backup progress updates.
type BackupProgressFunc func(BackupProgress)
