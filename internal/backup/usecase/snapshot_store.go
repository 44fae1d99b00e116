package usecase

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"time"

	"transit-console/internal/backup/domain/model"
	"transit-console/internal/backup/domain/repository"
	"transit-console/internal/shared/contextkeys"
	"transit-console/internal/shared/errors"
	"transit-console/internal/shared/logger"

	"github.com/avast/retry-go"
	"github.com/dustin/go-humanize"
	"golang.org/x/crypto/sha3"
)

const (
	snapshotContentType = "application/json"
	snapshotExtension   = ".json"
)

// SnapshotStoreConfig tunes where and how snapshots are uploaded.
type SnapshotStoreConfig struct {
	BackupFolder     string
	UploadAttempts   uint
	UploadRetryDelay time.Duration
}

// DefaultSnapshotStoreConfig returns the settings used when none are configured.
func DefaultSnapshotStoreConfig() SnapshotStoreConfig {
	return SnapshotStoreConfig{
		BackupFolder:     "backups",
		UploadAttempts:   3,
		UploadRetryDelay: 2 * time.Second,
	}
}

// SnapshotStore persists snapshots as blobs with a metadata record each.
type SnapshotStore struct {
	blobs    repository.BlobStore
	metadata repository.MetadataRepository
	audit    repository.AuditSink
	cfg      SnapshotStoreConfig
	log      logger.Logger
	now      func() time.Time
}

// NewSnapshotStore creates a SnapshotStore.
func NewSnapshotStore(
	blobs repository.BlobStore,
	metadata repository.MetadataRepository,
	audit repository.AuditSink,
	cfg SnapshotStoreConfig,
	log logger.Logger,
) *SnapshotStore {
	defaults := DefaultSnapshotStoreConfig()
	if cfg.BackupFolder == "" {
		cfg.BackupFolder = defaults.BackupFolder
	}
	if cfg.UploadAttempts == 0 {
		cfg.UploadAttempts = defaults.UploadAttempts
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &SnapshotStore{
		blobs:    blobs,
		metadata: metadata,
		audit:    audit,
		cfg:      cfg,
		log:      log.WithComponent("snapshot_store"),
		now:      time.Now,
	}
}

// Create uploads snapshot and records its metadata. The metadata record is
// written only after the upload succeeds; if that write fails the uploaded
// blob is removed again.
func (s *SnapshotStore) Create(ctx context.Context, snapshot *model.SnapshotDocument, onProgress model.BackupProgressFunc) (*model.BackupMetadata, error) {
	log := s.log.WithContext(ctx)
	meta := model.NewBackupMetadata(snapshot.Metadata.CreatedAt, snapshot.Metadata.Collections)
	meta.TotalDocuments = snapshot.CountDocuments()
	meta.CreatedBy = contextkeys.OperatorID(ctx)
	meta.StoragePath = path.Join(s.cfg.BackupFolder, meta.FileName+snapshotExtension)

	snapshot.Metadata.ExpiresAt = meta.ExpiresAt
	snapshot.Metadata.TotalDocuments = meta.TotalDocuments
	if snapshot.Metadata.Version == "" {
		snapshot.Metadata.Version = model.SnapshotVersion
	}

	payload, err := json.Marshal(snapshot)
	if err != nil {
		err = fmt.Errorf("serialize snapshot: %w", err)
		s.auditCreateFailure(ctx, err, meta.Collections)
		return nil, err
	}
	sum := sha3.Sum256(payload)
	meta.Checksum = hex.EncodeToString(sum[:])
	meta.FileSizeBytes = int64(len(payload))

	report(onProgress, progressUpload, fmt.Sprintf("Uploading backup (%s)...", humanize.Bytes(uint64(len(payload)))))
	url, err := s.upload(ctx, meta.StoragePath, payload)
	if err != nil {
		err = fmt.Errorf("upload backup: %w", err)
		log.WithError(err).Error("Backup upload failed")
		s.auditCreateFailure(ctx, err, meta.Collections)
		return nil, err
	}
	meta.DownloadURL = url

	report(onProgress, progressMetadata, "Saving backup metadata...")
	if err := s.metadata.Put(ctx, meta); err != nil {
		if delErr := s.blobs.Delete(ctx, meta.StoragePath); delErr != nil && !errors.IsNotFound(delErr) {
			log.WithError(delErr).Warnf("Could not remove blob %s after metadata failure", meta.StoragePath)
		}
		err = fmt.Errorf("save backup metadata: %w", err)
		s.auditCreateFailure(ctx, err, meta.Collections)
		return nil, err
	}

	report(onProgress, progressDone, "Backup completed")
	log.Infof("Backup %s created: %d documents, %s", meta.ID, meta.TotalDocuments, humanize.Bytes(uint64(meta.FileSizeBytes)))
	s.logActivity(ctx, model.ActivityBackupCreated, model.SeverityInfo,
		fmt.Sprintf("Created backup %s with %d documents", meta.FileName, meta.TotalDocuments),
		map[string]interface{}{
			"backupId":       meta.ID,
			"fileName":       meta.FileName,
			"collections":    meta.Collections,
			"totalDocuments": meta.TotalDocuments,
			"fileSizeBytes":  meta.FileSizeBytes,
		})
	return meta, nil
}

func (s *SnapshotStore) upload(ctx context.Context, storagePath string, payload []byte) (string, error) {
	var url string
	err := retry.Do(
		func() error {
			u, err := s.blobs.Put(ctx, storagePath, payload, repository.PutOptions{
				ContentType:        snapshotContentType,
				ContentDisposition: fmt.Sprintf("attachment; filename=%q", path.Base(storagePath)),
			})
			if err != nil {
				return err
			}
			url = u
			return nil
		},
		retry.Attempts(s.cfg.UploadAttempts),
		retry.Delay(s.cfg.UploadRetryDelay),
		retry.RetryIf(func(error) bool { return ctx.Err() == nil }),
		retry.OnRetry(func(n uint, err error) {
			s.log.WithContext(ctx).WithError(err).Warnf("Upload attempt %d for %s failed", n+1, storagePath)
		}),
	)
	return url, err
}

func (s *SnapshotStore) auditCreateFailure(ctx context.Context, err error, collections []string) {
	s.logActivity(ctx, model.ActivityBackupFailed, model.SeverityError,
		fmt.Sprintf("Backup failed: %v", err),
		map[string]interface{}{
			"error":       err.Error(),
			"collections": collections,
		})
}

// List returns every backup, newest first, with IsExpired derived from now.
func (s *SnapshotStore) List(ctx context.Context) ([]*model.BackupMetadata, error) {
	records, err := s.metadata.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list backups: %w", err)
	}
	now := s.now()
	for _, m := range records {
		m.IsExpired = m.ExpiredAt(now)
	}
	return records, nil
}

// Get returns the metadata of one backup.
func (s *SnapshotStore) Get(ctx context.Context, backupID string) (*model.BackupMetadata, error) {
	meta, err := s.metadata.Get(ctx, backupID)
	if err != nil {
		return nil, err
	}
	meta.IsExpired = meta.ExpiredAt(s.now())
	return meta, nil
}

// Download loads and decodes the snapshot blob behind meta.
func (s *SnapshotStore) Download(ctx context.Context, meta *model.BackupMetadata) (*model.SnapshotDocument, error) {
	raw, err := s.blobs.Get(ctx, meta.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", meta.StoragePath, err)
	}
	if meta.Checksum != "" {
		sum := sha3.Sum256(raw)
		if hex.EncodeToString(sum[:]) != meta.Checksum {
			return nil, fmt.Errorf("%w: checksum mismatch for %s", errors.ErrSnapshotUnreadable, meta.StoragePath)
		}
	}
	var snapshot model.SnapshotDocument
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&snapshot); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrSnapshotUnreadable, err)
	}
	if snapshot.Data == nil {
		return nil, fmt.Errorf("%w: no data section", errors.ErrSnapshotUnreadable)
	}
	return &snapshot, nil
}

// Delete removes a backup's blob and then its metadata. A blob that is
// already gone does not stop the metadata from being removed.
func (s *SnapshotStore) Delete(ctx context.Context, backupID string) error {
	meta, err := s.metadata.Get(ctx, backupID)
	if err != nil {
		return err
	}
	if err := s.deleteBlob(ctx, meta); err != nil {
		return err
	}
	if err := s.metadata.Delete(ctx, backupID); err != nil {
		return fmt.Errorf("delete metadata %s: %w", backupID, err)
	}

	s.log.WithContext(ctx).Infof("Backup %s deleted", backupID)
	s.logActivity(ctx, model.ActivityBackupDeleted, model.SeverityInfo,
		fmt.Sprintf("Deleted backup %s", meta.FileName),
		map[string]interface{}{"backupId": meta.ID, "fileName": meta.FileName})
	return nil
}

func (s *SnapshotStore) deleteBlob(ctx context.Context, meta *model.BackupMetadata) error {
	err := s.blobs.Delete(ctx, meta.StoragePath)
	if err == nil || errors.IsNotFound(err) {
		return nil
	}
	return fmt.Errorf("delete blob %s: %w", meta.StoragePath, err)
}

// SweepExpired removes every backup whose expiresAt is at or before now and
// returns how many were removed. Blob deletion is best-effort.
func (s *SnapshotStore) SweepExpired(ctx context.Context) (int, error) {
	log := s.log.WithContext(ctx)
	expired, err := s.metadata.ListExpired(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("list expired backups: %w", err)
	}

	deleted := 0
	var failed []string
	for _, meta := range expired {
		if err := s.deleteBlob(ctx, meta); err != nil {
			log.WithError(err).Warnf("Blob removal failed for expired backup %s", meta.ID)
		}
		if err := s.metadata.Delete(ctx, meta.ID); err != nil {
			log.WithError(err).Errorf("Metadata removal failed for expired backup %s", meta.ID)
			failed = append(failed, meta.ID)
			continue
		}
		deleted++
	}

	if deleted > 0 {
		log.Infof("Removed %d expired backups", deleted)
		s.logActivity(ctx, model.ActivityBackupsExpired, model.SeverityInfo,
			fmt.Sprintf("Removed %d expired backups", deleted),
			map[string]interface{}{"deletedCount": deleted})
	}
	if len(failed) > 0 {
		return deleted, fmt.Errorf("could not remove expired backups: %s", strings.Join(failed, ", "))
	}
	return deleted, nil
}

// Statistics summarises the stored backups.
func (s *SnapshotStore) Statistics(ctx context.Context) (*model.BackupStatistics, error) {
	records, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	stats := &model.BackupStatistics{Total: len(records)}
	for _, m := range records {
		if m.IsExpired {
			stats.Expired++
		} else {
			stats.Active++
		}
		stats.TotalSizeBytes += m.FileSizeBytes
	}
	stats.TotalSizeKB = stats.TotalSizeBytes / 1024
	stats.TotalSizeHuman = humanize.Bytes(uint64(stats.TotalSizeBytes))
	return stats, nil
}

func (s *SnapshotStore) logActivity(ctx context.Context, kind model.ActivityKind, severity model.ActivitySeverity, description string, metadata map[string]interface{}) {
	if s.audit == nil {
		return
	}
	s.audit.LogActivity(ctx, model.Activity{
		Kind:        kind,
		Description: description,
		Metadata:    metadata,
		Severity:    severity,
		OperatorID:  contextkeys.OperatorID(ctx),
		Timestamp:   s.now().UTC(),
	})
}
