package repository

import (
	"context"
	"time"

	"transit-console/internal/backup/domain/model"
)

// DocumentStore is the live hierarchical document tree.
type DocumentStore interface {
	// ListCollection returns the documents directly under a collection path.
	// A collection with no documents yields an empty slice.
	ListCollection(ctx context.Context, path string) ([]model.DocumentEntry, error)
	// GetDocument returns errors.ErrDocumentNotFound when nothing is stored at path.
	GetDocument(ctx context.Context, path string) (model.DocumentData, error)
	SetDocument(ctx context.Context, path string, data model.DocumentData) error
	DeleteDocument(ctx context.Context, path string) error
}

// PutOptions are the HTTP-facing attributes stored with a blob.
type PutOptions struct {
	ContentType        string
	ContentDisposition string
}

// BlobStore holds serialised snapshots.
type BlobStore interface {
	// Put stores data and returns a URL or path the blob can be fetched from.
	Put(ctx context.Context, path string, data []byte, opts PutOptions) (string, error)
	// Get returns errors.ErrBlobNotFound when nothing is stored at path.
	Get(ctx context.Context, path string) ([]byte, error)
	// Delete returns errors.ErrBlobNotFound when nothing is stored at path.
	Delete(ctx context.Context, path string) error
}

// MetadataRepository persists BackupMetadata records.
type MetadataRepository interface {
	Put(ctx context.Context, meta *model.BackupMetadata) error
	// Get returns errors.ErrBackupNotFound for unknown ids.
	Get(ctx context.Context, id string) (*model.BackupMetadata, error)
	// List returns every record, newest createdAt first.
	List(ctx context.Context) ([]*model.BackupMetadata, error)
	// ListExpired returns records with expiresAt <= now.
	ListExpired(ctx context.Context, now time.Time) ([]*model.BackupMetadata, error)
	Delete(ctx context.Context, id string) error
}

// AuditSink records operator-visible activity. Implementations never fail
// the caller.
type AuditSink interface {
	LogActivity(ctx context.Context, activity model.Activity)
}

// ProgressPublisher fans restore progress out to observers.
type ProgressPublisher interface {
	Publish(ctx context.Context, progress model.RestoreProgress) error
	// Latest returns errors.ErrRestoreNotFound when no progress was published.
	Latest(ctx context.Context, restoreID string) (*model.RestoreProgress, error)
	// Follow calls fn with the latest published progress, if any, and then
	// with each later update until fn returns false, a terminal phase is
	// delivered or ctx ends.
	Follow(ctx context.Context, restoreID string, fn func(model.RestoreProgress) bool) error
}
