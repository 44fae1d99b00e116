// Package sqlite stores backup metadata in a single-file SQLite database for
// deployments that run without MongoDB.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"transit-console/internal/backup/domain/model"
	"transit-console/internal/shared/errors"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS backup_metadata (
    id              TEXT PRIMARY KEY,
    file_name       TEXT NOT NULL,
    created_at      INTEGER NOT NULL,
    expires_at      INTEGER NOT NULL,
    collections     TEXT NOT NULL,
    total_documents INTEGER NOT NULL DEFAULT 0,
    file_size_bytes INTEGER NOT NULL DEFAULT 0,
    storage_path    TEXT NOT NULL,
    download_url    TEXT NOT NULL DEFAULT '',
    checksum        TEXT NOT NULL DEFAULT '',
    status          TEXT NOT NULL,
    created_by      TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_backup_metadata_created_at ON backup_metadata(created_at);
CREATE INDEX IF NOT EXISTS idx_backup_metadata_expires_at ON backup_metadata(expires_at);
`

const selectColumns = `SELECT id, file_name, created_at, expires_at, collections, total_documents,
    file_size_bytes, storage_path, download_url, checksum, status, created_by FROM backup_metadata`

// MetadataRepository implements repository.MetadataRepository on SQLite.
type MetadataRepository struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at dbPath and applies the schema.
func Open(dbPath string) (*MetadataRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	dsn, err := buildDSN(dbPath)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &MetadataRepository{db: db}, nil
}

func buildDSN(dbPath string) (string, error) {
	absPath, err := filepath.Abs(dbPath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve database path: %w", err)
	}
	absPath = strings.ReplaceAll(absPath, "\\", "/")
	return fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)", absPath), nil
}

// Close releases the database handle.
func (r *MetadataRepository) Close() error {
	return r.db.Close()
}

func (r *MetadataRepository) Put(ctx context.Context, meta *model.BackupMetadata) error {
	if meta == nil || meta.ID == "" {
		return errors.NewValidationError("backup metadata requires an id")
	}
	collections, err := json.Marshal(meta.Collections)
	if err != nil {
		return fmt.Errorf("encode collections: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO backup_metadata (id, file_name, created_at, expires_at, collections, total_documents,
    file_size_bytes, storage_path, download_url, checksum, status, created_by)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    file_name = excluded.file_name,
    created_at = excluded.created_at,
    expires_at = excluded.expires_at,
    collections = excluded.collections,
    total_documents = excluded.total_documents,
    file_size_bytes = excluded.file_size_bytes,
    storage_path = excluded.storage_path,
    download_url = excluded.download_url,
    checksum = excluded.checksum,
    status = excluded.status,
    created_by = excluded.created_by`,
		meta.ID, meta.FileName, meta.CreatedAt.UnixNano(), meta.ExpiresAt.UnixNano(), string(collections),
		meta.TotalDocuments, meta.FileSizeBytes, meta.StoragePath, meta.DownloadURL, meta.Checksum,
		string(meta.Status), meta.CreatedBy)
	if err != nil {
		return fmt.Errorf("put metadata %s: %w", meta.ID, err)
	}
	return nil
}

func (r *MetadataRepository) Get(ctx context.Context, id string) (*model.BackupMetadata, error) {
	row := r.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id)
	meta, err := scanMetadata(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", id, errors.ErrBackupNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get metadata %s: %w", id, err)
	}
	return meta, nil
}

func (r *MetadataRepository) List(ctx context.Context) ([]*model.BackupMetadata, error) {
	return r.query(ctx, selectColumns+` ORDER BY created_at DESC`)
}

func (r *MetadataRepository) ListExpired(ctx context.Context, now time.Time) ([]*model.BackupMetadata, error) {
	return r.query(ctx, selectColumns+` WHERE expires_at <= ? ORDER BY created_at DESC`, now.UnixNano())
}

func (r *MetadataRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM backup_metadata WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete metadata %s: %w", id, err)
	}
	return nil
}

func (r *MetadataRepository) query(ctx context.Context, query string, args ...interface{}) ([]*model.BackupMetadata, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query metadata: %w", err)
	}
	defer rows.Close()

	records := []*model.BackupMetadata{}
	for rows.Next() {
		meta, err := scanMetadata(rows)
		if err != nil {
			return nil, fmt.Errorf("scan metadata: %w", err)
		}
		records = append(records, meta)
	}
	return records, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanMetadata(row scanner) (*model.BackupMetadata, error) {
	var (
		meta        model.BackupMetadata
		createdAt   int64
		expiresAt   int64
		collections string
		status      string
	)
	err := row.Scan(&meta.ID, &meta.FileName, &createdAt, &expiresAt, &collections, &meta.TotalDocuments,
		&meta.FileSizeBytes, &meta.StoragePath, &meta.DownloadURL, &meta.Checksum, &status, &meta.CreatedBy)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(collections), &meta.Collections); err != nil {
		return nil, fmt.Errorf("decode collections of %s: %w", meta.ID, err)
	}
	meta.CreatedAt = time.Unix(0, createdAt).UTC()
	meta.ExpiresAt = time.Unix(0, expiresAt).UTC()
	meta.Status = model.BackupStatus(status)
	return &meta, nil
}
